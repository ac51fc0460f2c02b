package display

// Glyph dimensions for the built-in font.
const (
	GlyphWidth  = 5
	GlyphHeight = 5
)

// fontFirst and fontLast bound the printable range the font covers.
const (
	fontFirst = 0x20 // space
	fontLast  = 0x7E // tilde
)

// Font maps printable ASCII to 5x5 glyphs. Each glyph is five row
// masks; bit 0x10 is the leftmost column, matching the render path's
// 0x10 >> x sampling.
type Font struct {
	glyphs [][GlyphHeight]byte
}

// Glyph returns the row masks for c. Characters outside the covered
// range, or past the end of a partial font, render as '?'.
func (f Font) Glyph(c byte) [GlyphHeight]byte {
	if c < fontFirst || c > fontLast {
		c = '?'
	}
	i := int(c - fontFirst)
	if i >= len(f.glyphs) {
		return defaultFont.glyphs['?'-fontFirst]
	}
	return f.glyphs[i]
}

// NewFont builds a font from glyph row masks covering the printable
// range upward from space. Characters past the table fall back to the
// default '?' glyph.
func NewFont(glyphs [][GlyphHeight]byte) Font {
	return Font{glyphs: glyphs}
}

// DefaultFont returns the built-in 5x5 font.
func DefaultFont() Font { return defaultFont }

var defaultFont = Font{glyphs: [][GlyphHeight]byte{
	{0x00, 0x00, 0x00, 0x00, 0x00}, // space
	{0x08, 0x08, 0x08, 0x00, 0x08}, // !
	{0x0A, 0x0A, 0x00, 0x00, 0x00}, // "
	{0x0A, 0x1F, 0x0A, 0x1F, 0x0A}, // #
	{0x0E, 0x14, 0x0E, 0x05, 0x0E}, // $
	{0x19, 0x02, 0x04, 0x08, 0x13}, // %
	{0x0C, 0x12, 0x0C, 0x12, 0x0D}, // &
	{0x08, 0x08, 0x00, 0x00, 0x00}, // '
	{0x04, 0x08, 0x08, 0x08, 0x04}, // (
	{0x08, 0x04, 0x04, 0x04, 0x08}, // )
	{0x00, 0x0A, 0x04, 0x0A, 0x00}, // *
	{0x00, 0x04, 0x0E, 0x04, 0x00}, // +
	{0x00, 0x00, 0x00, 0x04, 0x08}, // ,
	{0x00, 0x00, 0x0E, 0x00, 0x00}, // -
	{0x00, 0x00, 0x00, 0x00, 0x04}, // .
	{0x01, 0x02, 0x04, 0x08, 0x10}, // /
	{0x0E, 0x13, 0x15, 0x19, 0x0E}, // 0
	{0x04, 0x0C, 0x04, 0x04, 0x0E}, // 1
	{0x0E, 0x11, 0x02, 0x0C, 0x1F}, // 2
	{0x1F, 0x02, 0x06, 0x11, 0x0E}, // 3
	{0x06, 0x0A, 0x12, 0x1F, 0x02}, // 4
	{0x1F, 0x10, 0x1E, 0x01, 0x1E}, // 5
	{0x06, 0x08, 0x1E, 0x11, 0x0E}, // 6
	{0x1F, 0x01, 0x02, 0x04, 0x08}, // 7
	{0x0E, 0x11, 0x0E, 0x11, 0x0E}, // 8
	{0x0E, 0x11, 0x0F, 0x02, 0x0C}, // 9
	{0x00, 0x04, 0x00, 0x04, 0x00}, // :
	{0x00, 0x04, 0x00, 0x04, 0x08}, // ;
	{0x02, 0x04, 0x08, 0x04, 0x02}, // <
	{0x00, 0x1F, 0x00, 0x1F, 0x00}, // =
	{0x08, 0x04, 0x02, 0x04, 0x08}, // >
	{0x0E, 0x11, 0x02, 0x00, 0x04}, // ?
	{0x0E, 0x11, 0x17, 0x10, 0x0E}, // @
	{0x0E, 0x11, 0x1F, 0x11, 0x11}, // A
	{0x1E, 0x11, 0x1E, 0x11, 0x1E}, // B
	{0x0E, 0x11, 0x10, 0x11, 0x0E}, // C
	{0x1E, 0x11, 0x11, 0x11, 0x1E}, // D
	{0x1F, 0x10, 0x1E, 0x10, 0x1F}, // E
	{0x1F, 0x10, 0x1E, 0x10, 0x10}, // F
	{0x0E, 0x10, 0x13, 0x11, 0x0E}, // G
	{0x11, 0x11, 0x1F, 0x11, 0x11}, // H
	{0x0E, 0x04, 0x04, 0x04, 0x0E}, // I
	{0x1F, 0x02, 0x02, 0x12, 0x0C}, // J
	{0x11, 0x12, 0x1C, 0x12, 0x11}, // K
	{0x10, 0x10, 0x10, 0x10, 0x1F}, // L
	{0x11, 0x1B, 0x15, 0x11, 0x11}, // M
	{0x11, 0x19, 0x15, 0x13, 0x11}, // N
	{0x0E, 0x11, 0x11, 0x11, 0x0E}, // O
	{0x1E, 0x11, 0x1E, 0x10, 0x10}, // P
	{0x0E, 0x11, 0x11, 0x12, 0x0D}, // Q
	{0x1E, 0x11, 0x1E, 0x12, 0x11}, // R
	{0x0F, 0x10, 0x0E, 0x01, 0x1E}, // S
	{0x1F, 0x04, 0x04, 0x04, 0x04}, // T
	{0x11, 0x11, 0x11, 0x11, 0x0E}, // U
	{0x11, 0x11, 0x11, 0x0A, 0x04}, // V
	{0x11, 0x11, 0x15, 0x1B, 0x11}, // W
	{0x11, 0x0A, 0x04, 0x0A, 0x11}, // X
	{0x11, 0x0A, 0x04, 0x04, 0x04}, // Y
	{0x1F, 0x02, 0x04, 0x08, 0x1F}, // Z
	{0x0C, 0x08, 0x08, 0x08, 0x0C}, // [
	{0x10, 0x08, 0x04, 0x02, 0x01}, // backslash
	{0x06, 0x02, 0x02, 0x02, 0x06}, // ]
	{0x04, 0x0A, 0x00, 0x00, 0x00}, // ^
	{0x00, 0x00, 0x00, 0x00, 0x1F}, // _
	{0x08, 0x04, 0x00, 0x00, 0x00}, // `
	{0x00, 0x0E, 0x12, 0x12, 0x0F}, // a
	{0x10, 0x10, 0x1E, 0x11, 0x1E}, // b
	{0x00, 0x0E, 0x10, 0x10, 0x0E}, // c
	{0x01, 0x01, 0x0F, 0x11, 0x0F}, // d
	{0x00, 0x0E, 0x1F, 0x10, 0x0E}, // e
	{0x06, 0x08, 0x1C, 0x08, 0x08}, // f
	{0x0F, 0x11, 0x0F, 0x01, 0x0E}, // g
	{0x10, 0x10, 0x1E, 0x11, 0x11}, // h
	{0x04, 0x00, 0x0C, 0x04, 0x0E}, // i
	{0x02, 0x00, 0x06, 0x02, 0x0C}, // j
	{0x10, 0x12, 0x1C, 0x12, 0x11}, // k
	{0x0C, 0x04, 0x04, 0x04, 0x0E}, // l
	{0x00, 0x1A, 0x15, 0x15, 0x11}, // m
	{0x00, 0x1E, 0x11, 0x11, 0x11}, // n
	{0x00, 0x0E, 0x11, 0x11, 0x0E}, // o
	{0x00, 0x1E, 0x11, 0x1E, 0x10}, // p
	{0x00, 0x0F, 0x11, 0x0F, 0x01}, // q
	{0x00, 0x16, 0x18, 0x10, 0x10}, // r
	{0x00, 0x0F, 0x18, 0x07, 0x1E}, // s
	{0x08, 0x1C, 0x08, 0x08, 0x06}, // t
	{0x00, 0x11, 0x11, 0x11, 0x0F}, // u
	{0x00, 0x11, 0x11, 0x0A, 0x04}, // v
	{0x00, 0x11, 0x15, 0x15, 0x0A}, // w
	{0x00, 0x11, 0x0A, 0x0A, 0x11}, // x
	{0x00, 0x11, 0x0F, 0x01, 0x0E}, // y
	{0x00, 0x1F, 0x02, 0x0C, 0x1F}, // z
	{0x06, 0x04, 0x0C, 0x04, 0x06}, // {
	{0x04, 0x04, 0x04, 0x04, 0x04}, // |
	{0x0C, 0x04, 0x06, 0x04, 0x0C}, // }
	{0x00, 0x08, 0x15, 0x02, 0x00}, // ~
}}
