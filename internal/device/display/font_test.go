package display

import "testing"

func TestFont_CoversPrintableASCII(t *testing.T) {
	f := DefaultFont()
	blank := [GlyphHeight]byte{}

	for c := byte(' '); c <= '~'; c++ {
		glyph := f.Glyph(c)
		if c != ' ' && glyph == blank {
			t.Errorf("glyph %q is blank", c)
		}
		for _, row := range glyph {
			if row&^0x1F != 0 {
				t.Errorf("glyph %q row %#02x has bits outside the 5-pixel cell", c, row)
			}
		}
	}
}

func TestFont_FallbackGlyph(t *testing.T) {
	f := DefaultFont()

	if f.Glyph(0x01) != f.Glyph('?') {
		t.Error("control character did not fall back to '?'")
	}
	if f.Glyph(0x7F) != f.Glyph('?') {
		t.Error("DEL did not fall back to '?'")
	}
	if f.Glyph('A') == f.Glyph('?') {
		t.Error("'A' rendered as the fallback glyph")
	}
}
