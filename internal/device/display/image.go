package display

import (
	"fmt"
	"strconv"
	"strings"
)

// Image is a mutable greyscale bitmap, one byte per pixel, row major,
// origin top left. Out-of-range reads return zero and out-of-range
// writes are dropped, so callers can paste and shift freely at the
// edges without guarding coordinates.
type Image struct {
	width  int
	height int
	pixels []uint8
}

// NewImage creates a blank bitmap of the given size.
func NewImage(width, height int) *Image {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Image{
		width:  width,
		height: height,
		pixels: make([]uint8, width*height),
	}
}

// NewImageFromBitmap creates a bitmap from a linear pixel buffer laid
// out row by row.
func NewImageFromBitmap(width, height int, bitmap []uint8) (*Image, error) {
	if width < 0 || height < 0 || len(bitmap) != width*height {
		return nil, fmt.Errorf("%w: %d pixels for %dx%d", ErrInvalidImage, len(bitmap), width, height)
	}
	img := NewImage(width, height)
	copy(img.pixels, bitmap)
	return img, nil
}

// ParseImage builds a bitmap from a comma-separated value string, one
// row per line:
//
//	0,1,0,1,0
//	1,0,1,0,1
//
// Every row must have the same number of values.
func ParseImage(s string) (*Image, error) {
	var rows [][]uint8
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var row []uint8
		for _, field := range strings.Split(line, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseUint(field, 10, 8)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidImage, field)
			}
			row = append(row, uint8(v))
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidImage)
	}
	width := len(rows[0])
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrInvalidImage, i, len(row), width)
		}
	}

	img := NewImage(width, len(rows))
	for y, row := range rows {
		copy(img.pixels[y*width:], row)
	}
	return img, nil
}

// Width returns the bitmap width in pixels.
func (img *Image) Width() int { return img.width }

// Height returns the bitmap height in pixels.
func (img *Image) Height() int { return img.height }

// Clear zeroes every pixel.
func (img *Image) Clear() {
	for i := range img.pixels {
		img.pixels[i] = 0
	}
}

// SetPixel sets the brightness of one pixel. Out-of-range coordinates
// are ignored.
func (img *Image) SetPixel(x, y int, value uint8) {
	if x < 0 || x >= img.width || y < 0 || y >= img.height {
		return
	}
	img.pixels[y*img.width+x] = value
}

// Pixel returns the brightness of one pixel, or zero out of range.
func (img *Image) Pixel(x, y int) uint8 {
	if x < 0 || x >= img.width || y < 0 || y >= img.height {
		return 0
	}
	return img.pixels[y*img.width+x]
}

// Paste copies src into this bitmap with its top left corner at (dx, dy)
// and returns the number of lit source pixels that landed in range. With
// alpha set, zero pixels in src leave the destination untouched.
//
// The return value is how scroll animations detect that an image has
// moved fully off screen.
func (img *Image) Paste(src *Image, dx, dy int, alpha bool) int {
	lit := 0
	for sy := 0; sy < src.height; sy++ {
		y := dy + sy
		if y < 0 || y >= img.height {
			continue
		}
		for sx := 0; sx < src.width; sx++ {
			x := dx + sx
			if x < 0 || x >= img.width {
				continue
			}
			v := src.pixels[sy*src.width+sx]
			if v != 0 {
				lit++
			} else if alpha {
				continue
			}
			img.pixels[y*img.width+x] = v
		}
	}
	return lit
}

// PrintChar renders c in the default font with its top left corner at
// (x, y), overwriting the full glyph cell. Characters outside the font
// render as '?'.
func (img *Image) PrintChar(c byte, x, y int) {
	img.PrintGlyph(Font{}, c, x, y)
}

// PrintGlyph renders c from the given font, or the default font when f
// is the zero Font, with its top left corner at (x, y).
func (img *Image) PrintGlyph(f Font, c byte, x, y int) {
	if f.glyphs == nil {
		f = defaultFont
	}
	glyph := f.Glyph(c)
	for gy := 0; gy < GlyphHeight; gy++ {
		for gx := 0; gx < GlyphWidth; gx++ {
			v := uint8(0)
			if glyph[gy]&(0x10>>gx) != 0 {
				v = 255
			}
			img.SetPixel(x+gx, y+gy, v)
		}
	}
}

// ShiftLeft moves every pixel n columns to the left, filling vacated
// columns with zero.
func (img *Image) ShiftLeft(n int) {
	if n <= 0 {
		return
	}
	if n >= img.width {
		img.Clear()
		return
	}
	for y := 0; y < img.height; y++ {
		row := img.pixels[y*img.width : (y+1)*img.width]
		copy(row, row[n:])
		for x := img.width - n; x < img.width; x++ {
			row[x] = 0
		}
	}
}

// ShiftRight moves every pixel n columns to the right.
func (img *Image) ShiftRight(n int) {
	if n <= 0 {
		return
	}
	if n >= img.width {
		img.Clear()
		return
	}
	for y := 0; y < img.height; y++ {
		row := img.pixels[y*img.width : (y+1)*img.width]
		copy(row[n:], row[:img.width-n])
		for x := 0; x < n; x++ {
			row[x] = 0
		}
	}
}

// ShiftUp moves every pixel n rows up.
func (img *Image) ShiftUp(n int) {
	if n <= 0 {
		return
	}
	if n >= img.height {
		img.Clear()
		return
	}
	copy(img.pixels, img.pixels[n*img.width:])
	for i := (img.height - n) * img.width; i < len(img.pixels); i++ {
		img.pixels[i] = 0
	}
}

// ShiftDown moves every pixel n rows down.
func (img *Image) ShiftDown(n int) {
	if n <= 0 {
		return
	}
	if n >= img.height {
		img.Clear()
		return
	}
	copy(img.pixels[n*img.width:], img.pixels[:(img.height-n)*img.width])
	for i := 0; i < n*img.width; i++ {
		img.pixels[i] = 0
	}
}

// Crop returns a new bitmap holding the given region. Parts of the
// region outside this bitmap read as zero.
func (img *Image) Crop(x, y, width, height int) *Image {
	out := NewImage(width, height)
	for oy := 0; oy < height; oy++ {
		for ox := 0; ox < width; ox++ {
			out.SetPixel(ox, oy, img.Pixel(x+ox, y+oy))
		}
	}
	return out
}

// Clone returns an independent copy.
func (img *Image) Clone() *Image {
	out := NewImage(img.width, img.height)
	copy(out.pixels, img.pixels)
	return out
}

// Equal reports whether two bitmaps have the same size and pixels.
func (img *Image) Equal(other *Image) bool {
	if other == nil || img.width != other.width || img.height != other.height {
		return false
	}
	for i := range img.pixels {
		if img.pixels[i] != other.pixels[i] {
			return false
		}
	}
	return true
}

// String renders the bitmap in the same comma-separated format
// ParseImage accepts.
func (img *Image) String() string {
	var b strings.Builder
	for y := 0; y < img.height; y++ {
		for x := 0; x < img.width; x++ {
			if x > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(int(img.pixels[y*img.width+x])))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
