package sim

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/solenoidlabs/fray/internal/device/display"
)

// Screen layout. The matrix hangs below the title with a one row gap,
// the status line below the matrix, then the serial pane down to the
// help line on the bottom row.
const (
	matrixLeft = 2
	matrixTop  = 2

	// ledStride is the column span of one LED: two block runes and a
	// gap, which roughly squares the cells.
	ledStride = 3
)

const helpLine = "a/b tap   A/B hold   t/T temp   0-2 pins   q quit"

var (
	styleTitle  = tcell.StyleDefault.Bold(true)
	styleDim    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleStatus = tcell.StyleDefault
	styleFault  = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
)

// ledStyle maps one pixel to a terminal color. Pixel value and global
// brightness multiply into a single level; unlit pixels keep a faint
// red so the matrix outline stays visible.
func ledStyle(v uint8, brightness uint8) tcell.Style {
	level := float64(v) / 255 * float64(brightness) / 255
	c := colorful.Hsv(8, 0.95, 0.10+0.90*level)
	r, g, b := c.RGB255()
	return tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(r), int32(g), int32(b)))
}

// draw repaints the whole screen from the latest snapshots. tcell
// diffs against its back buffer, so a full repaint per frame is cheap
// at this size.
func (u *UI) draw() {
	u.mu.Lock()
	frame := u.frame
	brightness := u.brightness
	st := u.st
	halted := u.halted
	u.mu.Unlock()

	u.screen.Clear()
	w, h := u.screen.Size()

	title := st.name
	if title == "" {
		title = "fray"
	}
	u.puts(matrixLeft, 0, styleTitle, title)

	mh := u.drawMatrix(frame, brightness)

	statusY := matrixTop + mh + 1
	u.drawStatus(statusY, st, halted)

	serialTop := statusY + 2
	u.rule(serialTop-1, w, " serial ")
	u.drawSerial(serialTop, w, h)

	u.puts(matrixLeft, h-1, styleDim, helpLine)
	u.screen.Show()
}

// drawMatrix paints the LED grid and returns its height in rows.
func (u *UI) drawMatrix(frame *display.Image, brightness uint8) int {
	mw, mh := display.DefaultWidth, display.DefaultHeight
	if frame != nil {
		mw, mh = frame.Width(), frame.Height()
	}
	for y := 0; y < mh; y++ {
		for x := 0; x < mw; x++ {
			var v uint8
			if frame != nil {
				v = frame.Pixel(x, y)
			}
			style := ledStyle(v, brightness)
			cx := matrixLeft + x*ledStride
			u.screen.SetContent(cx, matrixTop+y, '█', nil, style)
			u.screen.SetContent(cx+1, matrixTop+y, '█', nil, style)
		}
	}
	return mh
}

func (u *UI) drawStatus(y int, st status, halted bool) {
	parts := []string{
		fmt.Sprintf("%8.1fs", float64(st.ticks)/1000),
		fmt.Sprintf("%3d°C", st.tempC),
		buttonGlyph("A", st.buttonA),
		buttonGlyph("B", st.buttonB),
		fmt.Sprintf("fibers %d", st.fibers),
	}
	u.puts(matrixLeft, y, styleStatus, strings.Join(parts, "  "))

	x := matrixLeft + len([]rune(strings.Join(parts, "  "))) + 2
	if st.fault != 0 {
		u.puts(x, y, styleFault, fmt.Sprintf("fault %d", st.fault))
		x += len(fmt.Sprintf("fault %d", st.fault)) + 2
	}
	if halted {
		u.puts(x, y, styleFault, "halted")
	}
}

func buttonGlyph(label string, pressed bool) string {
	if pressed {
		return "[" + label + "]"
	}
	return " " + label + " "
}

// drawSerial fills rows top..h-2 with the tail of the serial console.
func (u *UI) drawSerial(top, w, h int) {
	bottom := h - 2
	if bottom < top {
		return
	}
	rows := bottom - top + 1
	lines := u.cons.Lines()
	if len(lines) > rows {
		lines = lines[len(lines)-rows:]
	}
	for i, line := range lines {
		u.puts(matrixLeft, top+i, styleStatus, clip(line, w-matrixLeft-1))
	}
}

// rule draws a horizontal separator with an inset label.
func (u *UI) rule(y, w int, label string) {
	for x := 0; x < w; x++ {
		u.screen.SetContent(x, y, '─', nil, styleDim)
	}
	u.puts(matrixLeft, y, styleDim, label)
}

// puts writes text starting at x, y. tcell ignores cells that land
// outside the screen.
func (u *UI) puts(x, y int, style tcell.Style, text string) {
	for _, r := range text {
		u.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func clip(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
