package display

import (
	"context"
	"testing"

	"github.com/solenoidlabs/fray/internal/bus"
	"github.com/solenoidlabs/fray/internal/fiber"
)

const testDisplayID = 6

// immediateSpawner runs listener fibers inline so animation tests stay
// single threaded.
type immediateSpawner struct{}

func (immediateSpawner) Spawn(fn func()) error {
	fn()
	return nil
}

// fiberSpawner hands listener fibers to a real scheduler.
type fiberSpawner struct {
	sched *fiber.Scheduler
}

func (s fiberSpawner) Spawn(fn func()) error {
	_, err := s.sched.SpawnFunc(fn)
	return err
}

// frameRecorder captures every rendered frame.
type frameRecorder struct {
	frames     []*Image
	brightness []uint8
}

func (r *frameRecorder) RenderFrame(f *Image, b uint8) {
	r.frames = append(r.frames, f)
	r.brightness = append(r.brightness, b)
}

func (r *frameRecorder) last() *Image {
	if len(r.frames) == 0 {
		return nil
	}
	return r.frames[len(r.frames)-1]
}

// eventJournal records event values seen on the display source.
type eventJournal struct {
	values []int
}

func (j *eventJournal) OnEvent(e bus.Event) {
	j.values = append(j.values, e.Value)
}

func newTestDisplay(t *testing.T, opts ...Option) (*Display, *frameRecorder, *eventJournal) {
	t.Helper()
	sched := fiber.NewScheduler()
	b := bus.NewBus(immediateSpawner{}, bus.WithWaker(sched))
	rec := &frameRecorder{}
	journal := &eventJournal{}
	b.Listen(testDisplayID, bus.AnyValue, journal)
	d := New(testDisplayID, b, sched, append([]Option{WithRenderer(rec)}, opts...)...)
	return d, rec, journal
}

func stepN(d *Display, n int) {
	for i := 0; i < n; i++ {
		d.Step(RefreshPeriod)
	}
}

// glyphFrame renders c alone on a default-size frame.
func glyphFrame(c byte) *Image {
	img := NewImage(DefaultWidth, DefaultHeight)
	img.PrintChar(c, 0, 0)
	return img
}

func TestDisplay_Defaults(t *testing.T) {
	d, _, _ := newTestDisplay(t)

	if d.Width() != DefaultWidth || d.Height() != DefaultHeight {
		t.Errorf("size = %dx%d, want %dx%d", d.Width(), d.Height(), DefaultWidth, DefaultHeight)
	}
	if got := d.Brightness(); got != DefaultBrightness {
		t.Errorf("Brightness = %d, want %d", got, DefaultBrightness)
	}
	if got := d.DisplayMode(); got != ModeBlackAndWhite {
		t.Errorf("DisplayMode = %v, want ModeBlackAndWhite", got)
	}
	if got := d.CurrentRotation(); got != Rotation0 {
		t.Errorf("CurrentRotation = %v, want Rotation0", got)
	}
	if !d.Enabled() {
		t.Error("Enabled = false on a new display")
	}
}

func TestDisplay_PrintChar_RendersGlyph(t *testing.T) {
	d, rec, _ := newTestDisplay(t)

	d.PrintChar('A')
	d.Step(RefreshPeriod)

	if got := rec.last(); got == nil || !got.Equal(glyphFrame('A')) {
		t.Errorf("frame =\n%swant\n%s", got, glyphFrame('A'))
	}
	if got := rec.brightness[len(rec.brightness)-1]; got != DefaultBrightness {
		t.Errorf("frame brightness = %d, want %d", got, DefaultBrightness)
	}

	// Nothing changed, so another step renders nothing new.
	frames := len(rec.frames)
	d.Step(RefreshPeriod)
	if len(rec.frames) != frames {
		t.Errorf("clean step rendered %d extra frames", len(rec.frames)-frames)
	}
}

func TestDisplay_PrintString_StepsThroughCharacters(t *testing.T) {
	d, rec, journal := newTestDisplay(t)

	// Delay of two refresh periods: an update lands every second step.
	d.PrintStringAsync("Hi", 2*RefreshPeriod)

	d.Step(RefreshPeriod)
	if got := rec.last(); !got.Equal(glyphFrame('H')) {
		t.Fatalf("first frame =\n%swant 'H'\n%s", got, glyphFrame('H'))
	}

	stepN(d, 2)
	if got := rec.last(); !got.Equal(glyphFrame('i')) {
		t.Fatalf("second frame =\n%swant 'i'\n%s", got, glyphFrame('i'))
	}

	// Trailing blank frame, then completion.
	stepN(d, 2)
	if got := rec.last(); !got.Equal(NewImage(DefaultWidth, DefaultHeight)) {
		t.Fatalf("trailing frame not blank:\n%s", rec.last())
	}
	if len(journal.values) != 0 {
		t.Fatalf("completion fired early: %v", journal.values)
	}

	stepN(d, 2)
	if got := journal.values; len(got) != 1 || got[0] != EventPrintTextComplete {
		t.Fatalf("events = %v, want [%d]", got, EventPrintTextComplete)
	}

	// The animation is finished; further steps render nothing.
	frames := len(rec.frames)
	stepN(d, 4)
	if len(rec.frames) != frames {
		t.Errorf("%d frames after completion", len(rec.frames)-frames)
	}
}

func TestDisplay_ScrollString_MarchesAcross(t *testing.T) {
	d, rec, journal := newTestDisplay(t)

	d.ScrollStringAsync("A", RefreshPeriod)

	// Two steps to cross the spacing gap, then the glyph is pasted off
	// screen and shifted in one column per step.
	stepN(d, 7)
	if got := rec.last(); !got.Equal(glyphFrame('A')) {
		t.Fatalf("frame after 7 steps =\n%swant centred 'A'\n%s", got, glyphFrame('A'))
	}
	if len(journal.values) != 0 {
		t.Fatalf("completion fired early: %v", journal.values)
	}

	stepN(d, 7)
	if got := journal.values; len(got) != 1 || got[0] != EventScrollTextComplete {
		t.Fatalf("events = %v, want [%d]", got, EventScrollTextComplete)
	}
	if got := rec.last(); !got.Equal(NewImage(DefaultWidth, DefaultHeight)) {
		t.Errorf("display not blank after scroll:\n%s", got)
	}
}

func TestDisplay_ScrollImage_Completes(t *testing.T) {
	d, rec, journal := newTestDisplay(t)
	heart := mustParse(t, heartCSV)

	d.ScrollImageAsync(heart, RefreshPeriod, 1)

	// The image enters from the right edge; after six updates it is
	// fully on screen.
	stepN(d, 6)
	want := NewImage(DefaultWidth, DefaultHeight)
	want.Paste(heart, 0, 0, false)
	got := rec.last().Clone()
	// Rendering quantises to black and white; compare shapes.
	for y := 0; y < got.Height(); y++ {
		for x := 0; x < got.Width(); x++ {
			if got.Pixel(x, y) != 0 {
				got.SetPixel(x, y, 1)
			}
		}
	}
	if !got.Equal(want) {
		t.Fatalf("frame after 6 steps =\n%swant\n%s", got, want)
	}

	stepN(d, 5)
	if got := journal.values; len(got) != 1 || got[0] != EventScrollImageComplete {
		t.Fatalf("events = %v, want [%d]", got, EventScrollImageComplete)
	}
}

func TestDisplay_AnimateImage_StopsOnLastFrame(t *testing.T) {
	d, rec, journal := newTestDisplay(t)

	film := NewImage(2*DefaultWidth, DefaultHeight)
	film.PrintChar('A', 0, 0)
	film.PrintChar('B', DefaultWidth, 0)

	d.AnimateImageAsync(film, RefreshPeriod, DefaultWidth)

	d.Step(RefreshPeriod)
	if got := rec.last(); !got.Equal(glyphFrame('A')) {
		t.Fatalf("first frame =\n%swant 'A'\n%s", got, glyphFrame('A'))
	}

	d.Step(RefreshPeriod)
	if got := rec.last(); !got.Equal(glyphFrame('B')) {
		t.Fatalf("second frame =\n%swant 'B'\n%s", got, glyphFrame('B'))
	}

	frames := len(rec.frames)
	d.Step(RefreshPeriod)
	if got := journal.values; len(got) != 1 || got[0] != EventAnimateImageComplete {
		t.Fatalf("events = %v, want [%d]", got, EventAnimateImageComplete)
	}
	// The last frame stays on screen.
	if len(rec.frames) != frames {
		t.Errorf("completion redrew the display")
	}
	if got := rec.last(); !got.Equal(glyphFrame('B')) {
		t.Errorf("final frame =\n%swant held 'B'\n%s", got, glyphFrame('B'))
	}
}

func TestDisplay_NewAnimationCancelsPrevious(t *testing.T) {
	d, _, journal := newTestDisplay(t)

	d.ScrollStringAsync("AB", RefreshPeriod)
	stepN(d, 3)

	// Starting a print completes the scroll early so blocked callers
	// are released.
	d.PrintStringAsync("C", RefreshPeriod)
	if got := journal.values; len(got) != 1 || got[0] != EventScrollTextComplete {
		t.Fatalf("events after cancel = %v, want [%d]", got, EventScrollTextComplete)
	}

	stepN(d, 4)
	want := []int{EventScrollTextComplete, EventPrintTextComplete}
	if got := journal.values; len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestDisplay_StopAnimation(t *testing.T) {
	d, _, journal := newTestDisplay(t)

	d.StopAnimation()
	if len(journal.values) != 0 {
		t.Fatalf("idle StopAnimation fired %v", journal.values)
	}

	d.ScrollStringAsync("AB", RefreshPeriod)
	d.StopAnimation()
	if got := journal.values; len(got) != 1 || got[0] != EventScrollTextComplete {
		t.Fatalf("events = %v, want [%d]", got, EventScrollTextComplete)
	}
}

func TestDisplay_PrintString_BlocksUntilComplete(t *testing.T) {
	sched := fiber.NewScheduler()
	b := bus.NewBus(fiberSpawner{sched: sched}, bus.WithWaker(sched))
	d := New(testDisplayID, b, sched)

	var journal []string
	if _, err := sched.SpawnFunc(func() {
		d.PrintString("H", RefreshPeriod)
		journal = append(journal, "printed")
	}, fiber.WithName("app")); err != nil {
		t.Fatalf("SpawnFunc: %v", err)
	}
	if _, err := sched.SpawnFunc(func() {
		for i := 0; i < 8; i++ {
			sched.Sleep(RefreshPeriod)
			d.Step(RefreshPeriod)
		}
	}, fiber.WithName("refresh")); err != nil {
		t.Fatalf("SpawnFunc: %v", err)
	}

	if err := sched.RunUntilIdle(context.Background()); err != nil {
		t.Fatalf("RunUntilIdle: %v", err)
	}
	if len(journal) != 1 || journal[0] != "printed" {
		t.Fatalf("journal = %v, want [printed]", journal)
	}
}

func TestDisplay_Error_PaintsFaultFace(t *testing.T) {
	d, rec, journal := newTestDisplay(t)

	d.ScrollStringAsync("AB", RefreshPeriod)
	stepN(d, 2)

	d.Error(20)

	want := mustParse(t, `
255,255,0,255,255
255,255,0,255,255
0,0,0,0,0
0,255,255,255,0
255,0,0,0,255
`)
	if got := rec.last(); !got.Equal(want) {
		t.Fatalf("fault frame =\n%swant\n%s", got, want)
	}
	if got := d.FaultCode(); got != 20 {
		t.Errorf("FaultCode = %d, want 20", got)
	}
	// A fault freezes animation without firing completions.
	if len(journal.values) != 0 {
		t.Errorf("fault fired events %v", journal.values)
	}
	frames := len(rec.frames)
	stepN(d, 4)
	if len(rec.frames) != frames {
		t.Errorf("animation kept running after fault")
	}
}

func TestDisplay_Rotation(t *testing.T) {
	tests := []struct {
		name     string
		rotation Rotation
		x, y     int
	}{
		{"0", Rotation0, 1, 0},
		{"90", Rotation90, 0, 3},
		{"180", Rotation180, 3, 4},
		{"270", Rotation270, 4, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, _ := newTestDisplay(t)
			d.Image().SetPixel(1, 0, 255)
			if err := d.RotateTo(tt.rotation); err != nil {
				t.Fatalf("RotateTo: %v", err)
			}

			frame := d.Frame()
			for y := 0; y < frame.Height(); y++ {
				for x := 0; x < frame.Width(); x++ {
					want := uint8(0)
					if x == tt.x && y == tt.y {
						want = 255
					}
					if got := frame.Pixel(x, y); got != want {
						t.Fatalf("Pixel(%d,%d) = %d, want %d\n%s", x, y, got, want, frame)
					}
				}
			}
		})
	}
}

func TestDisplay_RotateTo_Invalid(t *testing.T) {
	d, _, _ := newTestDisplay(t)
	if err := d.RotateTo(Rotation(9)); err != ErrInvalidRotation {
		t.Errorf("RotateTo(9) err = %v, want ErrInvalidRotation", err)
	}
}

func TestDisplay_SetBrightness(t *testing.T) {
	d, rec, _ := newTestDisplay(t)

	if err := d.SetBrightness(255); err != nil {
		t.Fatalf("SetBrightness(255): %v", err)
	}
	d.PrintChar('A')
	d.Step(RefreshPeriod)
	if got := rec.brightness[len(rec.brightness)-1]; got != 255 {
		t.Errorf("frame brightness = %d, want 255", got)
	}

	for _, bad := range []int{-1, 256} {
		if err := d.SetBrightness(bad); err != ErrInvalidBrightness {
			t.Errorf("SetBrightness(%d) err = %v, want ErrInvalidBrightness", bad, err)
		}
	}
	if got := d.Brightness(); got != 255 {
		t.Errorf("Brightness = %d after rejected sets, want 255", got)
	}
}

func TestDisplay_GreyscaleMode(t *testing.T) {
	d, _, _ := newTestDisplay(t)
	d.Image().SetPixel(0, 0, 7)

	if got := d.Frame().Pixel(0, 0); got != 255 {
		t.Errorf("black and white Pixel = %d, want 255", got)
	}

	d.SetDisplayMode(ModeGreyscale)
	if got := d.Frame().Pixel(0, 0); got != 7 {
		t.Errorf("greyscale Pixel = %d, want 7", got)
	}
}

func TestDisplay_EnableDisable(t *testing.T) {
	d, rec, _ := newTestDisplay(t)

	d.Disable()
	d.PrintChar('A')
	d.Step(RefreshPeriod)
	if len(rec.frames) != 0 {
		t.Fatalf("disabled display rendered %d frames", len(rec.frames))
	}

	d.Enable()
	d.Step(RefreshPeriod)
	if len(rec.frames) != 1 {
		t.Fatalf("enabled display rendered %d frames, want 1", len(rec.frames))
	}
}

func TestDisplay_WithSize(t *testing.T) {
	d, _, _ := newTestDisplay(t, WithSize(7, 3))

	frame := d.Frame()
	if frame.Width() != 7 || frame.Height() != 3 {
		t.Errorf("frame = %dx%d, want 7x3", frame.Width(), frame.Height())
	}
}

func TestDisplay_SetFont(t *testing.T) {
	d, rec, _ := newTestDisplay(t)

	// A one-glyph font: space renders as a full block.
	block := NewFont([][GlyphHeight]byte{{0x1F, 0x1F, 0x1F, 0x1F, 0x1F}})
	d.SetFont(block)

	d.PrintChar(' ')
	d.Step(RefreshPeriod)
	want := NewImage(DefaultWidth, DefaultHeight)
	want.PrintGlyph(block, ' ', 0, 0)
	if got := rec.last(); !got.Equal(want) {
		t.Fatalf("custom font frame =\n%swant\n%s", got, want)
	}

	// Characters past a partial font fall back to '?'.
	d.PrintChar('A')
	d.Step(RefreshPeriod)
	if got := rec.last(); !got.Equal(glyphFrame('?')) {
		t.Errorf("missing glyph =\n%swant '?'\n%s", got, glyphFrame('?'))
	}

	d.SetFont(Font{})
	if got := d.Font(); got.Glyph('A') != DefaultFont().Glyph('A') {
		t.Error("zero font did not restore the default")
	}
}
