package sim

import "sync"

// Console collects serial output for the serial pane. It is the
// board's serial writer, so Write arrives on the scheduler goroutine
// while the draw loop reads; the mutex covers both.
type Console struct {
	mu    sync.Mutex
	max   int
	lines []string
	cur   []byte
}

// NewConsole creates a console keeping at most max completed lines.
func NewConsole(max int) *Console {
	if max <= 0 {
		max = DefaultSerialLines
	}
	return &Console{max: max}
}

// Write implements io.Writer. Carriage returns are dropped so CRLF
// terminal output folds to plain lines.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range p {
		switch b {
		case '\r':
		case '\n':
			c.push(string(c.cur))
			c.cur = c.cur[:0]
		default:
			c.cur = append(c.cur, b)
		}
	}
	return len(p), nil
}

// push appends a completed line, dropping the oldest past the cap.
func (c *Console) push(line string) {
	c.lines = append(c.lines, line)
	if len(c.lines) > c.max {
		c.lines = c.lines[len(c.lines)-c.max:]
	}
}

// Lines returns the completed lines plus any unterminated tail.
func (c *Console) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.lines)+1)
	out = append(out, c.lines...)
	if len(c.cur) > 0 {
		out = append(out, string(c.cur))
	}
	return out
}
