// Package serial models the USB console.
//
// The console is a thin seam between board code and the host: writes
// go to an injectable io.Writer (the simulator's output pane, a file,
// a test buffer) and reads come from an injectable io.Reader. The baud
// rate is carried for status display; the simulated link is not paced.
// All methods are baton-domain calls.
package serial

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultBaud is the console speed in bits per second.
const DefaultBaud = 115200

// DefaultEOF terminates a line for ReadLine.
const DefaultEOF = '\n'

// ErrInvalidBaud reports a non-positive baud rate.
var ErrInvalidBaud = errors.New("serial: baud rate must be positive")

// Serial is the console device.
type Serial struct {
	baud int
	w    io.Writer
	r    *bufio.Reader

	txBytes uint64
	rxBytes uint64
}

// Option configures a Serial.
type Option func(*Serial)

// WithWriter directs console output to w.
func WithWriter(w io.Writer) Option {
	return func(s *Serial) {
		if w != nil {
			s.w = w
		}
	}
}

// WithReader supplies console input from r.
func WithReader(r io.Reader) Option {
	return func(s *Serial) {
		if r != nil {
			s.r = bufio.NewReader(r)
		}
	}
}

// WithBaud sets the initial baud rate. Non-positive rates keep the
// default.
func WithBaud(baud int) Option {
	return func(s *Serial) {
		if baud > 0 {
			s.baud = baud
		}
	}
}

// New creates a console. Without options it discards writes and reads
// end of file.
func New(opts ...Option) *Serial {
	s := &Serial{
		baud: DefaultBaud,
		w:    io.Discard,
		r:    bufio.NewReader(strings.NewReader("")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetBaud changes the console speed.
func (s *Serial) SetBaud(baud int) error {
	if baud <= 0 {
		return ErrInvalidBaud
	}
	s.baud = baud
	return nil
}

// Baud returns the console speed.
func (s *Serial) Baud() int { return s.baud }

// SetWriter redirects console output, for front ends that attach after
// construction. A nil writer discards output.
func (s *Serial) SetWriter(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	s.w = w
}

// Write sends raw bytes to the console. Serial satisfies io.Writer so
// loggers can be pointed at it.
func (s *Serial) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.txBytes += uint64(n)
	return n, err
}

// WriteString sends a string to the console.
func (s *Serial) WriteString(str string) (int, error) {
	return s.Write([]byte(str))
}

// Printf formats and sends a string to the console.
func (s *Serial) Printf(format string, args ...any) (int, error) {
	return s.Write([]byte(fmt.Sprintf(format, args...)))
}

// ReadRune reads one rune of console input, io.EOF when drained.
func (s *Serial) ReadRune() (rune, error) {
	r, size, err := s.r.ReadRune()
	s.rxBytes += uint64(size)
	return r, err
}

// ReadLine reads input up to the line terminator, which is consumed
// but not returned. A final unterminated line is returned with a nil
// error; after that, ReadLine returns io.EOF.
func (s *Serial) ReadLine() (string, error) {
	line, err := s.r.ReadString(DefaultEOF)
	s.rxBytes += uint64(len(line))
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return line, nil
		}
		return line, err
	}
	return strings.TrimSuffix(line, string(DefaultEOF)), nil
}

// TxBytes returns the number of bytes written.
func (s *Serial) TxBytes() uint64 { return s.txBytes }

// RxBytes returns the number of bytes read.
func (s *Serial) RxBytes() uint64 { return s.rxBytes }
