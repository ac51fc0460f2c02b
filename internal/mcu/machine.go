package mcu

import "fmt"

// Memory map of the modeled core. The stack top mirrors the end of SRAM on
// the reference hardware; every fiber's stack hangs below it.
const (
	// DefaultStackTop is the fixed top-of-stack address shared by all
	// fibers: the first byte past the end of the stack region.
	DefaultStackTop uint32 = 0x20004000

	// DefaultStackWords is the size of the shared stack region in words.
	DefaultStackWords = 512

	// WordSize is the machine word size in bytes.
	WordSize = 4
)

// Machine is the live execution state shared by all fibers: the register
// file, stack pointer, link register, and the single physical stack region.
// Exactly one fiber's state is loaded at any time; everyone else lives in a
// suspended Context.
//
// Machine performs no locking. The scheduler owns it and is the only
// permitted caller of Switch and Snapshot.
type Machine struct {
	regs RegisterFile
	sp   uint32
	lr   uint32

	stack    []uint32
	stackTop uint32
}

// Option configures a Machine.
type Option func(*Machine)

// WithStackWords sets the shared stack region size in words.
func WithStackWords(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.stack = make([]uint32, n)
		}
	}
}

// WithStackTop sets the fixed top-of-stack address. The address must be
// word aligned.
func WithStackTop(addr uint32) Option {
	return func(m *Machine) {
		m.stackTop = addr
	}
}

// NewMachine creates a machine with an empty stack region. The stack
// pointer starts at the top-of-stack boundary (depth zero).
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		stack:    make([]uint32, DefaultStackWords),
		stackTop: DefaultStackTop,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.stackTop%WordSize != 0 {
		panic(fmt.Errorf("%w: stack top 0x%08x", ErrUnalignedAddress, m.stackTop))
	}
	m.sp = m.stackTop
	return m
}

// StackTop returns the fixed top-of-stack address.
func (m *Machine) StackTop() uint32 { return m.stackTop }

// StackBase returns the lowest valid stack address.
func (m *Machine) StackBase() uint32 {
	return m.stackTop - uint32(len(m.stack))*WordSize
}

// SP returns the live stack pointer.
func (m *Machine) SP() uint32 { return m.sp }

// SetSP moves the live stack pointer. The address must be word aligned and
// within [StackBase, StackTop].
func (m *Machine) SetSP(addr uint32) {
	m.checkAddr(addr)
	m.sp = addr
}

// LR returns the live link register.
func (m *Machine) LR() uint32 { return m.lr }

// SetLR sets the live link register.
func (m *Machine) SetLR(addr uint32) { m.lr = addr }

// Regs returns the live register file for the running fiber to read and
// modify in place.
func (m *Machine) Regs() *RegisterFile { return &m.regs }

// LiveDepth returns the number of words currently in use on the shared
// stack: everything between SP and the top-of-stack boundary.
func (m *Machine) LiveDepth() int {
	return int((m.stackTop - m.sp) / WordSize)
}

// Push grows the stack downward by one word and stores w there.
func (m *Machine) Push(w uint32) {
	if m.sp <= m.StackBase() {
		panic(fmt.Errorf("%w: sp 0x%08x at base", ErrStackOverflow, m.sp))
	}
	m.sp -= WordSize
	m.stack[m.index(m.sp)] = w
}

// Pop loads the word at SP and shrinks the stack by one word.
func (m *Machine) Pop() uint32 {
	if m.sp >= m.stackTop {
		panic(fmt.Errorf("%w: sp 0x%08x at top", ErrStackUnderflow, m.sp))
	}
	w := m.stack[m.index(m.sp)]
	m.sp += WordSize
	return w
}

// Word returns the stack word at the given address without moving SP.
func (m *Machine) Word(addr uint32) uint32 {
	m.checkAddr(addr)
	if addr == m.stackTop {
		panic(fmt.Errorf("%w: read at top boundary", ErrBadStackPointer))
	}
	return m.stack[m.index(addr)]
}

// SetWord stores a stack word at the given address without moving SP.
func (m *Machine) SetWord(addr, w uint32) {
	m.checkAddr(addr)
	if addr == m.stackTop {
		panic(fmt.Errorf("%w: write at top boundary", ErrBadStackPointer))
	}
	m.stack[m.index(addr)] = w
}

// Switch suspends the running fiber into outgoing and resumes the fiber
// held by incoming.
//
// The outgoing side captures the register file, SP, and LR, then copies the
// active stack slice (every word between SP and the top-of-stack) into
// outgoing's buffer. The incoming side restores its SP, copies its saved
// slice back to the same addresses in the shared region, and restores its
// registers and LR. After the next Switch back, the outgoing fiber observes
// machine state identical to the moment it was suspended.
//
// Not reentrant; scheduler use only.
func (m *Machine) Switch(outgoing, incoming *Context) {
	m.save(outgoing)
	m.restore(incoming)
}

// Snapshot captures the running fiber into target exactly as Switch would
// for the outgoing side, but loads nothing: execution continues in the
// same fiber. The target can later be resumed to replay from this point.
func (m *Machine) Snapshot(target *Context) {
	m.save(target)
}

func (m *Machine) save(c *Context) {
	depth := m.LiveDepth()
	if depth > cap(c.slice) {
		panic(fmt.Errorf("%w: depth %d, capacity %d", ErrSliceOverflow, depth, cap(c.slice)))
	}
	c.Regs = m.regs
	c.SP = m.sp
	c.LR = m.lr
	c.slice = c.slice[:depth]
	copy(c.slice, m.stack[m.index(m.sp):])
}

func (m *Machine) restore(c *Context) {
	m.checkAddr(c.SP)
	m.regs = c.Regs
	m.sp = c.SP
	m.lr = c.LR
	copy(m.stack[m.index(m.sp):], c.slice)
}

// index converts a word-aligned stack address to a region index.
func (m *Machine) index(addr uint32) int {
	return int((addr - m.StackBase()) / WordSize)
}

func (m *Machine) checkAddr(addr uint32) {
	if addr%WordSize != 0 {
		panic(fmt.Errorf("%w: 0x%08x", ErrUnalignedAddress, addr))
	}
	if addr < m.StackBase() || addr > m.stackTop {
		panic(fmt.Errorf("%w: 0x%08x not in [0x%08x, 0x%08x]",
			ErrBadStackPointer, addr, m.StackBase(), m.stackTop))
	}
}
