package mcu

// RegisterFile is the general-purpose register set of the modeled core,
// one named machine-word slot per register. SP and LR are tracked
// separately because the switch primitives treat them specially.
type RegisterFile struct {
	R0, R1, R2, R3, R4, R5, R6 uint32
	R7, R8, R9, R10, R11, R12  uint32
}

// Context is the saved execution state of one suspended fiber: the register
// file, stack pointer and link register at suspension time, and the active
// slice of the shared stack region.
//
// A Context is populated by every suspend and consumed by every resume.
// Between a resume and the next suspend its contents are stale and must not
// be interpreted.
type Context struct {
	// Regs is the general register file as captured at suspension.
	Regs RegisterFile

	// SP is the saved stack pointer, a word-aligned address within the
	// machine's stack region.
	SP uint32

	// LR is the saved link register: where execution resumes when this
	// context is restored.
	LR uint32

	// slice holds the active stack contents between SP and the machine's
	// top-of-stack boundary, lowest address first. Its length is the live
	// depth in words at suspension time; its capacity is fixed.
	slice []uint32
}

// DefaultSliceWords is the per-context backing capacity used when none is
// given: the full region of a default machine, making overflow impossible.
const DefaultSliceWords = DefaultStackWords

// NewContext allocates a Context whose slice buffer holds up to
// capacityWords words. The capacity is a hard bound: suspending with a
// deeper live slice panics (see package doc).
func NewContext(capacityWords int) *Context {
	if capacityWords <= 0 {
		capacityWords = DefaultSliceWords
	}
	return &Context{slice: make([]uint32, 0, capacityWords)}
}

// Capacity returns the slice buffer capacity in words.
func (c *Context) Capacity() int { return cap(c.slice) }

// Depth returns the number of live stack words saved by the last suspend.
func (c *Context) Depth() int { return len(c.slice) }

// Stack returns the saved active slice, lowest address first. The returned
// slice aliases the context's buffer and is valid until the next suspend.
func (c *Context) Stack() []uint32 { return c.slice }

// Reset reinitializes the context for a fresh fiber: zeroed registers, an
// empty stack slice, and the given stack pointer and resume address.
// Schedulers use it when recycling a fiber from the pool.
func (c *Context) Reset(sp, lr uint32) {
	c.Regs = RegisterFile{}
	c.SP = sp
	c.LR = lr
	c.slice = c.slice[:0]
}
