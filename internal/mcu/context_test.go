package mcu

import "testing"

func TestNewContext(t *testing.T) {
	c := NewContext(32)

	if c.Capacity() != 32 {
		t.Errorf("Capacity() = %d, want 32", c.Capacity())
	}
	if c.Depth() != 0 {
		t.Errorf("Depth() = %d, want 0", c.Depth())
	}
}

func TestNewContext_DefaultCapacity(t *testing.T) {
	for _, n := range []int{0, -1} {
		c := NewContext(n)
		if c.Capacity() != DefaultSliceWords {
			t.Errorf("NewContext(%d).Capacity() = %d, want %d", n, c.Capacity(), DefaultSliceWords)
		}
	}
}

func TestContext_Reset(t *testing.T) {
	m := NewMachine(WithStackWords(16))
	c := NewContext(16)

	// Populate via a suspend, then recycle.
	fill(m, 0x40400000, 4)
	m.Snapshot(c)
	if c.Depth() == 0 {
		t.Fatal("snapshot left Depth() = 0, want populated context")
	}

	c.Reset(m.StackTop(), 0x1234)

	if c.Depth() != 0 {
		t.Errorf("Depth() after Reset = %d, want 0", c.Depth())
	}
	if c.SP != m.StackTop() {
		t.Errorf("SP after Reset = 0x%08x, want top", c.SP)
	}
	if c.LR != 0x1234 {
		t.Errorf("LR after Reset = 0x%08x, want 0x1234", c.LR)
	}
	if (c.Regs != RegisterFile{}) {
		t.Errorf("Regs after Reset = %+v, want zero file", c.Regs)
	}
	if c.Capacity() != 16 {
		t.Errorf("Capacity() after Reset = %d, want 16 (buffer retained)", c.Capacity())
	}
}
