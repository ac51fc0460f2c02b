package sim

import (
	"fmt"
	"io"
	"reflect"
	"testing"
)

func TestConsole_SplitsLines(t *testing.T) {
	c := NewConsole(10)
	fmt.Fprint(c, "hello\r\nworld\npart")
	want := []string{"hello", "world", "part"}
	if got := c.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("Lines = %q, want %q", got, want)
	}
}

func TestConsole_JoinsSplitWrites(t *testing.T) {
	c := NewConsole(10)
	io.WriteString(c, "ab")
	io.WriteString(c, "c\n")
	want := []string{"abc"}
	if got := c.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("Lines = %q, want %q", got, want)
	}
}

func TestConsole_DropsOldest(t *testing.T) {
	c := NewConsole(2)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(c, "line %d\n", i)
	}
	want := []string{"line 3", "line 4"}
	if got := c.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("Lines = %q, want %q", got, want)
	}
}
