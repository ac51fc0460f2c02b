// Package mcu models the execution state of a microcontroller-class core:
// a general register file, a stack pointer and link register, and a single
// shared stack region with a fixed top-of-stack boundary. It provides the
// two context-switch primitives the fiber scheduler is built on.
//
// # Memory layout
//
// All fibers execute on one physical stack region. A fiber owns no reserved
// stack of its own; instead, at suspension time the portion of the region it
// is actually using (the active slice) is copied out into a buffer held by
// its Context, and copied back in when it resumes:
//
//	               stack top (fixed, shared)
//	0x20004000 ──► ┌──────────────────┐ ─┐
//	               │  caller frames   │  │ active slice:
//	               │  local storage   │  │ copied to/from the
//	       SP ──►  ├──────────────────┤ ─┘ suspended Context
//	               │                  │
//	               │   (unused)       │   never copied
//	0x20003800 ──► └──────────────────┘
//	               stack base
//
// The copy is bounded by the depth in use at the moment of suspension, not
// by the region size. This is what lets many fibers coexist on a few
// kilobytes of RAM: a fiber that suspends while shallow costs only a few
// words of backing store.
//
// # Primitives
//
// Switch suspends the running fiber into one Context and resumes another
// from its previously populated Context. Snapshot captures the running
// fiber into a Context without transferring control, leaving execution to
// continue in place; the Context can later be resumed as if the fiber had
// been suspended at that exact point.
//
// # Contract
//
// The primitives are not reentrant and perform no locking. The scheduler is
// the sole authorized caller and must guarantee that no two switches ever
// interleave. A Context is meaningful only between a suspend and the
// matching resume; the register file it holds is otherwise stale.
//
// A Context's slice buffer has a fixed capacity, set at allocation. A live
// slice exceeding that capacity at suspend time is a fatal contract
// violation and panics: at this layer there is no state left to recover
// into. The scheduler prevents it by policy, sizing buffers to the region
// and bounding call depth.
package mcu
