// Package script embeds a Lua interpreter wired to the board API, so
// user programs can be written as scripts instead of Go.
//
// The interpreter state is shared between the program fiber and every
// listener fiber. That is safe because the scheduler runs exactly one
// fiber at a time and hands execution over through channels, but each
// fiber still needs its own Lua call stack: a handler that parks its
// fiber mid-call would otherwise leave frames under the next caller's.
// Handlers and spawned functions therefore run on their own Lua thread,
// sharing globals with the root state.
//
// The sandbox opens only the base, table, string and math libraries.
// There is no io, no os, and no loading of further files; the board API
// arrives as the global fray table. A script loop that never sleeps or
// waits starves the scheduler, the same as any fiber that refuses to
// yield.
package script
