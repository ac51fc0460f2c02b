package script

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/solenoidlabs/fray/internal/board"
	"github.com/solenoidlabs/fray/internal/fiber"
)

// Engine wraps a sandboxed Lua state bound to one board. All methods
// are baton-domain calls: they must run on a fiber or before the
// scheduler starts.
type Engine struct {
	L   *lua.LState
	brd *board.Board
	log *board.Logger

	closed bool
}

// New creates a sandboxed engine bound to b.
func New(b *board.Board) *Engine {
	e := &Engine{
		brd: b,
		log: b.Logger().WithComponent("script"),
	}

	e.L = lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	openSafeLibraries(e.L)
	e.installSandbox()
	e.installAPI()

	return e
}

// openSafeLibraries opens only safe Lua standard libraries.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// installSandbox removes the escape hatches the base library ships
// with and replaces require and print with board-aware versions.
func (e *Engine) installSandbox() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		e.L.SetGlobal(name, lua.LNil)
	}
	e.installRequire()
	e.installPrint()
}

// installRequire maps module names onto tables that already exist in
// the sandbox. Anything else raises an error; scripts cannot load
// files.
func (e *Engine) installRequire() {
	e.L.SetGlobal("require", e.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		switch name {
		case "fray", "string", "table", "math":
			L.Push(L.GetGlobal(name))
			return 1
		}
		L.RaiseError("module %q is not available", name)
		return 0
	}))
}

// installPrint routes print to the serial console.
func (e *Engine) installPrint() {
	e.L.SetGlobal("print", e.L.NewFunction(func(L *lua.LState) int {
		top := L.GetTop()
		parts := make([]string, 0, top)
		for i := 1; i <= top; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		_, _ = e.brd.Serial().WriteString(strings.Join(parts, "\t") + "\r\n")
		return 0
	}))
}

// installAPI builds the global fray table from the API modules and the
// root functions.
func (e *Engine) installAPI() {
	L := e.L
	root := L.NewTable()

	for _, m := range []module{
		&displayModule{e},
		&buttonModule{e},
		&pinsModule{e},
		&serialModule{e},
		&busModule{e},
	} {
		L.SetField(root, m.Name(), m.Register(L))
	}

	L.SetField(root, "sleep", L.NewFunction(e.sleep))
	L.SetField(root, "ticks", L.NewFunction(e.ticks))
	L.SetField(root, "spawn", L.NewFunction(e.spawn))
	L.SetField(root, "halt", L.NewFunction(e.halt))
	L.SetField(root, "panic", L.NewFunction(e.panicFn))
	L.SetField(root, "name", L.NewFunction(e.name))
	L.SetField(root, "temperature", L.NewFunction(e.temperature))

	L.SetGlobal("fray", root)
}

// sleep(ms)
// Parks the calling fiber for ms milliseconds of board time.
func (e *Engine) sleep(L *lua.LState) int {
	ms := L.CheckInt(1)
	if ms < 0 {
		L.ArgError(1, "sleep time cannot be negative")
		return 0
	}
	e.brd.Scheduler().Sleep(uint64(ms))
	return 0
}

// ticks() -> number
// Returns milliseconds since boot.
func (e *Engine) ticks(L *lua.LState) int {
	L.Push(lua.LNumber(e.brd.Scheduler().Ticks()))
	return 1
}

// spawn(fn)
// Starts fn on a new fiber with its own Lua thread.
func (e *Engine) spawn(L *lua.LState) int {
	fn := L.CheckFunction(1)
	_, err := e.brd.Scheduler().SpawnFunc(func() {
		e.callHandler(fn)
	}, fiber.WithName("lua"))
	if err != nil {
		L.RaiseError("spawn: %v", err)
	}
	return 0
}

// halt()
// Stops the scheduler once every live fiber has yielded.
func (e *Engine) halt(L *lua.LState) int {
	e.brd.Scheduler().Halt()
	return 0
}

// panic(code)
// Faults the board with the given code.
func (e *Engine) panicFn(L *lua.LState) int {
	e.brd.Panic(L.CheckInt(1))
	return 0
}

// name() -> string
// Returns the board's friendly name.
func (e *Engine) name(L *lua.LState) int {
	L.Push(lua.LString(e.brd.Name()))
	return 1
}

// temperature() -> number
// Returns the die temperature in whole degrees Celsius.
func (e *Engine) temperature(L *lua.LState) int {
	L.Push(lua.LNumber(e.brd.Thermometer().Temperature()))
	return 1
}

// callHandler invokes a Lua function on a fresh thread. Threads share
// globals with the root state but keep their own call stack, so a
// handler that parks its fiber mid-call cannot disturb code running on
// other fibers.
func (e *Engine) callHandler(fn *lua.LFunction, args ...lua.LValue) {
	if e.closed {
		return
	}
	co, cancel := e.L.NewThread()
	if cancel != nil {
		defer cancel()
	}
	err := co.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
	if err != nil {
		e.log.Error("handler: %v", err)
	}
}

// DoFile executes the script at path on the calling fiber.
func (e *Engine) DoFile(path string) error {
	if e.closed {
		return ErrClosed
	}
	if err := e.protect(func() error { return e.L.DoFile(path) }); err != nil {
		return &ScriptError{Chunk: path, Err: err}
	}
	return nil
}

// DoString executes code on the calling fiber.
func (e *Engine) DoString(code string) error {
	if e.closed {
		return ErrClosed
	}
	if err := e.protect(func() error { return e.L.DoString(code) }); err != nil {
		return &ScriptError{Chunk: "inline", Err: err}
	}
	return nil
}

// protect converts a panic inside the interpreter into an error.
func (e *Engine) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Program adapts the script at path into a board program. A script
// error faults the board; the log carries the message.
func (e *Engine) Program(path string) func(*board.Board) {
	return func(b *board.Board) {
		if err := e.DoFile(path); err != nil {
			e.log.Error("%v", err)
			b.Panic(board.PanicScriptError)
		}
	}
}

// Close releases the interpreter. The engine is unusable afterwards.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.L.Close()
}

// Closed reports whether Close has been called.
func (e *Engine) Closed() bool {
	return e.closed
}
