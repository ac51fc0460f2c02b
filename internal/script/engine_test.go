package script

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/solenoidlabs/fray/internal/board"
)

// newTestEngine builds a board plus engine with serial output captured.
func newTestEngine(t *testing.T, opts board.Options) (*Engine, *board.Board, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	if opts.Logger == nil {
		opts.Logger = board.NullLogger
	}
	if opts.SerialWriter == nil {
		opts.SerialWriter = out
	}
	b, err := board.New(opts)
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	e := New(b)
	t.Cleanup(e.Close)
	return e, b, out
}

// writeScript drops Lua source into a temp file.
func writeScript(t *testing.T, code string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "program.lua")
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func TestEngine_SandboxStripsLoaders(t *testing.T) {
	e, _, _ := newTestEngine(t, board.Options{})

	err := e.DoString(`
		for _, name in ipairs({"dofile", "loadfile", "load", "loadstring"}) do
			if _G[name] ~= nil then
				error(name .. " leaked through the sandbox")
			end
		end
	`)
	if err != nil {
		t.Fatalf("sandbox check: %v", err)
	}
}

func TestEngine_RequireWhitelist(t *testing.T) {
	e, _, _ := newTestEngine(t, board.Options{})

	err := e.DoString(`
		local f = require("fray")
		if type(f) ~= "table" then error("require('fray') is not a table") end
		if type(require("math").floor) ~= "function" then error("math missing") end
	`)
	if err != nil {
		t.Fatalf("whitelisted require: %v", err)
	}

	err = e.DoString(`require("os")`)
	if err == nil {
		t.Fatal("require('os') should fail")
	}
	if !strings.Contains(err.Error(), "not available") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEngine_PrintGoesToSerial(t *testing.T) {
	e, _, out := newTestEngine(t, board.Options{})

	if err := e.DoString(`print("hi", 42, true)`); err != nil {
		t.Fatalf("print: %v", err)
	}
	if got, want := out.String(), "hi\t42\ttrue\r\n"; got != want {
		t.Errorf("serial output = %q, want %q", got, want)
	}
}

func TestEngine_SyntaxError(t *testing.T) {
	e, _, _ := newTestEngine(t, board.Options{})

	err := e.DoString(`this is not lua`)
	if err == nil {
		t.Fatal("expected a parse error")
	}
	var serr *ScriptError
	if !errors.As(err, &serr) {
		t.Fatalf("error type = %T, want *ScriptError", err)
	}
	if serr.Chunk != "inline" {
		t.Errorf("chunk = %q, want %q", serr.Chunk, "inline")
	}
}

func TestEngine_Closed(t *testing.T) {
	e, _, _ := newTestEngine(t, board.Options{})

	e.Close()
	if !e.Closed() {
		t.Fatal("Closed() should report true")
	}
	if err := e.DoString(`x = 1`); !errors.Is(err, ErrClosed) {
		t.Errorf("error = %v, want ErrClosed", err)
	}
	// Closing twice is fine.
	e.Close()
}

func TestEngine_ProgramRunsOnBoard(t *testing.T) {
	e, b, _ := newTestEngine(t, board.Options{})
	path := writeScript(t, `
		fray.display.plot(2, 2)
		fray.sleep(10)
		fray.halt()
	`)

	if err := b.Run(context.Background(), e.Program(path)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := b.Display().Image().Pixel(2, 2); got != 255 {
		t.Errorf("pixel (2,2) = %d, want 255", got)
	}
}

func TestEngine_ProgramErrorFaultsBoard(t *testing.T) {
	e, b, _ := newTestEngine(t, board.Options{})
	path := writeScript(t, `error("boom")`)

	if err := b.Run(context.Background(), e.Program(path)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := b.Display().FaultCode(); got != board.PanicScriptError {
		t.Errorf("fault code = %d, want %d", got, board.PanicScriptError)
	}
}

func TestEngine_MissingScriptFaultsBoard(t *testing.T) {
	e, b, _ := newTestEngine(t, board.Options{})

	path := filepath.Join(t.TempDir(), "absent.lua")
	if err := b.Run(context.Background(), e.Program(path)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := b.Display().FaultCode(); got != board.PanicScriptError {
		t.Errorf("fault code = %d, want %d", got, board.PanicScriptError)
	}
}

func TestEngine_SpawnSharesGlobals(t *testing.T) {
	e, b, _ := newTestEngine(t, board.Options{})
	path := writeScript(t, `
		done = false
		fray.spawn(function()
			fray.sleep(5)
			done = true
		end)
		fray.sleep(20)
		fray.halt()
	`)

	if err := b.Run(context.Background(), e.Program(path)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := e.DoString(`if done ~= true then error("spawned fiber never ran") end`); err != nil {
		t.Fatal(err)
	}
}

func TestEngine_SpawnedFibersInterleave(t *testing.T) {
	e, b, out := newTestEngine(t, board.Options{})
	path := writeScript(t, `
		local function worker(tag, period)
			return function()
				for i = 1, 3 do
					fray.sleep(period)
					print(tag .. i)
				end
			end
		end
		fray.spawn(worker("a", 10))
		fray.spawn(worker("b", 15))
		fray.sleep(100)
		fray.halt()
	`)

	if err := b.Run(context.Background(), e.Program(path)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Sleeps of 10 and 15 interleave the workers: b1 lands between a1
	// and a3.
	output := out.String()
	for _, line := range []string{"a1", "a2", "a3", "b1", "b2", "b3"} {
		if !strings.Contains(output, line+"\r\n") {
			t.Errorf("output missing %q:\n%s", line, output)
		}
	}
	if !(strings.Index(output, "a1") < strings.Index(output, "b1") &&
		strings.Index(output, "b1") < strings.Index(output, "a3")) {
		t.Errorf("workers did not interleave:\n%s", output)
	}
}

func TestEngine_TicksAdvance(t *testing.T) {
	e, b, _ := newTestEngine(t, board.Options{})
	path := writeScript(t, `
		local before = fray.ticks()
		fray.sleep(25)
		elapsed = fray.ticks() - before
		fray.halt()
	`)

	if err := b.Run(context.Background(), e.Program(path)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := e.DoString(`if elapsed < 25 then error("elapsed " .. elapsed) end`); err != nil {
		t.Fatal(err)
	}
}

func TestEngine_NameMatchesBoard(t *testing.T) {
	e, b, _ := newTestEngine(t, board.Options{})

	if err := e.DoString(`boardname = fray.name()`); err != nil {
		t.Fatalf("name: %v", err)
	}
	want := b.Name()
	err := e.DoString(`if boardname ~= "` + want + `" then error("name was " .. boardname) end`)
	if err != nil {
		t.Fatal(err)
	}
}
