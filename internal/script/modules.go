package script

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/solenoidlabs/fray/internal/bus"
	"github.com/solenoidlabs/fray/internal/device/button"
	"github.com/solenoidlabs/fray/internal/device/display"
	"github.com/solenoidlabs/fray/internal/device/pin"
)

// module is one table under the global fray namespace.
type module interface {
	// Name is the field the module is installed under.
	Name() string

	// Register builds the module's function table.
	Register(L *lua.LState) *lua.LTable
}

// displayModule implements fray.display.
type displayModule struct {
	e *Engine
}

func (m *displayModule) Name() string { return "display" }

func (m *displayModule) Register(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "scroll", L.NewFunction(m.scroll))
	L.SetField(t, "show", L.NewFunction(m.show))
	L.SetField(t, "plot", L.NewFunction(m.plot))
	L.SetField(t, "unplot", L.NewFunction(m.unplot))
	L.SetField(t, "point", L.NewFunction(m.point))
	L.SetField(t, "clear", L.NewFunction(m.clear))
	L.SetField(t, "brightness", L.NewFunction(m.brightness))
	L.SetField(t, "rotate", L.NewFunction(m.rotate))
	L.SetField(t, "stop", L.NewFunction(m.stop))
	return t
}

// scroll(text [, speed_ms])
// Scrolls text across the display, returning once it has run off the
// edge.
func (m *displayModule) scroll(L *lua.LState) int {
	text := L.CheckString(1)
	speed := L.OptInt(2, display.DefaultScrollSpeed)
	if speed <= 0 {
		L.ArgError(2, "speed must be positive")
		return 0
	}
	m.e.brd.Display().ScrollString(text, uint64(speed))
	return 0
}

// show(text [, delay_ms])
// Prints text one character at a time, returning when done. A single
// character is painted immediately and stays on screen.
func (m *displayModule) show(L *lua.LState) int {
	text := L.CheckString(1)
	delay := L.OptInt(2, display.DefaultPrintSpeed)
	if delay <= 0 {
		L.ArgError(2, "delay must be positive")
		return 0
	}
	if len(text) == 1 {
		m.e.brd.Display().PrintChar(text[0])
		return 0
	}
	m.e.brd.Display().PrintString(text, uint64(delay))
	return 0
}

// plot(x, y [, brightness])
// Lights the pixel at x, y. Brightness defaults to full.
func (m *displayModule) plot(L *lua.LState) int {
	x := L.CheckInt(1)
	y := L.CheckInt(2)
	v := L.OptInt(3, 255)
	if v < 0 || v > 255 {
		L.ArgError(3, "brightness must be 0..255")
		return 0
	}
	d := m.e.brd.Display()
	d.Image().SetPixel(x, y, uint8(v))
	d.Touch()
	return 0
}

// unplot(x, y)
// Clears the pixel at x, y.
func (m *displayModule) unplot(L *lua.LState) int {
	x := L.CheckInt(1)
	y := L.CheckInt(2)
	d := m.e.brd.Display()
	d.Image().SetPixel(x, y, 0)
	d.Touch()
	return 0
}

// point(x, y) -> number
// Returns the brightness of the pixel at x, y.
func (m *displayModule) point(L *lua.LState) int {
	x := L.CheckInt(1)
	y := L.CheckInt(2)
	L.Push(lua.LNumber(m.e.brd.Display().Image().Pixel(x, y)))
	return 1
}

// clear()
// Blanks the display and stops any running animation.
func (m *displayModule) clear(L *lua.LState) int {
	m.e.brd.Display().Clear()
	return 0
}

// brightness([level]) -> number
// Sets the display brightness when given, returns the current level.
func (m *displayModule) brightness(L *lua.LState) int {
	d := m.e.brd.Display()
	if L.GetTop() >= 1 {
		if err := d.SetBrightness(L.CheckInt(1)); err != nil {
			L.RaiseError("brightness: %v", err)
			return 0
		}
	}
	L.Push(lua.LNumber(d.Brightness()))
	return 1
}

// rotate(degrees)
// Rotates the display to 0, 90, 180 or 270 degrees.
func (m *displayModule) rotate(L *lua.LState) int {
	var r display.Rotation
	switch deg := L.CheckInt(1); deg {
	case 0:
		r = display.Rotation0
	case 90:
		r = display.Rotation90
	case 180:
		r = display.Rotation180
	case 270:
		r = display.Rotation270
	default:
		L.ArgError(1, "rotation must be 0, 90, 180 or 270")
		return 0
	}
	if err := m.e.brd.Display().RotateTo(r); err != nil {
		L.RaiseError("rotate: %v", err)
	}
	return 0
}

// stop()
// Cancels the running animation, leaving the frame as it is.
func (m *displayModule) stop(L *lua.LState) int {
	m.e.brd.Display().StopAnimation()
	return 0
}

// buttonModule implements fray.button.
type buttonModule struct {
	e *Engine
}

func (m *buttonModule) Name() string { return "button" }

var buttonEvents = map[string]int{
	"down":       button.EventDown,
	"up":         button.EventUp,
	"click":      button.EventClick,
	"long_click": button.EventLongClick,
	"hold":       button.EventHold,
}

func (m *buttonModule) Register(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "is_pressed", L.NewFunction(m.isPressed))
	L.SetField(t, "on", L.NewFunction(m.on))
	return t
}

// byName resolves "a" or "b" to the device.
func (m *buttonModule) byName(L *lua.LState, arg int) *button.Button {
	switch strings.ToLower(L.CheckString(arg)) {
	case "a":
		return m.e.brd.ButtonA()
	case "b":
		return m.e.brd.ButtonB()
	}
	L.ArgError(arg, `button must be "a" or "b"`)
	return nil
}

// is_pressed(name) -> bool
// Reports whether the named button is held down right now.
func (m *buttonModule) isPressed(L *lua.LState) int {
	b := m.byName(L, 1)
	L.Push(lua.LBool(b.IsPressed()))
	return 1
}

// on(name, event, fn)
// Runs fn each time the named button fires the event: "down", "up",
// "click", "long_click" or "hold". Registrations are permanent.
func (m *buttonModule) on(L *lua.LState) int {
	b := m.byName(L, 1)
	eventName := L.CheckString(2)
	fn := L.CheckFunction(3)

	code, ok := buttonEvents[eventName]
	if !ok {
		L.ArgError(2, "unknown button event "+eventName)
		return 0
	}

	e := m.e
	e.brd.Bus().ListenFunc(b.ID(), code, func(bus.Event) {
		e.callHandler(fn)
	})
	return 0
}

// pinsModule implements fray.pins.
type pinsModule struct {
	e *Engine
}

func (m *pinsModule) Name() string { return "pins" }

func (m *pinsModule) Register(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "digital_write", L.NewFunction(m.digitalWrite))
	L.SetField(t, "digital_read", L.NewFunction(m.digitalRead))
	L.SetField(t, "analog_write", L.NewFunction(m.analogWrite))
	L.SetField(t, "analog_read", L.NewFunction(m.analogRead))
	L.SetField(t, "servo_write", L.NewFunction(m.servoWrite))
	L.SetField(t, "is_touched", L.NewFunction(m.isTouched))
	L.SetField(t, "watch", L.NewFunction(m.watch))
	L.SetField(t, "id", L.NewFunction(m.id))
	return t
}

// byNumber resolves a pin number to the device.
func (m *pinsModule) byNumber(L *lua.LState, arg int) *pin.Pin {
	n := L.CheckInt(arg)
	p := m.e.brd.IO().Find(fmt.Sprintf("P%d", n))
	if p == nil {
		L.ArgError(arg, fmt.Sprintf("no pin %d", n))
	}
	return p
}

// digital_write(n, value)
// Drives pin n high or low. The value must be 0 or 1.
func (m *pinsModule) digitalWrite(L *lua.LState) int {
	p := m.byNumber(L, 1)
	if err := p.SetDigitalValue(L.CheckInt(2)); err != nil {
		L.RaiseError("pin %s: %v", p.Name(), err)
	}
	return 0
}

// digital_read(n) -> number
// Reconfigures pin n as a digital input and reads 0 or 1.
func (m *pinsModule) digitalRead(L *lua.LState) int {
	p := m.byNumber(L, 1)
	v, err := p.DigitalValue()
	if err != nil {
		L.RaiseError("pin %s: %v", p.Name(), err)
		return 0
	}
	L.Push(lua.LNumber(v))
	return 1
}

// analog_write(n, value)
// Drives a PWM level 0..1023 on pin n.
func (m *pinsModule) analogWrite(L *lua.LState) int {
	p := m.byNumber(L, 1)
	if err := p.SetAnalogValue(L.CheckInt(2)); err != nil {
		L.RaiseError("pin %s: %v", p.Name(), err)
	}
	return 0
}

// analog_read(n) -> number
// Reconfigures pin n as an analog input and reads 0..1023.
func (m *pinsModule) analogRead(L *lua.LState) int {
	p := m.byNumber(L, 1)
	v, err := p.AnalogValue()
	if err != nil {
		L.RaiseError("pin %s: %v", p.Name(), err)
		return 0
	}
	L.Push(lua.LNumber(v))
	return 1
}

// servo_write(n, degrees)
// Positions a servo on pin n, 0..180 degrees.
func (m *pinsModule) servoWrite(L *lua.LState) int {
	p := m.byNumber(L, 1)
	if err := p.SetServoValue(L.CheckInt(2)); err != nil {
		L.RaiseError("pin %s: %v", p.Name(), err)
	}
	return 0
}

// is_touched(n) -> bool
// Reconfigures pin n as a touch sensor and reads it.
func (m *pinsModule) isTouched(L *lua.LState) int {
	p := m.byNumber(L, 1)
	touched, err := p.IsTouched()
	if err != nil {
		L.RaiseError("pin %s: %v", p.Name(), err)
		return 0
	}
	L.Push(lua.LBool(touched))
	return 1
}

// watch(n, enabled)
// Turns edge events on or off for pin n. With events on, level changes
// fire rise and fall events on the pin's source.
func (m *pinsModule) watch(L *lua.LState) int {
	p := m.byNumber(L, 1)
	if L.CheckBool(2) {
		if err := p.EnableEvents(); err != nil {
			L.RaiseError("pin %s: %v", p.Name(), err)
		}
		return 0
	}
	p.DisableEvents()
	return 0
}

// id(n) -> number
// Returns the bus source id of pin n, for use with fray.bus.listen.
func (m *pinsModule) id(L *lua.LState) int {
	L.Push(lua.LNumber(m.byNumber(L, 1).ID()))
	return 1
}

// serialModule implements fray.serial.
type serialModule struct {
	e *Engine
}

func (m *serialModule) Name() string { return "serial" }

func (m *serialModule) Register(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "write", L.NewFunction(m.write))
	L.SetField(t, "read_line", L.NewFunction(m.readLine))
	L.SetField(t, "baud", L.NewFunction(m.baud))
	return t
}

// write(text) -> number
// Sends text to the console, returning the byte count.
func (m *serialModule) write(L *lua.LState) int {
	n, err := m.e.brd.Serial().WriteString(L.CheckString(1))
	if err != nil {
		L.RaiseError("serial write: %v", err)
		return 0
	}
	L.Push(lua.LNumber(n))
	return 1
}

// read_line() -> string | nil
// Reads one line of console input, nil once input is drained.
func (m *serialModule) readLine(L *lua.LState) int {
	line, err := m.e.brd.Serial().ReadLine()
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(line))
	return 1
}

// baud([rate]) -> number
// Sets the console speed when given, returns the current speed.
func (m *serialModule) baud(L *lua.LState) int {
	s := m.e.brd.Serial()
	if L.GetTop() >= 1 {
		if err := s.SetBaud(L.CheckInt(1)); err != nil {
			L.RaiseError("%v", err)
			return 0
		}
	}
	L.Push(lua.LNumber(s.Baud()))
	return 1
}

// busModule implements fray.bus.
type busModule struct {
	e *Engine
}

func (m *busModule) Name() string { return "bus" }

func (m *busModule) Register(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "emit", L.NewFunction(m.emit))
	L.SetField(t, "listen", L.NewFunction(m.listen))
	L.SetField(t, "wait", L.NewFunction(m.wait))
	L.SetField(t, "ANY", lua.LNumber(bus.AnySource))
	return t
}

// emit(source, value)
// Fires an event through the bus.
func (m *busModule) emit(L *lua.LState) int {
	m.e.brd.Emit(L.CheckInt(1), L.CheckInt(2))
	return 0
}

// listen(source, value, fn)
// Runs fn(source, value) on a fresh fiber for every matching event.
// ANY widens either field. Registrations are permanent.
func (m *busModule) listen(L *lua.LState) int {
	source := L.CheckInt(1)
	value := L.CheckInt(2)
	fn := L.CheckFunction(3)

	e := m.e
	e.brd.Bus().ListenFunc(source, value, func(ev bus.Event) {
		e.callHandler(fn, lua.LNumber(ev.Source), lua.LNumber(ev.Value))
	})
	return 0
}

// wait(source, value)
// Parks the calling fiber until a matching event fires.
func (m *busModule) wait(L *lua.LState) int {
	m.e.brd.Scheduler().WaitForEvent(L.CheckInt(1), L.CheckInt(2))
	return 0
}
