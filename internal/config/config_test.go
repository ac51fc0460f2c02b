package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes a TOML file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fray.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	if c.Board.TickPeriodMS != 6 {
		t.Errorf("tick period = %d, want 6", c.Board.TickPeriodMS)
	}
	if c.Fiber.StackWords != 512 {
		t.Errorf("stack words = %d, want 512", c.Fiber.StackWords)
	}
	if !c.Fiber.RealTime {
		t.Error("real time should default on")
	}
	if c.Display.Brightness != 128 {
		t.Errorf("brightness = %d, want 128", c.Display.Brightness)
	}
	if c.Serial.Baud != 115200 {
		t.Errorf("baud = %d, want 115200", c.Serial.Baud)
	}
	if c.Logging.Level != "info" {
		t.Errorf("log level = %q, want info", c.Logging.Level)
	}
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Board.TickPeriodMS != 6 || c.Logging.Level != "info" {
		t.Errorf("missing file changed defaults: %+v", c)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Display.Brightness != 128 {
		t.Errorf("brightness = %d, want 128", c.Display.Brightness)
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	path := writeConfig(t, `
[board]
tick_period_ms = 12
device_id = 0xbabe
pairing_mode = true

[display]
brightness = 40
greyscale = true

[script]
path = "demo.lua"

[logging]
level = "debug"
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if c.Board.TickPeriodMS != 12 {
		t.Errorf("tick period = %d, want 12", c.Board.TickPeriodMS)
	}
	if c.Board.DeviceID != 0xbabe {
		t.Errorf("device id = %#x, want 0xbabe", c.Board.DeviceID)
	}
	if !c.Board.PairingMode {
		t.Error("pairing mode not set")
	}
	if c.Display.Brightness != 40 || !c.Display.Greyscale {
		t.Errorf("display = %+v", c.Display)
	}
	if c.Script.Path != "demo.lua" {
		t.Errorf("script path = %q", c.Script.Path)
	}
	if c.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", c.Logging.Level)
	}

	// Sections the file does not mention keep their defaults.
	if c.Serial.Baud != 115200 {
		t.Errorf("baud = %d, want default 115200", c.Serial.Baud)
	}
	if c.Fiber.MaxFibers != 64 {
		t.Errorf("max fibers = %d, want default 64", c.Fiber.MaxFibers)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[display]
brightness = 40

[logging]
level = "debug"
`)

	t.Setenv("FRAY_BRIGHTNESS", "200")
	t.Setenv("FRAY_LOG_LEVEL", "warn")
	t.Setenv("FRAY_DEVICE_ID", "0xcafe")
	t.Setenv("FRAY_HEADLESS", "true")
	t.Setenv("FRAY_NVRAM_PATH", "/tmp/fray.db")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if c.Display.Brightness != 200 {
		t.Errorf("brightness = %d, want env value 200", c.Display.Brightness)
	}
	if c.Logging.Level != "warn" {
		t.Errorf("log level = %q, want env value warn", c.Logging.Level)
	}
	if c.Board.DeviceID != 0xcafe {
		t.Errorf("device id = %#x, want 0xcafe", c.Board.DeviceID)
	}
	if !c.Sim.Headless {
		t.Error("headless not set from env")
	}
	if c.NVRAM.Path != "/tmp/fray.db" {
		t.Errorf("nvram path = %q", c.NVRAM.Path)
	}
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("FRAY_MAX_FIBERS", "lots")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for non-numeric FRAY_MAX_FIBERS")
	}
	if !strings.Contains(err.Error(), "FRAY_MAX_FIBERS") {
		t.Errorf("error %q does not name the variable", err)
	}
}

func TestLoad_ParseError(t *testing.T) {
	path := writeConfig(t, "[board\ntick_period_ms = 12\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error %T is not a ParseError", err)
	}
	if perr.Path != path {
		t.Errorf("parse error path = %q, want %q", perr.Path, path)
	}
}

func TestValidate_RejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"zero tick period", func(c *Config) { c.Board.TickPeriodMS = 0 }, "board.tick_period_ms"},
		{"zero max fibers", func(c *Config) { c.Fiber.MaxFibers = 0 }, "fiber.max_fibers"},
		{"negative stack", func(c *Config) { c.Fiber.StackWords = -1 }, "fiber.stack_words"},
		{"brightness overflow", func(c *Config) { c.Display.Brightness = 300 }, "display.brightness"},
		{"diagonal rotation", func(c *Config) { c.Display.Rotation = 45 }, "display.rotation"},
		{"zero baud", func(c *Config) { c.Serial.Baud = 0 }, "serial.baud"},
		{"zero refresh", func(c *Config) { c.Sim.RefreshMS = 0 }, "sim.refresh_ms"},
		{"unknown level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)

			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error %T is not a ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.path) {
				t.Errorf("error %q does not name %s", err, tt.path)
			}
		})
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	c := Default()
	c.Board.TickPeriodMS = 0
	c.Display.Rotation = 45
	c.Logging.Level = "loud"

	err := c.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, path := range []string{"board.tick_period_ms", "display.rotation", "logging.level"} {
		if !strings.Contains(err.Error(), path) {
			t.Errorf("error does not mention %s: %v", path, err)
		}
	}
}
