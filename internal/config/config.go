// Package config loads runtime configuration from three layers: compiled
// defaults, a TOML file, and FRAY_ environment variables. Each layer
// overrides the one below it, and the merged result is validated before
// anything else sees it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "FRAY_"

// Config is the full runtime configuration.
type Config struct {
	Board   BoardConfig   `toml:"board"`
	Fiber   FiberConfig   `toml:"fiber"`
	Display DisplayConfig `toml:"display"`
	Serial  SerialConfig  `toml:"serial"`
	NVRAM   NVRAMConfig   `toml:"nvram"`
	Sim     SimConfig     `toml:"sim"`
	Script  ScriptConfig  `toml:"script"`
	Logging LoggingConfig `toml:"logging"`
}

// BoardConfig configures the board core.
type BoardConfig struct {
	// TickPeriodMS is the system tick period in milliseconds.
	TickPeriodMS int `toml:"tick_period_ms"`

	// DeviceID is the identity word the friendly name derives from.
	// Zero keeps the built-in default.
	DeviceID uint32 `toml:"device_id"`

	// FlashCode is the passcode pairing releases. Zero keeps the
	// built-in default.
	FlashCode uint32 `toml:"flash_code"`

	// PairingMode boots into the interactive pairing session instead of
	// a user program.
	PairingMode bool `toml:"pairing_mode"`
}

// FiberConfig configures the scheduler.
type FiberConfig struct {
	// MaxFibers bounds the live fiber pool.
	MaxFibers int `toml:"max_fibers"`

	// StackWords is the default context stack capacity per fiber.
	StackWords int `toml:"stack_words"`

	// RealTime paces the virtual clock against the wall clock.
	RealTime bool `toml:"real_time"`
}

// DisplayConfig configures the LED matrix.
type DisplayConfig struct {
	// Brightness is the initial brightness, 0..255.
	Brightness int `toml:"brightness"`

	// Rotation is the initial rotation in degrees: 0, 90, 180 or 270.
	Rotation int `toml:"rotation"`

	// Greyscale renders intermediate brightness levels instead of
	// quantizing each pixel to on or off.
	Greyscale bool `toml:"greyscale"`
}

// SerialConfig configures the console.
type SerialConfig struct {
	// Baud is the advertised line rate. Informational in the simulator.
	Baud int `toml:"baud"`
}

// NVRAMConfig configures persistent storage.
type NVRAMConfig struct {
	// Path is the store file. Empty disables persistence.
	Path string `toml:"path"`
}

// SimConfig configures the simulator front end.
type SimConfig struct {
	// Headless disables the terminal UI.
	Headless bool `toml:"headless"`

	// RefreshMS is the terminal repaint interval in milliseconds.
	RefreshMS int `toml:"refresh_ms"`
}

// ScriptConfig configures the Lua program loader.
type ScriptConfig struct {
	// Path is the user program. Empty boots the idle board.
	Path string `toml:"path"`
}

// LoggingConfig configures the runtime logger.
type LoggingConfig struct {
	// Level is the minimum severity: debug, info, warn or error.
	Level string `toml:"level"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		Board: BoardConfig{
			TickPeriodMS: 6,
		},
		Fiber: FiberConfig{
			MaxFibers:  64,
			StackWords: 512,
			RealTime:   true,
		},
		Display: DisplayConfig{
			Brightness: 128,
		},
		Serial: SerialConfig{
			Baud: 115200,
		},
		Sim: SimConfig{
			RefreshMS: 33,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration: defaults, then the TOML file at path
// when it exists, then environment overrides. The merged result is
// validated.
func Load(path string) (*Config, error) {
	c := Default()

	if path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.loadEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// loadFile overlays the TOML file at path. A missing file is not an
// error.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return &ParseError{Path: path, Message: err.Error(), Err: err}
	}
	return nil
}

// envSetters maps environment variables to the settings they override.
var envSetters = map[string]func(*Config, string) error{
	EnvPrefix + "TICK_PERIOD_MS": func(c *Config, v string) error { return setInt(&c.Board.TickPeriodMS, v) },
	EnvPrefix + "DEVICE_ID":      func(c *Config, v string) error { return setUint32(&c.Board.DeviceID, v) },
	EnvPrefix + "FLASH_CODE":     func(c *Config, v string) error { return setUint32(&c.Board.FlashCode, v) },
	EnvPrefix + "PAIRING_MODE":   func(c *Config, v string) error { return setBool(&c.Board.PairingMode, v) },
	EnvPrefix + "MAX_FIBERS":     func(c *Config, v string) error { return setInt(&c.Fiber.MaxFibers, v) },
	EnvPrefix + "STACK_WORDS":    func(c *Config, v string) error { return setInt(&c.Fiber.StackWords, v) },
	EnvPrefix + "REAL_TIME":      func(c *Config, v string) error { return setBool(&c.Fiber.RealTime, v) },
	EnvPrefix + "BRIGHTNESS":     func(c *Config, v string) error { return setInt(&c.Display.Brightness, v) },
	EnvPrefix + "ROTATION":       func(c *Config, v string) error { return setInt(&c.Display.Rotation, v) },
	EnvPrefix + "GREYSCALE":      func(c *Config, v string) error { return setBool(&c.Display.Greyscale, v) },
	EnvPrefix + "BAUD":           func(c *Config, v string) error { return setInt(&c.Serial.Baud, v) },
	EnvPrefix + "NVRAM_PATH":     func(c *Config, v string) error { return setString(&c.NVRAM.Path, v) },
	EnvPrefix + "HEADLESS":       func(c *Config, v string) error { return setBool(&c.Sim.Headless, v) },
	EnvPrefix + "REFRESH_MS":     func(c *Config, v string) error { return setInt(&c.Sim.RefreshMS, v) },
	EnvPrefix + "SCRIPT":         func(c *Config, v string) error { return setString(&c.Script.Path, v) },
	EnvPrefix + "LOG_LEVEL":      func(c *Config, v string) error { return setString(&c.Logging.Level, v) },
}

// loadEnv overlays FRAY_ environment variables.
func (c *Config) loadEnv() error {
	for env, set := range envSetters {
		val, ok := os.LookupEnv(env)
		if !ok {
			continue
		}
		if err := set(c, val); err != nil {
			return fmt.Errorf("environment variable %s: %w", env, err)
		}
	}
	return nil
}

func setString(dst *string, v string) error {
	*dst = v
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

// setUint32 accepts decimal or 0x-prefixed hex, matching TOML integer
// forms.
func setUint32(dst *uint32, v string) error {
	n, err := strconv.ParseUint(v, 0, 32)
	if err != nil {
		return err
	}
	*dst = uint32(n)
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(path, msg string, value any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: value})
	}

	if c.Board.TickPeriodMS <= 0 {
		bad("board.tick_period_ms", "must be positive", c.Board.TickPeriodMS)
	}
	if c.Fiber.MaxFibers <= 0 {
		bad("fiber.max_fibers", "must be positive", c.Fiber.MaxFibers)
	}
	if c.Fiber.StackWords <= 0 {
		bad("fiber.stack_words", "must be positive", c.Fiber.StackWords)
	}
	if c.Display.Brightness < 0 || c.Display.Brightness > 255 {
		bad("display.brightness", "must be 0..255", c.Display.Brightness)
	}
	switch c.Display.Rotation {
	case 0, 90, 180, 270:
	default:
		bad("display.rotation", "must be 0, 90, 180 or 270", c.Display.Rotation)
	}
	if c.Serial.Baud <= 0 {
		bad("serial.baud", "must be positive", c.Serial.Baud)
	}
	if c.Sim.RefreshMS <= 0 {
		bad("sim.refresh_ms", "must be positive", c.Sim.RefreshMS)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		bad("logging.level", "must be debug, info, warn or error", c.Logging.Level)
	}

	return errors.Join(errs...)
}
