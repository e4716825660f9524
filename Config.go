package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is everything the remapper needs at startup.
type Config struct {
	Device        string   `toml:"device"`
	InvertX       bool     `toml:"invert_x"`
	InvertY       bool     `toml:"invert_y"`
	LogFile       string   `toml:"log_file"`
	Grab          bool     `toml:"grab"`
	WaitForDevice bool     `toml:"wait_for_device"`
	IdleInterval  Duration `toml:"idle_interval"`
}

// Duration decodes TOML strings like "1ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ArgumentError is a malformed or incomplete command line.
type ArgumentError struct {
	Msg string
	Err error
}

func (e *ArgumentError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ArgumentError) Unwrap() error { return e.Err }

const usage = "Usage: %s [flags] <input_dev|auto> <invert_y 0|1> <invert_x 0|1> [logfile]\n"

func DefaultConfig() *Config {
	return &Config{
		IdleInterval: Duration{defaultIdleInterval},
	}
}

// LoadConfig decodes a TOML file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Remap returns the axis inversion selection.
func (c *Config) Remap() Remap {
	return Remap{InvertX: c.InvertX, InvertY: c.InvertY}
}

// parseArgs builds the config from flags, an optional TOML file and the
// positional arguments, in increasing precedence.
func parseArgs(name string, args []string, stderr io.Writer) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, usage, name)
		fs.PrintDefaults()
	}

	configPath := fs.String("config", "", "TOML config file (positional arguments override it)")
	grab := fs.Bool("grab", false, "Grab the input device exclusively (EVIOCGRAB)")
	wait := fs.Bool("wait", false, "Wait for the input device node to appear")
	idle := fs.Duration("idle", 0, "Poll interval while the input device is idle")

	if err := fs.Parse(args); err != nil {
		return nil, &ArgumentError{Msg: "invalid flags", Err: err}
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfig(*configPath)
		if err != nil {
			return nil, &ArgumentError{Msg: "load config " + *configPath, Err: err}
		}
		cfg = loaded
	}

	pos := fs.Args()
	if len(pos) < 3 && (*configPath == "" || len(pos) > 0) {
		fs.Usage()
		return nil, &ArgumentError{Msg: fmt.Sprintf("expected at least 3 arguments, got %d", len(pos))}
	}

	if len(pos) >= 3 {
		invertY, err := parseSwitch(pos[1])
		if err != nil {
			return nil, &ArgumentError{Msg: "invert_y", Err: err}
		}
		invertX, err := parseSwitch(pos[2])
		if err != nil {
			return nil, &ArgumentError{Msg: "invert_x", Err: err}
		}
		cfg.Device = pos[0]
		cfg.InvertY = invertY
		cfg.InvertX = invertX
		if len(pos) >= 4 {
			cfg.LogFile = pos[3]
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "grab":
			cfg.Grab = *grab
		case "wait":
			cfg.WaitForDevice = *wait
		case "idle":
			cfg.IdleInterval = Duration{*idle}
		}
	})

	if cfg.Device == "" {
		return nil, &ArgumentError{Msg: "no input device configured"}
	}
	if cfg.IdleInterval.Duration <= 0 {
		cfg.IdleInterval = Duration{defaultIdleInterval}
	}

	return cfg, nil
}

// parseSwitch accepts an integer; any non-zero value enables.
func parseSwitch(s string) (bool, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}
