// Package config loads daemon settings from an optional YAML file and
// command-line flags. Flags given explicitly override the file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/debounced/internal/debounce"
	"github.com/sweeney/debounced/internal/gpio"
)

// Input sources.
const (
	InputStdin = "stdin"
	InputGPIO  = "gpio"
)

var (
	ErrUnknownInput = errors.New("config: input must be stdin or gpio")
	ErrPoll         = errors.New("config: poll must be positive for gpio input")
	ErrPin          = errors.New("config: pin must not be negative")
	ErrHeartbeat    = errors.New("config: heartbeat must not be negative")
)

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

// UnmarshalYAML parses strings like "300ms" or "1m30s".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the complete daemon configuration.
type Config struct {
	ID    string `yaml:"id"`
	Input string `yaml:"input"`

	Chip      string   `yaml:"chip"`
	Pin       int      `yaml:"pin"`
	ActiveLow bool     `yaml:"active_low"`
	Poll      Duration `yaml:"poll"`

	Delay    Duration `yaml:"delay"`
	MaxWait  Duration `yaml:"max_wait"`
	Leading  bool     `yaml:"leading"`
	Trailing bool     `yaml:"trailing"`

	MinLength int    `yaml:"min_length"`
	Trim      bool   `yaml:"trim"`
	SkipEmpty bool   `yaml:"skip_empty"`
	Pattern   string `yaml:"pattern"`

	Broker    string   `yaml:"broker"`
	HTTP      string   `yaml:"http"`
	Heartbeat Duration `yaml:"heartbeat"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Input:     InputStdin,
		Chip:      gpio.DefaultChip,
		Pin:       gpio.DefaultPin,
		Poll:      Duration(10 * time.Millisecond),
		Delay:     Duration(300 * time.Millisecond),
		Trailing:  true,
		SkipEmpty: true,
		HTTP:      ":8080",
		Heartbeat: Duration(15 * time.Minute),
	}
}

// Load reads a YAML file over the defaults. Unknown keys are errors.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse builds the configuration from args (without the program name).
// If -config names a file, it supplies the defaults for every flag that is
// not given explicitly.
func Parse(name string, args []string) (Config, error) {
	cfg := Default()
	fs := newFlagSet(name, &cfg)
	path := fs.String("config", "", "YAML config file")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if *path != "" {
		fileCfg, err := Load(*path)
		if err != nil {
			return cfg, err
		}
		// Parse again on top of the file so explicit flags win.
		cfg = fileCfg
		fs = newFlagSet(name, &cfg)
		fs.String("config", "", "YAML config file")
		if err := fs.Parse(args); err != nil {
			return cfg, err
		}
	}

	return cfg, cfg.Validate()
}

func newFlagSet(name string, c *Config) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	fs.StringVar(&c.ID, "id", c.ID, "Instance ID used in MQTT topics (empty = random)")
	fs.StringVar(&c.Input, "input", c.Input, "Input source: stdin or gpio")
	fs.StringVar(&c.Chip, "chip", c.Chip, "GPIO chip device")
	fs.IntVar(&c.Pin, "pin", c.Pin, "BCM pin number of the input line")
	fs.BoolVar(&c.ActiveLow, "active-low", c.ActiveLow, "Treat the input line as active low")
	fs.DurationVar((*time.Duration)(&c.Poll), "poll", time.Duration(c.Poll), "GPIO polling interval")
	fs.DurationVar((*time.Duration)(&c.Delay), "delay", time.Duration(c.Delay), "Debounce delay")
	fs.DurationVar((*time.Duration)(&c.MaxWait), "max-wait", time.Duration(c.MaxWait), "Longest a value may wait during continuous input (0 = unbounded)")
	fs.BoolVar(&c.Leading, "leading", c.Leading, "Emit on the leading edge of a burst")
	fs.BoolVar(&c.Trailing, "trailing", c.Trailing, "Emit on the trailing edge of a burst")
	fs.IntVar(&c.MinLength, "min-length", c.MinLength, "Minimum search term length")
	fs.BoolVar(&c.Trim, "trim", c.Trim, "Trim whitespace from search terms")
	fs.BoolVar(&c.SkipEmpty, "skip-empty", c.SkipEmpty, "Never save empty input")
	fs.StringVar(&c.Pattern, "pattern", c.Pattern, "Regular expression a value must match to be valid (empty = anything)")
	fs.StringVar(&c.Broker, "broker", c.Broker, "MQTT broker address (empty to disable)")
	fs.StringVar(&c.HTTP, "http", c.HTTP, "HTTP status address (empty to disable)")
	fs.DurationVar((*time.Duration)(&c.Heartbeat), "heartbeat", time.Duration(c.Heartbeat), "Heartbeat interval (0 to disable)")

	return fs
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.Input != InputStdin && c.Input != InputGPIO {
		return fmt.Errorf("%w: got %q", ErrUnknownInput, c.Input)
	}
	if c.Input == InputGPIO && c.Poll <= 0 {
		return ErrPoll
	}
	if c.Pin < 0 {
		return ErrPin
	}
	if c.Heartbeat < 0 {
		return ErrHeartbeat
	}
	if c.MinLength < 0 {
		return fmt.Errorf("config: min_length must not be negative: got %d", c.MinLength)
	}
	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.Matcher(); err != nil {
		return err
	}
	return nil
}

// Policy returns the debounce policy shared by every pipeline stage.
func (c Config) Policy() debounce.Policy {
	opts := []debounce.Option{debounce.WithMaxWait(time.Duration(c.MaxWait))}
	if c.Leading {
		opts = append(opts, debounce.WithLeading())
	}
	if !c.Trailing {
		opts = append(opts, debounce.WithoutTrailing())
	}
	return debounce.NewPolicy(time.Duration(c.Delay), opts...)
}

// Matcher compiles Pattern. It returns nil when no pattern is set.
func (c Config) Matcher() (*regexp.Regexp, error) {
	if c.Pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(c.Pattern)
	if err != nil {
		return nil, fmt.Errorf("config: pattern: %w", err)
	}
	return re, nil
}
