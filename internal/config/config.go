package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Actuator  ActuatorConfig  `yaml:"actuator"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Surface   SurfaceConfig   `yaml:"surface"`
	Speed     SpeedConfig     `yaml:"speed"`
	Servos    ServoConfig     `yaml:"servos"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Listen    ListenConfig    `yaml:"listen"`
	Console   ConsoleConfig   `yaml:"console"`
}

type ActuatorConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMS int    `yaml:"timeout_ms"`
	Enabled   bool   `yaml:"enabled"`
}

type DispatchConfig struct {
	RateHz         int `yaml:"rate_hz"`
	FlushTimeoutMS int `yaml:"flush_timeout_ms"`
}

type SurfaceConfig struct {
	OuterRadius float64 `yaml:"outer_radius"`
	KeyRadius   float64 `yaml:"key_radius"`
	// Screen units per terminal cell, used by the console mouse mapping.
	CellWidth  float64 `yaml:"cell_width"`
	CellHeight float64 `yaml:"cell_height"`
}

type RangeConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

type SpeedConfig struct {
	MaxTranslate   float64     `yaml:"max_translate"`
	MaxRotate      float64     `yaml:"max_rotate"`
	TranslateRange RangeConfig `yaml:"translate_range"`
	RotateRange    RangeConfig `yaml:"rotate_range"`
}

type ServoConfig struct {
	InitialAngles []float64 `yaml:"initial_angles"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type TelemetryConfig struct {
	File string `yaml:"file"`
}

type ConsoleConfig struct {
	// Terminals report no key release; a key counts as held this long
	// after its last press or autorepeat.
	KeyPulseMS int  `yaml:"key_pulse_ms"`
	Mouse      bool `yaml:"mouse"`
}

type ListenConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Default mirrors the values the operator panel shipped with.
func Default() *Config {
	return &Config{
		Actuator: ActuatorConfig{
			BaseURL:   "http://127.0.0.1:5000/api",
			TimeoutMS: 500,
			Enabled:   true,
		},
		Dispatch: DispatchConfig{
			RateHz:         10,
			FlushTimeoutMS: 500,
		},
		Surface: SurfaceConfig{
			OuterRadius: 90,
			KeyRadius:   60,
			CellWidth:   6,
			CellHeight:  12,
		},
		Speed: SpeedConfig{
			MaxTranslate:   1.5,
			MaxRotate:      0.769,
			TranslateRange: RangeConfig{Min: 0, Max: 1.5},
			RotateRange:    RangeConfig{Min: 0, Max: 0.769},
		},
		Servos: ServoConfig{
			InitialAngles: []float64{135, 135, 135, 135, 135, 135, 90},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Listen: ListenConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Console: ConsoleConfig{
			KeyPulseMS: 500,
			Mouse:      true,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) TickInterval() time.Duration {
	if c.Dispatch.RateHz <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.Dispatch.RateHz)
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Actuator.TimeoutMS) * time.Millisecond
}

// ControlTimeout bounds one periodic control request. It never reaches the
// tick interval so a slow actuator cannot hold a tick past the next one.
func (c *Config) ControlTimeout() time.Duration {
	timeout := c.RequestTimeout()
	limit := c.TickInterval() * 9 / 10
	if limit > 0 && timeout > limit {
		return limit
	}
	return timeout
}

func (c *Config) FlushTimeout() time.Duration {
	return time.Duration(c.Dispatch.FlushTimeoutMS) * time.Millisecond
}

func (c *Config) KeyPulse() time.Duration {
	return time.Duration(c.Console.KeyPulseMS) * time.Millisecond
}

func (c *Config) Validate() error {
	if c.Actuator.BaseURL == "" {
		return fmt.Errorf("%w: actuator.base_url is empty", ErrInvalidConfig)
	}
	if c.Dispatch.RateHz <= 0 {
		return fmt.Errorf("%w: dispatch.rate_hz must be positive, got %d", ErrInvalidConfig, c.Dispatch.RateHz)
	}
	if c.Actuator.TimeoutMS <= 0 {
		return fmt.Errorf("%w: actuator.timeout_ms must be positive, got %d", ErrInvalidConfig, c.Actuator.TimeoutMS)
	}
	if c.Dispatch.FlushTimeoutMS <= 0 {
		return fmt.Errorf("%w: dispatch.flush_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.Surface.OuterRadius <= 0 {
		return fmt.Errorf("%w: surface.outer_radius must be positive", ErrInvalidConfig)
	}
	if c.Surface.KeyRadius <= 0 || c.Surface.KeyRadius > c.Surface.OuterRadius {
		return fmt.Errorf("%w: surface.key_radius must be in (0, outer_radius]", ErrInvalidConfig)
	}
	if c.Surface.CellWidth <= 0 || c.Surface.CellHeight <= 0 {
		return fmt.Errorf("%w: surface cell size must be positive", ErrInvalidConfig)
	}
	if c.Console.KeyPulseMS <= 0 {
		return fmt.Errorf("%w: console.key_pulse_ms must be positive", ErrInvalidConfig)
	}
	if err := checkLimit("speed.max_translate", c.Speed.MaxTranslate, c.Speed.TranslateRange); err != nil {
		return err
	}
	if err := checkLimit("speed.max_rotate", c.Speed.MaxRotate, c.Speed.RotateRange); err != nil {
		return err
	}
	return nil
}

func checkLimit(name string, v float64, r RangeConfig) error {
	if r.Min < 0 || r.Max < r.Min {
		return fmt.Errorf("%w: %s range [%g, %g] is malformed", ErrInvalidConfig, name, r.Min, r.Max)
	}
	if v < r.Min || v > r.Max {
		return fmt.Errorf("%w: %s %g outside [%g, %g]", ErrInvalidConfig, name, v, r.Min, r.Max)
	}
	return nil
}
