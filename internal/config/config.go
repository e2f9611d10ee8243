// Package config loads the configuration of the layerloop demo program, from
// YAML or TOML, and builds its logger.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		Log     LogConfig     `yaml:"log" toml:"log"`
		Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
		Overlay OverlayConfig `yaml:"overlay" toml:"overlay"`

		// StatsOut is a file the final statistics are written to, as JSON.
		StatsOut string `yaml:"stats_out" toml:"stats_out"`

		// Start is the name of the initially selected layer.
		Start string `yaml:"start" toml:"start"`

		Layers []LayerConfig `yaml:"layers" toml:"layers"`

		// ErrorLogRates limits layer failure logs, per phase and layer.
		ErrorLogRates []RateLimit `yaml:"error_log_rates" toml:"error_log_rates"`

		// TargetRate is the target render rate, in hertz.
		TargetRate float64 `yaml:"target_rate" toml:"target_rate"`

		// Frames stops the program after this many frames, if positive.
		Frames int `yaml:"frames" toml:"frames"`
	}

	LogConfig struct {
		// Format is one of "json" (zerolog), "console" (zerolog, human
		// readable), or "stumpy".
		Format string `yaml:"format" toml:"format"`
		Level  string `yaml:"level" toml:"level"`
		// RateLimits applies logiface category rate limits, to log
		// statements that opt in.
		RateLimits []RateLimit `yaml:"rate_limits" toml:"rate_limits"`
	}

	MetricsConfig struct {
		// Addr is the listen address of the /metrics endpoint, disabled if
		// empty.
		Addr      string `yaml:"addr" toml:"addr"`
		Namespace string `yaml:"namespace" toml:"namespace"`
	}

	OverlayConfig struct {
		Enabled  bool     `yaml:"enabled" toml:"enabled"`
		Interval Duration `yaml:"interval" toml:"interval"`
		Column   int      `yaml:"column" toml:"column"`
	}

	// LayerConfig is a periodic demo layer.
	LayerConfig struct {
		Name   string   `yaml:"name" toml:"name"`
		Period Duration `yaml:"period" toml:"period"`
		// FailEvery makes every Nth update fail, if positive.
		FailEvery int `yaml:"fail_every" toml:"fail_every"`
	}

	RateLimit struct {
		Window Duration `yaml:"window" toml:"window"`
		Count  int      `yaml:"count" toml:"count"`
	}

	// Duration is a time.Duration that is encoded as text, e.g. "250ms".
	Duration time.Duration
)

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		Log: LogConfig{
			Format: FormatJSON,
			Level:  `info`,
		},
		Metrics: MetricsConfig{
			Namespace: `layerloop`,
		},
		Overlay: OverlayConfig{
			Interval: Duration(250 * time.Millisecond),
			Column:   80,
		},
		Start: `fast`,
		Layers: []LayerConfig{
			{Name: `fast`, Period: Duration(10 * time.Millisecond)},
			{Name: `slow`, Period: Duration(time.Second)},
			{Name: `flaky`, Period: Duration(100 * time.Millisecond), FailEvery: 7},
		},
		ErrorLogRates: []RateLimit{
			{Window: Duration(time.Second), Count: 5},
			{Window: Duration(time.Minute), Count: 60},
		},
		TargetRate: 60,
	}
}

// Load reads the file at path over the Default configuration, decoding it
// as YAML or TOML, per the file extension. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case `.yaml`, `.yml`:
		// replaced, not merged
		cfg.Layers = nil
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("config: decode %s: %w", path, err)
		}
	case `.toml`:
		cfg.Layers = nil
		md, err := toml.Decode(string(b), &cfg)
		if err != nil {
			return cfg, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) != 0 {
			return cfg, fmt.Errorf("config: decode %s: unknown keys: %v", path, undecoded)
		}
	default:
		return cfg, fmt.Errorf("config: unsupported file extension %q", ext)
	}
	if len(cfg.Layers) == 0 {
		cfg.Layers = Default().Layers
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for errors.
func (x *Config) Validate() error {
	var errs []error
	if !(x.TargetRate > 0) {
		errs = append(errs, fmt.Errorf("target_rate must be positive: %v", x.TargetRate))
	}
	if x.Frames < 0 {
		errs = append(errs, fmt.Errorf("frames must not be negative: %d", x.Frames))
	}
	if _, err := ParseLevel(x.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch x.Log.Format {
	case FormatJSON, FormatConsole, FormatStumpy:
	default:
		errs = append(errs, fmt.Errorf("unknown log format: %q", x.Log.Format))
	}
	names := make(map[string]struct{}, len(x.Layers))
	for i, l := range x.Layers {
		if l.Name == `` {
			errs = append(errs, fmt.Errorf("layers[%d]: missing name", i))
			continue
		}
		if _, ok := names[l.Name]; ok {
			errs = append(errs, fmt.Errorf("layers[%d]: duplicate name %q", i, l.Name))
		}
		names[l.Name] = struct{}{}
		if l.Period <= 0 {
			errs = append(errs, fmt.Errorf("layers[%d]: period must be positive", i))
		}
	}
	if _, ok := names[x.Start]; !ok && x.Start != `` {
		errs = append(errs, fmt.Errorf("start: unknown layer %q", x.Start))
	}
	for _, limits := range [...][]RateLimit{x.ErrorLogRates, x.Log.RateLimits} {
		for _, l := range limits {
			if l.Window <= 0 || l.Count <= 0 {
				errs = append(errs, fmt.Errorf("invalid rate limit: %d per %s", l.Count, l.Window))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// RateMap converts limits to the form accepted by go-catrate, returning nil
// if there are none.
func RateMap(limits []RateLimit) map[time.Duration]int {
	if len(limits) == 0 {
		return nil
	}
	m := make(map[time.Duration]int, len(limits))
	for _, l := range limits {
		m[time.Duration(l.Window)] = l.Count
	}
	return m
}

func (x Duration) String() string {
	return time.Duration(x).String()
}

func (x Duration) MarshalText() ([]byte, error) {
	return []byte(x.String()), nil
}

func (x *Duration) UnmarshalText(text []byte) error {
	d, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*x = Duration(d)
	return nil
}
