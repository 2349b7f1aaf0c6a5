// Package config is the persistent configuration of the tonewave CLI.
//
// The file lives under os.UserConfigDir():
//
//	~/Library/Application Support/tonewave/config.yaml   (macOS)
//	~/.config/tonewave/config.yaml                       (Linux)
//	%AppData%/tonewave/config.yaml                       (Windows)
//
// TONEWAVE_CONFIG_DIR moves it. Environment variables, optionally loaded from
// a .env file, override the file:
//
//	TONEWAVE_ADDR         server.addr
//	TONEWAVE_SAMPLE_RATE  engine.sample_rate
//	TONEWAVE_FRAME_RATE   server.frame_rate
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/haivivi/tonewave/pkg/synth"
)

const (
	appDir     = "tonewave"
	configFile = "config.yaml"

	// EnvConfigDir overrides the configuration directory.
	EnvConfigDir = "TONEWAVE_CONFIG_DIR"

	EnvAddr       = "TONEWAVE_ADDR"
	EnvSampleRate = "TONEWAVE_SAMPLE_RATE"
	EnvFrameRate  = "TONEWAVE_FRAME_RATE"
)

// Server configures `tonewave serve`.
type Server struct {
	Addr      string `yaml:"addr" json:"addr"`
	FrameRate int    `yaml:"frame_rate" json:"frameRate"`
	ChunkMS   int    `yaml:"chunk_ms" json:"chunkMs"`
}

// Chunk returns the rendered audio frame duration.
func (s Server) Chunk() time.Duration {
	return time.Duration(s.ChunkMS) * time.Millisecond
}

// Config is the CLI configuration.
type Config struct {
	// Dir is the configuration directory.
	Dir string `yaml:"-" json:"-"`

	Engine synth.Config `yaml:"engine" json:"engine"`
	Server Server       `yaml:"server" json:"server"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Engine: synth.DefaultConfig(),
		Server: Server{
			Addr:      ":8080",
			FrameRate: 60,
			ChunkMS:   20,
		},
	}
}

// Dir returns the configuration directory.
func Dir() (string, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir), nil
}

// Load reads the configuration from the default directory.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom reads dir/config.yaml over the defaults and applies environment
// overrides. A missing file is not an error.
func LoadFrom(dir string) (*Config, error) {
	cfg, err := ReadFile(dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadFile reads dir/config.yaml over the defaults without environment
// overrides, so it can be edited and saved back.
func ReadFile(dir string) (*Config, error) {
	cfg := Default()
	cfg.Dir = dir

	data, err := os.ReadFile(cfg.Path())
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", cfg.Path(), err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("config: read %s: %w", cfg.Path(), err)
	}
	return cfg, nil
}

// LoadEnv loads a .env file into the process environment. Variables that are
// already set win. A missing file is ignored.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAddr); ok && v != "" {
		c.Server.Addr = v
	}
	for _, o := range []struct {
		env string
		dst *int
	}{
		{EnvSampleRate, &c.Engine.SampleRate},
		{EnvFrameRate, &c.Server.FrameRate},
	} {
		v, ok := lookup(o.env)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", o.env, v, err)
		}
		*o.dst = n
	}
	return nil
}

// Path returns the configuration file path.
func (c *Config) Path() string {
	return filepath.Join(c.Dir, configFile)
}

// Validate checks the engine and server sections.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("config: engine: %w", err)
	}
	if c.Server.FrameRate <= 0 {
		return fmt.Errorf("config: server: invalid frame rate %d", c.Server.FrameRate)
	}
	if c.Server.ChunkMS <= 0 {
		return fmt.Errorf("config: server: invalid chunk %dms", c.Server.ChunkMS)
	}
	return nil
}

// Save writes the configuration file, creating the directory.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(c.Path(), data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", c.Path(), err)
	}
	return nil
}

type field struct {
	get func(*Config) string
	set func(*Config, string) error
}

func intField(p func(*Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*p(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			*p(c) = n
			return err
		},
	}
}

func floatField(p func(*Config) *float64) field {
	return field{
		get: func(c *Config) string { return strconv.FormatFloat(*p(c), 'g', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			*p(c) = f
			return err
		},
	}
}

func boolField(p func(*Config) *bool) field {
	return field{
		get: func(c *Config) string { return strconv.FormatBool(*p(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			*p(c) = b
			return err
		},
	}
}

var fields = map[string]field{
	"engine.sample_rate":    intField(func(c *Config) *int { return &c.Engine.SampleRate }),
	"engine.tap_resolution": intField(func(c *Config) *int { return &c.Engine.TapResolution }),
	"engine.smoothing":      floatField(func(c *Config) *float64 { return &c.Engine.Smoothing }),
	"engine.min_decibels":   floatField(func(c *Config) *float64 { return &c.Engine.MinDecibels }),
	"engine.max_decibels":   floatField(func(c *Config) *float64 { return &c.Engine.MaxDecibels }),
	"engine.broadcast":      boolField(func(c *Config) *bool { return &c.Engine.Broadcast }),
	"engine.offload":        boolField(func(c *Config) *bool { return &c.Engine.Offload }),
	"server.addr": {
		get: func(c *Config) string { return c.Server.Addr },
		set: func(c *Config, v string) error { c.Server.Addr = v; return nil },
	},
	"server.frame_rate": intField(func(c *Config) *int { return &c.Server.FrameRate }),
	"server.chunk_ms":   intField(func(c *Config) *int { return &c.Server.ChunkMS }),
}

// Keys returns the settable keys in order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of a dotted key such as "engine.sample_rate".
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("config: unknown key %q", key)
	}
	return f.get(c), nil
}

// Set parses value into a dotted key and validates the result. On error the
// configuration is unchanged.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("config: unknown key %q", key)
	}
	next := *c
	if err := f.set(&next, value); err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
