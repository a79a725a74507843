package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPath names the environment variable that overrides the config path.
const EnvPath = "ECSRENDER_CONFIG"

const DefaultPath = "config/engine.toml"

type Config struct {
	Engine  EngineConfig  `toml:"engine"`
	Render  RenderConfig  `toml:"render"`
	Assets  AssetsConfig  `toml:"assets"`
	Logging LoggingConfig `toml:"logging"`
}

type EngineConfig struct {
	Workers         int           `toml:"workers"`          // 0 = GOMAXPROCS
	InitialCapacity int           `toml:"initial_capacity"` // entity and store pre-size hint
	TickRate        time.Duration `toml:"tick_rate"`
	MaxFrames       uint64        `toml:"max_frames"` // 0 = run until signalled
}

type RenderConfig struct {
	ExcludeHidden  bool `toml:"exclude_hidden"`
	CameraRequired bool `toml:"camera_required"`
	Verbose        bool `toml:"verbose"` // log every backend command
}

type AssetsConfig struct {
	MeshTable string        `toml:"mesh_table"`
	Watch     bool          `toml:"watch"`
	Debounce  time.Duration `toml:"debounce"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Path returns the config path from EnvPath, falling back to DefaultPath.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse config %s: unknown key %s", path, undecoded[0])
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.Workers < 0 {
		errs = append(errs, fmt.Errorf("engine.workers must be >= 0, got %d", c.Engine.Workers))
	}
	if c.Engine.InitialCapacity < 0 {
		errs = append(errs, fmt.Errorf("engine.initial_capacity must be >= 0, got %d", c.Engine.InitialCapacity))
	}
	if c.Engine.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("engine.tick_rate must be positive, got %v", c.Engine.TickRate))
	}
	if c.Assets.MeshTable == "" {
		errs = append(errs, errors.New("assets.mesh_table is required"))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

func defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			Workers:         0,
			InitialCapacity: 1024,
			TickRate:        16 * time.Millisecond,
		},
		Render: RenderConfig{
			ExcludeHidden: true,
		},
		Assets: AssetsConfig{
			MeshTable: "data/yaml/meshes.yaml",
			Debounce:  100 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
