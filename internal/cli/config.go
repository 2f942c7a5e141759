package cli

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/blockworld/pkg/cache"
	bwerrors "github.com/matzehuels/blockworld/pkg/errors"
	"github.com/matzehuels/blockworld/pkg/pipeline"
)

// Environment variables that override the config file.
const (
	envAPIURL    = "BLOCKWORLD_API_URL"
	envAPIKey    = "BLOCKWORLD_API_KEY"
	envRedisAddr = "BLOCKWORLD_REDIS_ADDR"
)

var errNoSource = bwerrors.New(bwerrors.ErrCodeInvalidConfig,
	"no transaction source: set source.url or source.file in the config, %s, or pass --source-file", envAPIURL)

// Config is the on-disk configuration (config.toml).
type Config struct {
	Source SourceConfig `toml:"source"`
	Render RenderConfig `toml:"render"`
	Cache  CacheConfig  `toml:"cache"`
	Server ServerConfig `toml:"server"`
}

// SourceConfig locates the transaction-size service.
type SourceConfig struct {
	URL     string   `toml:"url"`
	APIKey  string   `toml:"api_key"`
	File    string   `toml:"file"` // local dumps, "{height}" placeholder allowed
	Timeout duration `toml:"timeout"`
}

// RenderConfig holds emitter defaults.
type RenderConfig struct {
	Scale       float64 `toml:"scale"`
	Color       string  `toml:"color"`
	AnimChance  float64 `toml:"anim_chance"`
	ModelSrc    string  `toml:"model_src"`
	ModelSize   int     `toml:"model_size"`
	ModelChance float64 `toml:"model_chance"`
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// ServerConfig configures "blockworld serve".
type ServerConfig struct {
	Addr         string   `toml:"addr"`
	AllowOrigins []string `toml:"allow_origins"`
}

// duration decodes TOML strings like "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func defaultConfig() Config {
	return Config{
		Cache:  CacheConfig{Backend: cache.BackendFile},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// loadConfig reads path, or the default location when path is empty.
// A missing default file is not an error. Environment overrides apply last.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		dir, err := configDir()
		if err == nil {
			path = filepath.Join(dir, "config.toml")
		}
	}
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		switch {
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		case err != nil:
			return cfg, bwerrors.Wrap(bwerrors.ErrCodeInvalidConfig, err, "read %s", path)
		default:
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				return cfg, bwerrors.New(bwerrors.ErrCodeInvalidConfig, "%s: unknown key %s", path, undecoded[0])
			}
		}
	}

	applyEnv(&cfg)
	return cfg, cfg.validate()
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(envAPIURL); v != "" {
		cfg.Source.URL = v
	}
	if v := os.Getenv(envAPIKey); v != "" {
		cfg.Source.APIKey = v
	}
	if v := os.Getenv(envRedisAddr); v != "" {
		cfg.Cache.RedisAddr = v
	}
}

func (c Config) validate() error {
	if c.Source.URL != "" {
		if err := bwerrors.ValidateURL(c.Source.URL); err != nil {
			return bwerrors.Wrap(bwerrors.ErrCodeInvalidConfig, err, "source.url")
		}
	}
	if c.Render.Color != "" {
		if err := bwerrors.ValidateColor(c.Render.Color); err != nil {
			return bwerrors.Wrap(bwerrors.ErrCodeInvalidConfig, err, "render.color")
		}
	}
	if c.Render.Scale < 0 {
		return bwerrors.New(bwerrors.ErrCodeInvalidConfig, "render.scale cannot be negative")
	}
	switch c.Cache.Backend {
	case "", cache.BackendFile, cache.BackendMemory, cache.BackendRedis, cache.BackendBadger, cache.BackendNone:
	default:
		return bwerrors.New(bwerrors.ErrCodeInvalidConfig, "cache.backend: unknown backend %q", c.Cache.Backend)
	}
	return nil
}

// renderDefaults converts the [render] section to pipeline options.
func (c Config) renderDefaults() pipeline.Options {
	return pipeline.Options{
		Scale:       c.Render.Scale,
		Color:       c.Render.Color,
		AnimChance:  c.Render.AnimChance,
		ModelSrc:    c.Render.ModelSrc,
		ModelSize:   c.Render.ModelSize,
		ModelChance: c.Render.ModelChance,
	}
}

// cacheConfig converts the [cache] section, filling in the default
// directory. noCache forces the null backend.
func (c Config) cacheConfig(noCache bool) (cache.Config, error) {
	cc := cache.Config{
		Backend: c.Cache.Backend,
		Dir:     c.Cache.Dir,
		Redis: cache.RedisConfig{
			Addr:     c.Cache.RedisAddr,
			Password: c.Cache.RedisPassword,
			DB:       c.Cache.RedisDB,
		},
	}
	if noCache {
		cc.Backend = cache.BackendNone
		return cc, nil
	}
	if cc.Dir == "" && (cc.Backend == "" || cc.Backend == cache.BackendFile || cc.Backend == cache.BackendBadger) {
		dir, err := cacheDir()
		if err != nil {
			return cc, err
		}
		cc.Dir = dir
		if cc.Backend == cache.BackendBadger {
			cc.Dir = filepath.Join(dir, "badger")
		}
	}
	return cc, nil
}
