package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Auth       AuthConfig       `koanf:"auth"`
	Dispatcher DispatcherConfig `koanf:"dispatcher"`
	Directory  DirectoryConfig  `koanf:"directory"`
	Storage    StorageConfig    `koanf:"storage"`
	Renderer   RendererConfig   `koanf:"renderer"`
	Logging    LoggingConfig    `koanf:"logging"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	URL  string `koanf:"url"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url"`
	MaxConnections int    `koanf:"max_connections"`
}

type AuthConfig struct {
	JWTSecret     string `koanf:"jwt_secret"`
	JWTExpiry     string `koanf:"jwt_expiry"`
	SessionExpiry string `koanf:"session_expiry"`
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`
}

type DispatcherConfig struct {
	Interval           string `koanf:"interval"`
	BatchSize          int    `koanf:"batch_size"`
	MaxConcurrentTicks int    `koanf:"max_concurrent_ticks"`
	RendererGroup      string `koanf:"renderer_group"`
}

type DirectoryConfig struct {
	URL string `koanf:"url"`
}

type StorageConfig struct {
	LocalDir   string `koanf:"local_dir"`
	NetworkDir string `koanf:"network_dir"`
}

type RendererConfig struct {
	Name       string `koanf:"name"`
	Binary     string `koanf:"binary"`
	MaxThreads int    `koanf:"max_threads"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load reads config from TOML file (if provided) then overlays env vars.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	// 2. Load TOML config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, err
		}
	}

	// 3. Load env vars: LF_SERVER_PORT -> server.port
	// Only set env vars that have non-empty values to avoid overriding TOML config.
	if err := k.Load(env.ProviderWithValue("LF_", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		mapped := strings.Replace(
			strings.ToLower(strings.TrimPrefix(key, "LF_")),
			"_", ".", -1,
		)
		return mapped, value
	}), nil); err != nil {
		return nil, err
	}

	// 4. Handle top-level convenience env vars
	if v := os.Getenv("LF_DATABASE_URL"); v != "" {
		k.Set("database.url", v)
	}
	if v := os.Getenv("LF_DIRECTORY_URL"); v != "" {
		k.Set("directory.url", v)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Renderer name falls back to the hostname
	if cfg.Renderer.Name == "" {
		hostname, _ := os.Hostname()
		cfg.Renderer.Name = hostname
	}

	return &cfg, nil
}
