package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds flowdesk configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	WhatsApp WhatsAppConfig `toml:"whatsapp"`
	Autosave AutosaveConfig `toml:"autosave"`
	Log      LogConfig      `toml:"log"`
	CORS     CORSConfig     `toml:"cors"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `toml:"addr"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	IdleTimeout     time.Duration `toml:"idle_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// DatabaseConfig points at the flow store.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// WhatsAppConfig controls the device link shown in the builder sidebar.
type WhatsAppConfig struct {
	Enabled     bool   `toml:"enabled"`
	SessionPath string `toml:"session_path"`
}

// AutosaveConfig controls how often edited flows are written back.
type AutosaveConfig struct {
	Interval time.Duration `toml:"interval"`
}

type LogConfig struct {
	Level       string `toml:"level"` // "debug", "info", "warn", "error"
	Development bool   `toml:"development"`
}

type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// DefaultFlowName is the flow created on an empty store.
const DefaultFlowName = "Flujo de Atención al Cliente"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{Path: "flowdesk.db"},
		WhatsApp: WhatsAppConfig{Enabled: true, SessionPath: "whatsapp_session.db"},
		Autosave: AutosaveConfig{Interval: 5 * time.Second},
		Log:      LogConfig{Level: "info"},
		CORS:     CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

// ConfigDir returns the flowdesk config directory path.
func ConfigDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "flowdesk")
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file at path on top of the defaults. A missing
// file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to disk.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
