// Package config handles layered YAML configuration with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/smileynet/fiche/internal/logging"
)

// Config holds all fiche configuration.
type Config struct {
	Storage Storage `yaml:"storage"`
	Export  Export  `yaml:"export"`
	Server  Server  `yaml:"server"`
	Log     Log     `yaml:"log"`
}

// Storage holds the record file location.
type Storage struct {
	Path string `yaml:"path"`
}

// Export holds snapshot settings.
type Export struct {
	Filename string `yaml:"filename"` // Name offered for downloads.
	Dir      string `yaml:"dir"`      // Where the terminal form writes exports.
}

// Server holds web form settings.
type Server struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TemplatesDir    string        `yaml:"templates_dir"` // Local overrides for the embedded page templates.
}

// Log holds logging settings.
type Log struct {
	Level string `yaml:"level"` // "debug" | "info" | "warn" | "error"
	File  string `yaml:"file"`  // JSON log file; empty disables.
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Storage: Storage{
			Path: "donnees_proximite.csv",
		},
		Export: Export{
			Filename: "contacts_proximite.csv",
			Dir:      ".",
		},
		Server: Server{
			Addr:            "127.0.0.1:8501",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			TemplatesDir:    ".fiche/templates",
		},
		Log: Log{
			Level: "info",
		},
	}
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing, empty and comment-only files
// are skipped; invalid YAML or unknown fields are an error.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: loading %s: %w", path, err)
	}
	return nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("config: storage.path cannot be empty")
	}
	if strings.TrimSpace(c.Export.Filename) == "" {
		return errors.New("config: export.filename cannot be empty")
	}
	if strings.ContainsAny(c.Export.Filename, `/\"`) {
		return fmt.Errorf("config: export.filename must be a bare file name, got %q", c.Export.Filename)
	}
	if c.Server.Addr == "" {
		return errors.New("config: server.addr cannot be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("config: server.read_timeout must be positive, got %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("config: server.write_timeout must be positive, got %v", c.Server.WriteTimeout)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("config: server.shutdown_timeout must be non-negative, got %v", c.Server.ShutdownTimeout)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level must be one of debug, info, warn, error: %w", err)
	}
	return nil
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: FICHE_STORAGE_PATH, FICHE_EXPORT_DIR, FICHE_ADDR,
// FICHE_LOG_LEVEL, FICHE_LOG_FILE, FICHE_SHUTDOWN_TIMEOUT.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("FICHE_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("FICHE_EXPORT_DIR"); v != "" {
		c.Export.Dir = v
	}
	if v := os.Getenv("FICHE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("FICHE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("FICHE_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("FICHE_SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid FICHE_SHUTDOWN_TIMEOUT %q: %w", v, err)
		}
		c.Server.ShutdownTimeout = d
	}
	return nil
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	Storage *rawStorage `yaml:"storage"`
	Export  *rawExport  `yaml:"export"`
	Server  *rawServer  `yaml:"server"`
	Log     *rawLog     `yaml:"log"`
}

type rawStorage struct {
	Path *string `yaml:"path"`
}

type rawExport struct {
	Filename *string `yaml:"filename"`
	Dir      *string `yaml:"dir"`
}

type rawServer struct {
	Addr            *string        `yaml:"addr"`
	ReadTimeout     *time.Duration `yaml:"read_timeout"`
	WriteTimeout    *time.Duration `yaml:"write_timeout"`
	ShutdownTimeout *time.Duration `yaml:"shutdown_timeout"`
	TemplatesDir    *string        `yaml:"templates_dir"`
}

type rawLog struct {
	Level *string `yaml:"level"`
	File  *string `yaml:"file"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
func (c *Config) merge(layer *rawConfig) {
	if layer.Storage != nil && layer.Storage.Path != nil {
		c.Storage.Path = *layer.Storage.Path
	}
	if layer.Export != nil {
		if layer.Export.Filename != nil {
			c.Export.Filename = *layer.Export.Filename
		}
		if layer.Export.Dir != nil {
			c.Export.Dir = *layer.Export.Dir
		}
	}
	if layer.Server != nil {
		if layer.Server.Addr != nil {
			c.Server.Addr = *layer.Server.Addr
		}
		if layer.Server.ReadTimeout != nil {
			c.Server.ReadTimeout = *layer.Server.ReadTimeout
		}
		if layer.Server.WriteTimeout != nil {
			c.Server.WriteTimeout = *layer.Server.WriteTimeout
		}
		if layer.Server.ShutdownTimeout != nil {
			c.Server.ShutdownTimeout = *layer.Server.ShutdownTimeout
		}
		if layer.Server.TemplatesDir != nil {
			c.Server.TemplatesDir = *layer.Server.TemplatesDir
		}
	}
	if layer.Log != nil {
		if layer.Log.Level != nil {
			c.Log.Level = *layer.Log.Level
		}
		if layer.Log.File != nil {
			c.Log.File = *layer.Log.File
		}
	}
}
