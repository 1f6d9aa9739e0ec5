package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Backend selects the raw-store backend: "memory", "file" or "postgres".
	Backend string `yaml:"backend" json:"backend"`

	// StoragePath is the JSON document path for the file backend.
	StoragePath string `yaml:"storage_path" json:"storage_path"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn,omitempty" json:"postgres_dsn,omitempty"`

	// RefreshCron is a cron-style schedule (e.g. "*/15 * * * *") on which
	// the expansion cache is dropped so the generation window re-anchors
	// at the current time.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// RecurrenceWindowDays is the total expansion window size; half of it
	// extends to each side of now.
	RecurrenceWindowDays int `yaml:"recurrence_window_days" json:"recurrence_window_days"`

	// MaxInstancesPerParent caps generation per recurring series.
	MaxInstancesPerParent int `yaml:"max_instances_per_parent" json:"max_instances_per_parent"`

	// WriteDebounceMS is the write-coalescing delay in milliseconds. Zero
	// or negative makes writes synchronous.
	WriteDebounceMS int `yaml:"write_debounce_ms" json:"write_debounce_ms"`

	// CalendarName labels the exported ICS feed.
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                "127.0.0.1:8080",
		Backend:               "file",
		StoragePath:           "./var/events.json",
		RefreshCron:           "*/15 * * * *",
		RecurrenceWindowDays:  365,
		MaxInstancesPerParent: 500,
		WriteDebounceMS:       50,
		CalendarName:          "taskcal",
	}
}

// Normalize fills in missing/zero values with defaults so partially-filled
// configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	switch c.Backend {
	case "memory", "file", "postgres":
		// ok
	case "":
		c.Backend = "file"
	default:
		// Unknown backend; fall back to file to avoid data loss surprises.
		c.Backend = "file"
	}
	if c.StoragePath == "" {
		c.StoragePath = "./var/events.json"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.RecurrenceWindowDays <= 0 {
		c.RecurrenceWindowDays = 365
	}
	if c.MaxInstancesPerParent <= 0 {
		c.MaxInstancesPerParent = 500
	}
	if c.WriteDebounceMS < 0 {
		c.WriteDebounceMS = 0
	}
	if c.CalendarName == "" {
		c.CalendarName = "taskcal"
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: create the parent directory, write a
//     default config with 0600 perms and return the defaults.
//   - If the file exists: read YAML, unmarshal, normalize.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename, 0600 perms).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".taskcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
