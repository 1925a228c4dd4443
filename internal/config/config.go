package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"restaurants/internal/domain"
)

// Keys looked up in the configured secret store.
const (
	// CredentialKey holds the geocoding API key.
	CredentialKey = "opencage_api_key"
	// PublishPasswordKey holds the publish database password when it is
	// not set in the config file.
	PublishPasswordKey = "publish_password"
)

// Config is the full runtime configuration. It is built once per process and
// handed to every component by pointer.
type Config struct {
	DataDir string `yaml:"data_dir"`
	DestDir string `yaml:"dest_dir"`
	Pattern string `yaml:"pattern"`

	Files    Files              `yaml:"files"`
	Columns  domain.ColumnNames `yaml:"columns"`
	Geocoder Geocoder           `yaml:"geocoder"`
	Secrets  Secrets            `yaml:"secrets"`
	Database Database           `yaml:"database"`
	Publish  Publish            `yaml:"publish"`
	Server   Server             `yaml:"server"`
}

// Files names the staging and output artifacts.
type Files struct {
	Merged        string `yaml:"merged"`
	Enriched      string `yaml:"enriched"`
	Transformed   string `yaml:"transformed"`
	OutputParquet string `yaml:"output_parquet"`
	OutputCSV     string `yaml:"output_csv"`
}

// Geocoder configures the external lookup service.
type Geocoder struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size"` // 0 disables the per-run cache
}

// Secrets selects where the credential is looked up.
type Secrets struct {
	Backend string `yaml:"backend"` // "env" | "sqlite" | "keychain"
}

// Database is the run-history SQLite file.
type Database struct {
	Path string `yaml:"path"`
}

// Publish configures the optional copy of the final dataset into a database.
type Publish struct {
	Enabled  bool   `yaml:"enabled"`
	Driver   string `yaml:"driver"` // "sqlite" | "mysql" | "postgres" | "mongodb"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	Table    string `yaml:"table"`
}

// Server configures the trigger surfaces of `serve`.
type Server struct {
	Addr     string `yaml:"addr"`
	Schedule string `yaml:"schedule"` // cron expression, empty disables
	Watch    bool   `yaml:"watch"`    // re-run when a partition changes
}

// Paths is the resolved set of directories and artifact files.
type Paths struct {
	InputDir      string
	OutputDir     string
	Pattern       string
	Merged        string
	Enriched      string
	Transformed   string
	OutputParquet string
	OutputCSV     string
}

// Default returns the configuration matching the production deployment layout.
func Default() *Config {
	return &Config{
		DataDir: "/opt/airflow/data",
		DestDir: "/opt/airflow/destination",
		Pattern: "part-*.csv",
		Files: Files{
			Merged:        "staging_merged.parquet",
			Enriched:      "staging_enriched.parquet",
			Transformed:   "staging_transformed.parquet",
			OutputParquet: "processed_restaurants.parquet",
			OutputCSV:     "processed_restaurants.csv",
		},
		Columns: domain.DefaultColumns(),
		Geocoder: Geocoder{
			BaseURL: "https://api.opencagedata.com/geocode/v1/json",
			Timeout: 5 * time.Second,
		},
		Secrets:  Secrets{Backend: "env"},
		Database: Database{Path: "restaurants.db"},
		Publish:  Publish{Driver: "sqlite", Table: "restaurants"},
		Server:   Server{Addr: ":8080"},
	}
}

// Load reads an optional .env file and an optional YAML file on top of the
// defaults, then applies environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("RESTAURANTS_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("RESTAURANTS_DEST_DIR"); v != "" {
		c.DestDir = v
	}
	if v := os.Getenv("RESTAURANTS_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("RESTAURANTS_SECRETS_BACKEND"); v != "" {
		c.Secrets.Backend = v
	}
	if v := os.Getenv("OPENCAGE_BASE_URL"); v != "" {
		c.Geocoder.BaseURL = v
	}
}

// Validate checks the fields every command depends on.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.DestDir == "" {
		return fmt.Errorf("dest_dir is required")
	}
	if c.Pattern == "" {
		return fmt.Errorf("pattern is required")
	}
	if _, err := filepath.Match(c.Pattern, ""); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", c.Pattern, err)
	}
	if c.Geocoder.Timeout <= 0 {
		return fmt.Errorf("geocoder.timeout must be positive")
	}
	if c.Geocoder.CacheSize < 0 {
		return fmt.Errorf("geocoder.cache_size must not be negative")
	}
	switch c.Secrets.Backend {
	case "env", "sqlite", "keychain":
	default:
		return fmt.Errorf("unknown secrets backend: %q", c.Secrets.Backend)
	}
	if c.Columns.Latitude == "" || c.Columns.Longitude == "" || c.Columns.Geohash == "" {
		return fmt.Errorf("columns.latitude, columns.longitude and columns.geohash are required")
	}
	return nil
}

// Paths resolves the artifact locations.
func (c *Config) Paths() Paths {
	return Paths{
		InputDir:      c.DataDir,
		OutputDir:     c.DestDir,
		Pattern:       c.Pattern,
		Merged:        filepath.Join(c.DataDir, c.Files.Merged),
		Enriched:      filepath.Join(c.DataDir, c.Files.Enriched),
		Transformed:   filepath.Join(c.DataDir, c.Files.Transformed),
		OutputParquet: filepath.Join(c.DestDir, c.Files.OutputParquet),
		OutputCSV:     filepath.Join(c.DestDir, c.Files.OutputCSV),
	}
}
