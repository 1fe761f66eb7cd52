// Package config loads service configuration from an optional config.yml,
// a .env file, and the process environment, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/skillsenselab/scribe/internal/assembly"
	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/storage"
	"github.com/skillsenselab/scribe/internal/transcribe"
	"github.com/skillsenselab/scribe/internal/ws"
)

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`
}

// ApplyDefaults applies default values to service identity.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "scribe"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port" validate:"min=1,max=65535"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// ApplyDefaults applies default values to server configuration.
func (c *ServerConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds the SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ApplyDefaults applies default values to database configuration.
func (c *DatabaseConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "transcripts.db"
	}
}

// StorageConfig holds the local storage fallback settings.
type StorageConfig struct {
	LocalDir string `mapstructure:"local_dir"`
}

// ApplyDefaults applies default values to storage configuration.
func (c *StorageConfig) ApplyDefaults() {
	if c.LocalDir == "" {
		c.LocalDir = "./uploads"
	}
}

// Config is the full service configuration.
type Config struct {
	Service  ServiceConfig          `mapstructure:"service"`
	Server   ServerConfig           `mapstructure:"server"`
	Log      logger.Config          `mapstructure:"log"`
	Database DatabaseConfig         `mapstructure:"database"`
	Storage  StorageConfig          `mapstructure:"storage"`
	Assembly assembly.Config        `mapstructure:"assembly"`
	Supabase storage.SupabaseConfig `mapstructure:"supabase"`
	WS       ws.Config              `mapstructure:"ws"`
	Job      transcribe.Config      `mapstructure:"job"`
}

// ApplyDefaults applies defaults to every section.
func (c *Config) ApplyDefaults() {
	c.Service.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Log.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Assembly.ApplyDefaults()
	c.WS.ApplyDefaults()
	c.Job.ApplyDefaults()
}

// Validate checks the configuration. The provider API key is the only hard
// requirement; Supabase is optional because local storage is a fallback.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Assembly.APIKey == "" {
		return fmt.Errorf("config: assembly.api_key is required (set ASSEMBLYAI_API_KEY)")
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// envBindings maps well-known environment variables onto config keys.
var envBindings = map[string][]string{
	"service.environment": {"ENVIRONMENT"},
	"server.host":         {"HOST"},
	"server.port":         {"PORT"},
	"log.level":           {"LOG_LEVEL"},
	"log.format":          {"LOG_FORMAT"},
	"database.path":       {"DATABASE_PATH"},
	"storage.local_dir":   {"STORAGE_LOCAL_DIR"},
	"assembly.api_key":    {"ASSEMBLYAI_API_KEY"},
	"supabase.url":        {"SUPABASE_URL"},
	"supabase.secret_key": {"SUPABASE_KEY"},
	"supabase.bucket":     {"SUPABASE_BUCKET"},
	"ws.max_connections":  {"WS_MAX_CONNECTIONS"},
}

// Load reads configuration from configFile (optional, "" means search the
// working directory), the .env file if present, and the environment.
func Load(configFile string) (*Config, error) {
	// .env first so viper's env bindings can see its variables.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("config: load .env: %w", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read config file: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
