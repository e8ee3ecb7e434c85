// Package config handles loading and resolving challan configuration.
// Resolution order (first non-empty value wins):
//  1. CLI flag --api-token (other flags are applied by the caller)
//  2. Environment variables CHALLAN_*, with a .env file in the working
//     directory loaded first (never overriding variables already set)
//  3. config.json in the current working directory
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultConfigFile  = "config.json"
	DefaultEnvFile     = ".env"
	DefaultFormat      = "table"
	DefaultTimeout     = 30 * time.Second
	DefaultConcurrency = 4
	DefaultRate        = 5.0
	DefaultListenAddr  = ":8080"
	DefaultToken       = "30d"

	EnvAPIToken   = "CHALLAN_API_TOKEN"
	EnvBaseURL    = "CHALLAN_BASE_URL"
	EnvDBPath     = "CHALLAN_DB_PATH"
	EnvRedisAddr  = "CHALLAN_REDIS_ADDR"
	EnvDashboard  = "CHALLAN_DASHBOARD"
	EnvListenAddr = "CHALLAN_LISTEN_ADDR"
)

// File is the on-disk representation of config.json.
type File struct {
	APIToken      string   `json:"api_token"`
	BaseURL       string   `json:"base_url"`
	DefaultFormat string   `json:"default_format"`
	Timeout       string   `json:"timeout"`
	Concurrency   int      `json:"concurrency"`
	Rate          float64  `json:"rate"`
	DBPath        string   `json:"db_path"`
	RedisAddr     string   `json:"redis_addr,omitempty"`
	ListenAddr    string   `json:"listen_addr,omitempty"`
	CORSOrigins   []string `json:"cors_origins,omitempty"`
	Dashboard     string   `json:"dashboard,omitempty"`
	DefaultRange  string   `json:"default_range,omitempty"`
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; the File is only read during loading.
type Config struct {
	APIToken      string
	BaseURL       string
	Format        string
	Timeout       time.Duration
	Concurrency   int
	Rate          float64
	DBPath        string
	RedisAddr     string
	ListenAddr    string
	CORSOrigins   []string
	DashboardPath string
	DefaultRange  string
	ConfigPath    string // path of the config.json that was loaded (empty if none found)
	EnvPath       string // path of the .env that was loaded (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	Refresh bool
	Quiet   bool
	Verbose bool
	Debug   bool
}

// Load resolves configuration from all sources.
// flagAPIToken is the value of --api-token (empty string if not set).
// A malformed .env file is an error; a missing or malformed config.json is not.
func Load(flagAPIToken string) (*Config, error) {
	cfg := &Config{
		Format:       DefaultFormat,
		Timeout:      DefaultTimeout,
		Concurrency:  DefaultConcurrency,
		Rate:         DefaultRate,
		ListenAddr:   DefaultListenAddr,
		DefaultRange: DefaultToken,
	}

	// Layer 1: config.json (lowest priority)
	if f, path, err := loadFile(); err == nil {
		applyFile(cfg, f, path)
	}

	// Layer 2: .env, then the process environment
	envPath, err := loadEnvFile()
	if err != nil {
		return nil, err
	}
	cfg.EnvPath = envPath
	applyEnv(cfg)

	// Layer 3: CLI flag (highest priority)
	if flagAPIToken != "" {
		cfg.APIToken = flagAPIToken
	}

	// Set default DB path if still unset
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DBPath = filepath.Join(home, ".challan", "challan.db")
		}
	}

	return cfg, nil
}

// Validate returns an error if the fields needed to call the analytics API
// are missing. Commands that never fetch do not call it.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New(
			"analytics API base URL not found.\n\n" +
				"Set it one of these ways:\n" +
				"  1. CLI flag:        challan --base-url https://host/api/ ...\n" +
				"  2. Environment:     export " + EnvBaseURL + "=https://host/api/\n" +
				"  3. config.json:     {\"base_url\": \"https://host/api/\"}",
		)
	}
	return nil
}

// RedactedAPIToken returns the token with most characters replaced by
// asterisks. Safe for logging and display.
func (c *Config) RedactedAPIToken() string {
	if len(c.APIToken) <= 4 {
		return "****"
	}
	return c.APIToken[:2] + "****" + c.APIToken[len(c.APIToken)-2:]
}

// loadFile attempts to read config.json from the current working directory.
func loadFile() (*File, string, error) {
	path, err := filepath.Abs(DefaultConfigFile)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("config.json not found at %s", path)
		}
		return nil, "", fmt.Errorf("reading config.json: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parsing config.json: %w", err)
	}
	return &f, path, nil
}

// loadEnvFile loads .env from the working directory into the process
// environment. Variables already set win.
func loadEnvFile() (string, error) {
	path, err := filepath.Abs(DefaultEnvFile)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", nil
	}
	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("loading %s: %w", path, err)
	}
	return path, nil
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty.
func applyFile(cfg *Config, f *File, path string) {
	cfg.ConfigPath = path
	if f.APIToken != "" {
		cfg.APIToken = f.APIToken
	}
	if f.BaseURL != "" {
		cfg.BaseURL = f.BaseURL
	}
	if f.DefaultFormat != "" {
		cfg.Format = f.DefaultFormat
	}
	if f.Timeout != "" {
		if d, err := time.ParseDuration(f.Timeout); err == nil {
			cfg.Timeout = d
		}
	}
	if f.Concurrency > 0 {
		cfg.Concurrency = f.Concurrency
	}
	if f.Rate > 0 {
		cfg.Rate = f.Rate
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.RedisAddr != "" {
		cfg.RedisAddr = f.RedisAddr
	}
	if f.ListenAddr != "" {
		cfg.ListenAddr = f.ListenAddr
	}
	if len(f.CORSOrigins) > 0 {
		cfg.CORSOrigins = f.CORSOrigins
	}
	if f.Dashboard != "" {
		cfg.DashboardPath = f.Dashboard
	}
	if f.DefaultRange != "" {
		cfg.DefaultRange = strings.ToLower(f.DefaultRange)
	}
}

func applyEnv(cfg *Config) {
	for env, dst := range map[string]*string{
		EnvAPIToken:   &cfg.APIToken,
		EnvBaseURL:    &cfg.BaseURL,
		EnvDBPath:     &cfg.DBPath,
		EnvRedisAddr:  &cfg.RedisAddr,
		EnvDashboard:  &cfg.DashboardPath,
		EnvListenAddr: &cfg.ListenAddr,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial config.json via `challan config init`.
func Template() File {
	return File{
		APIToken:      "",
		BaseURL:       "",
		DefaultFormat: "table",
		Timeout:       "30s",
		Concurrency:   DefaultConcurrency,
		Rate:          DefaultRate,
		ListenAddr:    DefaultListenAddr,
		DefaultRange:  DefaultToken,
	}
}

// WriteFile serialises a File to the given path.
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}
