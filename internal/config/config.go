// Package config loads the claimline JSON config file, applies .env and
// environment overrides, and edits individual keys for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DataDir            string `json:"data_dir"`
	LogLevel           string `json:"log_level"`
	MaxConcurrent      int    `json:"max_concurrent"`
	TurnTimeoutSeconds int    `json:"turn_timeout_seconds"`
	HTTP               struct {
		Listen         string   `json:"listen"`
		AllowedOrigins []string `json:"allowed_origins"`
	} `json:"http"`
	LINE struct {
		ChannelSecret string `json:"channel_secret"`
		AccessToken   string `json:"access_token"`
		APIHost       string `json:"api_host"`
		DataAPIHost   string `json:"data_api_host"`
	} `json:"line"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
	LLM struct {
		Provider    string  `json:"provider"`
		BaseURL     string  `json:"base_url"`
		APIKey      string  `json:"api_key"`
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float32 `json:"temperature"`
	} `json:"llm"`
	AI struct {
		CacheSize          int     `json:"cache_size"`
		SummaryInputTokens int     `json:"summary_input_tokens"`
		PriceInputPer1K    float64 `json:"price_input_per_1k"`
		PriceOutputPer1K   float64 `json:"price_output_per_1k"`
	} `json:"ai"`
	Sessions struct {
		Backend       string `json:"backend"`
		RedisAddr     string `json:"redis_addr"`
		RedisPassword string `json:"redis_password"`
		RedisDB       int    `json:"redis_db"`
		RedisPrefix   string `json:"redis_prefix"`
	} `json:"sessions"`
	Policies struct {
		Path string `json:"path"`
		DSN  string `json:"dsn"`
	} `json:"policies"`
	Documents struct {
		Backend   string `json:"backend"`
		Endpoint  string `json:"endpoint"`
		Region    string `json:"region"`
		AccessKey string `json:"access_key"`
		SecretKey string `json:"secret_key"`
		Bucket    string `json:"bucket"`
		UseSSL    bool   `json:"use_ssl"`
	} `json:"documents"`
	Reminders struct {
		Schedule  string `json:"schedule"`
		IdleAfter string `json:"idle_after"`
	} `json:"reminders"`
}

// DefaultPath is $HOME/.claimline/config.json.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".claimline", "config.json")
}

func defaults() *Config {
	cfg := &Config{
		DataDir:            filepath.Join(os.Getenv("HOME"), ".claimline"),
		MaxConcurrent:      4,
		TurnTimeoutSeconds: 120,
	}
	cfg.LogLevel = "info"
	cfg.HTTP.Listen = ":8000"
	cfg.LLM.Provider = "gemini"
	cfg.LLM.Model = "gemini-2.0-flash"
	cfg.LLM.MaxTokens = 2048
	cfg.LLM.Temperature = 0.1
	cfg.AI.CacheSize = 256
	cfg.AI.SummaryInputTokens = 2000
	cfg.Sessions.Backend = "memory"
	cfg.Sessions.RedisPrefix = "claimline:session:"
	cfg.Documents.Backend = "file"
	cfg.Documents.Bucket = "claimline"
	cfg.Reminders.IdleAfter = "24h"
	return cfg
}

// Load reads the config at path, writing defaults when the file does not
// exist. A .env next to the config file and one in the working directory
// are loaded into the environment first; variables already set win.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := defaults()

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

func loadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Override from env (highest precedence)
func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.DataDir, "DATA_DIR")
	set(&cfg.LogLevel, "LOG_LEVEL")
	set(&cfg.HTTP.Listen, "HTTP_LISTEN")
	set(&cfg.LINE.ChannelSecret, "LINE_CHANNEL_SECRET")
	set(&cfg.LINE.AccessToken, "LINE_CHANNEL_ACCESS_TOKEN")
	set(&cfg.LINE.APIHost, "LINE_API_HOST")
	set(&cfg.LINE.DataAPIHost, "LINE_DATA_API_HOST")
	set(&cfg.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	set(&cfg.Sessions.RedisAddr, "REDIS_ADDR")
	set(&cfg.Policies.DSN, "POLICY_DB_DSN")

	switch cfg.LLM.Provider {
	case "openai":
		set(&cfg.LLM.APIKey, "OPENAI_API_KEY")
		set(&cfg.LLM.BaseURL, "OPENAI_BASE_URL")
	default:
		set(&cfg.LLM.APIKey, "GEMINI_API_KEY")
		set(&cfg.LLM.Model, "GEMINI_MODEL")
	}
	if cfg.Sessions.RedisAddr != "" && os.Getenv("REDIS_ADDR") != "" {
		cfg.Sessions.Backend = "redis"
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown llm provider: %q", c.LLM.Provider)
	}
	switch c.Sessions.Backend {
	case "memory":
	case "redis":
		if c.Sessions.RedisAddr == "" {
			return fmt.Errorf("sessions.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown session backend: %q", c.Sessions.Backend)
	}
	switch c.Documents.Backend {
	case "file":
	case "s3":
		if c.Documents.Endpoint == "" || c.Documents.Bucket == "" {
			return fmt.Errorf("documents.endpoint and documents.bucket are required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown document backend: %q", c.Documents.Backend)
	}
	if _, err := c.IdleAfter(); err != nil {
		return err
	}
	return nil
}

// IdleAfter parses reminders.idle_after. Empty means 24 hours.
func (c *Config) IdleAfter() (time.Duration, error) {
	if c.Reminders.IdleAfter == "" {
		return 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(c.Reminders.IdleAfter)
	if err != nil {
		return 0, fmt.Errorf("parse reminders.idle_after: %w", err)
	}
	return d, nil
}

// TurnTimeout is turn_timeout_seconds as a duration.
func (c *Config) TurnTimeout() time.Duration {
	return time.Duration(c.TurnTimeoutSeconds) * time.Second
}

// PolicyPath is policies.path, defaulting to {data_dir}/policies.yaml.
func (c *Config) PolicyPath() string {
	if c.Policies.Path != "" {
		return c.Policies.Path
	}
	return filepath.Join(c.DataDir, "policies.yaml")
}

// LINEConfigured reports whether both LINE credentials are set.
func (c *Config) LINEConfigured() bool {
	return c.LINE.ChannelSecret != "" && c.LINE.AccessToken != ""
}

// Save writes cfg to path atomically, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

func writeFile(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg to its nested JSON map form.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// ListValues returns cfg as a flat dot-keyed map, secrets masked when mask
// is set.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return m, nil
}

// GetValue returns the value stored in the file at a dot-separated key.
// The file is created with defaults when missing. Environment overrides
// are not applied: this reports what the file says.
func GetValue(path, key string) (any, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := Save(path, defaults()); err != nil {
			return nil, err
		}
	}
	m, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	v, ok := Flatten(m)[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue stores value at a dot-separated key in an existing config file.
// Values that parse as JSON (numbers, booleans, arrays) keep their type;
// anything else is stored as a string.
func SetValue(path, key, value string) error {
	m, err := readRaw(path)
	if err != nil {
		return err
	}
	flat := Flatten(m)
	flat[key] = parseValue(value)
	data, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		switch v.(type) {
		case bool, float64, []any, map[string]any:
			return v
		}
	}
	return s
}
