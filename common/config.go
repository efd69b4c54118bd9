package common

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"
)

type Config struct {
	ListenAddr  string `json:"listen_addr"`
	DatabaseURL string `json:"database_url"`

	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisPrefix   string `json:"redis_prefix"`

	StripeSecretKey     string `json:"stripe_secret_key"`
	StripeWebhookSecret string `json:"stripe_webhook_secret"`

	S3Bucket string `json:"s3_bucket"`
	S3Region string `json:"s3_region"`

	DocumentURLTTLMinutes int `json:"document_url_ttl_minutes"`

	ResendAPIKey string `json:"resend_api_key"`
	EmailFrom    string `json:"email_from"`

	AdminAPIKey string `json:"admin_api_key"`
}

func LoadConfig(dir string) (*Config, error) {
	cfg := DefaultConfig()

	// Load config (JSON + env overrides)
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = DEFAULT_CONFIG_FILE
	}

	if !strings.HasPrefix(configPath, "/") && dir != "" {
		configPath = path.Join(dir, configPath)
	}

	if _, err := os.Stat(configPath); err == nil {
		fileCfg, err := LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		cfg.applyConfigOverrides(fileCfg)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

func LoadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		f, err := os.Open(path)
		if err == nil {
			defer f.Close()
			dec := json.NewDecoder(f)
			_ = dec.Decode(&cfg) // ignore error, fallback to env/defaults
		}
	}
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		ListenAddr:            DEFAULT_LISTEN_ADDR,
		DatabaseURL:           "",
		RedisAddr:             DEFAULT_REDIS_ADDR,
		RedisPassword:         "",
		RedisPrefix:           DEFAULT_REDIS_PREFIX,
		StripeSecretKey:       "",
		StripeWebhookSecret:   "",
		S3Bucket:              "",
		S3Region:              DEFAULT_S3_REGION,
		DocumentURLTTLMinutes: DEFAULT_DOCUMENT_URL_TTL_MINUTES,
		ResendAPIKey:          "",
		EmailFrom:             "",
		AdminAPIKey:           "",
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("REDIS_PREFIX"); v != "" {
		c.RedisPrefix = v
	}
	if v := os.Getenv("STRIPE_SECRET_KEY"); v != "" {
		c.StripeSecretKey = v
	}
	if v := os.Getenv("STRIPE_WEBHOOK_SECRET"); v != "" {
		c.StripeWebhookSecret = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		c.S3Bucket = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		c.S3Region = v
	}
	if v := os.Getenv("DOCUMENT_URL_TTL_MINUTES"); v != "" {
		c.DocumentURLTTLMinutes = atoiOrDefault(v, c.DocumentURLTTLMinutes)
	}
	if v := os.Getenv("RESEND_API_KEY"); v != "" {
		c.ResendAPIKey = v
	}
	if v := os.Getenv("EMAIL_FROM"); v != "" {
		c.EmailFrom = v
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		c.AdminAPIKey = v
	}
}

func (c *Config) applyConfigOverrides(cfg *Config) {
	if cfg.ListenAddr != "" {
		c.ListenAddr = cfg.ListenAddr
	}
	if cfg.DatabaseURL != "" {
		c.DatabaseURL = cfg.DatabaseURL
	}
	if cfg.RedisAddr != "" {
		c.RedisAddr = cfg.RedisAddr
	}
	if cfg.RedisPassword != "" {
		c.RedisPassword = cfg.RedisPassword
	}
	if cfg.RedisPrefix != "" {
		c.RedisPrefix = cfg.RedisPrefix
	}
	if cfg.StripeSecretKey != "" {
		c.StripeSecretKey = cfg.StripeSecretKey
	}
	if cfg.StripeWebhookSecret != "" {
		c.StripeWebhookSecret = cfg.StripeWebhookSecret
	}
	if cfg.S3Bucket != "" {
		c.S3Bucket = cfg.S3Bucket
	}
	if cfg.S3Region != "" {
		c.S3Region = cfg.S3Region
	}
	if cfg.DocumentURLTTLMinutes != 0 {
		c.DocumentURLTTLMinutes = cfg.DocumentURLTTLMinutes
	}
	if cfg.ResendAPIKey != "" {
		c.ResendAPIKey = cfg.ResendAPIKey
	}
	if cfg.EmailFrom != "" {
		c.EmailFrom = cfg.EmailFrom
	}
	if cfg.AdminAPIKey != "" {
		c.AdminAPIKey = cfg.AdminAPIKey
	}
}

func atoiOrDefault(s string, def int) int {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return def
	}
	return n
}
