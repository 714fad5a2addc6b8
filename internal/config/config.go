package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	WebhookPath    string        `yaml:"webhook_path"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"` // upper bound for one webhook call
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PaymentConfig struct {
	Provider        string `yaml:"provider"` // source tag stored with every event
	Secret          string `yaml:"secret"`
	SignatureHeader string `yaml:"signature_header"`
}

type BotConfig struct {
	Token       string        `yaml:"token"`     // delivery bot
	OpsToken    string        `yaml:"ops_token"` // falls back to token
	OpsChatID   string        `yaml:"ops_chat_id"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	OpsPerMin   int           `yaml:"ops_per_minute"`
}

type DeliveryConfig struct {
	InitialBatch  int           `yaml:"initial_batch"`
	LockTTL       time.Duration `yaml:"lock_ttl"`
	RetryInterval time.Duration `yaml:"retry_interval"` // 0 disables the sweeper
	MaxAttempts   int           `yaml:"max_attempts"`
	IntroTemplate string        `yaml:"intro_template"` // overrides the locale text
	Language      string        `yaml:"language"`
}

type ProductConfig struct {
	Type string `yaml:"type"`
}

type ItemConfig struct {
	ID      string `yaml:"id"`
	Kind    string `yaml:"kind"` // photo|text
	URL     string `yaml:"url"`
	Caption string `yaml:"caption"`
}

type CatalogConfig struct {
	DefaultProductType string                   `yaml:"default_product_type"`
	SubscriptionDays   int                      `yaml:"subscription_days"`
	Products           map[string]ProductConfig `yaml:"products"` // keyed by provider product_id
	Sources            map[string]string        `yaml:"sources"`  // product type -> latest_pack|static_item|none
	StaticItem         ItemConfig               `yaml:"static_item"`
}

type GenerationConfig struct {
	Writer       string        `yaml:"writer"` // openai|gemini
	OpenAIKey    string        `yaml:"openai_key"`
	GeminiKey    string        `yaml:"gemini_key"`
	GeminiURL    string        `yaml:"gemini_url"`
	TextModel    string        `yaml:"text_model"`
	ImageModel   string        `yaml:"image_model"`
	Character    string        `yaml:"character"` // prompt prefix for every image
	DefaultCount int           `yaml:"default_count"`
	Timeout      time.Duration `yaml:"timeout"`
}

type AdminConfig struct {
	APIKey    string        `yaml:"api_key"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type WorkerConfig struct {
	Count int `yaml:"count"`
}

type TimeoutConfig struct {
	Store time.Duration `yaml:"store"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Payment    PaymentConfig    `yaml:"payment"`
	Bot        BotConfig        `yaml:"bot"`
	Delivery   DeliveryConfig   `yaml:"delivery"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Generation GenerationConfig `yaml:"generation"`
	Admin      AdminConfig      `yaml:"admin"`
	Workers    WorkerConfig     `yaml:"workers"`
	Timeouts   TimeoutConfig    `yaml:"timeouts"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies .env and environment
// overrides for secrets, fills defaults and validates the result.
// A missing config file is allowed when everything comes from the environment.
func LoadConfig(path string, dev bool) (*Config, error) {
	cfg, err := Read(path, dev)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is LoadConfig without validation, for tools that need only part of the settings.
func Read(path string, dev bool) (*Config, error) {
	// .env is optional; real environment wins over it.
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	override(&cfg.Payment.Secret, "TRIBUTE_API_KEY")
	override(&cfg.Bot.Token, "BOT_TOKEN")
	override(&cfg.Bot.OpsToken, "OPS_BOT_TOKEN")
	override(&cfg.Bot.OpsChatID, "OPS_CHAT_ID")
	override(&cfg.Database.URL, "DATABASE_URL")
	override(&cfg.Redis.URL, "REDIS_URL")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	override(&cfg.Generation.OpenAIKey, "OPENAI_API_KEY")
	override(&cfg.Generation.GeminiKey, "GEMINI_API_KEY")
	override(&cfg.Admin.APIKey, "ADMIN_API_KEY")
	override(&cfg.Admin.JWTSecret, "ADMIN_JWT_SECRET")
}

func override(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.WebhookPath == "" {
		cfg.Server.WebhookPath = "/api/v1/payments/tribute/webhook"
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 50 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "tribute"
	}
	if cfg.Payment.SignatureHeader == "" {
		cfg.Payment.SignatureHeader = "trbt-signature"
	}
	if cfg.Bot.OpsToken == "" {
		cfg.Bot.OpsToken = cfg.Bot.Token
	}
	if cfg.Bot.HTTPTimeout <= 0 {
		cfg.Bot.HTTPTimeout = 15 * time.Second
	}
	if cfg.Bot.OpsPerMin <= 0 {
		cfg.Bot.OpsPerMin = 30
	}
	if cfg.Delivery.InitialBatch <= 0 {
		cfg.Delivery.InitialBatch = 5
	}
	if cfg.Delivery.LockTTL <= 0 {
		cfg.Delivery.LockTTL = 2 * time.Minute
	}
	if cfg.Delivery.Language == "" {
		cfg.Delivery.Language = "en"
	}
	if cfg.Delivery.MaxAttempts <= 0 {
		cfg.Delivery.MaxAttempts = 5
	}
	if cfg.Catalog.DefaultProductType == "" {
		cfg.Catalog.DefaultProductType = "subscription"
	}
	if cfg.Generation.Writer == "" {
		cfg.Generation.Writer = "openai"
	}
	if cfg.Generation.TextModel == "" {
		cfg.Generation.TextModel = "gpt-4o-mini"
	}
	if cfg.Generation.ImageModel == "" {
		cfg.Generation.ImageModel = "dall-e-3"
	}
	if cfg.Generation.DefaultCount <= 0 {
		cfg.Generation.DefaultCount = 15
	}
	if cfg.Generation.Timeout <= 0 {
		cfg.Generation.Timeout = 3 * time.Minute
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = 30 * time.Minute
	}
	if cfg.Workers.Count <= 0 {
		cfg.Workers.Count = 4
	}
	if cfg.Timeouts.Store <= 0 {
		cfg.Timeouts.Store = 5 * time.Second
	}
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Payment.Secret == "" {
		return errors.New("payment.secret is required")
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Bot.Token == "" && !c.Runtime.Dev {
		return errors.New("bot.token is required")
	}
	for id, p := range c.Catalog.Products {
		if strings.TrimSpace(p.Type) == "" {
			return fmt.Errorf("catalog.products.%s.type is required", id)
		}
	}
	return nil
}
