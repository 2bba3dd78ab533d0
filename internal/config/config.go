package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Database    DatabaseConfig    `mapstructure:"database"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Redis       RedisConfig       `mapstructure:"redis"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Security    SecurityConfig    `mapstructure:"security"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Matching    MatchingConfig    `mapstructure:"matching"`
	Eligibility EligibilityConfig `mapstructure:"eligibility"`
	SMS         SMSConfig         `mapstructure:"sms"`
	SMTP        SMTPConfig        `mapstructure:"smtp"`
	Receipts    ReceiptConfig     `mapstructure:"receipts"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Storage     StorageConfig     `mapstructure:"storage"`
	External    ExternalConfig    `mapstructure:"external_auth"`

	// Secrets never live in the config file.
	Secrets Secrets `mapstructure:"-"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	ApplySchema  bool   `mapstructure:"apply_schema"`
}

type JWTConfig struct {
	Issuer      string `mapstructure:"issuer"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	BcryptCost     int      `mapstructure:"bcrypt_cost"`
	SecureCookies  bool     `mapstructure:"secure_cookies"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `mapstructure:"prometheus_enabled"`
	Namespace         string `mapstructure:"namespace"`
}

type MatchingConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type EligibilityConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type SMSConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	AccountSID string `mapstructure:"account_sid"`
	From       string `mapstructure:"from"`
	// ToPrefix is prepended to stored phone numbers, e.g. "whatsapp:+91".
	ToPrefix string `mapstructure:"to_prefix"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	From     string `mapstructure:"from"`
}

type ReceiptConfig struct {
	Dir string `mapstructure:"dir"`
}

type WorkerConfig struct {
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	HealthPort    int           `mapstructure:"health_port"`
}

// StorageConfig picks where certificate uploads go. With a cloud name set they
// go to the hosted image API; otherwise they are written to Dir and served
// under PublicPath.
type StorageConfig struct {
	Dir        string        `mapstructure:"dir"`
	PublicPath string        `mapstructure:"public_path"`
	BaseURL    string        `mapstructure:"base_url"`
	CloudName  string        `mapstructure:"cloud_name"`
	APIKey     string        `mapstructure:"api_key"`
	Folder     string        `mapstructure:"folder"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ExternalConfig enables provider sign-in when ProjectID is set. Issuer and
// audience default to the Firebase values for the project.
type ExternalConfig struct {
	ProjectID string        `mapstructure:"project_id"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
	JWKSURL   string        `mapstructure:"jwks_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func (e ExternalConfig) ResolvedIssuer() string {
	if e.Issuer != "" {
		return e.Issuer
	}
	return "https://securetoken.google.com/" + e.ProjectID
}

func (e ExternalConfig) ResolvedAudience() string {
	if e.Audience != "" {
		return e.Audience
	}
	return e.ProjectID
}

// Secrets are read from the environment with the DONOR_ prefix,
// e.g. DONOR_JWT_SECRET.
type Secrets struct {
	JWTSecret         string `envconfig:"JWT_SECRET" required:"true"`
	DatabasePassword  string `envconfig:"DB_PASSWORD"`
	EligibilityAPIKey string `envconfig:"ELIGIBILITY_API_KEY"`
	MatchingAPIKey    string `envconfig:"MATCHING_API_KEY"`
	SMSAuthToken      string `envconfig:"SMS_AUTH_TOKEN"`
	SMTPPassword      string `envconfig:"SMTP_PASSWORD"`
	StorageAPISecret  string `envconfig:"STORAGE_API_SECRET"`
}

const envPrefix = "DONOR"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.apply_schema", true)
	v.SetDefault("jwt.issuer", "donor-api")
	v.SetDefault("jwt.expiry_hours", 24)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 50)
	v.SetDefault("rate_limit.burst", 100)
	v.SetDefault("security.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("security.bcrypt_cost", 10)
	v.SetDefault("monitoring.prometheus_enabled", true)
	v.SetDefault("monitoring.namespace", "donor_api")
	v.SetDefault("matching.timeout", 10*time.Second)
	v.SetDefault("eligibility.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("eligibility.model", "gemini-1.5-flash")
	v.SetDefault("eligibility.timeout", 30*time.Second)
	v.SetDefault("eligibility.cache_ttl", 10*time.Minute)
	v.SetDefault("sms.base_url", "https://api.twilio.com")
	v.SetDefault("sms.to_prefix", "whatsapp:+91")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("receipts.dir", "./receipts")
	v.SetDefault("worker.retry_attempts", 3)
	v.SetDefault("worker.retry_delay", 2*time.Second)
	v.SetDefault("worker.health_port", 8081)
	v.SetDefault("storage.dir", "./uploads")
	v.SetDefault("storage.public_path", "/uploads/certificates")
	v.SetDefault("storage.base_url", "https://api.cloudinary.com")
	v.SetDefault("storage.folder", "medical_certificates")
	v.SetDefault("storage.timeout", 30*time.Second)
	v.SetDefault("external_auth.jwks_url", "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com")
	v.SetDefault("external_auth.timeout", 10*time.Second)
}

// LoadConfig reads config.yaml from the usual locations, applies DONOR_*
// environment overrides and loads secrets. A missing config file is not an
// error; defaults and environment still apply.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/app", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(envPrefix, &cfg.Secrets); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.JWT.ExpiryHours <= 0 {
		return fmt.Errorf("jwt expiry must be positive")
	}
	return nil
}
