package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration.
// It is built once at process start and never mutated afterwards.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Worker   WorkerConfig   `yaml:"worker"`
	Auth     AuthConfig     `yaml:"auth"`
	Upload   UploadConfig   `yaml:"upload"`
	Resemble ResembleConfig `yaml:"resemble"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedHosts    []string      `yaml:"allowed_hosts"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	URL        string           `yaml:"url"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Durable bool   `yaml:"durable"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name    string `yaml:"name"`
	Durable bool   `yaml:"durable"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name          string `yaml:"name"`
	Version       string `yaml:"version"`
	Environment   string `yaml:"environment"`
	PublicBaseURL string `yaml:"public_base_url"`
	MediaDir      string `yaml:"media_dir"`
	MediaURLPath  string `yaml:"media_url_path"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CookieConfig describes how one cookie is issued
type CookieConfig struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	Domain   string `yaml:"domain"`
	Secure   bool   `yaml:"secure"`
	SameSite string `yaml:"samesite"` // none, lax, strict
}

// AuthConfig holds JWT, cookie, CSRF and origin configuration
type AuthConfig struct {
	SigningSecret      string        `yaml:"-"` // env only, never in YAML
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl"`
	AccessCookie       CookieConfig  `yaml:"access_cookie"`
	RefreshCookie      CookieConfig  `yaml:"refresh_cookie"`
	CSRFCookie         CookieConfig  `yaml:"csrf_cookie"`
	CSRFHeaderName     string        `yaml:"csrf_header_name"`
	AllowHTTPHeader    bool          `yaml:"allow_http_header_auth"`
	AllowWSHeader      bool          `yaml:"allow_ws_header_auth"`
	CORSOrigins        []string      `yaml:"cors_origins"`
	WSOrigins          []string      `yaml:"ws_origins"`
	DevCORSOrigins     []string      `yaml:"dev_cors_origins"`
	DevWSOrigins       []string      `yaml:"dev_ws_origins"`
	AllowDevCORSOrigin bool          `yaml:"allow_dev_cors_origins"`
	AllowDevWSOrigin   bool          `yaml:"allow_dev_ws_origins"`
}

// UploadConfig holds upload validation settings
type UploadConfig struct {
	MaxBytes          int64    `yaml:"max_bytes"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	AllowedMIMEs      []string `yaml:"allowed_mime_prefixes"`
}

// ResembleConfig holds provider API settings
type ResembleConfig struct {
	APIKey    string `yaml:"-"` // env only, never in YAML
	SynthBase string `yaml:"synth_base"`
	AppBase   string `yaml:"app_base"`
}

// Load reads and parses the configuration file, then applies
// environment overrides for secrets.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	return &config, nil
}

// applyEnv reads secrets and env-only overrides
func (c *Config) applyEnv() {
	c.Auth.SigningSecret = os.Getenv("JWT_SIGNING_SECRET")
	c.Resemble.APIKey = os.Getenv("RESEMBLE_API_KEY")

	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		c.RabbitMQ.URL = v
	}
	if v := os.Getenv("RESEMBLE_SYNTH_BASE"); v != "" {
		c.Resemble.SynthBase = v
	}
	if v := os.Getenv("RESEMBLE_APP_API_BASE"); v != "" {
		c.Resemble.AppBase = v
	}
}

func (c *Config) applyDefaults() {
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 5 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.Auth.AccessCookie.Name == "" {
		c.Auth.AccessCookie.Name = "access_token"
	}
	if c.Auth.AccessCookie.Path == "" {
		c.Auth.AccessCookie.Path = "/"
	}
	if c.Auth.RefreshCookie.Name == "" {
		c.Auth.RefreshCookie.Name = "refresh_token"
	}
	if c.Auth.RefreshCookie.Path == "" {
		c.Auth.RefreshCookie.Path = "/api/v1/auth/"
	}
	if c.Auth.CSRFCookie.Name == "" {
		c.Auth.CSRFCookie.Name = "csrf_token"
	}
	if c.Auth.CSRFCookie.Path == "" {
		c.Auth.CSRFCookie.Path = "/"
	}
	if c.Auth.CSRFHeaderName == "" {
		c.Auth.CSRFHeaderName = "X-CSRF-Token"
	}
	if c.Resemble.SynthBase == "" {
		c.Resemble.SynthBase = "https://f.cluster.resemble.ai"
	}
	if c.Resemble.AppBase == "" {
		c.Resemble.AppBase = "https://app.resemble.ai"
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = 500 * 1024 * 1024
	}
	if c.Worker.MaxAttempts <= 0 {
		c.Worker.MaxAttempts = 3
	}
	if c.Worker.RetryBaseDelay <= 0 {
		c.Worker.RetryBaseDelay = time.Second
	}
}

// CORSAllowedOrigins returns the effective CORS origin allow-list
func (c *Config) CORSAllowedOrigins() []string {
	return mergeOrigins(c.Auth.CORSOrigins, c.Auth.DevCORSOrigins,
		c.Auth.AllowDevCORSOrigin || c.App.Environment != "production")
}

// WSAllowedOrigins returns the effective WebSocket origin allow-list
func (c *Config) WSAllowedOrigins() []string {
	return mergeOrigins(c.Auth.WSOrigins, c.Auth.DevWSOrigins,
		c.Auth.AllowDevWSOrigin || c.App.Environment != "production")
}

func mergeOrigins(prod, dev []string, includeDev bool) []string {
	out := make([]string, 0, len(prod)+len(dev))
	seen := map[string]bool{}
	add := func(origins []string) {
		for _, o := range origins {
			o = strings.TrimRight(strings.TrimSpace(o), "/")
			if o == "" || seen[o] {
				continue
			}
			seen[o] = true
			out = append(out, o)
		}
	}
	add(prod)
	if includeDev {
		add(dev)
	}
	return out
}

// ValidateAPIConfig checks the configuration needed by the API service
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateShared(); err != nil {
		return err
	}

	return nil
}

// ValidateWorkerConfig checks the configuration needed by the worker service
func (c *Config) ValidateWorkerConfig() error {
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if err := c.validateShared(); err != nil {
		return err
	}

	return nil
}

func (c *Config) validateShared() error {
	if c.Auth.SigningSecret == "" {
		return fmt.Errorf("JWT_SIGNING_SECRET is not set in environment")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.URL == "" {
		return fmt.Errorf("rabbitmq url is required")
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}
