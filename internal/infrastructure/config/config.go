package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all worker configuration
type Config struct {
	App        AppConfig
	Log        LogConfig
	Target     TargetConfig
	Pipeline   PipelineConfig
	Queue      QueueConfig
	Secrets    SecretsConfig
	Xero       XeroConfig
	QuickBooks QuickBooksConfig
	Mapping    MappingConfig
	HTTP       HTTPConfig
	Telemetry  TelemetryConfig
}

// AppConfig holds application identity
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// TargetConfig selects the accounting system invoices are delivered to
type TargetConfig struct {
	System      string // xero, quickbooks
	AccountCode string // overrides the target's default ledger account code
}

// PipelineConfig holds message processing settings
type PipelineConfig struct {
	MaxDeliveryAttempts int
	Concurrency         int
	ReceiveBackoff      time.Duration
	ActionTimeout       time.Duration
}

// QueueConfig holds queue transport settings
type QueueConfig struct {
	Transport        string // redis, memory
	Redis            RedisConfig
	Stream           string
	Group            string
	DeadLetterStream string
	LeaseDuration    time.Duration
	BlockTimeout     time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SecretsConfig holds secret store settings
type SecretsConfig struct {
	Provider  string // s3, static
	Timeout   time.Duration
	CacheTTL  time.Duration
	CacheSkew time.Duration
	S3        S3SecretsConfig
	Values    map[string]string
}

// S3SecretsConfig locates secrets kept as objects in an S3-compatible bucket
type S3SecretsConfig struct {
	Endpoint     string
	Region       string
	Bucket       string
	Prefix       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// XeroConfig holds Xero API settings
type XeroConfig struct {
	BaseURL     string
	TenantID    string
	TokenSecret string
	Timeout     time.Duration
}

// QuickBooksConfig holds QuickBooks API settings
type QuickBooksConfig struct {
	BaseURL string
}

// MappingConfig holds customer mapping sources
type MappingConfig struct {
	Customers map[string]string
	Database  DatabaseConfig
}

// DatabaseConfig locates the read-only customer mapping table
type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Table           string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
}

// HTTPConfig holds operational HTTP server settings
type HTTPConfig struct {
	Enabled      bool
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string  // e.g. "localhost:4317"
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	Insecure          bool
	ExportInterval    time.Duration
	DBTraceEnabled    bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with INVOICESYNC_ prefix (e.g., INVOICESYNC_XERO_TENANT_ID)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/invoicesync")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, defaults and env vars apply
	}

	v.SetEnvPrefix("INVOICESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The operational endpoints are on unless explicitly disabled
	v.SetDefault("http.enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Target: TargetConfig{
			System:      v.GetString("target.system"),
			AccountCode: v.GetString("target.account_code"),
		},
		Pipeline: PipelineConfig{
			MaxDeliveryAttempts: v.GetInt("pipeline.max_delivery_attempts"),
			Concurrency:         v.GetInt("pipeline.concurrency"),
			ReceiveBackoff:      v.GetDuration("pipeline.receive_backoff"),
			ActionTimeout:       v.GetDuration("pipeline.action_timeout"),
		},
		Queue: QueueConfig{
			Transport: v.GetString("queue.transport"),
			Redis: RedisConfig{
				Host:     v.GetString("queue.redis.host"),
				Port:     v.GetInt("queue.redis.port"),
				Password: v.GetString("queue.redis.password"),
				DB:       v.GetInt("queue.redis.db"),
			},
			Stream:           v.GetString("queue.stream"),
			Group:            v.GetString("queue.group"),
			DeadLetterStream: v.GetString("queue.dead_letter_stream"),
			LeaseDuration:    v.GetDuration("queue.lease_duration"),
			BlockTimeout:     v.GetDuration("queue.block_timeout"),
		},
		Secrets: SecretsConfig{
			Provider:  v.GetString("secrets.provider"),
			Timeout:   v.GetDuration("secrets.timeout"),
			CacheTTL:  v.GetDuration("secrets.cache_ttl"),
			CacheSkew: v.GetDuration("secrets.cache_skew"),
			S3: S3SecretsConfig{
				Endpoint:     v.GetString("secrets.s3.endpoint"),
				Region:       v.GetString("secrets.s3.region"),
				Bucket:       v.GetString("secrets.s3.bucket"),
				Prefix:       v.GetString("secrets.s3.prefix"),
				AccessKey:    v.GetString("secrets.s3.access_key"),
				SecretKey:    v.GetString("secrets.s3.secret_key"),
				UsePathStyle: v.GetBool("secrets.s3.use_path_style"),
			},
			Values: v.GetStringMapString("secrets.values"),
		},
		Xero: XeroConfig{
			BaseURL:     v.GetString("xero.base_url"),
			TenantID:    v.GetString("xero.tenant_id"),
			TokenSecret: v.GetString("xero.token_secret"),
			Timeout:     v.GetDuration("xero.timeout"),
		},
		QuickBooks: QuickBooksConfig{
			BaseURL: v.GetString("quickbooks.base_url"),
		},
		Mapping: MappingConfig{
			Customers: v.GetStringMapString("mapping.customers"),
			Database: DatabaseConfig{
				Enabled:         v.GetBool("mapping.database.enabled"),
				Host:            v.GetString("mapping.database.host"),
				Port:            v.GetInt("mapping.database.port"),
				User:            v.GetString("mapping.database.user"),
				Password:        v.GetString("mapping.database.password"),
				DBName:          v.GetString("mapping.database.dbname"),
				SSLMode:         v.GetString("mapping.database.sslmode"),
				Table:           v.GetString("mapping.database.table"),
				MaxOpenConns:    v.GetInt("mapping.database.max_open_conns"),
				MaxIdleConns:    v.GetInt("mapping.database.max_idle_conns"),
				ConnMaxLifetime: v.GetInt("mapping.database.conn_max_lifetime"),
			},
		},
		HTTP: HTTPConfig{
			Enabled:      v.GetBool("http.enabled"),
			Port:         v.GetString("http.port"),
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "invoicesync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Target.System == "" {
		cfg.Target.System = "xero"
	}
	if cfg.Pipeline.MaxDeliveryAttempts == 0 {
		cfg.Pipeline.MaxDeliveryAttempts = 3
	}
	if cfg.Pipeline.Concurrency == 0 {
		cfg.Pipeline.Concurrency = 4
	}
	if cfg.Pipeline.ReceiveBackoff == 0 {
		cfg.Pipeline.ReceiveBackoff = time.Second
	}
	if cfg.Pipeline.ActionTimeout == 0 {
		cfg.Pipeline.ActionTimeout = 10 * time.Second
	}
	if cfg.Queue.Transport == "" {
		cfg.Queue.Transport = "redis"
	}
	if cfg.Queue.Redis.Host == "" {
		cfg.Queue.Redis.Host = "localhost"
	}
	if cfg.Queue.Redis.Port == 0 {
		cfg.Queue.Redis.Port = 6379
	}
	if cfg.Queue.Stream == "" {
		cfg.Queue.Stream = "invoice-posted"
	}
	if cfg.Queue.Group == "" {
		cfg.Queue.Group = "invoice-processor"
	}
	if cfg.Queue.DeadLetterStream == "" {
		cfg.Queue.DeadLetterStream = cfg.Queue.Stream + ":deadletter"
	}
	if cfg.Queue.LeaseDuration == 0 {
		cfg.Queue.LeaseDuration = 5 * time.Minute
	}
	if cfg.Queue.BlockTimeout == 0 {
		cfg.Queue.BlockTimeout = 5 * time.Second
	}
	if cfg.Secrets.Provider == "" {
		cfg.Secrets.Provider = "static"
	}
	if cfg.Secrets.Timeout == 0 {
		cfg.Secrets.Timeout = 10 * time.Second
	}
	if cfg.Secrets.CacheSkew == 0 {
		cfg.Secrets.CacheSkew = 30 * time.Second
	}
	if cfg.Secrets.S3.Region == "" {
		cfg.Secrets.S3.Region = "us-east-1"
	}
	if cfg.Secrets.S3.Prefix == "" {
		cfg.Secrets.S3.Prefix = "secrets/"
	}
	if cfg.Secrets.Values == nil {
		cfg.Secrets.Values = map[string]string{}
	}
	if cfg.Xero.BaseURL == "" {
		cfg.Xero.BaseURL = "https://api.xero.com/api.xro/2.0/"
	}
	if cfg.Xero.TokenSecret == "" {
		cfg.Xero.TokenSecret = "XeroAccessToken"
	}
	if cfg.Xero.Timeout == 0 {
		cfg.Xero.Timeout = 30 * time.Second
	}
	if cfg.QuickBooks.BaseURL == "" {
		cfg.QuickBooks.BaseURL = "https://quickbooks.api.intuit.com/v3/company/"
	}
	if cfg.Mapping.Customers == nil {
		cfg.Mapping.Customers = map[string]string{}
	}
	db := &cfg.Mapping.Database
	if db.Host == "" {
		db.Host = "localhost"
	}
	if db.Port == 0 {
		db.Port = 5432
	}
	if db.User == "" {
		db.User = "postgres"
	}
	if db.DBName == "" {
		db.DBName = "invoicesync"
	}
	if db.SSLMode == "" {
		db.SSLMode = "disable"
	}
	if db.Table == "" {
		db.Table = "customer_mappings"
	}
	if db.MaxOpenConns == 0 {
		db.MaxOpenConns = 2
	}
	if db.MaxIdleConns == 0 {
		db.MaxIdleConns = 1
	}
	if db.ConnMaxLifetime == 0 {
		db.ConnMaxLifetime = 30
	}
	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "8081"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 5 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 10 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "invoicesync"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Target.System)) {
	case "xero", "quickbooks":
	default:
		return fmt.Errorf("target.system %q is not supported (expected xero or quickbooks)", c.Target.System)
	}
	if c.Pipeline.MaxDeliveryAttempts < 1 {
		return fmt.Errorf("pipeline.max_delivery_attempts must be at least 1, got %d", c.Pipeline.MaxDeliveryAttempts)
	}
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be at least 1, got %d", c.Pipeline.Concurrency)
	}
	if c.Pipeline.ActionTimeout < 0 || c.Pipeline.ReceiveBackoff < 0 {
		return fmt.Errorf("pipeline timeouts cannot be negative")
	}

	switch c.Queue.Transport {
	case "redis", "memory":
	default:
		return fmt.Errorf("queue.transport %q is not supported (expected redis or memory)", c.Queue.Transport)
	}
	if c.Queue.Stream == c.Queue.DeadLetterStream {
		return fmt.Errorf("queue.dead_letter_stream must differ from queue.stream")
	}
	if c.Queue.LeaseDuration <= 0 {
		return fmt.Errorf("queue.lease_duration must be positive")
	}

	switch c.Secrets.Provider {
	case "s3":
		if c.Secrets.S3.Bucket == "" {
			return fmt.Errorf("secrets.s3.bucket is required when secrets.provider is s3")
		}
	case "static":
	default:
		return fmt.Errorf("secrets.provider %q is not supported (expected s3 or static)", c.Secrets.Provider)
	}
	if c.Secrets.Timeout <= 0 {
		return fmt.Errorf("secrets.timeout must be positive")
	}

	if c.Xero.Timeout <= 0 {
		return fmt.Errorf("xero.timeout must be positive")
	}

	if c.Mapping.Database.MaxIdleConns > c.Mapping.Database.MaxOpenConns {
		return fmt.Errorf("mapping.database.max_idle_conns (%d) cannot exceed mapping.database.max_open_conns (%d)",
			c.Mapping.Database.MaxIdleConns, c.Mapping.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if c.Secrets.Provider == "static" {
			return fmt.Errorf("secrets.provider cannot be static in production")
		}
		if c.Queue.Transport == "memory" {
			return fmt.Errorf("queue.transport cannot be memory in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
