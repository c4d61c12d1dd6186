package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/geoguard/geoguard/pkg/branding"
	"github.com/geoguard/geoguard/pkg/docstore"
	"github.com/geoguard/geoguard/pkg/identity"
	"github.com/geoguard/geoguard/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Store         StoreConfig         `yaml:"store"`
	Auth          AuthConfig          `yaml:"auth"`
	Invitations   InvitationsConfig   `yaml:"invitations"`
	Events        EventsConfig        `yaml:"events"`
	Branding      BrandingConfig      `yaml:"branding"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`

	// File is the YAML overlay the values were read from, if any
	File string `yaml:"-"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`

	AllowedOrigins []string `yaml:"allowed_origins"` // CORS; empty disables it
	SecureCookies  bool     `yaml:"secure_cookies"`
}

// StoreConfig selects and tunes the document store backend
type StoreConfig struct {
	Type             string        `yaml:"type"` // memory, filesystem, sqlite or postgres
	FilesystemRoot   string        `yaml:"filesystem_root"`
	SQLitePath       string        `yaml:"sqlite_path"`
	PostgresURL      string        `yaml:"postgres_url"`
	PostgresMaxConns int           `yaml:"postgres_max_conns"`
	PostgresMinConns int           `yaml:"postgres_min_conns"`
	PostgresTimeout  time.Duration `yaml:"postgres_timeout"`
	RedisURL         string        `yaml:"redis_url"`
	RedisPassword    string        `yaml:"redis_password"`
	RedisDB          int           `yaml:"redis_db"`
	CacheEnabled     bool          `yaml:"cache_enabled"`
	L1CacheSize      int           `yaml:"l1_cache_size"`
	L1CacheTTL       time.Duration `yaml:"l1_cache_ttl"`
	L2CacheTTL       time.Duration `yaml:"l2_cache_ttl"`
}

// AuthConfig configures credentials, sessions and single sign-on
type AuthConfig struct {
	SessionSecret string        `yaml:"session_secret"`
	SessionIssuer string        `yaml:"session_issuer"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	BcryptCost    int           `yaml:"bcrypt_cost"` // 0 selects bcrypt's default
	OIDC          OIDCConfig    `yaml:"oidc"`
}

// OIDCConfig configures sign-in through an external OpenID Connect provider
type OIDCConfig struct {
	Enabled      bool   `yaml:"enabled"`
	IssuerURL    string `yaml:"issuer_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// InvitationsConfig holds invitation defaults
type InvitationsConfig struct {
	DefaultExpiryDays int `yaml:"default_expiry_days"`
}

// EventsConfig configures the domain event publisher. Events are dropped
// when no AMQP URL is set.
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

// BrandingConfig configures tenant logo storage
type BrandingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	S3Endpoint    string `yaml:"s3_endpoint"`
	S3Region      string `yaml:"s3_region"`
	S3Bucket      string `yaml:"s3_bucket"`
	S3AccessKey   string `yaml:"s3_access_key"`
	S3SecretKey   string `yaml:"s3_secret_key"`
	S3PathStyle   bool   `yaml:"s3_path_style"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// AuditConfig configures where audit events go besides the store
type AuditConfig struct {
	Directory     string `yaml:"directory"` // rotated file copy; empty disables it
	RetentionDays int    `yaml:"retention_days"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	cache := docstore.DefaultCacheConfig()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Store: StoreConfig{
			Type:             "filesystem",
			FilesystemRoot:   "/var/lib/geoguard",
			SQLitePath:       "geoguard.db",
			PostgresMaxConns: 20,
			PostgresMinConns: 2,
			PostgresTimeout:  10 * time.Second,
			CacheEnabled:     true,
			L1CacheSize:      cache.L1Size,
			L1CacheTTL:       cache.L1TTL,
			L2CacheTTL:       cache.L2TTL,
		},
		Auth: AuthConfig{
			SessionIssuer: "geoguard",
			SessionTTL:    identity.DefaultSessionTTL,
		},
		Invitations: InvitationsConfig{DefaultExpiryDays: 7},
		Events:      EventsConfig{Exchange: "geoguard.events"},
		Branding:    BrandingConfig{S3Region: "us-east-1", S3Bucket: "geoguard-branding"},
		Audit:       AuditConfig{RetentionDays: 365},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "geoguard",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig reads .env (if present), then the YAML file named by
// GEOGUARD_CONFIG_FILE (if set), then GEOGUARD_* environment variables.
// Later sources win.
func LoadConfig() (*Config, error) {
	envFile := getEnv("GEOGUARD_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg, err := load(os.Getenv("GEOGUARD_CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func load(file string) (*Config, error) {
	cfg := Default()
	if file != "" {
		if err := readYAML(file, cfg); err != nil {
			return nil, err
		}
		cfg.File = file
	}
	applyEnv(cfg)
	return cfg, nil
}

func readYAML(file string, cfg *Config) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", file, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	s := &cfg.Server
	s.Host = getEnv("GEOGUARD_HOST", s.Host)
	s.Port = getEnv("GEOGUARD_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("GEOGUARD_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("GEOGUARD_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("GEOGUARD_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("GEOGUARD_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.HealthPort = getEnv("GEOGUARD_HEALTH_PORT", s.HealthPort)
	s.AllowedOrigins = getEnvList("GEOGUARD_ALLOWED_ORIGINS", s.AllowedOrigins)
	s.SecureCookies = getEnvBool("GEOGUARD_SECURE_COOKIES", s.SecureCookies)

	st := &cfg.Store
	st.Type = getEnv("GEOGUARD_STORE_TYPE", st.Type)
	st.FilesystemRoot = getEnv("GEOGUARD_FILESYSTEM_ROOT", st.FilesystemRoot)
	st.SQLitePath = getEnv("GEOGUARD_SQLITE_PATH", st.SQLitePath)
	st.PostgresURL = getEnv("GEOGUARD_POSTGRES_URL", st.PostgresURL)
	st.PostgresMaxConns = getEnvInt("GEOGUARD_POSTGRES_MAX_CONNS", st.PostgresMaxConns)
	st.PostgresMinConns = getEnvInt("GEOGUARD_POSTGRES_MIN_CONNS", st.PostgresMinConns)
	st.PostgresTimeout = getEnvDuration("GEOGUARD_POSTGRES_TIMEOUT", st.PostgresTimeout)
	st.RedisURL = getEnv("GEOGUARD_REDIS_URL", st.RedisURL)
	st.RedisPassword = getEnv("GEOGUARD_REDIS_PASSWORD", st.RedisPassword)
	st.RedisDB = getEnvInt("GEOGUARD_REDIS_DB", st.RedisDB)
	st.CacheEnabled = getEnvBool("GEOGUARD_CACHE_ENABLED", st.CacheEnabled)
	st.L1CacheSize = getEnvInt("GEOGUARD_L1_CACHE_SIZE", st.L1CacheSize)
	st.L1CacheTTL = getEnvDuration("GEOGUARD_L1_CACHE_TTL", st.L1CacheTTL)
	st.L2CacheTTL = getEnvDuration("GEOGUARD_L2_CACHE_TTL", st.L2CacheTTL)

	a := &cfg.Auth
	a.SessionSecret = getEnv("GEOGUARD_SESSION_SECRET", a.SessionSecret)
	a.SessionIssuer = getEnv("GEOGUARD_SESSION_ISSUER", a.SessionIssuer)
	a.SessionTTL = getEnvDuration("GEOGUARD_SESSION_TTL", a.SessionTTL)
	a.BcryptCost = getEnvInt("GEOGUARD_BCRYPT_COST", a.BcryptCost)
	a.OIDC.Enabled = getEnvBool("GEOGUARD_OIDC_ENABLED", a.OIDC.Enabled)
	a.OIDC.IssuerURL = getEnv("GEOGUARD_OIDC_ISSUER_URL", a.OIDC.IssuerURL)
	a.OIDC.ClientID = getEnv("GEOGUARD_OIDC_CLIENT_ID", a.OIDC.ClientID)
	a.OIDC.ClientSecret = getEnv("GEOGUARD_OIDC_CLIENT_SECRET", a.OIDC.ClientSecret)
	a.OIDC.RedirectURL = getEnv("GEOGUARD_OIDC_REDIRECT_URL", a.OIDC.RedirectURL)

	cfg.Invitations.DefaultExpiryDays = getEnvInt("GEOGUARD_INVITATION_EXPIRY_DAYS", cfg.Invitations.DefaultExpiryDays)

	cfg.Events.AMQPURL = getEnv("GEOGUARD_AMQP_URL", cfg.Events.AMQPURL)
	cfg.Events.Exchange = getEnv("GEOGUARD_AMQP_EXCHANGE", cfg.Events.Exchange)

	b := &cfg.Branding
	b.Enabled = getEnvBool("GEOGUARD_BRANDING_ENABLED", b.Enabled)
	b.S3Endpoint = getEnv("GEOGUARD_S3_ENDPOINT", b.S3Endpoint)
	b.S3Region = getEnv("GEOGUARD_S3_REGION", b.S3Region)
	b.S3Bucket = getEnv("GEOGUARD_S3_BUCKET", b.S3Bucket)
	b.S3AccessKey = getEnv("GEOGUARD_S3_ACCESS_KEY", b.S3AccessKey)
	b.S3SecretKey = getEnv("GEOGUARD_S3_SECRET_KEY", b.S3SecretKey)
	b.S3PathStyle = getEnvBool("GEOGUARD_S3_USE_PATH_STYLE", b.S3PathStyle)
	b.PublicBaseURL = getEnv("GEOGUARD_BRANDING_PUBLIC_URL", b.PublicBaseURL)

	cfg.Audit.Directory = getEnv("GEOGUARD_AUDIT_DIR", cfg.Audit.Directory)
	cfg.Audit.RetentionDays = getEnvInt("GEOGUARD_AUDIT_RETENTION_DAYS", cfg.Audit.RetentionDays)

	o := &cfg.Observability
	o.LogLevel = getEnv("GEOGUARD_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("GEOGUARD_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("GEOGUARD_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("GEOGUARD_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("GEOGUARD_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("GEOGUARD_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("GEOGUARD_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("GEOGUARD_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Store.Type {
	case "memory":
	case "filesystem":
		if c.Store.FilesystemRoot == "" {
			return fmt.Errorf("filesystem root is required for filesystem store")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite store")
		}
	case "postgres":
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres store")
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be memory, filesystem, sqlite, or postgres)", c.Store.Type)
	}

	if len(c.Auth.SessionSecret) < 32 {
		return fmt.Errorf("session secret must be at least 32 bytes")
	}
	if c.Auth.OIDC.Enabled && (c.Auth.OIDC.IssuerURL == "" || c.Auth.OIDC.ClientID == "" || c.Auth.OIDC.RedirectURL == "") {
		return fmt.Errorf("OIDC issuer URL, client ID and redirect URL are required when OIDC is enabled")
	}
	if c.Invitations.DefaultExpiryDays <= 0 {
		return fmt.Errorf("invitation expiry must be positive")
	}
	if c.Branding.Enabled && c.Branding.S3Bucket == "" {
		return fmt.Errorf("S3 bucket is required when branding is enabled")
	}
	if c.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit retention must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	return nil
}

// DocstoreConfig converts the store section for docstore.Open
func (c *Config) DocstoreConfig() docstore.Config {
	st := c.Store
	return docstore.Config{
		Type:             st.Type,
		FilesystemRoot:   st.FilesystemRoot,
		SQLitePath:       st.SQLitePath,
		PostgresURL:      st.PostgresURL,
		PostgresMaxConns: st.PostgresMaxConns,
		PostgresMinConns: st.PostgresMinConns,
		PostgresTimeout:  st.PostgresTimeout,
		RedisURL:         st.RedisURL,
		RedisPassword:    st.RedisPassword,
		RedisDB:          st.RedisDB,
		CacheEnabled:     st.CacheEnabled,
		Cache: docstore.CacheConfig{
			L1Size: st.L1CacheSize,
			L1TTL:  st.L1CacheTTL,
			L2TTL:  st.L2CacheTTL,
		},
	}
}

// S3Config converts the branding section for branding.NewS3LogoStore
func (c *Config) S3Config() branding.S3Config {
	b := c.Branding
	return branding.S3Config{
		Endpoint:      b.S3Endpoint,
		Region:        b.S3Region,
		Bucket:        b.S3Bucket,
		AccessKey:     b.S3AccessKey,
		SecretKey:     b.S3SecretKey,
		UsePathStyle:  b.S3PathStyle,
		PublicBaseURL: b.PublicBaseURL,
	}
}

// OIDCProviderConfig converts the OIDC section for identity.NewOIDCVerifier
func (c *Config) OIDCProviderConfig() identity.OIDCConfig {
	o := c.Auth.OIDC
	return identity.OIDCConfig{
		IssuerURL:    o.IssuerURL,
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		RedirectURL:  o.RedirectURL,
	}
}

// OTelConfig converts the observability section for observability.InitOTel
func (c *Config) OTelConfig() observability.OTelConfig {
	o := c.Observability
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// LogLevel returns the parsed log level
func (c *Config) LogLevel() observability.LogLevel {
	return observability.ParseLevel(c.Observability.LogLevel)
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
