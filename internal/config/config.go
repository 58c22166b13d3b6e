package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Dashboard DashboardConfig
	Session   SessionConfig
	Redis     RedisConfig
	Speech    SpeechConfig
	Storage   StorageConfig
	Logging   LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	RateLimitRPS    float64
	RateLimitBurst  int
}

// BackendConfig points at the clinical backend
type BackendConfig struct {
	BaseURL        string
	Timeout        time.Duration
	StrictContract bool
	DevProxy       bool
}

// DashboardConfig holds the refresh interval of each counter
type DashboardConfig struct {
	MedicationsInterval  time.Duration
	AppointmentsInterval time.Duration
	HealthScoreInterval  time.Duration
}

// SessionConfig controls session lifetime and snapshot persistence
type SessionConfig struct {
	IdleTimeout   time.Duration
	Store         string // memory or redis
	SnapshotTTL   time.Duration
	EncryptionKey string
}

// RedisConfig holds the snapshot store connection
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// SpeechConfig holds Azure Speech Service configuration. Speech synthesis
// is disabled when the key is empty.
type SpeechConfig struct {
	SubscriptionKey string
	Region          string
	ChunkLength     int
	Language        string
}

// StorageConfig holds Azure Blob Storage configuration. Media is kept in
// memory when the account is empty.
type StorageConfig struct {
	AccountName         string
	AccountKey          string
	AttachmentContainer string
	MemoryItems         int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// IsProduction reports whether the server runs in production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdowntimeout", 30*time.Second)
	v.SetDefault("server.corsorigins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.ratelimitrps", 20.0)
	v.SetDefault("server.ratelimitburst", 40)

	// Backend defaults
	v.SetDefault("backend.baseurl", "http://localhost:8000")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("backend.strictcontract", false)
	v.SetDefault("backend.devproxy", false)

	// Dashboard defaults
	v.SetDefault("dashboard.medicationsinterval", 30*time.Second)
	v.SetDefault("dashboard.appointmentsinterval", 60*time.Second)
	v.SetDefault("dashboard.healthscoreinterval", 60*time.Second)

	// Session defaults
	v.SetDefault("session.idletimeout", 30*time.Minute)
	v.SetDefault("session.store", "memory")
	v.SetDefault("session.snapshotttl", 24*time.Hour)

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.keyprefix", "patient-portal:booking:")

	// Speech defaults
	v.SetDefault("speech.chunklength", 200)
	v.SetDefault("speech.language", "en-US")

	// Storage defaults
	v.SetDefault("storage.attachmentcontainer", "chat-attachments")
	v.SetDefault("storage.memoryitems", 256)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.environment", "ENV", "ENVIRONMENT")
	v.BindEnv("server.corsorigins", "CORS_ORIGINS")
	v.BindEnv("server.ratelimitrps", "RATE_LIMIT_RPS")
	v.BindEnv("server.ratelimitburst", "RATE_LIMIT_BURST")

	// Backend
	v.BindEnv("backend.baseurl", "BACKEND_URL")
	v.BindEnv("backend.timeout", "BACKEND_TIMEOUT")
	v.BindEnv("backend.strictcontract", "BACKEND_STRICT_CONTRACT")
	v.BindEnv("backend.devproxy", "BACKEND_DEV_PROXY")

	// Dashboard
	v.BindEnv("dashboard.medicationsinterval", "DASHBOARD_MEDICATIONS_INTERVAL")
	v.BindEnv("dashboard.appointmentsinterval", "DASHBOARD_APPOINTMENTS_INTERVAL")
	v.BindEnv("dashboard.healthscoreinterval", "DASHBOARD_HEALTH_SCORE_INTERVAL")

	// Session
	v.BindEnv("session.idletimeout", "SESSION_IDLE_TIMEOUT")
	v.BindEnv("session.store", "SESSION_STORE")
	v.BindEnv("session.snapshotttl", "SESSION_SNAPSHOT_TTL")
	v.BindEnv("session.encryptionkey", "SESSION_ENCRYPTION_KEY")

	// Redis
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("redis.keyprefix", "REDIS_KEY_PREFIX")

	// Azure Speech
	v.BindEnv("speech.subscriptionkey", "AZURE_SPEECH_KEY")
	v.BindEnv("speech.region", "AZURE_SPEECH_REGION")
	v.BindEnv("speech.chunklength", "SPEECH_CHUNK_LENGTH")
	v.BindEnv("speech.language", "SPEECH_LANGUAGE")

	// Azure Storage
	v.BindEnv("storage.accountname", "AZURE_STORAGE_ACCOUNT_NAME")
	v.BindEnv("storage.accountkey", "AZURE_STORAGE_ACCOUNT_KEY")
	v.BindEnv("storage.attachmentcontainer", "AZURE_STORAGE_ATTACHMENT_CONTAINER")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.baseurl must be an absolute URL, got %q", c.Backend.BaseURL)
	}

	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}

	switch c.Session.Store {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when session.store is redis")
		}
	default:
		return fmt.Errorf("session.store must be memory or redis, got %q", c.Session.Store)
	}

	if c.Speech.SubscriptionKey != "" && c.Speech.Region == "" {
		return fmt.Errorf("speech.region is required when a speech key is set")
	}

	if (c.Storage.AccountName == "") != (c.Storage.AccountKey == "") {
		return fmt.Errorf("azure storage needs both account name and key")
	}

	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.ratelimitrps must not be negative")
	}

	return nil
}
