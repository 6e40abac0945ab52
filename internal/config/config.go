package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sqlchat/sqlchat/internal/dsn"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	DriverPostgres = "postgres"
	DriverDuckDB   = "duckdb"
)

const (
	TranscriptBackendMemory = "memory"
	TranscriptBackendRedis  = "redis"
)

var (
	ErrMissingAPIKey     = errors.New("model api key is required (SQLCHAT_AI_API_KEY or GROQ_API_KEY)")
	ErrMissingDBPassword = errors.New("database password is required (SQLCHAT_DB_PASSWORD or DB_PASSWORD)")
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	AI            AIConfig
	Pipeline      PipelineConfig
	Transcript    TranscriptConfig
	Archive       ArchiveConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	Schema          string
	IncludeTables   []string
	SampleRows      int
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type AIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type PipelineConfig struct {
	TopK int
}

type TranscriptConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration
	KeyPrefix     string
}

type ArchiveConfig struct {
	Enabled          bool
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

// LoadFromEnv reads an optional dotenv file (SQLCHAT_ENV_FILE, default .env)
// into the process environment before resolving the configuration.
func LoadFromEnv(serviceName string) (Config, error) {
	envFile := ".env"
	if raw, ok := os.LookupEnv("SQLCHAT_ENV_FILE"); ok && strings.TrimSpace(raw) != "" {
		envFile = strings.TrimSpace(raw)
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load env file %q: %w", envFile, err)
		}
	}
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SQLCHAT_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SQLCHAT_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	// Legacy unprefixed names are read first so the prefixed ones win.
	applySecret(lookup, "GROQ_API_KEY", &cfg.AI.APIKey)
	applySecret(lookup, "DB_PASSWORD", &cfg.Database.Password)

	stringVars := []struct {
		key string
		dst *string
	}{
		{"SQLCHAT_SERVICE_NAME", &cfg.Service.Name},
		{"SQLCHAT_HTTP_ADDR", &cfg.HTTP.Address},
		{"SQLCHAT_DB_DRIVER", &cfg.Database.Driver},
		{"SQLCHAT_DB_DSN", &cfg.Database.DSN},
		{"SQLCHAT_DB_HOST", &cfg.Database.Host},
		{"SQLCHAT_DB_NAME", &cfg.Database.Name},
		{"SQLCHAT_DB_USER", &cfg.Database.User},
		{"SQLCHAT_DB_SSLMODE", &cfg.Database.SSLMode},
		{"SQLCHAT_DB_SCHEMA", &cfg.Database.Schema},
		{"SQLCHAT_AI_BASE_URL", &cfg.AI.BaseURL},
		{"SQLCHAT_AI_MODEL", &cfg.AI.Model},
		{"SQLCHAT_TRANSCRIPT_BACKEND", &cfg.Transcript.Backend},
		{"SQLCHAT_REDIS_ADDR", &cfg.Transcript.RedisAddr},
		{"SQLCHAT_REDIS_KEY_PREFIX", &cfg.Transcript.KeyPrefix},
		{"SQLCHAT_ARCHIVE_ENDPOINT", &cfg.Archive.Endpoint},
		{"SQLCHAT_ARCHIVE_REGION", &cfg.Archive.Region},
		{"SQLCHAT_ARCHIVE_BUCKET", &cfg.Archive.Bucket},
		{"SQLCHAT_ARCHIVE_ACCESS_KEY", &cfg.Archive.AccessKeyID},
		{"SQLCHAT_ARCHIVE_PREFIX", &cfg.Archive.Prefix},
	}
	for _, item := range stringVars {
		applyString(lookup, item.key, item.dst)
	}
	applySecret(lookup, "SQLCHAT_DB_PASSWORD", &cfg.Database.Password)
	applySecret(lookup, "SQLCHAT_AI_API_KEY", &cfg.AI.APIKey)
	applySecret(lookup, "SQLCHAT_REDIS_PASSWORD", &cfg.Transcript.RedisPassword)
	applySecret(lookup, "SQLCHAT_ARCHIVE_SECRET_KEY", &cfg.Archive.SecretAccessKey)

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SQLCHAT_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout},
		{"SQLCHAT_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout},
		{"SQLCHAT_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout},
		{"SQLCHAT_DB_CONN_MAX_IDLE_TIME", &cfg.Database.ConnMaxIdleTime},
		{"SQLCHAT_DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime},
		{"SQLCHAT_AI_TIMEOUT", &cfg.AI.Timeout},
		{"SQLCHAT_TRANSCRIPT_SESSION_TTL", &cfg.Transcript.SessionTTL},
	}
	for _, item := range durations {
		if err := applyDuration(lookup, item.key, item.dst); err != nil {
			return Config{}, err
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"SQLCHAT_DB_PORT", &cfg.Database.Port},
		{"SQLCHAT_DB_SAMPLE_ROWS", &cfg.Database.SampleRows},
		{"SQLCHAT_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns},
		{"SQLCHAT_DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns},
		{"SQLCHAT_TOP_K", &cfg.Pipeline.TopK},
		{"SQLCHAT_REDIS_DB", &cfg.Transcript.RedisDB},
	}
	for _, item := range ints {
		if err := applyInt(lookup, item.key, item.dst); err != nil {
			return Config{}, err
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"SQLCHAT_ARCHIVE_ENABLED", &cfg.Archive.Enabled},
		{"SQLCHAT_ARCHIVE_USE_SSL", &cfg.Archive.UseSSL},
		{"SQLCHAT_ARCHIVE_AUTO_CREATE_BUCKET", &cfg.Archive.AutoCreateBucket},
		{"SQLCHAT_LOG_JSON", &cfg.Observability.LogJSON},
	}
	for _, item := range bools {
		if err := applyBool(lookup, item.key, item.dst); err != nil {
			return Config{}, err
		}
	}

	if err := applyFloat(lookup, "SQLCHAT_AI_TEMPERATURE", &cfg.AI.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "SQLCHAT_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if raw, ok := lookup("SQLCHAT_DB_INCLUDE_TABLES"); ok {
		cfg.Database.IncludeTables = splitList(raw)
	}

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	cfg.Transcript.Backend = strings.ToLower(cfg.Transcript.Backend)

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	switch cfg.Database.Driver {
	case DriverPostgres, DriverDuckDB:
	default:
		return Config{}, fmt.Errorf("invalid SQLCHAT_DB_DRIVER: %q", cfg.Database.Driver)
	}
	switch cfg.Transcript.Backend {
	case TranscriptBackendMemory, TranscriptBackendRedis:
	default:
		return Config{}, fmt.Errorf("invalid SQLCHAT_TRANSCRIPT_BACKEND: %q", cfg.Transcript.Backend)
	}
	if cfg.Pipeline.TopK <= 0 {
		return Config{}, fmt.Errorf("SQLCHAT_TOP_K must be positive, got %d", cfg.Pipeline.TopK)
	}
	return cfg, nil
}

// RequireCredentials reports a configuration error when the model key or the
// database password is absent. Services that answer questions call it at startup
// and treat a non-nil result as fatal.
func (c Config) RequireCredentials() error {
	if strings.TrimSpace(c.AI.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return c.Database.RequirePassword()
}

func (d DatabaseConfig) RequirePassword() error {
	if d.Driver == DriverPostgres && d.DSN == "" && d.Password == "" {
		return ErrMissingDBPassword
	}
	return nil
}

// ConnectionURI returns the explicit DSN when one is configured, otherwise the
// URI assembled from the connection constants and the password.
func (d DatabaseConfig) ConnectionURI() (string, error) {
	if d.DSN != "" || d.Driver == DriverDuckDB {
		return d.DSN, nil
	}
	params := map[string]string{}
	if d.SSLMode != "" {
		params["sslmode"] = d.SSLMode
	}
	uri, err := dsn.Build(dsn.Params{
		User:     d.User,
		Password: d.Password,
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Name,
		Options:  params,
	})
	if err != nil {
		if errors.Is(err, dsn.ErrMissingPassword) {
			return "", ErrMissingDBPassword
		}
		return "", err
	}
	return uri, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlchat-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          DriverPostgres,
			Host:            "localhost",
			Port:            5432,
			Name:            "postgres",
			User:            "postgres",
			SSLMode:         "",
			SampleRows:      3,
			MaxOpenConns:    5,
			MaxIdleConns:    5,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		AI: AIConfig{
			BaseURL:     "https://api.groq.com/openai",
			Model:       "llama3-70b-8192",
			Temperature: 0,
		},
		Pipeline: PipelineConfig{
			TopK: 10,
		},
		Transcript: TranscriptConfig{
			Backend:    TranscriptBackendMemory,
			RedisAddr:  "localhost:6379",
			SessionTTL: 24 * time.Hour,
			KeyPrefix:  "sqlchat:transcript:",
		},
		Archive: ArchiveConfig{
			Enabled:          false,
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "sqlchat",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Database.SSLMode = "require"
		cfg.Archive.UseSSL = true
		cfg.Archive.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) {
	raw, ok := lookup(key)
	if !ok {
		return
	}
	*dst = strings.TrimSpace(raw)
}

// applySecret keeps the value byte for byte; passwords may carry spaces.
func applySecret(lookup LookupFunc, key string, dst *string) {
	if raw, ok := lookup(key); ok {
		*dst = raw
	}
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
