package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	StorageLocal = "local"
)

type Config struct {
	Database  DatabaseConfig
	App       AppConfig
	Absence   AbsenceConfig
	Import    ImportConfig
	Storage   StorageConfig
	SchoolAPI SchoolAPIConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// AppConfig holds application configuration
type AppConfig struct {
	Port        int
	Env         string
	LogLevel    string
	FrontendURL string
	Timezone    string
}

// AbsenceConfig holds the classification and aggregation settings
type AbsenceConfig struct {
	ExcuseDeadlineDays   int
	DefaultRollingWeeks  int
	ErroneousEntryMarker string
	TardinessLabel       string
}

// ImportConfig holds import store and upload settings
type ImportConfig struct {
	Store          string
	TTL            time.Duration
	PurgeInterval  time.Duration
	MaxUploadBytes int64
}

type StorageConfig struct {
	Type     string
	BasePath string
}

// SchoolAPIConfig holds the school-management API settings.
// The adapter is disabled while BaseURL is empty.
type SchoolAPIConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

func Load() (*Config, error) {
	// .env is optional; real environment variables always win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxConns, err := strconv.ParseInt(getEnv("DB_MAX_CONNS", "10"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := strconv.ParseInt(getEnv("DB_MIN_CONNS", "2"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	connLifetime, err := time.ParseDuration(getEnv("DB_MAX_CONN_LIFETIME", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONN_LIFETIME: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            dbPort,
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		Name:            getEnv("DB_NAME", "absence-dashboard"),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		MaxConns:        int32(maxConns),
		MinConns:        int32(minConns),
		MaxConnLifetime: connLifetime,
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:        appPort,
		Env:         getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		Timezone:    getEnv("APP_TIMEZONE", "Europe/Berlin"),
	}

	// Absence configuration
	deadlineDays, err := strconv.Atoi(getEnv("EXCUSE_DEADLINE_DAYS", "7"))
	if err != nil {
		return nil, fmt.Errorf("invalid EXCUSE_DEADLINE_DAYS: %w", err)
	}

	rollingWeeks, err := strconv.Atoi(getEnv("DEFAULT_ROLLING_WEEKS", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_ROLLING_WEEKS: %w", err)
	}

	config.Absence = AbsenceConfig{
		ExcuseDeadlineDays:   deadlineDays,
		DefaultRollingWeeks:  rollingWeeks,
		ErroneousEntryMarker: getEnv("ERRONEOUS_ENTRY_MARKER", "fehleintrag"),
		TardinessLabel:       getEnv("TARDINESS_LABEL", "Verspätung"),
	}

	// Import configuration
	importTTL, err := time.ParseDuration(getEnv("IMPORT_TTL", "12h"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMPORT_TTL: %w", err)
	}

	purgeInterval, err := time.ParseDuration(getEnv("IMPORT_PURGE_INTERVAL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMPORT_PURGE_INTERVAL: %w", err)
	}

	maxUploadMB, err := strconv.ParseInt(getEnv("MAX_UPLOAD_SIZE_MB", "20"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE_MB: %w", err)
	}

	config.Import = ImportConfig{
		Store:          getEnv("IMPORT_STORE", StoreMemory),
		TTL:            importTTL,
		PurgeInterval:  purgeInterval,
		MaxUploadBytes: maxUploadMB << 20,
	}

	// Storage configuration
	config.Storage = StorageConfig{
		Type:     getEnv("STORAGE_TYPE", StorageLocal),
		BasePath: getEnv("STORAGE_BASE_PATH", "./uploads"),
	}

	// School API configuration
	apiTimeout, err := time.ParseDuration(getEnv("SCHOOL_API_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHOOL_API_TIMEOUT: %w", err)
	}

	config.SchoolAPI = SchoolAPIConfig{
		BaseURL:      getEnv("SCHOOL_API_BASE_URL", ""),
		TokenURL:     getEnv("SCHOOL_API_TOKEN_URL", ""),
		ClientID:     getEnv("SCHOOL_API_CLIENT_ID", ""),
		ClientSecret: getEnv("SCHOOL_API_CLIENT_SECRET", ""),
		Scopes:       getEnvSlice("SCHOOL_API_SCOPES"),
		Timeout:      apiTimeout,
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Absence.ExcuseDeadlineDays <= 0 {
		return fmt.Errorf("EXCUSE_DEADLINE_DAYS must be positive")
	}
	if c.Absence.DefaultRollingWeeks <= 0 {
		return fmt.Errorf("DEFAULT_ROLLING_WEEKS must be positive")
	}
	if c.Import.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_MB must be positive")
	}

	switch c.Import.Store {
	case StoreMemory:
	case StorePostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required when IMPORT_STORE is %s", StorePostgres)
		}
		if c.Database.MinConns > c.Database.MaxConns {
			return fmt.Errorf("DB_MIN_CONNS must not exceed DB_MAX_CONNS")
		}
	default:
		return fmt.Errorf("unsupported IMPORT_STORE: %s", c.Import.Store)
	}

	if c.Storage.Type != StorageLocal {
		return fmt.Errorf("unsupported STORAGE_TYPE: %s", c.Storage.Type)
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}

	if c.SchoolAPI.ClientID != "" && c.SchoolAPI.TokenURL == "" {
		return fmt.Errorf("SCHOOL_API_TOKEN_URL is required when SCHOOL_API_CLIENT_ID is set")
	}
	return nil
}

// Location returns the time zone day-precision dates are interpreted in
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.App.Timezone)
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.App.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
