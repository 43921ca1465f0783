package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Source drivers supported for schedule and ledger sheets.
const (
	SourceDriverPostgres = "postgres"
	SourceDriverCSV      = "csv"
)

// Plan store backends.
const (
	PlanStoreMemory = "memory"
	PlanStoreRedis  = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	CORS         CORSConfig
	Log          LogConfig
	Source       SourceConfig
	Substitution SubstitutionConfig
	Sheets       SheetsConfig
	Plans        PlansConfig
	Metrics      MetricsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SourceConfig selects where schedule and ledger sheets are read from.
type SourceConfig struct {
	Driver          string
	CSVDir          string
	Timeout         time.Duration
	WriteRetries    int
	WriteRetryDelay time.Duration
}

// SubstitutionConfig holds the eligibility caps and the selectable days.
type SubstitutionConfig struct {
	Days             []string
	WorkloadCap      int
	FairnessCap      int
	DebitExemptRoles []string
}

// SheetsConfig describes the expected header layout of the raw sheets.
type SheetsConfig struct {
	ScheduleHeaderRow  int
	ScheduleNameColumn string
	ScheduleRoleColumn string
	LedgerHeaderRow    int
	LedgerNameColumn   string
	LedgerDebitColumn  string
	LedgerCreditColumn string
}

// PlansConfig controls where unconfirmed plans live and for how long.
type PlansConfig struct {
	Store string
	TTL   time.Duration
}

type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Source = SourceConfig{
		Driver:          strings.ToLower(strings.TrimSpace(v.GetString("SOURCE_DRIVER"))),
		CSVDir:          v.GetString("SOURCE_CSV_DIR"),
		Timeout:         parseDuration(v.GetString("SOURCE_TIMEOUT"), 10*time.Second),
		WriteRetries:    nonNegativeOr(v.GetInt("SOURCE_WRITE_RETRIES"), 5),
		WriteRetryDelay: parseDuration(v.GetString("SOURCE_WRITE_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Substitution = SubstitutionConfig{
		Days:             splitAndTrim(v.GetString("SUBSTITUTION_DAYS")),
		WorkloadCap:      positiveOr(v.GetInt("SUBSTITUTION_WORKLOAD_CAP"), 6),
		FairnessCap:      positiveOr(v.GetInt("SUBSTITUTION_FAIRNESS_CAP"), 4),
		DebitExemptRoles: splitAndTrim(v.GetString("DEBIT_EXEMPT_ROLES")),
	}

	cfg.Sheets = SheetsConfig{
		ScheduleHeaderRow:  nonNegativeOr(v.GetInt("SCHEDULE_HEADER_ROW"), 1),
		ScheduleNameColumn: v.GetString("SCHEDULE_NAME_COLUMN"),
		ScheduleRoleColumn: v.GetString("SCHEDULE_ROLE_COLUMN"),
		LedgerHeaderRow:    nonNegativeOr(v.GetInt("LEDGER_HEADER_ROW"), 0),
		LedgerNameColumn:   v.GetString("LEDGER_NAME_COLUMN"),
		LedgerDebitColumn:  v.GetString("LEDGER_DEBIT_COLUMN"),
		LedgerCreditColumn: v.GetString("LEDGER_CREDIT_COLUMN"),
	}

	cfg.Plans = PlansConfig{
		Store: strings.ToLower(strings.TrimSpace(v.GetString("PLAN_STORE"))),
		TTL:   parseDuration(v.GetString("PLAN_TTL"), 30*time.Minute),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_substitution")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SOURCE_DRIVER", SourceDriverPostgres)
	v.SetDefault("SOURCE_CSV_DIR", "./workbook")
	v.SetDefault("SOURCE_TIMEOUT", "10s")
	v.SetDefault("SOURCE_WRITE_RETRIES", 5)
	v.SetDefault("SOURCE_WRITE_RETRY_DELAY", "5s")

	v.SetDefault("SUBSTITUTION_DAYS", "Sunday,Monday,Tuesday,Wednesday,Thursday")
	v.SetDefault("SUBSTITUTION_WORKLOAD_CAP", 6)
	v.SetDefault("SUBSTITUTION_FAIRNESS_CAP", 4)
	v.SetDefault("DEBIT_EXEMPT_ROLES", "")

	v.SetDefault("SCHEDULE_HEADER_ROW", 1)
	v.SetDefault("SCHEDULE_NAME_COLUMN", "Teacher_Name")
	v.SetDefault("SCHEDULE_ROLE_COLUMN", "Role")
	v.SetDefault("LEDGER_HEADER_ROW", 0)
	v.SetDefault("LEDGER_NAME_COLUMN", "Teacher_Name")
	v.SetDefault("LEDGER_DEBIT_COLUMN", "Debit")
	v.SetDefault("LEDGER_CREDIT_COLUMN", "Credit")

	v.SetDefault("PLAN_STORE", PlanStoreMemory)
	v.SetDefault("PLAN_TTL", "30m")
	v.SetDefault("ENABLE_METRICS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func nonNegativeOr(value, fallback int) int {
	if value < 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
