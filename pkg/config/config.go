package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int `validate:"gt=0"`
	APIPrefix string

	// Host is the public host name of this deployment; multi-tenant
	// installs use it to decide which advanced reports apply.
	Host string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Cache    CacheConfig
	Refresh  RefreshConfig
	Tenancy  TenancyConfig
	Reports  ReportsConfig
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

// JWTConfig holds what is needed to verify host-issued access tokens.
// Token issuance stays with the host platform.
type JWTConfig struct {
	Secret string `validate:"required"`
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig governs the category aggregation cache.
type CacheConfig struct {
	Enabled   bool
	KeyPrefix string `validate:"required"`
}

// RefreshConfig governs the scheduled full cache rebuild.
type RefreshConfig struct {
	Interval    time.Duration `validate:"gt=0"`
	Concurrency int           `validate:"gt=0"`
	OnStart     bool
}

// TenancyRule maps one authority role to the subordinate roles it may
// view. Rules are applied in configured order.
type TenancyRule struct {
	AuthorityRoleID    int64   `validate:"gt=0"`
	SubordinateRoleIDs []int64 `validate:"min=1"`
}

// TenancyConfig carries the ordered tenancy rules.
type TenancyConfig struct {
	Rules []TenancyRule `validate:"dive"`
}

// ReportsConfig selects which advanced report kinds are active.
type ReportsConfig struct {
	EnabledKinds []string
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Host = v.GetString("PUBLIC_HOST")

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

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled:   v.GetBool("ENABLE_CACHE"),
		KeyPrefix: v.GetString("CACHE_KEY_PREFIX"),
	}

	cfg.Refresh = RefreshConfig{
		Interval:    parseDuration(v.GetString("REFRESH_INTERVAL"), time.Hour),
		Concurrency: v.GetInt("REFRESH_CONCURRENCY"),
		OnStart:     v.GetBool("REFRESH_ON_START"),
	}

	tenancy, err := loadTenancy(v)
	if err != nil {
		return nil, err
	}
	cfg.Tenancy = tenancy

	cfg.Reports = ReportsConfig{EnabledKinds: splitAndTrim(v.GetString("ADVREPORT_KINDS"))}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// loadTenancy reads the numbered authority-role settings: the slot
// count, then one authority role id and one subordinate role-id list
// per slot. Slots with no authority or no subordinates are skipped.
func loadTenancy(v *viper.Viper) (TenancyConfig, error) {
	count := v.GetInt("TENANCY_AUTHORITY_COUNT")
	rules := make([]TenancyRule, 0, count)

	for i := 1; i <= count; i++ {
		authority := v.GetInt64(fmt.Sprintf("TENANCY_AUTHORITY_ROLE_%d", i))
		if authority == 0 {
			continue
		}
		subordinates, err := parseInt64List(v.GetString(fmt.Sprintf("TENANCY_SUBORDINATE_ROLES_%d", i)))
		if err != nil {
			return TenancyConfig{}, fmt.Errorf("tenancy rule %d: %w", i, err)
		}
		if len(subordinates) == 0 {
			continue
		}
		rules = append(rules, TenancyRule{AuthorityRoleID: authority, SubordinateRoleIDs: subordinates})
	}

	return TenancyConfig{Rules: rules}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("PUBLIC_HOST", "localhost")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "clearview")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", true)
	v.SetDefault("CACHE_KEY_PREFIX", "clearview:catcache")

	v.SetDefault("REFRESH_INTERVAL", "1h")
	v.SetDefault("REFRESH_CONCURRENCY", 4)
	v.SetDefault("REFRESH_ON_START", false)

	v.SetDefault("TENANCY_AUTHORITY_COUNT", 1)
	v.SetDefault("TENANCY_AUTHORITY_ROLE_1", 0)
	v.SetDefault("TENANCY_SUBORDINATE_ROLES_1", "")

	v.SetDefault("ADVREPORT_KINDS", "outstanding_assignments")
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

func parseInt64List(raw string) ([]int64, error) {
	parts := splitAndTrim(raw)
	result := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse role id %q: %w", part, err)
		}
		result = append(result, id)
	}
	return result, nil
}
