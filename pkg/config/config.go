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

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Templates TemplatesConfig
	Downloads DownloadsConfig
	Lookups   LookupsConfig
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
	Enabled  bool
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

// TemplatesConfig locates document templates and rendered output.
type TemplatesConfig struct {
	Dir              string
	OutputDir        string
	CatalogFile      string
	ConverterURL     string
	ConverterTimeout time.Duration
}

// DownloadsConfig controls signed download links for rendered files.
type DownloadsConfig struct {
	Secret string
	TTL    time.Duration
}

// LookupsConfig tunes caching of label lookups (schools, courses, professionals...).
type LookupsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
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
		Enabled:  v.GetBool("REDIS_ENABLED"),
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

	cfg.Templates = TemplatesConfig{
		Dir:              v.GetString("TEMPLATES_DIR"),
		OutputDir:        v.GetString("TEMPLATES_OUTPUT_DIR"),
		CatalogFile:      v.GetString("TEMPLATES_CATALOG_FILE"),
		ConverterURL:     v.GetString("TEMPLATES_CONVERTER_URL"),
		ConverterTimeout: parseDuration(v.GetString("TEMPLATES_CONVERTER_TIMEOUT"), 60*time.Second),
	}

	cfg.Downloads = DownloadsConfig{
		Secret: v.GetString("DOWNLOADS_SIGNING_SECRET"),
		TTL:    parseDuration(v.GetString("DOWNLOADS_TTL"), 30*time.Minute),
	}

	cfg.Lookups = LookupsConfig{
		CacheEnabled: v.GetBool("LOOKUPS_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("LOOKUPS_CACHE_TTL"), 10*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "case_files")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TEMPLATES_DIR", "files/original_student_files")
	v.SetDefault("TEMPLATES_OUTPUT_DIR", "files/generated_student_files")
	v.SetDefault("TEMPLATES_CATALOG_FILE", "")
	v.SetDefault("TEMPLATES_CONVERTER_URL", "")
	v.SetDefault("TEMPLATES_CONVERTER_TIMEOUT", "60s")

	v.SetDefault("DOWNLOADS_SIGNING_SECRET", "dev_downloads_secret")
	v.SetDefault("DOWNLOADS_TTL", "30m")

	v.SetDefault("LOOKUPS_CACHE_ENABLED", false)
	v.SetDefault("LOOKUPS_CACHE_TTL", "10m")
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
