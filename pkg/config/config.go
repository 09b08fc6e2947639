package config

import (
	"errors"
	"fmt"
	"strconv"
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

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Enrollment EnrollmentConfig
	Attendance AttendanceConfig
	Exports    ExportsConfig
	Offerings  OfferingsConfig
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

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CeilingPolicy selects how the total-credit ceiling is enforced.
type CeilingPolicy string

const (
	// CeilingExact requires the selected credit sum to equal the ceiling.
	CeilingExact CeilingPolicy = "EXACT"
	// CeilingMax requires the selected credit sum to not exceed the ceiling.
	CeilingMax CeilingPolicy = "MAX"
)

// EnrollmentConfig carries the credit-bucket targets and ceiling policy the
// enrollment engine validates selections against.
type EnrollmentConfig struct {
	// Buckets maps a credit value to the exact number of offerings a student
	// must select at that value, e.g. {5:1, 4:2, 3:3}.
	Buckets       map[int]int
	CreditCeiling int
	CeilingPolicy CeilingPolicy
}

// AttendanceConfig resolves how non-Present statuses count in summaries.
type AttendanceConfig struct {
	CountLateAsPresent    bool
	CountExcusedAsPresent bool
}

// ExportsConfig configures asynchronous attendance report generation.
type ExportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// OfferingsConfig tunes offering listing behaviour.
type OfferingsConfig struct {
	DefaultCapacity int
	CacheTTL        time.Duration
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

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	buckets, err := parseBuckets(v.GetString("ENROLLMENT_CREDIT_BUCKETS"))
	if err != nil {
		return nil, err
	}
	policy := CeilingPolicy(strings.ToUpper(v.GetString("ENROLLMENT_CEILING_POLICY")))
	if policy != CeilingExact && policy != CeilingMax {
		policy = CeilingMax
	}
	cfg.Enrollment = EnrollmentConfig{
		Buckets:       buckets,
		CreditCeiling: v.GetInt("ENROLLMENT_CREDIT_CEILING"),
		CeilingPolicy: policy,
	}

	cfg.Attendance = AttendanceConfig{
		CountLateAsPresent:    v.GetBool("ATTENDANCE_COUNT_LATE_AS_PRESENT"),
		CountExcusedAsPresent: v.GetBool("ATTENDANCE_COUNT_EXCUSED_AS_PRESENT"),
	}

	cfg.Exports = ExportsConfig{
		Enabled:           v.GetBool("ENABLE_EXPORTS"),
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
	}

	cfg.Offerings = OfferingsConfig{
		DefaultCapacity: v.GetInt("OFFERING_DEFAULT_CAPACITY"),
		CacheTTL:        parseDuration(v.GetString("OFFERING_CACHE_TTL"), time.Minute),
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
	v.SetDefault("DB_NAME", "campus_enroll")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "campus-identity")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENROLLMENT_CREDIT_BUCKETS", "5:1,4:2,3:3")
	v.SetDefault("ENROLLMENT_CREDIT_CEILING", 25)
	v.SetDefault("ENROLLMENT_CEILING_POLICY", string(CeilingMax))

	v.SetDefault("ATTENDANCE_COUNT_LATE_AS_PRESENT", false)
	v.SetDefault("ATTENDANCE_COUNT_EXCUSED_AS_PRESENT", false)

	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)

	v.SetDefault("OFFERING_DEFAULT_CAPACITY", 60)
	v.SetDefault("OFFERING_CACHE_TTL", "1m")
}

// parseBuckets reads a "credit:count,credit:count" spec such as "5:1,4:2,3:3".
func parseBuckets(raw string) (map[int]int, error) {
	buckets := make(map[int]int)
	if strings.TrimSpace(raw) == "" {
		return buckets, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid credit bucket %q", pair)
		}
		credit, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || credit <= 0 {
			return nil, fmt.Errorf("invalid credit value in bucket %q", pair)
		}
		count, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || count < 0 {
			return nil, fmt.Errorf("invalid target count in bucket %q", pair)
		}
		buckets[credit] = count
	}
	return buckets, nil
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
