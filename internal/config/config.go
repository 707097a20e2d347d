package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultDatamartBaseURL is the public BCWS weather datamart root.
const DefaultDatamartBaseURL = "https://www.for.gov.bc.ca/ftp/HPR/external/!publish/BCWS_DATA_MART"

// Reading conflict policies for READING_CONFLICT_POLICY.
const (
	ConflictOverwrite = "overwrite"
	ConflictIgnore    = "ignore"
	ConflictReject    = "reject"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Database connection.
	DBDriver          string
	DBHost            string
	DBPort            int
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBSchema          string
	SQLitePath        string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	RunMigrations     bool

	// Datamart feed access.
	DatamartBaseURL string
	FetchTimeout    time.Duration
	FetchMaxRetries int

	// Cursor walker.
	BackfillEnabled       bool
	BackfillStartYear     int
	MissThreshold         int
	DailyFloor            time.Time // zero when unset
	FeedLocation          *time.Location
	ReadingConflictPolicy string

	// Scheduled refresh of recent daily feeds; disabled when RefreshCron is empty.
	RefreshCron string
	RefreshDays int

	// Optional Kafka sink for persisted readings.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DBDriver:   sharedcfg.EnvOrDefault("DB_DRIVER", "postgres"),
		DBHost:     sharedcfg.EnvOrDefault("DB_HOST", "localhost"),
		DBName:     sharedcfg.EnvOrDefault("DB_NAME", "wfwx"),
		DBUser:     sharedcfg.EnvOrDefault("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBSSLMode:  sharedcfg.EnvOrDefault("DB_SSLMODE", "disable"),
		DBSchema:   sharedcfg.EnvOrDefault("DB_SCHEMA", "wfwx"),
		SQLitePath: sharedcfg.EnvOrDefault("SQLITE_PATH", "wfwx.db"),

		DatamartBaseURL: strings.TrimRight(sharedcfg.EnvOrDefault("DATAMART_BASE_URL", DefaultDatamartBaseURL), "/"),

		ReadingConflictPolicy: strings.ToLower(sharedcfg.EnvOrDefault("READING_CONFLICT_POLICY", ConflictOverwrite)),
		RefreshCron:           os.Getenv("REFRESH_CRON"),

		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "wfwx-readings"),
	}
	if _, set := os.LookupEnv("HTTP_ADDR"); !set {
		cfg.HTTPAddr = ":8080"
	}

	if cfg.DBPort, err = parsePositiveInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.DBMaxOpenConns, err = parsePositiveInt("DB_MAX_OPEN_CONNS", 4); err != nil {
		return nil, err
	}
	if cfg.DBMaxIdleConns, err = parsePositiveInt("DB_MAX_IDLE_CONNS", 2); err != nil {
		return nil, err
	}
	if cfg.DBConnMaxLifetime, err = parseDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RunMigrations, err = parseBool("RUN_MIGRATIONS", true); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = parseDuration("FETCH_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchMaxRetries, err = parseNonNegativeInt("FETCH_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.BackfillEnabled, err = parseBool("BACKFILL_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.BackfillStartYear, err = parsePositiveInt("BACKFILL_START_YEAR", 1987); err != nil {
		return nil, err
	}
	if cfg.MissThreshold, err = parseNonNegativeInt("MISS_THRESHOLD", 10); err != nil {
		return nil, err
	}
	if cfg.RefreshDays, err = parsePositiveInt("REFRESH_DAYS", 5); err != nil {
		return nil, err
	}
	if cfg.KafkaEnabled, err = parseBool("KAFKA_ENABLED", false); err != nil {
		return nil, err
	}

	cfg.FeedLocation, err = time.LoadLocation(sharedcfg.EnvOrDefault("FEED_TIMEZONE", "America/Vancouver"))
	if err != nil {
		return nil, fmt.Errorf("invalid FEED_TIMEZONE: %w", err)
	}
	if v := os.Getenv("DAILY_FLOOR"); v != "" {
		floor, err := time.ParseInLocation(time.DateOnly, v, cfg.FeedLocation)
		if err != nil {
			return nil, errors.New("invalid DAILY_FLOOR: expected YYYY-MM-DD")
		}
		cfg.DailyFloor = floor
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "postgres":
		if c.DBHost == "" {
			return errors.New("DB_HOST is required")
		}
		if c.DBName == "" {
			return errors.New("DB_NAME is required")
		}
	case "sqlite3":
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("invalid DB_DRIVER %q: expected postgres or sqlite3", c.DBDriver)
	}

	switch c.ReadingConflictPolicy {
	case ConflictOverwrite, ConflictIgnore, ConflictReject:
	default:
		return fmt.Errorf("invalid READING_CONFLICT_POLICY %q", c.ReadingConflictPolicy)
	}

	if c.DatamartBaseURL == "" {
		return errors.New("DATAMART_BASE_URL is required")
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_TOPIC is required")
		}
	}
	return nil
}

func parsePositiveInt(key string, def int) (int, error) {
	n, err := parseNonNegativeInt(key, def)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}
