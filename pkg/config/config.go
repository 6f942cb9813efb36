package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/FACorreiaa/payslip-tracker/pkg/money"
)

// Config holds all application configuration
type Config struct {
	Source        SourceConfig
	IMAP          IMAPConfig
	Extraction    ExtractionConfig
	Output        OutputConfig
	Storage       StorageConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	Schedule      ScheduleConfig
	Log           LogConfig
}

type SourceConfig struct {
	Kind        string // imap or dir
	Dir         string
	PDFPassword string
}

type IMAPConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Mailbox        string
	Subject        string
	FetchPerSecond int
	Timeout        time.Duration
}

type ExtractionConfig struct {
	LayoutFile   string
	Strategy     string
	Threshold    int // -1 keeps the layout's threshold
	PeriodMode   string
	PeriodAnchor string
	Workers      int
}

type OutputConfig struct {
	Path     string
	Format   string // xlsx or csv
	Currency string
}

type StorageConfig struct {
	Type         string // none, local or s3
	LocalPath    string
	ArchiveSlips bool
	S3           S3Config
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

type ScheduleConfig struct {
	Cron string
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

// LoadDotEnv loads variables from the given .env files (".env" when none
// are given) without overriding variables already set. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Source: SourceConfig{
			Kind:        strings.ToLower(getEnv("SOURCE", "imap")),
			Dir:         getEnv("SOURCE_DIR", "./payslips"),
			PDFPassword: getEnv("PDF_PASSWORD", ""),
		},
		IMAP: IMAPConfig{
			Host:           getEnv("IMAP_HOST", "imap.gmail.com"),
			Port:           getEnvAsInt("IMAP_PORT", 993),
			User:           getEnv("IMAP_USER", ""),
			Password:       getEnv("IMAP_PASSWORD", ""),
			Mailbox:        getEnv("IMAP_MAILBOX", "INBOX"),
			Subject:        getEnv("IMAP_SUBJECT", "Payslip for"),
			FetchPerSecond: getEnvAsInt("IMAP_FETCH_PER_SECOND", 5),
			Timeout:        getEnvAsDuration("IMAP_TIMEOUT", 30*time.Second),
		},
		Extraction: ExtractionConfig{
			LayoutFile:   getEnv("LAYOUT_FILE", ""),
			Strategy:     getEnv("EXTRACT_STRATEGY", ""),
			Threshold:    getEnvAsInt("MATCH_THRESHOLD", -1),
			PeriodMode:   getEnv("PERIOD_MODE", ""),
			PeriodAnchor: getEnv("PERIOD_ANCHOR", ""),
			Workers:      getEnvAsInt("EXTRACT_WORKERS", 1),
		},
		Output: OutputConfig{
			Path:     getEnv("OUTPUT_PATH", "payslips.xlsx"),
			Format:   strings.ToLower(getEnv("OUTPUT_FORMAT", "")),
			Currency: strings.ToUpper(getEnv("CURRENCY", "PKR")),
		},
		Storage: StorageConfig{
			Type:         strings.ToLower(getEnv("STORAGE_TYPE", "none")),
			LocalPath:    getEnv("STORAGE_LOCAL_PATH", "./data/slips"),
			ArchiveSlips: getEnvAsBool("ARCHIVE_SLIPS", false),
			S3: S3Config{
				Endpoint:  getEnv("STORAGE_S3_ENDPOINT", ""),
				Bucket:    getEnv("STORAGE_S3_BUCKET", ""),
				Region:    getEnv("STORAGE_S3_REGION", ""),
				AccessKey: getEnv("STORAGE_S3_ACCESS_KEY", ""),
				SecretKey: getEnv("STORAGE_S3_SECRET_KEY", ""),
				UseSSL:    getEnvAsBool("STORAGE_S3_USE_SSL", true),
			},
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DATABASE_ENABLED", false),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "payslips"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns: int32(getEnvAsInt("POSTGRES_MAX_CONNS", 4)),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", false),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Schedule: ScheduleConfig{
			Cron: getEnv("SCHEDULE_CRON", "0 9 1 * *"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
	}

	if cfg.Output.Format == "" {
		cfg.Output.Format = formatFromPath(cfg.Output.Path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error

	switch c.Source.Kind {
	case "imap":
		if c.IMAP.User == "" {
			errs = append(errs, errors.New("IMAP_USER is required when SOURCE=imap"))
		}
		if c.IMAP.Password == "" {
			errs = append(errs, errors.New("IMAP_PASSWORD is required when SOURCE=imap"))
		}
	case "dir":
		if c.Source.Dir == "" {
			errs = append(errs, errors.New("SOURCE_DIR is required when SOURCE=dir"))
		}
	default:
		errs = append(errs, fmt.Errorf("SOURCE must be imap or dir, got %q", c.Source.Kind))
	}

	if c.Output.Format != "xlsx" && c.Output.Format != "csv" {
		errs = append(errs, fmt.Errorf("OUTPUT_FORMAT must be xlsx or csv, got %q", c.Output.Format))
	}
	if c.Extraction.Threshold > 100 {
		errs = append(errs, fmt.Errorf("MATCH_THRESHOLD must be at most 100, got %d", c.Extraction.Threshold))
	}
	if c.Extraction.Workers < 1 {
		errs = append(errs, fmt.Errorf("EXTRACT_WORKERS must be positive, got %d", c.Extraction.Workers))
	}
	if !money.KnownCurrency(c.Output.Currency) {
		errs = append(errs, fmt.Errorf("CURRENCY must be an ISO-4217 code, got %q", c.Output.Currency))
	}

	switch c.Storage.Type {
	case "none", "local":
	case "s3":
		if c.Storage.S3.Endpoint == "" || c.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("STORAGE_S3_ENDPOINT and STORAGE_S3_BUCKET are required when STORAGE_TYPE=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_TYPE must be none, local or s3, got %q", c.Storage.Type))
	}
	if c.Storage.ArchiveSlips && c.Storage.Type == "none" {
		errs = append(errs, errors.New("ARCHIVE_SLIPS requires STORAGE_TYPE"))
	}

	return errors.Join(errs...)
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns host:port of the IMAP server.
func (c *IMAPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func formatFromPath(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		return "csv"
	}
	return "xlsx"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
