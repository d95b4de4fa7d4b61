package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string
	LogFormat   string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime time.Duration

	// Accounts lists the AWS shared-config profile names to ingest.
	Accounts  []string
	AWSRegion string

	IngestWorkers  int
	ConflictPolicy string

	// ReportStart/ReportEnd override the reporting window (ISO dates,
	// half-open). When empty the window is the previous calendar month.
	ReportStart string
	ReportEnd   string

	ExportFile string
}

const (
	ConflictPolicyIgnore    = "ignore"
	ConflictPolicyOverwrite = "overwrite"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "aws-cost-report"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogFormat:   getenv("LOG_FORMAT", "json"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: time.Duration(getenvInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,

		Accounts:  getenvList("AWS_ACCOUNTS"),
		AWSRegion: getenv("AWS_REGION", "us-east-1"),

		IngestWorkers:  getenvInt("INGEST_WORKERS", 4),
		ConflictPolicy: normalizeConflictPolicy(getenv("INGEST_CONFLICT_POLICY", ConflictPolicyIgnore)),

		ReportStart: strings.TrimSpace(getenv("REPORT_START", "")),
		ReportEnd:   strings.TrimSpace(getenv("REPORT_END", "")),

		ExportFile: getenv("EXPORT_FILE", "aws_cost_data.xlsx"),
	}
}

func normalizeConflictPolicy(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case ConflictPolicyOverwrite:
		return ConflictPolicyOverwrite
	default:
		return ConflictPolicyIgnore
	}
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getenvList(key string) []string {
	raw := strings.Split(os.Getenv(key), ",")
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
