package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const Production = "production"

// Settings holds every environment-driven knob of the service.
type Settings struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	ServerPort  string `env:"SERVER_PORT" envDefault:"8080"`
	GinMode     string `env:"GIN_MODE"`

	DBDriver     string `env:"DB_DRIVER" envDefault:"mysql"`
	DBHost       string `env:"DB_HOST" envDefault:"localhost"`
	DBPort       string `env:"DB_PORT"`
	DBDatabase   string `env:"DB_DATABASE" envDefault:"hr_compliance"`
	DBUsername   string `env:"DB_USERNAME" envDefault:"root"`
	DBPassword   string `env:"DB_PASSWORD"`
	DBSQLitePath string `env:"DB_SQLITE_PATH" envDefault:"hr-compliance.db"`
	DebugSQL     bool   `env:"DEBUG_SQL" envDefault:"false"`
	AutoMigrate  bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	JWTSecret  string `env:"JWT_SECRET"`
	UploadPath string `env:"UPLOAD_PATH" envDefault:"./uploads"`
	LogPath    string `env:"LOG_PATH" envDefault:"logs/hr-compliance.log"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	ImportLockName        string   `env:"IMPORT_LOCK_NAME" envDefault:"hr_compliance_import"`
	DefaultWarningDays    int      `env:"DEFAULT_WARNING_DAYS" envDefault:"30"`
	DefaultValidityMonths int      `env:"DEFAULT_VALIDITY_MONTHS" envDefault:"0"`
	DefaultProviderCode   string   `env:"DEFAULT_PROVIDER_CODE" envDefault:"HRC"`
	ReportMaxItems        int      `env:"REPORT_MAX_ITEMS" envDefault:"15"`
	ReportRecipients      []string `env:"REPORT_RECIPIENTS" envSeparator:","`
	HeaderSynonymsFile    string   `env:"HEADER_SYNONYMS_FILE"`
	MetricsEnabled        bool     `env:"METRICS_ENABLED" envDefault:"true"`

	SMTPHost          string `env:"SMTP_HOST"`
	SMTPPort          int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser          string `env:"SMTP_USER"`
	SMTPPass          string `env:"SMTP_PASS"`
	SMTPFrom          string `env:"SMTP_FROM"`
	SMTPSkipTLSVerify bool   `env:"SMTP_SKIP_TLS_VERIFY" envDefault:"false"`
}

func (s *Settings) IsProduction() bool {
	return strings.EqualFold(s.Environment, Production)
}

// Validate checks the values env parsing cannot express.
func (s *Settings) Validate() error {
	switch strings.ToLower(s.DBDriver) {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be 'mysql', 'postgres' or 'sqlite', got '%s'", s.DBDriver)
	}
	if s.DefaultWarningDays < 0 {
		return fmt.Errorf("DEFAULT_WARNING_DAYS must be non-negative, got %d", s.DefaultWarningDays)
	}
	if s.DefaultValidityMonths < 0 {
		return fmt.Errorf("DEFAULT_VALIDITY_MONTHS must be non-negative, got %d", s.DefaultValidityMonths)
	}
	if s.ReportMaxItems <= 0 {
		return fmt.Errorf("REPORT_MAX_ITEMS must be positive, got %d", s.ReportMaxItems)
	}
	return nil
}

var (
	settingsMu sync.RWMutex
	current    *Settings
)

// LoadSettings reads .env (when present) and parses the environment.
func LoadSettings() (*Settings, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}
	s := &Settings{}
	if err := env.Parse(s); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	SetSettings(s)
	return s, nil
}

// SetSettings replaces the process-wide settings. Tests use it to inject values.
func SetSettings(s *Settings) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	current = s
}

// Current returns the loaded settings, falling back to defaults when LoadSettings was never called.
func Current() *Settings {
	settingsMu.RLock()
	s := current
	settingsMu.RUnlock()
	if s != nil {
		return s
	}
	defaults := &Settings{}
	if err := env.ParseWithOptions(defaults, env.Options{Environment: map[string]string{}}); err != nil {
		logrus.WithError(err).Warn("failed to apply default settings")
	}
	return defaults
}
