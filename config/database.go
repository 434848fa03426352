package config

import (
	"fmt"
	"strings"
	"time"

	"hr-compliance-api/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Dialector builds the gorm dialector selected by DB_DRIVER.
func Dialector(s *Settings) (gorm.Dialector, error) {
	switch strings.ToLower(s.DBDriver) {
	case "mysql":
		port := s.DBPort
		if port == "" {
			port = "3306"
		}
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			s.DBUsername,
			s.DBPassword,
			s.DBHost,
			port,
			s.DBDatabase,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		port := s.DBPort
		if port == "" {
			port = "5432"
		}
		dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
			s.DBHost, port, s.DBUsername, s.DBDatabase, s.DBPassword,
		)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(s.DBSQLitePath), nil
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", s.DBDriver)
}

// GormConfig returns the shared gorm configuration. TranslateError is required:
// the import engine relies on gorm.ErrDuplicatedKey to detect code collisions.
func GormConfig(s *Settings) *gorm.Config {
	// In production, suppress SQL logs unless explicitly re-enabled via DEBUG_SQL=true.
	logLevel := logger.Info
	if s.IsProduction() && !s.DebugSQL {
		logLevel = logger.Warn
	}
	return &gorm.Config{
		TranslateError: true,
		Logger: logger.New(
			logrus.StandardLogger(),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  logLevel,
				IgnoreRecordNotFoundError: true,
			},
		),
	}
}

// Open connects to the configured database and migrates the schema when enabled.
func Open(s *Settings) (*gorm.DB, error) {
	dialector, err := Dialector(s)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, GormConfig(s))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if s.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func InitDB() {
	s := Current()
	db, err := Open(s)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	DB = db
	logrus.WithField("driver", s.DBDriver).Info("Database connected successfully")
}
