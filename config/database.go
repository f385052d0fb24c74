package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectDatabase establishes a connection to the PostgreSQL database.
// The returned handle is created once at startup and passed to every service.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	gormConfig := GormConfig()
	gormConfig.Logger = logger.Default.LogMode(GormLogLevel(cfg.LogLevel))

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established successfully")
	return db, nil
}

// GormConfig is shared by the production connection and test databases so both
// translate driver errors (unique violations) the same way.
func GormConfig() *gorm.Config {
	return &gorm.Config{TranslateError: true}
}

// GormLogLevel maps LOG_LEVEL to gorm's SQL logging. Only debug logs every statement.
func GormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.Info
	case "error":
		return logger.Error
	case "silent", "off":
		return logger.Silent
	default:
		return logger.Warn
	}
}
