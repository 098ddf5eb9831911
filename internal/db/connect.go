// Package db provides database connection and schema management for
// Gatehouse.
package db

import (
	"fmt"

	"github.com/gatehouse/gatehouse/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a MySQL DSN from connection settings.
func DSN(cfg config.DBConfig) string {
	cred := cfg.User
	if cfg.Password != "" {
		cred += ":" + cfg.Password
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4", cred, cfg.Host, cfg.Port, cfg.Database)
}

// Connect opens a GORM connection to the MySQL server. TranslateError is
// enabled so unique-index violations surface as gorm.ErrDuplicatedKey
// across drivers; the booking engine relies on that.
func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(DSN(cfg)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}
	return db, nil
}

// ConnectAdmin opens a GORM connection without selecting a database, used
// for CREATE DATABASE operations.
func ConnectAdmin(cfg config.DBConfig) (*gorm.DB, error) {
	cred := cfg.User
	if cfg.Password != "" {
		cred += ":" + cfg.Password
	}
	dsn := fmt.Sprintf("%s@tcp(%s:%d)/?parseTime=true", cred, cfg.Host, cfg.Port)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("db: admin connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return db, nil
}

// CreateDatabase creates the named database if it doesn't already exist.
func CreateDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: create database %s: %w", name, err)
	}
	return nil
}
