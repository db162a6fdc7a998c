package db

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/zulandar/beartank/internal/config"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a MySQL DSN for the configured database. An empty name selects
// no database, which is what CREATE DATABASE needs.
func DSN(c config.DatabaseConfig, name string) string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	mc.DBName = name
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN()
}

// Connect opens a GORM connection for the configured driver.
func Connect(c config.DatabaseConfig) (*gorm.DB, error) {
	return open(c, c.Name, logger.Silent)
}

// ConnectVerbose is Connect with SQL logging enabled.
func ConnectVerbose(c config.DatabaseConfig) (*gorm.DB, error) {
	return open(c, c.Name, logger.Info)
}

func open(c config.DatabaseConfig, name string, level logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch c.Driver {
	case "mysql":
		dialector = gormmysql.Open(DSN(c, name))
	case "sqlite", "":
		// Writers wait up to 5s on a locked file instead of failing.
		dialector = sqlite.Open(c.Path + "?_busy_timeout=5000")
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", c.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s: %w", describe(c, name), err)
	}
	return db, nil
}

// ConnectAdmin opens a MySQL connection without selecting a database, used
// for CREATE DATABASE operations.
func ConnectAdmin(c config.DatabaseConfig) (*gorm.DB, error) {
	if c.Driver != "mysql" {
		return nil, fmt.Errorf("db: admin connection requires the mysql driver, got %q", c.Driver)
	}
	db, err := open(c, "", logger.Silent)
	if err != nil {
		return nil, fmt.Errorf("db: admin connect to %s:%d: %w", c.Host, c.Port, err)
	}
	return db, nil
}

// DropDatabase drops the named database if it exists.
func DropDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: drop database %s: %w", name, err)
	}
	return nil
}

// CreateDatabase creates the named database if it doesn't already exist.
func CreateDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: create database %s: %w", name, err)
	}
	return nil
}

func describe(c config.DatabaseConfig, name string) string {
	if c.Driver == "mysql" {
		return fmt.Sprintf("%s:%d/%s", c.Host, c.Port, name)
	}
	return c.Path
}
