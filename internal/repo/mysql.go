package repo

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"FileVault/config"

	mysqlDriver "github.com/go-sql-driver/mysql"
	gormMysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func mysqlDSN(cfg config.Config, dbName string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.DBUser,
		cfg.DBPass,
		cfg.DBHost,
		cfg.DBPort,
		dbName,
	)
}

// openMysql connects to MySQL, creating the database on first use.
func openMysql(cfg config.Config, dbName string, gormCfg *gorm.Config) (*gorm.DB, error) {
	dsn := mysqlDSN(cfg, dbName)
	db, err := gorm.Open(gormMysql.Open(dsn), gormCfg)
	if err != nil && isUnknownDatabaseError(err) {
		if createErr := ensureMySQLDatabase(cfg, dbName); createErr != nil {
			return nil, fmt.Errorf("create mysql database: %w", createErr)
		}
		db, err = gorm.Open(gormMysql.Open(dsn), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("init mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

func isUnknownDatabaseError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1049
	}
	return strings.Contains(strings.ToLower(err.Error()), "unknown database")
}

func ensureMySQLDatabase(cfg config.Config, dbName string) error {
	dbName = strings.TrimSpace(dbName)
	if dbName == "" {
		return errors.New("empty database name")
	}

	serverDB, err := sql.Open("mysql", mysqlDSN(cfg, ""))
	if err != nil {
		return err
	}
	defer serverDB.Close()

	if err = serverDB.Ping(); err != nil {
		return err
	}

	_, err = serverDB.Exec(
		"CREATE DATABASE IF NOT EXISTS " + quoteMySQLIdentifier(dbName) + " CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci",
	)
	return err
}

func quoteMySQLIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
