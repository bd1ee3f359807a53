package repo

import (
	"fmt"

	"FileVault/config"
	"FileVault/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB opens the metadata database selected by DB_DRIVER and migrates the schema.
func OpenDB(cfg config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case "sqlite":
		db, err = OpenSQLite(cfg.SQLitePath, gormCfg)
	case "", "mysql":
		db, err = openMysql(cfg, cfg.DBName, gormCfg)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, err
	}
	if err := AutoMigrateAll(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens a SQLite database. SQLite allows one writer, so the pool is a single connection.
func OpenSQLite(dsn string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if gormCfg == nil {
		gormCfg = &gorm.Config{TranslateError: true}
	}
	db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("init sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return db, nil
}

// AutoMigrateAll migrates all database models.
func AutoMigrateAll(db *gorm.DB) error {
	for _, m := range []any{&model.User{}, &model.FileRecord{}, &model.FileTag{}} {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("migrate %T: %w", m, err)
		}
	}
	return nil
}
