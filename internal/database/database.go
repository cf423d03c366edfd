package database

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"wxconsole/internal/config"
	"wxconsole/internal/errors"
	"wxconsole/internal/logger"
	"wxconsole/internal/models"
)

// Open 打开数据库连接并按配置迁移表结构
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dbLogger := logger.NewLogger("database")

	// 确保数据库目录存在（内存库除外）
	if cfg.Path != ":memory:" {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.ErrDatabaseConnection("failed to create database directory", err)
		}
	}

	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), gormCfg)
	if err != nil {
		consoleErr := errors.ErrDatabaseConnection(cfg.Path, err)
		dbLogger.LogConsoleError(consoleErr, "Failed to open database")
		return nil, consoleErr
	}

	// 连接池设置
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.ErrDatabaseConnection("failed to access underlying sql.DB", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if cfg.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}

	dbLogger.Info("Database opened", logger.Fields{
		"path":         cfg.Path,
		"auto_migrate": cfg.AutoMigrate,
	})

	return db, nil
}

// Migrate 迁移全部数据模型
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.UserProfile{},
		&models.LoginLog{},
		&models.Connection{},
		&models.AuthCode{},
		&models.ConnectionLog{},
		&models.ChatMessage{},
		&models.ChatSession{},
		&models.QRCodeSession{},
		&models.LoginRecord{},
		&models.ProtocolConfig{},
		&models.RefreshLog{},
		&models.AutoLoginLog{},
		&models.ReadCheckConfig{},
		&models.ReadCheckLog{},
		&models.ReadCheckSession{},
		&models.ReadCheckProcessLog{},
		&models.APIKey{},
		&models.APIRequest{},
	)
	if err != nil {
		return errors.ErrDatabaseConnection("auto migration failed", err)
	}
	return nil
}
