package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vidora/gateway/internal/config"
	"vidora/gateway/internal/db/models"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

/*
DBType 数据库类型枚举
*/
type DBType string

const (
	DBTypeSQLite   DBType = "sqlite"
	DBTypeMySQL    DBType = "mysql"
	DBTypePostgres DBType = "postgres"
)

/*
NewDatabase 创建数据库连接
功能：根据配置类型初始化 SQLite / MySQL / PostgreSQL 连接并配置连接池
*/
func NewDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch DBType(cfg.Type) {
	case DBTypeSQLite, "":
		dialector = buildSQLiteDialector(cfg)
	case DBTypeMySQL:
		dialector = buildMySQLDialector(cfg)
	case DBTypePostgres:
		dialector = buildPostgresDialector(cfg)
	default:
		return nil, fmt.Errorf("不支持的数据库类型: %s, 支持: sqlite/mysql/postgres", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   buildGormLogger(cfg.LogLevel),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败 [%s]: %w", cfg.Type, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层数据库连接失败: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	zap.L().Info("✓ 数据库连接成功", zap.String("type", cfg.Type))
	return db, nil
}

/*
AutoMigrate 自动迁移数据库表结构
*/
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.SystemSetting{}); err != nil {
		return fmt.Errorf("数据库自动迁移失败: %w", err)
	}
	return nil
}

func buildSQLiteDialector(cfg config.DatabaseConfig) gorm.Dialector {
	dbPath := cfg.SQLitePath
	if dbPath == "" {
		dbPath = "./data/vidora.db"
	}
	if dbPath == ":memory:" {
		return sqlite.Open(dbPath)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		zap.L().Warn("创建数据库目录失败", zap.Error(err))
	}
	return sqlite.Open(dbPath + "?_journal_mode=WAL&_busy_timeout=5000")
}

func buildMySQLDialector(cfg config.DatabaseConfig) gorm.Dialector {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	charset := cfg.Charset
	if charset == "" {
		charset = "utf8mb4"
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		cfg.User, cfg.Password, cfg.Host, port, cfg.DBName, charset)
	return mysql.Open(dsn)
}

func buildPostgresDialector(cfg config.DatabaseConfig) gorm.Dialector {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=Asia/Shanghai",
		cfg.Host, port, cfg.User, cfg.Password, cfg.DBName, sslMode)
	return postgres.Open(dsn)
}

/*
buildGormLogger 控制 ORM 层 SQL 日志级别
*/
func buildGormLogger(level string) logger.Interface {
	var logLevel logger.LogLevel
	switch level {
	case "silent":
		logLevel = logger.Silent
	case "error":
		logLevel = logger.Error
	case "info":
		logLevel = logger.Info
	default:
		logLevel = logger.Warn
	}
	return logger.Default.LogMode(logLevel)
}
