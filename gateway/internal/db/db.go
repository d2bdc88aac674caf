package db

import (
	"context"
	"fmt"
	"time"

	"vidora/gateway/internal/config"
	"vidora/gateway/internal/db/dao"
	"vidora/gateway/internal/db/database"
	"vidora/gateway/internal/db/kv"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

/*
Manager 存储管理器
功能：统一管理 GORM 数据库（管理配置持久化）与 KV 缓存（Redis 或进程内）
*/
type Manager struct {
	GormDB *gorm.DB
	DAO    *dao.DAO
	KV     kv.Store

	redis *kv.RedisStore
}

/*
NewManager 创建存储管理器
功能：初始化数据库并自动迁移；Redis 为可选组件，连接失败时退化为进程内 KV 继续运行
*/
func NewManager(dbCfg config.DatabaseConfig, redisCfg config.RedisConfig) (*Manager, error) {
	gormDB, err := database.NewDatabase(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化 GORM 数据库失败: %w", err)
	}
	if err := database.AutoMigrate(gormDB); err != nil {
		return nil, err
	}

	m := &Manager{
		GormDB: gormDB,
		DAO:    dao.New(gormDB),
	}

	if redisCfg.Addr != "" {
		rs, err := kv.NewRedisStore(redisCfg)
		if err != nil {
			zap.L().Warn("⚠ Redis 连接失败，使用进程内 KV 继续运行", zap.Error(err))
		} else {
			m.redis = rs
			m.KV = rs
		}
	}
	if m.KV == nil {
		m.KV = kv.NewMemoryStore()
	}

	return m, nil
}

/*
HealthCheck 健康检查
*/
func (m *Manager) HealthCheck(ctx context.Context) map[string]interface{} {
	result := map[string]interface{}{
		"kv": m.KV.Name(),
	}

	if err := m.DAO.Ping(); err != nil {
		result["database_status"] = "error"
		result["database_error"] = err.Error()
	} else {
		result["database_status"] = "connected"
	}

	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := m.KV.Ping(pingCtx); err != nil {
		result["kv_status"] = "error"
	} else {
		result["kv_status"] = "connected"
	}
	return result
}

/*
Close 关闭所有连接
*/
func (m *Manager) Close() error {
	var errs []error

	if m.GormDB != nil {
		if sqlDB, err := m.GormDB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("GORM 关闭失败: %w", err))
			}
		}
	}
	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("Redis 关闭失败: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("关闭存储错误: %v", errs)
	}
	return nil
}
