package dao

import (
	"errors"

	"vidora/gateway/internal/db/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/*
DAO GORM 数据访问对象
*/
type DAO struct {
	DB     *gorm.DB
	logger *zap.Logger
}

/*
New 创建 DAO 实例
*/
func New(db *gorm.DB) *DAO {
	return &DAO{
		DB:     db,
		logger: zap.L().Named("dao"),
	}
}

/*
GetSystemSetting 根据 key 获取系统设置，不存在时返回 nil, nil
*/
func (d *DAO) GetSystemSetting(key string) (*models.SystemSetting, error) {
	var setting models.SystemSetting
	if err := d.DB.Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: key}).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &setting, nil
}

/*
UpsertSystemSetting 创建或更新系统设置
*/
func (d *DAO) UpsertSystemSetting(setting *models.SystemSetting) error {
	return d.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "category", "type", "updated_at"}),
	}).Create(setting).Error
}

/*
Ping 检测底层连接
*/
func (d *DAO) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
