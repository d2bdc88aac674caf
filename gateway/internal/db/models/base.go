package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/*
BaseModel 表模型基础结构
功能：统一的 UUID 主键与时间戳
*/
type BaseModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

/*
BeforeCreate GORM 钩子：创建前自动生成 UUID
*/
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

/*
SystemSetting 系统设置
功能：键值对形式存储动态配置，管理配置整体以 JSON 存在 key=admin_config 的行中
*/
type SystemSetting struct {
	BaseModel
	Category string `gorm:"type:varchar(64);index;not null" json:"category"`
	Key      string `gorm:"type:varchar(128);uniqueIndex;not null" json:"key"`
	Value    string `gorm:"type:text" json:"value"`
	Type     string `gorm:"type:varchar(16);default:'string'" json:"type"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}
