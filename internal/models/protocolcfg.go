package models

import (
	"time"

	"gorm.io/gorm"
)

// ProtocolConfig 协议服务配置（单例，pk固定为1）
type ProtocolConfig struct {
	ID                 uint       `json:"id" gorm:"primaryKey"`
	ServicePassword    string     `json:"service_password" gorm:"size:100;default:''"`
	AutoRefreshEnabled bool       `json:"auto_refresh_enabled" gorm:"default:false"`
	RefreshInterval    int        `json:"refresh_interval" gorm:"default:120"` // 分钟
	RefreshWechatxOnly bool       `json:"refresh_wechatx_only" gorm:"default:true"`
	AutoLoginEnabled   bool       `json:"auto_login_enabled" gorm:"default:false"`
	AutoLoginInterval  int        `json:"auto_login_interval" gorm:"default:60"` // 分钟，5-1440
	EnableDebugLog     bool       `json:"enable_debug_log" gorm:"default:false"`
	LogRetentionDays   int        `json:"log_retention_days" gorm:"default:14"` // 1-365
	LastRefreshTime    *time.Time `json:"last_refresh_time"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (ProtocolConfig) TableName() string {
	return "protocol_config"
}

// GetProtocolConfig 获取配置单例，不存在则创建默认配置
func GetProtocolConfig(db *gorm.DB, defaultRefreshInterval int, defaultWechatxOnly bool) (*ProtocolConfig, error) {
	config := &ProtocolConfig{
		ID:                 1,
		AutoRefreshEnabled: false,
		RefreshInterval:    defaultRefreshInterval,
		RefreshWechatxOnly: defaultWechatxOnly,
		AutoLoginEnabled:   false,
		AutoLoginInterval:  60,
		LogRetentionDays:   14,
	}
	if err := db.Where(ProtocolConfig{ID: 1}).FirstOrCreate(config).Error; err != nil {
		return nil, err
	}
	return config, nil
}

// RefreshType 刷新类型
type RefreshType string

const (
	RefreshTypeManual RefreshType = "manual"
	RefreshTypeAuto   RefreshType = "auto"
)

// RefreshLog 刷新日志
//
// 每次刷新运行追加一行，汇总本次尝试/成功/失败的连接数。
type RefreshLog struct {
	ID              uint        `json:"id" gorm:"primaryKey"`
	RefreshType     RefreshType `json:"refresh_type" gorm:"size:10;not null"`
	ConnectionCount int         `json:"connection_count" gorm:"default:0"`
	SuccessCount    int         `json:"success_count" gorm:"default:0"`
	FailedCount     int         `json:"failed_count" gorm:"default:0"`
	ErrorMessage    string      `json:"error_message" gorm:"type:text;default:''"`
	CreatedAt       time.Time   `json:"created_at"`
}

// TableName 指定表名
func (RefreshLog) TableName() string {
	return "protocol_refresh_log"
}

// AutoLoginType 自动登录触发类型
type AutoLoginType string

const (
	AutoLoginTypeScheduled AutoLoginType = "scheduled"
	AutoLoginTypeManual    AutoLoginType = "manual"
)

// AutoLoginResult 自动登录结果
type AutoLoginResult string

const (
	AutoLoginResultSuccess AutoLoginResult = "success"
	AutoLoginResultFailed  AutoLoginResult = "failed"
	AutoLoginResultSkipped AutoLoginResult = "skipped" // 需要扫码，无法自动登录
	AutoLoginResultError   AutoLoginResult = "error"
)

// AutoLoginLog 自动登录日志，每次尝试对应一行
type AutoLoginLog struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	LoginType      AutoLoginType   `json:"login_type" gorm:"size:10;not null"`
	Wxid           string          `json:"wxid" gorm:"size:200;not null"`
	ConnectionName string          `json:"connection_name" gorm:"size:100"`
	Result         AutoLoginResult `json:"result" gorm:"size:10;not null"`
	Message        string          `json:"message" gorm:"type:text;default:''"`
	ResponseData   string          `json:"response_data" gorm:"type:text;default:''"` // API响应JSON
	Duration       *float64        `json:"duration"`                                  // 秒
	CreatedAt      time.Time       `json:"created_at"`
}

// TableName 指定表名
func (AutoLoginLog) TableName() string {
	return "protocol_auto_login_log"
}
