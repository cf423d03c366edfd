package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ConnectionType 连接类型枚举
type ConnectionType string

const (
	ConnectionTypeWeCharPadPro ConnectionType = "WeCharPadPro"
	ConnectionTypeWechatx      ConnectionType = "wechatx"
	ConnectionTypeWechatx861   ConnectionType = "wechatx-861"
)

// IsValidConnectionType 验证连接类型是否有效
func IsValidConnectionType(ct ConnectionType) bool {
	switch ct {
	case ConnectionTypeWeCharPadPro, ConnectionTypeWechatx, ConnectionTypeWechatx861:
		return true
	}
	return false
}

// IsWechatxFamily 是否为wechatx系列连接
func (ct ConnectionType) IsWechatxFamily() bool {
	return ct == ConnectionTypeWechatx || ct == ConnectionTypeWechatx861
}

// Connection 连接配置
//
// 每条记录指向一个第三方协议服务器。
type Connection struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	UserID         uint           `json:"user_id" gorm:"uniqueIndex:idx_connection_user_name;not null"`
	Name           string         `json:"name" gorm:"size:100;uniqueIndex:idx_connection_user_name;not null"`
	URL            string         `json:"url" gorm:"size:500;not null"`
	ConnectionType ConnectionType `json:"connection_type" gorm:"size:20;default:WeCharPadPro"`
	AdminKey       string         `json:"admin_key" gorm:"size:200;default:''"`
	IsActive       bool           `json:"is_active" gorm:"default:true"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	AuthCodes []AuthCode `json:"-" gorm:"foreignKey:ConnectionID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (Connection) TableName() string {
	return "connection"
}

// DisplayName 显示名称
func (c *Connection) DisplayName() string {
	return fmt.Sprintf("[%s] %s [%s]", c.ConnectionType, c.Name, c.URL)
}

// BaseURL 去掉末尾斜杠的接口地址
func (c *Connection) BaseURL() string {
	return strings.TrimRight(c.URL, "/")
}

// AuthCode 授权码（一个已注册的微信身份）
type AuthCode struct {
	ID                  uint       `json:"id" gorm:"primaryKey"`
	ConnectionID        uint       `json:"connection_id" gorm:"uniqueIndex:idx_auth_code_conn_code;not null"`
	Code                string     `json:"code" gorm:"size:200;uniqueIndex:idx_auth_code_conn_code;not null"`
	Remark              string     `json:"remark" gorm:"type:text;default:''"`
	AvatarURL           string     `json:"avatar_url" gorm:"size:500;default:''"`
	Nickname            string     `json:"nickname" gorm:"size:100;default:''"`
	LastQuerySuccess    *bool      `json:"last_query_success"`
	LastQueryTime       *time.Time `json:"last_query_time"`
	IsOnline            *bool      `json:"is_online"` // nil表示未知
	LastStatusCheckTime *time.Time `json:"last_status_check_time"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	Connection Connection `json:"-" gorm:"foreignKey:ConnectionID"`
}

// TableName 指定表名
func (AuthCode) TableName() string {
	return "auth_code"
}

// RemarkList 获取备注列表
//
// 备注字段历史上存过JSON数组、JSON标量和逗号分隔的裸文本，
// 读取时按三层回退解析，任何格式都不报错。
func (a *AuthCode) RemarkList() []string {
	if a.Remark == "" {
		return []string{}
	}

	// 尝试解析JSON格式的备注
	var raw interface{}
	if err := json.Unmarshal([]byte(a.Remark), &raw); err == nil {
		switch v := raw.(type) {
		case []interface{}:
			result := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok {
					result = append(result, s)
				} else {
					result = append(result, fmt.Sprintf("%v", item))
				}
			}
			return result
		case string:
			return []string{v}
		default:
			return []string{fmt.Sprintf("%v", v)}
		}
	}

	// 如果不是JSON，按逗号分割
	parts := strings.Split(a.Remark, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// SetRemarkList 设置备注列表，以JSON数组形式存储
func (a *AuthCode) SetRemarkList(value []string) {
	if value == nil {
		value = []string{}
	}
	data, err := json.Marshal(value)
	if err != nil {
		// 序列化字符串列表不会失败，保险起见退回通用转换
		a.Remark = fmt.Sprintf("%v", value)
		return
	}
	a.Remark = string(data)
}

// RemarkDisplay 显示用的备注
func (a *AuthCode) RemarkDisplay() string {
	remarks := a.RemarkList()
	if len(remarks) > 0 {
		return strings.Join(remarks, ", ")
	}
	if a.Remark != "" {
		return a.Remark
	}
	return a.Code
}

// StatusDisplay 在线状态显示
func (a *AuthCode) StatusDisplay() string {
	if a.IsOnline == nil {
		return "未知"
	}
	if *a.IsOnline {
		return "在线"
	}
	return "离线"
}

// ConnectionLogType 连接日志类型
type ConnectionLogType string

const (
	ConnectionLogTypeLogin    ConnectionLogType = "login"
	ConnectionLogTypeQuery    ConnectionLogType = "query"
	ConnectionLogTypeGenerate ConnectionLogType = "generate"
	ConnectionLogTypeError    ConnectionLogType = "error"
)

// ConnectionLog 连接日志（仅追加）
type ConnectionLog struct {
	ID           uint              `json:"id" gorm:"primaryKey"`
	ConnectionID uint              `json:"connection_id" gorm:"index;not null"`
	LogType      ConnectionLogType `json:"log_type" gorm:"size:20;not null"`
	Message      string            `json:"message" gorm:"type:text"`
	Success      bool              `json:"success" gorm:"default:true"`
	CreatedAt    time.Time         `json:"created_at"`

	Connection Connection `json:"-" gorm:"foreignKey:ConnectionID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (ConnectionLog) TableName() string {
	return "connection_log"
}
