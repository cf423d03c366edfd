package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// APIRequestType API请求类型
type APIRequestType string

const (
	APIRequestGetCode     APIRequestType = "get_code"
	APIRequestGetAllWxids APIRequestType = "get_all_wxids"
	APIRequestReadArticle APIRequestType = "read_article"
	APIRequestGetMobile   APIRequestType = "get_mobile"
	APIRequestGetOpenID   APIRequestType = "get_openid"
)

// APIRequest 对外API请求审计记录，每次调用一行
type APIRequest struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	UserID       *uint          `json:"user_id" gorm:"index"`
	RequestType  APIRequestType `json:"request_type" gorm:"size:20;not null"`
	Wxid         string         `json:"wxid" gorm:"size:100;default:''"`
	AppID        string         `json:"appid" gorm:"size:100;default:''"`
	RequestData  string         `json:"request_data" gorm:"type:text;default:'{}'"`
	ResponseData string         `json:"response_data" gorm:"type:text;default:'{}'"`
	Success      bool           `json:"success" gorm:"default:true"`
	ErrorMessage string         `json:"error_message" gorm:"type:text;default:''"`
	IPAddress    string         `json:"ip_address" gorm:"size:45"`
	UserAgent    string         `json:"user_agent" gorm:"type:text;default:''"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TableName 指定表名
func (APIRequest) TableName() string {
	return "api_request"
}

// APIKey 对外API密钥
type APIKey struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	UserID      uint       `json:"user_id" gorm:"index;not null"`
	Name        string     `json:"name" gorm:"size:100;not null"`
	Key         string     `json:"key" gorm:"size:64;uniqueIndex;not null"`
	IsActive    bool       `json:"is_active" gorm:"default:true"`
	Permissions string     `json:"permissions" gorm:"type:text;default:'[]'"` // JSON数组
	LastUsedAt  *time.Time `json:"last_used_at"`
	CreatedAt   time.Time  `json:"created_at"`

	User User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (APIKey) TableName() string {
	return "api_key"
}

// GenerateKey 生成新的API密钥值
func GenerateKey() string {
	return strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", "")
}

// PermissionList 获取权限列表
func (k *APIKey) PermissionList() []string {
	if k.Permissions == "" {
		return []string{}
	}
	var perms []string
	if err := json.Unmarshal([]byte(k.Permissions), &perms); err != nil {
		return []string{}
	}
	return perms
}

// SetPermissionList 设置权限列表
func (k *APIKey) SetPermissionList(perms []string) {
	if perms == nil {
		perms = []string{}
	}
	data, _ := json.Marshal(perms)
	k.Permissions = string(data)
}

// HasPermission 检查是否有指定权限
func (k *APIKey) HasPermission(permission string) bool {
	for _, p := range k.PermissionList() {
		if p == permission || p == "all" {
			return true
		}
	}
	return false
}
