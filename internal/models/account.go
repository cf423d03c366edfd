package models

import (
	"time"
)

// UserType 用户类型
type UserType string

const (
	UserTypeAdmin UserType = "admin"
	UserTypeUser  UserType = "user"
)

// User 后台用户
type User struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Username    string    `json:"username" gorm:"size:150;uniqueIndex;not null"`
	Password    string    `json:"-" gorm:"size:128;not null"`
	UserType    UserType  `json:"user_type" gorm:"size:10;default:user"`
	Phone       string    `json:"phone" gorm:"size:20;default:''"`
	IsSuperuser bool      `json:"is_superuser" gorm:"default:false"`
	LastLoginIP string    `json:"last_login_ip" gorm:"size:45;default:''"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Connections []Connection `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (User) TableName() string {
	return "auth_user"
}

// IsAdmin 是否为管理员
func (u *User) IsAdmin() bool {
	return u.UserType == UserTypeAdmin || u.IsSuperuser
}

// UserProfile 用户配置
type UserProfile struct {
	ID                  uint   `json:"id" gorm:"primaryKey"`
	UserID              uint   `json:"user_id" gorm:"uniqueIndex;not null"`
	AutoRefreshInterval int    `json:"auto_refresh_interval" gorm:"default:120"` // 分钟
	ProtocolPassword    string `json:"protocol_password" gorm:"size:100;default:''"`
	Theme               string `json:"theme" gorm:"size:20;default:light"`

	User User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (UserProfile) TableName() string {
	return "user_profile"
}

// LoginLog 后台登录日志（仅追加）
type LoginLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index;not null"`
	IPAddress string    `json:"ip_address" gorm:"size:45;not null"`
	UserAgent string    `json:"user_agent" gorm:"type:text;default:''"`
	Success   bool      `json:"success" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`

	User User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (LoginLog) TableName() string {
	return "login_log"
}
