package models

import (
	"time"

	"gorm.io/gorm"
)

// QRSessionType 二维码会话类型
type QRSessionType string

const (
	QRSessionTypeIPad       QRSessionType = "ipad"
	QRSessionTypeIPadBackup QRSessionType = "ipad_backup"
	QRSessionTypeCar        QRSessionType = "car"
	QRSessionType861IPad    QRSessionType = "861_ipad"
)

// QRSessionStatus 二维码会话状态
type QRSessionStatus string

const (
	QRStatusPending   QRSessionStatus = "pending"
	QRStatusScanned   QRSessionStatus = "scanned"
	QRStatusConfirmed QRSessionStatus = "confirmed"
	QRStatusSuccess   QRSessionStatus = "success"
	QRStatusFailed    QRSessionStatus = "failed"
	QRStatusExpired   QRSessionStatus = "expired"
	QRStatusCancelled QRSessionStatus = "cancelled"
)

// IsTerminal 是否为终止状态
func (s QRSessionStatus) IsTerminal() bool {
	switch s {
	case QRStatusSuccess, QRStatusFailed, QRStatusExpired, QRStatusCancelled:
		return true
	}
	return false
}

// QRCodeSession 二维码登录会话
//
// 过期是读取时的派生判断，不会自动改写status字段：
// 一个会话可能status仍为pending但IsExpired()已为true，
// 调用方在信任非终止状态前必须先检查IsExpired()。
type QRCodeSession struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	UserID       uint            `json:"user_id" gorm:"index;not null"`
	ConnectionID uint            `json:"connection_id" gorm:"index;not null"`
	SessionType  QRSessionType   `json:"session_type" gorm:"size:20;not null"`
	UUID         string          `json:"uuid" gorm:"size:100;uniqueIndex;not null"`
	AuthKey      string          `json:"-" gorm:"size:200;default:''"` // 协议侧轮询凭证
	QRCodeURL    string          `json:"qr_code_url" gorm:"type:text"`
	QRBase64     string          `json:"qr_base64" gorm:"type:text"`
	Status       QRSessionStatus `json:"status" gorm:"size:20;default:pending"`
	Wxid         string          `json:"wxid" gorm:"size:100;default:''"`
	Nickname     string          `json:"nickname" gorm:"size:100;default:''"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ExpiresAt    time.Time       `json:"expires_at" gorm:"not null"`

	Connection Connection `json:"-" gorm:"foreignKey:ConnectionID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (QRCodeSession) TableName() string {
	return "qr_code_session"
}

// IsExpired 是否已过期
func (s *QRCodeSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// UpdateStatus 更新状态并立即持久化
//
// 无条件赋值，不校验状态迁移合法性；wxid/nickname非空时一并写入。
func (s *QRCodeSession) UpdateStatus(db *gorm.DB, status QRSessionStatus, wxid, nickname string) error {
	s.Status = status
	if wxid != "" {
		s.Wxid = wxid
	}
	if nickname != "" {
		s.Nickname = nickname
	}
	return db.Save(s).Error
}

// LoginType 登录记录类型
type LoginType string

const (
	LoginTypeIPad       LoginType = "ipad"
	LoginTypeIPadBackup LoginType = "ipad_backup"
	LoginTypeCar        LoginType = "car"
	LoginType861IPad    LoginType = "861_ipad"
	LoginTypeAuto       LoginType = "auto"
)

// LoginRecord 微信登录记录（仅追加）
type LoginRecord struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"index;not null"`
	ConnectionID uint      `json:"connection_id" gorm:"index;not null"`
	LoginType    LoginType `json:"login_type" gorm:"size:20;not null"`
	Wxid         string    `json:"wxid" gorm:"size:100;not null"`
	Nickname     string    `json:"nickname" gorm:"size:100;default:''"`
	Success      bool      `json:"success" gorm:"default:true"`
	ErrorMessage string    `json:"error_message" gorm:"type:text;default:''"`
	CreatedAt    time.Time `json:"created_at"`

	Connection Connection `json:"-" gorm:"foreignKey:ConnectionID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (LoginRecord) TableName() string {
	return "wechat_login_record"
}
