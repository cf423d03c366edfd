package models

import (
	"time"
)

// ChatMessage 聊天消息记录
//
// 镜像自协议服务推送的同步消息，message_id对应协议返回的NewMsgId。
type ChatMessage struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	AuthCodeID  uint      `json:"auth_code_id" gorm:"uniqueIndex:idx_chat_message_code_msg;index:idx_chat_message_code_time;not null"`
	MessageID   string    `json:"message_id" gorm:"size:100;uniqueIndex:idx_chat_message_code_msg;not null"`
	FromUser    string    `json:"from_user" gorm:"size:100;index:idx_chat_message_users"`
	ToUser      string    `json:"to_user" gorm:"size:100;index:idx_chat_message_users"`
	Content     string    `json:"content" gorm:"type:text"`
	PushContent string    `json:"push_content" gorm:"size:200;default:''"`
	MessageType string    `json:"message_type" gorm:"size:20;default:text"`
	IsFromSelf  bool      `json:"is_from_self" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at" gorm:"index:idx_chat_message_code_time"`

	AuthCode AuthCode `json:"-" gorm:"foreignKey:AuthCodeID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (ChatMessage) TableName() string {
	return "chat_message"
}

// ChatPartner 获取聊天对象
func (m *ChatMessage) ChatPartner() string {
	if m.IsFromSelf {
		return m.ToUser
	}
	return m.FromUser
}

// DisplayName 发送者显示名称
func (m *ChatMessage) DisplayName() string {
	if m.IsFromSelf {
		return "我"
	}
	if m.PushContent != "" {
		return m.PushContent
	}
	return m.FromUser
}

// ChatSession 聊天会话
type ChatSession struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	AuthCodeID    uint      `json:"auth_code_id" gorm:"uniqueIndex:idx_chat_session_code_partner;not null"`
	PartnerID     string    `json:"partner_id" gorm:"size:100;uniqueIndex:idx_chat_session_code_partner;not null"`
	PartnerName   string    `json:"partner_name" gorm:"size:100;default:''"`
	LastMessageID *uint     `json:"last_message_id"`
	LastActivity  time.Time `json:"last_activity" gorm:"index"`
	UnreadCount   int       `json:"unread_count" gorm:"default:0"`
	CreatedAt     time.Time `json:"created_at"`

	AuthCode    AuthCode     `json:"-" gorm:"foreignKey:AuthCodeID;constraint:OnDelete:CASCADE"`
	LastMessage *ChatMessage `json:"last_message,omitempty" gorm:"foreignKey:LastMessageID;constraint:OnDelete:SET NULL"`
}

// TableName 指定表名
func (ChatSession) TableName() string {
	return "chat_session"
}
