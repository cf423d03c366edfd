package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"wxconsole/internal/errors"
	"wxconsole/internal/logger"
	"wxconsole/internal/models"
)

// SyncMessage 协议服务推送的同步消息
type SyncMessage struct {
	NewMsgID     string `json:"NewMsgId"`
	FromUserName string `json:"FromUserName"`
	ToUserName   string `json:"ToUserName"`
	Content      string `json:"Content"`
	PushContent  string `json:"PushContent"`
	MsgType      string `json:"MsgType"`
}

// Listener 聊天消息监听器
//
// 连接协议服务的消息推送通道，把收到的消息镜像到本地
// chat_message表并维护会话记录。每个授权码一个监听器。
type Listener struct {
	db        *gorm.DB
	serverURL string
	authCode  *models.AuthCode

	conn      *websocket.Conn
	connected bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	logger    *logger.Logger
}

// NewListener 创建消息监听器
func NewListener(db *gorm.DB, conn *models.Connection, authCode *models.AuthCode) *Listener {
	return &Listener{
		db:        db,
		serverURL: conn.BaseURL(),
		authCode:  authCode,
		stopChan:  make(chan struct{}),
		logger:    logger.NewLogger("chat-listener"),
	}
}

// Connect 连接到协议服务的推送通道
func (l *Listener) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.connected {
		return errors.NewConsoleError(errors.ErrorTypeWebSocket, errors.ErrCodeWebSocketConnect, "Listener is already connected")
	}
	select {
	case <-l.stopChan:
		return errors.NewConsoleError(errors.ErrorTypeWebSocket, errors.ErrCodeWebSocketConnect, "Listener is stopped")
	default:
	}

	wsURL, err := l.buildWebSocketURL()
	if err != nil {
		consoleErr := errors.ErrWebSocketConnection("Failed to build WebSocket URL", err)
		l.logger.LogConsoleError(consoleErr, "WebSocket URL construction failed")
		return consoleErr
	}

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	l.logger.Info("Connecting to message push channel", logger.Fields{
		"url":  wsURL,
		"wxid": l.authCode.Code,
	})

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		consoleErr := errors.ErrWebSocketConnection("Failed to establish WebSocket connection", err).
			WithContext(map[string]interface{}{
				"url":  wsURL,
				"wxid": l.authCode.Code,
			})
		l.logger.LogConsoleError(consoleErr, "WebSocket connection failed")
		return consoleErr
	}

	l.conn = conn
	l.connected = true
	return nil
}

// buildWebSocketURL 构造推送通道地址
func (l *Listener) buildWebSocketURL() (string, error) {
	parsed, err := url.Parse(l.serverURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if parsed.Scheme == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws/GetSyncMsg?key=%s", scheme, parsed.Host, url.QueryEscape(l.authCode.Code)), nil
}

// Start 启动读取循环，阻塞直到Stop或连接断开
func (l *Listener) Start() {
	for {
		select {
		case <-l.stopChan:
			return
		default:
		}

		l.mu.RLock()
		conn := l.conn
		l.mu.RUnlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if !strings.Contains(err.Error(), "use of closed network connection") {
				l.logger.Warn("Read from push channel failed", logger.Fields{
					"wxid":  l.authCode.Code,
					"error": err.Error(),
				})
			}
			return
		}

		if err := l.handleMessage(data); err != nil {
			l.logger.Warn("Failed to handle sync message", logger.Fields{
				"wxid":  l.authCode.Code,
				"error": err.Error(),
			})
		}
	}
}

// Stop 停止监听并关闭连接
//
// 监听器一次性使用，停止后不可重新Connect；重启时新建监听器。
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.connected || l.conn == nil {
		return
	}

	close(l.stopChan)

	l.conn.Close()
	l.conn = nil
	l.connected = false

	l.logger.Info("Chat listener stopped", logger.Fields{
		"wxid": l.authCode.Code,
	})
}

// IsConnected 检查连接状态
func (l *Listener) IsConnected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.connected
}

// handleMessage 解析并持久化一条同步消息
//
// (auth_code, message_id)唯一，重复推送直接忽略。
func (l *Listener) handleMessage(data []byte) error {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return errors.NewConsoleError(errors.ErrorTypeWebSocket, errors.ErrCodeWebSocketMessage, "Invalid sync message").
			WithCause(err)
	}
	if msg.NewMsgID == "" {
		return nil
	}
	return l.SaveMessage(&msg)
}

// SaveMessage 持久化消息并更新会话
func (l *Listener) SaveMessage(msg *SyncMessage) error {
	isFromSelf := msg.FromUserName == l.authCode.Code

	messageType := msg.MsgType
	if messageType == "" {
		messageType = "text"
	}

	chatMessage := &models.ChatMessage{
		AuthCodeID:  l.authCode.ID,
		MessageID:   msg.NewMsgID,
		FromUser:    msg.FromUserName,
		ToUser:      msg.ToUserName,
		Content:     msg.Content,
		PushContent: msg.PushContent,
		MessageType: messageType,
		IsFromSelf:  isFromSelf,
	}

	// 幂等写入：已存在的消息ID不重复插入
	var existing models.ChatMessage
	err := l.db.Where("auth_code_id = ? AND message_id = ?", l.authCode.ID, msg.NewMsgID).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	if err := l.db.Create(chatMessage).Error; err != nil {
		return err
	}

	return l.upsertSession(chatMessage)
}

// upsertSession 维护聊天会话：更新最后消息，入站消息累加未读数
func (l *Listener) upsertSession(msg *models.ChatMessage) error {
	partnerID := msg.ChatPartner()

	session := models.ChatSession{
		AuthCodeID: l.authCode.ID,
		PartnerID:  partnerID,
	}
	if err := l.db.Where(models.ChatSession{AuthCodeID: l.authCode.ID, PartnerID: partnerID}).
		FirstOrCreate(&session).Error; err != nil {
		return err
	}

	session.LastMessageID = &msg.ID
	session.LastActivity = time.Now()
	if session.PartnerName == "" && !msg.IsFromSelf && msg.PushContent != "" {
		session.PartnerName = msg.PushContent
	}
	if !msg.IsFromSelf {
		session.UnreadCount++
	}
	return l.db.Save(&session).Error
}
