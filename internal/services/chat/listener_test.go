package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"wxconsole/internal/models"
)

func setupListener(t *testing.T) (*Listener, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Connection{},
		&models.AuthCode{},
		&models.ChatMessage{},
		&models.ChatSession{},
	))

	conn := models.Connection{UserID: 1, Name: "c1", URL: "http://127.0.0.1:8059", ConnectionType: models.ConnectionTypeWeCharPadPro, IsActive: true}
	require.NoError(t, db.Create(&conn).Error)
	authCode := models.AuthCode{ConnectionID: conn.ID, Code: "wxid_me"}
	require.NoError(t, db.Create(&authCode).Error)

	return NewListener(db, &conn, &authCode), db
}

func TestListener_BuildWebSocketURL(t *testing.T) {
	listener, _ := setupListener(t)
	wsURL, err := listener.buildWebSocketURL()
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:8059/ws/GetSyncMsg?key=wxid_me", wsURL)

	listener.serverURL = "https://pad.example.com"
	wsURL, err = listener.buildWebSocketURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://pad.example.com/ws/GetSyncMsg?key=wxid_me", wsURL)
}

func TestListener_SaveMessage(t *testing.T) {
	listener, db := setupListener(t)

	msg := &SyncMessage{
		NewMsgID:     "msg-001",
		FromUserName: "wxid_friend",
		ToUserName:   "wxid_me",
		Content:      "你好",
		PushContent:  "好友A: 你好",
	}
	require.NoError(t, listener.SaveMessage(msg))

	var saved models.ChatMessage
	require.NoError(t, db.Where("message_id = ?", "msg-001").First(&saved).Error)
	assert.False(t, saved.IsFromSelf)
	assert.Equal(t, "text", saved.MessageType)
	assert.Equal(t, "wxid_friend", saved.ChatPartner())
	assert.Equal(t, "好友A: 你好", saved.DisplayName())

	// 入站消息建会话并累加未读数
	var session models.ChatSession
	require.NoError(t, db.Where("partner_id = ?", "wxid_friend").First(&session).Error)
	assert.Equal(t, 1, session.UnreadCount)
	assert.Equal(t, "好友A: 你好", session.PartnerName)
	require.NotNil(t, session.LastMessageID)
	assert.Equal(t, saved.ID, *session.LastMessageID)
}

func TestListener_SaveMessage_Idempotent(t *testing.T) {
	listener, db := setupListener(t)

	msg := &SyncMessage{
		NewMsgID:     "msg-dup",
		FromUserName: "wxid_friend",
		ToUserName:   "wxid_me",
		Content:      "重复推送",
	}
	require.NoError(t, listener.SaveMessage(msg))
	require.NoError(t, listener.SaveMessage(msg))

	var count int64
	require.NoError(t, db.Model(&models.ChatMessage{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// 重复推送不重复累加未读
	var session models.ChatSession
	require.NoError(t, db.Where("partner_id = ?", "wxid_friend").First(&session).Error)
	assert.Equal(t, 1, session.UnreadCount)
}

func TestListener_SaveMessage_Outbound(t *testing.T) {
	listener, db := setupListener(t)

	msg := &SyncMessage{
		NewMsgID:     "msg-out",
		FromUserName: "wxid_me",
		ToUserName:   "wxid_friend",
		Content:      "我发出的消息",
	}
	require.NoError(t, listener.SaveMessage(msg))

	var saved models.ChatMessage
	require.NoError(t, db.Where("message_id = ?", "msg-out").First(&saved).Error)
	assert.True(t, saved.IsFromSelf)
	assert.Equal(t, "我", saved.DisplayName())
	assert.Equal(t, "wxid_friend", saved.ChatPartner())

	// 出站消息不计未读
	var session models.ChatSession
	require.NoError(t, db.Where("partner_id = ?", "wxid_friend").First(&session).Error)
	assert.Equal(t, 0, session.UnreadCount)
}

func TestListener_StopTerminatesReadLoop(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	listener, _ := setupListener(t)
	listener.serverURL = server.URL
	require.NoError(t, listener.Connect(context.Background()))
	assert.True(t, listener.IsConnected())

	done := make(chan struct{})
	go func() {
		listener.Start()
		close(done)
	}()

	listener.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not terminate after Stop")
	}
	assert.False(t, listener.IsConnected())

	// 停止后监听器不可复用
	assert.Error(t, listener.Connect(context.Background()))

	// 重复Stop安全
	listener.Stop()
}

func TestListener_HandleMessage_Invalid(t *testing.T) {
	listener, db := setupListener(t)

	assert.Error(t, listener.handleMessage([]byte("not json")))

	// 没有消息ID的推送直接忽略
	require.NoError(t, listener.handleMessage([]byte(`{"Content": "no id"}`)))
	var count int64
	require.NoError(t, db.Model(&models.ChatMessage{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
