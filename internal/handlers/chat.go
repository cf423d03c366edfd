package handlers

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"wxconsole/internal/logger"
	"wxconsole/internal/models"
	"wxconsole/internal/services/chat"
)

// ChatHandler 聊天消息处理器
//
// 管理每个授权码的消息监听器，并提供镜像消息的查询接口。
type ChatHandler struct {
	db     *gorm.DB
	logger *logger.Logger

	mu        sync.Mutex
	listeners map[uint]*chat.Listener // auth_code_id -> listener
}

// NewChatHandler 创建聊天消息处理器
func NewChatHandler(db *gorm.DB) *ChatHandler {
	return &ChatHandler{
		db:        db,
		logger:    logger.NewLogger("chat-handler"),
		listeners: make(map[uint]*chat.Listener),
	}
}

// StartListener 为授权码启动消息监听
func (h *ChatHandler) StartListener(c *gin.Context) {
	codeID, err := strconv.ParseUint(c.Param("code_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的授权码ID"})
		return
	}

	var authCode models.AuthCode
	if err := h.db.Preload("Connection").First(&authCode, codeID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "授权码不存在"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.listeners[authCode.ID]; ok && existing.IsConnected() {
		c.JSON(http.StatusOK, gin.H{"auth_code_id": authCode.ID, "status": "already_running"})
		return
	}

	listener := chat.NewListener(h.db, &authCode.Connection, &authCode)
	if err := listener.Connect(c.Request.Context()); err != nil {
		h.logger.Error("Failed to connect message listener", logger.Fields{
			"auth_code_id": authCode.ID,
			"error":        err.Error(),
		})
		c.JSON(http.StatusBadGateway, gin.H{"error": "连接协议服务失败"})
		return
	}
	// 读取循环阻塞到连接断开，放到后台运行
	go listener.Start()
	h.listeners[authCode.ID] = listener

	c.JSON(http.StatusOK, gin.H{"auth_code_id": authCode.ID, "status": "running"})
}

// StopListener 停止授权码的消息监听
func (h *ChatHandler) StopListener(c *gin.Context) {
	codeID, err := strconv.ParseUint(c.Param("code_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的授权码ID"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	listener, ok := h.listeners[uint(codeID)]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "监听器未运行"})
		return
	}
	listener.Stop()
	delete(h.listeners, uint(codeID))

	c.JSON(http.StatusOK, gin.H{"auth_code_id": codeID, "status": "stopped"})
}

// StopAll 停止所有监听器，服务关闭时调用
func (h *ChatHandler) StopAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, listener := range h.listeners {
		listener.Stop()
		delete(h.listeners, id)
	}
}

// ListSessions 列出授权码的会话
func (h *ChatHandler) ListSessions(c *gin.Context) {
	codeID := c.Param("code_id")

	var sessions []models.ChatSession
	if err := h.db.Where("auth_code_id = ?", codeID).
		Order("last_activity DESC").Find(&sessions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询会话失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "total": len(sessions)})
}

// ListMessages 按会话对端列出消息，升序构成聊天时间线
func (h *ChatHandler) ListMessages(c *gin.Context) {
	codeID := c.Param("code_id")
	partnerID := c.Query("partner_id")
	if partnerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少partner_id参数"})
		return
	}

	var messages []models.ChatMessage
	if err := h.db.Where("auth_code_id = ? AND (from_user = ? OR to_user = ?)",
		codeID, partnerID, partnerID).
		Order("created_at ASC").Limit(200).Find(&messages).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询消息失败"})
		return
	}

	// 拉取消息视为已读
	h.db.Model(&models.ChatSession{}).
		Where("auth_code_id = ? AND partner_id = ?", codeID, partnerID).
		Update("unread_count", 0)

	c.JSON(http.StatusOK, gin.H{"messages": messages, "total": len(messages)})
}

// RegisterChatRoutes 注册聊天消息路由
func RegisterChatRoutes(r *gin.Engine, h *ChatHandler) {
	group := r.Group("/api/chat/:code_id")
	{
		group.POST("/listener", h.StartListener)
		group.DELETE("/listener", h.StopListener)
		group.GET("/sessions", h.ListSessions)
		group.GET("/messages", h.ListMessages)
	}
}
