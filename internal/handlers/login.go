package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"wxconsole/internal/logger"
	"wxconsole/internal/models"
	"wxconsole/internal/services/wechatlogin"
)

// LoginHandler 扫码登录处理器
type LoginHandler struct {
	db     *gorm.DB
	svc    *wechatlogin.Service
	logger *logger.Logger
}

// NewLoginHandler 创建扫码登录处理器
func NewLoginHandler(db *gorm.DB, svc *wechatlogin.Service) *LoginHandler {
	return &LoginHandler{
		db:     db,
		svc:    svc,
		logger: logger.NewLogger("login-handler"),
	}
}

// CreateQRCodeRequest 创建二维码会话请求
type CreateQRCodeRequest struct {
	UserID       uint   `json:"user_id" binding:"required"`
	ConnectionID uint   `json:"connection_id" binding:"required"`
	SessionType  string `json:"session_type" binding:"required"`
}

// CreateQRCode 创建二维码登录会话
func (h *LoginHandler) CreateQRCode(c *gin.Context) {
	var req CreateQRCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionType := models.QRSessionType(req.SessionType)
	switch sessionType {
	case models.QRSessionTypeIPad, models.QRSessionTypeIPadBackup,
		models.QRSessionTypeCar, models.QRSessionType861IPad:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的会话类型: " + req.SessionType})
		return
	}

	var conn models.Connection
	if err := h.db.First(&conn, req.ConnectionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "连接不存在"})
		return
	}

	session, err := h.svc.CreateSession(c.Request.Context(), req.UserID, &conn, sessionType)
	if err != nil {
		h.logger.Error("Failed to create QR session", logger.Fields{
			"connection_id": req.ConnectionID,
			"error":         err.Error(),
		})
		c.JSON(http.StatusBadGateway, gin.H{"error": "向协议服务请求二维码失败"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"uuid":        session.UUID,
		"qr_code_url": session.QRCodeURL,
		"status":      session.Status,
		"expires_at":  session.ExpiresAt,
	})
}

// GetQRCode 轮询二维码会话状态
//
// 响应始终携带is_expired，调用方在信任非终止状态前应先检查它。
func (h *LoginHandler) GetQRCode(c *gin.Context) {
	session, err := h.svc.FindByUUID(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
		return
	}

	if !session.Status.IsTerminal() {
		if _, err := h.svc.Poll(c.Request.Context(), session); err != nil {
			h.logger.Warn("QR session poll failed", logger.Fields{
				"uuid":  session.UUID,
				"error": err.Error(),
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"uuid":       session.UUID,
		"status":     session.Status,
		"wxid":       session.Wxid,
		"nickname":   session.Nickname,
		"is_expired": session.IsExpired(),
		"expires_at": session.ExpiresAt,
	})
}

// CancelQRCode 取消二维码会话
func (h *LoginHandler) CancelQRCode(c *gin.Context) {
	session, err := h.svc.FindByUUID(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
		return
	}

	if err := h.svc.Cancel(session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "取消会话失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uuid": session.UUID, "status": session.Status})
}

// RegisterLoginRoutes 注册扫码登录路由
func RegisterLoginRoutes(r *gin.Engine, h *LoginHandler) {
	group := r.Group("/api/login")
	{
		group.POST("/qrcode", h.CreateQRCode)
		group.GET("/qrcode/:uuid", h.GetQRCode)
		group.POST("/qrcode/:uuid/cancel", h.CancelQRCode)
	}
}
