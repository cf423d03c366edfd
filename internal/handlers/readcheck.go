package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"wxconsole/internal/logger"
	"wxconsole/internal/models"
	"wxconsole/internal/services/readcheck"
)

// ReadCheckHandler 阅读过检处理器
type ReadCheckHandler struct {
	db     *gorm.DB
	runner *readcheck.Runner
	logger *logger.Logger
}

// NewReadCheckHandler 创建阅读过检处理器
func NewReadCheckHandler(db *gorm.DB, runner *readcheck.Runner) *ReadCheckHandler {
	return &ReadCheckHandler{
		db:     db,
		runner: runner,
		logger: logger.NewLogger("readcheck-handler"),
	}
}

// CreateReadCheckConfigRequest 创建检测配置请求
type CreateReadCheckConfigRequest struct {
	UserID      uint     `json:"user_id" binding:"required"`
	ProtocolURL string   `json:"protocol_url" binding:"required,url"`
	Wxids       []string `json:"wxids"`
}

// ListConfigs 列出检测配置
func (h *ReadCheckHandler) ListConfigs(c *gin.Context) {
	query := h.db.Order("created_at DESC")
	if userID := c.Query("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var configs []models.ReadCheckConfig
	if err := query.Find(&configs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询配置失败"})
		return
	}

	result := make([]gin.H, 0, len(configs))
	for i := range configs {
		result = append(result, gin.H{
			"config":       configs[i],
			"wxids":        configs[i].WxidList(),
			"wxid_count":   configs[i].WxidCount(),
			"success_rate": configs[i].SuccessRate(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"configs": result, "total": len(result)})
}

// CreateConfig 创建检测配置
func (h *ReadCheckHandler) CreateConfig(c *gin.Context) {
	var req CreateReadCheckConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	config := models.ReadCheckConfig{
		UserID:      req.UserID,
		ProtocolURL: req.ProtocolURL,
		IsActive:    true,
	}
	config.SetWxidList(req.Wxids)
	if err := h.db.Create(&config).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "创建配置失败，该协议地址可能已存在"})
		return
	}
	c.JSON(http.StatusCreated, config)
}

// RunSessionRequest 发起检测请求
type RunSessionRequest struct {
	ConfigID uint   `json:"config_id" binding:"required"`
	URL      string `json:"url" binding:"required,url"`
}

// RunSession 发起一次检测
//
// 检测在后台执行，立即返回202；结果通过GetSession轮询。
func (h *ReadCheckHandler) RunSession(c *gin.Context) {
	var req RunSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var config models.ReadCheckConfig
	if err := h.db.First(&config, req.ConfigID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "配置不存在"})
		return
	}

	go func() {
		if _, err := h.runner.Run(context.Background(), &config, req.URL); err != nil {
			h.logger.Error("Read check run failed", logger.Fields{
				"config_id": config.ID,
				"url":       req.URL,
				"error":     err.Error(),
			})
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"config_id": config.ID, "url": req.URL, "status": "running"})
}

// GetSession 查询检测会话及流程日志
func (h *ReadCheckHandler) GetSession(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的会话ID"})
		return
	}

	var session models.ReadCheckSession
	if err := h.db.Preload("ProcessLogs", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).First(&session, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
		return
	}

	c.JSON(http.StatusOK, session)
}

// ListSessions 列出检测会话
func (h *ReadCheckHandler) ListSessions(c *gin.Context) {
	query := h.db.Order("started_at DESC")
	if userID := c.Query("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var sessions []models.ReadCheckSession
	if err := query.Limit(50).Find(&sessions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询会话失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "total": len(sessions)})
}

// RegisterReadCheckRoutes 注册阅读过检路由
func RegisterReadCheckRoutes(r *gin.Engine, h *ReadCheckHandler) {
	group := r.Group("/api/readcheck")
	{
		group.GET("/configs", h.ListConfigs)
		group.POST("/configs", h.CreateConfig)
		group.GET("/sessions", h.ListSessions)
		group.POST("/sessions", h.RunSession)
		group.GET("/sessions/:id", h.GetSession)
	}
}
