package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"wxconsole/internal/logger"
	"wxconsole/internal/models"
	"wxconsole/internal/services/connection"
)

// ConnectionHandler 连接管理处理器
type ConnectionHandler struct {
	db     *gorm.DB
	svc    *connection.Service
	logger *logger.Logger
}

// NewConnectionHandler 创建连接管理处理器
func NewConnectionHandler(db *gorm.DB, svc *connection.Service) *ConnectionHandler {
	return &ConnectionHandler{
		db:     db,
		svc:    svc,
		logger: logger.NewLogger("connection-handler"),
	}
}

// CreateConnectionRequest 创建连接请求
type CreateConnectionRequest struct {
	UserID         uint   `json:"user_id" binding:"required"`
	Name           string `json:"name" binding:"required"`
	URL            string `json:"url" binding:"required,url"`
	ConnectionType string `json:"connection_type"`
	AdminKey       string `json:"admin_key"`
}

// ListConnections 列出连接
func (h *ConnectionHandler) ListConnections(c *gin.Context) {
	query := h.db.Order("created_at DESC")
	if userID := c.Query("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var connections []models.Connection
	if err := query.Find(&connections).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询连接失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": connections, "total": len(connections)})
}

// CreateConnection 创建连接
func (h *ConnectionHandler) CreateConnection(c *gin.Context) {
	var req CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	connType := models.ConnectionType(req.ConnectionType)
	if req.ConnectionType == "" {
		connType = models.ConnectionTypeWeCharPadPro
	}
	if !models.IsValidConnectionType(connType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的连接类型: " + req.ConnectionType})
		return
	}

	conn := models.Connection{
		UserID:         req.UserID,
		Name:           req.Name,
		URL:            req.URL,
		ConnectionType: connType,
		AdminKey:       req.AdminKey,
		IsActive:       true,
	}
	if err := h.db.Create(&conn).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "创建连接失败，名称可能已存在"})
		return
	}
	c.JSON(http.StatusCreated, conn)
}

// TestConnection 测试单个连接
func (h *ConnectionHandler) TestConnection(c *gin.Context) {
	conn, ok := h.findConnection(c)
	if !ok {
		return
	}

	success := h.svc.TestAndLog(c.Request.Context(), conn)
	c.JSON(http.StatusOK, gin.H{
		"connection_id": conn.ID,
		"success":       success,
	})
}

// RefreshConnections 手动刷新全部连接
func (h *ConnectionHandler) RefreshConnections(c *gin.Context) {
	wechatxOnly, _ := strconv.ParseBool(c.DefaultQuery("wechatx_only", "false"))

	refreshLog, err := h.svc.RefreshAll(c.Request.Context(), models.RefreshTypeManual, wechatxOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "刷新执行失败"})
		return
	}
	c.JSON(http.StatusOK, refreshLog)
}

// ListAuthCodes 列出连接下的授权码
func (h *ConnectionHandler) ListAuthCodes(c *gin.Context) {
	conn, ok := h.findConnection(c)
	if !ok {
		return
	}

	var codes []models.AuthCode
	if err := h.db.Where("connection_id = ?", conn.ID).
		Order("created_at DESC").Find(&codes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询授权码失败"})
		return
	}

	// 附带解析后的备注和状态显示
	result := make([]gin.H, 0, len(codes))
	for i := range codes {
		result = append(result, gin.H{
			"auth_code":      codes[i],
			"remark_list":    codes[i].RemarkList(),
			"remark_display": codes[i].RemarkDisplay(),
			"status_display": codes[i].StatusDisplay(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"auth_codes": result, "total": len(result)})
}

// CreateAuthCodeRequest 创建授权码请求
type CreateAuthCodeRequest struct {
	Code    string   `json:"code" binding:"required"`
	Remarks []string `json:"remarks"`
}

// CreateAuthCode 在连接下登记授权码
func (h *ConnectionHandler) CreateAuthCode(c *gin.Context) {
	conn, ok := h.findConnection(c)
	if !ok {
		return
	}

	var req CreateAuthCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	authCode := models.AuthCode{
		ConnectionID: conn.ID,
		Code:         req.Code,
	}
	if len(req.Remarks) > 0 {
		authCode.SetRemarkList(req.Remarks)
	}
	if err := h.db.Create(&authCode).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "创建授权码失败，该连接下可能已存在"})
		return
	}
	c.JSON(http.StatusCreated, authCode)
}

// QueryAuthCodeStatus 查询单个授权码的在线状态
func (h *ConnectionHandler) QueryAuthCodeStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("code_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的授权码ID"})
		return
	}

	var authCode models.AuthCode
	if err := h.db.First(&authCode, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "授权码不存在"})
		return
	}

	online, queryErr := h.svc.QueryAuthCodeStatus(c.Request.Context(), &authCode)
	c.JSON(http.StatusOK, gin.H{
		"auth_code_id":   authCode.ID,
		"is_online":      online,
		"query_success":  queryErr == nil,
		"status_display": authCode.StatusDisplay(),
	})
}

// findConnection 解析路径中的连接ID并加载记录
func (h *ConnectionHandler) findConnection(c *gin.Context) (*models.Connection, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的连接ID"})
		return nil, false
	}

	var conn models.Connection
	if err := h.db.First(&conn, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "连接不存在"})
		return nil, false
	}
	return &conn, true
}

// RegisterConnectionRoutes 注册连接管理路由
func RegisterConnectionRoutes(r *gin.Engine, h *ConnectionHandler) {
	group := r.Group("/api/connections")
	{
		group.GET("", h.ListConnections)
		group.POST("", h.CreateConnection)
		group.POST("/refresh", h.RefreshConnections)
		group.POST("/:id/test", h.TestConnection)
		group.GET("/:id/codes", h.ListAuthCodes)
		group.POST("/:id/codes", h.CreateAuthCode)
	}
	r.POST("/api/codes/:code_id/status", h.QueryAuthCodeStatus)
}
