package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"wxconsole/internal/logger"
	"wxconsole/internal/models"
	"wxconsole/internal/protocol"
)

// APIHandler 对外API处理器
//
// 所有接口走API密钥鉴权，每次调用写一条审计记录。
type APIHandler struct {
	db      *gorm.DB
	timeout time.Duration
	logger  *logger.Logger
}

// NewAPIHandler 创建对外API处理器
func NewAPIHandler(db *gorm.DB, timeout time.Duration) *APIHandler {
	return &APIHandler{
		db:      db,
		timeout: timeout,
		logger:  logger.NewLogger("external-api"),
	}
}

const apiKeyContextKey = "api_key"

// APIKeyAuth API密钥鉴权中间件
//
// 支持 Authorization: Bearer <key> 和 X-API-Key 两种携带方式，
// 校验通过后更新密钥的最近使用时间。
func (h *APIHandler) APIKeyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" {
			auth := c.GetHeader("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "缺少API密钥"})
			return
		}

		var apiKey models.APIKey
		if err := h.db.Where("key = ? AND is_active = ?", key, true).First(&apiKey).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效的API密钥"})
			return
		}

		now := time.Now()
		h.db.Model(&apiKey).Update("last_used_at", now)

		c.Set(apiKeyContextKey, &apiKey)
		c.Next()
	}
}

// requirePermission 检查当前密钥是否有指定权限
func requirePermission(c *gin.Context, permission string) (*models.APIKey, bool) {
	value, exists := c.Get(apiKeyContextKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未鉴权"})
		return nil, false
	}
	apiKey := value.(*models.APIKey)
	if !apiKey.HasPermission(permission) {
		c.JSON(http.StatusForbidden, gin.H{"error": "密钥无此权限"})
		return nil, false
	}
	return apiKey, true
}

// audit 写审计记录，失败只记日志不影响响应
func (h *APIHandler) audit(c *gin.Context, apiKey *models.APIKey, reqType models.APIRequestType, wxid string, requestData, responseData interface{}, success bool, errMsg string) {
	reqJSON, _ := json.Marshal(requestData)
	respJSON, _ := json.Marshal(responseData)
	if requestData == nil {
		reqJSON = []byte("{}")
	}
	if responseData == nil {
		respJSON = []byte("{}")
	}

	record := models.APIRequest{
		RequestType:  reqType,
		Wxid:         wxid,
		RequestData:  string(reqJSON),
		ResponseData: string(respJSON),
		Success:      success,
		ErrorMessage: errMsg,
		IPAddress:    c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
	}
	if apiKey != nil {
		record.UserID = &apiKey.UserID
	}
	if err := h.db.Create(&record).Error; err != nil {
		h.logger.Error("Failed to write API audit record", logger.Fields{
			"request_type": reqType,
			"error":        err.Error(),
		})
	}
}

// GetCodeRequest 查询授权码请求
type GetCodeRequest struct {
	Wxid string `json:"wxid" binding:"required"`
}

// GetCode 按微信ID查询授权码
func (h *APIHandler) GetCode(c *gin.Context) {
	apiKey, ok := requirePermission(c, "get_code")
	if !ok {
		return
	}

	var req GetCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	wxid := req.Wxid

	var code models.AuthCode
	err := h.db.Preload("Connection").Where("code = ?", wxid).First(&code).Error
	if err != nil {
		h.audit(c, apiKey, models.APIRequestGetCode, wxid, gin.H{"wxid": wxid}, nil, false, "授权码不存在")
		c.JSON(http.StatusNotFound, gin.H{"error": "授权码不存在"})
		return
	}

	resp := gin.H{
		"code":       code.Code,
		"nickname":   code.Nickname,
		"is_online":  code.IsOnline,
		"connection": code.Connection.BaseURL(),
	}
	h.audit(c, apiKey, models.APIRequestGetCode, wxid, gin.H{"wxid": wxid}, resp, true, "")
	c.JSON(http.StatusOK, resp)
}

// GetAllWxids 列出所有在线账号的微信ID
func (h *APIHandler) GetAllWxids(c *gin.Context) {
	apiKey, ok := requirePermission(c, "get_all_wxids")
	if !ok {
		return
	}

	var codes []models.AuthCode
	if err := h.db.Where("is_online = ?", true).Find(&codes).Error; err != nil {
		h.audit(c, apiKey, models.APIRequestGetAllWxids, "", nil, nil, false, err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败"})
		return
	}

	wxids := make([]string, 0, len(codes))
	for i := range codes {
		wxids = append(wxids, codes[i].Code)
	}
	resp := gin.H{"wxids": wxids, "total": len(wxids)}
	h.audit(c, apiKey, models.APIRequestGetAllWxids, "", nil, resp, true, "")
	c.JSON(http.StatusOK, resp)
}

// ReadArticleRequest 代读文章请求
type ReadArticleRequest struct {
	Wxid string `json:"wxid" binding:"required"`
	URL  string `json:"url" binding:"required,url"`
}

// ReadArticle 用指定账号访问一次文章链接
func (h *APIHandler) ReadArticle(c *gin.Context) {
	apiKey, ok := requirePermission(c, "read_article")
	if !ok {
		return
	}

	var req ReadArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var code models.AuthCode
	if err := h.db.Preload("Connection").Where("code = ?", req.Wxid).First(&code).Error; err != nil {
		h.audit(c, apiKey, models.APIRequestReadArticle, req.Wxid, req, nil, false, "账号不存在")
		c.JSON(http.StatusNotFound, gin.H{"error": "账号不存在"})
		return
	}

	client := protocol.NewClient(&code.Connection, h.timeout)
	if err := client.ReadArticle(c.Request.Context(), req.URL, req.Wxid); err != nil {
		h.audit(c, apiKey, models.APIRequestReadArticle, req.Wxid, req, nil, false, err.Error())
		c.JSON(http.StatusBadGateway, gin.H{"error": "协议服务调用失败"})
		return
	}

	resp := gin.H{"wxid": req.Wxid, "url": req.URL, "success": true}
	h.audit(c, apiKey, models.APIRequestReadArticle, req.Wxid, req, resp, true, "")
	c.JSON(http.StatusOK, resp)
}

// CreateAPIKeyRequest 创建API密钥请求
type CreateAPIKeyRequest struct {
	UserID      uint     `json:"user_id" binding:"required"`
	Name        string   `json:"name" binding:"required"`
	Permissions []string `json:"permissions"`
}

// CreateAPIKey 创建API密钥（管理接口，不走密钥鉴权）
func (h *APIHandler) CreateAPIKey(c *gin.Context) {
	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	apiKey := models.APIKey{
		UserID:   req.UserID,
		Name:     req.Name,
		Key:      models.GenerateKey(),
		IsActive: true,
	}
	apiKey.SetPermissionList(req.Permissions)
	if err := h.db.Create(&apiKey).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建密钥失败"})
		return
	}
	c.JSON(http.StatusCreated, apiKey)
}

// ListAPIRequests 查询审计记录
func (h *APIHandler) ListAPIRequests(c *gin.Context) {
	query := h.db.Order("created_at DESC").Limit(100)
	if reqType := c.Query("request_type"); reqType != "" {
		query = query.Where("request_type = ?", reqType)
	}

	var requests []models.APIRequest
	if err := query.Find(&requests).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询审计记录失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests, "total": len(requests)})
}

// RegisterAPIRoutes 注册对外API路由
func RegisterAPIRoutes(r *gin.Engine, h *APIHandler) {
	admin := r.Group("/api/keys")
	{
		admin.POST("", h.CreateAPIKey)
		admin.GET("/requests", h.ListAPIRequests)
	}

	v1 := r.Group("/api/v1")
	v1.Use(h.APIKeyAuth())
	{
		v1.POST("/getcode", h.GetCode)
		v1.GET("/wxids", h.GetAllWxids)
		v1.POST("/read", h.ReadArticle)
	}
}
