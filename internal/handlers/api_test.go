package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"wxconsole/internal/models"
)

func setupAPIRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	r := gin.New()
	RegisterAPIRoutes(r, NewAPIHandler(db, 0))
	return r, db
}

func createTestKey(t *testing.T, db *gorm.DB, permissions []string) models.APIKey {
	key := models.APIKey{UserID: 1, Name: "测试密钥", Key: models.GenerateKey(), IsActive: true}
	key.SetPermissionList(permissions)
	require.NoError(t, db.Create(&key).Error)
	return key
}

func TestAPIHandler_AuthRequired(t *testing.T) {
	r, _ := setupAPIRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wxids", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/wxids", nil)
	req.Header.Set("Authorization", "Bearer nonexistent-key")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPIHandler_InactiveKeyRejected(t *testing.T) {
	r, db := setupAPIRouter(t)

	key := models.APIKey{UserID: 1, Name: "停用密钥", Key: models.GenerateKey(), IsActive: false}
	key.SetPermissionList([]string{"all"})
	require.NoError(t, db.Create(&key).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wxids", nil)
	req.Header.Set("X-API-Key", key.Key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPIHandler_PermissionDenied(t *testing.T) {
	r, db := setupAPIRouter(t)
	key := createTestKey(t, db, []string{"get_code"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wxids", nil)
	req.Header.Set("X-API-Key", key.Key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAPIHandler_GetAllWxids(t *testing.T) {
	r, db := setupAPIRouter(t)
	key := createTestKey(t, db, []string{"all"})

	conn := models.Connection{UserID: 1, Name: "c1", URL: "http://127.0.0.1:8059", ConnectionType: models.ConnectionTypeWechatx, IsActive: true}
	require.NoError(t, db.Create(&conn).Error)

	online, offline := true, false
	codes := []models.AuthCode{
		{ConnectionID: conn.ID, Code: "wxid_online", IsOnline: &online},
		{ConnectionID: conn.ID, Code: "wxid_offline", IsOnline: &offline},
		{ConnectionID: conn.ID, Code: "wxid_unknown"},
	}
	for i := range codes {
		require.NoError(t, db.Create(&codes[i]).Error)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wxids", nil)
	req.Header.Set("Authorization", "Bearer "+key.Key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Wxids []string `json:"wxids"`
		Total int      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"wxid_online"}, resp.Wxids)
	assert.Equal(t, 1, resp.Total)

	// 每次调用落一条审计记录，密钥的最近使用时间被更新
	var audit models.APIRequest
	require.NoError(t, db.Where("request_type = ?", models.APIRequestGetAllWxids).First(&audit).Error)
	assert.True(t, audit.Success)

	var reloadedKey models.APIKey
	require.NoError(t, db.First(&reloadedKey, key.ID).Error)
	assert.NotNil(t, reloadedKey.LastUsedAt)
}

func TestAPIHandler_GetCode_NotFoundAudited(t *testing.T) {
	r, db := setupAPIRouter(t)
	key := createTestKey(t, db, []string{"get_code"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/getcode", strings.NewReader(`{"wxid": "wxid_missing"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", key.Key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 失败的调用同样审计
	var audit models.APIRequest
	require.NoError(t, db.Where("request_type = ?", models.APIRequestGetCode).First(&audit).Error)
	assert.False(t, audit.Success)
	assert.Equal(t, "wxid_missing", audit.Wxid)
}

func TestAPIHandler_CreateAPIKey(t *testing.T) {
	r, db := setupAPIRouter(t)

	body := `{"user_id": 1, "name": "新密钥", "permissions": ["get_code"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/keys", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var key models.APIKey
	require.NoError(t, db.Where("name = ?", "新密钥").First(&key).Error)
	assert.Len(t, key.Key, 64)
	assert.True(t, key.HasPermission("get_code"))
	assert.False(t, key.HasPermission("read_article"))
}
