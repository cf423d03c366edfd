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
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"wxconsole/internal/database"
	"wxconsole/internal/models"
	"wxconsole/internal/services/connection"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func setupConnectionRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	r := gin.New()
	RegisterConnectionRoutes(r, NewConnectionHandler(db, connection.NewService(db, 0)))
	return r, db
}

func TestConnectionHandler_Create(t *testing.T) {
	r, db := setupConnectionRouter(t)

	body := `{"user_id": 1, "name": "测试连接", "url": "http://127.0.0.1:8059", "connection_type": "wechatx"}`
	req := httptest.NewRequest(http.MethodPost, "/api/connections", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var conn models.Connection
	require.NoError(t, db.Where("name = ?", "测试连接").First(&conn).Error)
	assert.Equal(t, models.ConnectionTypeWechatx, conn.ConnectionType)
	assert.True(t, conn.IsActive)
}

func TestConnectionHandler_Create_InvalidType(t *testing.T) {
	r, _ := setupConnectionRouter(t)

	body := `{"user_id": 1, "name": "坏连接", "url": "http://127.0.0.1:8059", "connection_type": "itchat"}`
	req := httptest.NewRequest(http.MethodPost, "/api/connections", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConnectionHandler_Create_DefaultType(t *testing.T) {
	r, db := setupConnectionRouter(t)

	// 未指定类型时默认WeCharPadPro
	body := `{"user_id": 1, "name": "默认类型", "url": "http://127.0.0.1:8059"}`
	req := httptest.NewRequest(http.MethodPost, "/api/connections", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var conn models.Connection
	require.NoError(t, db.Where("name = ?", "默认类型").First(&conn).Error)
	assert.Equal(t, models.ConnectionTypeWeCharPadPro, conn.ConnectionType)
}

func TestConnectionHandler_AuthCodes(t *testing.T) {
	r, db := setupConnectionRouter(t)

	conn := models.Connection{UserID: 1, Name: "c1", URL: "http://127.0.0.1:8059", ConnectionType: models.ConnectionTypeWechatx, IsActive: true}
	require.NoError(t, db.Create(&conn).Error)

	body := `{"code": "wxid_abc", "remarks": ["主号", "备用"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/connections/1/codes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/connections/1/codes", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		AuthCodes []struct {
			RemarkList    []string `json:"remark_list"`
			RemarkDisplay string   `json:"remark_display"`
			StatusDisplay string   `json:"status_display"`
		} `json:"auth_codes"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, []string{"主号", "备用"}, resp.AuthCodes[0].RemarkList)
	assert.Equal(t, "主号, 备用", resp.AuthCodes[0].RemarkDisplay)
	assert.Equal(t, "未知", resp.AuthCodes[0].StatusDisplay)
}

func TestConnectionHandler_NotFound(t *testing.T) {
	r, _ := setupConnectionRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/connections/999/test", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
