package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"wxconsole/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Connection{},
		&models.AuthCode{},
		&models.ConnectionLog{},
		&models.RefreshLog{},
		&models.ProtocolConfig{},
	))
	return db
}

func TestService_TestAndLog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	db := setupTestDB(t)
	conn := models.Connection{
		UserID:         1,
		Name:           "测试连接",
		URL:            server.URL,
		ConnectionType: models.ConnectionTypeWeCharPadPro,
		IsActive:       true,
	}
	require.NoError(t, db.Create(&conn).Error)

	svc := NewService(db, 0)
	assert.True(t, svc.TestAndLog(context.Background(), &conn))

	// 每次探测追加一条query日志
	var logs []models.ConnectionLog
	require.NoError(t, db.Where("connection_id = ?", conn.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ConnectionLogTypeQuery, logs[0].LogType)
	assert.True(t, logs[0].Success)
	assert.Contains(t, logs[0].Message, "连接测试成功")
}

func TestService_TestAndLog_Unreachable(t *testing.T) {
	db := setupTestDB(t)
	conn := models.Connection{
		UserID:         1,
		Name:           "死连接",
		URL:            "http://127.0.0.1:1",
		ConnectionType: models.ConnectionTypeWeCharPadPro,
		IsActive:       true,
	}
	require.NoError(t, db.Create(&conn).Error)

	svc := NewService(db, 0)
	assert.False(t, svc.TestAndLog(context.Background(), &conn))

	var log models.ConnectionLog
	require.NoError(t, db.Where("connection_id = ?", conn.ID).First(&log).Error)
	assert.False(t, log.Success)
	assert.Contains(t, log.Message, "连接测试失败")
}

func TestService_QueryAuthCodeStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/login/GetLoginStatus", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Code": 200, "Data": {"loginState": 1}}`))
	}))
	defer server.Close()

	db := setupTestDB(t)
	conn := models.Connection{
		UserID:         1,
		Name:           "测试连接",
		URL:            server.URL,
		ConnectionType: models.ConnectionTypeWeCharPadPro,
		IsActive:       true,
	}
	require.NoError(t, db.Create(&conn).Error)
	authCode := models.AuthCode{ConnectionID: conn.ID, Code: "wxid_test"}
	require.NoError(t, db.Create(&authCode).Error)

	svc := NewService(db, 0)
	online, err := svc.QueryAuthCodeStatus(context.Background(), &authCode)
	require.NoError(t, err)
	assert.True(t, online)

	var reloaded models.AuthCode
	require.NoError(t, db.First(&reloaded, authCode.ID).Error)
	require.NotNil(t, reloaded.IsOnline)
	assert.True(t, *reloaded.IsOnline)
	require.NotNil(t, reloaded.LastQuerySuccess)
	assert.True(t, *reloaded.LastQuerySuccess)
	assert.NotNil(t, reloaded.LastQueryTime)
	assert.NotNil(t, reloaded.LastStatusCheckTime)
}

func TestService_RefreshAll(t *testing.T) {
	padServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer padServer.Close()

	db := setupTestDB(t)
	connections := []models.Connection{
		{UserID: 1, Name: "pad", URL: padServer.URL, ConnectionType: models.ConnectionTypeWeCharPadPro, IsActive: true},
		{UserID: 1, Name: "wx", URL: padServer.URL, ConnectionType: models.ConnectionTypeWechatx, IsActive: true},
		{UserID: 1, Name: "disabled", URL: padServer.URL, ConnectionType: models.ConnectionTypeWechatx, IsActive: false},
		{UserID: 1, Name: "dead", URL: "http://127.0.0.1:1", ConnectionType: models.ConnectionTypeWechatx861, IsActive: true},
	}
	for i := range connections {
		require.NoError(t, db.Create(&connections[i]).Error)
	}

	svc := NewService(db, 0)

	// 仅刷新wechatx系列：命中wx和dead两条，禁用的不算
	refreshLog, err := svc.RefreshAll(context.Background(), models.RefreshTypeManual, true)
	require.NoError(t, err)
	assert.Equal(t, 2, refreshLog.ConnectionCount)
	assert.Equal(t, 1, refreshLog.SuccessCount)
	assert.Equal(t, 1, refreshLog.FailedCount)

	// 全量刷新：三条启用的连接都测
	refreshLog, err = svc.RefreshAll(context.Background(), models.RefreshTypeAuto, false)
	require.NoError(t, err)
	assert.Equal(t, 3, refreshLog.ConnectionCount)
	assert.Equal(t, 2, refreshLog.SuccessCount)

	var count int64
	require.NoError(t, db.Model(&models.RefreshLog{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
