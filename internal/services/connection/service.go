package connection

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"wxconsole/internal/logger"
	"wxconsole/internal/models"
	"wxconsole/internal/protocol"
)

// Service 连接管理服务
//
// 负责连接探测、授权码状态查询和批量刷新，所有外部失败都落为
// 日志行或布尔结果，不向调用方抛出。
type Service struct {
	db      *gorm.DB
	timeout time.Duration
	logger  *logger.Logger
}

// NewService 创建连接管理服务
func NewService(db *gorm.DB, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = protocol.DefaultTimeout
	}
	return &Service{
		db:      db,
		timeout: timeout,
		logger:  logger.NewLogger("connection-service"),
	}
}

// TestAndLog 测试连接并追加一条查询日志
func (s *Service) TestAndLog(ctx context.Context, conn *models.Connection) bool {
	client := protocol.NewClient(conn, s.timeout)
	ok := client.TestConnection(ctx)

	message := fmt.Sprintf("连接测试成功: %s", conn.DisplayName())
	if !ok {
		message = fmt.Sprintf("连接测试失败: %s", conn.DisplayName())
	}

	log := &models.ConnectionLog{
		ConnectionID: conn.ID,
		LogType:      models.ConnectionLogTypeQuery,
		Message:      message,
		Success:      ok,
	}
	if err := s.db.Create(log).Error; err != nil {
		s.logger.Error("Failed to write connection log", logger.Fields{
			"connection_id": conn.ID,
			"error":         err.Error(),
		})
	}

	s.logger.Info("Connection tested", logger.Fields{
		"connection_id":   conn.ID,
		"connection_type": string(conn.ConnectionType),
		"success":         ok,
	})
	return ok
}

// QueryAuthCodeStatus 查询单个授权码的在线状态并更新记录
func (s *Service) QueryAuthCodeStatus(ctx context.Context, authCode *models.AuthCode) (bool, error) {
	var conn models.Connection
	if err := s.db.First(&conn, authCode.ConnectionID).Error; err != nil {
		return false, err
	}

	client := protocol.NewClient(&conn, s.timeout)
	now := time.Now()

	online, err := client.GetLoginStatus(ctx, authCode.Code)
	querySuccess := err == nil

	authCode.LastQuerySuccess = &querySuccess
	authCode.LastQueryTime = &now
	authCode.LastStatusCheckTime = &now
	if querySuccess {
		authCode.IsOnline = &online
	}
	if dbErr := s.db.Save(authCode).Error; dbErr != nil {
		return false, dbErr
	}

	message := fmt.Sprintf("状态查询: %s 在线=%v", authCode.Code, online)
	if err != nil {
		message = fmt.Sprintf("状态查询失败: %s - %v", authCode.Code, err)
	}
	s.db.Create(&models.ConnectionLog{
		ConnectionID: conn.ID,
		LogType:      models.ConnectionLogTypeQuery,
		Message:      message,
		Success:      querySuccess,
	})

	return online, err
}

// RefreshAll 刷新全部启用的连接
//
// wechatxOnly为true时仅刷新wechatx系列连接。每次运行追加一条
// RefreshLog汇总行，并更新ProtocolConfig的上次刷新时间。
func (s *Service) RefreshAll(ctx context.Context, refreshType models.RefreshType, wechatxOnly bool) (*models.RefreshLog, error) {
	query := s.db.Where("is_active = ?", true)
	if wechatxOnly {
		query = query.Where("connection_type IN ?", []models.ConnectionType{
			models.ConnectionTypeWechatx,
			models.ConnectionTypeWechatx861,
		})
	}

	var connections []models.Connection
	if err := query.Find(&connections).Error; err != nil {
		return nil, err
	}

	refreshLog := &models.RefreshLog{
		RefreshType:     refreshType,
		ConnectionCount: len(connections),
	}

	for i := range connections {
		if s.TestAndLog(ctx, &connections[i]) {
			refreshLog.SuccessCount++
		} else {
			refreshLog.FailedCount++
		}
	}

	if err := s.db.Create(refreshLog).Error; err != nil {
		return nil, err
	}

	// 更新单例配置的上次刷新时间
	now := time.Now()
	s.db.Model(&models.ProtocolConfig{}).Where("id = ?", 1).
		Update("last_refresh_time", &now)

	s.logger.Info("Refresh run completed", logger.Fields{
		"refresh_type": string(refreshType),
		"attempted":    refreshLog.ConnectionCount,
		"succeeded":    refreshLog.SuccessCount,
		"failed":       refreshLog.FailedCount,
		"wechatx_only": wechatxOnly,
	})

	return refreshLog, nil
}
