package wechatlogin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wxconsole/internal/errors"
	"wxconsole/internal/logger"
	"wxconsole/internal/models"
	"wxconsole/internal/protocol"
)

// SessionTTL 二维码会话有效期
const SessionTTL = 5 * time.Minute

// Service 扫码登录服务
//
// 管理二维码会话的创建、轮询和取消。过期是读取时的派生判断，
// Poll只记录协议侧状态，不会主动把会话改写为expired；调用方
// 必须先检查IsExpired()再信任非终止状态。
type Service struct {
	db      *gorm.DB
	timeout time.Duration
	logger  *logger.Logger
}

// NewService 创建扫码登录服务
func NewService(db *gorm.DB, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = protocol.DefaultTimeout
	}
	return &Service{
		db:      db,
		timeout: timeout,
		logger:  logger.NewLogger("wechatlogin-service"),
	}
}

// CreateSession 创建二维码登录会话
//
// 向协议服务请求二维码，本地以pending状态落库，有效期5分钟。
func (s *Service) CreateSession(ctx context.Context, userID uint, conn *models.Connection, sessionType models.QRSessionType) (*models.QRCodeSession, error) {
	client := protocol.NewClient(conn, s.timeout)

	session := &models.QRCodeSession{
		UserID:       userID,
		ConnectionID: conn.ID,
		SessionType:  sessionType,
		Status:       models.QRStatusPending,
		ExpiresAt:    time.Now().Add(SessionTTL),
	}

	if conn.ConnectionType.IsWechatxFamily() {
		protocolUUID, qrURL, err := client.GetQR(ctx)
		if err != nil {
			return nil, err
		}
		session.UUID = protocolUUID
		session.QRCodeURL = qrURL
	} else {
		// WeChatPadPro流程：先用管理密钥生成授权码，再换二维码
		authKey, err := client.GenAuthKey(ctx, 1, 30)
		if err != nil {
			return nil, err
		}
		qrData, protocolUUID, err := client.GetLoginQRCode(ctx, authKey)
		if err != nil {
			return nil, err
		}
		session.UUID = protocolUUID
		session.AuthKey = authKey
		session.QRCodeURL = qrData
	}

	// 协议侧uuid缺失时兜底生成，保证本地唯一约束
	if session.UUID == "" {
		session.UUID = uuid.New().String()
	}

	if err := s.db.Create(session).Error; err != nil {
		return nil, errors.ErrDatabaseQuery("failed to create qr session", err)
	}

	s.logger.Info("QR session created", logger.Fields{
		"uuid":          session.UUID,
		"session_type":  string(sessionType),
		"connection_id": conn.ID,
		"expires_at":    session.ExpiresAt,
	})
	return session, nil
}

// Poll 轮询协议服务并同步会话状态
//
// 返回更新后的会话。协议请求失败时保持会话原状并返回错误，
// 业务状态（失败/超时）记录到会话本身而非error。
func (s *Service) Poll(ctx context.Context, session *models.QRCodeSession) (*models.QRCodeSession, error) {
	if session.Status.IsTerminal() {
		return session, nil
	}

	var conn models.Connection
	if err := s.db.First(&conn, session.ConnectionID).Error; err != nil {
		return session, err
	}
	client := protocol.NewClient(&conn, s.timeout)

	var status *protocol.LoginStatus
	var err error
	if conn.ConnectionType.IsWechatxFamily() {
		status, err = client.CheckQR(ctx, session.UUID)
	} else {
		status, err = client.CheckLoginStatus(ctx, session.AuthKey, session.UUID)
	}
	if err != nil {
		return session, err
	}

	switch status.Status {
	case protocol.LoginStatusWaiting:
		// 维持pending，无需写库
	case protocol.LoginStatusScanned:
		if err := session.UpdateStatus(s.db, models.QRStatusScanned, "", ""); err != nil {
			return session, err
		}
	case protocol.LoginStatusSuccess:
		if err := session.UpdateStatus(s.db, models.QRStatusSuccess, status.Wxid, status.Nickname); err != nil {
			return session, err
		}
		s.recordLoginSuccess(session, &conn, status)
	case protocol.LoginStatusFailed:
		if err := session.UpdateStatus(s.db, models.QRStatusFailed, "", ""); err != nil {
			return session, err
		}
		s.recordLoginFailure(session, &conn, "协议服务返回登录失败")
	case protocol.LoginStatusTimeout:
		if err := session.UpdateStatus(s.db, models.QRStatusExpired, "", ""); err != nil {
			return session, err
		}
		s.recordLoginFailure(session, &conn, "协议服务返回登录超时")
	}

	return session, nil
}

// Cancel 取消会话
func (s *Service) Cancel(session *models.QRCodeSession) error {
	return session.UpdateStatus(s.db, models.QRStatusCancelled, "", "")
}

// FindByUUID 按uuid查找会话
func (s *Service) FindByUUID(sessionUUID string) (*models.QRCodeSession, error) {
	var session models.QRCodeSession
	if err := s.db.Where("uuid = ?", sessionUUID).First(&session).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrResourceNotFound("QRCodeSession", sessionUUID)
		}
		return nil, err
	}
	return &session, nil
}

// recordLoginSuccess 登录成功后落登录记录并登记授权码
func (s *Service) recordLoginSuccess(session *models.QRCodeSession, conn *models.Connection, status *protocol.LoginStatus) {
	record := &models.LoginRecord{
		UserID:       session.UserID,
		ConnectionID: conn.ID,
		LoginType:    models.LoginType(session.SessionType),
		Wxid:         status.Wxid,
		Nickname:     status.Nickname,
		Success:      true,
	}
	if err := s.db.Create(record).Error; err != nil {
		s.logger.Error("Failed to write login record", logger.Fields{
			"uuid":  session.UUID,
			"error": err.Error(),
		})
	}

	// 以(connection, code)为键登记或更新授权码
	online := true
	now := time.Now()
	authCode := models.AuthCode{
		ConnectionID: conn.ID,
		Code:         status.Wxid,
	}
	if err := s.db.Where(models.AuthCode{ConnectionID: conn.ID, Code: status.Wxid}).
		FirstOrCreate(&authCode).Error; err != nil {
		s.logger.Error("Failed to register auth code", logger.Fields{
			"wxid":  status.Wxid,
			"error": err.Error(),
		})
		return
	}
	authCode.Nickname = status.Nickname
	authCode.AvatarURL = status.Avatar
	authCode.IsOnline = &online
	authCode.LastStatusCheckTime = &now
	s.db.Save(&authCode)

	s.db.Create(&models.ConnectionLog{
		ConnectionID: conn.ID,
		LogType:      models.ConnectionLogTypeLogin,
		Message:      fmt.Sprintf("扫码登录成功: %s", status.Wxid),
		Success:      true,
	})
}

// recordLoginFailure 登录失败后落登录记录
func (s *Service) recordLoginFailure(session *models.QRCodeSession, conn *models.Connection, reason string) {
	record := &models.LoginRecord{
		UserID:       session.UserID,
		ConnectionID: conn.ID,
		LoginType:    models.LoginType(session.SessionType),
		Wxid:         session.Wxid,
		Success:      false,
		ErrorMessage: reason,
	}
	if err := s.db.Create(record).Error; err != nil {
		s.logger.Error("Failed to write login record", logger.Fields{
			"uuid":  session.UUID,
			"error": err.Error(),
		})
	}
}
