package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"wxconsole/internal/config"
	"wxconsole/internal/logger"
	"wxconsole/internal/models"
	"wxconsole/internal/protocol"
	"wxconsole/internal/services/connection"
)

// 日志清理固定每天运行一次
const cleanupInterval = 24 * time.Hour

// 自动登录间隔边界（分钟）
const (
	minAutoLoginInterval = 5
	maxAutoLoginInterval = 1440
)

// Scheduler 后台定时任务调度器
//
// 启动时读取ProtocolConfig单例决定启用哪些任务；每个任务独立计时，
// 每个tick重新读取配置。持有自己的context，Stop()取消全部任务并
// 等待退出，进程关闭不再依赖强杀。
type Scheduler struct {
	db          *gorm.DB
	protocolCfg config.ProtocolConfig
	connService *connection.Service

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *logger.Logger
}

// New 创建调度器
func New(db *gorm.DB, protocolCfg config.ProtocolConfig) *Scheduler {
	return &Scheduler{
		db:          db,
		protocolCfg: protocolCfg,
		connService: connection.NewService(db, protocolCfg.RequestTimeout),
		logger:      logger.NewLogger("scheduler"),
	}
}

// Start 按配置注册后台任务
//
// 任何启动失败只记录日志，绝不中断应用启动。
func (s *Scheduler) Start(parent context.Context) {
	s.ctx, s.cancel = context.WithCancel(parent)

	cfg, err := models.GetProtocolConfig(s.db, s.protocolCfg.DefaultRefreshInterval, s.protocolCfg.DefaultRefreshWechatxOnly)
	if err != nil {
		s.logger.Error("Failed to load protocol config, scheduled jobs not started", logger.Fields{
			"error": err.Error(),
		})
		return
	}

	if cfg.AutoRefreshEnabled {
		s.startJob("auto-refresh", time.Duration(s.clampRefreshInterval(cfg.RefreshInterval))*time.Minute, s.runRefresh)
		s.logger.Info("Auto refresh job started", logger.Fields{
			"interval_minutes": cfg.RefreshInterval,
			"wechatx_only":     cfg.RefreshWechatxOnly,
		})
	}

	if cfg.AutoLoginEnabled {
		s.startJob("auto-login", time.Duration(clampAutoLoginInterval(cfg.AutoLoginInterval))*time.Minute, s.runAutoLogin)
		s.logger.Info("Auto login job started", logger.Fields{
			"interval_minutes": cfg.AutoLoginInterval,
		})
	}

	// 日志清理任务无条件启动
	s.startJob("log-cleanup", cleanupInterval, s.runLogCleanup)
	s.logger.Info("Log cleanup job started", logger.Fields{
		"retention_days": cfg.LogRetentionDays,
	})
}

// Stop 取消全部任务并等待退出
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// startJob 注册一个周期任务
func (s *Scheduler) startJob(name string, interval time.Duration, run func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				s.logger.Debug("Job cancelled", logger.Fields{"job": name})
				return
			case <-ticker.C:
				run(s.ctx)
			}
		}
	}()
}

// clampRefreshInterval 把刷新间隔约束在配置边界内
func (s *Scheduler) clampRefreshInterval(minutes int) int {
	if minutes < s.protocolCfg.MinRefreshInterval {
		return s.protocolCfg.MinRefreshInterval
	}
	if minutes > s.protocolCfg.MaxRefreshInterval {
		return s.protocolCfg.MaxRefreshInterval
	}
	return minutes
}

// clampAutoLoginInterval 把自动登录间隔约束在5–1440分钟内
func clampAutoLoginInterval(minutes int) int {
	if minutes < minAutoLoginInterval {
		return minAutoLoginInterval
	}
	if minutes > maxAutoLoginInterval {
		return maxAutoLoginInterval
	}
	return minutes
}

// runRefresh 自动刷新一轮连接
func (s *Scheduler) runRefresh(ctx context.Context) {
	cfg, err := models.GetProtocolConfig(s.db, s.protocolCfg.DefaultRefreshInterval, s.protocolCfg.DefaultRefreshWechatxOnly)
	if err != nil {
		s.logger.Error("Refresh tick skipped: cannot load protocol config", logger.Fields{
			"error": err.Error(),
		})
		return
	}
	if !cfg.AutoRefreshEnabled {
		return
	}

	if _, err := s.connService.RefreshAll(ctx, models.RefreshTypeAuto, cfg.RefreshWechatxOnly); err != nil {
		s.logger.Error("Auto refresh run failed", logger.Fields{
			"error": err.Error(),
		})
	}
}

// runAutoLogin 对离线授权码尝试免扫码重连
//
// wechatx系列需要扫码，记为skipped；每次尝试追加一条AutoLoginLog。
func (s *Scheduler) runAutoLogin(ctx context.Context) {
	cfg, err := models.GetProtocolConfig(s.db, s.protocolCfg.DefaultRefreshInterval, s.protocolCfg.DefaultRefreshWechatxOnly)
	if err != nil || !cfg.AutoLoginEnabled {
		return
	}

	var authCodes []models.AuthCode
	if err := s.db.Preload("Connection").
		Where("is_online IS NULL OR is_online = ?", false).
		Find(&authCodes).Error; err != nil {
		s.logger.Error("Auto login tick skipped: query failed", logger.Fields{
			"error": err.Error(),
		})
		return
	}

	for i := range authCodes {
		if !authCodes[i].Connection.IsActive {
			continue
		}
		s.attemptAutoLogin(ctx, &authCodes[i])
	}
}

// attemptAutoLogin 对单个授权码执行一次自动登录尝试
func (s *Scheduler) attemptAutoLogin(ctx context.Context, authCode *models.AuthCode) {
	start := time.Now()
	entry := &models.AutoLoginLog{
		LoginType:      models.AutoLoginTypeScheduled,
		Wxid:           authCode.Code,
		ConnectionName: authCode.Connection.Name,
	}

	if authCode.Connection.ConnectionType.IsWechatxFamily() {
		entry.Result = models.AutoLoginResultSkipped
		entry.Message = "wechatx连接需要扫码登录，已跳过"
	} else {
		client := protocol.NewClient(&authCode.Connection, s.protocolCfg.RequestTimeout)
		success, raw, err := client.TwiceAutoAuth(ctx, authCode.Code)
		entry.ResponseData = raw
		switch {
		case err != nil:
			entry.Result = models.AutoLoginResultError
			entry.Message = err.Error()
		case success:
			entry.Result = models.AutoLoginResultSuccess
			entry.Message = "免扫码重连成功"
			online := true
			now := time.Now()
			authCode.IsOnline = &online
			authCode.LastStatusCheckTime = &now
			s.db.Save(authCode)
		default:
			entry.Result = models.AutoLoginResultFailed
			entry.Message = "协议服务拒绝重连"
		}
	}

	duration := time.Since(start).Seconds()
	entry.Duration = &duration
	if err := s.db.Create(entry).Error; err != nil {
		s.logger.Error("Failed to write auto login log", logger.Fields{
			"wxid":  authCode.Code,
			"error": err.Error(),
		})
	}
}

// runLogCleanup 删除超过保留期的日志行
func (s *Scheduler) runLogCleanup(ctx context.Context) {
	cfg, err := models.GetProtocolConfig(s.db, s.protocolCfg.DefaultRefreshInterval, s.protocolCfg.DefaultRefreshWechatxOnly)
	if err != nil {
		return
	}
	CleanupLogs(s.db, cfg.LogRetentionDays, s.logger)
}

// CleanupLogs 删除cutoff之前的全部审计日志
func CleanupLogs(db *gorm.DB, retentionDays int, log *logger.Logger) {
	if retentionDays <= 0 {
		retentionDays = 14
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	targets := []struct {
		name  string
		model interface{}
	}{
		{"connection_log", &models.ConnectionLog{}},
		{"protocol_refresh_log", &models.RefreshLog{}},
		{"protocol_auto_login_log", &models.AutoLoginLog{}},
		{"read_check_log", &models.ReadCheckLog{}},
		{"read_check_process_log", &models.ReadCheckProcessLog{}},
		{"login_log", &models.LoginLog{}},
		{"wechat_login_record", &models.LoginRecord{}},
	}

	var total int64
	for _, t := range targets {
		result := db.Where("created_at < ?", cutoff).Delete(t.model)
		if result.Error != nil {
			log.Error("Log cleanup failed", logger.Fields{
				"table": t.name,
				"error": result.Error.Error(),
			})
			continue
		}
		total += result.RowsAffected
	}

	log.Info("Log cleanup completed", logger.Fields{
		"retention_days": retentionDays,
		"deleted_rows":   total,
		"cutoff":         fmt.Sprintf("%v", cutoff),
	})
}
