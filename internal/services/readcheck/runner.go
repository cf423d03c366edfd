package readcheck

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"wxconsole/internal/logger"
	"wxconsole/internal/models"
	"wxconsole/internal/protocol"
)

// Runner 阅读过检执行器
//
// 一次运行：记录初始阅读量，轮换配置的微信ID逐个发起阅读，
// 再次记录阅读量，按变化分类结果。每个步骤追加一条流程日志，
// 构成可回放的时间线。
type Runner struct {
	db      *gorm.DB
	timeout time.Duration
	logger  *logger.Logger
}

// NewRunner 创建执行器
func NewRunner(db *gorm.DB, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = protocol.DefaultTimeout
	}
	return &Runner{
		db:      db,
		timeout: timeout,
		logger:  logger.NewLogger("readcheck-runner"),
	}
}

// Run 执行一次检测
//
// 外部失败不向调用方抛出：协议错误降级为warning/error日志行，
// 会话以completed或failed终结，completed_at只在终结时设置一次。
func (r *Runner) Run(ctx context.Context, config *models.ReadCheckConfig, articleURL string) (*models.ReadCheckSession, error) {
	wxids := config.WxidList()

	session := &models.ReadCheckSession{
		UserID:        config.UserID,
		URL:           articleURL,
		Status:        models.ReadCheckStatusRunning,
		TotalAccounts: len(wxids),
	}
	if err := r.db.Create(session).Error; err != nil {
		return nil, err
	}

	r.appendLog(session, models.ReadCheckLogStart, "开始阅读检测", "", nil, nil)
	r.appendLog(session, models.ReadCheckLogTargetURL, fmt.Sprintf("目标文章: %s", articleURL), "", nil, nil)
	r.appendEntry(&models.ReadCheckProcessLog{
		SessionID:   session.ID,
		LogType:     models.ReadCheckLogProtocol,
		Message:     fmt.Sprintf("使用协议: %s", config.ProtocolURL),
		ProtocolURL: config.ProtocolURL,
	})

	if len(wxids) == 0 {
		r.appendLog(session, models.ReadCheckLogError, "未配置可用的微信ID", "", nil, nil)
		r.finish(session, config, models.ReadCheckStatusFailed, models.ReadCheckResultError)
		return session, nil
	}

	client := protocol.NewClientForURL(config.ProtocolURL, models.ConnectionTypeWechatx, "", r.timeout)

	// 第一次阅读量观测
	var initialCount *int
	if count, err := client.GetReadCount(ctx, articleURL, wxids[0]); err == nil {
		initialCount = &count
		session.InitialReadCount = &count
		r.appendLog(session, models.ReadCheckLogFirstRead,
			fmt.Sprintf("第一次阅读量: %d", count), wxids[0], &count, nil)
	} else {
		r.appendLog(session, models.ReadCheckLogWarning,
			fmt.Sprintf("获取初始阅读量失败: %v", err), wxids[0], nil, nil)
	}

	// 轮换账号发起阅读
	checkLogs := make([]*models.ReadCheckLog, 0, len(wxids))
	for _, wxid := range wxids {
		r.appendLog(session, models.ReadCheckLogAccount,
			fmt.Sprintf("检测账号: %s", wxid), wxid, nil, nil)

		checkLog := &models.ReadCheckLog{
			ConfigID:        config.ID,
			URL:             articleURL,
			Wxid:            wxid,
			ReadCountBefore: initialCount,
		}

		if err := client.ReadArticle(ctx, articleURL, wxid); err != nil {
			session.FailedAccounts++
			checkLog.Success = false
			checkLog.ErrorMessage = err.Error()
			r.appendLog(session, models.ReadCheckLogWarning,
				fmt.Sprintf("账号 %s 阅读失败: %v", wxid, err), wxid, nil, nil)
		} else {
			session.SuccessfulAccounts++
			checkLog.Success = true
		}
		r.db.Create(checkLog)
		checkLogs = append(checkLogs, checkLog)
	}

	// 第二次阅读量观测
	var finalCount *int
	if count, err := client.GetReadCount(ctx, articleURL, wxids[0]); err == nil {
		finalCount = &count
		session.FinalReadCount = &count
		r.appendLog(session, models.ReadCheckLogSecondRead,
			fmt.Sprintf("第二次阅读量: %d", count), wxids[0], &count, initialCount)
	} else {
		r.appendLog(session, models.ReadCheckLogWarning,
			fmt.Sprintf("获取最终阅读量失败: %v", err), wxids[0], nil, nil)
	}

	// 回填每个账号检测行的第二次观测
	if finalCount != nil {
		increased := initialCount != nil && *finalCount > *initialCount
		for _, checkLog := range checkLogs {
			checkLog.ReadCountAfter = finalCount
			checkLog.Increased = increased
			if err := r.db.Model(checkLog).Updates(map[string]interface{}{
				"read_count_after": *finalCount,
				"increased":        increased,
			}).Error; err != nil {
				r.logger.Error("Failed to backfill check log", logger.Fields{
					"config_id": config.ID,
					"wxid":      checkLog.Wxid,
					"error":     err.Error(),
				})
			}
		}
	}

	// 结果分类
	var status models.ReadCheckSessionStatus
	var result models.ReadCheckResult
	switch {
	case initialCount == nil || finalCount == nil:
		status = models.ReadCheckStatusFailed
		result = models.ReadCheckResultError
		r.appendLog(session, models.ReadCheckLogError, "阅读量观测不完整，无法判定", "", nil, nil)
	case *finalCount > *initialCount:
		status = models.ReadCheckStatusCompleted
		result = models.ReadCheckResultIncreased
		session.IncreasedCount = *finalCount - *initialCount
		r.appendLog(session, models.ReadCheckLogReadChange,
			fmt.Sprintf("发现阅读量变化: %d -> %d", *initialCount, *finalCount), "", finalCount, initialCount)
	default:
		status = models.ReadCheckStatusCompleted
		result = models.ReadCheckResultNoChange
		r.appendLog(session, models.ReadCheckLogWarning, "未发现阅读量变化", "", finalCount, initialCount)
	}

	r.finish(session, config, status, result)
	return session, nil
}

// finish 终结会话：写状态与结果，completed_at只设置一次
func (r *Runner) finish(session *models.ReadCheckSession, config *models.ReadCheckConfig, status models.ReadCheckSessionStatus, result models.ReadCheckResult) {
	session.Status = status
	session.Result = result
	if session.CompletedAt == nil {
		now := time.Now()
		session.CompletedAt = &now
	}
	if err := r.db.Save(session).Error; err != nil {
		r.logger.Error("Failed to finalize read check session", logger.Fields{
			"session_id": session.ID,
			"error":      err.Error(),
		})
	}

	r.appendLog(session, models.ReadCheckLogComplete,
		fmt.Sprintf("检测完成: %s", result), "", nil, nil)

	success := result == models.ReadCheckResultIncreased
	if err := config.IncrementCheckCount(r.db, success); err != nil {
		r.logger.Error("Failed to update check counters", logger.Fields{
			"config_id": config.ID,
			"error":     err.Error(),
		})
	}

	r.logger.Info("Read check finished", logger.Fields{
		"session_id": session.ID,
		"status":     string(status),
		"result":     string(result),
		"succeeded":  session.SuccessfulAccounts,
		"failed":     session.FailedAccounts,
	})
}

// appendLog 追加一条流程日志
func (r *Runner) appendLog(session *models.ReadCheckSession, logType models.ReadCheckLogType, message, wxid string, readCount, previous *int) {
	r.appendEntry(&models.ReadCheckProcessLog{
		SessionID:         session.ID,
		LogType:           logType,
		Message:           message,
		Wxid:              wxid,
		ReadCount:         readCount,
		PreviousReadCount: previous,
	})
}

func (r *Runner) appendEntry(entry *models.ReadCheckProcessLog) {
	if err := r.db.Create(entry).Error; err != nil {
		r.logger.Error("Failed to append process log", logger.Fields{
			"session_id": entry.SessionID,
			"log_type":   string(entry.LogType),
			"error":      err.Error(),
		})
	}
}
