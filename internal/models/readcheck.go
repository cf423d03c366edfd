package models

import (
	"encoding/json"
	"math"
	"time"

	"gorm.io/gorm"

	"wxconsole/internal/errors"
)

// ReadCheckConfig 阅读过检配置
//
// 一个目标协议地址加一组轮换使用的微信ID。
type ReadCheckConfig struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      uint      `json:"user_id" gorm:"uniqueIndex:idx_read_check_user_url;not null"`
	ProtocolURL string    `json:"protocol_url" gorm:"size:500;uniqueIndex:idx_read_check_user_url;not null"`
	Wxids       string    `json:"-" gorm:"column:wxids;type:text;default:'[]'"` // JSON数组
	IsActive    bool      `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// 统计字段
	TotalChecks   int `json:"total_checks" gorm:"default:0"`
	SuccessChecks int `json:"success_checks" gorm:"default:0"`
	FailedChecks  int `json:"failed_checks" gorm:"default:0"`

	// 内存中的字段，不直接存储
	wxidList []string `gorm:"-"`
}

// TableName 指定表名
func (ReadCheckConfig) TableName() string {
	return "read_check_config"
}

// WxidList 获取微信ID列表
func (c *ReadCheckConfig) WxidList() []string {
	if c.wxidList == nil {
		c.deserializeWxids()
	}
	return c.wxidList
}

// SetWxidList 设置微信ID列表
func (c *ReadCheckConfig) SetWxidList(wxids []string) {
	if wxids == nil {
		wxids = []string{}
	}
	c.wxidList = wxids
}

// WxidCount 微信ID数量
func (c *ReadCheckConfig) WxidCount() int {
	return len(c.WxidList())
}

// SuccessRate 成功率百分比，保留两位小数
func (c *ReadCheckConfig) SuccessRate() float64 {
	if c.TotalChecks == 0 {
		return 0
	}
	rate := float64(c.SuccessChecks) / float64(c.TotalChecks) * 100
	return math.Round(rate*100) / 100
}

// IncrementCheckCount 增加检测次数并持久化计数字段
func (c *ReadCheckConfig) IncrementCheckCount(db *gorm.DB, success bool) error {
	c.TotalChecks++
	if success {
		c.SuccessChecks++
	} else {
		c.FailedChecks++
	}
	return db.Model(c).Select("total_checks", "success_checks", "failed_checks").
		Updates(map[string]interface{}{
			"total_checks":   c.TotalChecks,
			"success_checks": c.SuccessChecks,
			"failed_checks":  c.FailedChecks,
		}).Error
}

// BeforeSave GORM钩子：保存前序列化wxid列表
func (c *ReadCheckConfig) BeforeSave(tx *gorm.DB) error {
	if c.wxidList != nil {
		data, err := json.Marshal(c.wxidList)
		if err != nil {
			return errors.NewConsoleError(errors.ErrorTypeSystem, errors.ErrCodeSystemGeneric, "Failed to marshal wxid list").
				WithCause(err)
		}
		c.Wxids = string(data)
	} else if c.Wxids == "" {
		c.Wxids = "[]"
	}
	return nil
}

// AfterFind GORM钩子：查询后反序列化wxid列表
func (c *ReadCheckConfig) AfterFind(tx *gorm.DB) error {
	c.deserializeWxids()
	return nil
}

// deserializeWxids 解析存储的wxid列表，容忍坏数据
func (c *ReadCheckConfig) deserializeWxids() {
	c.wxidList = []string{}
	if c.Wxids == "" {
		return
	}
	var wxids []string
	if err := json.Unmarshal([]byte(c.Wxids), &wxids); err == nil {
		c.wxidList = wxids
	}
}

// ReadCheckLog 阅读过检日志，每个账号一次检测对应一行
type ReadCheckLog struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	ConfigID        uint      `json:"config_id" gorm:"index;not null"`
	URL             string    `json:"url" gorm:"size:500;not null"`
	Wxid            string    `json:"wxid" gorm:"size:100;not null"`
	ReadCountBefore *int      `json:"read_count_before"`
	ReadCountAfter  *int      `json:"read_count_after"`
	Increased       bool      `json:"increased" gorm:"default:false"`
	Success         bool      `json:"success" gorm:"default:true"`
	ErrorMessage    string    `json:"error_message" gorm:"type:text;default:''"`
	CreatedAt       time.Time `json:"created_at"`

	Config ReadCheckConfig `json:"-" gorm:"foreignKey:ConfigID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (ReadCheckLog) TableName() string {
	return "read_check_log"
}

// ReadCheckSessionStatus 检测会话状态
type ReadCheckSessionStatus string

const (
	ReadCheckStatusRunning   ReadCheckSessionStatus = "running"
	ReadCheckStatusCompleted ReadCheckSessionStatus = "completed"
	ReadCheckStatusFailed    ReadCheckSessionStatus = "failed"
)

// ReadCheckResult 检测结果分类
type ReadCheckResult string

const (
	ReadCheckResultIncreased ReadCheckResult = "increased"
	ReadCheckResultNoChange  ReadCheckResult = "no_change"
	ReadCheckResultError     ReadCheckResult = "error"
)

// ReadCheckSession 阅读链接检测会话
type ReadCheckSession struct {
	ID     uint                   `json:"id" gorm:"primaryKey"`
	UserID uint                   `json:"user_id" gorm:"index;not null"`
	URL    string                 `json:"url" gorm:"size:500;not null"`
	Status ReadCheckSessionStatus `json:"status" gorm:"size:20;default:running"`
	Result ReadCheckResult        `json:"result" gorm:"size:20;default:''"`

	// 统计信息
	TotalAccounts      int `json:"total_accounts" gorm:"default:0"`
	SuccessfulAccounts int `json:"successful_accounts" gorm:"default:0"`
	FailedAccounts     int `json:"failed_accounts" gorm:"default:0"`

	// 阅读量变化信息
	InitialReadCount *int `json:"initial_read_count"`
	FinalReadCount   *int `json:"final_read_count"`
	IncreasedCount   int  `json:"increased_count" gorm:"default:0"`

	StartedAt   time.Time  `json:"started_at" gorm:"autoCreateTime"`
	CompletedAt *time.Time `json:"completed_at"`

	ProcessLogs []ReadCheckProcessLog `json:"process_logs,omitempty" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (ReadCheckSession) TableName() string {
	return "read_check_session"
}

// Duration 检测持续时间，未完成时返回0
func (s *ReadCheckSession) Duration() time.Duration {
	if s.CompletedAt == nil {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt)
}

// ReadCheckLogType 检测流程日志类型
type ReadCheckLogType string

const (
	ReadCheckLogStart      ReadCheckLogType = "start"
	ReadCheckLogTargetURL  ReadCheckLogType = "target_url"
	ReadCheckLogProtocol   ReadCheckLogType = "protocol"
	ReadCheckLogAccount    ReadCheckLogType = "account"
	ReadCheckLogFirstRead  ReadCheckLogType = "first_read"
	ReadCheckLogSecondRead ReadCheckLogType = "second_read"
	ReadCheckLogReadChange ReadCheckLogType = "read_change"
	ReadCheckLogWarning    ReadCheckLogType = "warning"
	ReadCheckLogError      ReadCheckLogType = "error"
	ReadCheckLogComplete   ReadCheckLogType = "complete"
)

// ReadCheckProcessLog 检测流程日志
//
// 按创建时间升序构成一次检测的可回放时间线。
type ReadCheckProcessLog struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	SessionID uint             `json:"session_id" gorm:"index;not null"`
	LogType   ReadCheckLogType `json:"log_type" gorm:"size:20;not null"`
	Message   string           `json:"message" gorm:"type:text;not null"`

	// 账号相关信息
	Wxid        string `json:"wxid" gorm:"size:100;default:''"`
	ProtocolURL string `json:"protocol_url" gorm:"size:500;default:''"`

	// 阅读量信息
	ReadCount         *int `json:"read_count"`
	PreviousReadCount *int `json:"previous_read_count"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (ReadCheckProcessLog) TableName() string {
	return "read_check_process_log"
}

// Icon 日志类型对应的图标
func (l *ReadCheckProcessLog) Icon() string {
	icons := map[ReadCheckLogType]string{
		ReadCheckLogStart:      "🚀",
		ReadCheckLogTargetURL:  "🔗",
		ReadCheckLogProtocol:   "📡",
		ReadCheckLogAccount:    "👤",
		ReadCheckLogFirstRead:  "📊",
		ReadCheckLogSecondRead: "📊",
		ReadCheckLogReadChange: "🎉",
		ReadCheckLogWarning:    "⚠️",
		ReadCheckLogError:      "❌",
		ReadCheckLogComplete:   "✅",
	}
	if icon, ok := icons[l.LogType]; ok {
		return icon
	}
	return "📝"
}
