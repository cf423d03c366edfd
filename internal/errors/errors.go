package errors

import (
	"fmt"
	"time"
)

// ErrorType 错误类型枚举
type ErrorType string

const (
	// 系统级错误
	ErrorTypeSystem   ErrorType = "SYSTEM"
	ErrorTypeDatabase ErrorType = "DATABASE"
	ErrorTypeNetwork  ErrorType = "NETWORK"
	ErrorTypeConfig   ErrorType = "CONFIG"

	// 业务级错误
	ErrorTypeBusiness   ErrorType = "BUSINESS"
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeAuth       ErrorType = "AUTH"

	// 集成错误
	ErrorTypeProtocol  ErrorType = "PROTOCOL"
	ErrorTypeWebSocket ErrorType = "WEBSOCKET"
)

// ErrorCode 错误码
type ErrorCode string

const (
	// 系统错误码 (E1xxx)
	ErrCodeSystemGeneric   ErrorCode = "E1000"
	ErrCodeDatabaseConnect ErrorCode = "E1001"
	ErrCodeDatabaseQuery   ErrorCode = "E1002"
	ErrCodeNetworkTimeout  ErrorCode = "E1003"
	ErrCodeConfigMissing   ErrorCode = "E1004"
	ErrCodeConfigInvalid   ErrorCode = "E1005"

	// 业务错误码 (E2xxx)
	ErrCodeValidationFailed  ErrorCode = "E2001"
	ErrCodeResourceNotFound  ErrorCode = "E2002"
	ErrCodeDuplicateResource ErrorCode = "E2003"
	ErrCodeInvalidInput      ErrorCode = "E2004"
	ErrCodeUnauthorized      ErrorCode = "E2005"

	// 集成错误码 (E3xxx)
	ErrCodeProtocolRequest  ErrorCode = "E3001"
	ErrCodeProtocolResponse ErrorCode = "E3002"
	ErrCodeWebSocketConnect ErrorCode = "E3003"
	ErrCodeWebSocketMessage ErrorCode = "E3004"
)

// ConsoleError 统一错误结构
type ConsoleError struct {
	Type      ErrorType   `json:"type"`
	Code      ErrorCode   `json:"code"`
	Message   string      `json:"message"`
	Details   string      `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Context   interface{} `json:"context,omitempty"`
	Cause     error       `json:"-"` // 原始错误，不序列化
}

// Error 实现error接口
func (e *ConsoleError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s - %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap 支持错误链
func (e *ConsoleError) Unwrap() error {
	return e.Cause
}

// NewConsoleError 创建新的错误
func NewConsoleError(errorType ErrorType, code ErrorCode, message string) *ConsoleError {
	return &ConsoleError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithDetails 添加详细信息
func (e *ConsoleError) WithDetails(details string) *ConsoleError {
	e.Details = details
	return e
}

// WithContext 添加上下文信息
func (e *ConsoleError) WithContext(context interface{}) *ConsoleError {
	e.Context = context
	return e
}

// WithCause 添加原始错误
func (e *ConsoleError) WithCause(cause error) *ConsoleError {
	e.Cause = cause
	return e
}

// IsType 检查错误类型
func (e *ConsoleError) IsType(errorType ErrorType) bool {
	return e.Type == errorType
}

// IsCode 检查错误码
func (e *ConsoleError) IsCode(code ErrorCode) bool {
	return e.Code == code
}

// 预定义常用错误

// ErrDatabaseConnection 数据库连接错误
func ErrDatabaseConnection(details string, cause error) *ConsoleError {
	return NewConsoleError(ErrorTypeDatabase, ErrCodeDatabaseConnect, "Failed to connect to database").
		WithDetails(details).
		WithCause(cause)
}

// ErrDatabaseQuery 数据库查询错误
func ErrDatabaseQuery(details string, cause error) *ConsoleError {
	return NewConsoleError(ErrorTypeDatabase, ErrCodeDatabaseQuery, "Database query failed").
		WithDetails(details).
		WithCause(cause)
}

// ErrValidationFailed 验证失败错误
func ErrValidationFailed(field, reason string) *ConsoleError {
	return NewConsoleError(ErrorTypeValidation, ErrCodeValidationFailed, "Validation failed").
		WithDetails(fmt.Sprintf("Field '%s': %s", field, reason))
}

// ErrProtocolRequest 协议服务请求错误
func ErrProtocolRequest(details string, cause error) *ConsoleError {
	return NewConsoleError(ErrorTypeProtocol, ErrCodeProtocolRequest, "Protocol server request failed").
		WithDetails(details).
		WithCause(cause)
}

// ErrProtocolResponse 协议服务响应错误
func ErrProtocolResponse(details string) *ConsoleError {
	return NewConsoleError(ErrorTypeProtocol, ErrCodeProtocolResponse, "Unexpected protocol server response").
		WithDetails(details)
}

// ErrWebSocketConnection WebSocket连接错误
func ErrWebSocketConnection(details string, cause error) *ConsoleError {
	return NewConsoleError(ErrorTypeWebSocket, ErrCodeWebSocketConnect, "WebSocket connection failed").
		WithDetails(details).
		WithCause(cause)
}

// ErrConfigMissing 配置缺失错误
func ErrConfigMissing(configKey string) *ConsoleError {
	return NewConsoleError(ErrorTypeConfig, ErrCodeConfigMissing, "Required configuration missing").
		WithDetails(fmt.Sprintf("Missing config key: %s", configKey))
}

// ErrConfigInvalid 配置无效错误
func ErrConfigInvalid(configKey, reason string) *ConsoleError {
	return NewConsoleError(ErrorTypeConfig, ErrCodeConfigInvalid, "Invalid configuration").
		WithDetails(fmt.Sprintf("Config key '%s': %s", configKey, reason))
}

// ErrResourceNotFound 资源未找到错误
func ErrResourceNotFound(resourceType, resourceID string) *ConsoleError {
	return NewConsoleError(ErrorTypeBusiness, ErrCodeResourceNotFound, "Resource not found").
		WithDetails(fmt.Sprintf("%s with ID '%s' not found", resourceType, resourceID))
}

// ErrUnauthorized API鉴权失败错误
func ErrUnauthorized(reason string) *ConsoleError {
	return NewConsoleError(ErrorTypeAuth, ErrCodeUnauthorized, "Unauthorized").
		WithDetails(reason)
}
