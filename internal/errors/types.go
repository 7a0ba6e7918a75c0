package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误
	ErrCodeInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"

	// 检索流水线错误
	ErrCodeTransport    ErrorCode = "TRANSPORT_ERROR"
	ErrCodeNetwork      ErrorCode = "NETWORK_ERROR"
	ErrCodeEmptyContext ErrorCode = "EMPTY_CONTEXT"

	// 验证错误
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
)

// AppError 应用错误结构体
// Status为向量索引服务返回的HTTP状态码；网络层失败（无响应）时为0
type AppError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Cause   error       `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加错误详情
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewUnauthorized 无法解析租户身份
// 对当前请求是致命的，不重试；在任何网络调用之前返回
func NewUnauthorized(message string) *AppError {
	if message == "" {
		message = "tenant identity not resolved"
	}
	return &AppError{
		Code:    ErrCodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

// NewTransportError 向量索引服务返回的非成功响应
func NewTransportError(status int, message string) *AppError {
	return &AppError{
		Code:    ErrCodeTransport,
		Message: message,
		Status:  status,
	}
}

// NewNetworkError 网络层失败：请求未收到任何响应
func NewNetworkError(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeNetwork,
		Message: "vector index service unreachable",
		Cause:   cause,
	}
}

// NewEmptyContextError 上下文拼接收到零个分块
// 属于编排层的程序错误：调用方必须在检索结果为空时跳过拼接
func NewEmptyContextError() *AppError {
	return &AppError{
		Code:    ErrCodeEmptyContext,
		Message: "context assembly requires at least one chunk",
		Status:  http.StatusInternalServerError,
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidationFailed,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// NewInvalidInputError 创建输入无效错误
func NewInvalidInputError(field, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidInput,
		Message: fmt.Sprintf("invalid input for field '%s': %s", field, reason),
		Status:  http.StatusBadRequest,
	}
}

// IsUnauthorized 检查是否为租户身份错误
func IsUnauthorized(err error) bool {
	return hasCode(err, ErrCodeUnauthorized)
}

// IsTransportError 检查是否为服务端非成功响应
func IsTransportError(err error) bool {
	return hasCode(err, ErrCodeTransport)
}

// IsNetworkError 检查是否为网络层失败
func IsNetworkError(err error) bool {
	return hasCode(err, ErrCodeNetwork)
}

// IsEmptyContext 检查是否为空上下文错误
func IsEmptyContext(err error) bool {
	return hasCode(err, ErrCodeEmptyContext)
}

func hasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetAppError 获取AppError，非AppError时包装为内部错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{
		Code:    ErrCodeInternalServer,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
		Cause:   err,
	}
}

// HTTPStatus 返回应答给调用方的HTTP状态码
func (e *AppError) HTTPStatus() int {
	if e.Status >= 400 && e.Status < 600 {
		return e.Status
	}
	switch e.Code {
	case ErrCodeNetwork:
		return http.StatusBadGateway
	case ErrCodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
