package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX），兼容 errors.As 和 %w 包装
//
// 错误分类：
//   - STARTUP_ERROR：必需的产物（模型、特征 schema）缺失或不可读，进程不能进入服务状态
//   - SCHEMA_MISMATCH：编码器拿到空的或非法的 schema
//   - INFERENCE_ERROR：分类器在向量上调用失败（宽度不符、非数值、缺槽位）
//   - INVALID_INPUT：请求中的客户画像不合法
type DomainError struct {
	Code    string // 错误代码（如 "SCHEMA_MISMATCH", "INFERENCE_ERROR"）
	Message string // 错误消息
	Module  string // 模块名称（如 "feature", "model", "inference"）
	Cause   error  // 原始错误（可选）
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Fatal 表示进程级错误（启动期），其余错误只影响单个请求。
func (e *DomainError) Fatal() bool {
	return e.Code == ErrorCodeStartup
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建携带原始错误的领域错误
func WrapDomainError(module, code, message string, cause error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound       = "NOT_FOUND"       // 资源不存在
	ErrorCodeNotSupported   = "NOT_SUPPORTED"   // 操作不支持
	ErrorCodeUnavailable    = "UNAVAILABLE"     // 服务不可用
	ErrorCodeInvalidInput   = "INVALID_INPUT"   // 输入无效
	ErrorCodeInternalError  = "INTERNAL_ERROR"  // 内部错误
	ErrorCodeStartup        = "STARTUP_ERROR"   // 启动期产物加载失败
	ErrorCodeSchemaMismatch = "SCHEMA_MISMATCH" // 特征 schema 非法
	ErrorCodeInference      = "INFERENCE_ERROR" // 推理失败
)

// 模块名称常量
const (
	ModuleStore     = "store"     // 存储模块
	ModuleFeature   = "feature"   // 特征模块
	ModuleModel     = "model"     // 模型模块
	ModuleInference = "inference" // 推理模块
	ModuleArtifact  = "artifact"  // 产物加载模块
	ModuleProfile   = "profile"   // 客户画像模块
)

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool { return hasCode(err, ErrorCodeUnavailable) }

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool { return hasCode(err, ErrorCodeInvalidInput) }

// IsStartupError 检查错误是否为 STARTUP_ERROR
func IsStartupError(err error) bool { return hasCode(err, ErrorCodeStartup) }

// IsSchemaMismatch 检查错误是否为 SCHEMA_MISMATCH
func IsSchemaMismatch(err error) bool { return hasCode(err, ErrorCodeSchemaMismatch) }

// IsInferenceError 检查错误是否为 INFERENCE_ERROR
func IsInferenceError(err error) bool { return hasCode(err, ErrorCodeInference) }
