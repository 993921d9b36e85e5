package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ========== 错误码常量定义 ==========

// 认证 (401)
const (
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeTokenInvalid       = "TOKEN_INVALID"
)

// 租户解析 (404)
const (
	CodeTenantNotFound = "TENANT_NOT_FOUND"
)

// 授权 / 域名范围 (403)
const (
	CodeAdminDomainOnly      = "ADMIN_DOMAIN_ONLY"
	CodeAdminAccessDenied    = "ADMIN_ACCESS_DENIED"
	CodeTenantDomainRequired = "TENANT_DOMAIN_REQUIRED"
	CodeUserTenantRequired   = "USER_TENANT_REQUIRED"
	CodeTenantMismatch       = "TENANT_MISMATCH"
	CodeForbidden            = "FORBIDDEN"
	CodeUserDisabled         = "USER_DISABLED"
)

// 计费 (402 / 403)
const (
	CodeTenantRequired       = "TENANT_REQUIRED"
	CodeTenantNotActive      = "TENANT_NOT_ACTIVE"
	CodeSubscriptionMissing  = "SUBSCRIPTION_MISSING"
	CodeSubscriptionInactive = "SUBSCRIPTION_INACTIVE"
	CodeSubscriptionExpired  = "SUBSCRIPTION_EXPIRED"
)

// 校验 / 限流
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodePlanNotFound     = "PLAN_NOT_FOUND"
	CodeRateLimited      = "RATE_LIMITED"
	CodeNotFound         = "NOT_FOUND"
	CodeInternal         = "INTERNAL_ERROR"
)

// 租户库生命周期操作 (500)
const (
	CodeDBNameNotSafe            = "DB_NAME_NOT_SAFE"
	CodeTenantConnectionMismatch = "TENANT_CONNECTION_MISMATCH"
	CodeTenantLockTimeout        = "TENANT_LOCK_TIMEOUT"
	CodeTenantMigrateFailed      = "TENANT_MIGRATE_FAILED"
	CodeTenantSeedFailed         = "TENANT_SEED_FAILED"
)

// AppError 对外可见的错误：稳定的错误码 + HTTP 状态 + 诊断信息
type AppError struct {
	Code    string
	Status  int
	Message string
	Details map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// New 创建错误
func New(status int, code, message string) *AppError {
	return &AppError{Code: code, Status: status, Message: message}
}

// Newf 创建带格式化消息的错误
func Newf(status int, code, format string, args ...interface{}) *AppError {
	return New(status, code, fmt.Sprintf(format, args...))
}

// With 附加诊断字段，返回副本，不修改原错误
func (e *AppError) With(key string, value interface{}) *AppError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &AppError{Code: e.Code, Status: e.Status, Message: e.Message, Details: details}
}

// Is 按错误码比较，便于 errors.Is(err, errors.New(..., CodeX, ""))
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// As 从错误链中取出 AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf 返回错误链中的错误码，没有时返回空串
func CodeOf(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ""
}

// ========== 快捷构造 ==========

func Unauthenticated(message string) *AppError {
	return New(http.StatusUnauthorized, CodeUnauthenticated, message)
}

func Forbidden(code, message string) *AppError {
	return New(http.StatusForbidden, code, message)
}

func PaymentRequired(code, message string) *AppError {
	return New(http.StatusPaymentRequired, code, message)
}

func NotFound(code, message string) *AppError {
	return New(http.StatusNotFound, code, message)
}

func Validation(message string) *AppError {
	return New(http.StatusUnprocessableEntity, CodeValidationFailed, message)
}

func Internal(message string) *AppError {
	return New(http.StatusInternalServerError, CodeInternal, message)
}
