package response

import (
	"net/http"

	"gmdl/pkg/errors"
	"gmdl/pkg/pagination"

	"github.com/gin-gonic/gin"
)

// ErrorCodeKey 失败响应的错误码写入 gin 上下文，供审计等后置中间件读取
const ErrorCodeKey = "response.error_code"

// ErrorBody 统一错误返回格式：{ok:false, error:<CODE>, message, ...details}
type ErrorBody map[string]interface{}

// ========== 基础返回方法 ==========

// Success 成功返回（200）
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 创建成功返回（201）
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// SuccessWithPage 分页成功返回
func SuccessWithPage(c *gin.Context, data interface{}, pageInfo *pagination.PageInfo) {
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"data":      data,
		"page_info": pageInfo,
	})
}

// Fail 按 AppError 的状态码与错误码返回，并中断后续处理
func Fail(c *gin.Context, err *errors.AppError) {
	body := ErrorBody{
		"ok":      false,
		"error":   err.Code,
		"message": err.Message,
	}
	for k, v := range err.Details {
		if _, reserved := body[k]; reserved {
			continue
		}
		body[k] = v
	}
	c.Set(ErrorCodeKey, err.Code)
	c.AbortWithStatusJSON(err.Status, body)
}

// Error 任意错误的统一出口：AppError 原样返回，其余按 500 处理
func Error(c *gin.Context, err error) {
	if appErr, ok := errors.As(err); ok {
		Fail(c, appErr)
		return
	}
	_ = c.Error(err)
	Fail(c, errors.Internal("Internal server error."))
}

// ========== HTTP错误快捷方法 ==========

func Unauthorized(c *gin.Context, message string) {
	Fail(c, errors.Unauthenticated(message))
}

func NotFound(c *gin.Context, message string) {
	Fail(c, errors.New(http.StatusNotFound, errors.CodeNotFound, message))
}

func ServerError(c *gin.Context, message string) {
	Fail(c, errors.Internal(message))
}

func TooManyRequests(c *gin.Context, retryAfterSeconds int) {
	Fail(c, errors.New(http.StatusTooManyRequests, errors.CodeRateLimited, "Too many requests.").
		With("retry_after", retryAfterSeconds))
}
