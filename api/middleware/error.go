package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/fyerfyer/contract-analyzer/api/model"
	"github.com/fyerfyer/contract-analyzer/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 本API实际抛出的错误类型
const (
	ErrorTypeValidation = "VALIDATION_ERROR" // 输入验证错误
	ErrorTypeNotFound   = "NOT_FOUND_ERROR"  // 资源不存在错误
	ErrorTypeInternal   = "INTERNAL_ERROR"   // 内部服务器错误
)

// AppError 应用错误结构体
type AppError struct {
	Type    string // 错误类型
	Message string // 错误消息
	Details string // 详细错误信息
	Code    int    // HTTP状态码
}

// Error 实现error接口的方法
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewValidationError 创建输入验证错误
func NewValidationError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) AppError {
	return AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

// NewInternalError 创建内部服务器错误
func NewInternalError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusInternalServerError,
	}
}

// ErrorMiddleware 统一错误处理中间件
// 捕获panic并兜底处理handler通过c.Error上报的错误
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 捕获 panic
		defer func() {
			if err := recover(); err != nil {
				// 获取堆栈跟踪信息
				stack := string(debug.Stack())

				// 记录错误日志
				log.WithFields(logrus.Fields{
					"error": err,
					"stack": stack,
					"path":  c.Request.URL.Path,
				}).Error("Panic recovered in API request")

				// 构造客户端响应
				errorResponse := model.NewErrorResponse(
					http.StatusInternalServerError,
					"An unexpected error occurred",
				)

				// 在开发环境中可以返回详细错误
				if gin.Mode() == gin.DebugMode {
					errorResponse.Message = fmt.Sprintf("Panic: %v", err)
				}

				errorResponse.TraceID = traceIDFromContext(c)

				// 中止请求处理并返回错误响应
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse)
			}
		}()

		// 处理请求
		c.Next()

		// handler上报了错误但尚未写响应时统一处理
		if len(c.Errors) > 0 && !c.Writer.Written() {
			HandleError(c, c.Errors.Last().Err)
		}
	}
}

// HandleError 将错误映射为统一的HTTP错误响应
// 识别应用错误和领域哨兵错误，其余按内部服务器错误处理
func HandleError(c *gin.Context, err error) {
	traceID := traceIDFromContext(c)

	status := http.StatusInternalServerError
	message := "服务器内部错误"

	var appErr AppError
	switch {
	case errors.As(err, &appErr):
		status = appErr.Code
		message = appErr.Message
	case errors.Is(err, models.ErrContractNotFound):
		status = http.StatusNotFound
		message = "未找到合同"
	case errors.Is(err, models.ErrAnalysisNotFound):
		status = http.StatusNotFound
		message = "合同尚未分析"
	default:
		// 在开发环境下显示具体错误信息
		if gin.Mode() == gin.DebugMode {
			message = err.Error()
		}
	}

	if status >= http.StatusInternalServerError {
		log.WithFields(logrus.Fields{
			"trace_id": traceID,
			"path":     c.Request.URL.Path,
			"error":    err.Error(),
		}).Error("Request failed")
	}

	errResp := model.NewErrorResponse(status, message)
	errResp.TraceID = traceID

	c.AbortWithStatusJSON(status, errResp)
}

// traceIDFromContext 从请求上下文取出追踪ID
func traceIDFromContext(c *gin.Context) string {
	if value, exists := c.Get("TraceID"); exists {
		if traceID, ok := value.(string); ok {
			return traceID
		}
	}
	return ""
}
