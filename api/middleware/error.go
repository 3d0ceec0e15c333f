package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/neurocme/api/model"
	"github.com/fyerfyer/neurocme/internal/document"
	"github.com/fyerfyer/neurocme/internal/llm"
	"github.com/fyerfyer/neurocme/internal/models"
)

// 定义应用中的错误类型常量
const (
	ErrorTypeValidation     = "VALIDATION_ERROR"     // 输入验证错误
	ErrorTypeNotFound       = "NOT_FOUND_ERROR"      // 资源不存在错误
	ErrorTypeIngest         = "INGEST_ERROR"         // 文档摄取失败
	ErrorTypeEnrichment     = "ENRICHMENT_ERROR"     // 主题增强失败
	ErrorTypeNotImplemented = "NOT_CONFIGURED_ERROR" // 功能未配置
	ErrorTypeInternal       = "INTERNAL_ERROR"       // 内部服务器错误
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

// NewIngestError 创建文档摄取错误
func NewIngestError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeIngest,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusUnprocessableEntity,
	}
}

// NewEnrichmentError 创建主题增强错误
func NewEnrichmentError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeEnrichment,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadGateway,
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

// FromError 将领域错误映射为应用错误
func FromError(err error) AppError {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var ingestErr *document.IngestError
	if errors.As(err, &ingestErr) {
		return NewIngestError(ingestErr.Message, string(ingestErr.Source))
	}

	var llmErr llm.LLMError
	if errors.As(err, &llmErr) {
		return NewEnrichmentError("topic enrichment failed", llmErr.Message)
	}

	switch {
	case errors.Is(err, models.ErrAnalysisNotFound), errors.Is(err, models.ErrPreviewNotFound):
		return NewNotFoundError(err.Error())
	case errors.Is(err, models.ErrInvalidOptions),
		errors.Is(err, models.ErrUnsupportedFormat),
		errors.Is(err, models.ErrUnsupportedSource),
		errors.Is(err, models.ErrEmptyDocument):
		return NewValidationError(err.Error())
	case errors.Is(err, models.ErrArchiveDisabled):
		return AppError{Type: ErrorTypeNotImplemented, Message: err.Error(), Code: http.StatusNotImplemented}
	default:
		return NewInternalError("internal server error", err.Error())
	}
}

// ErrorMiddleware 统一错误处理中间件
// 捕获panic，并把处理器记录的最后一个错误渲染为统一响应
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithFields(logrus.Fields{
					FieldError:   rec,
					"stack":      string(debug.Stack()),
					FieldPath:    c.Request.URL.Path,
					FieldTraceID: TraceID(c),
				}).Error("Panic recovered in API request")

				resp := model.NewErrorResponse(http.StatusInternalServerError, "An unexpected error occurred")
				if gin.Mode() == gin.DebugMode {
					resp.Message = fmt.Sprintf("Panic: %v", rec)
				}
				resp.TraceID = TraceID(c)
				c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := FromError(c.Errors.Last().Err)
		entry := log.WithFields(logrus.Fields{
			"error_type": appErr.Type,
			FieldTraceID: TraceID(c),
			FieldPath:    c.Request.URL.Path,
		})
		if appErr.Code >= http.StatusInternalServerError {
			entry.Error(appErr.Error())
		} else {
			entry.Warn(appErr.Error())
		}

		message := appErr.Message
		if appErr.Code == http.StatusInternalServerError && gin.Mode() != gin.DebugMode {
			message = "Internal server error"
		}
		resp := model.NewErrorResponse(appErr.Code, message)
		resp.Details = appErr.Details
		if appErr.Code == http.StatusInternalServerError && gin.Mode() != gin.DebugMode {
			resp.Details = ""
		}
		resp.TraceID = TraceID(c)

		c.AbortWithStatusJSON(appErr.Code, resp)
	}
}

// HandleError 在处理器中使用的错误处理辅助函数
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
}
