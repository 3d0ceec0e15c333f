package llm

import (
	"errors"
	"fmt"
)

// LLMError 大模型调用错误类型
type LLMError struct {
	Code    int    // 错误码
	Message string // 错误消息
}

// Error 实现error接口
func (e LLMError) Error() string {
	return fmt.Sprintf("llm error (code=%d): %s", e.Code, e.Message)
}

// 错误码常量
const (
	ErrCodeInvalidAPIKey  = 1001 // 无效的API密钥
	ErrCodeInvalidRequest = 1002 // 无效的请求
	ErrCodeNetworkError   = 1003 // 网络连接错误
	ErrCodeServerError    = 1005 // 服务器错误
	ErrCodeTimeout        = 1006 // 请求超时
	ErrCodeMalformedReply = 1011 // 模型回复无法解析
	ErrCodeTopicMismatch  = 1012 // 改写结果与原主题不一致
)

// 错误消息常量
const (
	ErrMsgInvalidAPIKey  = "invalid API key"
	ErrMsgEmptyMessages  = "messages cannot be empty"
	ErrMsgEmptyResponse  = "empty response from API"
	ErrMsgMalformedReply = "model reply is not valid enrichment JSON"
)

// NewLLMError 创建新的大模型错误
func NewLLMError(code int, message string) LLMError {
	return LLMError{
		Code:    code,
		Message: message,
	}
}

// WrapError 包装普通错误为LLM错误，已是LLMError时原样返回
func WrapError(err error, code int) LLMError {
	if err == nil {
		return LLMError{Code: code, Message: "unknown error"}
	}
	var llmErr LLMError
	if errors.As(err, &llmErr) {
		return llmErr
	}
	return LLMError{Code: code, Message: err.Error()}
}

// ErrorCode 返回错误中的LLM错误码，不是LLMError时返回0
func ErrorCode(err error) int {
	var llmErr LLMError
	if errors.As(err, &llmErr) {
		return llmErr.Code
	}
	return 0
}
