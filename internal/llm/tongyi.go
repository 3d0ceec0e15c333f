package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// 通义千问API端点
	defaultTongyiEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"

	// ProviderTongyi 通义千问客户端注册名
	ProviderTongyi = "tongyi"
)

// TongyiClient 通义千问大模型客户端实现
type TongyiClient struct {
	apiKey      string
	baseURL     string
	model       string
	httpClient  *http.Client
	maxRetries  int
	maxTokens   int
	temperature float32
}

// NewTongyiClient 创建新的通义千问大模型客户端
func NewTongyiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTongyiEndpoint
	}

	return &TongyiClient{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       cfg.Model,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxRetries:  cfg.MaxRetries,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Name 返回模型名称
func (c *TongyiClient) Name() string {
	return c.model
}

// Chat 发送对话请求
func (c *TongyiClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, ErrMsgEmptyMessages)
	}

	opts := &ChatOptions{}
	for _, opt := range options {
		opt(opts)
	}

	params := &TongyiParameters{ResultFormat: "message"}
	if opts.MaxTokens != nil {
		params.MaxTokens = opts.MaxTokens
	} else if c.maxTokens > 0 {
		maxTokens := c.maxTokens
		params.MaxTokens = &maxTokens
	}
	if opts.Temperature != nil {
		params.Temperature = opts.Temperature
	} else if c.temperature > 0 {
		temp := c.temperature
		params.Temperature = &temp
	}

	payload, err := json.Marshal(&TongyiRequest{
		Model:      c.model,
		Input:      &TongyiRequestInput{Messages: messages},
		Parameters: params,
	})
	if err != nil {
		return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	resp, err := c.send(ctx, payload)
	if err != nil {
		return nil, err
	}
	return c.toResponse(resp)
}

// send 发送请求，网络错误和5xx按指数退避重试
func (c *TongyiClient) send(ctx context.Context, payload []byte) (*TongyiResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, NewLLMError(ErrCodeTimeout, ctx.Err().Error())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		status, body, err := c.post(ctx, payload)
		if err != nil {
			lastErr = NewLLMError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", err))
			continue
		}
		if status >= http.StatusInternalServerError {
			lastErr = apiError(status, body)
			continue
		}
		if status != http.StatusOK {
			return nil, apiError(status, body)
		}

		var tongyiResp TongyiResponse
		if err := json.Unmarshal(body, &tongyiResp); err != nil {
			return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", err))
		}
		if tongyiResp.Code != "" {
			return nil, NewLLMError(ErrCodeServerError,
				fmt.Sprintf("API error: %s (%s)", tongyiResp.Message, tongyiResp.Code))
		}
		return &tongyiResp, nil
	}
	return nil, lastErr
}

func (c *TongyiClient) post(ctx context.Context, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// apiError 尽量从错误响应体中解析出错误码和消息
func apiError(status int, body []byte) LLMError {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		return NewLLMError(ErrCodeServerError, fmt.Sprintf("API error: %s (%s)", errResp.Message, errResp.Code))
	}
	return NewLLMError(ErrCodeServerError, fmt.Sprintf("API error (status %d): %s", status, string(body)))
}

func (c *TongyiClient) toResponse(resp *TongyiResponse) (*Response, error) {
	result := &Response{
		ModelName:  c.model,
		TokenCount: resp.Usage.TotalTokens,
		FinishTime: time.Now(),
	}
	switch {
	case resp.Output.Text != nil:
		result.Text = *resp.Output.Text
	case len(resp.Output.Choices) > 0:
		result.Text = resp.Output.Choices[0].Message.Content
	default:
		return nil, NewLLMError(ErrCodeServerError, ErrMsgEmptyResponse)
	}
	return result, nil
}

func init() {
	RegisterClient(ProviderTongyi, NewTongyiClient)
}
