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

	// 摘要任务的系统提示词
	summarySystemPrompt = "You are a legal assistant. Summarize the contract text provided by the user " +
		"into a concise plain-text summary. Preserve key obligations, deadlines and monetary terms. " +
		"Do not add opinions or information that is not in the text."
)

// TongyiClient 通义千问大模型客户端实现
type TongyiClient struct {
	apiKey      string       // API密钥
	baseURL     string       // API端点
	model       string       // 模型名称
	httpClient  *http.Client // HTTP客户端
	maxRetries  int          // 最大重试次数
	maxTokens   int          // 最大生成Token数
	temperature float32      // 温度参数
	topP        float32      // topP参数
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

	client := &TongyiClient{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       cfg.Model,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxRetries:  cfg.MaxRetries,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
	}

	return client, nil
}

// Name 返回模型名称
func (c *TongyiClient) Name() string {
	return c.model
}

// Summarize 对合同文本生成概括性摘要
func (c *TongyiClient) Summarize(ctx context.Context, text string, options ...SummarizeOption) (*Response, error) {
	if text == "" {
		return nil, NewLLMError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}

	opts := &SummarizeOptions{}
	for _, opt := range options {
		opt(opts)
	}

	instruction := "Summarize the following contract."
	if opts.MaxSentences != nil && *opts.MaxSentences > 0 {
		instruction = fmt.Sprintf("Summarize the following contract in at most %d sentences.", *opts.MaxSentences)
	}

	messages := []Message{
		{Role: RoleSystem, Content: summarySystemPrompt},
		{Role: RoleUser, Content: instruction + "\n\n" + text},
	}

	// 准备请求参数
	params := &TongyiParameters{
		ResultFormat: "message", // 使用结构化返回格式
	}

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

	if opts.TopP != nil {
		params.TopP = opts.TopP
	} else if c.topP > 0 {
		topP := c.topP
		params.TopP = &topP
	}

	req := &TongyiRequest{
		Model: c.model,
		Input: &TongyiRequestInput{
			Messages: messages,
		},
		Parameters: params,
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	return c.processResponse(resp)
}

// sendRequest 发送API请求并解析响应
func (c *TongyiClient) sendRequest(ctx context.Context, req *TongyiRequest) (*TongyiResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	// 使用重试机制发送请求
	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// 指数退避重试
			select {
			case <-ctx.Done():
				return nil, NewLLMError(ErrCodeTimeout, ctx.Err().Error())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		// 每次重试重建请求，Body只能消费一次
		httpReq, reqErr := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			c.baseURL,
			bytes.NewReader(jsonData),
		)
		if reqErr != nil {
			return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", reqErr))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
		httpReq.Header.Set("Accept", "application/json")

		resp, lastErr = c.httpClient.Do(httpReq)
		if lastErr == nil && resp.StatusCode < 500 {
			// 成功或客户端错误，不需要重试
			break
		}

		if lastErr == nil {
			resp.Body.Close() // 关闭响应体，避免资源泄露
		}
	}

	if lastErr != nil {
		return nil, NewLLMError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", lastErr))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to read response: %v", err))
	}

	// 检查HTTP状态码
	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Message != "" {
			return nil, NewLLMError(ErrCodeServerError,
				fmt.Sprintf("API error: %s (%s)", errResp.Message, errResp.Code))
		}

		return nil, NewLLMError(ErrCodeServerError,
			fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(body)))
	}

	var tongyiResp TongyiResponse
	if err := json.Unmarshal(body, &tongyiResp); err != nil {
		return nil, NewLLMError(ErrCodeServerError,
			fmt.Sprintf("failed to parse response: %v", err))
	}

	// 检查API返回的错误
	if tongyiResp.Code != "" {
		return nil, NewLLMError(ErrCodeServerError,
			fmt.Sprintf("API error: %s (%s)", tongyiResp.Message, tongyiResp.Code))
	}

	return &tongyiResp, nil
}

// processResponse 处理通义千问的响应
func (c *TongyiClient) processResponse(resp *TongyiResponse) (*Response, error) {
	result := &Response{
		ModelName:  c.model,
		TokenCount: resp.Usage.TotalTokens,
		FinishTime: time.Now(),
	}

	if resp.Output.Text != nil {
		// 文本格式输出
		result.Text = *resp.Output.Text
	} else if len(resp.Output.Choices) > 0 {
		// 消息格式输出
		result.Text = resp.Output.Choices[0].Message.Content
	} else {
		return nil, NewLLMError(ErrCodeServerError, "empty response from API")
	}

	return result, nil
}

// 在包初始化时注册通义千问客户端
func init() {
	RegisterClient("tongyi", NewTongyiClient)
}
