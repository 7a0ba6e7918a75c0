package rewriter

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIModel 通过OpenAI兼容接口调用改写模型
type OpenAIModel struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIModel 创建改写模型客户端
// baseURL非空时指向兼容OpenAI协议的网关
func NewOpenAIModel(apiKey, model, baseURL string, timeout time.Duration) ChatModel {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIModel{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

// Complete 单次请求/响应调用，只返回最终文本
func (m *OpenAIModel) Complete(ctx context.Context, system, user string) (string, error) {
	if m.client == nil {
		return "", errors.New("rewrite model client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   80, // 输出契约是一句话，5-25词
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("rewrite model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
