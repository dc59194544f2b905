package translator

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultModel       = "gpt-3.5-turbo"
	defaultTemperature = 0.3
	defaultMaxTokens   = 2000
)

// ErrEmptyCompletion 表示模型返回了空的 choices
var ErrEmptyCompletion = errors.New("empty completion")

// Completer 抽象一次文本补全调用；返回内容被视为不可信文本，由 ParseResponse 防御式解析
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// OpenAICompleter 基于 chat completion 接口，BaseURL 可指向兼容 OpenAI 协议的服务
type OpenAICompleter struct {
	client      *openai.Client
	Model       string
	Temperature float32
	MaxTokens   int
}

func NewOpenAICompleter(apiKey, baseURL, model string) *OpenAICompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &OpenAICompleter{
		client:      openai.NewClientWithConfig(cfg),
		Model:       model,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}
}

func (o *OpenAICompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", ErrEmptyCompletion)
	}
	return resp.Choices[0].Message.Content, nil
}
