package llm

import (
	"context"
	"fmt"

	"github.com/pattty847/Multi-Agent-Team/internal/config"
)

// Speaker 标识一条对话消息的来源角色。
type Speaker string

const (
	SpeakerSystem Speaker = "system"
	SpeakerUser   Speaker = "user"
	SpeakerModel  Speaker = "assistant"
)

// Message 是一条发送给模型或由模型产生的对话消息。
type Message struct {
	Role    Speaker `json:"role"`
	Content string  `json:"content"`
}

// GenerateContentRequest 是对各 LLM 提供商统一的生成请求。
type GenerateContentRequest struct {
	Messages []Message `json:"messages"`
}

// GenerateContentResponse 是对各 LLM 提供商统一的生成响应。
type GenerateContentResponse struct {
	Text         string `json:"text"`
	ResponseID   string `json:"response_id,omitempty"`
	ModelVersion string `json:"model_version,omitempty"`
}

// LLM 定义了所有大型语言模型客户端必须实现的通用接口。
type LLM interface {
	GenerateContent(ctx context.Context, req *GenerateContentRequest) (*GenerateContentResponse, error)
}

// NewClient 是一个工厂函数，根据提供的配置创建并返回一个实现了 LLM 接口的客户端。
func NewClient(cfg config.LLMConfig) (LLM, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("no API key configured for openai provider")
		}
		return NewOpenAI(cfg.OpenAI.Model, cfg.OpenAI.APIKey)
	case "ollama":
		return NewOllama(cfg.Ollama.Model, cfg.Ollama.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
