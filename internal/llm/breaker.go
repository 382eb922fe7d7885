package llm

import (
	"context"

	"github.com/pattty847/Multi-Agent-Team/pkg/circuitbreaker"
)

// breakerClient 用熔断器包装一个 LLM 客户端。
// 当提供商连续失败时快速失败，避免工作流在故障的模型服务上堆积。
type breakerClient struct {
	inner   LLM
	breaker circuitbreaker.CircuitBreaker
}

// WithCircuitBreaker 返回带熔断保护的 LLM 客户端。
func WithCircuitBreaker(inner LLM, cb circuitbreaker.CircuitBreaker) LLM {
	return &breakerClient{inner: inner, breaker: cb}
}

func (b *breakerClient) GenerateContent(ctx context.Context, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	res, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.GenerateContent(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*GenerateContentResponse), nil
}
