package dispatch

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/eino/schema"

	"github.com/toolgate-ai/toolgate/internal/provider"
)

// ProviderHost adapts a streaming provider to the ModelHost interface by
// draining the stream into a single assistant message.
type ProviderHost struct {
	provider    provider.Provider
	model       string
	maxTokens   int
	temperature float64
}

// NewProviderHost creates a host for the given provider and model.
func NewProviderHost(p provider.Provider, model string, maxTokens int, temperature float64) *ProviderHost {
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &ProviderHost{
		provider:    p,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Complete requests one assistant turn.
func (h *ProviderHost) Complete(ctx context.Context, messages []*schema.Message, tools []*schema.ToolInfo) (*schema.Message, error) {
	stream, err := h.provider.CreateCompletion(ctx, &provider.CompletionRequest{
		Model:       h.model,
		Messages:    messages,
		Tools:       tools,
		MaxTokens:   h.maxTokens,
		Temperature: h.temperature,
	})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var chunks []*schema.Message
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}

	if len(chunks) == 0 {
		return nil, errors.New("empty completion stream")
	}

	return schema.ConcatMessages(chunks)
}
