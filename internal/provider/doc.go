// Package provider provides the LLM provider abstraction for Toolgate.
//
// It implements a unified interface over multiple model backends using the
// Eino framework: Anthropic Claude (direct API or AWS Bedrock), OpenAI and
// OpenAI-compatible endpoints (including Azure).
//
// # Core Components
//
//   - Provider: interface every backend implements
//   - Registry: manages configured providers and model lookup
//   - CompletionRequest/CompletionStream: streaming chat completions
//
// # Usage
//
//	registry, err := provider.InitializeProviders(ctx, creds, "anthropic/claude-sonnet-4-20250514")
//	p, err := registry.Get("anthropic")
//
//	stream, err := p.CreateCompletion(ctx, &provider.CompletionRequest{
//	    Model:     "claude-sonnet-4-20250514",
//	    Messages:  messages,
//	    Tools:     tools,
//	    MaxTokens: 4096,
//	})
//	for {
//	    msg, err := stream.Recv()
//	    if err != nil {
//	        break
//	    }
//	    // process chunk
//	}
//	stream.Close()
//
// Providers are only registered when an API key is present, either in the
// supplied credentials or in the conventional environment variables
// (ANTHROPIC_API_KEY, OPENAI_API_KEY).
package provider
