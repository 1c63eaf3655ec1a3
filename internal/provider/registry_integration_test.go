package provider

import (
	"context"
	"os"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// liveBackend describes one provider exercised against its real API.
// Each entry is skipped unless its key env var is set.
type liveBackend struct {
	name         string
	providerID   string
	apiKeyEnv    string
	baseURLEnv   string
	modelIDEnv   string
	defaultModel string
}

var liveBackends = []liveBackend{
	{
		name:         "Anthropic",
		providerID:   "anthropic",
		apiKeyEnv:    "ANTHROPIC_API_KEY",
		modelIDEnv:   "ANTHROPIC_MODEL_ID",
		defaultModel: "claude-3-5-haiku-20241022",
	},
	{
		name:         "OpenAI",
		providerID:   "openai",
		apiKeyEnv:    "OPENAI_API_KEY",
		baseURLEnv:   "OPENAI_BASE_URL",
		modelIDEnv:   "OPENAI_MODEL_ID",
		defaultModel: "gpt-4o-mini",
	},
}

func (b liveBackend) credentials() map[string]Credential {
	return map[string]Credential{
		b.providerID: {
			APIKey:  os.Getenv(b.apiKeyEnv),
			BaseURL: os.Getenv(b.baseURLEnv),
			Model:   b.modelID(),
		},
	}
}

func (b liveBackend) modelID() string {
	if id := os.Getenv(b.modelIDEnv); id != "" {
		return id
	}
	return b.defaultModel
}

func collectResponse(t *testing.T, provider Provider, req *CompletionRequest) string {
	t.Helper()
	stream, err := provider.CreateCompletion(context.Background(), req)
	require.NoError(t, err)
	defer stream.Close()

	var response string
	for {
		msg, err := stream.Recv()
		if err != nil {
			break
		}
		if msg != nil {
			response += msg.Content
		}
	}
	return response
}

func TestRegistry_LiveCompletion(t *testing.T) {
	_ = godotenv.Load("../../.env")

	for _, backend := range liveBackends {
		t.Run(backend.name, func(t *testing.T) {
			if os.Getenv(backend.apiKeyEnv) == "" {
				t.Skipf("%s not set", backend.apiKeyEnv)
			}

			ctx := context.Background()
			modelID := backend.modelID()
			registry, err := InitializeProviders(ctx, backend.credentials(), backend.providerID+"/"+modelID)
			require.NoError(t, err)

			provider, err := registry.Get(backend.providerID)
			require.NoError(t, err)
			assert.NotEmpty(t, provider.ID())
			assert.NotEmpty(t, provider.Name())

			t.Run("SimpleCompletion", func(t *testing.T) {
				response := collectResponse(t, provider, &CompletionRequest{
					Model: modelID,
					Messages: []*schema.Message{
						{Role: schema.User, Content: "Say 'Hello, World!' and nothing else."},
					},
					MaxTokens: 100,
				})
				assert.NotEmpty(t, response)
				t.Logf("[%s] response: %s", provider.Name(), response)
			})

			t.Run("MultiTurnConversation", func(t *testing.T) {
				response := collectResponse(t, provider, &CompletionRequest{
					Model: modelID,
					Messages: []*schema.Message{
						{Role: schema.User, Content: "Remember the number 42."},
						{Role: schema.Assistant, Content: "I'll remember the number 42."},
						{Role: schema.User, Content: "What number did I ask you to remember? Reply with just the number."},
					},
					MaxTokens: 50,
				})
				assert.Contains(t, response, "42")
			})

			t.Run("ToolBinding", func(t *testing.T) {
				tools := []*schema.ToolInfo{{
					Name: "calculator",
					Desc: "Performs arithmetic calculations",
					ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
						"expression": {Type: schema.String, Desc: "The expression to evaluate"},
					}),
				}}

				bound, err := provider.ChatModel().WithTools(tools)
				require.NoError(t, err)
				assert.NotNil(t, bound)
			})
		})
	}
}

func TestRegistry_LiveMultiProvider(t *testing.T) {
	_ = godotenv.Load("../../.env")

	creds := make(map[string]Credential)
	var expected []string
	for _, backend := range liveBackends {
		if os.Getenv(backend.apiKeyEnv) == "" {
			continue
		}
		creds[backend.providerID] = backend.credentials()[backend.providerID]
		expected = append(expected, backend.providerID)
	}
	if len(expected) == 0 {
		t.Skip("no provider API keys configured")
	}

	registry, err := InitializeProviders(context.Background(), creds, "")
	require.NoError(t, err)
	assert.Len(t, registry.List(), len(expected))

	for _, providerID := range expected {
		provider, err := registry.Get(providerID)
		require.NoError(t, err)
		assert.NotEmpty(t, provider.Models())
	}
}
