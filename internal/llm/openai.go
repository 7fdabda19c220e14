package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

var openaiTracer = otel.Tracer("intake.internal.llm.openai")

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateEmbeddings(ctx context.Context, request openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIConfig configures the OpenAI-compatible client. BaseURL lets the
// service point at providers that speak the OpenAI wire format (e.g. GLM).
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	ChatTimeout    time.Duration
	EmbedTimeout   time.Duration
}

// OpenAIClient implements Client and Embedder against an OpenAI-compatible API.
type OpenAIClient struct {
	client         chatClient
	model          string
	embeddingModel string
	chatTimeout    time.Duration
	embedTimeout   time.Duration
	logger         *logging.Logger
}

// NewOpenAIClient builds a client from config.
func NewOpenAIClient(cfg OpenAIConfig, logger *logging.Logger) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm: api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return newOpenAIClient(openai.NewClientWithConfig(clientCfg), cfg, logger), nil
}

func newOpenAIClient(client chatClient, cfg OpenAIConfig, logger *logging.Logger) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = "glm-4-flash"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "embedding-3"
	}
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = 30 * time.Second
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OpenAIClient{
		client:         client,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		chatTimeout:    cfg.ChatTimeout,
		embedTimeout:   cfg.EmbedTimeout,
		logger:         logger,
	}
}

// Complete sends a chat completion request and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	ctx, span := openaiTracer.Start(ctx, "llm.complete")
	defer span.End()

	model := req.Model
	if model == "" {
		model = c.model
	}
	span.SetAttributes(attribute.String("intake.llm.model", model))

	messages := make([]openai.ChatCompletionMessage, 0, len(req.System)+len(req.Messages))
	for _, sys := range req.System {
		if strings.TrimSpace(sys) == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: sys,
		})
	}
	for _, msg := range req.Messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case ChatRoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case ChatRoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	callCtx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   int(req.MaxTokens),
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})
	if err != nil {
		span.RecordError(err)
		return Response{}, fmt.Errorf("llm: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		err := errors.New("llm: completion returned no choices")
		span.RecordError(err)
		return Response{}, err
	}
	choice := resp.Choices[0]
	return Response{
		Text:       strings.TrimSpace(choice.Message.Content),
		StopReason: string(choice.FinishReason),
	}, nil
}

// Embed returns the embedding vector for a single text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := openaiTracer.Start(ctx, "llm.embed")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, c.embedTimeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(callCtx, &openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: []string{text},
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("llm: embedding failed: %w", err)
	}
	if len(resp.Data) == 0 {
		err := errors.New("llm: embedding returned no data")
		span.RecordError(err)
		return nil, err
	}
	return resp.Data[0].Embedding, nil
}
