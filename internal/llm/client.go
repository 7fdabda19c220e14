package llm

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is an internal message representation that can include system prompts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes a single chat-completion call.
type Request struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// Response carries the completion text.
type Response struct {
	Text       string
	StopReason string
}

// Client produces chat completions. Implementations exist for
// OpenAI-compatible endpoints and Gemini.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Embedder converts text into a vector for similarity retrieval.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
