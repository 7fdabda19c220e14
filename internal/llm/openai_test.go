package llm

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

type fakeChatClient struct {
	lastChatReq openai.ChatCompletionRequest
	chatResp    openai.ChatCompletionResponse
	chatErr     error
	embedResp   openai.EmbeddingResponse
	embedErr    error
}

func (f *fakeChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastChatReq = req
	return f.chatResp, f.chatErr
}

func (f *fakeChatClient) CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	return f.embedResp, f.embedErr
}

func TestCompleteMapsRolesAndSystem(t *testing.T) {
	fake := &fakeChatClient{
		chatResp: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "  好的。 "}},
			},
		},
	}
	client := newOpenAIClient(fake, OpenAIConfig{Model: "glm-4-flash"}, nil)

	resp, err := client.Complete(context.Background(), Request{
		System: []string{"你是助理。"},
		Messages: []ChatMessage{
			{Role: ChatRoleUser, Content: "你好"},
			{Role: ChatRoleAssistant, Content: "您好"},
			{Role: ChatRoleUser, Content: "我头疼"},
		},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Text != "好的。" {
		t.Fatalf("expected trimmed text, got %q", resp.Text)
	}

	msgs := fake.lastChatReq.Messages
	if len(msgs) != 4 {
		t.Fatalf("expected 4 wire messages, got %d", len(msgs))
	}
	if msgs[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("expected leading system message, got %s", msgs[0].Role)
	}
	if msgs[2].Role != openai.ChatMessageRoleAssistant {
		t.Fatalf("expected assistant role mapping, got %s", msgs[2].Role)
	}
	if fake.lastChatReq.Model != "glm-4-flash" {
		t.Fatalf("expected default model, got %s", fake.lastChatReq.Model)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	fake := &fakeChatClient{chatResp: openai.ChatCompletionResponse{}}
	client := newOpenAIClient(fake, OpenAIConfig{}, nil)

	if _, err := client.Complete(context.Background(), Request{
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
	}); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestEmbedPropagatesFailure(t *testing.T) {
	fake := &fakeChatClient{embedErr: errors.New("rate limited")}
	client := newOpenAIClient(fake, OpenAIConfig{}, nil)

	if _, err := client.Embed(context.Background(), "发热两天"); err == nil {
		t.Fatal("expected embedding error to propagate")
	}
}

func TestEmbedReturnsVector(t *testing.T) {
	fake := &fakeChatClient{
		embedResp: openai.EmbeddingResponse{
			Data: []openai.Embedding{{Embedding: []float32{0.1, 0.2}}},
		},
	}
	client := newOpenAIClient(fake, OpenAIConfig{}, nil)

	vec, err := client.Embed(context.Background(), "主诉=咳嗽")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 2 || vec[1] != 0.2 {
		t.Fatalf("unexpected vector %v", vec)
	}
}
