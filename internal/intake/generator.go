package intake

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumohealth/intake-ai-platform/internal/chat"
	"github.com/lumohealth/intake-ai-platform/internal/llm"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

// Generator renders assistant replies: intake question rounds, persona
// updates, and admin knowledge answers.
type Generator struct {
	client     llm.Client
	doctorName string
	logger     *logging.Logger
}

func NewGenerator(client llm.Client, doctorName string, logger *logging.Logger) *Generator {
	if client == nil {
		panic("intake: llm client required")
	}
	if doctorName == "" {
		doctorName = "医生"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{client: client, doctorName: doctorName, logger: logger}
}

// IntroMessage renders the conversation opener.
func (g *Generator) IntroMessage() string {
	return fmt.Sprintf(introTemplate, g.doctorName)
}

// InquiryRound asks the model for follow-up questions and post-processes
// them into exactly three. On model failure it falls back to canned
// questions and reports degraded=true.
func (g *Generator) InquiryRound(ctx context.Context, query, factContext, persona string, history []chat.Message) (reply string, degraded bool) {
	system := fmt.Sprintf(intakeSystemTemplate, g.doctorName, persona, factContext)

	messages := make([]llm.ChatMessage, 0, len(history)+1)
	for _, msg := range history {
		role := llm.ChatRoleAssistant
		if msg.Role == chat.RolePatient {
			role = llm.ChatRoleUser
		}
		messages = append(messages, llm.ChatMessage{Role: role, Content: msg.Content})
	}
	messages = append(messages, llm.ChatMessage{Role: llm.ChatRoleUser, Content: query})

	evidenceParts := []string{factContext, persona}
	for _, msg := range history {
		evidenceParts = append(evidenceParts, msg.Content)
	}
	evidenceParts = append(evidenceParts, query)
	evidence := strings.Join(nonEmpty(evidenceParts), "\n")

	resp, err := g.client.Complete(ctx, llm.Request{
		System:      []string{system},
		Messages:    messages,
		Temperature: 0.4,
	})
	if err != nil {
		g.logger.Warn("inquiry generation failed", "error", err)
		return fallbackQuestions, true
	}
	return pickThreeQuestions(resp.Text, evidence), false
}

// UpdatePersona folds new information into the patient persona. Returns the
// current persona unchanged when the model call fails.
func (g *Generator) UpdatePersona(ctx context.Context, currentPersona, newInfo string) string {
	shown := currentPersona
	if strings.TrimSpace(shown) == "" {
		shown = "（无）"
	}
	resp, err := g.client.Complete(ctx, llm.Request{
		Messages: []llm.ChatMessage{
			{Role: llm.ChatRoleUser, Content: fmt.Sprintf(personaTemplate, shown, newInfo)},
		},
		Temperature: 0.5,
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		if err != nil {
			g.logger.Warn("persona update failed", "error", err)
		}
		return currentPersona
	}
	return strings.TrimSpace(resp.Text)
}

// KnowledgeAnswer answers an administrative question from retrieved
// reference entries. The admin-only refusal covers empty references or an
// empty model reply; a failed model call is an error for the caller.
func (g *Generator) KnowledgeAnswer(ctx context.Context, query, reference string) (string, error) {
	if strings.TrimSpace(reference) == "" {
		return replyAdminOnly, nil
	}
	resp, err := g.client.Complete(ctx, llm.Request{
		Messages: []llm.ChatMessage{
			{Role: llm.ChatRoleUser, Content: fmt.Sprintf(knowledgeAnswerTemplate, reference, query)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("intake: knowledge answer failed: %w", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return replyAdminOnly, nil
	}
	return strings.TrimSpace(resp.Text), nil
}

func nonEmpty(items []string) []string {
	var out []string
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			out = append(out, item)
		}
	}
	return out
}
