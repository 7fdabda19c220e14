package intake

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/lumohealth/intake-ai-platform/internal/llm"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

// Intents the classifier resolves to.
const (
	IntentMedical  = "medical_consult"
	IntentChitchat = "chitchat_admin"
)

// medicalVocab overrides a chitchat classification whenever the message
// carries clearly medical vocabulary. The model occasionally labels short
// symptom reports as small talk.
var medicalVocab = regexp.MustCompile(`药|用药|剂量|副作用|不良反应|过敏|症状|疼|痛|发烧|发热|咳嗽|头晕|腹泻|呕吐|心慌|胸闷|气短|呼吸困难|血压|血糖|心率|感染|炎|高血压|糖尿病|感冒|怀孕|哺乳|诊断|治疗|检查|化验|CT|核磁|B超`)

// Classifier labels patient messages as medical or chitchat.
type Classifier struct {
	client llm.Client
	logger *logging.Logger
}

func NewClassifier(client llm.Client, logger *logging.Logger) *Classifier {
	if client == nil {
		panic("intake: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{client: client, logger: logger}
}

// Classify returns the intent for a message. Only an explicit medical label
// counts as medical; anything else the model says is chitchat. Call failures
// fall back to medical so a flaky model never suppresses intake questions,
// and report degraded=true.
func (c *Classifier) Classify(ctx context.Context, message string) (intent string, degraded bool) {
	resp, err := c.client.Complete(ctx, llm.Request{
		System: []string{classifyPrompt},
		Messages: []llm.ChatMessage{
			{Role: llm.ChatRoleUser, Content: message},
		},
		MaxTokens:   16,
		Temperature: 0,
	})
	if err != nil {
		c.logger.Warn("intent classification failed", "error", err)
		return IntentMedical, true
	}

	intent = IntentChitchat
	if strings.Contains(strings.ToLower(resp.Text), IntentMedical) {
		intent = IntentMedical
	}
	if intent == IntentChitchat && medicalVocab.MatchString(stripSpace(message)) {
		intent = IntentMedical
	}
	return intent, false
}

// stripSpace drops all whitespace, full-width included, so spaced-out
// symptom words still hit the vocabulary override.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
