package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/lumohealth/intake-ai-platform/internal/chat"
	"github.com/lumohealth/intake-ai-platform/internal/consultation"
	"github.com/lumohealth/intake-ai-platform/internal/knowledge"
	"github.com/lumohealth/intake-ai-platform/internal/memory"
	"github.com/lumohealth/intake-ai-platform/internal/observability/metrics"
	"github.com/lumohealth/intake-ai-platform/internal/patients"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

// IntentError marks a turn that fell through to the generic apology.
const IntentError = "error"

// Result is what one processed patient message resolves to. The degraded
// flags mark turns that succeeded on a fallback path: the classifier call
// failed (intent defaulted to medical) or the generator fell back to the
// canned question set.
type Result struct {
	Reply              string `json:"response"`
	RelatedFacts       string `json:"related_facts"`
	Intent             string `json:"intent"`
	ClassifierDegraded bool   `json:"classifier_degraded,omitempty"`
	GeneratorDegraded  bool   `json:"generator_degraded,omitempty"`
	Err                string `json:"error,omitempty"`
}

// patientReader is the slice of the patients repo the controller needs.
type patientReader interface {
	GetByID(ctx context.Context, id string) (*patients.Patient, error)
	GetPersona(ctx context.Context, id string) (string, error)
	UpdatePersona(ctx context.Context, id, persona string) error
}

// consultationFlow is the slice of the consultation service the controller
// drives.
type consultationFlow interface {
	Open(ctx context.Context, patientID string) (*consultation.Consultation, error)
	Request(ctx context.Context, patientID, trigger string) (*consultation.Consultation, error)
}

// factStore is the memory service surface used per turn.
type factStore interface {
	ExtractAndStore(ctx context.Context, patientID, source, text string)
	StoreFact(ctx context.Context, patientID, source, content string) error
	RelevantFacts(ctx context.Context, patientID, query string) ([]memory.Memory, error)
}

// knowledgeSearcher retrieves admin reference entries.
type knowledgeSearcher interface {
	Search(ctx context.Context, query string, filter knowledge.SearchFilter) ([]knowledge.Entry, error)
}

// Controller routes each patient message through confirmation handling,
// doctor-request detection, intent classification, and the medical or
// admin branch.
type Controller struct {
	store      *chat.Store
	history    *HistoryCache
	patients   patientReader
	consults   consultationFlow
	facts      factStore
	knowledge  knowledgeSearcher
	classifier *Classifier
	generator  *Generator
	inquiries  *InquiryState
	metrics    *metrics.IntakeMetrics
	logger     *logging.Logger
	tracer     trace.Tracer
}

// ControllerDeps bundles the controller's collaborators.
type ControllerDeps struct {
	Store      *chat.Store
	History    *HistoryCache
	Patients   patientReader
	Consults   consultationFlow
	Facts      factStore
	Knowledge  knowledgeSearcher
	Classifier *Classifier
	Generator  *Generator
	Inquiries  *InquiryState
	Metrics    *metrics.IntakeMetrics
	Logger     *logging.Logger
}

func NewController(deps ControllerDeps) *Controller {
	if deps.Store == nil {
		panic("intake: chat store required")
	}
	if deps.History == nil {
		panic("intake: history cache required")
	}
	if deps.Patients == nil {
		panic("intake: patient reader required")
	}
	if deps.Consults == nil {
		panic("intake: consultation flow required")
	}
	if deps.Facts == nil {
		panic("intake: fact store required")
	}
	if deps.Knowledge == nil {
		panic("intake: knowledge searcher required")
	}
	if deps.Classifier == nil {
		panic("intake: classifier required")
	}
	if deps.Generator == nil {
		panic("intake: generator required")
	}
	if deps.Inquiries == nil {
		panic("intake: inquiry state required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Controller{
		store:      deps.Store,
		history:    deps.History,
		patients:   deps.Patients,
		consults:   deps.Consults,
		facts:      deps.Facts,
		knowledge:  deps.Knowledge,
		classifier: deps.Classifier,
		generator:  deps.Generator,
		inquiries:  deps.Inquiries,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		tracer:     otel.Tracer("intake.internal.intake"),
	}
}

// ProcessMessage runs one patient chat turn. Unexpected failures never
// surface as an HTTP error; the patient gets the generic apology and the
// detail rides along on the result.
func (c *Controller) ProcessMessage(ctx context.Context, patientID, message string) Result {
	ctx, span := c.tracer.Start(ctx, "intake.process_message")
	defer span.End()
	start := time.Now()

	result := c.process(ctx, patientID, message)

	status := "ok"
	if result.Err != "" {
		status = "error"
	}
	c.metrics.ObserveTurn(result.Intent, status)
	c.logger.Info("chat turn processed",
		"patient_id", patientID,
		"intent", result.Intent,
		"duration_ms", time.Since(start).Milliseconds())
	return result
}

func (c *Controller) process(ctx context.Context, patientID, message string) Result {
	normalized := strings.TrimSpace(message)

	// Snapshot the history before this turn's message lands so the
	// generator does not see the query twice.
	history, err := c.history.Recent(ctx, patientID, 0)
	if err != nil {
		c.logger.Warn("history load failed", "patient_id", patientID, "error", err)
		history = nil
	}

	c.insertMessage(ctx, patientID, chat.RolePatient, message)

	if isConfirmation(normalized) {
		return c.handleConfirmation(ctx, patientID)
	}

	c.facts.ExtractAndStore(ctx, patientID, memory.SourcePatient, message)

	if wantsDoctor(message) {
		return c.handleDoctorRequest(ctx, patientID)
	}

	intent, classifierDegraded := c.classifier.Classify(ctx, message)

	c.updatePersona(ctx, patientID, message)

	var result Result
	if intent == IntentMedical {
		result = c.handleMedical(ctx, patientID, message, history)
	} else {
		result = c.handleAdmin(ctx, patientID, message)
	}
	result.ClassifierDegraded = classifierDegraded
	return result
}

func (c *Controller) handleConfirmation(ctx context.Context, patientID string) Result {
	open, err := c.consults.Open(ctx, patientID)
	if err != nil {
		return c.fail(ctx, patientID, err)
	}

	switch {
	case open == nil:
		return c.reply(ctx, patientID, replyConfirmNoPending, "", IntentMedical,
			"用户发送1，但未检测到会诊请求")
	case open.Status == consultation.StatusPaid:
		return c.reply(ctx, patientID, replyConfirmAlreadyPaid, "", IntentMedical,
			"用户发送1，但会诊已支付")
	}

	requested, err := c.consults.Request(ctx, patientID, consultation.TriggerAI)
	if err != nil {
		return c.fail(ctx, patientID, err)
	}
	payMsg := fmt.Sprintf(payLinkTemplate, consultation.PayLink(requested.PayToken))
	return c.reply(ctx, patientID, payMsg, "", IntentMedical,
		"用户确认医生会诊，已发送支付链接")
}

func (c *Controller) handleDoctorRequest(ctx context.Context, patientID string) Result {
	open, err := c.consults.Open(ctx, patientID)
	if err != nil {
		return c.fail(ctx, patientID, err)
	}
	if open != nil && open.Status == consultation.StatusPaid {
		return c.reply(ctx, patientID, replyDoctorAlreadyPaid, "", IntentMedical,
			"用户请求医生会诊，但会诊已支付")
	}
	if _, err := c.consults.Request(ctx, patientID, consultation.TriggerAI); err != nil {
		return c.fail(ctx, patientID, err)
	}
	return c.reply(ctx, patientID, replyDoctorOffer, "", IntentMedical,
		"用户请求医生会诊，等待发送1确认")
}

func (c *Controller) handleMedical(ctx context.Context, patientID, message string, history []chat.Message) Result {
	count, err := c.inquiries.Count(ctx, patientID)
	if err != nil {
		return c.fail(ctx, patientID, err)
	}
	if count >= c.inquiries.MaxCount() {
		// Question budget exhausted: stay silent so the conversation
		// waits for the doctor side.
		return Result{Reply: "", RelatedFacts: "", Intent: IntentMedical}
	}

	patient, err := c.patients.GetByID(ctx, patientID)
	if err != nil {
		return c.fail(ctx, patientID, err)
	}
	condition := patient.Condition
	persona := patient.Persona

	factContext := c.buildFactContext(ctx, patientID, message, condition)

	response, generatorDegraded := c.generator.InquiryRound(ctx, message, factContext, persona, history)

	c.insertMessage(ctx, patientID, chat.RoleAI, response)
	if err := c.inquiries.Increment(ctx, patientID); err != nil {
		c.logger.Warn("inquiry increment failed", "patient_id", patientID, "error", err)
	}
	c.facts.ExtractAndStore(ctx, patientID, memory.SourceAI, response)

	return Result{
		Reply:             response,
		RelatedFacts:      factContext,
		Intent:            IntentMedical,
		GeneratorDegraded: generatorDegraded,
	}
}

func (c *Controller) handleAdmin(ctx context.Context, patientID, message string) Result {
	entries, err := c.knowledge.Search(ctx, message, knowledge.SearchFilter{Category: knowledge.CategoryAdmin})
	if err != nil {
		return c.fail(ctx, patientID, err)
	}
	contents := make([]string, 0, len(entries))
	for _, e := range entries {
		contents = append(contents, e.Content)
	}
	reference := strings.Join(contents, "\n")

	response, err := c.generator.KnowledgeAnswer(ctx, message, reference)
	if err != nil {
		return c.fail(ctx, patientID, err)
	}

	c.insertMessage(ctx, patientID, chat.RoleAI, response)
	c.facts.ExtractAndStore(ctx, patientID, memory.SourceAI, response)

	return Result{Reply: response, RelatedFacts: reference, Intent: IntentChitchat}
}

// buildFactContext assembles the baseline condition plus retrieved facts.
func (c *Controller) buildFactContext(ctx context.Context, patientID, message, condition string) string {
	var parts []string
	if strings.TrimSpace(condition) != "" {
		parts = append(parts, "基础情况："+condition)
	}
	facts, err := c.facts.RelevantFacts(ctx, patientID, message)
	if err != nil {
		c.logger.Warn("fact retrieval failed", "patient_id", patientID, "error", err)
	}
	if len(facts) > 0 {
		lines := make([]string, 0, len(facts))
		for _, f := range facts {
			lines = append(lines, f.Content)
		}
		parts = append(parts, "关键信息：\n"+strings.Join(lines, "\n"))
	}
	return strings.Join(parts, "\n")
}

func (c *Controller) updatePersona(ctx context.Context, patientID, message string) {
	current, err := c.patients.GetPersona(ctx, patientID)
	if err != nil {
		c.logger.Warn("persona read failed", "patient_id", patientID, "error", err)
		return
	}
	updated := c.generator.UpdatePersona(ctx, current, message)
	if updated == current {
		return
	}
	if err := c.patients.UpdatePersona(ctx, patientID, updated); err != nil {
		c.logger.Warn("persona write failed", "patient_id", patientID, "error", err)
	}
}

// reply persists an assistant message, records the audit note as facts, and
// packages the result.
func (c *Controller) reply(ctx context.Context, patientID, response, relatedFacts, intent, auditNote string) Result {
	c.insertMessage(ctx, patientID, chat.RoleAI, response)
	if auditNote != "" {
		if err := c.facts.StoreFact(ctx, patientID, memory.SourceAI, auditNote); err != nil {
			c.logger.Warn("audit note store failed", "patient_id", patientID, "error", err)
		}
	}
	return Result{Reply: response, RelatedFacts: relatedFacts, Intent: intent}
}

func (c *Controller) fail(ctx context.Context, patientID string, err error) Result {
	c.logger.Error("chat turn failed", "patient_id", patientID, "error", err)
	return Result{Reply: replyFallback, RelatedFacts: "", Intent: IntentError, Err: err.Error()}
}

func (c *Controller) insertMessage(ctx context.Context, patientID, role, content string) {
	id, err := c.store.Insert(ctx, patientID, role, content)
	if err != nil {
		c.logger.Warn("message insert failed", "patient_id", patientID, "role", role, "error", err)
		return
	}
	if id == 0 {
		return
	}
	c.history.Append(ctx, patientID, chat.Message{
		ID:        id,
		PatientID: patientID,
		Role:      role,
		Content:   content,
	})
}
