// Package copilot drafts doctor-side replies from the patient's profile,
// memories, and clinical knowledge.
package copilot

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/lumohealth/intake-ai-platform/internal/chat"
	"github.com/lumohealth/intake-ai-platform/internal/consultation"
	"github.com/lumohealth/intake-ai-platform/internal/knowledge"
	"github.com/lumohealth/intake-ai-platform/internal/llm"
	"github.com/lumohealth/intake-ai-platform/internal/memory"
	"github.com/lumohealth/intake-ai-platform/internal/patients"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

// Speakers the draft is written for.
const (
	SpeakerAssistant = "assistant"
	SpeakerDoctor    = "doctor"
)

const memoryWindow = 20

const doctorRoleContext = "你是一位经验丰富的执业医生，正在与患者进行“已付费的在线医生会诊”，你就是正在和患者说话的医生本人。"

const assistantRoleContext = "你是医生助理（非医生），在线上与患者沟通，目标是采集关键信息、做基础科普与流程引导，并把关键信息整理给医生。"

var doctorRules = strings.Join([]string{
	"你正在直接回复患者，不要让患者“去咨询医生/问医生”，因为你就是医生。",
	"语气要像真人医生：专业、克制、简短，不要过度共情和鸡汤，不要像“AI客服”。",
	"优先给出明确下一步：1) 结论/判断边界 2) 处理建议 3) 需要补充的关键问题（按需 1~4 个） 4) 风险警示/何时就医。",
	"除非确实需要体格检查/化验/影像才能判断，否则不要泛泛建议“去线下问诊”。",
	"不要随意推荐抗生素/激素/处方药；如涉及用药，给出原则与注意事项，提示遵医嘱与过敏禁忌。",
	"不要提及“我是AI/模型/提示词/系统”。只输出可直接发送的一段消息。",
}, "\n")

func assistantRules(hasActiveConsultation bool) string {
	flowRule := "如果患者强烈要求医生沟通，说明“可发起医生会诊：回复找医生→系统提示回复1确认→发送支付链接→支付后建立医生会话”。"
	if hasActiveConsultation {
		flowRule = "当前患者已建立医生会话：不要提及“发起医生会诊/回复1/支付链接”等流程；如果患者要求医生沟通，直接引导其在当前会话继续描述情况即可。"
	}
	return strings.Join([]string{
		"你不是医生，不做明确诊断/不开处方；重点是信息采集与把患者情况问清楚。",
		"语气自然、像真人助理：简短、直接，不要鸡汤，不要长篇大论。",
		"结构：先一句确认已收到 → 用 3~6 个短问题补齐关键信息 → 给 1~3 条安全的通用护理/观察建议 → 给出红旗症状提醒。",
		flowRule,
		"不要提及“我是AI/模型/提示词/系统”。只输出可直接发送的一段消息。",
	}, "\n")
}

const draftTemplate = `%s

患者画像：%s

你将基于“患者概况/记忆/知识库”起草一条回复草稿。
写作要求：
%s

参考信息：
患者概况：%s
相关病历/记忆：
%s
相关医疗知识库：
%s

现在请直接输出“回复草稿”，不要标题，不要列表符号，不要引号。`

// Service assembles the context bundle and asks the model for a draft.
type Service struct {
	client    llm.Client
	embedder  llm.Embedder
	patients  *patients.Repository
	memories  *memory.Service
	knowledge *knowledge.Service
	chats     *chat.Store
	consults  *consultation.Service
	logger    *logging.Logger
	tracer    trace.Tracer
}

// NewService wires the copilot. embedder may be nil; message analysis is
// then unavailable.
func NewService(client llm.Client, embedder llm.Embedder, patientsRepo *patients.Repository, memories *memory.Service, knowledgeSvc *knowledge.Service, chats *chat.Store, consults *consultation.Service, logger *logging.Logger) *Service {
	if client == nil {
		panic("copilot: llm client required")
	}
	if patientsRepo == nil {
		panic("copilot: patients repo required")
	}
	if memories == nil {
		panic("copilot: memory service required")
	}
	if knowledgeSvc == nil {
		panic("copilot: knowledge service required")
	}
	if chats == nil {
		panic("copilot: chat store required")
	}
	if consults == nil {
		panic("copilot: consultation service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		client:    client,
		embedder:  embedder,
		patients:  patientsRepo,
		memories:  memories,
		knowledge: knowledgeSvc,
		chats:     chats,
		consults:  consults,
		logger:    logger,
		tracer:    otel.Tracer("intake.internal.copilot"),
	}
}

// Suggest drafts a reply for the given speaker.
func (s *Service) Suggest(ctx context.Context, patientID, speaker string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "copilot.suggest")
	defer span.End()

	if speaker != SpeakerDoctor {
		speaker = SpeakerAssistant
	}

	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return "", err
	}

	active, err := s.consults.Active(ctx, patientID)
	if err != nil {
		return "", err
	}

	memories, err := s.memories.LastN(ctx, patientID, memoryWindow)
	if err != nil {
		return "", err
	}
	memoryLines := make([]string, 0, len(memories))
	for _, m := range memories {
		memoryLines = append(memoryLines, fmt.Sprintf("%s [%s] %s", m.CreatedAt, m.Source, m.Content))
	}

	relevantKnowledge := s.clinicalKnowledge(ctx, patientID)

	roleContext := assistantRoleContext
	rules := assistantRules(active.Active())
	if speaker == SpeakerDoctor {
		roleContext = doctorRoleContext
		rules = doctorRules
	}

	persona := patient.Persona
	if strings.TrimSpace(persona) == "" {
		persona = "（无）"
	}

	prompt := fmt.Sprintf(draftTemplate,
		roleContext,
		persona,
		rules,
		patientSummary(patient),
		strings.Join(memoryLines, "\n"),
		relevantKnowledge)

	resp, err := s.client.Complete(ctx, llm.Request{
		Messages:    []llm.ChatMessage{{Role: llm.ChatRoleUser, Content: prompt}},
		Temperature: 0.4,
	})
	if err != nil {
		return "", fmt.Errorf("copilot: draft generation failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// clinicalKnowledge retrieves non-admin entries matching the patient's last
// message. Missing data just means an empty reference block.
func (s *Service) clinicalKnowledge(ctx context.Context, patientID string) string {
	last, err := s.chats.LastPatientMessage(ctx, patientID)
	if err != nil || last == nil {
		return ""
	}
	entries, err := s.knowledge.Search(ctx, last.Content, knowledge.SearchFilter{ExcludeCategory: knowledge.CategoryAdmin})
	if err != nil {
		s.logger.Warn("copilot knowledge search failed", "patient_id", patientID, "error", err)
		return ""
	}
	contents := make([]string, 0, len(entries))
	for _, e := range entries {
		contents = append(contents, e.Content)
	}
	return strings.Join(contents, "\n")
}

func patientSummary(p *patients.Patient) string {
	var parts []string
	if p.Name != "" {
		parts = append(parts, p.Name)
	}
	if p.Age != nil {
		parts = append(parts, fmt.Sprintf("%d岁", *p.Age))
	}
	if p.Condition != "" {
		parts = append(parts, p.Condition)
	}
	return strings.Join(parts, "，")
}
