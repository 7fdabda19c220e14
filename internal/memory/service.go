package memory

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/lumohealth/intake-ai-platform/internal/llm"
	"github.com/lumohealth/intake-ai-platform/internal/observability/metrics"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

const (
	maxFactLength   = 80
	maxFactsPerPass = 12

	retrievalWindow    = 300
	retrievalThreshold = 0.35
	retrievalTopK      = 8
)

const extractPrompt = `你是医疗信息抽取助手。从给定文本中提取与患者健康相关的关键信息（症状、时间、用药、过敏、检查结果、既往史等）。
要求：
- 每条信息一行，简短客观，不要编号以外的解释。
- 不要输出与健康无关的内容。
- 最多 12 条；没有可提取内容时输出空。`

var factLinePrefix = regexp.MustCompile(`^[\d\.\-\*•\s]+`)

// Service extracts facts from free text, embeds them, and retrieves
// relevant facts by cosine similarity.
type Service struct {
	repo     *Repository
	client   llm.Client
	embedder llm.Embedder
	model    string
	metrics  *metrics.IntakeMetrics
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewService wires the fact pipeline. embedder may be nil; storage then
// degrades to unembedded rows and retrieval to recency ordering.
func NewService(repo *Repository, client llm.Client, embedder llm.Embedder, model string, logger *logging.Logger) *Service {
	if repo == nil {
		panic("memory: repo required")
	}
	if client == nil {
		panic("memory: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:     repo,
		client:   client,
		embedder: embedder,
		model:    model,
		logger:   logger,
		tracer:   otel.Tracer("intake.internal.memory"),
	}
}

// UseMetrics attaches the metrics sink; the service works without one.
func (s *Service) UseMetrics(m *metrics.IntakeMetrics) {
	s.metrics = m
}

// ExtractAndStore pulls facts out of text and persists the new ones.
// Failures are logged and swallowed so chat turns never fail on fact
// bookkeeping.
func (s *Service) ExtractAndStore(ctx context.Context, patientID, source, text string) {
	ctx, span := s.tracer.Start(ctx, "memory.extract_and_store")
	defer span.End()

	facts, err := s.extract(ctx, text)
	if err != nil {
		s.logger.Warn("fact extraction failed", "patient_id", patientID, "error", err)
		return
	}
	if len(facts) == 0 {
		return
	}

	pending := make([]PendingFact, 0, len(facts))
	for _, content := range facts {
		exists, err := s.repo.Exists(ctx, patientID, source, content)
		if err != nil {
			s.logger.Warn("fact dedup check failed", "patient_id", patientID, "error", err)
			continue
		}
		if exists {
			continue
		}
		var embedding []float32
		if s.embedder != nil {
			embedding, err = s.embedder.Embed(ctx, content)
			if err != nil {
				s.logger.Warn("fact embedding failed", "patient_id", patientID, "error", err)
				embedding = nil
			}
		}
		pending = append(pending, PendingFact{Content: content, Embedding: embedding})
	}
	if len(pending) == 0 {
		return
	}
	if err := s.repo.SaveBatch(ctx, patientID, source, pending); err != nil {
		s.logger.Error("fact batch insert failed", "patient_id", patientID, "error", err)
		return
	}
	s.metrics.ObserveFactsStored(source, len(pending))
	s.logger.Info("facts stored", "patient_id", patientID, "source", source, "count", len(pending))
}

// StoreFact persists a single pre-written fact, embedding it when possible.
func (s *Service) StoreFact(ctx context.Context, patientID, source, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	exists, err := s.repo.Exists(ctx, patientID, source, content)
	if err != nil || exists {
		return err
	}
	var embedding []float32
	if s.embedder != nil {
		if vec, embErr := s.embedder.Embed(ctx, content); embErr == nil {
			embedding = vec
		} else {
			s.logger.Warn("fact embedding failed", "patient_id", patientID, "error", embErr)
		}
	}
	if err := s.repo.SaveBatch(ctx, patientID, source, []PendingFact{{Content: content, Embedding: embedding}}); err != nil {
		return err
	}
	s.metrics.ObserveFactsStored(source, 1)
	return nil
}

// RelevantFacts returns the facts most similar to query among the newest
// window. Recency is the fallback only when the query has no embedding; a
// scored query that clears nothing returns no facts.
func (s *Service) RelevantFacts(ctx context.Context, patientID, query string) ([]Memory, error) {
	ctx, span := s.tracer.Start(ctx, "memory.relevant_facts")
	defer span.End()

	window, err := s.repo.NewestForRetrieval(ctx, patientID, retrievalWindow)
	if err != nil {
		return nil, err
	}
	if len(window) == 0 {
		return nil, nil
	}

	var queryVec []float32
	if s.embedder != nil {
		queryVec, err = s.embedder.Embed(ctx, query)
		if err != nil {
			s.logger.Warn("query embedding failed", "patient_id", patientID, "error", err)
			queryVec = nil
		}
	}

	if len(queryVec) == 0 {
		if len(window) > retrievalTopK {
			window = window[:retrievalTopK]
		}
		return window, nil
	}

	type scored struct {
		mem   Memory
		score float64
	}
	var hits []scored
	for _, m := range window {
		if len(m.Embedding) == 0 {
			continue
		}
		score := llm.CosineSimilarity(queryVec, m.Embedding)
		if score > retrievalThreshold {
			hits = append(hits, scored{mem: m, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > retrievalTopK {
		hits = hits[:retrievalTopK]
	}
	out := make([]Memory, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.mem)
	}
	return out, nil
}

// LastN exposes the copilot window on the service.
func (s *Service) LastN(ctx context.Context, patientID string, n int) ([]Memory, error) {
	return s.repo.LastN(ctx, patientID, n)
}

// All exposes every memory for similarity scoring.
func (s *Service) All(ctx context.Context, patientID string) ([]Memory, error) {
	return s.repo.AllForPatient(ctx, patientID)
}

// List exposes recent memories for the doctor console.
func (s *Service) List(ctx context.Context, patientID string, limit int) ([]Memory, error) {
	return s.repo.ListForPatient(ctx, patientID, limit)
}

func (s *Service) extract(ctx context.Context, text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	resp, err := s.client.Complete(ctx, llm.Request{
		System: []string{extractPrompt},
		Messages: []llm.ChatMessage{
			{Role: llm.ChatRoleUser, Content: text},
		},
		MaxTokens:   512,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, err
	}
	return parseFactList(resp.Text), nil
}

// parseFactList normalizes LLM output into a deduplicated fact list.
func parseFactList(raw string) []string {
	seen := make(map[string]struct{})
	var facts []string
	for _, line := range strings.Split(raw, "\n") {
		line = factLinePrefix.ReplaceAllString(strings.TrimSpace(line), "")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		runes := []rune(line)
		if len(runes) > maxFactLength {
			line = string(runes[:maxFactLength])
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		facts = append(facts, line)
		if len(facts) >= maxFactsPerPass {
			break
		}
	}
	return facts
}
