package copilot

import (
	"context"
	"sort"

	"github.com/lumohealth/intake-ai-platform/internal/llm"
	"github.com/lumohealth/intake-ai-platform/internal/memory"
)

const analysisTopK = 3

// RelatedMemory is a memory scored against one chat message.
type RelatedMemory struct {
	Content   string  `json:"content"`
	Source    string  `json:"source"`
	CreatedAt string  `json:"created_at"`
	Score     float64 `json:"score"`
}

// RelatedKnowledge is a knowledge entry scored against one chat message.
type RelatedKnowledge struct {
	Content  string  `json:"content"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// MessageAnalysis shows what the retrieval layer associates with a message.
type MessageAnalysis struct {
	RelatedMemories  []RelatedMemory    `json:"related_memories"`
	RelatedKnowledge []RelatedKnowledge `json:"related_knowledge"`
}

// AnalyzeMessage scores one stored chat message against the patient's
// memories and the whole knowledge base. Returns nil when the message does
// not exist or cannot be embedded.
func (s *Service) AnalyzeMessage(ctx context.Context, messageID int64, patientID string) (*MessageAnalysis, error) {
	msg, err := s.chats.Get(ctx, messageID, patientID)
	if err != nil || msg == nil {
		return nil, err
	}
	if s.embedder == nil {
		return nil, nil
	}
	queryVec, err := s.embedder.Embed(ctx, msg.Content)
	if err != nil {
		s.logger.Warn("analysis embedding failed", "patient_id", patientID, "error", err)
		return nil, nil
	}

	memories, err := s.memories.All(ctx, patientID)
	if err != nil {
		return nil, err
	}
	var relatedMemories []RelatedMemory
	for _, m := range memories {
		if len(m.Embedding) == 0 {
			continue
		}
		relatedMemories = append(relatedMemories, RelatedMemory{
			Content:   m.Content,
			Source:    memorySource(m),
			CreatedAt: m.CreatedAt,
			Score:     llm.CosineSimilarity(queryVec, m.Embedding),
		})
	}
	sort.SliceStable(relatedMemories, func(i, j int) bool {
		return relatedMemories[i].Score > relatedMemories[j].Score
	})
	if len(relatedMemories) > analysisTopK {
		relatedMemories = relatedMemories[:analysisTopK]
	}

	entries, err := s.knowledge.List(ctx)
	if err != nil {
		return nil, err
	}
	var relatedKnowledge []RelatedKnowledge
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		relatedKnowledge = append(relatedKnowledge, RelatedKnowledge{
			Content:  e.Content,
			Category: e.Category,
			Score:    llm.CosineSimilarity(queryVec, e.Embedding),
		})
	}
	sort.SliceStable(relatedKnowledge, func(i, j int) bool {
		return relatedKnowledge[i].Score > relatedKnowledge[j].Score
	})
	if len(relatedKnowledge) > analysisTopK {
		relatedKnowledge = relatedKnowledge[:analysisTopK]
	}

	return &MessageAnalysis{
		RelatedMemories:  relatedMemories,
		RelatedKnowledge: relatedKnowledge,
	}, nil
}

func memorySource(m memory.Memory) string {
	if m.Source == "" {
		return "unknown"
	}
	return m.Source
}
