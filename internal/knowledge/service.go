package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lumohealth/intake-ai-platform/internal/llm"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

const (
	searchThreshold = 0.4
	searchTopK      = 3
)

// SearchFilter narrows a similarity search to one category or excludes one.
type SearchFilter struct {
	Category        string
	ExcludeCategory string
}

// Service layers embedding maintenance and similarity search over the repo.
type Service struct {
	repo     *Repository
	embedder llm.Embedder
	logger   *logging.Logger
}

// NewService wires the knowledge service. embedder may be nil; entries are
// then stored without vectors and search returns nothing.
func NewService(repo *Repository, embedder llm.Embedder, logger *logging.Logger) *Service {
	if repo == nil {
		panic("knowledge: repo required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, embedder: embedder, logger: logger}
}

// Create stores and embeds an entry. An embedding failure is an error: an
// unembedded entry can never match a similarity search.
func (s *Service) Create(ctx context.Context, content, category string) (int64, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return 0, fmt.Errorf("knowledge: content is required")
	}
	if category == "" {
		category = CategoryGeneral
	}
	vec, err := s.embed(ctx, content)
	if err != nil {
		return 0, err
	}
	return s.repo.Create(ctx, content, category, vec)
}

// Update rewrites an entry and recomputes its embedding.
func (s *Service) Update(ctx context.Context, id int64, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("knowledge: content is required")
	}
	vec, err := s.embed(ctx, content)
	if err != nil {
		return err
	}
	return s.repo.Update(ctx, id, content, vec)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*Entry, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Entry, error) {
	return s.repo.List(ctx)
}

// Import splits bulk text into lines and stores each as an admin entry.
func (s *Service) Import(ctx context.Context, text string) (int, error) {
	imported := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, err := s.Create(ctx, line, CategoryAdmin); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

// Search returns up to three entries whose embeddings clear the similarity
// bar against the query, best first. Entries without vectors never match.
func (s *Service) Search(ctx context.Context, query string, filter SearchFilter) ([]Entry, error) {
	if s.embedder == nil {
		return nil, nil
	}
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("knowledge query embedding failed", "error", err)
		return nil, nil
	}
	return s.SearchByVector(ctx, queryVec, filter)
}

// SearchByVector is Search with a pre-computed query embedding.
func (s *Service) SearchByVector(ctx context.Context, queryVec []float32, filter SearchFilter) ([]Entry, error) {
	if len(queryVec) == 0 {
		return nil, nil
	}
	entries, err := s.candidates(ctx, filter)
	if err != nil {
		return nil, err
	}

	type scored struct {
		entry Entry
		score float64
	}
	var hits []scored
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		score := llm.CosineSimilarity(queryVec, e.Embedding)
		if score > searchThreshold {
			hits = append(hits, scored{entry: e, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > searchTopK {
		hits = hits[:searchTopK]
	}
	out := make([]Entry, len(hits))
	for i, h := range hits {
		out[i] = h.entry
	}
	return out, nil
}

func (s *Service) candidates(ctx context.Context, filter SearchFilter) ([]Entry, error) {
	switch {
	case filter.Category != "":
		return s.repo.ListByCategory(ctx, filter.Category)
	case filter.ExcludeCategory != "":
		return s.repo.ListExcludingCategory(ctx, filter.ExcludeCategory)
	default:
		return s.repo.List(ctx)
	}
}

func (s *Service) embed(ctx context.Context, content string) ([]float32, error) {
	if s.embedder == nil {
		return nil, nil
	}
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("knowledge: embed content failed: %w", err)
	}
	return vec, nil
}
