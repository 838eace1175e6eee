package repository

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/hirosat/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// memoryRepo is an in-process Repository for tests and local runs
type memoryRepo struct {
	mu       sync.RWMutex
	memories map[model.MemoryID]*model.Memory
	reports  map[model.ReportID]*model.Report
}

// NewMemory creates a new in-process repository
func NewMemory() Repository {
	return &memoryRepo{
		memories: map[model.MemoryID]*model.Memory{},
		reports:  map[model.ReportID]*model.Report{},
	}
}

func (r *memoryRepo) PutMemory(ctx context.Context, memory *model.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if memory.ID == "" {
		memory.ID = model.NewMemoryID()
	}
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = time.Now()
	}
	memory.UpdatedAt = time.Now()

	copied := *memory
	r.memories[memory.ID] = &copied
	return nil
}

func (r *memoryRepo) GetMemory(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	memory, ok := r.memories[id]
	if !ok {
		return nil, goerr.New("memory not found", goerr.V("id", id))
	}

	copied := *memory
	return &copied, nil
}

func (r *memoryRepo) ListMemories(ctx context.Context, offset, limit int) ([]*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*model.Memory, 0, len(r.memories))
	for _, m := range r.memories {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	results := make([]*model.Memory, len(all))
	for i, m := range all {
		copied := *m
		results[i] = &copied
	}
	return results, nil
}

func (r *memoryRepo) SearchSimilarMemories(ctx context.Context, embedding []float32, limit int) ([]*model.RecalledMemory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var recalled []*model.RecalledMemory
	for _, m := range r.memories {
		copied := *m
		recalled = append(recalled, &model.RecalledMemory{
			Memory:    &copied,
			Relevance: cosineSimilarity(embedding, m.Embedding),
		})
	}
	sort.Slice(recalled, func(i, j int) bool {
		return recalled[i].Relevance > recalled[j].Relevance
	})

	if limit > 0 && limit < len(recalled) {
		recalled = recalled[:limit]
	}
	return recalled, nil
}

func (r *memoryRepo) PutReport(ctx context.Context, report *model.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if report.ID == "" {
		report.ID = model.NewReportID()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}

	copied := *report
	r.reports[report.ID] = &copied
	return nil
}

func (r *memoryRepo) ListReports(ctx context.Context, offset, limit int) ([]*model.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*model.Report, 0, len(r.reports))
	for _, rep := range r.reports {
		all = append(all, rep)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	results := make([]*model.Report, len(all))
	for i, rep := range all {
		copied := *rep
		results[i] = &copied
	}
	return results, nil
}

func (r *memoryRepo) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
