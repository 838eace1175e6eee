package repository

import (
	"context"

	"github.com/hirosat/ermine/pkg/model"
)

// Repository defines the interface for agent data persistence
type Repository interface {
	// PutMemory saves a long-term memory, overwriting an existing one with the same ID
	PutMemory(ctx context.Context, memory *model.Memory) error

	// GetMemory retrieves a memory by ID
	GetMemory(ctx context.Context, id model.MemoryID) (*model.Memory, error)

	// ListMemories retrieves memories ordered by creation time, newest first
	ListMemories(ctx context.Context, offset, limit int) ([]*model.Memory, error)

	// SearchSimilarMemories performs vector search to find related memories
	SearchSimilarMemories(ctx context.Context, embedding []float32, limit int) ([]*model.RecalledMemory, error)

	// PutReport saves a compiled research report
	PutReport(ctx context.Context, report *model.Report) error

	// ListReports retrieves reports ordered by creation time, newest first
	ListReports(ctx context.Context, offset, limit int) ([]*model.Report, error)

	// Close releases the underlying client
	Close() error
}
