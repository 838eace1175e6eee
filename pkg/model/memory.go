package model

import (
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
)

type MemoryID string

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// Memory is a long-term memory extracted from a conversation. The
// embedding covers content and context combined (see EmbeddingText).
type Memory struct {
	ID        MemoryID
	Content   string
	Context   string
	Author    string
	Embedding firestore.Vector32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmbeddingText returns the combined text that is embedded and searched.
func (m *Memory) EmbeddingText() string {
	return fmt.Sprintf("%s\n\nContext: %s", m.Content, m.Context)
}

// RecalledMemory is a memory returned from vector search with its
// relevance score.
type RecalledMemory struct {
	Memory    *Memory
	Relevance float64
}

// Format renders a recalled memory for inclusion in a system prompt.
func (r *RecalledMemory) Format() string {
	return fmt.Sprintf("Previous memory (%.2f relevance):\n%s\nContext: %s",
		r.Relevance, r.Memory.Content, r.Memory.Context)
}
