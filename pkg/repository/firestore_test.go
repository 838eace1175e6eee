package repository_test

import (
	"context"
	"math/rand"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/gt"

	"github.com/hirosat/ermine/pkg/model"
	"github.com/hirosat/ermine/pkg/repository"
)

func setupFirestore(t *testing.T) repository.Repository {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	repo, err := repository.NewFirestore(context.Background(), projectID, databaseID)
	gt.NoError(t, err)
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})

	return repo
}

func randomEmbedding(dims int) firestore.Vector32 {
	embedding := make(firestore.Vector32, dims)
	for i := range embedding {
		embedding[i] = rand.Float32()
	}
	return embedding
}

func TestFirestorePutAndGetMemory(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	memory := &model.Memory{
		ID:        model.NewMemoryID(),
		Content:   "User prefers answers in Japanese",
		Context:   "Mentioned during a research request",
		Author:    "U123",
		Embedding: randomEmbedding(8),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	gt.NoError(t, repo.PutMemory(ctx, memory))

	retrieved, err := repo.GetMemory(ctx, memory.ID)
	gt.NoError(t, err)
	gt.V(t, retrieved.Content).Equal(memory.Content)
	gt.V(t, retrieved.Author).Equal(memory.Author)
}

func TestFirestoreSearchSimilarMemories(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	embedding := randomEmbedding(8)
	memory := &model.Memory{
		ID:        model.NewMemoryID(),
		Content:   "User works on a Go research agent",
		Context:   "Background shared in a thread",
		Author:    "U456",
		Embedding: embedding,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	gt.NoError(t, repo.PutMemory(ctx, memory))

	recalled, err := repo.SearchSimilarMemories(ctx, embedding, 5)
	gt.NoError(t, err)
	gt.A(t, recalled).Longer(0)

	for _, r := range recalled {
		gt.V(t, r.Memory).NotNil()
		gt.True(t, r.Memory.Content != "")
	}
}

func TestFirestorePutAndListReports(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	report := &model.Report{
		ID:        model.NewReportID(),
		Title:     "Test Report",
		Micro:     "A short summary used only by the integration test.",
		Digest:    []string{"line one", "line two", "line three"},
		Tags:      []string{"test"},
		ReadState: "unread",
		CreatedAt: time.Now(),
	}
	gt.NoError(t, repo.PutReport(ctx, report))

	reports, err := repo.ListReports(ctx, 0, 10)
	gt.NoError(t, err)
	gt.A(t, reports).Longer(0)
}
