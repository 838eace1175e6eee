package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/hirosat/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

const (
	memoryCollection = "memories"
	reportCollection = "reports"
)

// firestoreRepo implements Repository interface using Firestore
type firestoreRepo struct {
	client *firestore.Client
}

// NewFirestore creates a new Firestore repository
func NewFirestore(ctx context.Context, projectID, databaseName string) (Repository, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseName)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseName),
		)
	}

	return &firestoreRepo{client: client}, nil
}

func (r *firestoreRepo) PutMemory(ctx context.Context, memory *model.Memory) error {
	if memory.ID == "" {
		memory.ID = model.NewMemoryID()
	}
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = time.Now()
	}
	memory.UpdatedAt = time.Now()

	doc := r.client.Collection(memoryCollection).Doc(string(memory.ID))
	if _, err := doc.Set(ctx, memory); err != nil {
		return goerr.Wrap(err, "failed to put memory", goerr.V("id", memory.ID))
	}

	return nil
}

func (r *firestoreRepo) GetMemory(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	snap, err := r.client.Collection(memoryCollection).Doc(string(id)).Get(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get memory", goerr.V("id", id))
	}

	var memory model.Memory
	if err := snap.DataTo(&memory); err != nil {
		return nil, goerr.Wrap(err, "failed to decode memory", goerr.V("id", id))
	}

	return &memory, nil
}

func (r *firestoreRepo) ListMemories(ctx context.Context, offset, limit int) ([]*model.Memory, error) {
	query := r.client.Collection(memoryCollection).
		OrderBy("CreatedAt", firestore.Desc).
		Offset(offset).
		Limit(limit)

	var memories []*model.Memory
	iter := query.Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list memories")
		}

		var memory model.Memory
		if err := snap.DataTo(&memory); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory", goerr.V("doc", snap.Ref.ID))
		}
		memories = append(memories, &memory)
	}

	return memories, nil
}

func (r *firestoreRepo) SearchSimilarMemories(ctx context.Context, embedding []float32, limit int) ([]*model.RecalledMemory, error) {
	query := r.client.Collection(memoryCollection).FindNearest(
		"Embedding",
		firestore.Vector32(embedding),
		limit,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{
			DistanceResultField: "vector_distance",
		},
	)

	var recalled []*model.RecalledMemory
	iter := query.Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to search memories")
		}

		var memory model.Memory
		if err := snap.DataTo(&memory); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory", goerr.V("doc", snap.Ref.ID))
		}

		relevance := 0.0
		if v, err := snap.DataAt("vector_distance"); err == nil {
			if distance, ok := v.(float64); ok {
				relevance = 1.0 - distance
			}
		}

		recalled = append(recalled, &model.RecalledMemory{
			Memory:    &memory,
			Relevance: relevance,
		})
	}

	return recalled, nil
}

func (r *firestoreRepo) PutReport(ctx context.Context, report *model.Report) error {
	if report.ID == "" {
		report.ID = model.NewReportID()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}

	doc := r.client.Collection(reportCollection).Doc(string(report.ID))
	if _, err := doc.Set(ctx, report); err != nil {
		return goerr.Wrap(err, "failed to put report", goerr.V("id", report.ID))
	}

	return nil
}

func (r *firestoreRepo) ListReports(ctx context.Context, offset, limit int) ([]*model.Report, error) {
	query := r.client.Collection(reportCollection).
		OrderBy("CreatedAt", firestore.Desc).
		Offset(offset).
		Limit(limit)

	var reports []*model.Report
	iter := query.Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list reports")
		}

		var report model.Report
		if err := snap.DataTo(&report); err != nil {
			return nil, goerr.Wrap(err, "failed to decode report", goerr.V("doc", snap.Ref.ID))
		}
		reports = append(reports, &report)
	}

	return reports, nil
}

func (r *firestoreRepo) Close() error {
	return r.client.Close()
}
