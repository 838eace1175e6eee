package adapter

import (
	"context"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
)

// Storage is the interface for generated artifact storage
type Storage interface {
	// Put returns a writer to save an artifact to storage
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	// Get loads an artifact from storage
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// SaveMarkdown writes a markdown artifact under the given prefix and
	// returns the object key
	SaveMarkdown(ctx context.Context, prefix, name, content string) (string, error)
}

// storageClient implements Storage interface using Cloud Storage
type storageClient struct {
	bucketName string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage client
func NewStorage(ctx context.Context, bucketName string) (Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		client:     client,
	}, nil
}

func (s *storageClient) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	obj := s.client.Bucket(s.bucketName).Object(key)
	return obj.NewWriter(ctx), nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj := s.client.Bucket(s.bucketName).Object(key)
	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.Value("key", key))
	}

	return reader, nil
}

func (s *storageClient) SaveMarkdown(ctx context.Context, prefix, name, content string) (string, error) {
	key := path.Join(prefix, name)

	obj := s.client.Bucket(s.bucketName).Object(key)
	w := obj.NewWriter(ctx)
	w.ContentType = "text/markdown"

	if _, err := io.WriteString(w, content); err != nil {
		_ = w.Close()
		return "", goerr.Wrap(err, "failed to write artifact", goerr.Value("key", key))
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to finalize artifact", goerr.Value("key", key))
	}

	return key, nil
}
