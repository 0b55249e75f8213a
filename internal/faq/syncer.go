// Package faq synchronizes the relational FAQ table into the vector store.
package faq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bfiber/helpdesk/internal/retrieval"
	"github.com/bfiber/helpdesk/internal/storage"
)

// ErrNoData is returned when the faq_docs table is empty.
var ErrNoData = errors.New("no FAQ data")

// DocSource provides the FAQ rows to sync.
type DocSource interface {
	ListFAQDocs() ([]storage.FAQDoc, error)
}

// Embedder generates embeddings for a batch of questions.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorUpserter writes records into the vector index.
type VectorUpserter interface {
	Upsert(records []retrieval.Record) error
}

// Syncer rebuilds the FAQ vector index from the relational table.
// Every run recomputes and overwrites the full corpus; record IDs are the
// zero-based row positions at sync time, so the operation is idempotent as
// long as the underlying row order and count are stable.
type Syncer struct {
	docs     DocSource
	embedder Embedder
	vectors  VectorUpserter
}

// NewSyncer creates a Syncer with the given dependencies.
func NewSyncer(docs DocSource, embedder Embedder, vectors VectorUpserter) *Syncer {
	return &Syncer{docs: docs, embedder: embedder, vectors: vectors}
}

// Sync reads all FAQ rows, embeds every question, and upserts the full set
// into the vector store. Returns the number of documents synced.
// An empty table returns ErrNoData without touching the vector store; every
// other failure is reported as an error, never a panic.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	docs, err := s.docs.ListFAQDocs()
	if err != nil {
		return 0, fmt.Errorf("fetching FAQ docs: %w", err)
	}
	if len(docs) == 0 {
		return 0, ErrNoData
	}

	questions := make([]string, len(docs))
	for i, d := range docs {
		questions[i] = d.Question
	}

	vecs, err := s.embedder.EmbedBatch(ctx, questions)
	if err != nil {
		return 0, fmt.Errorf("embedding questions: %w", err)
	}

	now := time.Now().UTC()
	records := make([]retrieval.Record, len(docs))
	for i, d := range docs {
		records[i] = retrieval.Record{
			ID:        strconv.Itoa(i),
			Question:  d.Question,
			Answer:    d.Answer,
			Embedding: vecs[i],
			UpdatedAt: now,
		}
	}

	if err := s.vectors.Upsert(records); err != nil {
		return 0, fmt.Errorf("upserting vectors: %w", err)
	}
	return len(records), nil
}
