package faq

import (
	"context"
	"errors"
	"testing"

	"github.com/bfiber/helpdesk/internal/retrieval"
	"github.com/bfiber/helpdesk/internal/storage"
)

type fakeDocs struct {
	docs []storage.FAQDoc
	err  error
}

func (f *fakeDocs) ListFAQDocs() ([]storage.FAQDoc, error) {
	return f.docs, f.err
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{float32(i), 1}
	}
	return vecs, nil
}

type fakeVectors struct {
	upserts [][]retrieval.Record
	err     error
}

func (f *fakeVectors) Upsert(records []retrieval.Record) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, records)
	return nil
}

func TestSync(t *testing.T) {
	docs := &fakeDocs{docs: []storage.FAQDoc{
		{ID: 7, Question: "How do I pay?", Answer: "Via the app."},
		{ID: 9, Question: "Wifi slow?", Answer: "Restart the modem."},
	}}
	vectors := &fakeVectors{}
	s := NewSyncer(docs, &fakeEmbedder{}, vectors)

	n, err := s.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if n != 2 {
		t.Errorf("synced %d docs, want 2", n)
	}
	if len(vectors.upserts) != 1 {
		t.Fatalf("got %d upsert calls, want 1", len(vectors.upserts))
	}

	records := vectors.upserts[0]
	// IDs are positional, not the relational primary keys.
	if records[0].ID != "0" || records[1].ID != "1" {
		t.Errorf("record IDs = %q, %q, want positional 0, 1", records[0].ID, records[1].ID)
	}
	if records[0].Question != "How do I pay?" || records[0].Answer != "Via the app." {
		t.Errorf("record 0 = %+v", records[0])
	}
	if len(records[0].Embedding) == 0 {
		t.Error("record 0 has no embedding")
	}
}

func TestSyncEmptyTable(t *testing.T) {
	vectors := &fakeVectors{}
	s := NewSyncer(&fakeDocs{}, &fakeEmbedder{}, vectors)

	_, err := s.Sync(context.Background())
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
	if len(vectors.upserts) != 0 {
		t.Error("empty table must not write to the vector store")
	}
}

func TestSyncErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name string
		s    *Syncer
	}{
		{"fetch failure", NewSyncer(&fakeDocs{err: boom}, &fakeEmbedder{}, &fakeVectors{})},
		{"embed failure", NewSyncer(&fakeDocs{docs: []storage.FAQDoc{{Question: "q", Answer: "a"}}}, &fakeEmbedder{err: boom}, &fakeVectors{})},
		{"upsert failure", NewSyncer(&fakeDocs{docs: []storage.FAQDoc{{Question: "q", Answer: "a"}}}, &fakeEmbedder{}, &fakeVectors{err: boom})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.s.Sync(context.Background()); !errors.Is(err, boom) {
				t.Errorf("err = %v, want wrapped boom", err)
			}
		})
	}
}
