package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeClient struct {
	mu       sync.Mutex
	calls    []string
	vec      []float32
	err      error
	failText string
}

func (f *fakeClient) Embed(_ context.Context, model string, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.err != nil && (f.failText == "" || f.failText == text) {
		return nil, f.err
	}
	if f.vec != nil {
		return f.vec, nil
	}
	return []float32{float32(len(text))}, nil
}

func TestEmbed(t *testing.T) {
	c := &fakeClient{vec: []float32{0.5, 0.5}}
	e := NewEmbedder(c, "all-minilm")

	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 {
		t.Errorf("vec = %v", vec)
	}
}

func TestEmbedBatch(t *testing.T) {
	c := &fakeClient{}
	e := NewEmbedder(c, "all-minilm")

	texts := []string{"a", "bb", "ccc"}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vecs))
	}
	// Results must line up with input order despite concurrent embedding.
	for i, text := range texts {
		if vecs[i][0] != float32(len(text)) {
			t.Errorf("vecs[%d] = %v, want length %d", i, vecs[i], len(text))
		}
	}
}

func TestEmbedBatchEmpty(t *testing.T) {
	e := NewEmbedder(&fakeClient{}, "all-minilm")

	vecs, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch(nil): %v", err)
	}
	if vecs != nil {
		t.Errorf("expected nil result for empty input, got %v", vecs)
	}
}

func TestEmbedBatchError(t *testing.T) {
	c := &fakeClient{err: errors.New("model offline"), failText: "bb"}
	e := NewEmbedder(c, "all-minilm")

	if _, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"}); err == nil {
		t.Error("expected error when one embedding fails")
	}
}
