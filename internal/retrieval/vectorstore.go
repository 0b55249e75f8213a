package retrieval

import "time"

// VectorStore is the interface for the FAQ vector index.
// The current implementation uses SQLite with brute-force cosine similarity;
// an external ANN-capable backend could replace it behind this interface.
type VectorStore interface {
	// Upsert inserts records, replacing any existing record with the same ID.
	Upsert(records []Record) error

	// Search performs vector similarity search, returning the top-K most
	// similar records ordered by score descending.
	Search(vector []float32, topK int) ([]ScoredRecord, error)

	// Count returns the number of records in the index.
	Count() (int, error)

	// ExportAll returns all records in ID order.
	ExportAll() ([]Record, error)
}

// Record is an embedded FAQ entry. ID is the zero-based position of the
// source row at sync time; the question text is the embedded document and the
// answer rides along as metadata.
type Record struct {
	ID        string
	Question  string
	Answer    string
	Embedding []float32
	UpdatedAt time.Time
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
