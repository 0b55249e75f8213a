package retrieval

import (
	"container/heap"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"
)

// Compile-time check that SQLiteStore implements VectorStore.
var _ VectorStore = (*SQLiteStore)(nil)

// SQLiteStore provides vector storage and brute-force cosine similarity search
// backed by the faq_vectors table. The FAQ corpus is small (hundreds of rows),
// so a full scan per query is cheap; no ANN index is needed.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an existing *sql.DB for vector operations.
// The faq_vectors table must already exist (created via migrations).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Upsert inserts records, replacing any existing record with the same ID.
// Re-running a full sync over an unchanged corpus leaves the table identical.
func (s *SQLiteStore) Upsert(records []Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO faq_vectors (id, question, answer, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			question = excluded.question,
			answer = excluded.answer,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		blob := encodeFloat32s(r.Embedding)
		updatedAt := r.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}
		if _, err := stmt.Exec(r.ID, r.Question, r.Answer, blob, updatedAt.Format(time.RFC3339)); err != nil {
			tx.Rollback()
			return fmt.Errorf("upserting record %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// Search performs brute-force cosine similarity search over all vectors,
// returning the top-K most similar records ordered by score descending.
func (s *SQLiteStore) Search(vector []float32, topK int) ([]ScoredRecord, error) {
	if topK <= 0 {
		return nil, nil
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(`SELECT id, question, answer, embedding, updated_at FROM faq_vectors`)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	h := &scoredHeap{}
	heap.Init(h)

	for rows.Next() {
		var r Record
		var blob []byte
		var updatedAt string
		if err := rows.Scan(&r.ID, &r.Question, &r.Answer, &blob, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		embedding, err := decodeFloat32s(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", r.ID, err)
		}
		r.Embedding = embedding
		if r.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at for %s: %w", r.ID, err)
		}

		score := cosine(vector, embedding, queryNorm)
		if h.Len() < topK {
			heap.Push(h, ScoredRecord{Record: r, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = ScoredRecord{Record: r, Score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	results := make([]ScoredRecord, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(h).(ScoredRecord)
	}
	return results, nil
}

// Count returns the number of records in the faq_vectors table.
func (s *SQLiteStore) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM faq_vectors").Scan(&count)
	return count, err
}

// ExportAll returns all records. IDs are positional strings, so numeric order
// is restored after the lexicographic table scan.
func (s *SQLiteStore) ExportAll() ([]Record, error) {
	rows, err := s.db.Query(`SELECT id, question, answer, embedding, updated_at FROM faq_vectors`)
	if err != nil {
		return nil, fmt.Errorf("querying all vectors: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var blob []byte
		var updatedAt string
		if err := rows.Scan(&r.ID, &r.Question, &r.Answer, &blob, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		embedding, err := decodeFloat32s(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", r.ID, err)
		}
		r.Embedding = embedding
		if r.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at for %s: %w", r.ID, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		if len(records[i].ID) != len(records[j].ID) {
			return len(records[i].ID) < len(records[j].ID)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a new float32 slice.
// Returns an error if the byte slice length is not a multiple of 4 (indicates data corruption).
func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes cosine similarity as dot(a,b) / (aNorm * bNorm).
// aNorm is the precomputed L2 norm of vector a.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	var bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// scoredHeap is a min-heap of ScoredRecord ordered by Score.
type scoredHeap []ScoredRecord

func (h scoredHeap) Len() int            { return len(h) }
func (h scoredHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h scoredHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoredHeap) Push(x interface{}) { *h = append(*h, x.(ScoredRecord)) }
func (h *scoredHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
