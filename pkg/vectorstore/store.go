// Package vectorstore persists retrieval documents and their embeddings
// in Postgres with the pgvector extension, and performs nearest-neighbor
// similarity search against them.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Document is a single retrievable chunk of knowledge-base content.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]any
	Embedding []float32
}

// Match is a Document returned from a similarity search, carrying its
// cosine similarity to the query embedding.
type Match struct {
	Document
	Similarity float64
}

// Store is the capability contract the Retriever uses to persist and
// query the knowledge base.
type Store interface {
	// Insert upserts a document and its embedding.
	Insert(ctx context.Context, doc Document) error

	// Search returns the topK documents most similar to queryEmbedding
	// whose similarity exceeds minSimilarity.
	Search(ctx context.Context, queryEmbedding []float32, topK int, minSimilarity float64) ([]Match, error)
}

// PGStore is a Store backed by Postgres + pgvector, using pgx/v5's
// connection pool.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a PGStore from an already-established pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Connect opens a pgx pool against connString (a Supabase/Postgres DSN).
func Connect(ctx context.Context, connString string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connecting to vector store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging vector store: %w", err)
	}
	return NewPGStore(pool), nil
}

// Close releases the underlying connection pool.
func (s *PGStore) Close() {
	s.pool.Close()
}

const upsertDocumentSQL = `
INSERT INTO documents (id, content, metadata, embedding)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
	content = EXCLUDED.content,
	metadata = EXCLUDED.metadata,
	embedding = EXCLUDED.embedding
`

// Insert upserts doc keyed by its ID.
func (s *PGStore) Insert(ctx context.Context, doc Document) error {
	_, err := s.pool.Exec(ctx, upsertDocumentSQL,
		doc.ID, doc.Content, doc.Metadata, pgvector.NewVector(doc.Embedding))
	if err != nil {
		return fmt.Errorf("inserting document %q: %w", doc.ID, err)
	}
	return nil
}

// matchDocumentsSQL runs cosine similarity search over the embedding
// column of the documents table with a similarity floor. It is an inline
// query, not a call to a match_documents stored procedure, and it applies
// no map or tag filter.
const matchDocumentsSQL = `
SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
FROM documents
WHERE 1 - (embedding <=> $1) > $2
ORDER BY embedding <=> $1
LIMIT $3
`

// Search finds the topK documents closest to queryEmbedding whose
// similarity exceeds minSimilarity.
func (s *PGStore) Search(ctx context.Context, queryEmbedding []float32, topK int, minSimilarity float64) ([]Match, error) {
	rows, err := s.pool.Query(ctx, matchDocumentsSQL, pgvector.NewVector(queryEmbedding), minSimilarity, topK)
	if err != nil {
		return nil, fmt.Errorf("querying match_documents: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Content, &m.Metadata, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scanning match row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating match rows: %w", err)
	}
	return matches, nil
}
