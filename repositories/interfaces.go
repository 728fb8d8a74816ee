package repositories

import (
	"context"

	"github.com/upb/scifit-rag/internal/rag"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error
}

// PassageRepository reads and writes embedded document chunks in Postgres.
type PassageRepository interface {
	// Retrieve returns the matchCount passages most similar to vector, best first
	Retrieve(ctx context.Context, vector []float32, matchCount int) ([]rag.Passage, error)

	// UpsertChunks inserts or replaces chunks keyed by chunk id, all or nothing
	UpsertChunks(ctx context.Context, chunks []rag.Chunk) error

	// Count returns the number of stored chunks
	Count(ctx context.Context) (int64, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Passages     PassageRepository
	Transactions TransactionManager
}
