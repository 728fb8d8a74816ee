package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/upb/scifit-rag/internal/rag"
	"github.com/upb/scifit-rag/repositories"
	"github.com/upb/scifit-rag/services"
)

const serviceName = "postgres"

var (
	_ repositories.PassageRepository = (*PassageRepository)(nil)
	_ rag.Retriever                  = (*PassageRepository)(nil)
	_ rag.ChunkWriter                = (*PassageRepository)(nil)
)

// PassageRepository implements the repositories.PassageRepository interface
// on a pgvector-enabled database.
type PassageRepository struct {
	db     *DB
	txMgr  repositories.TransactionManager
	logger *zap.Logger
}

// NewPassageRepository creates a new passage repository
func NewPassageRepository(db *DB, txMgr repositories.TransactionManager, logger *zap.Logger) *PassageRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PassageRepository{
		db:     db,
		txMgr:  txMgr,
		logger: logger,
	}
}

// Retrieve calls match_documents and returns its rows in order.
func (r *PassageRepository) Retrieve(ctx context.Context, vector []float32, matchCount int) ([]rag.Passage, error) {
	query := `
		SELECT id, doc_id, content, metadata, similarity
		FROM match_documents($1, $2)
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, pgvector.NewVector(vector), matchCount)
	if err != nil {
		return nil, services.WrapUpstream(serviceName, "match_documents query failed", err)
	}
	defer rows.Close()

	passages := make([]rag.Passage, 0, matchCount)
	for rows.Next() {
		var (
			p        rag.Passage
			id       string
			metadata []byte
		)
		if err := rows.Scan(&id, &p.DocID, &p.Content, &metadata, &p.Similarity); err != nil {
			return nil, services.WrapUpstream(serviceName, "failed to scan match_documents row", err)
		}
		p.ID = rag.PassageID(id)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
				return nil, services.WrapUpstream(serviceName, "failed to decode passage metadata", err)
			}
		}
		passages = append(passages, p)
	}

	if err := rows.Err(); err != nil {
		return nil, services.WrapUpstream(serviceName, "failed to iterate match_documents rows", err)
	}

	r.logger.Debug("passages retrieved", zap.Int("match_count", matchCount), zap.Int("rows", len(passages)))
	return passages, nil
}

// UpsertChunks writes every chunk in one transaction; a failed row rolls back the batch.
func (r *PassageRepository) UpsertChunks(ctx context.Context, chunks []rag.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	query := `
		INSERT INTO document_embeddings (doc_id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (doc_id) DO UPDATE
		SET content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding
	`

	err := r.txMgr.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		executor := GetExecutor(txCtx, r.db)
		for _, ch := range chunks {
			metadata, err := json.Marshal(ch.Metadata())
			if err != nil {
				return services.WrapInternal("failed to marshal chunk metadata", err)
			}
			if _, err := executor.ExecContext(txCtx, query,
				ch.ChunkID,
				ch.Content,
				string(metadata),
				pgvector.NewVector(ch.Embedding),
			); err != nil {
				return services.WrapUpstream(serviceName, fmt.Sprintf("failed to upsert chunk %s", ch.ChunkID), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug("chunks upserted", zap.Int("rows", len(chunks)))
	return nil
}

// Count returns the number of stored chunks
func (r *PassageRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	executor := GetExecutor(ctx, r.db)
	if err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_embeddings`).Scan(&count); err != nil {
		return 0, services.WrapUpstream(serviceName, "failed to count chunks", err)
	}
	return count, nil
}
