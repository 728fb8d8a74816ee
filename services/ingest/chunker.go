package ingest

import (
	"fmt"
	"strings"

	"github.com/upb/scifit-rag/internal/rag"
)

// ChunkText splits text into character windows of size runes that advance by
// size-overlap (at least one). Windows are trimmed and empty ones dropped.
func ChunkText(text string, size, overlap int) []string {
	runes := []rune(text)
	step := size - overlap
	if step < 1 {
		step = 1
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// ChunkID names the idx-th chunk of a document.
func ChunkID(docID string, idx int) string {
	return fmt.Sprintf("%s_chunk_%04d", docID, idx)
}

// ChunkDocument chunks doc into rows ready for embedding.
func ChunkDocument(doc Document, size, overlap int) []rag.Chunk {
	texts := ChunkText(doc.Text, size, overlap)
	chunks := make([]rag.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = rag.Chunk{
			ChunkID:    ChunkID(doc.DocID, i),
			DocID:      doc.DocID,
			Filename:   doc.Filename,
			ChunkIndex: i,
			Content:    text,
		}
	}
	return chunks
}
