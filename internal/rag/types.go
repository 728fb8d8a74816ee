package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// top_k bounds.
const (
	DefaultTopK = 5
	MinTopK     = 1
	MaxTopK     = 10
)

// unknownField is reported for missing passage metadata.
const unknownField = "unknown"

// Embedder turns a question into a query embedding.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever returns the passages most similar to vector, highest similarity first.
// Ordering is the store's responsibility and is not re-sorted here.
type Retriever interface {
	Retrieve(ctx context.Context, vector []float32, matchCount int) ([]Passage, error)
}

// Chunk is a document slice ready to be stored with its passage embedding.
type Chunk struct {
	ChunkID    string
	DocID      string
	Filename   string
	ChunkIndex int
	Content    string
	Embedding  []float32
}

// Metadata returns the metadata object stored alongside the chunk.
func (c Chunk) Metadata() map[string]interface{} {
	return map[string]interface{}{
		"doc_id":      c.DocID,
		"filename":    c.Filename,
		"chunk_index": c.ChunkIndex,
	}
}

// ChunkWriter upserts chunks keyed by ChunkID.
type ChunkWriter interface {
	UpsertChunks(ctx context.Context, chunks []Chunk) error
}

// Request is the JSON body accepted by the answering endpoint.
type Request struct {
	UserMessage string          `json:"user_message"`
	UserProfile json.RawMessage `json:"user_profile,omitempty"`
	TopK        *json.Number    `json:"top_k,omitempty"`
}

// ClampTopK returns the effective result count for a requested top_k.
// Any JSON number is accepted, including exponent forms and values beyond the
// int64 range; fractions are truncated after clamping.
func ClampTopK(topK *json.Number) int {
	if topK == nil {
		return DefaultTopK
	}
	n, err := strconv.ParseFloat(topK.String(), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return DefaultTopK
	}
	switch {
	case n < MinTopK:
		return MinTopK
	case n > MaxTopK:
		return MaxTopK
	default:
		return int(n)
	}
}

// TopKValue wraps n for use as Request.TopK.
func TopKValue(n int) *json.Number {
	v := json.Number(strconv.Itoa(n))
	return &v
}

// PassageID is a row identifier that the store may encode as a number or a string.
type PassageID string

// UnmarshalJSON accepts JSON strings, numbers and null.
func (id *PassageID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = PassageID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("passage id must be a string or number: %w", err)
	}
	*id = PassageID(n.String())
	return nil
}

// Passage is one stored chunk returned by similarity search.
type Passage struct {
	ID         PassageID              `json:"id"`
	DocID      string                 `json:"doc_id"`
	Content    string                 `json:"content"`
	Metadata   map[string]interface{} `json:"metadata"`
	Similarity float64                `json:"similarity"`
}

// Filename returns the metadata filename, or "unknown".
func (p Passage) Filename() string {
	return p.metadataString("filename")
}

// ChunkIndex returns the metadata chunk index rendered as text, or "unknown".
func (p Passage) ChunkIndex() string {
	return p.metadataString("chunk_index")
}

func (p Passage) metadataString(key string) string {
	v, ok := p.Metadata[key]
	if !ok || v == nil {
		return unknownField
	}
	s := fmt.Sprint(v)
	if s == "" {
		return unknownField
	}
	return s
}

// Citation points back at a retrieved passage.
type Citation struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	ChunkID string `json:"chunk_id"`
}

// Answer is the normalized response body.
type Answer struct {
	Answer          string     `json:"answer"`
	Citations       []Citation `json:"citations"`
	Confidence      float64    `json:"confidence"`
	RetrievedChunks []string   `json:"retrieved_chunks"`
}

// NewCitation maps a passage to a citation. Title and ChunkID both carry the
// document id, matching what existing clients of the endpoint consume.
func NewCitation(p Passage) Citation {
	return Citation{
		Title:   p.DocID,
		Source:  p.Filename(),
		ChunkID: p.DocID,
	}
}

// Confidence is the top passage similarity clamped to [0,1], or 0 with no passages.
func Confidence(passages []Passage) float64 {
	if len(passages) == 0 {
		return 0
	}
	return clamp01(passages[0].Similarity)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Normalize builds the response body for a question's passages and generated answer.
func Normalize(answer string, passages []Passage) *Answer {
	resp := &Answer{
		Answer:          answer,
		Citations:       make([]Citation, 0, len(passages)),
		Confidence:      Confidence(passages),
		RetrievedChunks: make([]string, 0, len(passages)),
	}
	for _, p := range passages {
		resp.Citations = append(resp.Citations, NewCitation(p))
		resp.RetrievedChunks = append(resp.RetrievedChunks, p.Content)
	}
	return resp
}

// trimQuestion trims surrounding whitespace, including non-breaking spaces.
func trimQuestion(s string) string {
	return strings.TrimFunc(s, isSpace)
}
