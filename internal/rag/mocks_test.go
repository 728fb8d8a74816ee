package rag

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/upb/scifit-rag/services/providers"
)

type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if v := args.Get(0); v != nil {
		return v.([]float32), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockRetriever struct {
	mock.Mock
}

func (m *mockRetriever) Retrieve(ctx context.Context, vector []float32, matchCount int) ([]Passage, error) {
	args := m.Called(ctx, vector, matchCount)
	if v := args.Get(0); v != nil {
		return v.([]Passage), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockChatProvider struct {
	mock.Mock
}

func (m *mockChatProvider) Name() string {
	return "mock"
}

func (m *mockChatProvider) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*providers.ChatResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func samplePassages() []Passage {
	return []Passage{
		{
			ID:         "1",
			DocID:      "overload_chunk_0000",
			Content:    "Progressive overload means gradually increasing training stress.",
			Metadata:   map[string]interface{}{"doc_id": "overload", "filename": "overload.pdf", "chunk_index": float64(0)},
			Similarity: 0.91,
		},
		{
			ID:         "2",
			DocID:      "overload_chunk_0001",
			Content:    "Increase load by 2 to 5 percent once all sets are completed.",
			Metadata:   map[string]interface{}{"doc_id": "overload", "filename": "overload.pdf", "chunk_index": float64(1)},
			Similarity: 0.84,
		},
		{
			ID:         "3",
			DocID:      "volume_chunk_0003",
			Content:    "Weekly set volume drives hypertrophy.",
			Metadata:   map[string]interface{}{"filename": "volume.md", "chunk_index": float64(3)},
			Similarity: 0.72,
		},
	}
}
