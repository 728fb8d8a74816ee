package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/upb/scifit-rag/internal/rag"
	"github.com/upb/scifit-rag/middleware"
	"github.com/upb/scifit-rag/services"
)

// MockAnswerer is a mock implementation of Answerer
type MockAnswerer struct {
	mock.Mock
}

func (m *MockAnswerer) Answer(ctx context.Context, req *rag.Request) (*rag.Answer, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rag.Answer), args.Error(1)
}

func assertCORS(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
}

func TestRagHandler_Answer(t *testing.T) {
	answerer := new(MockAnswerer)
	handler := NewRagHandler(answerer, zap.NewNop())

	answer := rag.Normalize("Progressive overload works [1].", []rag.Passage{
		{ID: "7", DocID: "overload_chunk_0000", Content: "text", Similarity: 0.9},
	})
	answerer.On("Answer", mock.Anything, mock.MatchedBy(func(req *rag.Request) bool {
		return req.UserMessage == "What is progressive overload?" && req.TopK != nil && req.TopK.String() == "3"
	})).Return(answer, nil)

	body := `{"user_message":"What is progressive overload?","user_profile":{"level":"beginner"},"top_k":3}`
	req := httptest.NewRequest(http.MethodPost, "/rag-chat", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assertCORS(t, w)
	assert.JSONEq(t, `{
		"answer": "Progressive overload works [1].",
		"citations": [{"title": "overload_chunk_0000", "source": "unknown", "chunk_id": "overload_chunk_0000"}],
		"confidence": 0.9,
		"retrieved_chunks": ["text"]
	}`, w.Body.String())
	answerer.AssertExpectations(t)
}

func TestRagHandler_Preflight(t *testing.T) {
	answerer := new(MockAnswerer)
	handler := NewRagHandler(answerer, zap.NewNop())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/rag-chat", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assertCORS(t, w)
	answerer.AssertNotCalled(t, "Answer")
}

func TestRagHandler_MethodNotAllowed(t *testing.T) {
	answerer := new(MockAnswerer)
	handler := NewRagHandler(answerer, zap.NewNop())

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(method, "/rag-chat", nil))

			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
			assert.JSONEq(t, `{"error":"Method not allowed. Use POST."}`, w.Body.String())
			assertCORS(t, w)
		})
	}
	answerer.AssertNotCalled(t, "Answer")
}

func TestRagHandler_MalformedBody(t *testing.T) {
	answerer := new(MockAnswerer)
	handler := NewRagHandler(answerer, zap.NewNop())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rag-chat", strings.NewReader(`{"user_message":`)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)
	assertCORS(t, w)
	answerer.AssertNotCalled(t, "Answer")
}

func TestRagHandler_NullBody(t *testing.T) {
	answerer := new(MockAnswerer)
	handler := NewRagHandler(answerer, zap.NewNop())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rag-chat", strings.NewReader(`null`)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Request body must be a JSON object."}`, w.Body.String())
	assertCORS(t, w)
	answerer.AssertNotCalled(t, "Answer")
}

func TestRagHandler_LargeTopKIsAccepted(t *testing.T) {
	for _, raw := range []string{"1e3", "99999999999999999999"} {
		t.Run(raw, func(t *testing.T) {
			answerer := new(MockAnswerer)
			handler := NewRagHandler(answerer, zap.NewNop())

			answerer.On("Answer", mock.Anything, mock.MatchedBy(func(req *rag.Request) bool {
				return rag.ClampTopK(req.TopK) == rag.MaxTopK
			})).Return(rag.Normalize("ok", nil), nil)

			body := `{"user_message":"hi","top_k":` + raw + `}`
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rag-chat", strings.NewReader(body)))

			assert.Equal(t, http.StatusOK, w.Code)
			answerer.AssertExpectations(t)
		})
	}
}

func TestRagHandler_LogsCaller(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	answerer := new(MockAnswerer)
	handler := NewRagHandler(answerer, zap.New(core))
	answerer.On("Answer", mock.Anything, mock.Anything).Return(rag.Normalize("ok", nil), nil)

	req := httptest.NewRequest(http.MethodPost, "/rag-chat", strings.NewReader(`{"user_message":"q"}`))
	ctx := middleware.WithClaims(req.Context(), &middleware.Claims{Sub: "user-123", Role: "authenticated"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req.WithContext(ctx))

	require.Equal(t, http.StatusOK, w.Code)
	entries := logs.FilterMessage("answering question").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "user-123", fields["caller"])
	assert.Equal(t, "authenticated", fields["role"])
}

func TestRagHandler_PipelineError(t *testing.T) {
	answerer := new(MockAnswerer)
	handler := NewRagHandler(answerer, zap.NewNop())

	answerer.On("Answer", mock.Anything, mock.Anything).
		Return(nil, services.NewConfigurationError("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required."))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rag-chat", strings.NewReader(`{"user_message":"q"}`)))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required."}`, w.Body.String())
	assertCORS(t, w)
}
