package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/scifit-rag/config"
	"github.com/upb/scifit-rag/internal/rag"
	"github.com/upb/scifit-rag/services"
)

const (
	serviceName      = "supabase"
	maxResponseBytes = 16 << 20
)

var (
	_ rag.Retriever   = (*Client)(nil)
	_ rag.ChunkWriter = (*Client)(nil)
)

// Client talks to the Supabase PostgREST API: the similarity RPC for reads and
// the embeddings table for ingestion upserts.
type Client struct {
	config     config.StoreConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new PostgREST client
func NewClient(cfg config.StoreConfig, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RPC == "" {
		cfg.RPC = "match_documents"
	}
	if cfg.Table == "" {
		cfg.Table = "document_embeddings"
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type matchRequest struct {
	QueryEmbedding string `json:"query_embedding"`
	MatchCount     int    `json:"match_count"`
}

// Retrieve calls the similarity RPC. Rows are returned in store order.
func (c *Client) Retrieve(ctx context.Context, vector []float32, matchCount int) ([]rag.Passage, error) {
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(matchRequest{
		QueryEmbedding: VectorLiteral(vector),
		MatchCount:     matchCount,
	})
	if err != nil {
		return nil, services.WrapInternal("failed to marshal match request", err)
	}

	respBody, err := c.do(ctx, c.config.URL+"/rest/v1/rpc/"+c.config.RPC, body, nil, c.config.RPC+" RPC failed")
	if err != nil {
		return nil, err
	}

	var passages []rag.Passage
	if err := json.Unmarshal(respBody, &passages); err != nil {
		return nil, services.WrapUpstream(serviceName, c.config.RPC+" returned an unreadable body", err)
	}

	c.logger.Debug("passages retrieved",
		zap.String("rpc", c.config.RPC),
		zap.Int("match_count", matchCount),
		zap.Int("rows", len(passages)))

	return passages, nil
}

type upsertRow struct {
	DocID     string                 `json:"doc_id"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata"`
	Embedding string                 `json:"embedding"`
}

// UpsertChunks writes chunks in one request, merging on doc_id.
func (c *Client) UpsertChunks(ctx context.Context, chunks []rag.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := c.checkConfigured(); err != nil {
		return err
	}

	rows := make([]upsertRow, len(chunks))
	for i, ch := range chunks {
		rows[i] = upsertRow{
			DocID:     ch.ChunkID,
			Content:   ch.Content,
			Metadata:  ch.Metadata(),
			Embedding: VectorLiteral(ch.Embedding),
		}
	}

	body, err := json.Marshal(rows)
	if err != nil {
		return services.WrapInternal("failed to marshal upsert rows", err)
	}

	query := url.Values{}
	query.Set("on_conflict", "doc_id")
	query.Set("columns", "doc_id,content,metadata,embedding")
	endpoint := c.config.URL + "/rest/v1/" + c.config.Table + "?" + query.Encode()

	headers := map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"}
	if _, err := c.do(ctx, endpoint, body, headers, "Supabase upsert failed"); err != nil {
		return err
	}

	c.logger.Debug("chunks upserted", zap.String("table", c.config.Table), zap.Int("rows", len(rows)))
	return nil
}

func (c *Client) checkConfigured() error {
	if c.config.URL == "" || c.config.ServiceKey == "" {
		return services.NewConfigurationError("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required.",
			"SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY")
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint string, body []byte, headers map[string]string, failure string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, services.WrapInternal("failed to create store request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("apikey", c.config.ServiceKey)
	httpReq.Header.Set("Authorization", "Bearer "+c.config.ServiceKey)
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, services.WrapUpstream(serviceName, failure, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, services.WrapUpstream(serviceName, "failed to read store response", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, services.NewUpstreamError(serviceName,
			fmt.Sprintf("%s: %d %s", failure, httpResp.StatusCode, strings.TrimSpace(string(respBody))),
			httpResp.StatusCode)
	}

	return respBody, nil
}
