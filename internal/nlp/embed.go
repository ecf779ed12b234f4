package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ErrModelUnavailable marks an enrichment model backend failure. The
// affected job fails; ingestion is never retried because of it.
var ErrModelUnavailable = errors.New("model backend unavailable")

const (
	DefaultEmbeddingMaxLength      = 512
	DefaultEmbeddingRequestTimeout = 45 * time.Second
)

// EmbeddingClient talks to a sentence-embedding HTTP service. It
// understands both the bare {"texts": [...]} body and the OpenAI-style
// {"input": [...]} body, keyed on the endpoint path.
type EmbeddingClient struct {
	endpoint  string
	maxLength int
	timeout   time.Duration
}

type embedRequest struct {
	Texts     []string `json:"texts,omitempty"`
	Input     []string `json:"input,omitempty"`
	MaxLength int      `json:"max_length,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Data       []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func NewEmbeddingClient(endpoint string) *EmbeddingClient {
	return &EmbeddingClient{
		endpoint:  strings.TrimSpace(endpoint),
		maxLength: DefaultEmbeddingMaxLength,
		timeout:   DefaultEmbeddingRequestTimeout,
	}
}

// Encode embeds all texts in one batch and returns vectors in input
// order.
func (c *EmbeddingClient) Encode(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload := embedRequest{
		Texts:     texts,
		MaxLength: c.maxLength,
	}
	if parsed, err := url.Parse(c.endpoint); err == nil && strings.HasSuffix(parsed.Path, "/v1/embeddings") {
		payload = embedRequest{Input: texts}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	respBody, err := postJSON(ctx, c.endpoint, body, c.timeout)
	if err != nil {
		return nil, err
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode embedding response: %v", ErrModelUnavailable, err)
	}

	vectors := parsed.Embeddings
	if len(vectors) == 0 && len(parsed.Data) > 0 {
		sort.Slice(parsed.Data, func(i, j int) bool {
			return parsed.Data[i].Index < parsed.Data[j].Index
		})
		vectors = make([][]float64, 0, len(parsed.Data))
		for _, row := range parsed.Data {
			vectors = append(vectors, row.Embedding)
		}
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: embedding count mismatch: requested=%d returned=%d", ErrModelUnavailable, len(texts), len(vectors))
	}
	return vectors, nil
}

func postJSON(ctx context.Context, endpoint string, body []byte, timeout time.Duration) ([]byte, error) {
	requestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read model response: %v", ErrModelUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: model status %d: %s", ErrModelUnavailable, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}
