package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const defaultSentimentTimeout = 20 * time.Second

// Prediction is the raw classifier output. The dampening policy that
// turns low-margin calls into neutral lives with the enrichment job,
// not here.
type Prediction struct {
	Label         string  `json:"sentiment"`
	Confidence    float64 `json:"confidence"`
	Probabilities struct {
		Negative float64 `json:"negative"`
		Positive float64 `json:"positive"`
	} `json:"probabilities"`
}

// SentimentClient talks to the sentiment classification service.
type SentimentClient struct {
	endpoint string
	timeout  time.Duration
}

func NewSentimentClient(endpoint string) *SentimentClient {
	return &SentimentClient{
		endpoint: strings.TrimSpace(endpoint),
		timeout:  defaultSentimentTimeout,
	}
}

func (c *SentimentClient) Predict(ctx context.Context, text string) (*Prediction, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal sentiment request: %w", err)
	}

	respBody, err := postJSON(ctx, c.endpoint, body, c.timeout)
	if err != nil {
		return nil, err
	}

	var prediction Prediction
	if err := json.Unmarshal(respBody, &prediction); err != nil {
		return nil, fmt.Errorf("%w: decode sentiment response: %v", ErrModelUnavailable, err)
	}
	if prediction.Label == "" {
		return nil, fmt.Errorf("%w: sentiment response missing label", ErrModelUnavailable)
	}
	return &prediction, nil
}
