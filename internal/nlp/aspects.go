package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const defaultAspectTimeout = 30 * time.Second

// AspectClient talks to the aspect-extraction service, which splits the
// terms a review mentions into positively and negatively toned ones.
type AspectClient struct {
	endpoint string
	timeout  time.Duration
}

type aspectResponse struct {
	Positive []string `json:"positive"`
	Negative []string `json:"negative"`
}

func NewAspectClient(endpoint string) *AspectClient {
	return &AspectClient{
		endpoint: strings.TrimSpace(endpoint),
		timeout:  defaultAspectTimeout,
	}
}

func (c *AspectClient) Extract(ctx context.Context, text string) (positive, negative []string, err error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal aspect request: %w", err)
	}

	respBody, err := postJSON(ctx, c.endpoint, body, c.timeout)
	if err != nil {
		return nil, nil, err
	}

	var parsed aspectResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, nil, fmt.Errorf("%w: decode aspect response: %v", ErrModelUnavailable, err)
	}
	return parsed.Positive, parsed.Negative, nil
}
