package nlp

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ModerationClient screens review text through the OpenAI moderation
// endpoint. A flagged result marks the review for exclusion from
// consumer-facing listings without deleting it.
type ModerationClient struct {
	client *openai.Client
}

func NewModerationClient(apiKey string) (*ModerationClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("moderation API key is required")
	}
	return &ModerationClient{client: openai.NewClient(apiKey)}, nil
}

func (c *ModerationClient) Flagged(ctx context.Context, text string) (bool, error) {
	resp, err := c.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: openai.ModerationOmniLatest,
	})
	if err != nil {
		return false, fmt.Errorf("%w: moderation request: %v", ErrModelUnavailable, err)
	}
	if len(resp.Results) == 0 {
		return false, fmt.Errorf("%w: moderation response empty", ErrModelUnavailable)
	}
	return resp.Results[0].Flagged, nil
}
