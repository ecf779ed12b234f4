package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// MapsAdapter pages through a maps-platform review API. The server
// hands back a continuation link per page; pagination ends when that
// link is empty. The API cannot filter by date, so every run walks the
// full available history and relies on the coordinator's dedup filter.
type MapsAdapter struct {
	caller   *caller
	baseURL  string
	branchID string
	apiKey   string
	token    string
	consumed bool
}

type mapsPage struct {
	Reviews []struct {
		DateCreated string `json:"date_created"`
		Text        string `json:"text"`
		ID          string `json:"id"`
	} `json:"reviews"`
	Meta struct {
		NextLink string `json:"next_link"`
	} `json:"meta"`
}

func newMapsAdapter(caller *caller, baseURL, branchID, apiKey, token string) *MapsAdapter {
	return &MapsAdapter{
		caller:   caller,
		baseURL:  baseURL,
		branchID: branchID,
		apiKey:   apiKey,
		token:    token,
	}
}

func (a *MapsAdapter) Fetch(ctx context.Context, _ *time.Time) ([]Item, error) {
	if a.consumed {
		return nil, ErrExhausted
	}
	a.consumed = true

	current := fmt.Sprintf(
		"%s/branches/%s/reviews?limit=50&key=%s&locale=ru_RU&sort_by=date_created",
		a.baseURL, a.branchID, a.apiKey,
	)
	header := http.Header{}
	if a.token != "" {
		header.Set("Authorization", "Bearer "+a.token)
	}

	var items []Item
	for current != "" {
		status, body, err := a.caller.get(ctx, current, header)
		if err != nil {
			return items, fmt.Errorf("maps page fetch: %w", err)
		}
		if status < 200 || status >= 300 {
			return items, fmt.Errorf("%w: maps API status %d", ErrSourceUnavailable, status)
		}

		var page mapsPage
		if err := json.Unmarshal(body, &page); err != nil {
			return items, fmt.Errorf("%w: decode maps page: %v", ErrParse, err)
		}

		for _, review := range page.Reviews {
			text := flattenText(review.Text)
			if text == "" {
				continue
			}
			date, err := time.Parse(time.RFC3339, review.DateCreated)
			if err != nil {
				a.caller.logger.Debug().
					Str("source", TagMaps).
					Str("review_id", review.ID).
					Str("raw_date", review.DateCreated).
					Msg("review skipped, unparseable date")
				continue
			}
			item := Item{Text: text, Date: date.UTC()}
			if review.ID != "" {
				item.ExternalID = "maps_" + review.ID
			}
			items = append(items, item)
		}

		current = page.Meta.NextLink
	}

	return items, nil
}
