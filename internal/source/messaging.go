package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const messagingPageSize = 100

// MessagingAdapter reads a messaging-platform channel through its HTTP
// gateway: channel messages oldest-to-newest from the since-cursor, and
// for every message carrying a reply thread, the thread's replies
// (served newest-first) bounded by the same cursor. The replies are the
// review items; top-level channel posts are announcements.
type MessagingAdapter struct {
	caller   *caller
	baseURL  string
	channel  string
	token    string
	consumed bool
}

type messagingMessage struct {
	ID      int64  `json:"id"`
	Date    string `json:"date"`
	Text    string `json:"text"`
	Replies struct {
		Count int `json:"count"`
	} `json:"replies"`
}

type messagingPage struct {
	Messages []messagingMessage `json:"messages"`
}

func newMessagingAdapter(caller *caller, baseURL, channel, token string) *MessagingAdapter {
	return &MessagingAdapter{
		caller:  caller,
		baseURL: baseURL,
		channel: channel,
		token:   token,
	}
}

func (a *MessagingAdapter) Fetch(ctx context.Context, since *time.Time) ([]Item, error) {
	if a.consumed {
		return nil, ErrExhausted
	}
	a.consumed = true

	var items []Item
	for offset := 0; ; offset += messagingPageSize {
		page, err := a.fetchPage(ctx, fmt.Sprintf("/channels/%s/messages", url.PathEscape(a.channel)), url.Values{
			"order":  {"asc"},
			"limit":  {strconv.Itoa(messagingPageSize)},
			"offset": {strconv.Itoa(offset)},
		}, since)
		if err != nil {
			return items, err
		}
		if len(page.Messages) == 0 {
			return items, nil
		}

		for _, message := range page.Messages {
			if message.Replies.Count == 0 {
				continue
			}
			replies, err := a.fetchReplies(ctx, message.ID, since)
			items = append(items, replies...)
			if err != nil {
				return items, err
			}
		}
	}
}

func (a *MessagingAdapter) fetchReplies(ctx context.Context, messageID int64, since *time.Time) ([]Item, error) {
	var items []Item
	for offset := 0; ; offset += messagingPageSize {
		page, err := a.fetchPage(ctx, fmt.Sprintf("/channels/%s/messages/%d/replies", url.PathEscape(a.channel), messageID), url.Values{
			"order":  {"desc"},
			"limit":  {strconv.Itoa(messagingPageSize)},
			"offset": {strconv.Itoa(offset)},
		}, since)
		if err != nil {
			return items, err
		}
		if len(page.Messages) == 0 {
			return items, nil
		}

		for _, reply := range page.Messages {
			date, err := time.Parse(time.RFC3339, reply.Date)
			if err != nil {
				a.caller.logger.Debug().
					Str("source", TagMessaging).
					Int64("message_id", messageID).
					Int64("reply_id", reply.ID).
					Str("raw_date", reply.Date).
					Msg("reply skipped, unparseable date")
				continue
			}
			if reachedCursor(date, since) {
				return items, nil
			}
			text := flattenText(reply.Text)
			if text == "" {
				continue
			}
			items = append(items, Item{
				Text:       text,
				Date:       date.UTC(),
				ExternalID: fmt.Sprintf("messaging_%d_%d", messageID, reply.ID),
			})
		}
	}
}

func (a *MessagingAdapter) fetchPage(ctx context.Context, path string, params url.Values, since *time.Time) (*messagingPage, error) {
	if since != nil && params.Get("order") == "asc" {
		params.Set("after", since.UTC().Format(time.RFC3339))
	}

	header := http.Header{}
	if a.token != "" {
		header.Set("Authorization", "Bearer "+a.token)
	}

	status, body, err := a.caller.get(ctx, a.baseURL+path+"?"+params.Encode(), header)
	if err != nil {
		return nil, fmt.Errorf("messaging %s: %w", path, err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: messaging API status %d", ErrSourceUnavailable, status)
	}

	var page messagingPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: decode messaging page: %v", ErrParse, err)
	}
	return &page, nil
}
