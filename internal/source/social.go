package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const (
	socialAPIVersion = "5.199"
	socialPageSize   = 100
)

// SocialAdapter walks a social-network group wall: offset pagination
// over posts until an empty page or a post at/behind the since-cursor,
// then offset pagination over each commented post's comment thread with
// the same cursor bound. Review text lives in the comments.
type SocialAdapter struct {
	caller     *caller
	baseURL    string
	screenName string
	token      string
	groupID    int64
	consumed   bool
}

type socialEnvelope struct {
	Error *struct {
		ErrorMsg string `json:"error_msg"`
	} `json:"error"`
	Response json.RawMessage `json:"response"`
}

type socialResolveResponse struct {
	Type     string `json:"type"`
	ObjectID int64  `json:"object_id"`
}

type socialPost struct {
	ID       int64 `json:"id"`
	Date     int64 `json:"date"`
	Comments struct {
		Count int `json:"count"`
	} `json:"comments"`
}

type socialComment struct {
	ID   int64  `json:"id"`
	Date int64  `json:"date"`
	Text string `json:"text"`
}

type socialItemsPage[T any] struct {
	Items []T `json:"items"`
}

func newSocialAdapter(caller *caller, baseURL, screenName, token string) *SocialAdapter {
	return &SocialAdapter{
		caller:     caller,
		baseURL:    baseURL,
		screenName: screenName,
		token:      token,
	}
}

func (a *SocialAdapter) Fetch(ctx context.Context, since *time.Time) ([]Item, error) {
	if a.consumed {
		return nil, ErrExhausted
	}
	a.consumed = true

	if err := a.resolveGroupID(ctx); err != nil {
		return nil, err
	}

	posts, err := a.fetchPosts(ctx, since)
	if err != nil {
		return nil, err
	}

	var items []Item
	for _, post := range posts {
		if post.Comments.Count == 0 {
			continue
		}
		comments, err := a.fetchComments(ctx, post.ID, since)
		items = append(items, comments...)
		if err != nil {
			return items, err
		}
	}
	return items, nil
}

// resolveGroupID translates the stored screen name into the numeric
// group identifier, once per adapter instance.
func (a *SocialAdapter) resolveGroupID(ctx context.Context) error {
	raw, err := a.call(ctx, "utils.resolveScreenName", url.Values{"screen_name": {a.screenName}})
	if err != nil {
		return err
	}

	var resolved socialResolveResponse
	if err := json.Unmarshal(raw, &resolved); err != nil {
		return fmt.Errorf("%w: decode resolved screen name: %v", ErrParse, err)
	}
	if resolved.Type != "group" {
		return fmt.Errorf("%w: %q is not a group", ErrParse, a.screenName)
	}
	a.groupID = resolved.ObjectID
	return nil
}

func (a *SocialAdapter) fetchPosts(ctx context.Context, since *time.Time) ([]socialPost, error) {
	var posts []socialPost
	for offset := 0; ; offset += socialPageSize {
		raw, err := a.call(ctx, "wall.get", url.Values{
			"owner_id": {strconv.FormatInt(-a.groupID, 10)},
			"count":    {strconv.Itoa(socialPageSize)},
			"offset":   {strconv.Itoa(offset)},
		})
		if err != nil {
			return posts, err
		}

		var page socialItemsPage[socialPost]
		if err := json.Unmarshal(raw, &page); err != nil {
			return posts, fmt.Errorf("%w: decode wall page: %v", ErrParse, err)
		}
		if len(page.Items) == 0 {
			return posts, nil
		}

		for _, post := range page.Items {
			if reachedCursor(time.Unix(post.Date, 0), since) {
				return posts, nil
			}
			posts = append(posts, post)
		}
	}
}

func (a *SocialAdapter) fetchComments(ctx context.Context, postID int64, since *time.Time) ([]Item, error) {
	var items []Item
	for offset := 0; ; offset += socialPageSize {
		raw, err := a.call(ctx, "wall.getComments", url.Values{
			"owner_id":       {strconv.FormatInt(-a.groupID, 10)},
			"post_id":        {strconv.FormatInt(postID, 10)},
			"count":          {strconv.Itoa(socialPageSize)},
			"offset":         {strconv.Itoa(offset)},
			"preview_length": {"0"},
			"sort":           {"desc"},
		})
		if err != nil {
			return items, err
		}

		var page socialItemsPage[socialComment]
		if err := json.Unmarshal(raw, &page); err != nil {
			return items, fmt.Errorf("%w: decode comments page: %v", ErrParse, err)
		}
		if len(page.Items) == 0 {
			return items, nil
		}

		for _, comment := range page.Items {
			date := time.Unix(comment.Date, 0)
			if reachedCursor(date, since) {
				return items, nil
			}
			text := flattenText(comment.Text)
			if text == "" {
				continue
			}
			items = append(items, Item{
				Text:       text,
				Date:       date.UTC(),
				ExternalID: fmt.Sprintf("social_%d_%d", postID, comment.ID),
			})
		}
	}
}

func (a *SocialAdapter) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	params.Set("access_token", a.token)
	params.Set("v", socialAPIVersion)

	status, body, err := a.caller.get(ctx, a.baseURL+"/"+method+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("social API %s: %w", method, err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: social API %s status %d", ErrSourceUnavailable, method, status)
	}

	var envelope socialEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode %s envelope: %v", ErrParse, method, err)
	}
	if envelope.Error != nil {
		return nil, fmt.Errorf("%w: social API %s: %s", ErrSourceUnavailable, method, envelope.Error.ErrorMsg)
	}
	return envelope.Response, nil
}
