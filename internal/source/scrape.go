package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Pagination is bounded so a malformed site that keeps serving pages
// cannot run the loop forever.
const maxScrapePages = 200

var (
	scrapeItemSelector = cascadia.MustCompile(".item-right")
	scrapeTextSelector = cascadia.MustCompile(".review-teaser")
	scrapeDateSelector = cascadia.MustCompile(".review-postdate")
)

// ScrapeAdapter walks numbered result pages of a review site,
// newest-first. It stops at the first item at or behind the
// since-cursor, an empty page, or a non-success response.
type ScrapeAdapter struct {
	caller   *caller
	pageURL  string
	consumed bool
}

func newScrapeAdapter(caller *caller, pageURL string) *ScrapeAdapter {
	return &ScrapeAdapter{
		caller:  caller,
		pageURL: strings.TrimRight(strings.TrimSpace(pageURL), "/"),
	}
}

func (a *ScrapeAdapter) Fetch(ctx context.Context, since *time.Time) ([]Item, error) {
	if a.consumed {
		return nil, ErrExhausted
	}
	a.consumed = true

	var items []Item
	for page := 1; page <= maxScrapePages; page++ {
		status, body, err := a.caller.get(ctx, fmt.Sprintf("%s/?page=%d", a.pageURL, page), nil)
		if err != nil {
			return items, fmt.Errorf("scrape page %d: %w", page, err)
		}
		if status < 200 || status >= 300 {
			return items, nil
		}

		doc, err := html.Parse(bytes.NewReader(body))
		if err != nil {
			return items, fmt.Errorf("%w: parse page %d: %v", ErrParse, page, err)
		}

		nodes := cascadia.QueryAll(doc, scrapeItemSelector)
		if len(nodes) == 0 {
			return items, nil
		}

		for _, node := range nodes {
			item, ok := parseScrapeItem(node)
			if !ok {
				a.caller.logger.Debug().
					Str("source", TagScrape).
					Int("page", page).
					Msg("scrape item skipped, missing or malformed fields")
				continue
			}
			if reachedCursor(item.Date, since) {
				return items, nil
			}
			items = append(items, item)
		}
	}

	return items, nil
}

func parseScrapeItem(node *html.Node) (Item, bool) {
	textNode := cascadia.Query(node, scrapeTextSelector)
	dateNode := cascadia.Query(node, scrapeDateSelector)
	if textNode == nil || dateNode == nil {
		return Item{}, false
	}

	text := flattenText(nodeText(textNode))
	if text == "" {
		return Item{}, false
	}

	dateRaw := nodeAttr(dateNode, "content")
	if dateRaw == "" {
		return Item{}, false
	}
	date, err := parseScrapeDate(dateRaw)
	if err != nil {
		return Item{}, false
	}

	return Item{Text: text, Date: date.UTC()}, true
}

func parseScrapeDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

func nodeText(node *html.Node) string {
	var builder strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			builder.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return builder.String()
}

func nodeAttr(node *html.Node, name string) string {
	for _, attr := range node.Attr {
		if attr.Key == name {
			return strings.TrimSpace(attr.Val)
		}
	}
	return ""
}
