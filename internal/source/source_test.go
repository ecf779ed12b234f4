package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestExternalID(t *testing.T) {
	t.Parallel()

	id, err := ExternalID("https://maps.example.com/org/70000001018907821/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "70000001018907821" {
		t.Fatalf("unexpected external id: %q", id)
	}

	if _, err := ExternalID("https://maps.example.com"); err == nil {
		t.Fatalf("expected error for link without path segments")
	}
}

func TestReachedCursor(t *testing.T) {
	t.Parallel()

	cursor := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if reachedCursor(cursor.Add(time.Second), &cursor) {
		t.Fatalf("item newer than cursor must not stop pagination")
	}
	if !reachedCursor(cursor, &cursor) {
		t.Fatalf("item equal to cursor must stop pagination")
	}
	if !reachedCursor(cursor.Add(-time.Second), &cursor) {
		t.Fatalf("item older than cursor must stop pagination")
	}
	if reachedCursor(cursor, nil) {
		t.Fatalf("nil cursor must never stop pagination")
	}
}

func TestAdapterIsSingleUse(t *testing.T) {
	t.Parallel()

	adapter := newScrapeAdapter(newCaller(time.Second, 0, "test", zerolog.Nop()), "http://127.0.0.1:1/reviews")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// First run fails on transport, which still consumes the adapter.
	if _, err := adapter.Fetch(ctx, nil); err == nil {
		t.Fatalf("expected transport error from unroutable address")
	}
	if _, err := adapter.Fetch(ctx, nil); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted on second fetch, got %v", err)
	}
}

func TestFlattenText(t *testing.T) {
	t.Parallel()

	if got := flattenText("  great\n\nshow \t here "); got != "great show here" {
		t.Fatalf("unexpected flattened text: %q", got)
	}
}
