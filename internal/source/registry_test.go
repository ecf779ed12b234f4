package source

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testRegistry() *Registry {
	return NewRegistry(Config{
		MapsBaseURL:      "https://maps.example.com",
		SocialBaseURL:    "https://social.example.com",
		MessagingBaseURL: "https://messaging.example.com",
		UserAgent:        "test",
		Timeout:          time.Second,
		Logger:           zerolog.Nop(),
	})
}

func TestRegistry_NewBuildsAdapterPerTag(t *testing.T) {
	t.Parallel()

	registry := testRegistry()
	cases := []struct {
		tag  string
		link string
	}{
		{TagMaps, "https://maps.example.com/place/42"},
		{TagSocial, "https://social.example.com/clinic_sunrise"},
		{TagScrape, "https://reviews.example.com/clinic?page=%d"},
		{TagMessaging, "https://messaging.example.com/channel/ch_9"},
	}
	for _, tc := range cases {
		adapter, err := registry.New(tc.tag, tc.link)
		if err != nil {
			t.Fatalf("New(%s): %v", tc.tag, err)
		}
		if adapter == nil {
			t.Fatalf("New(%s) returned nil adapter", tc.tag)
		}
	}
}

func TestRegistry_NewRejectsEmptyLink(t *testing.T) {
	t.Parallel()

	if _, err := testRegistry().New(TagMaps, ""); err == nil {
		t.Fatal("expected error for empty link")
	}
}

func TestRegistry_NewRejectsUnknownTag(t *testing.T) {
	t.Parallel()

	if _, err := testRegistry().New("carrier-pigeon", "https://example.com/x"); err == nil {
		t.Fatal("expected error for unknown tag")
	}
}

func TestKnownTag(t *testing.T) {
	t.Parallel()

	for _, tag := range []string{TagMaps, TagSocial, TagScrape, TagMessaging} {
		if !KnownTag(tag) {
			t.Fatalf("KnownTag(%s) = false", tag)
		}
	}
	if KnownTag("carrier-pigeon") {
		t.Fatal("KnownTag accepted an unregistered tag")
	}
}
