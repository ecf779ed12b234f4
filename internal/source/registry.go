package source

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Source tags. They double as the review.source column values.
const (
	TagMaps      = "maps"
	TagSocial    = "social"
	TagScrape    = "scrape"
	TagMessaging = "messaging"
)

// Config carries the per-source credentials and the shared pacing knobs.
type Config struct {
	MapsBaseURL      string
	MapsAPIKey       string
	MapsToken        string
	SocialBaseURL    string
	SocialToken      string
	MessagingBaseURL string
	MessagingToken   string
	UserAgent        string
	CallDelay        time.Duration
	Timeout          time.Duration
	Logger           zerolog.Logger
}

// Registry builds single-use adapters from institution links. One
// registry is constructed at process start; every ingestion run asks it
// for a fresh adapter.
type Registry struct {
	cfg Config
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg}
}

// KnownTag reports whether tag names a registered source.
func KnownTag(tag string) bool {
	switch tag {
	case TagMaps, TagSocial, TagScrape, TagMessaging:
		return true
	}
	return false
}

// New returns a fresh adapter for the given source tag and institution
// link. Identifier-style sources resolve the trailing path segment of
// the link; the scrape source uses the link as the page URL template.
func (r *Registry) New(tag, link string) (Adapter, error) {
	if link == "" {
		return nil, fmt.Errorf("institution has no %s link", tag)
	}

	call := newCaller(r.cfg.Timeout, r.cfg.CallDelay, r.cfg.UserAgent, r.cfg.Logger)

	switch tag {
	case TagMaps:
		branchID, err := ExternalID(link)
		if err != nil {
			return nil, err
		}
		return newMapsAdapter(call, r.cfg.MapsBaseURL, branchID, r.cfg.MapsAPIKey, r.cfg.MapsToken), nil
	case TagSocial:
		screenName, err := ExternalID(link)
		if err != nil {
			return nil, err
		}
		return newSocialAdapter(call, r.cfg.SocialBaseURL, screenName, r.cfg.SocialToken), nil
	case TagScrape:
		return newScrapeAdapter(call, link), nil
	case TagMessaging:
		channel, err := ExternalID(link)
		if err != nil {
			return nil, err
		}
		return newMessagingAdapter(call, r.cfg.MessagingBaseURL, channel, r.cfg.MessagingToken), nil
	default:
		return nil, fmt.Errorf("unknown source %q", tag)
	}
}
