package db

import (
	"encoding/json"
	"time"
)

// Review source tags. One per external adapter.
const (
	SourceMaps      = "maps"
	SourceSocial    = "social"
	SourceScrape    = "scrape"
	SourceMessaging = "messaging"
)

// Sentiment labels stored on reviews.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Institution maps opinio.institutions. Per-source links hold the public
// page for that institution on the external source; the trailing path
// segment is the source-side identifier.
type Institution struct {
	InstitutionID    int64     `gorm:"column:institution_id;primaryKey;autoIncrement"`
	Name             string    `gorm:"column:name;type:text;not null"`
	Address          string    `gorm:"column:address;type:text;not null;default:''"`
	MapsLink         *string   `gorm:"column:maps_link;type:text"`
	SocialLink       *string   `gorm:"column:social_link;type:text"`
	ScrapeLink       *string   `gorm:"column:scrape_link;type:text"`
	MessagingChannel *string   `gorm:"column:messaging_channel;type:text"`
	CreatedAt        time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Institution) TableName() string { return "opinio.institutions" }

// Event maps opinio.events.
type Event struct {
	EventID   int64     `gorm:"column:event_id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;type:text;not null"`
	Date      time.Time `gorm:"column:date;type:timestamptz;not null"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Event) TableName() string { return "opinio.events" }

// Review maps opinio.reviews. Enrichment columns are written by
// independent jobs, each touching its own disjoint set of fields.
type Review struct {
	ReviewID      int64           `gorm:"column:review_id;primaryKey;autoIncrement"`
	InstitutionID int64           `gorm:"column:institution_id;type:bigint;not null;index"`
	EventID       *int64          `gorm:"column:event_id;type:bigint"`
	Text          string          `gorm:"column:text;type:text;not null"`
	Source        string          `gorm:"column:source;type:text;not null"`
	ExternalID    *string         `gorm:"column:external_id;type:text"`
	Sentiment     *string         `gorm:"column:sentiment;type:text"`
	Confidence    *float64        `gorm:"column:confidence;type:double precision"`
	Keywords      json.RawMessage `gorm:"column:keywords;type:jsonb;not null;default:'[]'"`
	PosAspects    json.RawMessage `gorm:"column:positive_aspects;type:jsonb;not null;default:'[]'"`
	NegAspects    json.RawMessage `gorm:"column:negative_aspects;type:jsonb;not null;default:'[]'"`
	Flagged       *bool           `gorm:"column:flagged"`
	ReviewedAt    time.Time       `gorm:"column:reviewed_at;type:timestamptz;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Review) TableName() string { return "opinio.reviews" }

func autoMigrateModels() []any {
	return []any{
		&Institution{},
		&Event{},
		&Review{},
	}
}
