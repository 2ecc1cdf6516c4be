// Package model defines the domain types shared by the opportunity engine.
//
// Signals are the only persisted input. Clusters, search intelligence and
// strategic gates are computed per build cycle; opportunities and briefs are
// persisted by internal/store.
package model

import (
	"strings"
	"time"
)

// SourceType identifies the platform a signal came from.
type SourceType string

const (
	SourceReddit SourceType = "reddit"
	SourceRSS    SourceType = "rss"
	SourceHN     SourceType = "hn"
)

// Metrics holds the engagement counters observed for a signal. Metrics are
// the only signal field (besides FetchedAt) refreshed on re-ingestion.
type Metrics struct {
	Upvotes     int                `json:"upvotes"`
	Comments    int                `json:"comments"`
	UpvoteRatio float64            `json:"upvoteRatio,omitempty"`
	Shares      int                `json:"shares,omitempty"`
	Views       int                `json:"views,omitempty"`
	Extra       map[string]float64 `json:"extra,omitempty"`
}

// Engagement is upvotes plus comments.
func (m Metrics) Engagement() int {
	return m.Upvotes + m.Comments
}

// NormalizedSignal is what a source provider returns. The store assigns the
// ID and FetchedAt.
type NormalizedSignal struct {
	SourceType        SourceType
	ExternalID        string
	URL               string
	Title             string
	Author            string
	Community         string
	CreatedAtExternal time.Time
	Metrics           Metrics
	RawExcerpt        string
	Industry          string
}

// Signal is a single observed social post as stored.
type Signal struct {
	ID                string
	SourceType        SourceType
	ExternalID        string
	URL               string
	Title             string
	Author            string
	Community         string
	CreatedAtExternal time.Time // zero when the source did not report it
	Metrics           Metrics
	RawExcerpt        string
	Industry          string
	FetchedAt         time.Time
	CreatedAt         time.Time
}

// DedupeKey returns the (sourceType, externalId) identity of the signal.
func (s Signal) DedupeKey() string {
	return string(s.SourceType) + ":" + s.ExternalID
}

// ObservedAt is the best known creation time of the post.
func (s Signal) ObservedAt() time.Time {
	if !s.CreatedAtExternal.IsZero() {
		return s.CreatedAtExternal
	}
	return s.FetchedAt
}

// Text returns title and excerpt joined, for pattern matching.
func (s Signal) Text() string {
	if s.RawExcerpt == "" {
		return s.Title
	}
	return s.Title + " " + s.RawExcerpt
}

// MaxExcerptRunes bounds stored excerpts.
const MaxExcerptRunes = 500

// TruncateExcerpt shortens s to MaxExcerptRunes runes, adding "..." if cut.
func TruncateExcerpt(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= MaxExcerptRunes {
		return s
	}
	return string(runes[:MaxExcerptRunes-3]) + "..."
}
