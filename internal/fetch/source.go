// Package fetch provides signal source providers.
//
// Each provider turns an external listing (subreddit, Hacker News front page,
// RSS/Atom feed) into model.NormalizedSignal values. Providers never store
// anything; the ingest pipeline decides what to do with the result.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"html"
	"regexp"
	"strings"

	"github.com/abelbrown/viralengine/internal/model"
)

// Source is a pluggable signal provider.
type Source interface {
	// Name identifies the source in logs and the sources status table.
	Name() string
	// Available reports whether the source is configured well enough to
	// be called.
	Available() bool
	// FetchSignals returns the source's current signals tagged with
	// opts.Industry.
	FetchSignals(ctx context.Context, opts Options) ([]model.NormalizedSignal, error)
}

// Options are per-run fetch parameters.
type Options struct {
	Industry string
	// Limit caps signals per source. Zero means the source default.
	Limit int
}

// hashString creates a short hash of a string for use as an external ID.
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:8]) // 16 character hex string
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// cleanText strips markup and collapses whitespace so excerpts stay compact.
func cleanText(s string) string {
	s = html.UnescapeString(tagPattern.ReplaceAllString(s, " "))
	return strings.Join(strings.Fields(s), " ")
}
