package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/abelbrown/viralengine/internal/model"
)

// RSSSource reads an RSS or Atom feed. Feeds carry no engagement data, so
// metrics are zero and these signals only cluster with peers.
type RSSSource struct {
	name string
	url  string
	http *httpGetter
}

// NewRSSSource creates a feed provider.
func NewRSSSource(name, feedURL, userAgent string, timeout time.Duration) *RSSSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RSSSource{
		name: name,
		url:  feedURL,
		http: newHTTPGetter(timeout, 200*time.Millisecond, userAgent),
	}
}

func (s *RSSSource) Name() string {
	return "rss:" + s.name
}

// Available is true when a feed URL is configured.
func (s *RSSSource) Available() bool {
	return s.url != ""
}

// FetchSignals parses the feed into signals.
func (s *RSSSource) FetchSignals(ctx context.Context, opts Options) ([]model.NormalizedSignal, error) {
	body, err := s.http.get(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse feed: %w", s.name, err)
	}

	sigs := make([]model.NormalizedSignal, 0, len(feed.Items))
	for _, item := range feed.Items {
		if opts.Limit > 0 && len(sigs) >= opts.Limit {
			break
		}
		sigs = append(sigs, s.convert(item, opts.Industry))
	}
	return sigs, nil
}

// convert maps a gofeed.Item onto a signal. The external ID is a hash of the
// GUID, falling back to the link and then title+published time.
func (s *RSSSource) convert(item *gofeed.Item, industry string) model.NormalizedSignal {
	key := item.GUID
	if key == "" {
		key = item.Link
	}
	if key == "" {
		key = item.Title
		if item.PublishedParsed != nil {
			key += item.PublishedParsed.String()
		}
	}

	var published time.Time
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.UTC()
	}

	author := ""
	if item.Author != nil {
		author = item.Author.Name
	}

	excerpt := item.Description
	if excerpt == "" {
		excerpt = item.Content
	}

	return model.NormalizedSignal{
		SourceType:        model.SourceRSS,
		ExternalID:        hashString(key),
		URL:               item.Link,
		Title:             strings.TrimSpace(item.Title),
		Author:            author,
		Community:         s.name,
		CreatedAtExternal: published,
		RawExcerpt:        model.TruncateExcerpt(cleanText(excerpt)),
		Industry:          industry,
	}
}
