package filter

import (
	"strings"

	"github.com/abelbrown/viralengine/internal/model"
)

// Dedup removes signals repeated within one fetch batch: same
// (source type, external id), or same non-empty URL. First occurrence wins.
func Dedup(sigs []model.NormalizedSignal) []model.NormalizedSignal {
	if len(sigs) == 0 {
		return []model.NormalizedSignal{}
	}

	seenKeys := make(map[string]bool, len(sigs))
	seenURLs := make(map[string]bool, len(sigs))
	result := make([]model.NormalizedSignal, 0, len(sigs))

	for _, s := range sigs {
		key := string(s.SourceType) + ":" + s.ExternalID
		if seenKeys[key] {
			continue
		}
		url := strings.TrimRight(strings.TrimSpace(s.URL), "/")
		if url != "" && seenURLs[url] {
			continue
		}
		seenKeys[key] = true
		if url != "" {
			seenURLs[url] = true
		}
		result = append(result, s)
	}

	return result
}
