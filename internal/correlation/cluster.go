package correlation

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/abelbrown/viralengine/internal/model"
)

// DefaultStandaloneUpvotes isolates a signal as its own cluster.
const DefaultStandaloneUpvotes = 100

// Clusterer groups signals by keyword overlap. It holds only immutable
// tables and is safe for concurrent use.
type Clusterer struct {
	stopwords         map[string]bool
	standaloneUpvotes int
}

// NewClusterer creates a Clusterer. standaloneUpvotes <= 0 uses the default.
func NewClusterer(stopwords []string, standaloneUpvotes int) *Clusterer {
	if standaloneUpvotes <= 0 {
		standaloneUpvotes = DefaultStandaloneUpvotes
	}
	return &Clusterer{
		stopwords:         StopwordSet(stopwords),
		standaloneUpvotes: standaloneUpvotes,
	}
}

// Keywords extracts a title's keywords with the clusterer's stopwords.
func (c *Clusterer) Keywords(title string) []string {
	return Keywords(title, c.stopwords)
}

type member struct {
	sig      model.Signal
	keywords []string
}

// Cluster splits signals into standalone high-engagement clusters and
// keyword-overlap clusters. Output is sorted by total engagement descending,
// then by cluster id, and is identical for identical input regardless of
// input order.
func (c *Clusterer) Cluster(signals []model.Signal) []model.Cluster {
	members := make([]member, 0, len(signals))
	for _, s := range signals {
		members = append(members, member{sig: s, keywords: c.Keywords(s.Title)})
	}
	sort.SliceStable(members, func(i, j int) bool {
		ei, ej := members[i].sig.Metrics.Engagement(), members[j].sig.Metrics.Engagement()
		if ei != ej {
			return ei > ej
		}
		return members[i].sig.ID < members[j].sig.ID
	})

	var clusters []model.Cluster
	var groups [][]member

	for _, m := range members {
		if m.sig.Metrics.Upvotes >= c.standaloneUpvotes {
			cl := buildCluster([]member{m})
			cl.Standalone = true
			clusters = append(clusters, cl)
			continue
		}

		joined := false
		for gi := range groups {
			if joins(groups[gi], m) {
				groups[gi] = append(groups[gi], m)
				joined = true
				break
			}
		}
		if !joined {
			groups = append(groups, []member{m})
		}
	}

	for _, g := range groups {
		clusters = append(clusters, buildCluster(g))
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		if clusters[i].TotalEngagement != clusters[j].TotalEngagement {
			return clusters[i].TotalEngagement > clusters[j].TotalEngagement
		}
		return clusters[i].ID < clusters[j].ID
	})
	return clusters
}

// joins reports whether m links to any member of group.
func joins(group []member, m member) bool {
	for _, other := range group {
		if related(other.keywords, m.keywords) {
			return true
		}
	}
	return false
}

// related applies the overlap threshold: two shared keywords, or one when
// either title is short (three keywords or fewer).
func related(a, b []string) bool {
	need := 2
	if len(a) <= 3 || len(b) <= 3 {
		need = 1
	}
	return Overlap(a, b) >= need
}

func buildCluster(ms []member) model.Cluster {
	cl := model.Cluster{Signals: make([]model.Signal, 0, len(ms))}
	kw := make(map[string]bool)
	ids := make([]string, 0, len(ms))
	for _, m := range ms {
		cl.Signals = append(cl.Signals, m.sig)
		cl.TotalEngagement += m.sig.Metrics.Engagement()
		ids = append(ids, m.sig.ID)
		for _, k := range m.keywords {
			kw[k] = true
		}
	}
	for k := range kw {
		cl.Keywords = append(cl.Keywords, k)
	}
	sort.Strings(cl.Keywords)

	sort.Strings(ids)
	h := sha256.Sum256([]byte(strings.Join(ids, ",")))
	cl.ID = hex.EncodeToString(h[:8])
	return cl
}
