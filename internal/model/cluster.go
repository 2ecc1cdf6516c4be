package model

import "time"

// Cluster is a set of signals sharing keyword overlap. Clusters are computed
// per build cycle and never persisted.
type Cluster struct {
	ID              string
	Signals         []Signal
	Keywords        []string // sorted, unique
	TotalEngagement int
	Standalone      bool // single high-engagement signal isolated from peers
}

// Topic is the title of the highest-engagement member.
func (c Cluster) Topic() string {
	best := -1
	topic := ""
	for _, s := range c.Signals {
		if e := s.Metrics.Engagement(); e > best {
			best = e
			topic = s.Title
		}
	}
	return topic
}

// SignalIDs returns the member ids in cluster order.
func (c Cluster) SignalIDs() []string {
	ids := make([]string, len(c.Signals))
	for i, s := range c.Signals {
		ids[i] = s.ID
	}
	return ids
}

// Communities returns the distinct originating communities.
func (c Cluster) Communities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range c.Signals {
		if s.Community == "" || seen[s.Community] {
			continue
		}
		seen[s.Community] = true
		out = append(out, s.Community)
	}
	return out
}

// Text concatenates member titles and excerpts.
func (c Cluster) Text() string {
	text := ""
	for i, s := range c.Signals {
		if i > 0 {
			text += "\n"
		}
		text += s.Text()
	}
	return text
}

// DateRange returns the earliest and latest observation times of the members.
func (c Cluster) DateRange() (time.Time, time.Time) {
	var from, to time.Time
	for _, s := range c.Signals {
		t := s.ObservedAt()
		if from.IsZero() || t.Before(from) {
			from = t
		}
		if t.After(to) {
			to = t
		}
	}
	return from, to
}
