package model

import "time"

// SourceStatus tracks the last ingestion outcome of a provider.
type SourceStatus struct {
	Name        string
	LastFetched time.Time
	ItemCount   int
	ErrorCount  int
	LastError   string
}

// Healthy reports whether the most recent fetch succeeded.
func (s SourceStatus) Healthy() bool {
	return s.LastError == ""
}
