package crawler

import "errors"

var (
	// ErrRequiredFetch marks a failed fetch of an endpoint the entity cannot do without.
	ErrRequiredFetch = errors.New("required fetch failed")
	// ErrSessionDatesMissing is returned when a session id has no entry in the session-date table.
	ErrSessionDatesMissing = errors.New("session dates missing")
	// ErrPartialCrawl is returned by Run when the pass finished but some entities were aborted.
	ErrPartialCrawl = errors.New("crawl completed with aborted entities")
)
