package cache

import "errors"

var (
	// ErrSuperseded is returned by a fetch whose result arrived after a newer
	// fetch for the same query was issued. The result is discarded.
	ErrSuperseded = errors.New("fetch superseded by a newer request")

	// ErrNoFetcher is returned when a query cannot be loaded because nothing
	// registered a fetcher for it
	ErrNoFetcher = errors.New("no fetcher registered for query")
)
