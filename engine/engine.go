package engine

import (
	"context"
	"time"
)

// Engine fetches the markup of a search page.
type Engine interface {
	// Name returns the engine identifier ("http", "rod").
	Name() string

	// Fetch retrieves the page for req.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest is one page fetch.
type FetchRequest struct {
	URL string

	// Timeout caps the fetch; engines may apply a tighter limit of their own.
	Timeout time.Duration
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML string

	// StatusCode is the HTTP status, or 0 when the engine cannot see it.
	StatusCode int

	// FinalURL is the page address after redirects.
	FinalURL string

	EngineName string
}

// AcceptFunc decides whether a fetched page is usable. A page that fails
// the check makes the dispatcher escalate to the next engine.
type AcceptFunc func(*FetchResult) bool
