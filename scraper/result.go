package scraper

import "github.com/use-agent/tgsearch/models"

// SearchResult is the detailed outcome of a Lookup.
type SearchResult struct {
	// URL is the search page that was fetched, after redirects.
	URL string

	Query string
	Page  int

	// Records is never nil; empty means no matches.
	Records []models.ResultRecord

	// EngineUsed records which engine fetched the page; empty when the
	// dispatcher is off.
	EngineUsed string
}
