package models

// ResultRecord is a single Telegram channel or group found by a search.
// Link is the dedup key within a result set.
type ResultRecord struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// SearchRequest is the query-string payload for GET /api/v1/search.
type SearchRequest struct {
	// Query is the free-text search. Required.
	Query string `form:"q" binding:"required"`

	// Page is the 1-based result page. Default: 1.
	Page int `form:"page" binding:"omitempty,min=1,max=50"`

	// Format controls the response body.
	// "json" (default): results only. "markdown": results plus a rendered list in Content.
	Format string `form:"format" binding:"omitempty,oneof=json markdown"`
}

// Defaults applies default values to unset fields.
func (r *SearchRequest) Defaults() {
	if r.Page == 0 {
		r.Page = 1
	}
	if r.Format == "" {
		r.Format = "json"
	}
}

// SearchResponse is the response for GET /api/v1/search.
type SearchResponse struct {
	// Success indicates whether the search completed without errors.
	// An empty Results slice with Success=true means "no matches".
	Success bool `json:"success"`

	Query string `json:"query,omitempty"`
	Page  int    `json:"page,omitempty"`
	Count int    `json:"count"`

	// Results holds the deduplicated records in page order.
	Results []ResultRecord `json:"results"`

	// Content is the Markdown rendering of Results when format=markdown.
	Content string `json:"content,omitempty"`

	// EngineUsed indicates which fetch engine produced the page
	// (e.g. "http", "rod"). Empty when multi-engine is disabled.
	EngineUsed string `json:"engine_used,omitempty"`

	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent serving a search.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports how many browser sessions are in use.
type PoolStats struct {
	MaxSessions    int `json:"max_sessions"`
	ActiveSessions int `json:"active_sessions"`
}
