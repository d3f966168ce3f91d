package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/tgsearch/models"
	"github.com/use-agent/tgsearch/render"
	"github.com/use-agent/tgsearch/scraper"
)

// Searcher is the part of *scraper.Scraper the handlers need.
type Searcher interface {
	Lookup(ctx context.Context, query string, page int) (*scraper.SearchResult, error)
	Stats() models.PoolStats
}

// Search returns a handler for GET /api/v1/search.
//
// Orchestration flow:
//  1. Bind & validate query parameters, apply defaults.
//  2. Searcher.Lookup → deduplicated records.
//  3. Render Markdown when format=markdown.
//  4. Fill Timing, return 200.
func Search(sc Searcher, md *render.Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.SearchRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.SearchResponse{
				Success: false,
				Results: []models.ResultRecord{},
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		// ── 2. Search ───────────────────────────────────────────────
		result, err := sc.Lookup(c.Request.Context(), req.Query, req.Page)
		if err != nil {
			respondError(c, err, models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()})
			return
		}

		records := result.Records
		if records == nil {
			records = []models.ResultRecord{}
		}

		resp := models.SearchResponse{
			Success:    true,
			Query:      result.Query,
			Page:       result.Page,
			Count:      len(records),
			Results:    records,
			EngineUsed: result.EngineUsed,
		}

		// ── 3. Render ───────────────────────────────────────────────
		if req.Format == "markdown" {
			content, err := md.Results(result.Query, result.Page, records)
			if err != nil {
				respondError(c, err, models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()})
				return
			}
			resp.Content = content
		}

		// ── 4. Respond ──────────────────────────────────────────────
		resp.Timing = models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()}
		c.JSON(http.StatusOK, resp)
	}
}

// respondError maps a search error to the correct HTTP status code and
// writes a structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	status, detail := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("search request failed", "status", status, "error", err)
	}
	c.JSON(status, models.SearchResponse{
		Success: false,
		Results: []models.ResultRecord{},
		Error:   detail,
		Timing:  timing,
	})
}

func classify(err error) (int, *models.ErrorDetail) {
	var driverErr *models.DriverInitializationError
	if errors.As(err, &driverErr) {
		return http.StatusServiceUnavailable, driverErr.ToDetail()
	}

	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}
	return mapErrorToStatus(scrapeErr), scrapeErr.ToDetail()
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeParse:
		return http.StatusBadGateway // 502
	case models.ErrCodeDriverInit:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
