package scraper

import (
	"context"
	"errors"

	"github.com/use-agent/tgsearch/models"
)

// categorizeError translates raw browser and context errors into typed
// errors so nothing low-level escapes the package. A typed error anywhere in
// the chain is returned bare, without the wrapping engine prefixes.
func categorizeError(err error, msg string) error {
	var driverErr *models.DriverInitializationError
	if errors.As(err, &driverErr) {
		return driverErr
	}
	var scrapeErr *models.ScrapeError
	if errors.As(err, &scrapeErr) {
		return scrapeErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "search canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
