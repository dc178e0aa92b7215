package scraper

import (
	"context"
	"errors"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/use-agent/lmstrack/models"
)

// categorizeError maps a Rod/CDP error to a ScrapeError. Errors that already
// carry a code are returned unchanged.
func categorizeError(err error, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	case isStale(err):
		return models.NewScrapeError(models.ErrCodeStale, msg, err)
	case isNotFound(err):
		return models.NewScrapeError(models.ErrCodeNotFound, msg, err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}

// isStale reports whether err means a held element reference no longer
// points into the live document (the table re-rendered under us).
func isStale(err error) bool {
	var objErr *rod.ObjectNotFoundError
	if errors.As(err, &objErr) {
		return true
	}
	if errors.Is(err, cdp.ErrObjNotFound) || errors.Is(err, cdp.ErrCtxNotFound) || errors.Is(err, cdp.ErrCtxDestroyed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "No node with given id") ||
		strings.Contains(msg, "Node with given id does not belong to the document")
}

func isNotFound(err error) bool {
	var notFound *rod.ElementNotFoundError
	return errors.As(err, &notFound)
}
