package service

import (
	"context"
	"errors"

	"github.com/kjstillabower/weather-resolver/internal/client"
)

// Reason maps a resolve error to a stable, bounded string used in responses and
// metric labels. Returns "" for nil.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrLocationNotResolved):
		return "location_not_resolved"
	case errors.Is(err, ErrRecordStore):
		return "record_store"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return string(client.CategorizeError(err))
	}
}
