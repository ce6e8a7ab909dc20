package client

import (
	"context"
	"errors"
)

// ErrorCategory is a stable label for an upstream failure, used as a metric label
// and as the reason surfaced to callers.
type ErrorCategory string

const (
	ErrorCategoryInvalidCredential ErrorCategory = "invalid_credential"
	ErrorCategoryRateLimited       ErrorCategory = "rate_limited"
	ErrorCategoryTimeout           ErrorCategory = "timeout"
	ErrorCategoryUnexpectedStatus  ErrorCategory = "unexpected_status"
	ErrorCategoryUnreachable       ErrorCategory = "unreachable"
	ErrorCategoryMalformed         ErrorCategory = "malformed_response"
	ErrorCategoryCanceled          ErrorCategory = "canceled"
	ErrorCategoryUnknown           ErrorCategory = "unknown"
)

// CategorizeError maps an upstream error to its ErrorCategory. Returns "" for nil.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	var statusErr *UnexpectedStatusError
	switch {
	case errors.Is(err, context.Canceled):
		return ErrorCategoryCanceled
	case errors.Is(err, ErrInvalidCredential):
		return ErrorCategoryInvalidCredential
	case errors.Is(err, ErrRateLimited):
		return ErrorCategoryRateLimited
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorCategoryTimeout
	case errors.As(err, &statusErr):
		return ErrorCategoryUnexpectedStatus
	case errors.Is(err, ErrUnreachable):
		return ErrorCategoryUnreachable
	case errors.Is(err, ErrMalformedResponse):
		return ErrorCategoryMalformed
	default:
		return ErrorCategoryUnknown
	}
}
