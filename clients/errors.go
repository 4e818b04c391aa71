package clients

import (
	"errors"
	"fmt"
)

// HTTPError is returned when an endpoint answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

var (
	// ErrEmptyRate is returned when the rate source has no data points.
	ErrEmptyRate = errors.New("rate source returned no data")

	// ErrInvalidRate is returned for a zero or negative price.
	ErrInvalidRate = errors.New("rate source returned a non-positive price")
)

// RateSourceError carries the message of a rate source error payload.
type RateSourceError struct {
	Message string
}

func (e *RateSourceError) Error() string {
	return "rate source error: " + e.Message
}
