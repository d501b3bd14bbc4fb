package crawler

import (
	"errors"
	"fmt"
)

// ErrClientClosed is wrapped in a NetworkError when a fetch is attempted on a
// released client.
var ErrClientClosed = errors.New("fetch client closed")

// NetworkError reports a transport-level failure.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPStatusError reports a non-success response code.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
}

// DecodeError reports a body that could not be read as text.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode body of %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// MalformedContentError reports a missing structural marker or an unparsable
// value in a fetched page.
type MalformedContentError struct {
	What string
	Err  error
}

// Malformed builds a MalformedContentError from a format string.
func Malformed(format string, args ...any) *MalformedContentError {
	return &MalformedContentError{What: fmt.Sprintf(format, args...)}
}

func (e *MalformedContentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed content: %s: %v", e.What, e.Err)
	}
	return "malformed content: " + e.What
}

func (e *MalformedContentError) Unwrap() error { return e.Err }

// UnsupportedCategoryError is returned when no strategy handles a category.
type UnsupportedCategoryError struct {
	Category Category
}

func (e *UnsupportedCategoryError) Error() string {
	return fmt.Sprintf("no extraction strategy for category %q (%s)", e.Category.Title, e.Category.Path)
}
