package archive

import (
	"errors"
	"fmt"
)

// ErrBlobNotFound is returned by BlobStore.Get for absent keys.
var ErrBlobNotFound = errors.New("blob not found")

// ErrNotFound is returned by store lookups for absent rows.
var ErrNotFound = errors.New("not found")

// ErrBusy signals that a manual scheduler run is already in flight.
var ErrBusy = errors.New("a crawl run is already in progress")

// FetchError wraps a transport failure or non-2xx response for one URL.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
