package provider

import (
	"errors"
	"fmt"
)

// ErrEndpointNotFound means every candidate date string was probed without a
// success response. The provider is skipped for this run.
var ErrEndpointNotFound = errors.New("no valid endpoint found")

// StatusError is a non-success HTTP status from a validated endpoint. Not
// retried: the endpoint answered, the answer was no.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// FetchError is a transport-level failure (timeout, connection reset) that
// exhausted the retry budget.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DecodeError means a payload was completely undecodable, failing the whole
// provider for the run. Single malformed entries are skipped and counted
// instead.
type DecodeError struct {
	Provider string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s payload: %v", e.Provider, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
