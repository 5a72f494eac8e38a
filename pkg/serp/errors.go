package serp

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials means no API key was configured for the oracle
	ErrMissingCredentials = errors.New("search API credentials are not configured")
	// ErrUnauthorized means the oracle rejected the configured credentials
	ErrUnauthorized = errors.New("search API rejected credentials")
)

// ErrorKind classifies oracle failures
type ErrorKind string

const (
	// KindConfig failures are fatal to the whole analysis and never retried
	KindConfig    ErrorKind = "config"
	KindTransport ErrorKind = "transport"
	KindStatus    ErrorKind = "status"
	KindDecode    ErrorKind = "decode"
)

// Error is the typed failure surfaced by the search and volume clients
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Query      string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("search %s error (status %d) for %q: %v", e.Kind, e.StatusCode, e.Query, e.Err)
	}
	return fmt.Sprintf("search %s error for %q: %v", e.Kind, e.Query, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is a configuration error that should abort
// the analysis instead of dropping a single keyword
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMissingCredentials) || errors.Is(err, ErrUnauthorized) {
		return true
	}
	var serpErr *Error
	return errors.As(err, &serpErr) && serpErr.Kind == KindConfig
}

// IsRetryable reports whether another attempt could succeed
func IsRetryable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
