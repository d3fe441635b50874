package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNetwork            = errors.New("network error")
	ErrResponse           = errors.New("malformed API response")
	ErrAPIResponseFailure = errors.New("API response indicates failure")
	ErrRecordNotFound     = errors.New("DNS record not found")
)

// APIError is returned when the provider reports a logical failure,
// such as bad authentication or rate limiting.
//
// APIError matches [ErrAPIResponseFailure] with [errors.Is].
type APIError struct {
	// StatusCode is the HTTP status code of the response.
	StatusCode int

	// Messages are the error messages reported by the provider, in order.
	Messages []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("%s: status code %d", ErrAPIResponseFailure, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", ErrAPIResponseFailure, strings.Join(e.Messages, "; "))
}

func (e *APIError) Is(target error) bool {
	return target == ErrAPIResponseFailure
}

// RecordKeeper interacts with a DNS provider to keep a zone's records
// pointed at the source address.
type RecordKeeper interface {
	// SyncRecord points the named record at content with the given proxy flag.
	//
	// The record is looked up on every call. When no record in the zone has
	// exactly the given name, the returned error wraps [ErrRecordNotFound].
	// When the API response indicates a failure, the returned error wraps
	// [ErrAPIResponseFailure].
	SyncRecord(ctx context.Context, name string, proxied bool, content string) error
}

// IsPermanent returns whether err is not worth retrying:
// the provider answered, and the answer was no.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrRecordNotFound) || errors.Is(err, ErrAPIResponseFailure)
}
