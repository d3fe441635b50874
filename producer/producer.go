// Package producer provides the interface for public IP address detection
// and the errors shared by its implementations.
package producer

import (
	"context"
	"errors"
)

var (
	// ErrNetwork is wrapped by errors caused by a failed connection or request.
	ErrNetwork = errors.New("network error")

	// ErrResponse is wrapped by errors caused by an unusable response.
	ErrResponse = errors.New("response error")
)

// Source represents an observable, ever-changing public IP address.
type Source interface {
	// Snapshot returns the current IP address in its textual form.
	//
	// The returned string is never empty when the error is nil.
	// Implementations are not required to validate the address syntax.
	Snapshot(ctx context.Context) (string, error)
}

// SourceFunc adapts a function to the [Source] interface.
type SourceFunc func(ctx context.Context) (string, error)

// Snapshot implements [Source.Snapshot].
func (f SourceFunc) Snapshot(ctx context.Context) (string, error) {
	return f(ctx)
}
