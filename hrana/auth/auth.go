// Package auth implements the credential validation boundary referenced by
// the connection session's hello handling (§5): given the optional bearer
// token carried on the hello message, decide whether the connection may
// proceed to Running.
package auth

import "context"

// Validator validates the bearer token presented on a hello message (or its
// absence). It is the only information that crosses the boundary: the
// validator never sees request content, stream state, or anything else
// about the connection.
type Validator func(ctx context.Context, token *string) error

// NoAuth accepts every connection regardless of the presented token,
// matching the "auth disabled" case a server can be configured with.
func NoAuth() Validator {
	return func(ctx context.Context, token *string) error {
		return nil
	}
}
