package session

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/glucolink/internal/common"
	"github.com/dmitrijs2005/glucolink/internal/linkup"
)

// Authed runs fn with a valid AuthContext. When the upstream rejects the
// token (common.ErrUnauthorized), the session is re-established once and fn
// is retried exactly once; a second rejection is returned to the caller.
// Every other error passes through untouched.
func Authed[T any](ctx context.Context, m Manager, fn func(ctx context.Context, auth linkup.AuthContext) (T, error)) (T, error) {
	var zero T

	auth, err := m.EnsureAuthenticated(ctx)
	if err != nil {
		return zero, err
	}

	out, err := fn(ctx, auth)
	if err == nil || !errors.Is(err, common.ErrUnauthorized) {
		return out, err
	}

	auth, err = m.OnUnauthorized(ctx)
	if err != nil {
		return zero, err
	}
	return fn(ctx, auth)
}
