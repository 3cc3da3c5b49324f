// Package authctx carries the authenticated principal through a request.
package authctx

import (
	"context"

	"staffbook-backend/internal/domain"
)

type contextKey string

const userContextKey contextKey = "currentUser"

// CurrentUser is what the access token asserts. Services reload role and
// status from storage before authorizing anything.
type CurrentUser struct {
	ID        int64
	CompanyID int64
	Email     string
	Role      domain.UserRole
}

func WithCurrentUser(ctx context.Context, user CurrentUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func FromContext(ctx context.Context) *CurrentUser {
	val, ok := ctx.Value(userContextKey).(CurrentUser)
	if !ok {
		return nil
	}
	return &val
}
