// Package auth decides what an already authenticated caller may do.
package auth

import (
	"context"
)

// Action names a privileged operation.
type Action string

const (
	ActionModerateRatings     Action = "ratings:moderate"
	ActionDownloadAnyCert     Action = "certificates:download-any"
	ActionBatchCertificates   Action = "certificates:batch"
	ActionCertificateStatsAll Action = "certificates:stats"
)

// Identity is the caller supplied by the identity provider for one request.
// A zero UserID is an anonymous caller.
type Identity struct {
	UserID  int64
	IsAdmin bool
}

// Anonymous reports whether the identity carries no user.
func (i Identity) Anonymous() bool {
	return i.UserID <= 0
}

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored in ctx, or the anonymous identity.
func IdentityFrom(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey{}).(Identity); ok {
		return id
	}
	return Identity{}
}

// Authorizer is the predicate (userID, action) -> bool used by the services.
type Authorizer interface {
	Can(ctx context.Context, userID int64, action Action) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, userID int64, action Action) bool

// Can implements Authorizer.
func (f AuthorizerFunc) Can(ctx context.Context, userID int64, action Action) bool {
	return f(ctx, userID, action)
}

// ClaimsAuthorizer grants every action to administrators named by the request
// identity. The identity must belong to the user being checked.
type ClaimsAuthorizer struct{}

// NewClaimsAuthorizer creates a ClaimsAuthorizer.
func NewClaimsAuthorizer() *ClaimsAuthorizer {
	return &ClaimsAuthorizer{}
}

// Can implements Authorizer.
func (ClaimsAuthorizer) Can(ctx context.Context, userID int64, _ Action) bool {
	if userID <= 0 {
		return false
	}
	id := IdentityFrom(ctx)
	return id.UserID == userID && id.IsAdmin
}

// StaticAuthorizer grants every action to a fixed set of administrator ids.
// Used where no request identity exists, such as the CLI and scheduled jobs.
type StaticAuthorizer struct {
	admins map[int64]struct{}
}

// NewStaticAuthorizer creates a StaticAuthorizer for adminIDs.
func NewStaticAuthorizer(adminIDs []int64) *StaticAuthorizer {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		if id > 0 {
			admins[id] = struct{}{}
		}
	}
	return &StaticAuthorizer{admins: admins}
}

// Can implements Authorizer.
func (a *StaticAuthorizer) Can(_ context.Context, userID int64, _ Action) bool {
	_, ok := a.admins[userID]
	return ok
}

// AnyOf grants an action when any of the given authorizers grants it.
func AnyOf(authorizers ...Authorizer) Authorizer {
	return AuthorizerFunc(func(ctx context.Context, userID int64, action Action) bool {
		for _, a := range authorizers {
			if a != nil && a.Can(ctx, userID, action) {
				return true
			}
		}
		return false
	})
}
