// Package auth provides authentication context helpers.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// memberContextKey is the key used to store the authenticated member in context.
	memberContextKey contextKey = "member"
)

// GetMember retrieves the authenticated member from the context.
// Returns nil if no member is authenticated.
func GetMember(ctx context.Context) *domain.Member {
	member, ok := ctx.Value(memberContextKey).(*domain.Member)
	if !ok {
		return nil
	}
	return member
}

// GetMemberFromRequest retrieves the authenticated member from the request context.
func GetMemberFromRequest(r *http.Request) *domain.Member {
	return GetMember(r.Context())
}

// SetMember stores a member in the context. Called by the authentication
// middleware after validating a session token.
func SetMember(ctx context.Context, member *domain.Member) context.Context {
	return context.WithValue(ctx, memberContextKey, member)
}
