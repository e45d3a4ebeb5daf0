// Package domain contains core business types and interfaces.
//
// This file defines the Member domain type and the subscription types that
// entitlement decisions are made against. Members are owned by the host
// identity system; this service references them and never creates them.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the possible states of a member's subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPending  SubscriptionStatus = "pending"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
)

// Member represents a subscriber identity projected from the host system.
type Member struct {
	ID               uuid.UUID
	Email            string
	Name             string
	StripeCustomerID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DisplayName returns the member's name or email if name is empty.
func (m *Member) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Email
}

// Subscription links a member to a subscription level for a billing period.
// A member has at most one subscription at a time.
type Subscription struct {
	ID        uuid.UUID
	MemberID  uuid.UUID
	LevelID   uuid.UUID
	Status    SubscriptionStatus
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExpired returns true if the subscription's period has lapsed or its
// status marks it as no longer paid up.
func (s *Subscription) IsExpired() bool {
	if s.Status == SubscriptionStatusExpired || s.Status == SubscriptionStatusCanceled {
		return true
	}
	return s.ExpiresAt != nil && time.Now().After(*s.ExpiresAt)
}

// IsActive returns true if the subscription currently entitles the member
// to member benefits. Pending (unpaid first period) and past-due
// subscriptions do not qualify.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive && !s.IsExpired()
}

// Session represents an authenticated member session.
//
// Sessions are issued by the host identity system and stored with a hashed
// token; this service only validates them.
type Session struct {
	ID        uuid.UUID
	MemberID  uuid.UUID
	TokenHash string // SHA-256 hash of the session token
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
