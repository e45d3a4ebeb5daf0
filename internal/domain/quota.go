// Package domain contains core business types and interfaces.
//
// This file defines the entitlement value object that download
// authorization decisions are made from. An Entitlement is resolved once
// per request and threaded through the decision procedure; it is never
// stored.
package domain

import (
	"github.com/google/uuid"
)

// Entitlement captures everything the authorizer needs to know about a
// member's download rights at a point in time.
type Entitlement struct {
	MemberID uuid.UUID
	LevelID  uuid.UUID
	// Active is true iff the member holds a non-expired, non-pending
	// subscription whose level enables downloads (allowance > 0).
	Active bool
	// Allowance is the configured downloads-allowed for the member's level.
	// Zero when the level does not enable downloads or the member has no
	// subscription.
	Allowance int
	// Consumed is the number of downloads debited against the current
	// billing period.
	Consumed int
}

// Remaining returns the downloads the member may still take this period.
// Never negative, even if Consumed transiently exceeds Allowance (e.g.
// after an admin lowers a level's allowance mid-period).
func (e *Entitlement) Remaining() int {
	remaining := e.Allowance - e.Consumed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// AtLimit returns true if the member has no quota left this period.
func (e *Entitlement) AtLimit() bool {
	return e.Remaining() == 0
}
