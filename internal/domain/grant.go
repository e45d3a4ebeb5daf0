package domain

import (
	"github.com/google/uuid"
)

// GrantOutcome identifies which branch of the authorization procedure
// produced a download grant.
type GrantOutcome string

const (
	// OutcomeLedger means the item was already owned and the URL was
	// resolved from the existing purchase record; no quota was spent.
	OutcomeLedger GrantOutcome = "fulfilled_from_ledger"

	// OutcomeQuotaSpent means a quota transaction was recorded and one
	// unit of the member's allowance was consumed.
	OutcomeQuotaSpent GrantOutcome = "quota_spent"
)

// DownloadGrant is the successful result of a download authorization:
// a resolvable file URL plus how it was obtained.
type DownloadGrant struct {
	URL           string
	Outcome       GrantOutcome
	TransactionID uuid.UUID
}

// Eligibility is the display-time answer for whether the member-download
// affordance should be shown for an item. Advisory only: fulfillment
// re-validates everything.
type Eligibility struct {
	Eligible  bool
	Purchased bool
	Remaining int
}
