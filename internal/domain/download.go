package domain

import (
	"time"

	"github.com/google/uuid"
)

// Download is a catalog item that members can obtain with quota or by
// purchase. FileKeys are object-storage keys for the protected files.
type Download struct {
	ID              uuid.UUID
	Name            string
	PriceCents      int64
	IsBundle        bool
	VariablePricing bool
	FileKeys        []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasFiles returns true if at least one downloadable file is attached.
func (d *Download) HasFiles() bool {
	return len(d.FileKeys) > 0
}

// QuotaEligible reports whether this item can be fulfilled through the
// member-download flow at all. Bundles and variably priced items go
// through the normal purchase flow instead.
func (d *Download) QuotaEligible() bool {
	return !d.IsBundle && !d.VariablePricing && d.HasFiles()
}
