package domain

import (
	"time"

	"github.com/google/uuid"
)

// MetaKeyDownloadsAllowed is the level-meta key holding the number of
// member downloads permitted per billing period. An absent key means
// downloads are not enabled for the level.
const MetaKeyDownloadsAllowed = "downloads_allowed"

// SubscriptionLevel is a tier of the subscription service. Arbitrary
// configuration is attached to a level through its meta store; this core
// only reads and writes the downloads-allowed key.
type SubscriptionLevel struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
