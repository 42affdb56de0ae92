package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

const (
	EventTypeListingChanged   = "market.listing.changed"
	EventTypeApprovalChanged  = "market.approval.changed"
	EventTypeOwnershipChanged = "market.ownership.changed"
)

// ListingChanged signals that an asset's listing was created or removed and
// cached listing reads for it should be invalidated. Price is nil when the
// listing was removed.
type ListingChanged struct {
	Session uuid.UUID
	AssetID *big.Int
	Price   *big.Int
}

// EventType implements events.Event.
func (ListingChanged) EventType() string { return EventTypeListingChanged }

// ApprovalChanged signals that an approval grant for the marketplace operator
// was confirmed on chain.
type ApprovalChanged struct {
	Session  uuid.UUID
	Owner    common.Address
	Operator common.Address
	AssetID  *big.Int
}

// EventType implements events.Event.
func (ApprovalChanged) EventType() string { return EventTypeApprovalChanged }

// OwnershipChanged signals that a purchase moved the asset to a new owner;
// ownership and listing caches for the asset are both stale.
type OwnershipChanged struct {
	Session  uuid.UUID
	AssetID  *big.Int
	NewOwner common.Address
}

// EventType implements events.Event.
func (OwnershipChanged) EventType() string { return EventTypeOwnershipChanged }
