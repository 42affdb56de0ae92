package ledger

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Transaction kinds attached to pending handles so logs and metrics can name
// what a hash was submitted for.
const (
	KindApproval        = "approval"
	KindListing         = "listing"
	KindDelisting       = "delisting"
	KindPurchase        = "purchase"
	KindPrimaryPurchase = "primary_purchase"
)

// ErrSubmissionRejected wraps failures that occur before a transaction is
// accepted by the network, most commonly the signer declining to sign.
var ErrSubmissionRejected = errors.New("ledger: transaction submission rejected")

// Pending is the handle for a transaction the network has accepted but not
// yet mined. It is owned by exactly one orchestration session and discarded
// once the terminal receipt has been observed.
type Pending struct {
	Kind string
	Hash common.Hash
}

// TxStatus is the terminal status of a mined transaction.
type TxStatus uint8

const (
	// TxConfirmed means the transaction was mined and the contract accepted it.
	TxConfirmed TxStatus = iota
	// TxReverted means the transaction was mined but rejected by contract logic.
	TxReverted
)

// String implements fmt.Stringer.
func (s TxStatus) String() string {
	switch s {
	case TxConfirmed:
		return "confirmed"
	case TxReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Receipt is the terminal outcome of one submitted transaction.
type Receipt struct {
	Hash         common.Hash
	Status       TxStatus
	BlockNumber  *big.Int
	GasUsed      uint64
	RevertReason string
}

// Client is the ledger access the orchestrators depend on. Reads always go to
// the node, never to a client-side cache; the safety of the purchase flow
// depends on that.
type Client interface {
	// Sender is the address whose key signs submitted transactions.
	Sender() common.Address

	CollectionApproval(ctx context.Context, owner, operator common.Address) (bool, error)
	AssetApproval(ctx context.Context, assetID *big.Int) (common.Address, error)
	AssetOwner(ctx context.Context, assetID *big.Int) (common.Address, error)
	// ListingPrice returns the marketplace price for the asset in base units.
	// A zero price means the asset is not listed.
	ListingPrice(ctx context.Context, assetID *big.Int) (*big.Int, error)
	// PrimaryPrice returns the issuing contract's primary-sale price.
	PrimaryPrice(ctx context.Context, assetID *big.Int) (*big.Int, error)

	SubmitApproval(ctx context.Context, operator common.Address, assetID *big.Int) (*Pending, error)
	SubmitListing(ctx context.Context, assetID, price *big.Int) (*Pending, error)
	SubmitDelisting(ctx context.Context, assetID *big.Int) (*Pending, error)
	SubmitPurchase(ctx context.Context, assetID, payment *big.Int) (*Pending, error)
	SubmitPrimaryPurchase(ctx context.Context, assetID, payment *big.Int) (*Pending, error)

	// AwaitTransaction blocks until the pending transaction reaches a
	// terminal status. A non-nil error means the outcome could not be
	// observed, not that the transaction failed; contract rejection comes
	// back as a Receipt with TxReverted.
	AwaitTransaction(ctx context.Context, pending *Pending) (*Receipt, error)
}
