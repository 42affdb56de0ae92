package market

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Tier names which grant authorizes the marketplace to move an asset.
type Tier uint8

const (
	// TierNone means the marketplace holds no transfer authority.
	TierNone Tier = iota
	// TierCollection means the owner granted blanket authority over the
	// whole collection (setApprovalForAll).
	TierCollection
	// TierAsset means authority covers this one asset (approve).
	TierAsset
)

// String implements fmt.Stringer.
func (t Tier) String() string {
	switch t {
	case TierCollection:
		return "collection"
	case TierAsset:
		return "asset"
	default:
		return "none"
	}
}

// Authorization is the gate's tagged verdict.
type Authorization struct {
	Authorized bool
	Tier       Tier
}

// ApprovalReader is the slice of ledger access the gate needs.
type ApprovalReader interface {
	CollectionApproval(ctx context.Context, owner, operator common.Address) (bool, error)
	AssetApproval(ctx context.Context, assetID *big.Int) (common.Address, error)
}

// Gate answers whether the marketplace contract can move a given asset on the
// owner's behalf. The collection-wide grant is checked first: it is granted
// once, covers every future asset, and when present makes a per-asset
// approval transaction redundant.
type Gate struct {
	reader   ApprovalReader
	operator common.Address
	log      *slog.Logger
}

// NewGate constructs a gate for the given marketplace operator address.
func NewGate(reader ApprovalReader, operator common.Address) *Gate {
	return &Gate{
		reader:   reader,
		operator: operator,
		log:      slog.Default().With("component", "approval_gate"),
	}
}

// SetLogger overrides the gate's logger.
func (g *Gate) SetLogger(log *slog.Logger) {
	if log != nil {
		g.log = log
	}
}

// Operator returns the marketplace operator address the gate checks against.
func (g *Gate) Operator() common.Address { return g.operator }

// Check reports whether the operator currently holds transfer authority over
// the asset. Read failures are treated as "not authorized": the worst case of
// failing closed is one unnecessary approval transaction, while failing open
// could let a flow proceed on authority that does not exist.
func (g *Gate) Check(ctx context.Context, owner common.Address, assetID *big.Int) Authorization {
	if g == nil || g.reader == nil {
		return Authorization{}
	}
	approved, err := g.reader.CollectionApproval(ctx, owner, g.operator)
	if err != nil {
		g.log.Warn("collection approval read failed", "owner", owner.Hex(), "err", err)
	} else if approved {
		return Authorization{Authorized: true, Tier: TierCollection}
	}

	operator, err := g.reader.AssetApproval(ctx, assetID)
	if err != nil {
		g.log.Warn("asset approval read failed", "asset", assetID, "err", err)
		return Authorization{}
	}
	if operator == g.operator {
		return Authorization{Authorized: true, Tier: TierAsset}
	}
	return Authorization{}
}
