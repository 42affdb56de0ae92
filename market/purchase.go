package market

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"tunemarket/events"
	"tunemarket/ledger"
)

// PurchaseOrchestrator submits payment for an asset, on the secondary
// marketplace or on the issuing contract's primary sale. It is the most
// safety-critical flow in the client: the time between "the buyer saw a
// price" and "the buyer clicked" is unbounded, so everything the UI displayed
// is re-verified against the node immediately before any payment is
// submitted. No transaction leaves this orchestrator on the strength of a
// cached read.
type PurchaseOrchestrator struct {
	core
	gate *Gate
}

// NewPurchaseOrchestrator constructs a purchase orchestrator. The operator is
// the marketplace contract address sellers approve.
func NewPurchaseOrchestrator(client ledger.Client, operator common.Address) *PurchaseOrchestrator {
	return &PurchaseOrchestrator{
		core: newCore(client, "purchase_orchestrator"),
		gate: NewGate(client, operator),
	}
}

// SetEmitter configures the change-event emitter.
func (o *PurchaseOrchestrator) SetEmitter(emitter events.Emitter) { o.setEmitter(emitter) }

// SetLogger overrides the orchestrator's logger.
func (o *PurchaseOrchestrator) SetLogger(log *slog.Logger) { o.setLogger(log) }

// NewPurchaseSession returns an idle session for one purchase attempt.
func NewPurchaseSession() *Session { return NewSession(FlowPurchase) }

// Purchase buys a listed asset on the secondary market. displayedPrice is the
// price the buyer was shown and becomes the payment amount; if the current
// owner, the seller's authorization or the on-chain price no longer match, the
// purchase stops with ErrStaleState before anything is submitted.
func (o *PurchaseOrchestrator) Purchase(ctx context.Context, s *Session, assetID, displayedPrice *big.Int) error {
	return o.run(ctx, s, assetID, displayedPrice, false)
}

// PurchasePrimary buys the asset from the issuing contract's primary sale.
// The issuer is the seller of record, so there is no seller-approval check;
// the advertised primary price is still re-verified.
func (o *PurchaseOrchestrator) PurchasePrimary(ctx context.Context, s *Session, assetID, displayedPrice *big.Int) error {
	return o.run(ctx, s, assetID, displayedPrice, true)
}

func (o *PurchaseOrchestrator) run(ctx context.Context, s *Session, assetID, displayedPrice *big.Int, primary bool) error {
	ctx, span := o.tracer.Start(ctx, "market.purchase")
	defer span.End()

	if err := o.enter(s, FlowPurchase); err != nil {
		return err
	}
	if assetID == nil || assetID.Sign() < 0 {
		return o.fail(s, eventInvalidInput, ErrInvalidAssetID)
	}
	if displayedPrice == nil || displayedPrice.Sign() <= 0 {
		return o.fail(s, eventInvalidInput, ErrInvalidPrice)
	}
	s.retain(assetID, displayedPrice)
	if err := s.apply(eventStart); err != nil {
		return o.fail(s, eventStart, err)
	}
	o.log.Info("purchase started", "session", s.ID, "asset", s.AssetID, "price", s.Price, "primary", primary)

	if err := o.verify(ctx, s, primary); err != nil {
		return o.fail(s, eventStale, err)
	}
	if err := s.apply(eventVerified); err != nil {
		return o.fail(s, eventVerified, err)
	}

	var (
		pending *ledger.Pending
		err     error
	)
	if primary {
		pending, err = o.ledger.SubmitPrimaryPurchase(ctx, s.AssetID, s.Price)
	} else {
		pending, err = o.ledger.SubmitPurchase(ctx, s.AssetID, s.Price)
	}
	if err != nil {
		return o.fail(s, eventSubmitFailed, err)
	}
	if err := s.apply(eventTxSubmitted); err != nil {
		return o.fail(s, eventTxSubmitted, err)
	}
	ev, err := o.watch(ctx, s, pending)
	if err != nil {
		return o.fail(s, ev, err)
	}
	if err := s.apply(ev); err != nil {
		return o.fail(s, ev, err)
	}
	o.succeed(s)
	o.emit(OwnershipChanged{Session: s.ID, AssetID: s.AssetID, NewOwner: o.ledger.Sender()})
	o.emit(ListingChanged{Session: s.ID, AssetID: s.AssetID})
	return nil
}

// verify re-fetches everything the displayed offer depended on, straight from
// the node. Every failure path maps to ErrStaleState: a read that cannot
// complete is treated the same as state that moved, because neither justifies
// spending the buyer's funds.
func (o *PurchaseOrchestrator) verify(ctx context.Context, s *Session, primary bool) error {
	if primary {
		price, err := o.ledger.PrimaryPrice(ctx, s.AssetID)
		if err != nil {
			return fmt.Errorf("%w: primary price read failed: %v", ErrStaleState, err)
		}
		if price.Cmp(s.Price) != 0 {
			return fmt.Errorf("%w: primary price is now %s base units", ErrStaleState, price)
		}
		return nil
	}

	owner, err := o.ledger.AssetOwner(ctx, s.AssetID)
	if err != nil {
		return fmt.Errorf("%w: ownership read failed: %v", ErrStaleState, err)
	}
	auth := o.gate.Check(ctx, owner, s.AssetID)
	if !auth.Authorized {
		return fmt.Errorf("%w: seller %s no longer authorizes the marketplace", ErrStaleState, owner.Hex())
	}
	price, err := o.ledger.ListingPrice(ctx, s.AssetID)
	if err != nil {
		return fmt.Errorf("%w: listing read failed: %v", ErrStaleState, err)
	}
	if price.Sign() == 0 {
		return fmt.Errorf("%w: asset is no longer listed", ErrStaleState)
	}
	if price.Cmp(s.Price) != 0 {
		return fmt.Errorf("%w: listed price is now %s base units", ErrStaleState, price)
	}
	return nil
}
