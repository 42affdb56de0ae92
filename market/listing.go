package market

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"tunemarket/events"
	"tunemarket/ledger"
)

// ListingOrchestrator drives an asset from unlisted to listed: an approval
// handshake when the marketplace lacks transfer authority, followed by the
// price-registration transaction. The two ledger transactions are one logical
// operation from the caller's perspective.
type ListingOrchestrator struct {
	core
	gate *Gate
}

// NewListingOrchestrator constructs a listing orchestrator. The operator is
// the marketplace contract address named in approval grants.
func NewListingOrchestrator(client ledger.Client, operator common.Address) *ListingOrchestrator {
	return &ListingOrchestrator{
		core: newCore(client, "listing_orchestrator"),
		gate: NewGate(client, operator),
	}
}

// SetEmitter configures the change-event emitter.
func (o *ListingOrchestrator) SetEmitter(emitter events.Emitter) { o.setEmitter(emitter) }

// SetLogger overrides the orchestrator's logger.
func (o *ListingOrchestrator) SetLogger(log *slog.Logger) { o.setLogger(log) }

// NewListingSession returns an idle session for one listing attempt.
func NewListingSession() *Session { return NewSession(FlowListing) }

// List registers the asset for sale at the given price in base units. It
// blocks until the session reaches a terminal phase and returns the terminal
// error, if any; the same error is retained in s.Err.
//
// Authorization is re-checked on every call: an earlier attempt may have
// confirmed the approval and then been abandoned before the listing step, in
// which case this call skips straight to price registration.
func (o *ListingOrchestrator) List(ctx context.Context, s *Session, assetID, price *big.Int) error {
	ctx, span := o.tracer.Start(ctx, "market.list")
	defer span.End()

	if err := o.enter(s, FlowListing); err != nil {
		return err
	}
	if assetID == nil || assetID.Sign() < 0 {
		return o.fail(s, eventInvalidInput, ErrInvalidAssetID)
	}
	if price == nil || price.Sign() <= 0 {
		return o.fail(s, eventInvalidInput, ErrInvalidPrice)
	}
	s.retain(assetID, price)
	if err := s.apply(eventStart); err != nil {
		return o.fail(s, eventStart, err)
	}

	owner := o.ledger.Sender()
	o.log.Info("listing started", "session", s.ID, "asset", s.AssetID, "price", s.Price)

	auth := o.gate.Check(ctx, owner, s.AssetID)
	if auth.Authorized {
		if err := s.apply(eventAuthorized); err != nil {
			return o.fail(s, eventAuthorized, err)
		}
		o.log.Info("approval already in place", "session", s.ID, "tier", auth.Tier.String())
	} else {
		if err := s.apply(eventApprovalRequired); err != nil {
			return o.fail(s, eventApprovalRequired, err)
		}
		pending, err := o.ledger.SubmitApproval(ctx, o.gate.Operator(), s.AssetID)
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
		// Approval confirmed: re-enter with the retained parameters, no
		// further caller action required.
		if err := s.apply(ev); err != nil {
			return o.fail(s, ev, err)
		}
		o.emit(ApprovalChanged{Session: s.ID, Owner: owner, Operator: o.gate.Operator(), AssetID: s.AssetID})
	}

	pending, err := o.ledger.SubmitListing(ctx, s.AssetID, s.Price)
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
	o.emit(ListingChanged{Session: s.ID, AssetID: s.AssetID, Price: s.Price})
	return nil
}
