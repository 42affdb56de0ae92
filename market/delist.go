package market

import (
	"context"
	"log/slog"
	"math/big"

	"tunemarket/events"
	"tunemarket/ledger"
)

// DelistOrchestrator removes an asset's price registration. Delisting is an
// operation the owner performs directly on the marketplace's bookkeeping, not
// a transfer, so there is no approval handshake.
type DelistOrchestrator struct {
	core
}

// NewDelistOrchestrator constructs a delist orchestrator.
func NewDelistOrchestrator(client ledger.Client) *DelistOrchestrator {
	return &DelistOrchestrator{core: newCore(client, "delist_orchestrator")}
}

// SetEmitter configures the change-event emitter.
func (o *DelistOrchestrator) SetEmitter(emitter events.Emitter) { o.setEmitter(emitter) }

// SetLogger overrides the orchestrator's logger.
func (o *DelistOrchestrator) SetLogger(log *slog.Logger) { o.setLogger(log) }

// NewDelistSession returns an idle session for one delist attempt.
func NewDelistSession() *Session { return NewSession(FlowDelist) }

// Delist removes the asset's active listing. An asset with no listing is
// rejected before submission so the caller does not pay for a guaranteed
// revert; when that pre-read itself fails the submission still proceeds and
// the contract has the final word.
func (o *DelistOrchestrator) Delist(ctx context.Context, s *Session, assetID *big.Int) error {
	ctx, span := o.tracer.Start(ctx, "market.delist")
	defer span.End()

	if err := o.enter(s, FlowDelist); err != nil {
		return err
	}
	if assetID == nil || assetID.Sign() < 0 {
		return o.fail(s, eventInvalidInput, ErrInvalidAssetID)
	}

	price, err := o.ledger.ListingPrice(ctx, assetID)
	if err != nil {
		o.log.Warn("listing pre-read failed, submitting anyway", "asset", assetID, "err", err)
	} else if price.Sign() == 0 {
		return o.fail(s, eventInvalidInput, ErrNotListed)
	}

	s.retain(assetID, nil)
	if err := s.apply(eventStart); err != nil {
		return o.fail(s, eventStart, err)
	}
	o.log.Info("delist started", "session", s.ID, "asset", s.AssetID)

	pending, err := o.ledger.SubmitDelisting(ctx, s.AssetID)
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
	o.emit(ListingChanged{Session: s.ID, AssetID: s.AssetID})
	return nil
}
