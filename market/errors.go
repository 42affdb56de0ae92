package market

import "errors"

var (
	// ErrInvalidAssetID rejects malformed asset identifiers before any
	// network interaction.
	ErrInvalidAssetID = errors.New("market: asset id must be a non-negative integer")

	// ErrInvalidPrice rejects non-positive prices before any network
	// interaction; a zero price means "not listed" on chain and must never
	// originate from this client.
	ErrInvalidPrice = errors.New("market: price must be positive")

	// ErrNotListed is returned when a delist is attempted for an asset with
	// no active listing.
	ErrNotListed = errors.New("market: asset has no active listing")

	// ErrStaleState means pre-purchase re-verification found ownership,
	// authorization or price no longer matching what was displayed. It is
	// raised before any payment transaction is submitted, so no gas is
	// spent.
	ErrStaleState = errors.New("market: on-chain state changed since it was displayed")

	// ErrReverted means a submitted transaction was mined but rejected by
	// contract logic.
	ErrReverted = errors.New("market: transaction reverted on chain")

	// ErrSessionBusy guards the single in-flight transaction invariant and
	// rejects entry operations on a session that is mid-flow.
	ErrSessionBusy = errors.New("market: session already has an operation in flight")

	// ErrInvalidTransition flags an orchestration step that the flow's
	// transition table does not allow. Seeing it outside tests indicates a
	// bug in an orchestrator, not bad caller input.
	ErrInvalidTransition = errors.New("market: state transition not allowed")
)
