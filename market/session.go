package market

import (
	"math/big"

	"github.com/google/uuid"

	"tunemarket/ledger"
)

// Flow identifies which orchestration a session belongs to.
type Flow string

const (
	FlowListing  Flow = "listing"
	FlowDelist   Flow = "delist"
	FlowPurchase Flow = "purchase"
)

// Phase is the current step of an orchestration session's state machine.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseCheckingApproval
	PhaseNeedsApproval
	PhaseApproving
	PhaseListing
	PhaseDelisting
	PhaseVerifying
	PhaseBuying
	PhaseSucceeded
	PhaseFailed
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCheckingApproval:
		return "checking_approval"
	case PhaseNeedsApproval:
		return "needs_approval"
	case PhaseApproving:
		return "approving"
	case PhaseListing:
		return "listing"
	case PhaseDelisting:
		return "delisting"
	case PhaseVerifying:
		return "verifying"
	case PhaseBuying:
		return "buying"
	case PhaseSucceeded:
		return "success"
	case PhaseFailed:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase ends a session.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// Session is the ephemeral, in-memory state of one logical user action: one
// listing attempt, one delist attempt or one purchase attempt. It is owned by
// the caller, never persisted, and confined to a single goroutine; a page
// reload in the embedding application simply abandons it.
type Session struct {
	ID    uuid.UUID
	Flow  Flow
	Phase Phase

	// AssetID and Price are the pending parameters retained across the
	// approval handshake into the listing step.
	AssetID *big.Int
	Price   *big.Int

	// Err holds the terminal error once Phase is PhaseFailed.
	Err error

	pending *ledger.Pending
}

// NewSession returns an idle session for the given flow.
func NewSession(flow Flow) *Session {
	return &Session{ID: uuid.New(), Flow: flow, Phase: PhaseIdle}
}

// Reset returns the session to idle from any phase, clearing retained
// parameters and any recorded error. A user abandoning an approval mid-flow
// must be able to retry with fresh parameters rather than resume a
// half-completed sequence.
func (s *Session) Reset() {
	if s == nil {
		return
	}
	s.Phase = PhaseIdle
	s.AssetID = nil
	s.Price = nil
	s.Err = nil
	s.pending = nil
}

// InFlight reports whether the session currently owns a submitted,
// not-yet-terminal transaction.
func (s *Session) InFlight() bool {
	return s != nil && s.pending != nil
}

// track records the session's single in-flight transaction. At most one
// transaction may be in flight per session; the next transaction in a
// sequence is only submitted after the prior one reached a terminal status.
func (s *Session) track(pending *ledger.Pending) error {
	if s.pending != nil {
		return ErrSessionBusy
	}
	s.pending = pending
	return nil
}

// release discards the in-flight handle once its terminal status has been
// observed.
func (s *Session) release() {
	s.pending = nil
}

// retain stores deep copies of the entry parameters so later steps cannot be
// affected by caller-side mutation of the big.Int values.
func (s *Session) retain(assetID, price *big.Int) {
	if assetID != nil {
		s.AssetID = new(big.Int).Set(assetID)
	}
	if price != nil {
		s.Price = new(big.Int).Set(price)
	}
}
