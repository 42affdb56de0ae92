package market

import "fmt"

// stepEvent is an input to the orchestration state machines. Transitions are
// a pure (flow, phase, event) -> phase lookup so the legal shape of every
// flow is captured in one table instead of scattered across call sites.
type stepEvent uint8

const (
	eventStart stepEvent = iota
	eventInvalidInput
	eventAuthorized
	eventApprovalRequired
	eventTxSubmitted
	eventSubmitFailed
	eventTxConfirmed
	eventTxReverted
	eventWatchFailed
	eventVerified
	eventStale
)

// String implements fmt.Stringer.
func (e stepEvent) String() string {
	switch e {
	case eventStart:
		return "start"
	case eventInvalidInput:
		return "invalid_input"
	case eventAuthorized:
		return "authorized"
	case eventApprovalRequired:
		return "approval_required"
	case eventTxSubmitted:
		return "tx_submitted"
	case eventSubmitFailed:
		return "submit_failed"
	case eventTxConfirmed:
		return "tx_confirmed"
	case eventTxReverted:
		return "tx_reverted"
	case eventWatchFailed:
		return "watch_failed"
	case eventVerified:
		return "verified"
	case eventStale:
		return "stale"
	default:
		return "unknown"
	}
}

type transitionKey struct {
	phase Phase
	event stepEvent
}

var listingTransitions = map[transitionKey]Phase{
	{PhaseIdle, eventStart}:                        PhaseCheckingApproval,
	{PhaseIdle, eventInvalidInput}:                 PhaseFailed,
	{PhaseCheckingApproval, eventAuthorized}:       PhaseListing,
	{PhaseCheckingApproval, eventApprovalRequired}: PhaseNeedsApproval,
	{PhaseNeedsApproval, eventTxSubmitted}:         PhaseApproving,
	{PhaseNeedsApproval, eventSubmitFailed}:        PhaseFailed,
	{PhaseApproving, eventTxConfirmed}:             PhaseListing,
	{PhaseApproving, eventTxReverted}:              PhaseFailed,
	{PhaseApproving, eventWatchFailed}:             PhaseFailed,
	{PhaseListing, eventTxSubmitted}:               PhaseListing,
	{PhaseListing, eventSubmitFailed}:              PhaseFailed,
	{PhaseListing, eventTxConfirmed}:               PhaseSucceeded,
	{PhaseListing, eventTxReverted}:                PhaseFailed,
	{PhaseListing, eventWatchFailed}:               PhaseFailed,
}

var delistTransitions = map[transitionKey]Phase{
	{PhaseIdle, eventStart}:             PhaseDelisting,
	{PhaseIdle, eventInvalidInput}:      PhaseFailed,
	{PhaseDelisting, eventTxSubmitted}:  PhaseDelisting,
	{PhaseDelisting, eventSubmitFailed}: PhaseFailed,
	{PhaseDelisting, eventTxConfirmed}:  PhaseSucceeded,
	{PhaseDelisting, eventTxReverted}:   PhaseFailed,
	{PhaseDelisting, eventWatchFailed}:  PhaseFailed,
}

var purchaseTransitions = map[transitionKey]Phase{
	{PhaseIdle, eventStart}:          PhaseVerifying,
	{PhaseIdle, eventInvalidInput}:   PhaseFailed,
	{PhaseVerifying, eventVerified}:  PhaseBuying,
	{PhaseVerifying, eventStale}:     PhaseFailed,
	{PhaseBuying, eventTxSubmitted}:  PhaseBuying,
	{PhaseBuying, eventSubmitFailed}: PhaseFailed,
	{PhaseBuying, eventTxConfirmed}:  PhaseSucceeded,
	{PhaseBuying, eventTxReverted}:   PhaseFailed,
	{PhaseBuying, eventWatchFailed}:  PhaseFailed,
}

func transitionTable(flow Flow) map[transitionKey]Phase {
	switch flow {
	case FlowListing:
		return listingTransitions
	case FlowDelist:
		return delistTransitions
	case FlowPurchase:
		return purchaseTransitions
	default:
		return nil
	}
}

// next returns the phase that follows p when ev occurs within flow.
func next(flow Flow, p Phase, ev stepEvent) (Phase, error) {
	table := transitionTable(flow)
	if table == nil {
		return p, fmt.Errorf("%w: unknown flow %q", ErrInvalidTransition, flow)
	}
	out, ok := table[transitionKey{phase: p, event: ev}]
	if !ok {
		return p, fmt.Errorf("%w: %s flow cannot take %s from %s", ErrInvalidTransition, flow, ev, p)
	}
	return out, nil
}

// apply advances the session through the transition table.
func (s *Session) apply(ev stepEvent) error {
	out, err := next(s.Flow, s.Phase, ev)
	if err != nil {
		return err
	}
	s.Phase = out
	return nil
}
