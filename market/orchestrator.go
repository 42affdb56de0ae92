package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"tunemarket/events"
	"tunemarket/ledger"
	"tunemarket/observability"
)

const tracerName = "tunemarket/market"

// core bundles the collaborators shared by every orchestrator: the ledger
// client, the change-event emitter, metrics, tracing and logging.
type core struct {
	ledger  ledger.Client
	emitter events.Emitter
	metrics *observability.MarketMetrics
	tracer  trace.Tracer
	log     *slog.Logger
}

func newCore(client ledger.Client, component string) core {
	return core{
		ledger:  client,
		emitter: events.NoopEmitter{},
		metrics: observability.Market(),
		tracer:  otel.Tracer(tracerName),
		log:     slog.Default().With("component", component),
	}
}

func (c *core) setEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

func (c *core) setLogger(log *slog.Logger) {
	if log != nil {
		c.log = log
	}
}

func (c *core) emit(evt events.Event) {
	if evt != nil {
		c.emitter.Emit(evt)
	}
}

// enter validates the session for a fresh entry operation. Terminal sessions
// are reset so every retry is a fresh call that re-validates all
// preconditions rather than resuming stale state.
func (c *core) enter(s *Session, flow Flow) error {
	if s == nil {
		return errors.New("market: session required")
	}
	if s.Flow != flow {
		return fmt.Errorf("market: %s session cannot run the %s flow", s.Flow, flow)
	}
	if s.InFlight() {
		return ErrSessionBusy
	}
	if s.Phase != PhaseIdle {
		if !s.Phase.Terminal() {
			return ErrSessionBusy
		}
		s.Reset()
	}
	c.metrics.RecordOrchestration(string(flow))
	return nil
}

// fail records the terminal error on the session and reports it upward.
func (c *core) fail(s *Session, ev stepEvent, err error) error {
	if applyErr := s.apply(ev); applyErr != nil {
		err = applyErr
		s.Phase = PhaseFailed
	}
	s.Err = err
	c.metrics.RecordOutcome(string(s.Flow), "error")
	c.log.Error("orchestration failed",
		"session", s.ID,
		"flow", s.Flow,
		"phase", s.Phase.String(),
		"err", err,
	)
	return err
}

func (c *core) succeed(s *Session) {
	c.metrics.RecordOutcome(string(s.Flow), "success")
	c.log.Info("orchestration succeeded", "session", s.ID, "flow", s.Flow, "asset", s.AssetID)
}

// watch drives one submitted transaction to its terminal status while the
// session holds its single in-flight slot. It returns the step event the
// caller must apply: eventTxConfirmed on success, otherwise eventTxReverted
// or eventWatchFailed alongside a descriptive error.
func (c *core) watch(ctx context.Context, s *Session, pending *ledger.Pending) (stepEvent, error) {
	if err := s.track(pending); err != nil {
		return eventWatchFailed, err
	}
	receipt, err := c.ledger.AwaitTransaction(ctx, pending)
	s.release()
	if err != nil {
		return eventWatchFailed, fmt.Errorf("await %s transaction: %w", pending.Kind, err)
	}
	if receipt.Status == ledger.TxReverted {
		reason := receipt.RevertReason
		if reason == "" {
			reason = "no revert reason available"
		}
		return eventTxReverted, fmt.Errorf("%w: %s: %s", ErrReverted, pending.Kind, reason)
	}
	return eventTxConfirmed, nil
}
