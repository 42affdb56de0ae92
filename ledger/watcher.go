package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"tunemarket/observability"
)

const defaultPollInterval = 1500 * time.Millisecond

// WatchBackend is the subset of the Ethereum RPC used to observe a submitted
// transaction until it is mined.
type WatchBackend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*gethtypes.Transaction, bool, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Watcher polls for a transaction receipt and optionally waits for a
// confirmation depth before reporting a terminal status. One watcher is
// shared by every orchestrator in the process; Await is safe for concurrent
// use.
type Watcher struct {
	backend       WatchBackend
	interval      time.Duration
	confirmations uint64
	metrics       *observability.MarketMetrics
	log           *slog.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithPollInterval overrides how often the watcher asks the node for a
// receipt.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithConfirmations sets how many blocks must build on top of the
// transaction's block before it is reported terminal.
func WithConfirmations(n uint64) WatcherOption {
	return func(w *Watcher) { w.confirmations = n }
}

// WithWatcherLogger overrides the watcher's logger.
func WithWatcherLogger(log *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if log != nil {
			w.log = log
		}
	}
}

// NewWatcher constructs a watcher over the provided backend.
func NewWatcher(backend WatchBackend, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		backend:  backend,
		interval: defaultPollInterval,
		metrics:  observability.Market(),
		log:      slog.Default().With("component", "watcher"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Await blocks until the pending transaction is mined and buried under the
// configured confirmation depth, then reports whether the contract accepted
// it. There is no hard deadline here; callers bound the wait through ctx.
func (w *Watcher) Await(ctx context.Context, pending *Pending) (*Receipt, error) {
	if w == nil || w.backend == nil {
		return nil, fmt.Errorf("watcher not initialised")
	}
	if pending == nil || (pending.Hash == common.Hash{}) {
		return nil, fmt.Errorf("pending transaction required")
	}

	start := time.Now()
	defer func() { w.metrics.ObserveConfirmationWait(time.Since(start)) }()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		receipt, err := w.backend.TransactionReceipt(ctx, pending.Hash)
		switch {
		case err == nil && receipt != nil:
			if err := w.awaitDepth(ctx, receipt, ticker); err != nil {
				return nil, err
			}
			return w.finalise(ctx, pending, receipt), nil
		case errors.Is(err, ethereum.NotFound):
			// Not mined yet, keep polling.
		case err != nil:
			return nil, fmt.Errorf("fetch receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// awaitDepth blocks until the chain head is at least confirmations-1 blocks
// past the receipt's block.
func (w *Watcher) awaitDepth(ctx context.Context, receipt *gethtypes.Receipt, ticker *time.Ticker) error {
	if w.confirmations <= 1 {
		return nil
	}
	want := new(big.Int).SetUint64(w.confirmations)
	for {
		header, err := w.backend.HeaderByNumber(ctx, nil)
		if err != nil {
			return fmt.Errorf("fetch head: %w", err)
		}
		if header == nil || header.Number == nil || receipt.BlockNumber == nil {
			return fmt.Errorf("block metadata unavailable")
		}
		confirmed := new(big.Int).Sub(header.Number, receipt.BlockNumber)
		confirmed.Add(confirmed, big.NewInt(1))
		if confirmed.Sign() > 0 && confirmed.Cmp(want) >= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Watcher) finalise(ctx context.Context, pending *Pending, receipt *gethtypes.Receipt) *Receipt {
	out := &Receipt{
		Hash:        pending.Hash,
		BlockNumber: receipt.BlockNumber,
		GasUsed:     receipt.GasUsed,
	}
	if receipt.Status == gethtypes.ReceiptStatusSuccessful {
		out.Status = TxConfirmed
	} else {
		out.Status = TxReverted
		out.RevertReason = w.revertReason(ctx, pending.Hash, receipt.BlockNumber)
	}
	w.metrics.RecordTransaction(pending.Kind, out.Status.String())
	w.log.Info("transaction terminal",
		"kind", pending.Kind,
		"hash", pending.Hash.Hex(),
		"status", out.Status.String(),
		"block", receipt.BlockNumber,
	)
	return out
}

// revertReason re-executes the transaction as a call at its own block so the
// node surfaces the contract's revert string. Best effort: many nodes prune
// the necessary state, in which case the reason stays empty.
func (w *Watcher) revertReason(ctx context.Context, hash common.Hash, blockNumber *big.Int) string {
	tx, _, err := w.backend.TransactionByHash(ctx, hash)
	if err != nil || tx == nil {
		return ""
	}
	from, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return ""
	}
	msg := ethereum.CallMsg{
		From:     from,
		To:       tx.To(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Value:    tx.Value(),
		Data:     tx.Data(),
	}
	ret, err := w.backend.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return err.Error()
	}
	if reason, err := abi.UnpackRevert(ret); err == nil {
		return reason
	}
	return ""
}
