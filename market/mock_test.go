package market

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"tunemarket/events"
	"tunemarket/ledger"
)

// mockLedger is a scripted in-memory ledger that records the order of every
// call so ordering invariants can be asserted directly.
type mockLedger struct {
	sender   common.Address
	operator common.Address

	collectionApproved map[common.Address]bool
	collectionErr      error
	assetApproved      map[string]common.Address
	assetErr           error
	owners             map[string]common.Address
	ownerErr           error
	listPrices         map[string]*big.Int
	listErr            error
	primaryPrices      map[string]*big.Int
	primaryErr         error

	submitErr map[string]error
	receipts  map[string]*ledger.Receipt
	awaitErr  map[string]error

	calls []string
	nonce int64
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		sender:             common.HexToAddress("0x00000000000000000000000000000000000000AA"),
		operator:           common.HexToAddress("0x00000000000000000000000000000000000000BB"),
		collectionApproved: map[common.Address]bool{},
		assetApproved:      map[string]common.Address{},
		owners:             map[string]common.Address{},
		listPrices:         map[string]*big.Int{},
		primaryPrices:      map[string]*big.Int{},
		submitErr:          map[string]error{},
		receipts:           map[string]*ledger.Receipt{},
		awaitErr:           map[string]error{},
	}
}

func key(assetID *big.Int) string { return assetID.String() }

func (m *mockLedger) record(call string) { m.calls = append(m.calls, call) }

func (m *mockLedger) callIndex(call string) int {
	for i, c := range m.calls {
		if c == call {
			return i
		}
	}
	return -1
}

func (m *mockLedger) callCount(call string) int {
	n := 0
	for _, c := range m.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (m *mockLedger) Sender() common.Address { return m.sender }

func (m *mockLedger) CollectionApproval(_ context.Context, owner, operator common.Address) (bool, error) {
	m.record("readCollectionApproval")
	if m.collectionErr != nil {
		return false, m.collectionErr
	}
	if operator != m.operator {
		return false, nil
	}
	return m.collectionApproved[owner], nil
}

func (m *mockLedger) AssetApproval(_ context.Context, assetID *big.Int) (common.Address, error) {
	m.record("readAssetApproval")
	if m.assetErr != nil {
		return common.Address{}, m.assetErr
	}
	return m.assetApproved[key(assetID)], nil
}

func (m *mockLedger) AssetOwner(_ context.Context, assetID *big.Int) (common.Address, error) {
	m.record("readAssetOwner")
	if m.ownerErr != nil {
		return common.Address{}, m.ownerErr
	}
	return m.owners[key(assetID)], nil
}

func (m *mockLedger) ListingPrice(_ context.Context, assetID *big.Int) (*big.Int, error) {
	m.record("readListingPrice")
	if m.listErr != nil {
		return nil, m.listErr
	}
	if price, ok := m.listPrices[key(assetID)]; ok {
		return new(big.Int).Set(price), nil
	}
	return big.NewInt(0), nil
}

func (m *mockLedger) PrimaryPrice(_ context.Context, assetID *big.Int) (*big.Int, error) {
	m.record("readPrimaryPrice")
	if m.primaryErr != nil {
		return nil, m.primaryErr
	}
	if price, ok := m.primaryPrices[key(assetID)]; ok {
		return new(big.Int).Set(price), nil
	}
	return big.NewInt(0), nil
}

func (m *mockLedger) submit(kind string) (*ledger.Pending, error) {
	m.record("submit:" + kind)
	if err := m.submitErr[kind]; err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ledger.ErrSubmissionRejected, kind, err)
	}
	m.nonce++
	return &ledger.Pending{Kind: kind, Hash: common.BigToHash(big.NewInt(m.nonce))}, nil
}

func (m *mockLedger) SubmitApproval(_ context.Context, _ common.Address, _ *big.Int) (*ledger.Pending, error) {
	return m.submit(ledger.KindApproval)
}

func (m *mockLedger) SubmitListing(_ context.Context, _, _ *big.Int) (*ledger.Pending, error) {
	return m.submit(ledger.KindListing)
}

func (m *mockLedger) SubmitDelisting(_ context.Context, _ *big.Int) (*ledger.Pending, error) {
	return m.submit(ledger.KindDelisting)
}

func (m *mockLedger) SubmitPurchase(_ context.Context, _, _ *big.Int) (*ledger.Pending, error) {
	return m.submit(ledger.KindPurchase)
}

func (m *mockLedger) SubmitPrimaryPurchase(_ context.Context, _, _ *big.Int) (*ledger.Pending, error) {
	return m.submit(ledger.KindPrimaryPurchase)
}

func (m *mockLedger) AwaitTransaction(_ context.Context, pending *ledger.Pending) (*ledger.Receipt, error) {
	m.record("await:" + pending.Kind)
	if err := m.awaitErr[pending.Kind]; err != nil {
		return nil, err
	}
	if receipt, ok := m.receipts[pending.Kind]; ok {
		receipt.Hash = pending.Hash
		return receipt, nil
	}
	return &ledger.Receipt{Hash: pending.Hash, Status: ledger.TxConfirmed, BlockNumber: big.NewInt(100)}, nil
}

// capturingEmitter retains emitted events for assertions.
type capturingEmitter struct {
	events []events.Event
}

func (e *capturingEmitter) Emit(evt events.Event) { e.events = append(e.events, evt) }

func (e *capturingEmitter) seen(eventType string) int {
	n := 0
	for _, evt := range e.events {
		if evt.EventType() == eventType {
			n++
		}
	}
	return n
}
