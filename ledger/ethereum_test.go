package ledger

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var (
	collectionAddr  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	marketplaceAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// fakeBackend answers contract calls with ABI-encoded fixtures and records
// submitted transactions.
type fakeBackend struct {
	collectionApproved bool
	approvedOperator   common.Address
	owner              common.Address
	listPrice          *big.Int
	primaryPrice       *big.Int

	sent    []*gethtypes.Transaction
	sendErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		owner:        common.HexToAddress("0x00000000000000000000000000000000000000AA"),
		listPrice:    big.NewInt(0),
		primaryPrice: big.NewInt(0),
	}
}

func (b *fakeBackend) CodeAt(_ context.Context, _ common.Address, _ *big.Int) ([]byte, error) {
	return []byte{0x01}, nil
}

func (b *fakeBackend) PendingCodeAt(_ context.Context, _ common.Address) ([]byte, error) {
	return []byte{0x01}, nil
}

func (b *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	sig := msg.Data[:4]
	switch {
	case bytes.Equal(sig, collectionABI.Methods["isApprovedForAll"].ID):
		return collectionABI.Methods["isApprovedForAll"].Outputs.Pack(b.collectionApproved)
	case bytes.Equal(sig, collectionABI.Methods["getApproved"].ID):
		return collectionABI.Methods["getApproved"].Outputs.Pack(b.approvedOperator)
	case bytes.Equal(sig, collectionABI.Methods["ownerOf"].ID):
		return collectionABI.Methods["ownerOf"].Outputs.Pack(b.owner)
	case bytes.Equal(sig, collectionABI.Methods["tokenPrice"].ID):
		return collectionABI.Methods["tokenPrice"].Outputs.Pack(b.primaryPrice)
	case bytes.Equal(sig, marketplaceABI.Methods["listingPrice"].ID):
		return marketplaceABI.Methods["listingPrice"].Outputs.Pack(b.listPrice)
	}
	return nil, errors.New("unexpected call")
}

func (b *fakeBackend) HeaderByNumber(_ context.Context, _ *big.Int) (*gethtypes.Header, error) {
	return &gethtypes.Header{Number: big.NewInt(1)}, nil
}

func (b *fakeBackend) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	return uint64(len(b.sent)), nil
}

func (b *fakeBackend) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (b *fakeBackend) SuggestGasTipCap(_ context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (b *fakeBackend) EstimateGas(_ context.Context, _ ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *gethtypes.Transaction) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) FilterLogs(_ context.Context, _ ethereum.FilterQuery) ([]gethtypes.Log, error) {
	return nil, nil
}

func (b *fakeBackend) SubscribeFilterLogs(_ context.Context, _ ethereum.FilterQuery, _ chan<- gethtypes.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, _ common.Hash) (*gethtypes.Receipt, error) {
	return nil, ethereum.NotFound
}

func (b *fakeBackend) TransactionByHash(_ context.Context, _ common.Hash) (*gethtypes.Transaction, bool, error) {
	return nil, false, ethereum.NotFound
}

func newTestEVM(t *testing.T, backend *fakeBackend) *EVM {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(1337))
	require.NoError(t, err)
	client, err := NewEVM(backend, collectionAddr, marketplaceAddr, signer, nil)
	require.NoError(t, err)
	return client
}

func TestEVMReadsDecodeContractReturns(t *testing.T) {
	backend := newFakeBackend()
	backend.collectionApproved = true
	backend.approvedOperator = marketplaceAddr
	backend.listPrice = big.NewInt(50_000)
	backend.primaryPrice = big.NewInt(120_000)
	client := newTestEVM(t, backend)
	ctx := context.Background()

	approved, err := client.CollectionApproval(ctx, backend.owner, marketplaceAddr)
	require.NoError(t, err)
	require.True(t, approved)

	operator, err := client.AssetApproval(ctx, big.NewInt(7))
	require.NoError(t, err)
	require.Equal(t, marketplaceAddr, operator)

	owner, err := client.AssetOwner(ctx, big.NewInt(7))
	require.NoError(t, err)
	require.Equal(t, backend.owner, owner)

	price, err := client.ListingPrice(ctx, big.NewInt(7))
	require.NoError(t, err)
	require.Zero(t, price.Cmp(big.NewInt(50_000)))

	price, err = client.PrimaryPrice(ctx, big.NewInt(7))
	require.NoError(t, err)
	require.Zero(t, price.Cmp(big.NewInt(120_000)))
}

func TestEVMSubmitListingTargetsMarketplace(t *testing.T) {
	backend := newFakeBackend()
	client := newTestEVM(t, backend)

	pending, err := client.SubmitListing(context.Background(), big.NewInt(7), big.NewInt(50_000))
	require.NoError(t, err)
	require.Equal(t, KindListing, pending.Kind)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	require.Equal(t, marketplaceAddr, *tx.To())
	require.True(t, bytes.HasPrefix(tx.Data(), marketplaceABI.Methods["listToken"].ID))
	require.Zero(t, tx.Value().Sign())
}

func TestEVMSubmitPurchaseAttachesPayment(t *testing.T) {
	backend := newFakeBackend()
	client := newTestEVM(t, backend)
	payment := big.NewInt(80_000)

	pending, err := client.SubmitPurchase(context.Background(), big.NewInt(7), payment)
	require.NoError(t, err)
	require.Equal(t, KindPurchase, pending.Kind)
	require.Len(t, backend.sent, 1)
	require.Zero(t, backend.sent[0].Value().Cmp(payment))

	// The primary path pays the issuing contract instead.
	pending, err = client.SubmitPrimaryPurchase(context.Background(), big.NewInt(7), payment)
	require.NoError(t, err)
	require.Equal(t, KindPrimaryPurchase, pending.Kind)
	require.Equal(t, collectionAddr, *backend.sent[1].To())
}

func TestEVMSubmissionRejectionClassified(t *testing.T) {
	backend := newFakeBackend()
	backend.sendErr = errors.New("signer declined")
	client := newTestEVM(t, backend)

	_, err := client.SubmitApproval(context.Background(), marketplaceAddr, big.NewInt(7))
	require.ErrorIs(t, err, ErrSubmissionRejected)
}

func TestNewEVMValidation(t *testing.T) {
	backend := newFakeBackend()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(1337))
	require.NoError(t, err)

	_, err = NewEVM(nil, collectionAddr, marketplaceAddr, signer, nil)
	require.Error(t, err)
	_, err = NewEVM(backend, collectionAddr, marketplaceAddr, nil, nil)
	require.Error(t, err)
	_, err = NewEVM(backend, common.Address{}, marketplaceAddr, signer, nil)
	require.Error(t, err)
}
