package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// collectionABIJSON covers the slice of the issuing (ERC-721) contract the
// client touches: ownership and approval reads, per-asset approval grants,
// and the primary-sale purchase path.
const collectionABIJSON = `[
	{"name":"ownerOf","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"name":"getApproved","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"name":"isApprovedForAll","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"operator","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"name":"tokenPrice","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"buyToken","type":"function","stateMutability":"payable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]}
]`

// marketplaceABIJSON covers the secondary-market contract: the listing book
// and the buy path.
const marketplaceABIJSON = `[
	{"name":"listingPrice","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"listToken","type":"function","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"},{"name":"price","type":"uint256"}],"outputs":[]},
	{"name":"delistToken","type":"function","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"name":"buyToken","type":"function","stateMutability":"payable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]}
]`

var (
	collectionABI  = mustParseABI(collectionABIJSON)
	marketplaceABI = mustParseABI(marketplaceABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("ledger: parse embedded ABI: %v", err))
	}
	return parsed
}

// Backend is the subset of the Ethereum RPC client the ledger needs. It is
// satisfied by *ethclient.Client.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*gethtypes.Transaction, bool, error)
}

// Dial initialises an Ethereum RPC client for the provided endpoint.
func Dial(ctx context.Context, endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("ledger: rpc endpoint required")
	}
	return ethclient.DialContext(ctx, trimmed)
}

// EVM implements Client against an Ethereum-compatible node using bound
// contracts for the collection and the marketplace.
type EVM struct {
	backend     Backend
	collection  *bind.BoundContract
	marketplace *bind.BoundContract
	marketAddr  common.Address
	signer      *bind.TransactOpts
	watcher     *Watcher
	log         *slog.Logger
}

// NewEVM constructs a ledger client. The signer's From address is the acting
// owner for every orchestration built on top of this client.
func NewEVM(backend Backend, collection, marketplace common.Address, signer *bind.TransactOpts, watcher *Watcher) (*EVM, error) {
	if backend == nil {
		return nil, fmt.Errorf("ledger: backend required")
	}
	if signer == nil {
		return nil, fmt.Errorf("ledger: transaction signer required")
	}
	if (collection == common.Address{}) || (marketplace == common.Address{}) {
		return nil, fmt.Errorf("ledger: contract addresses required")
	}
	if watcher == nil {
		watcher = NewWatcher(backend)
	}
	return &EVM{
		backend:     backend,
		collection:  bind.NewBoundContract(collection, collectionABI, backend, backend, backend),
		marketplace: bind.NewBoundContract(marketplace, marketplaceABI, backend, backend, backend),
		marketAddr:  marketplace,
		signer:      signer,
		watcher:     watcher,
		log:         slog.Default().With("component", "ledger"),
	}, nil
}

// SetLogger overrides the logger used for submission and read diagnostics.
func (c *EVM) SetLogger(log *slog.Logger) {
	if log != nil {
		c.log = log
	}
}

// Sender implements Client.
func (c *EVM) Sender() common.Address { return c.signer.From }

// Marketplace returns the marketplace contract address, which doubles as the
// operator named in approval grants.
func (c *EVM) Marketplace() common.Address { return c.marketAddr }

// CollectionApproval implements Client.
func (c *EVM) CollectionApproval(ctx context.Context, owner, operator common.Address) (bool, error) {
	var out []interface{}
	if err := c.collection.Call(&bind.CallOpts{Context: ctx}, &out, "isApprovedForAll", owner, operator); err != nil {
		return false, fmt.Errorf("read collection approval: %w", err)
	}
	approved, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("read collection approval: unexpected result type %T", out[0])
	}
	return approved, nil
}

// AssetApproval implements Client.
func (c *EVM) AssetApproval(ctx context.Context, assetID *big.Int) (common.Address, error) {
	var out []interface{}
	if err := c.collection.Call(&bind.CallOpts{Context: ctx}, &out, "getApproved", assetID); err != nil {
		return common.Address{}, fmt.Errorf("read asset approval: %w", err)
	}
	operator, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("read asset approval: unexpected result type %T", out[0])
	}
	return operator, nil
}

// AssetOwner implements Client.
func (c *EVM) AssetOwner(ctx context.Context, assetID *big.Int) (common.Address, error) {
	var out []interface{}
	if err := c.collection.Call(&bind.CallOpts{Context: ctx}, &out, "ownerOf", assetID); err != nil {
		return common.Address{}, fmt.Errorf("read asset owner: %w", err)
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("read asset owner: unexpected result type %T", out[0])
	}
	return owner, nil
}

// ListingPrice implements Client.
func (c *EVM) ListingPrice(ctx context.Context, assetID *big.Int) (*big.Int, error) {
	return c.readPrice(ctx, c.marketplace, "listingPrice", assetID)
}

// PrimaryPrice implements Client.
func (c *EVM) PrimaryPrice(ctx context.Context, assetID *big.Int) (*big.Int, error) {
	return c.readPrice(ctx, c.collection, "tokenPrice", assetID)
}

func (c *EVM) readPrice(ctx context.Context, contract *bind.BoundContract, method string, assetID *big.Int) (*big.Int, error) {
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, assetID); err != nil {
		return nil, fmt.Errorf("read %s: %w", method, err)
	}
	price, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("read %s: unexpected result type %T", method, out[0])
	}
	return price, nil
}

// SubmitApproval implements Client.
func (c *EVM) SubmitApproval(ctx context.Context, operator common.Address, assetID *big.Int) (*Pending, error) {
	return c.transact(ctx, c.collection, KindApproval, nil, "approve", operator, assetID)
}

// SubmitListing implements Client.
func (c *EVM) SubmitListing(ctx context.Context, assetID, price *big.Int) (*Pending, error) {
	return c.transact(ctx, c.marketplace, KindListing, nil, "listToken", assetID, price)
}

// SubmitDelisting implements Client.
func (c *EVM) SubmitDelisting(ctx context.Context, assetID *big.Int) (*Pending, error) {
	return c.transact(ctx, c.marketplace, KindDelisting, nil, "delistToken", assetID)
}

// SubmitPurchase implements Client.
func (c *EVM) SubmitPurchase(ctx context.Context, assetID, payment *big.Int) (*Pending, error) {
	return c.transact(ctx, c.marketplace, KindPurchase, payment, "buyToken", assetID)
}

// SubmitPrimaryPurchase implements Client.
func (c *EVM) SubmitPrimaryPurchase(ctx context.Context, assetID, payment *big.Int) (*Pending, error) {
	return c.transact(ctx, c.collection, KindPrimaryPurchase, payment, "buyToken", assetID)
}

// AwaitTransaction implements Client.
func (c *EVM) AwaitTransaction(ctx context.Context, pending *Pending) (*Receipt, error) {
	return c.watcher.Await(ctx, pending)
}

func (c *EVM) transact(ctx context.Context, contract *bind.BoundContract, kind string, payment *big.Int, method string, args ...interface{}) (*Pending, error) {
	opts := *c.signer
	opts.Context = ctx
	if payment != nil {
		opts.Value = new(big.Int).Set(payment)
	}
	tx, err := contract.Transact(&opts, method, args...)
	if err != nil {
		// Everything up to network acceptance is the signer's domain:
		// a declined prompt or a node refusing the raw transaction.
		return nil, fmt.Errorf("%w: %s: %v", ErrSubmissionRejected, kind, err)
	}
	c.log.Info("transaction submitted", "kind", kind, "hash", tx.Hash().Hex())
	return &Pending{Kind: kind, Hash: tx.Hash()}, nil
}
