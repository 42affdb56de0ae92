package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"

	"tunemarket/config"
	"tunemarket/ledger"
	"tunemarket/market"
	"tunemarket/observability/logging"
	otelinit "tunemarket/observability/otel"
)

var configPath = "marketctl.toml"

func main() {
	args := os.Args[1:]
	args = applyGlobalFlags(args)
	if len(args) < 1 {
		printUsage()
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.Setup(cfg.ServiceName, cfg.Environment)

	ctx := context.Background()
	if cfg.OTLPEndpoint != "" {
		shutdown, err := otelinit.Init(ctx, otelinit.Config{
			ServiceName: cfg.ServiceName,
			Environment: cfg.Environment,
			Endpoint:    cfg.OTLPEndpoint,
			Insecure:    true,
			Traces:      true,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: telemetry init: %v\n", err)
			os.Exit(1)
		}
		defer shutdown(ctx)
	}
	client, err := buildLedger(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	command := args[0]
	switch command {
	case "list":
		if len(args) < 3 {
			fmt.Println("Error: Please provide an asset id and a price in base units.")
			printUsage()
			return
		}
		assetID, price := parseBig(args[1]), parseBig(args[2])
		o := market.NewListingOrchestrator(client, cfg.Marketplace())
		o.SetLogger(log)
		s := market.NewListingSession()
		runFlow(o.List(ctx, s, assetID, price), s)
	case "delist":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an asset id.")
			printUsage()
			return
		}
		o := market.NewDelistOrchestrator(client)
		o.SetLogger(log)
		s := market.NewDelistSession()
		runFlow(o.Delist(ctx, s, parseBig(args[1])), s)
	case "buy", "buy-primary":
		if len(args) < 3 {
			fmt.Println("Error: Please provide an asset id and the displayed price in base units.")
			printUsage()
			return
		}
		assetID, price := parseBig(args[1]), parseBig(args[2])
		o := market.NewPurchaseOrchestrator(client, cfg.Marketplace())
		o.SetLogger(log)
		s := market.NewPurchaseSession()
		if command == "buy-primary" {
			runFlow(o.PurchasePrimary(ctx, s, assetID, price), s)
		} else {
			runFlow(o.Purchase(ctx, s, assetID, price), s)
		}
	case "authz":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an asset id.")
			printUsage()
			return
		}
		gate := market.NewGate(client, cfg.Marketplace())
		auth := gate.Check(ctx, client.Sender(), parseBig(args[1]))
		fmt.Printf("authorized=%t tier=%s\n", auth.Authorized, auth.Tier)
	case "price":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an asset id.")
			printUsage()
			return
		}
		price, err := client.ListingPrice(ctx, parseBig(args[1]))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if price.Sign() == 0 {
			fmt.Println("not listed")
		} else {
			fmt.Printf("listed at %s base units\n", price)
		}
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

func runFlow(err error, s *market.Session) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: session %s ended in %s: %v\n", s.ID, s.Phase, err)
		os.Exit(1)
	}
	fmt.Printf("session %s: %s\n", s.ID, s.Phase)
}

func buildLedger(ctx context.Context, cfg *config.Config) (*ledger.EVM, error) {
	backend, err := ledger.Dial(ctx, cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCEndpoint, err)
	}
	key, err := crypto.LoadECDSA(cfg.KeystorePath)
	if err != nil {
		return nil, fmt.Errorf("load key %s: %w", cfg.KeystorePath, err)
	}
	signer, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	watcher := ledger.NewWatcher(backend,
		ledger.WithPollInterval(time.Duration(cfg.ReceiptPollMillis)*time.Millisecond),
		ledger.WithConfirmations(cfg.Confirmations),
	)
	return ledger.NewEVM(backend, cfg.Collection(), cfg.Marketplace(), signer, watcher)
}

func parseBig(raw string) *big.Int {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: %q is not a decimal integer\n", raw)
		os.Exit(1)
	}
	return v
}

func applyGlobalFlags(args []string) []string {
	out := args[:0]
	for i := 0; i < len(args); i++ {
		if args[i] == "--config" && i+1 < len(args) {
			configPath = args[i+1]
			i++
			continue
		}
		out = append(out, args[i])
	}
	if env := os.Getenv("MARKETCTL_CONFIG"); env != "" && configPath == "marketctl.toml" {
		configPath = env
	}
	return out
}

func printUsage() {
	fmt.Println(`Usage: marketctl [--config path] <command> [args]

Commands:
  list <assetID> <price>         List an owned track for sale (base units)
  delist <assetID>               Remove an active listing
  buy <assetID> <price>          Buy a listed track at the displayed price
  buy-primary <assetID> <price>  Buy from the issuing contract's primary sale
  authz <assetID>                Show the marketplace's transfer authority
  price <assetID>                Show the current listing price`)
}
