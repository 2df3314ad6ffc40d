// Command rebalance moves a crypto portfolio toward its target allocation.
// It supports Binance, Bybit, Hyperliquid and a simulated paper wallet, and
// can be configured via a YAML file or command-line arguments.
//
// Usage:
//
//	rebalance --config config.yaml [--trade] [--force]
//	rebalance --targets "BTC 50, USDT 50" --platform simulate
//	rebalance setup [--out config.gen.yaml]
//	rebalance history [--wal_dir ./wal] [--n 20]
//
// Required environment variables:
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
//	For Hyperliquid: HYPERLIQUID_PRIVATE_KEY
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cbh4ou/CryptoRebalanceSVC/config"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/clients"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/report"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/setup"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/storage/runs"
)

func main() {
	cmd, args := config.Subcommand(os.Args[1:])

	var err error
	switch cmd {
	case "setup":
		err = runSetup(args)
	case "history":
		err = runHistory(args)
	case "", "run":
		err = runRebalance(args)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func runSetup(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	out := fs.String("out", setup.DefaultPath, "file to write the config to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return setup.RunTUI(*out)
}

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	walDir := fs.String("wal_dir", "./wal", "directory holding the run journal")
	n := fs.Int("n", 20, "number of most recent runs to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	journal, err := runs.NewWALStore(filepath.Join(*walDir, "runs"))
	if err != nil {
		return err
	}
	defer journal.Close()

	entries, err := journal.Last(*n)
	if err != nil {
		return err
	}
	fmt.Print(report.History(entries))
	return nil
}

func runRebalance(args []string) error {
	configs, err := config.Get(args, os.Stderr)
	if err != nil {
		return err
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var failed bool
	for i, conf := range configs {
		l := logger.With(zap.Int("account", i+1))
		if err := rebalanceAccount(ctx, l, i, conf); err != nil {
			l.Error("rebalance failed", zap.String("platform", conf.Platform), zap.Error(err))
			failed = true
		}
	}
	if failed {
		return errors.New("one or more accounts failed")
	}
	return nil
}

func rebalanceAccount(ctx context.Context, l *zap.Logger, i int, conf config.Config) error {
	client, err := clients.FromEnv(conf.Platform, clients.Options{
		HyperliquidURL: conf.HyperliquidURL,
		WALDir:         conf.WALDir,
		Scope:          fmt.Sprintf("account_%d_%s", i+1, conf.ValuationCurrency),
	})
	if err != nil {
		return err
	}

	ex, err := internal.NewExchange(client, l, internal.ExchangeOptions{
		MakerFee:         conf.MakerFee,
		Quote:            conf.ValuationCurrency,
		HyperliquidPairs: conf.HyperliquidPairs,
		SimulateBalances: conf.SimulateBalances,
	})
	if err != nil {
		return errors.Wrap(err, "create exchange")
	}

	journal, err := runs.NewWALStore(filepath.Join(conf.WALDir, "runs"))
	if err != nil {
		return err
	}
	defer journal.Close()

	bot, err := internal.NewRebalanceBot(l, conf, ex, journal)
	if err != nil {
		return err
	}

	out, err := bot.Run(ctx)
	if out == nil {
		return err
	}

	fmt.Printf("\n== %s (%s) ==\n", ex.Name(), conf.ValuationCurrency)
	fmt.Print(report.Valuation(out.Valuation))
	fmt.Print(report.Plan(out.Plan))
	fmt.Print(report.Orders(out.Orders))
	fmt.Print(report.Result(out.Result))

	if err != nil {
		return err
	}
	return out.Result.Err()
}
