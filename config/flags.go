package config

import (
	"flag"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
)

const defaultConfigPath = "config.yaml"

// Get builds account configs from the yaml file named by --config and the
// command line. Flags set explicitly override the matching yaml value of every
// account; without a config file the flags alone describe a single account.
func Get(args []string, output io.Writer) ([]Config, error) {
	fs := flag.NewFlagSet("rebalance", flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}

	configPath := fs.String("config", defaultConfigPath, "path to yaml config")
	platform := fs.String("platform", PlatformSimulate, "exchange: binance, bybit, hyperliquid or simulate")
	trade := fs.Bool("trade", false, "submit orders instead of a dry run")
	force := fs.Bool("force", false, "rebalance even when allocation is within threshold")
	cancel := fs.Bool("cancel", false, "cancel open orders on portfolio pairs before the run")
	maxOrders := fs.Int("max_orders", defaultMaxOrders, "maximum number of orders to place")
	valuebase := fs.String("valuebase", defaultValuationCurrency, "currency the portfolio is valued in")
	mode := fs.String("mode", string(domain.PriceModeMid), "order pricing: mid, passive or cheap")
	targets := fs.String("targets", "", "target allocation, example: \"BTC 50, ETH 30, USDT 20\"")
	threshold := fs.String("threshold", defaultThreshold, "max allowed deviation in percent before rebalancing")
	makerFee := fs.String("maker_fee", "", "maker fee override, example: 0.001")
	walDir := fs.String("wal_dir", defaultWALDir, "directory for the run journal and simulation state")

	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(domain.ErrConfiguration, err.Error())
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var configsTmp []ConfigTmp
	data, err := os.ReadFile(*configPath)
	switch {
	case err == nil:
		if configsTmp, err = parseTmp(data); err != nil {
			return nil, errors.Wrapf(err, "config %s", *configPath)
		}
	case os.IsNotExist(err) && !set["config"]:
		configsTmp = []ConfigTmp{{}}
		for _, name := range []string{"platform", "valuebase", "mode", "threshold", "max_orders", "wal_dir"} {
			set[name] = true
		}
	default:
		return nil, errors.Wrapf(err, "read config %s", *configPath)
	}

	for i := range configsTmp {
		c := &configsTmp[i]
		if set["platform"] {
			c.Platform = *platform
		}
		if set["trade"] {
			c.Trade = *trade
		}
		if set["force"] {
			c.Force = *force
		}
		if set["cancel"] {
			c.Cancel = *cancel
		}
		if set["max_orders"] {
			n := *maxOrders
			c.MaxOrders = &n
		}
		if set["valuebase"] {
			c.ValuationCurrency = *valuebase
		}
		if set["mode"] {
			c.Mode = *mode
		}
		if set["threshold"] {
			c.Threshold = *threshold
		}
		if set["maker_fee"] {
			c.MakerFee = *makerFee
		}
		if set["wal_dir"] {
			c.WALDir = *walDir
		}
		if set["targets"] {
			parsed, err := ParseTargets(*targets)
			if err != nil {
				return nil, errors.Wrap(err, "--targets")
			}
			c.Targets = make(map[string]string, len(parsed))
			for asset, pct := range parsed {
				c.Targets[asset] = pct.String()
			}
		}
	}

	configs, err := toConfigs(configsTmp)
	if err != nil {
		return nil, err
	}
	return configs, nil
}

// Subcommand splits a leading subcommand name off the arguments.
func Subcommand(args []string) (cmd string, rest []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", args
	}
	return args[0], args[1:]
}
