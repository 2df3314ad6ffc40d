package clients

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	envBinanceKey        = "BINANCE_API_KEY"
	envBinanceSecret     = "BINANCE_API_SECRET"
	envBybitKey          = "BYBIT_API_KEY"
	envBybitSecret       = "BYBIT_API_SECRET"
	envHyperliquidSecret = "HYPERLIQUID_PRIVATE_KEY"
	envSimulateStateDir  = "REBALANCE_SIMULATE_STATE_DIR"
)

// Options platform client settings not held in environment variables.
type Options struct {
	HyperliquidURL string
	// WALDir root directory; simulation state is kept under WALDir/simulate.
	WALDir string
	// Scope names the simulated wallet, one per account.
	Scope string
}

// FromEnv creates the client for platform with credentials from the environment.
func FromEnv(platform string, opts Options) (any, error) {
	switch platform {
	case "binance":
		c, err := NewBinanceClient(os.Getenv(envBinanceKey), os.Getenv(envBinanceSecret))
		return c, errors.Wrapf(err, "%s and %s must be set", envBinanceKey, envBinanceSecret)
	case "bybit":
		c, err := NewBybitClient(os.Getenv(envBybitKey), os.Getenv(envBybitSecret))
		return c, errors.Wrapf(err, "%s and %s must be set", envBybitKey, envBybitSecret)
	case "hyperliquid":
		c, err := NewHyperliquidClient(os.Getenv(envHyperliquidSecret), opts.HyperliquidURL)
		return c, errors.Wrapf(err, "%s must hold a valid key", envHyperliquidSecret)
	case "simulate":
		dir := ""
		if opts.WALDir != "" && os.Getenv(envSimulateStateDir) == "" {
			dir = filepath.Join(opts.WALDir, "simulate")
		}
		return NewSimulateClient(dir, opts.Scope), nil
	default:
		return nil, errors.Errorf("unsupported platform %q", platform)
	}
}
