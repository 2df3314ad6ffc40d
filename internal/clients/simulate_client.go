package clients

import (
	"github.com/adshao/go-binance/v2"
)

// SimulateClient paper-trading account. Prices come from Binance public
// endpoints, the wallet lives in StateDir under Scope.
type SimulateClient struct {
	binanceClient *binance.Client
	stateDir      string
	scope         string
}

// NewSimulateClient creates a simulate client keeping its wallet in stateDir.
func NewSimulateClient(stateDir, scope string) *SimulateClient {
	// no API keys: public market data only
	return &SimulateClient{
		binanceClient: binance.NewClient("", ""),
		stateDir:      stateDir,
		scope:         scope,
	}
}

// GetBinanceClient returns the underlying Binance client.
func (c *SimulateClient) GetBinanceClient() *binance.Client {
	return c.binanceClient
}

func (c *SimulateClient) StateDir() string { return c.stateDir }
func (c *SimulateClient) Scope() string    { return c.scope }
