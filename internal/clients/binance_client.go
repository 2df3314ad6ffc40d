package clients

import (
	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
)

// NewBinanceClient creates an authenticated spot client.
func NewBinanceClient(apiKey, apiSecret string) (*binance.Client, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("binance api key and secret are required")
	}
	return binance.NewClient(apiKey, apiSecret), nil
}
