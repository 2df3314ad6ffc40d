package clients

import (
	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
)

// NewBybitClient creates an authenticated V5 client.
func NewBybitClient(apiKey, apiSecret string) (*bybit.Client, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("bybit api key and secret are required")
	}
	return bybit.NewClient().WithAuth(apiKey, apiSecret), nil
}
