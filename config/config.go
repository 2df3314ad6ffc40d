package config

import (
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/services/portfolio"
)

const (
	PlatformBinance     = "binance"
	PlatformBybit       = "bybit"
	PlatformHyperliquid = "hyperliquid"
	PlatformSimulate    = "simulate"

	defaultThreshold         = "1"
	defaultValuationCurrency = "USDT"
	defaultMaxOrders         = 5
	defaultWALDir            = "./wal"
	defaultHyperliquidURL    = "https://api.hyperliquid.xyz"
)

// Config one rebalanced account.
type Config struct {
	Platform string
	// Targets percent per asset, summing to 100.
	Targets   map[string]decimal.Decimal
	Threshold decimal.Decimal
	// ValuationCurrency asset the portfolio is valued in.
	ValuationCurrency string
	Mode              domain.PriceMode
	MaxOrders         int
	Force             bool
	Trade             bool
	Cancel            bool
	// MakerFee overrides the venue default when positive.
	MakerFee         decimal.Decimal
	WALDir           string
	HyperliquidURL   string
	HyperliquidPairs []domain.TradePair
	SimulateBalances domain.Balances
}

// Assets target assets in ascending order.
func (c Config) Assets() []string {
	assets := make([]string, 0, len(c.Targets))
	for asset := range c.Targets {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}

// ConfigTmp yaml representation; decimals are strings to keep precision.
type ConfigTmp struct {
	Platform          string            `yaml:"platform" validate:"required,oneof=binance bybit hyperliquid simulate"`
	Targets           map[string]string `yaml:"targets" validate:"required,min=1"`
	Threshold         string            `yaml:"threshold,omitempty"`
	ValuationCurrency string            `yaml:"valuation_currency,omitempty"`
	Mode              string            `yaml:"mode,omitempty" validate:"omitempty,oneof=mid passive cheap"`
	MaxOrders         *int              `yaml:"max_orders,omitempty" validate:"omitempty,gte=0"`
	Force             bool              `yaml:"force,omitempty"`
	Trade             bool              `yaml:"trade,omitempty"`
	Cancel            bool              `yaml:"cancel,omitempty"`
	MakerFee          string            `yaml:"maker_fee,omitempty"`
	WALDir            string            `yaml:"wal_dir,omitempty"`
	HyperliquidURL    string            `yaml:"hyperliquid_url,omitempty" validate:"omitempty,url"`
	HyperliquidPairs  []string          `yaml:"hyperliquid_pairs,omitempty" validate:"required_if=Platform hyperliquid,dive,contains=/"`
	SimulateBalances  map[string]string `yaml:"simulate_balances,omitempty"`
}

var validate = validator.New()

// Load reads a yaml list of account configs.
func Load(path string) ([]Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(f)
}

// Parse decodes and validates a yaml list of account configs.
func Parse(data []byte) ([]Config, error) {
	configsTmp, err := parseTmp(data)
	if err != nil {
		return nil, err
	}
	return toConfigs(configsTmp)
}

func parseTmp(data []byte) ([]ConfigTmp, error) {
	var configsTmp []ConfigTmp
	if err := yaml.Unmarshal(data, &configsTmp); err != nil {
		return nil, errors.Wrap(err, "decode yaml config")
	}
	if len(configsTmp) == 0 {
		return nil, errors.Wrap(domain.ErrConfiguration, "config has no accounts")
	}
	return configsTmp, nil
}

func toConfigs(configsTmp []ConfigTmp) ([]Config, error) {
	configs := make([]Config, 0, len(configsTmp))
	for i, c := range configsTmp {
		conf, err := c.ToConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "account #%d (%s)", i+1, c.Platform)
		}
		configs = append(configs, conf)
	}
	return configs, nil
}

// ToConfig validates the raw config and converts it.
func (c ConfigTmp) ToConfig() (Config, error) {
	if err := validate.Struct(c); err != nil {
		return Config{}, errors.Wrap(domain.ErrConfiguration, err.Error())
	}

	targets, err := parseDecimalMap(c.Targets, "targets")
	if err != nil {
		return Config{}, err
	}
	if err := portfolio.ValidateTargets(targets); err != nil {
		return Config{}, err
	}

	threshold, err := parseDecimalOr(c.Threshold, defaultThreshold, "threshold")
	if err != nil {
		return Config{}, err
	}
	if threshold.IsNegative() {
		return Config{}, errors.Wrapf(domain.ErrConfiguration, "threshold must not be negative, got %s", threshold.String())
	}

	makerFee, err := parseDecimalOr(c.MakerFee, "0", "maker_fee")
	if err != nil {
		return Config{}, err
	}
	if makerFee.IsNegative() || makerFee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Config{}, errors.Wrapf(domain.ErrConfiguration, "maker_fee must be in [0, 1), got %s", makerFee.String())
	}

	mode := domain.PriceModeMid
	if c.Mode != "" {
		if mode, err = domain.ParsePriceMode(c.Mode); err != nil {
			return Config{}, err
		}
	}

	maxOrders := defaultMaxOrders
	if c.MaxOrders != nil {
		maxOrders = *c.MaxOrders
	}

	pairs := make([]domain.TradePair, 0, len(c.HyperliquidPairs))
	for _, s := range c.HyperliquidPairs {
		base, quote, err := domain.ParseSymbol(strings.ToUpper(strings.TrimSpace(s)))
		if err != nil {
			return Config{}, errors.Wrapf(domain.ErrConfiguration, "hyperliquid pair %q: %v", s, err)
		}
		pairs = append(pairs, domain.TradePair{Base: base, Quote: quote, Active: true})
	}

	simBalances, err := parseDecimalMap(c.SimulateBalances, "simulate_balances")
	if err != nil {
		return Config{}, err
	}

	return Config{
		Platform:          c.Platform,
		Targets:           targets,
		Threshold:         threshold,
		ValuationCurrency: strings.ToUpper(orDefault(c.ValuationCurrency, defaultValuationCurrency)),
		Mode:              mode,
		MaxOrders:         maxOrders,
		Force:             c.Force,
		Trade:             c.Trade,
		Cancel:            c.Cancel,
		MakerFee:          makerFee,
		WALDir:            orDefault(c.WALDir, defaultWALDir),
		HyperliquidURL:    orDefault(c.HyperliquidURL, defaultHyperliquidURL),
		HyperliquidPairs:  pairs,
		SimulateBalances:  domain.Balances(simBalances),
	}, nil
}

// ParseTargets parses "BTC 50, ETH 30, USDT 20". Entries are separated by
// commas or newlines, asset and percent by whitespace, ':' or '='.
func ParseTargets(s string) (map[string]decimal.Decimal, error) {
	targets := make(map[string]decimal.Decimal)
	entries := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' || r == ';' })
	for _, entry := range entries {
		fields := strings.FieldsFunc(entry, func(r rune) bool { return r == ':' || r == '=' || r == ' ' || r == '\t' })
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, errors.Wrapf(domain.ErrConfiguration, "targets format invalid near %q", strings.TrimSpace(entry))
		}
		asset := strings.ToUpper(fields[0])
		pct, err := decimal.NewFromString(fields[1])
		if err != nil {
			return nil, errors.Wrapf(domain.ErrConfiguration, "target for %s is not a number: %q", asset, fields[1])
		}
		if _, dup := targets[asset]; dup {
			return nil, errors.Wrapf(domain.ErrConfiguration, "duplicate target for %s", asset)
		}
		targets[asset] = pct
	}
	if err := portfolio.ValidateTargets(targets); err != nil {
		return nil, err
	}
	return targets, nil
}

func parseDecimalMap(in map[string]string, field string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, errors.Wrapf(domain.ErrConfiguration, "incorrect '%s' value for %s: %q", field, k, v)
		}
		out[strings.ToUpper(strings.TrimSpace(k))] = d
	}
	return out, nil
}

func parseDecimalOr(s, def, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(orDefault(strings.TrimSpace(s), def))
	if err != nil {
		return decimal.Zero, errors.Wrapf(domain.ErrConfiguration, "incorrect '%s' param in yaml config (must be a decimal): %q", field, s)
	}
	return d, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
