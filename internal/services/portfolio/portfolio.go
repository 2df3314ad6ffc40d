// Package portfolio values asset balances in a common currency and measures
// how far the allocation has drifted from its targets.
package portfolio

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/services/routing"
)

var hundred = decimal.NewFromInt(100)

type routeFinder interface {
	Find(from, to string) (domain.Route, error)
}

// Portfolio targets and holdings valued against one rate snapshot.
type Portfolio struct {
	targets   map[string]decimal.Decimal
	balances  domain.Balances
	rates     *domain.RateSnapshot
	finder    routeFinder
	quote     string
	threshold decimal.Decimal
}

// New validates targets and creates a portfolio. Targets are percentages and must sum to 100.
func New(targets map[string]decimal.Decimal, balances domain.Balances, rates *domain.RateSnapshot,
	finder routeFinder, quote string, threshold decimal.Decimal) (*Portfolio, error) {
	if err := ValidateTargets(targets); err != nil {
		return nil, err
	}
	if quote == "" {
		return nil, errors.Wrap(domain.ErrConfiguration, "valuation currency is required")
	}
	if threshold.IsNegative() {
		return nil, errors.Wrapf(domain.ErrConfiguration, "threshold must not be negative, got %s", threshold.String())
	}
	if rates == nil || finder == nil {
		return nil, errors.New("rates and route finder are required")
	}

	copied := make(map[string]decimal.Decimal, len(targets))
	for asset, pct := range targets {
		copied[asset] = pct
	}

	return &Portfolio{
		targets:   copied,
		balances:  balances.Clone(),
		rates:     rates,
		finder:    finder,
		quote:     quote,
		threshold: threshold,
	}, nil
}

// ValidateTargets checks that every target is non-negative and the total is exactly 100.
func ValidateTargets(targets map[string]decimal.Decimal) error {
	if len(targets) == 0 {
		return errors.Wrap(domain.ErrConfiguration, "targets are empty")
	}
	sum := decimal.Zero
	for asset, pct := range targets {
		if asset == "" {
			return errors.Wrap(domain.ErrConfiguration, "target asset symbol is empty")
		}
		if pct.IsNegative() {
			return errors.Wrapf(domain.ErrConfiguration, "target for %s is negative: %s", asset, pct.String())
		}
		sum = sum.Add(pct)
	}
	if !sum.Equal(hundred) {
		return errors.Wrapf(domain.ErrConfiguration, "total target needs to equal 100, got %s", sum.String())
	}
	return nil
}

// WithBalances returns a copy of the portfolio holding different balances on the same snapshot.
func (p *Portfolio) WithBalances(balances domain.Balances) *Portfolio {
	c := *p
	c.balances = balances.Clone()
	return &c
}

// Quote valuation currency.
func (p *Portfolio) Quote() string { return p.quote }

// Threshold maximum tolerated deviation in percent.
func (p *Portfolio) Threshold() decimal.Decimal { return p.threshold }

// Balances copy of held quantities.
func (p *Portfolio) Balances() domain.Balances { return p.balances.Clone() }

// Rates snapshot used for valuation.
func (p *Portfolio) Rates() *domain.RateSnapshot { return p.rates }

// Target returns the target percentage of the asset, zero for stray assets.
func (p *Portfolio) Target(asset string) decimal.Decimal {
	return p.targets[asset]
}

// Currencies target assets in ascending order.
func (p *Portfolio) Currencies() []string {
	assets := make([]string, 0, len(p.targets))
	for asset := range p.targets {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}

// Assets union of target assets and held assets in ascending order.
func (p *Portfolio) Assets() []string {
	set := make(map[string]struct{}, len(p.targets)+len(p.balances))
	for asset := range p.targets {
		set[asset] = struct{}{}
	}
	for _, asset := range p.balances.Assets() {
		set[asset] = struct{}{}
	}
	assets := make([]string, 0, len(set))
	for asset := range set {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}

// UnitPrice value of one unit of asset in the valuation currency at mid rates.
func (p *Portfolio) UnitPrice(asset string) (decimal.Decimal, error) {
	if asset == p.quote {
		return decimal.NewFromInt(1), nil
	}
	route, err := p.finder.Find(asset, p.quote)
	if err != nil {
		return decimal.Zero, err
	}
	return routing.Convert(decimal.NewFromInt(1), route, p.rates, routing.MidPrice)
}

// Valuate converts every asset into the valuation currency and derives allocation metrics.
func (p *Portfolio) Valuate() *Valuation {
	v := &Valuation{
		Quote:           p.quote,
		Threshold:       p.threshold,
		Targets:         make(map[string]decimal.Decimal, len(p.targets)),
		Balances:        p.balances.Clone(),
		BalancesInQuote: make(map[string]decimal.Decimal),
		UnitPrices:      make(map[string]decimal.Decimal),
		AllocationPct:   make(map[string]decimal.Decimal),
		DeviationPct:    make(map[string]decimal.Decimal),
		Weights:         make(map[string]decimal.Decimal),
		RouteErrors:     make(map[string]error),
		Total:           decimal.Zero,
		portfolio:       p,
	}
	for asset, pct := range p.targets {
		v.Targets[asset] = pct
	}

	for _, asset := range p.Assets() {
		price, err := p.UnitPrice(asset)
		if err != nil {
			v.RouteErrors[asset] = err
			continue
		}
		value := p.balances.Get(asset).Mul(price)
		v.UnitPrices[asset] = price
		v.BalancesInQuote[asset] = value
		v.Total = v.Total.Add(value)
	}

	currencies := p.Currencies()
	if v.Total.IsZero() {
		for _, asset := range currencies {
			v.AllocationPct[asset] = decimal.Zero
			v.DeviationPct[asset] = decimal.Zero
		}
		v.RMSError = decimal.Zero
		v.MaxError = decimal.Zero
		return v
	}

	for asset, value := range v.BalancesInQuote {
		v.Weights[asset] = value.Div(v.Total)
	}

	sumSquares := 0.0
	for _, asset := range currencies {
		value, ok := v.BalancesInQuote[asset]
		if !ok {
			continue
		}
		v.AllocationPct[asset] = value.Div(v.Total).Mul(hundred)

		diff := v.Total.Mul(p.targets[asset].Div(hundred)).Sub(value)
		deviation := diff.Div(v.Total).Mul(hundred)
		v.DeviationPct[asset] = deviation

		if deviation.Abs().GreaterThan(v.MaxError) {
			v.MaxError = deviation.Abs()
		}
		f := deviation.InexactFloat64()
		sumSquares += f * f
	}
	if n := len(v.DeviationPct); n > 0 {
		v.RMSError = decimal.NewFromFloat(math.Sqrt(sumSquares / float64(n)))
	}
	v.NeedsBalancing = v.MaxError.GreaterThan(p.threshold)

	return v
}

// Valuation result of valuing a portfolio on one snapshot.
type Valuation struct {
	Quote     string
	Threshold decimal.Decimal
	Targets   map[string]decimal.Decimal
	Balances  domain.Balances
	// BalancesInQuote value of every routable asset in the valuation currency.
	BalancesInQuote map[string]decimal.Decimal
	// UnitPrices value of one unit of every routable asset.
	UnitPrices map[string]decimal.Decimal
	// Total sum of BalancesInQuote.
	Total decimal.Decimal
	// AllocationPct share of each target asset in percent.
	AllocationPct map[string]decimal.Decimal
	// DeviationPct target minus actual allocation in percent, per target asset.
	DeviationPct map[string]decimal.Decimal
	// Weights share of every routable asset as a fraction of Total.
	Weights        map[string]decimal.Decimal
	RMSError       decimal.Decimal
	MaxError       decimal.Decimal
	NeedsBalancing bool
	// RouteErrors assets excluded from Total because no route to Quote exists.
	RouteErrors map[string]error

	portfolio *Portfolio
}

// Portfolio the valued portfolio.
func (v *Valuation) Portfolio() *Portfolio {
	return v.portfolio
}

// Err combines route failures of all excluded assets, nil when every asset was valued.
func (v *Valuation) Err() error {
	var err error
	for _, asset := range v.UnroutableAssets() {
		err = multierr.Append(err, v.RouteErrors[asset])
	}
	return err
}

// UnroutableAssets assets without a route to the valuation currency, sorted.
func (v *Valuation) UnroutableAssets() []string {
	assets := make([]string, 0, len(v.RouteErrors))
	for asset := range v.RouteErrors {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}

// Weight share of the asset in Total, zero when unknown.
func (v *Valuation) Weight(asset string) decimal.Decimal {
	return v.Weights[asset]
}

// UnitPrice value of one unit of asset in the valuation currency. Assets not
// valued up front are priced through the portfolio's routes.
func (v *Valuation) UnitPrice(asset string) (decimal.Decimal, error) {
	if price, ok := v.UnitPrices[asset]; ok {
		return price, nil
	}
	if v.portfolio == nil {
		return decimal.Zero, &domain.RouteNotFoundError{From: asset, To: v.Quote}
	}
	return v.portfolio.UnitPrice(asset)
}
