// Package rebalancer pairs overweight assets with underweight ones and emits
// the conversion intents that bring a portfolio back to its targets.
package rebalancer

import (
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/services/orderbuilder"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/services/portfolio"
)

var hundred = decimal.NewFromInt(100)

// dust deltas smaller than this are treated as settled; decimal division
// leaves residues around the 16th digit.
var dust = decimal.New(1, -12)

type routeFinder interface {
	Find(from, to string) (domain.Route, error)
}

type limitChecker interface {
	Check(asset, quote string, weight, total decimal.Decimal, prices orderbuilder.UnitPricer) error
}

// Plan ordered trade intents plus what was left out of them.
type Plan struct {
	Intents []domain.TradeIntent
	// Deltas target minus actual weight for every valued asset.
	Deltas map[string]decimal.Decimal
	// Remaining deltas left after matching.
	Remaining map[string]decimal.Decimal
	// Untradeable summed weight of assets excluded by venue limits.
	Untradeable decimal.Decimal
	// Excluded assets that failed the limit check, with the reason.
	Excluded map[string]error
}

// IsEmpty reports whether no trades are required.
func (p *Plan) IsEmpty() bool {
	return p == nil || len(p.Intents) == 0
}

// Solver greedy largest-imbalance-first matcher.
type Solver struct {
	l      *zap.Logger
	finder routeFinder
	limits limitChecker
}

// NewSolver creates a solver. limits may be nil to skip venue minimum checks.
func NewSolver(l *zap.Logger, finder routeFinder, limits limitChecker) *Solver {
	if l == nil {
		l = zap.NewNop()
	}
	return &Solver{l: l, finder: finder, limits: limits}
}

// Solve computes the trade intents for the valuation. Unless force is set an
// empty plan is returned when every deviation is within the threshold.
func (s *Solver) Solve(v *portfolio.Valuation, force bool) *Plan {
	plan := &Plan{
		Deltas:      deltas(v),
		Remaining:   make(map[string]decimal.Decimal),
		Untradeable: decimal.Zero,
		Excluded:    make(map[string]error),
	}
	if v.Total.IsZero() {
		return plan
	}

	if !force && withinThreshold(plan.Deltas, v.Threshold) {
		s.l.Debug("all deviations within threshold", zap.String("threshold", v.Threshold.String()))
		return plan
	}

	sellers := make(map[string]decimal.Decimal)
	buyers := make(map[string]decimal.Decimal)
	for _, asset := range sortedKeys(plan.Deltas) {
		delta := plan.Deltas[asset]
		if delta.Abs().LessThan(dust) {
			continue
		}
		if s.limits != nil {
			if err := s.limits.Check(asset, v.Quote, delta.Abs(), v.Total, v); err != nil {
				plan.Excluded[asset] = err
				plan.Untradeable = plan.Untradeable.Add(v.Weight(asset))
				s.l.Info("asset not tradeable this cycle",
					zap.String("asset", asset),
					zap.String("delta", delta.String()),
					zap.Error(err))
				continue
			}
		}
		if delta.IsNegative() {
			sellers[asset] = delta
		} else {
			buyers[asset] = delta
		}
	}

	plan.Intents = s.match(sellers, buyers)

	for asset, delta := range sellers {
		if !delta.IsZero() {
			plan.Remaining[asset] = delta
		}
	}
	for asset, delta := range buyers {
		if !delta.IsZero() {
			plan.Remaining[asset] = delta
		}
	}

	return plan
}

// match repeatedly pairs the most overweight seller with the most underweight
// buyer. Each round exhausts at least one side so the loop is bounded by the
// number of assets. Ties on delta resolve by ascending asset code.
func (s *Solver) match(sellers, buyers map[string]decimal.Decimal) []domain.TradeIntent {
	intents := make([]domain.TradeIntent, 0)
	rounds := len(sellers) + len(buyers)

	for i := 0; i < rounds; i++ {
		seller, sellDelta, ok := extreme(sellers, func(a, b decimal.Decimal) bool { return a.LessThan(b) })
		if !ok {
			break
		}
		buyer, buyDelta, ok := extreme(buyers, func(a, b decimal.Decimal) bool { return a.GreaterThan(b) })
		if !ok {
			break
		}
		if sellDelta.IsZero() || buyDelta.IsZero() {
			break
		}

		matched := sellDelta.Add(buyDelta)
		weight := decimal.Min(sellDelta.Abs(), buyDelta)
		if matched.IsNegative() {
			sellers[seller] = settle(matched)
			buyers[buyer] = decimal.Zero
		} else {
			sellers[seller] = decimal.Zero
			buyers[buyer] = settle(matched)
		}

		route, err := s.finder.Find(seller, buyer)
		if err != nil {
			s.l.Warn("no route between matched assets, skipping",
				zap.String("sell", seller),
				zap.String("buy", buyer),
				zap.String("weight", weight.String()),
				zap.Error(err))
			continue
		}

		intents = append(intents, domain.TradeIntent{
			From:   seller,
			To:     buyer,
			Route:  route,
			Weight: weight,
		})
	}

	return intents
}

// deltas target share minus actual share for every valued and target asset.
func deltas(v *portfolio.Valuation) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(v.Weights))
	if v.Total.IsZero() {
		return out
	}
	for asset, weight := range v.Weights {
		out[asset] = v.Targets[asset].Div(hundred).Sub(weight)
	}
	return out
}

func withinThreshold(deltas map[string]decimal.Decimal, threshold decimal.Decimal) bool {
	for _, delta := range deltas {
		if delta.Abs().Mul(hundred).GreaterThan(threshold) {
			return false
		}
	}
	return true
}

// extreme returns the asset whose delta wins the comparison, skipping settled
// assets. Iteration is in asset order so equal deltas pick the lowest code.
func extreme(side map[string]decimal.Decimal, better func(a, b decimal.Decimal) bool) (string, decimal.Decimal, bool) {
	var (
		best  string
		delta decimal.Decimal
		found bool
	)
	for _, asset := range sortedKeys(side) {
		d := side[asset]
		if d.IsZero() {
			continue
		}
		if !found || better(d, delta) {
			best, delta, found = asset, d, true
		}
	}
	return best, delta, found
}

func settle(d decimal.Decimal) decimal.Decimal {
	if d.Abs().LessThan(dust) {
		return decimal.Zero
	}
	return d
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
