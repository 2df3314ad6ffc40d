// Package report renders run results for the terminal.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/services/executor"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/services/portfolio"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/services/rebalancer"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warning   = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF5F87"}

	titleStyle = lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true).
			MarginTop(1)

	headerCell = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell       = lipgloss.NewStyle().Padding(0, 1)
	okStyle    = lipgloss.NewStyle().Foreground(special)
	warnStyle  = lipgloss.NewStyle().Foreground(warning)
	noteStyle  = lipgloss.NewStyle().Foreground(subtle)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(subtle)).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			return cell
		})
}

// Valuation per-asset balances, values and allocation against targets.
func Valuation(v *portfolio.Valuation) string {
	if v == nil {
		return ""
	}

	t := newTable("ASSET", "BALANCE", "VALUE "+v.Quote, "ACTUAL %", "TARGET %", "DEVIATION %")
	for _, asset := range assets(v) {
		value, actual, deviation := "-", "-", "-"
		if q, ok := v.BalancesInQuote[asset]; ok {
			value = q.StringFixed(2)
		}
		if pct, ok := v.AllocationPct[asset]; ok {
			actual = pct.StringFixed(2)
		} else if w, ok := v.Weights[asset]; ok {
			actual = w.Shift(2).StringFixed(2)
		}
		if dev, ok := v.DeviationPct[asset]; ok {
			deviation = dev.StringFixed(2)
		}
		target := decimal.Zero
		if pct, ok := v.Targets[asset]; ok {
			target = pct
		}
		t.Row(asset, v.Balances.Get(asset).String(), value, actual, target.StringFixed(2), deviation)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("PORTFOLIO"))
	b.WriteString("\n")
	b.WriteString(t.Render())
	b.WriteString("\n")
	fmt.Fprintf(&b, "Total: %s %s  RMS error: %s%%  Max error: %s%%  Threshold: %s%%\n",
		v.Total.StringFixed(2), v.Quote, v.RMSError.StringFixed(2), v.MaxError.StringFixed(2), v.Threshold.String())
	if v.NeedsBalancing {
		b.WriteString(warnStyle.Render("Rebalancing needed"))
	} else {
		b.WriteString(okStyle.Render("Portfolio within threshold"))
	}
	b.WriteString("\n")
	if unroutable := v.UnroutableAssets(); len(unroutable) > 0 {
		b.WriteString(warnStyle.Render("Not valued, no route to " + v.Quote + ": " + strings.Join(unroutable, ", ")))
		b.WriteString("\n")
	}
	return b.String()
}

// Plan trade intents and assets left out by venue limits.
func Plan(p *rebalancer.Plan) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("PLAN"))
	b.WriteString("\n")
	if p.IsEmpty() {
		b.WriteString(noteStyle.Render("No trades required"))
		b.WriteString("\n")
	} else {
		t := newTable("#", "FROM", "TO", "WEIGHT %", "ROUTE")
		for i, intent := range p.Intents {
			t.Row(fmt.Sprint(i+1), intent.From, intent.To, intent.Weight.Shift(2).StringFixed(4), intent.Route.String())
		}
		b.WriteString(t.Render())
		b.WriteString("\n")
	}

	if p != nil && len(p.Excluded) > 0 {
		excluded := make([]string, 0, len(p.Excluded))
		for asset := range p.Excluded {
			excluded = append(excluded, asset)
		}
		sort.Strings(excluded)
		fmt.Fprintf(&b, "%s\n", warnStyle.Render(fmt.Sprintf("Untradeable %s%%: %s",
			p.Untradeable.Shift(2).StringFixed(4), strings.Join(excluded, ", "))))
	}
	return b.String()
}

// Orders limit orders ready for submission.
func Orders(orders []*domain.Order) string {
	if len(orders) == 0 {
		return ""
	}
	t := newTable("SYMBOL", "SIDE", "AMOUNT", "PRICE", "TOTAL", "STATUS")
	for _, o := range orders {
		t.Row(o.Symbol, o.Direction.String(), o.Amount.String(), o.Price.String(), o.TotalInQuote.String(), string(o.Status))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("ORDERS"))
	b.WriteString("\n")
	b.WriteString(t.Render())
	b.WriteString("\n")
	return b.String()
}

// Result execution summary.
func Result(r *executor.Result) string {
	if r == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("EXECUTION"))
	b.WriteString("\n")
	switch {
	case r.Skipped:
		b.WriteString(noteStyle.Render("Skipped: portfolio within threshold (use --force to override)"))
		b.WriteString("\n")
		return b.String()
	case r.DryRun:
		b.WriteString(noteStyle.Render(fmt.Sprintf("Dry run: %d orders not submitted (use --trade to execute)", len(r.Orders))))
	default:
		b.WriteString(okStyle.Render(fmt.Sprintf("Submitted %d of %d orders", len(r.Successes), len(r.Orders))))
	}
	b.WriteString("\n")
	if r.Interrupted {
		b.WriteString(warnStyle.Render("Interrupted: remaining orders were not attempted"))
		b.WriteString("\n")
	}

	for _, f := range r.Failures {
		b.WriteString(warnStyle.Render("Failed: " + f.Error()))
		b.WriteString("\n")
	}

	quote := ""
	if r.Initial != nil {
		quote = r.Initial.Quote
	}
	fmt.Fprintf(&b, "Estimated fee: %s %s\n", r.TotalFee.StringFixed(4), quote)
	if r.Initial != nil && r.Proposed != nil {
		fmt.Fprintf(&b, "Max error: %s%% -> %s%%  RMS error: %s%% -> %s%%\n",
			r.Initial.MaxError.StringFixed(2), r.Proposed.MaxError.StringFixed(2),
			r.Initial.RMSError.StringFixed(2), r.Proposed.RMSError.StringFixed(2))
	}
	return b.String()
}

// History journal records, oldest first.
func History(entries []domain.RunRecordEntry) string {
	if len(entries) == 0 {
		return noteStyle.Render("No runs recorded") + "\n"
	}
	t := newTable("#", "TIME", "PLATFORM", "TOTAL", "MAX ERR %", "ORDERS", "FAILED", "EXECUTED")
	for _, e := range entries {
		r := e.Record
		t.Row(
			fmt.Sprint(e.Index),
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Platform,
			r.TotalValue+" "+r.Quote,
			r.MaxError,
			fmt.Sprint(len(r.Orders)),
			fmt.Sprint(len(r.Failed)),
			fmt.Sprint(r.Executed),
		)
	}
	return titleStyle.Render("HISTORY") + "\n" + t.Render() + "\n"
}

// assets target assets first, then other valued or held assets, each group sorted.
func assets(v *portfolio.Valuation) []string {
	seen := make(map[string]struct{})
	targets := make([]string, 0, len(v.Targets))
	for asset := range v.Targets {
		targets = append(targets, asset)
		seen[asset] = struct{}{}
	}
	sort.Strings(targets)

	var strays []string
	for _, asset := range v.Balances.Assets() {
		if _, ok := seen[asset]; ok {
			continue
		}
		seen[asset] = struct{}{}
		strays = append(strays, asset)
	}
	sort.Strings(strays)
	return append(targets, strays...)
}
