package setup

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cbh4ou/CryptoRebalanceSVC/config"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
)

// DefaultPath file the wizard writes to.
const DefaultPath = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers raw wizard input.
type Answers struct {
	Platform         string
	Quote            string
	Targets          string
	Threshold        string
	Mode             string
	MaxOrders        string
	Trade            bool
	Cancel           bool
	HyperliquidPairs string
}

func defaultAnswers() Answers {
	return Answers{
		Platform:  config.PlatformSimulate,
		Quote:     "USDT",
		Targets:   "BTC 40, ETH 30, USDT 30",
		Threshold: "1",
		Mode:      string(domain.PriceModeMid),
		MaxOrders: "5",
	}
}

// RunTUI launches the terminal configuration wizard and writes the result to path.
func RunTUI(path string) error {
	if path == "" {
		path = DefaultPath
	}
	a := defaultAnswers()
	var confirm bool

	// step 1: welcome
	step("STEP 1: PLATFORM", true)
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange Platform").
				Options(
					huh.NewOption("Binance", config.PlatformBinance),
					huh.NewOption("Bybit", config.PlatformBybit),
					huh.NewOption("Hyperliquid", config.PlatformHyperliquid),
					huh.NewOption("Simulation", config.PlatformSimulate),
				).
				Value(&a.Platform),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 2: TARGET ALLOCATION", false)
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Valuation currency").
				Description("Asset the portfolio is valued in (e.g. USDT)").
				Value(&a.Quote).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("valuation currency cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Targets").
				Description("Percent per asset, must total 100 (e.g. BTC 40, ETH 30, USDT 30)").
				Value(&a.Targets).
				Validate(func(s string) error {
					_, err := config.ParseTargets(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	if a.Platform == config.PlatformHyperliquid {
		step("STEP 2b: HYPERLIQUID MARKETS", false)
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Spot pairs").
					Description("Comma separated BASE/QUOTE (e.g. HYPE/USDC, PURR/USDC)").
					Value(&a.HyperliquidPairs).
					Validate(validatePairs),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	step("STEP 3: EXECUTION", false)
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Threshold %").
				Description("Max allowed deviation before rebalancing (e.g. 1)").
				Value(&a.Threshold).
				Validate(validateThreshold),
			huh.NewSelect[string]().
				Title("Order pricing").
				Options(
					huh.NewOption("Mid price", string(domain.PriceModeMid)),
					huh.NewOption("Passive (rest on own side of book)", string(domain.PriceModePassive)),
					huh.NewOption("Cheap (cross the spread)", string(domain.PriceModeCheap)),
				).
				Value(&a.Mode),
			huh.NewInput().
				Title("Max orders").
				Value(&a.MaxOrders).
				Validate(validateMaxOrders),
			huh.NewConfirm().
				Title("Submit orders?").
				Description("No keeps every run a dry run").
				Value(&a.Trade),
			huh.NewConfirm().
				Title("Cancel open orders before each run?").
				Value(&a.Cancel),
		),
	).Run()
	if err != nil {
		return err
	}

	cfgTmp, err := BuildConfig(a)
	if err != nil {
		return err
	}

	// confirmation
	step("FINAL CONFIRMATION", false)
	summary := fmt.Sprintf(
		"Platform: %s\nValued in: %s\nTargets: %s\nThreshold: %s%%\nMode: %s\nTrade: %t\n",
		cfgTmp.Platform, cfgTmp.ValuationCurrency, a.Targets, cfgTmp.Threshold, cfgTmp.Mode, cfgTmp.Trade,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	if err := Write(path, cfgTmp); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(
		fmt.Sprintf("\n✓ Configuration saved to %s\nRun: rebalance --config %s", path, path)))
	return nil
}

// BuildConfig converts wizard answers into a validated yaml config entry.
func BuildConfig(a Answers) (config.ConfigTmp, error) {
	targets, err := config.ParseTargets(a.Targets)
	if err != nil {
		return config.ConfigTmp{}, err
	}
	maxOrders, err := strconv.Atoi(strings.TrimSpace(a.MaxOrders))
	if err != nil {
		return config.ConfigTmp{}, errors.Wrap(domain.ErrConfiguration, "max orders must be a whole number")
	}

	cfgTmp := config.ConfigTmp{
		Platform:          a.Platform,
		Targets:           make(map[string]string, len(targets)),
		Threshold:         strings.TrimSpace(a.Threshold),
		ValuationCurrency: strings.ToUpper(strings.TrimSpace(a.Quote)),
		Mode:              a.Mode,
		MaxOrders:         &maxOrders,
		Trade:             a.Trade,
		Cancel:            a.Cancel,
	}
	for asset, pct := range targets {
		cfgTmp.Targets[asset] = pct.String()
	}
	if a.Platform == config.PlatformHyperliquid {
		cfgTmp.HyperliquidPairs = splitPairs(a.HyperliquidPairs)
	}

	// reject anything the loader would reject
	if _, err := cfgTmp.ToConfig(); err != nil {
		return config.ConfigTmp{}, err
	}
	return cfgTmp, nil
}

// Write stores the config as a single-account yaml list.
func Write(path string, cfgTmp config.ConfigTmp) error {
	data, err := yaml.Marshal([]config.ConfigTmp{cfgTmp})
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func step(title string, welcome bool) {
	fmt.Print("\033[H\033[2J") // clear screen
	fmt.Println(headerStyle.Render("REBALANCER CONFIG WIZARD"))
	if welcome {
		fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Set your target allocation once, rebalance on every run.\n"))
	}
	fmt.Println(stepStyle.Render(title))
}

func validateThreshold(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("must be between 0 and 100")
	}
	return nil
}

func validateMaxOrders(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return fmt.Errorf("must be a whole number, 0 for no limit")
	}
	return nil
}

func validatePairs(s string) error {
	pairs := splitPairs(s)
	if len(pairs) == 0 {
		return fmt.Errorf("at least one pair is required")
	}
	for _, p := range pairs {
		if _, _, err := domain.ParseSymbol(p); err != nil {
			return err
		}
	}
	return nil
}

func splitPairs(s string) []string {
	var pairs []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			pairs = append(pairs, p)
		}
	}
	sort.Strings(pairs)
	return pairs
}
