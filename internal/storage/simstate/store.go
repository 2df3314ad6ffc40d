package simstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
)

const defaultStateDir = "./wal/simulate"

// Store persists the simulated wallet so consecutive runs trade against the same balances.
type Store struct {
	path string
}

// DefaultDir state directory, overridable with REBALANCE_SIMULATE_STATE_DIR.
func DefaultDir() string {
	if stateDir := os.Getenv("REBALANCE_SIMULATE_STATE_DIR"); stateDir != "" {
		return stateDir
	}
	return defaultStateDir
}

// NewStore creates a simulator state store in dir named after scope.
func NewStore(dir, scope string) (*Store, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create simulate state dir")
	}

	name := sanitizeScope(scope)
	if name == "" {
		name = "wallet"
	}

	return &Store{path: filepath.Join(dir, fmt.Sprintf("%s.json", name))}, nil
}

// State all persisted simulator data.
type State struct {
	Wallet    map[string]string `json:"wallet"`
	Orders    []StoredOrder     `json:"orders,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// StoredOrder a filled simulated order.
type StoredOrder struct {
	ID        string           `json:"id"`
	Symbol    string           `json:"symbol"`
	Direction domain.Direction `json:"direction"`
	Amount    string           `json:"amount"`
	Price     string           `json:"price"`
	FilledAt  time.Time        `json:"filled_at"`
}

// NewState converts a wallet into its stored representation.
func NewState(wallet domain.Balances, orders []StoredOrder, at time.Time) State {
	s := State{
		Wallet:    make(map[string]string, len(wallet)),
		Orders:    orders,
		UpdatedAt: at,
	}
	for asset, qty := range wallet {
		s.Wallet[asset] = qty.String()
	}
	return s
}

// Balances decodes the stored wallet.
func (s *State) Balances() (domain.Balances, error) {
	out := make(domain.Balances, len(s.Wallet))
	assets := make([]string, 0, len(s.Wallet))
	for asset := range s.Wallet {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		qty, err := decimal.NewFromString(s.Wallet[asset])
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s balance", asset)
		}
		out[asset] = qty
	}
	return out, nil
}

// Load reads simulator state from disk, nil when nothing was saved yet.
func (s *Store) Load() (*State, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "read simulate state")
	}

	if len(payload) == 0 {
		return nil, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode simulate state")
	}

	return &state, nil
}

// Save writes simulator state to disk atomically via temp file.
func (s *Store) Save(state State) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode simulate state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write simulate state temp file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist simulate state")
	}

	return nil
}

// Path location of the state file.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func sanitizeScope(scope string) string {
	scope = strings.ToLower(strings.TrimSpace(scope))
	var b strings.Builder
	for _, r := range scope {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
