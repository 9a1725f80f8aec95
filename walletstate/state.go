package walletstate

import (
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"github.com/shopspring/decimal"
)

var log = logging.Logger("wallet_state")

// KeyInfo is one derived public key and the networks it is valid on.
type KeyInfo struct {
	PubKey  string   `json:"pubkey"`
	Address string   `json:"address"`
	// Networks are CAIP-2 ids, e.g. "eip155:1".
	Networks []string `json:"networks"`
	Path     string   `json:"path"`
}

func (k KeyInfo) SupportsNetwork(networkID string) bool {
	for _, n := range k.Networks {
		if n == networkID {
			return true
		}
	}
	return false
}

// Balance is a cached per-asset balance keyed by CAIP-19 asset id.
type Balance struct {
	AssetID  string          `json:"assetId"`
	Symbol   string          `json:"symbol"`
	Exponent int32           `json:"exponent"`
	Amount   decimal.Decimal `json:"amount"`
}

// Context is the active chain/asset selection shared by all handlers.
type Context struct {
	NetworkID string `json:"networkId"`
	AssetID   string `json:"assetId"`
}

// State is the wallet-state singleton for one gateway instance. Handlers
// read keys and balances from it and switch the active context before a
// signing flow; context switches are serialized here so concurrent handlers
// never observe a torn switch.
type State struct {
	mu       sync.RWMutex
	keys     []KeyInfo
	balances map[string]Balance
	active   Context
}

func New(keys []KeyInfo, balances []Balance) *State {
	s := &State{keys: keys, balances: make(map[string]Balance)}
	for _, b := range balances {
		s.balances[b.AssetID] = b
	}
	return s
}

// KeysFor returns the derived keys valid on the given network.
func (s *State) KeysFor(networkID string) []KeyInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []KeyInfo
	for _, k := range s.keys {
		if k.SupportsNetwork(networkID) {
			out = append(out, k)
		}
	}
	return out
}

// AccountsFor returns the addresses valid on the given network, active
// account first.
func (s *State) AccountsFor(networkID string) []string {
	keys := s.KeysFor(networkID)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.Address)
	}
	return out
}

func (s *State) SetKeys(keys []KeyInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = keys
}

func (s *State) BalanceFor(assetID string) (Balance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.balances[assetID]
	return b, ok
}

func (s *State) SetBalance(b Balance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[b.AssetID] = b
}

func (s *State) Context() Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// EnsureContext switches the active context if it differs and reports
// whether a switch happened. The switch is visible to every concurrent
// caller, which is why it goes through the state lock.
func (s *State) EnsureContext(c Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == c {
		return false
	}
	log.Debugf("active context switch %s/%s -> %s/%s",
		s.active.NetworkID, s.active.AssetID, c.NetworkID, c.AssetID)
	s.active = c
	return true
}
