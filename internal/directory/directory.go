// Package directory is the wallet's cached view of its accounts: how each
// one signs and what it holds.
package directory

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	klog "github.com/perawallet/pera-wallet-sub002/internal/log"
	"github.com/perawallet/pera-wallet-sub002/internal/storage"
	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

// Directory is the read-only view the orchestrator consumes.
type Directory interface {
	Authorization(addr string) (types.Authorization, bool)
	Holdings(addr string) (types.Holdings, bool)
}

// KeySource returns local secret keys by address.
type KeySource interface {
	Key(addr string) ([]byte, bool)
}

// StaticKeys is a KeySource backed by a map.
type StaticKeys map[string][]byte

// Key implements KeySource.
func (s StaticKeys) Key(addr string) ([]byte, bool) {
	k, ok := s[addr]
	return k, ok
}

// Account kinds as stored.
const (
	KindStandard = "standard"
	KindLedger   = "ledger"
	KindWatch    = "watch"
)

// maxDelegationDepth bounds how far Authorization follows auth addresses.
// The resolver rejects anything deeper than one hop.
const maxDelegationDepth = 2

// Account is one stored account.
type Account struct {
	Address     string `json:"address"`
	Name        string `json:"name,omitempty"`
	Kind        string `json:"kind"`
	Device      string `json:"device,omitempty"`
	DeviceLabel string `json:"device_label,omitempty"`
	// AuthAddr is set when the account is rekeyed.
	AuthAddr string `json:"auth_addr,omitempty"`
}

type holdingsRecord struct {
	Balance    string            `json:"balance"`
	MinBalance string            `json:"min_balance"`
	Assets     map[string]string `json:"assets,omitempty"`
}

var (
	accountPrefix  = []byte("acct/")
	holdingsPrefix = []byte("hold/")
)

// ErrInvalidAccount is returned for an account record that cannot be stored.
var ErrInvalidAccount = errors.New("invalid account")

// Store is a Directory persisted in a storage.DB and cached in memory.
type Store struct {
	db       storage.DB
	accounts *storage.PrefixDB
	holdings *storage.PrefixDB
	keys     KeySource
	logger   zerolog.Logger

	mu       sync.RWMutex
	accts    map[string]Account
	balances map[string]types.Holdings
}

// Open loads every stored account and holding into memory.
func Open(db storage.DB, keys KeySource) (*Store, error) {
	if keys == nil {
		keys = StaticKeys{}
	}
	s := &Store{
		db:       db,
		accounts: storage.NewPrefixDB(db, accountPrefix),
		holdings: storage.NewPrefixDB(db, holdingsPrefix),
		keys:     keys,
		logger:   klog.Directory,
		accts:    make(map[string]Account),
		balances: make(map[string]types.Holdings),
	}

	err := s.accounts.ForEach(nil, func(key, value []byte) error {
		var a Account
		if err := json.Unmarshal(value, &a); err != nil {
			return fmt.Errorf("decode account %s: %w", key, err)
		}
		s.accts[a.Address] = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.holdings.ForEach(nil, func(key, value []byte) error {
		var r holdingsRecord
		if err := json.Unmarshal(value, &r); err != nil {
			return fmt.Errorf("decode holdings %s: %w", key, err)
		}
		h, err := r.decode()
		if err != nil {
			return fmt.Errorf("decode holdings %s: %w", key, err)
		}
		s.balances[string(key)] = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Int("accounts", len(s.accts)).Int("holdings", len(s.balances)).Msg("Directory loaded")
	return s, nil
}

// SetKeys replaces the key source, e.g. after the keystore is unlocked.
func (s *Store) SetKeys(keys KeySource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = keys
}

// PutAccount stores or replaces an account.
func (s *Store) PutAccount(a Account) error {
	switch a.Kind {
	case KindStandard, KindWatch:
	case KindLedger:
		if a.Device == "" {
			return fmt.Errorf("%w: ledger account %s has no device", ErrInvalidAccount, a.Address)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAccount, a.Kind)
	}
	if a.Address == "" {
		return fmt.Errorf("%w: empty address", ErrInvalidAccount)
	}
	if a.AuthAddr == a.Address {
		a.AuthAddr = ""
	}

	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	if err := s.accounts.Put([]byte(a.Address), data); err != nil {
		return fmt.Errorf("store account: %w", err)
	}

	s.mu.Lock()
	s.accts[a.Address] = a
	s.mu.Unlock()
	return nil
}

// RemoveAccount deletes an account and its holdings.
func (s *Store) RemoveAccount(addr string) error {
	b := storage.NewBatch(s.db)
	if err := b.Delete(key(accountPrefix, addr)); err != nil {
		return err
	}
	if err := b.Delete(key(holdingsPrefix, addr)); err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("remove account: %w", err)
	}

	s.mu.Lock()
	delete(s.accts, addr)
	delete(s.balances, addr)
	s.mu.Unlock()
	return nil
}

// Account returns a stored account.
func (s *Store) Account(addr string) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accts[addr]
	return a, ok
}

// Accounts returns all accounts ordered by address.
func (s *Store) Accounts() []Account {
	s.mu.RLock()
	out := make([]Account, 0, len(s.accts))
	for _, a := range s.accts {
		out = append(out, a)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// PutHoldings caches addr's balances. For a known account it also records
// the auth address reported by the network; empty means not rekeyed.
func (s *Store) PutHoldings(addr string, h types.Holdings, authAddr string) error {
	data, err := json.Marshal(encodeHoldings(h))
	if err != nil {
		return err
	}
	if authAddr == addr {
		authAddr = ""
	}

	b := storage.NewBatch(s.db)
	if err := b.Put(key(holdingsPrefix, addr), data); err != nil {
		return err
	}

	s.mu.RLock()
	a, known := s.accts[addr]
	s.mu.RUnlock()
	rekeyed := known && a.AuthAddr != authAddr
	if rekeyed {
		a.AuthAddr = authAddr
		acct, err := json.Marshal(a)
		if err != nil {
			return err
		}
		if err := b.Put(key(accountPrefix, addr), acct); err != nil {
			return err
		}
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("store holdings: %w", err)
	}

	s.mu.Lock()
	s.balances[addr] = h
	if rekeyed {
		s.accts[addr] = a
		s.logger.Info().Str("address", addr).Str("auth_addr", authAddr).Msg("Account authorization changed")
	}
	s.mu.Unlock()
	return nil
}

// Holdings implements Directory.
func (s *Store) Holdings(addr string) (types.Holdings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.balances[addr]
	return h, ok
}

// Authorization implements Directory.
func (s *Store) Authorization(addr string) (types.Authorization, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authorization(addr, 0)
}

func (s *Store) authorization(addr string, depth int) (types.Authorization, bool) {
	a, ok := s.accts[addr]
	if !ok {
		return nil, false
	}
	if a.AuthAddr != "" {
		if depth >= maxDelegationDepth-1 {
			return types.DelegatedTo{Delegate: a.AuthAddr}, true
		}
		inner, _ := s.authorization(a.AuthAddr, depth+1)
		return types.DelegatedTo{Delegate: a.AuthAddr, Authorization: inner}, true
	}

	switch a.Kind {
	case KindStandard:
		key, _ := s.keys.Key(addr)
		return types.LocalKey{Secret: key}, true
	case KindLedger:
		return types.HardwareDevice{Device: a.Device, Label: a.DeviceLabel}, true
	default:
		return nil, false
	}
}

func key(prefix []byte, addr string) []byte {
	return append(append([]byte{}, prefix...), addr...)
}

func encodeHoldings(h types.Holdings) holdingsRecord {
	r := holdingsRecord{
		Balance:    intString(h.Balance),
		MinBalance: intString(h.MinBalance),
	}
	if len(h.Assets) > 0 {
		r.Assets = make(map[string]string, len(h.Assets))
		for id, v := range h.Assets {
			r.Assets[strconv.FormatUint(id, 10)] = intString(v)
		}
	}
	return r
}

func (r holdingsRecord) decode() (types.Holdings, error) {
	bal, err := parseInt(r.Balance)
	if err != nil {
		return types.Holdings{}, err
	}
	minBal, err := parseInt(r.MinBalance)
	if err != nil {
		return types.Holdings{}, err
	}
	h := types.Holdings{Balance: bal, MinBalance: minBal, Assets: make(map[uint64]*big.Int, len(r.Assets))}
	for k, v := range r.Assets {
		id, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			return types.Holdings{}, fmt.Errorf("asset id %q: %w", k, err)
		}
		amt, err := parseInt(v)
		if err != nil {
			return types.Holdings{}, err
		}
		h.Assets[id] = amt
	}
	return h, nil
}

func intString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}
