// Package keystore keeps the wallet's ed25519 signing keys encrypted on
// disk, one file per account.
package keystore

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"

	klog "github.com/perawallet/pera-wallet-sub002/internal/log"
)

const (
	fileVersion = 1
	fileExt     = ".key"
)

// Errors returned by the keystore.
var (
	ErrKeyExists   = errors.New("key already exists")
	ErrKeyNotFound = errors.New("key not found")
)

// keyFile is the on-disk JSON format of one encrypted key.
type keyFile struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Address   string    `json:"address"`
	Name      string    `json:"name,omitempty"`
	Sealed    []byte    `json:"sealed_key"`
}

// Entry describes a stored key without decrypting it.
type Entry struct {
	Address   string
	Name      string
	CreatedAt time.Time
}

// Keystore manages encrypted keys in a directory.
type Keystore struct {
	path   string
	params Params
}

// New creates a keystore in path, creating the directory if needed.
func New(path string, params Params) (*Keystore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{path: path, params: params}, nil
}

func (ks *Keystore) keyPath(addr string) string {
	return filepath.Join(ks.path, addr+fileExt)
}

// Generate creates a new account and returns its address and 25-word
// mnemonic. The mnemonic is the only backup of the key.
func (ks *Keystore) Generate(name string, password []byte) (string, string, error) {
	acct := crypto.GenerateAccount()
	phrase, err := mnemonic.FromPrivateKey(acct.PrivateKey)
	if err != nil {
		return "", "", fmt.Errorf("encode mnemonic: %w", err)
	}
	addr, err := ks.Import(name, acct.PrivateKey, password)
	if err != nil {
		return "", "", err
	}
	return addr, phrase, nil
}

// ImportMnemonic stores the key behind a 25-word mnemonic.
func (ks *Keystore) ImportMnemonic(name, phrase string, password []byte) (string, error) {
	sk, err := mnemonic.ToPrivateKey(strings.Join(strings.Fields(phrase), " "))
	if err != nil {
		return "", fmt.Errorf("invalid mnemonic: %w", err)
	}
	return ks.Import(name, sk, password)
}

// Import encrypts and stores an ed25519 private key.
func (ks *Keystore) Import(name string, secret ed25519.PrivateKey, password []byte) (string, error) {
	acct, err := crypto.AccountFromPrivateKey(secret)
	if err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}
	addr := acct.Address.String()

	path := ks.keyPath(addr)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%w: %s", ErrKeyExists, addr)
	}

	sealed, err := Seal(secret, password, ks.params)
	if err != nil {
		return "", fmt.Errorf("encrypt key: %w", err)
	}
	kf := keyFile{
		Version:   fileVersion,
		CreatedAt: time.Now().UTC(),
		Address:   addr,
		Name:      name,
		Sealed:    sealed,
	}
	if err := writeFile(path, &kf); err != nil {
		return "", err
	}
	klog.Keystore.Info().Str("address", addr).Str("name", name).Msg("Key stored")
	return addr, nil
}

// List returns all stored keys ordered by address.
func (ks *Keystore) List() ([]Entry, error) {
	files, err := filepath.Glob(filepath.Join(ks.path, "*"+fileExt))
	if err != nil {
		return nil, fmt.Errorf("list keystore: %w", err)
	}
	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		kf, err := readFile(f)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Address: kf.Address, Name: kf.Name, CreatedAt: kf.CreatedAt})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Address < entries[j].Address })
	return entries, nil
}

// Export decrypts one key.
func (ks *Keystore) Export(addr string, password []byte) (ed25519.PrivateKey, error) {
	kf, err := readFile(ks.keyPath(addr))
	if err != nil {
		return nil, err
	}
	secret, err := Open(kf.Sealed, password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", addr, err)
	}
	return ed25519.PrivateKey(secret), nil
}

// Unlock decrypts the keys of addrs, or every key when addrs is empty.
func (ks *Keystore) Unlock(password []byte, addrs ...string) (*Unlocked, error) {
	if len(addrs) == 0 {
		entries, err := ks.List()
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			addrs = append(addrs, e.Address)
		}
	}

	u := &Unlocked{keys: make(map[string][]byte, len(addrs))}
	for _, addr := range addrs {
		sk, err := ks.Export(addr, password)
		if err != nil {
			u.Wipe()
			return nil, err
		}
		u.keys[addr] = sk
	}
	klog.Keystore.Debug().Int("keys", len(u.keys)).Msg("Keystore unlocked")
	return u, nil
}

// Delete removes a stored key.
func (ks *Keystore) Delete(addr string) error {
	path := ks.keyPath(addr)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, addr)
	}
	return os.Remove(path)
}

// Unlocked holds decrypted keys in memory. It satisfies the directory's
// key source.
type Unlocked struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

// Key returns the secret key of addr.
func (u *Unlocked) Key(addr string) ([]byte, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	k, ok := u.keys[addr]
	return k, ok
}

// Wipe zeroes and forgets every key.
func (u *Unlocked) Wipe() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for addr, k := range u.keys {
		wipe(k)
		delete(u.keys, addr)
	}
}

func writeFile(path string, kf *keyFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal key file: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

func readFile(path string) (*keyFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, strings.TrimSuffix(filepath.Base(path), fileExt))
	}
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse key file: %w", err)
	}
	if kf.Version != fileVersion {
		return nil, fmt.Errorf("unsupported key file version: %d", kf.Version)
	}
	return &kf, nil
}
