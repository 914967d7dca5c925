// Package network is the wallet's client for an algod node: it fetches
// transaction parameters, account holdings and submits signed transactions.
package network

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/rs/zerolog"

	klog "github.com/perawallet/pera-wallet-sub002/internal/log"
	"github.com/perawallet/pera-wallet-sub002/pkg/txerr"
	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

// Genesis identifies the network the wallet expects to talk to. Empty
// fields are not checked.
type Genesis struct {
	ID   string
	Hash []byte
}

// Option configures a Client.
type Option func(*Client)

// WithGenesis rejects parameters from nodes on another network.
func WithGenesis(g Genesis) Option {
	return func(c *Client) { c.genesis = g }
}

// WithRetry replaces the retry settings.
func WithRetry(r RetryConfig) Option {
	return func(c *Client) { c.retry = r }
}

// WithTimeout bounds each request attempt. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Client talks to one algod node.
type Client struct {
	algod   *algod.Client
	genesis Genesis
	retry   RetryConfig
	timeout time.Duration
	logger  zerolog.Logger
}

func (c *Client) attempt(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// New creates a client for the node at url.
func New(url, token string, opts ...Option) (*Client, error) {
	ac, err := algod.MakeClient(url, token)
	if err != nil {
		return nil, fmt.Errorf("algod client: %w", err)
	}
	c := &Client{
		algod:  ac,
		retry:  DefaultRetryConfig(),
		logger: klog.Network,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = func(attempt int, err error) {
			c.logger.Debug().Err(err).Int("attempt", attempt).Msg("Retrying node request")
		}
	}
	return c, nil
}

// FetchTransactionParams returns a fresh parameter snapshot.
func (c *Client) FetchTransactionParams(ctx context.Context) (types.Params, error) {
	var p types.Params
	err := withRetry(ctx, c.retry, func() error {
		actx, cancel := c.attempt(ctx)
		defer cancel()
		sp, err := c.algod.SuggestedParams().Do(actx)
		if err != nil {
			return Classify(err)
		}
		p = types.Params{
			MinFee:      sp.MinFee,
			FeePerByte:  uint64(sp.Fee),
			FirstRound:  uint64(sp.FirstRoundValid),
			LastRound:   uint64(sp.LastRoundValid),
			GenesisID:   sp.GenesisID,
			GenesisHash: sp.GenesisHash,
		}
		return nil
	})
	if err != nil {
		return types.Params{}, err
	}
	if err := c.checkGenesis(p); err != nil {
		return types.Params{}, err
	}
	c.logger.Debug().
		Uint64("min_fee", p.MinFee).
		Uint64("fee_per_byte", p.FeePerByte).
		Uint64("first_round", p.FirstRound).
		Msg("Fetched transaction params")
	return p, nil
}

func (c *Client) checkGenesis(p types.Params) error {
	if c.genesis.ID != "" && p.GenesisID != c.genesis.ID {
		return fmt.Errorf("%w: node genesis %q, expected %q", txerr.ErrWrongNetwork, p.GenesisID, c.genesis.ID)
	}
	if len(c.genesis.Hash) > 0 && !bytes.Equal(p.GenesisHash, c.genesis.Hash) {
		return fmt.Errorf("%w: genesis hash mismatch", txerr.ErrWrongNetwork)
	}
	return nil
}

// SubmitSignedTransaction sends signed bytes (one transaction or a
// concatenated group) and returns the id of the first transaction.
// It is not retried.
func (c *Client) SubmitSignedTransaction(ctx context.Context, signed []byte) (string, error) {
	actx, cancel := c.attempt(ctx)
	defer cancel()
	txid, err := c.algod.SendRawTransaction(signed).Do(actx)
	if err != nil {
		return "", Classify(err)
	}
	c.logger.Info().Str("txid", txid).Int("size", len(signed)).Msg("Transaction submitted")
	return txid, nil
}

// Account is a node's view of one account.
type Account struct {
	Holdings types.Holdings
	// AuthAddr is the address the account is rekeyed to, or empty.
	AuthAddr string
}

// AccountInformation fetches an account's balances and rekey state.
func (c *Client) AccountInformation(ctx context.Context, addr string) (Account, error) {
	var out Account
	err := withRetry(ctx, c.retry, func() error {
		actx, cancel := c.attempt(ctx)
		defer cancel()
		info, err := c.algod.AccountInformation(addr).Do(actx)
		if err != nil {
			return Classify(err)
		}
		h := types.Holdings{
			Balance:    new(big.Int).SetUint64(info.Amount),
			MinBalance: new(big.Int).SetUint64(info.MinBalance),
			Assets:     make(map[uint64]*big.Int, len(info.Assets)),
		}
		for _, a := range info.Assets {
			h.Assets[a.AssetId] = new(big.Int).SetUint64(a.Amount)
		}
		out = Account{Holdings: h, AuthAddr: info.AuthAddr}
		return nil
	})
	return out, err
}
