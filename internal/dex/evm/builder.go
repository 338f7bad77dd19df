// Package evm prepares and submits private-relay transaction bundles on EVM chains.
package evm

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/TerexitariusStomp/HummdingerAI/internal/metrics"
)

// ChainReader is the subset of the RPC client the builder needs.
type ChainReader interface {
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Relay accepts a bundle targeted at one block.
type Relay interface {
	SendBundle(ctx context.Context, txs []Transaction, block uint64) error
}

// Submission reports the result of Send. Err is informational; Send never returns an error.
type Submission struct {
	TargetBlock uint64
	Size        int
	Skipped     bool
	Err         error
}

// Builder fills gas and nonce defaults and hands bundles to a relay. Until Connect succeeds
// it builds nothing and skips submission.
type Builder struct {
	rpcURL string
	chain  ChainReader
	relay  Relay
	sender *common.Address
	close  func()
	log    zerolog.Logger
}

// Option customizes a Builder.
type Option func(*Builder)

// WithChain supplies an already connected chain reader.
func WithChain(c ChainReader) Option {
	return func(b *Builder) { b.chain = c }
}

// WithRelay sets the bundle relay used by Send.
func WithRelay(r Relay) Option {
	return func(b *Builder) { b.relay = r }
}

// WithSender sets the from address used for pending transactions that carry none.
func WithSender(addr common.Address) Option {
	return func(b *Builder) { b.sender = &addr }
}

// NewBuilder creates an unconnected builder for rpcURL.
func NewBuilder(rpcURL string, log zerolog.Logger, opts ...Option) *Builder {
	b := &Builder{rpcURL: rpcURL, log: log}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connect dials the RPC endpoint. It is a no-op once connected.
func (b *Builder) Connect(ctx context.Context) error {
	if b.chain != nil {
		return nil
	}
	client, err := ethclient.DialContext(ctx, b.rpcURL)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	b.chain = client
	b.close = client.Close
	return nil
}

// Connected reports whether a chain reader is available.
func (b *Builder) Connected() bool { return b.chain != nil }

// Close releases the RPC connection if Connect opened one.
func (b *Builder) Close() {
	if b.close != nil {
		b.close()
		b.close = nil
	}
}

// GweiToWei converts a possibly fractional gwei amount to wei, truncating below 1 wei.
// Negative and non-finite amounts yield zero.
func GweiToWei(gwei float64) *big.Int {
	if math.IsNaN(gwei) || math.IsInf(gwei, 0) || gwei <= 0 {
		return new(big.Int)
	}
	wei := decimal.NewFromFloat(gwei).Mul(decimal.NewFromInt(params.GWei))
	return wei.BigInt()
}

// Build copies each pending transaction and fills what is missing: from with the configured
// sender, gasPrice from gasPriceGwei, nonce from the sender's confirmed transaction count.
// Values already present are kept. Without a connection it returns an empty bundle.
func (b *Builder) Build(ctx context.Context, pending []Transaction, gasPriceGwei float64) ([]Transaction, error) {
	if b.chain == nil {
		b.log.Warn().Int("pending", len(pending)).Msg("rpc not connected, returning empty bundle")
		return []Transaction{}, nil
	}

	wei := GweiToWei(gasPriceGwei)
	out := make([]Transaction, 0, len(pending))
	for i, tx := range pending {
		cp := tx.clone()
		if _, ok := cp["from"]; !ok && b.sender != nil {
			cp["from"] = b.sender.Hex()
		}
		if _, ok := cp["gasPrice"]; !ok {
			cp["gasPrice"] = new(big.Int).Set(wei)
		}
		if _, ok := cp["nonce"]; !ok {
			from, err := cp.From()
			if err != nil {
				return nil, fmt.Errorf("tx %d: %w", i, err)
			}
			nonce, err := b.chain.NonceAt(ctx, from, nil)
			if err != nil {
				return nil, fmt.Errorf("tx %d: nonce for %s: %w", i, from.Hex(), err)
			}
			cp["nonce"] = nonce
		}
		out = append(out, cp)
	}
	b.log.Debug().Int("size", len(out)).Str("gas_price_wei", wei.String()).Msg("bundle built")
	return out, nil
}

// Send submits bundle to the relay for targetBlock, or for the block after the current head
// when targetBlock is zero. Failures are logged and returned inside the Submission.
func (b *Builder) Send(ctx context.Context, bundle []Transaction, targetBlock uint64) Submission {
	sub := Submission{TargetBlock: targetBlock, Size: len(bundle)}
	switch {
	case b.chain == nil:
		b.log.Warn().Msg("rpc not connected, bundle not submitted")
		sub.Skipped = true
	case b.relay == nil:
		b.log.Warn().Msg("no relay configured, bundle not submitted")
		sub.Skipped = true
	case len(bundle) == 0:
		b.log.Warn().Msg("empty bundle, nothing to submit")
		sub.Skipped = true
	}
	if sub.Skipped {
		metrics.BundlesTotal.WithLabelValues("skipped").Inc()
		return sub
	}

	if sub.TargetBlock == 0 {
		head, err := b.chain.BlockNumber(ctx)
		if err != nil {
			sub.Err = fmt.Errorf("read block number: %w", err)
			metrics.BundlesTotal.WithLabelValues("error").Inc()
			b.log.Error().Err(sub.Err).Msg("bundle submission failed")
			return sub
		}
		sub.TargetBlock = head + 1
	}

	if err := b.relay.SendBundle(ctx, bundle, sub.TargetBlock); err != nil {
		sub.Err = err
		metrics.BundlesTotal.WithLabelValues("error").Inc()
		b.log.Error().Err(err).Uint64("target_block", sub.TargetBlock).Msg("bundle submission failed")
		return sub
	}
	metrics.BundlesTotal.WithLabelValues("submitted").Inc()
	b.log.Info().Uint64("target_block", sub.TargetBlock).Int("size", sub.Size).Msg("bundle submitted to relay")
	return sub
}
