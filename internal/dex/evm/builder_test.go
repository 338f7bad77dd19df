package evm

import (
	"context"
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

const sender = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"

type fakeChain struct {
	nonces   map[common.Address]uint64
	head     uint64
	nonceErr error
	headErr  error
	lookups  int
}

func (f *fakeChain) NonceAt(_ context.Context, account common.Address, _ *big.Int) (uint64, error) {
	f.lookups++
	if f.nonceErr != nil {
		return 0, f.nonceErr
	}
	return f.nonces[account], nil
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) {
	return f.head, f.headErr
}

type recordingRelay struct {
	block uint64
	txs   []Transaction
	err   error
}

func (r *recordingRelay) SendBundle(_ context.Context, txs []Transaction, block uint64) error {
	r.block = block
	r.txs = txs
	return r.err
}

func TestGweiToWei(t *testing.T) {
	cases := map[float64]string{
		5:           "5000000000",
		0:           "0",
		1.5:         "1500000000",
		0.000000001: "1",
		2.25:        "2250000000",
	}
	for in, expected := range cases {
		if got := GweiToWei(in).String(); got != expected {
			t.Fatalf("GweiToWei(%v): expected %s got %s", in, expected, got)
		}
	}
}

func TestGweiToWeiNonFiniteIsZero(t *testing.T) {
	for _, in := range []float64{math.Inf(1), math.Inf(-1), math.NaN(), -3} {
		if got := GweiToWei(in); got.Sign() != 0 {
			t.Fatalf("GweiToWei(%v): expected 0, got %s", in, got)
		}
	}
}

func TestBuildNotConnectedReturnsEmpty(t *testing.T) {
	b := NewBuilder("http://unused", zerolog.Nop())
	out, err := b.Build(context.Background(), []Transaction{{"from": sender}}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil bundle, got %#v", out)
	}
}

func TestBuildFillsDefaults(t *testing.T) {
	chain := &fakeChain{nonces: map[common.Address]uint64{common.HexToAddress(sender): 7}}
	b := NewBuilder("", zerolog.Nop(), WithChain(chain))

	pending := []Transaction{{"from": sender, "to": sender, "value": 1}}
	out, err := b.Build(context.Background(), pending, 5)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 tx, got %d", len(out))
	}
	gp, ok := out[0]["gasPrice"].(*big.Int)
	if !ok || gp.String() != "5000000000" {
		t.Fatalf("expected gasPrice 5 gwei in wei, got %#v", out[0]["gasPrice"])
	}
	if out[0]["nonce"] != uint64(7) {
		t.Fatalf("expected nonce 7, got %#v", out[0]["nonce"])
	}
	if out[0]["value"] != 1 {
		t.Fatalf("caller fields must be preserved")
	}
	if _, mutated := pending[0]["gasPrice"]; mutated {
		t.Fatalf("input transaction must not be mutated")
	}
}

func TestBuildDefaultsSender(t *testing.T) {
	addr := common.HexToAddress(sender)
	chain := &fakeChain{nonces: map[common.Address]uint64{addr: 9}}
	b := NewBuilder("", zerolog.Nop(), WithChain(chain), WithSender(addr))

	other := "0x00000000000000000000000000000000000000aa"
	out, err := b.Build(context.Background(), []Transaction{{"to": sender}, {"from": other, "nonce": 1}}, 5)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if out[0]["from"] != addr.Hex() || out[0]["nonce"] != uint64(9) {
		t.Fatalf("expected configured sender and its nonce, got %#v", out[0])
	}
	if out[1]["from"] != other {
		t.Fatalf("explicit from must be kept, got %#v", out[1]["from"])
	}
}

func TestBuildKeepsCallerValues(t *testing.T) {
	chain := &fakeChain{}
	b := NewBuilder("", zerolog.Nop(), WithChain(chain))
	out, err := b.Build(context.Background(), []Transaction{{"from": sender, "gasPrice": 42, "nonce": 3}}, 5)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if out[0]["gasPrice"] != 42 || out[0]["nonce"] != 3 {
		t.Fatalf("caller values overwritten: %#v", out[0])
	}
	if chain.lookups != 0 {
		t.Fatalf("nonce lookup should be skipped when nonce is present")
	}
}

func TestBuildEmptyPending(t *testing.T) {
	b := NewBuilder("", zerolog.Nop(), WithChain(&fakeChain{}))
	out, err := b.Build(context.Background(), nil, 5)
	if err != nil || len(out) != 0 {
		t.Fatalf("expected empty bundle, got %v %v", out, err)
	}
}

func TestBuildNonceErrors(t *testing.T) {
	cases := map[string]struct {
		chain *fakeChain
		tx    Transaction
	}{
		"lookup failure": {&fakeChain{nonceErr: errors.New("rpc down")}, Transaction{"from": sender}},
		"missing from":   {&fakeChain{}, Transaction{"to": sender}},
		"invalid from":   {&fakeChain{}, Transaction{"from": "0x123"}},
	}
	for name, tc := range cases {
		b := NewBuilder("", zerolog.Nop(), WithChain(tc.chain))
		if _, err := b.Build(context.Background(), []Transaction{tc.tx}, 5); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestSendTargetsNextBlock(t *testing.T) {
	relay := &recordingRelay{}
	b := NewBuilder("", zerolog.Nop(), WithChain(&fakeChain{head: 100}), WithRelay(relay))
	sub := b.Send(context.Background(), []Transaction{{"from": sender}}, 0)
	if sub.Skipped || sub.Err != nil {
		t.Fatalf("unexpected submission %+v", sub)
	}
	if sub.TargetBlock != 101 || relay.block != 101 {
		t.Fatalf("expected target 101, got %d (relay %d)", sub.TargetBlock, relay.block)
	}
}

func TestSendExplicitTarget(t *testing.T) {
	relay := &recordingRelay{}
	b := NewBuilder("", zerolog.Nop(), WithChain(&fakeChain{head: 100}), WithRelay(relay))
	sub := b.Send(context.Background(), []Transaction{{"from": sender}}, 250)
	if sub.TargetBlock != 250 || relay.block != 250 {
		t.Fatalf("expected target 250, got %d", sub.TargetBlock)
	}
}

func TestSendSkips(t *testing.T) {
	cases := map[string]*Builder{
		"not connected": NewBuilder("", zerolog.Nop(), WithRelay(&recordingRelay{})),
		"no relay":      NewBuilder("", zerolog.Nop(), WithChain(&fakeChain{})),
	}
	for name, b := range cases {
		sub := b.Send(context.Background(), []Transaction{{"from": sender}}, 0)
		if !sub.Skipped || sub.Err != nil {
			t.Fatalf("%s: expected skip, got %+v", name, sub)
		}
	}
}

func TestSendReportsRelayError(t *testing.T) {
	relay := &recordingRelay{err: errors.New("bundle rejected")}
	b := NewBuilder("", zerolog.Nop(), WithChain(&fakeChain{head: 1}), WithRelay(relay))
	sub := b.Send(context.Background(), []Transaction{{"from": sender}}, 0)
	if sub.Err == nil || sub.Skipped {
		t.Fatalf("expected relay error in submission, got %+v", sub)
	}
}

func TestSendReportsHeadError(t *testing.T) {
	relay := &recordingRelay{}
	b := NewBuilder("", zerolog.Nop(), WithChain(&fakeChain{headErr: errors.New("timeout")}), WithRelay(relay))
	sub := b.Send(context.Background(), []Transaction{{"from": sender}}, 0)
	if sub.Err == nil {
		t.Fatalf("expected error when head is unavailable")
	}
	if relay.txs != nil {
		t.Fatalf("relay must not be called without a target block")
	}
}
