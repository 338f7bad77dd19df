package evm

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestParsePrivateKey(t *testing.T) {
	key, err := ParsePrivateKey("0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	if err != nil {
		t.Fatalf("ParsePrivateKey returned error: %v", err)
	}
	if got := AddressOf(key); got != common.HexToAddress(sender) {
		t.Fatalf("expected %s, got %s", sender, got.Hex())
	}
	if _, err := ParsePrivateKey(""); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := ParsePrivateKey("zz"); err == nil {
		t.Fatalf("expected error for malformed key")
	}
}

func TestMatchAddress(t *testing.T) {
	key, _ := ParsePrivateKey("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	if err := MatchAddress(key, sender); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	cases := []string{"0x00000000000000000000000000000000000000aa", "not-an-address"}
	for _, addr := range cases {
		if err := MatchAddress(key, addr); err == nil {
			t.Fatalf("%s: expected mismatch error", addr)
		}
	}
}

func TestSignPayloadRecoversSigner(t *testing.T) {
	key, _ := crypto.GenerateKey()
	body := []byte(`{"jsonrpc":"2.0"}`)
	header, err := SignPayload(key, body)
	if err != nil {
		t.Fatalf("SignPayload returned error: %v", err)
	}
	addr, sigHex, ok := strings.Cut(header, ":")
	if !ok || addr != AddressOf(key).Hex() {
		t.Fatalf("unexpected header %q", header)
	}
	assertSigner(t, body, sigHex, AddressOf(key))
}

func assertSigner(t *testing.T, body []byte, sigHex string, want common.Address) {
	t.Helper()
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	digest := accounts.TextHash([]byte(crypto.Keccak256Hash(body).Hex()))
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		t.Fatalf("recover signer: %v", err)
	}
	if got := crypto.PubkeyToAddress(*pub); got != want {
		t.Fatalf("expected signer %s, got %s", want.Hex(), got.Hex())
	}
}

func TestFlashbotsRelaySendBundle(t *testing.T) {
	key, _ := crypto.GenerateKey()
	from := AddressOf(key)
	chainID := big.NewInt(1)

	var raws []string
	var block string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		addr, sigHex, _ := strings.Cut(r.Header.Get(SignatureHeader), ":")
		if addr != from.Hex() {
			t.Errorf("unexpected signer header %q", addr)
		}
		assertSigner(t, body, sigHex, from)

		var req struct {
			Method string         `json:"method"`
			Params []bundleParams `json:"params"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Method != "eth_sendBundle" || len(req.Params) != 1 {
			t.Errorf("unexpected request %+v", req)
		} else {
			raws = req.Params[0].Txs
			block = req.Params[0].BlockNumber
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"bundleHash":"0xabc"}}`))
	}))
	defer srv.Close()

	relay := NewFlashbotsRelay(srv.URL, key, chainID)
	txs := []Transaction{
		{"from": from.Hex(), "to": sender, "value": "1000", "gas": 21000, "gasPrice": GweiToWei(5), "nonce": uint64(4)},
		{"signedTransaction": "0xdeadbeef"},
	}
	if err := relay.SendBundle(context.Background(), txs, 101); err != nil {
		t.Fatalf("SendBundle returned error: %v", err)
	}
	if block != "0x65" {
		t.Fatalf("expected block 0x65, got %s", block)
	}
	if len(raws) != 2 || raws[1] != "0xdeadbeef" {
		t.Fatalf("unexpected raw txs %v", raws)
	}

	raw, _ := hexutil.Decode(raws[0])
	var tx types.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		t.Fatalf("decode signed tx: %v", err)
	}
	signerAddr, err := types.Sender(types.NewEIP155Signer(chainID), &tx)
	if err != nil || signerAddr != from {
		t.Fatalf("expected sender %s, got %s (%v)", from.Hex(), signerAddr.Hex(), err)
	}
	if tx.Nonce() != 4 || tx.Gas() != 21000 || tx.Value().String() != "1000" {
		t.Fatalf("unexpected tx fields nonce=%d gas=%d value=%s", tx.Nonce(), tx.Gas(), tx.Value())
	}
}

func TestFlashbotsRelayErrors(t *testing.T) {
	key, _ := crypto.GenerateKey()
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad", http.StatusForbidden)
		},
		"rpc error": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"block in the past"}}`))
		},
	}
	for name, h := range cases {
		srv := httptest.NewServer(h)
		relay := NewFlashbotsRelay(srv.URL, key, big.NewInt(1))
		err := relay.SendBundle(context.Background(), []Transaction{{"signedTransaction": "0x01"}}, 5)
		srv.Close()
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestRawTransactionRejectsForeignSender(t *testing.T) {
	key, _ := crypto.GenerateKey()
	tx := Transaction{"from": sender, "gas": 21000, "gasPrice": 1, "nonce": 0}
	if _, err := RawTransaction(tx, key, big.NewInt(1)); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestRawTransactionRequiresGas(t *testing.T) {
	key, _ := crypto.GenerateKey()
	tx := Transaction{"from": AddressOf(key).Hex(), "gasPrice": 1, "nonce": 0}
	if _, err := RawTransaction(tx, key, big.NewInt(1)); err == nil {
		t.Fatalf("expected error for missing gas")
	}
}
