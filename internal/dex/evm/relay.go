package evm

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureHeader authenticates requests to Flashbots-compatible relays.
const SignatureHeader = "X-Flashbots-Signature"

// FlashbotsRelay submits bundles via eth_sendBundle. The same key signs the request header
// and any unsigned bundle entries.
type FlashbotsRelay struct {
	endpoint string
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	client   *http.Client
	nextID   atomic.Uint64
}

// NewFlashbotsRelay creates a relay client for endpoint.
func NewFlashbotsRelay(endpoint string, key *ecdsa.PrivateKey, chainID *big.Int) *FlashbotsRelay {
	return &FlashbotsRelay{
		endpoint: endpoint,
		key:      key,
		chainID:  chainID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type bundleParams struct {
	Txs         []string `json:"txs"`
	BlockNumber string   `json:"blockNumber"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendBundle encodes txs and posts them for block.
func (r *FlashbotsRelay) SendBundle(ctx context.Context, txs []Transaction, block uint64) error {
	raws := make([]string, 0, len(txs))
	for i, tx := range txs {
		raw, err := RawTransaction(tx, r.key, r.chainID)
		if err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
		raws = append(raws, raw)
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      r.nextID.Add(1),
		Method:  "eth_sendBundle",
		Params:  []any{bundleParams{Txs: raws, BlockNumber: hexutil.EncodeUint64(block)}},
	})
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	sig, err := SignPayload(r.key, body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, sig)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay request: %w", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("relay status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	var out rpcResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decode relay response: %w", err)
	}
	if out.Error != nil {
		return fmt.Errorf("relay error %d: %s", out.Error.Code, out.Error.Message)
	}
	return nil
}

// SignPayload produces the "<address>:<signature>" header value: an EIP-191 signature over
// the hex keccak hash of body.
func SignPayload(key *ecdsa.PrivateKey, body []byte) (string, error) {
	if key == nil {
		return "", fmt.Errorf("relay signing key not set")
	}
	hash := crypto.Keccak256Hash(body).Hex()
	sig, err := crypto.Sign(accounts.TextHash([]byte(hash)), key)
	if err != nil {
		return "", fmt.Errorf("sign relay payload: %w", err)
	}
	return AddressOf(key).Hex() + ":" + hexutil.Encode(sig), nil
}
