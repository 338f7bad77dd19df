package evm

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Transaction is a loosely typed bundle entry: from, gasPrice, nonce plus caller fields
// (to, value, gas, data). A signedTransaction entry carries a pre-signed raw hex payload.
type Transaction map[string]any

const signedKey = "signedTransaction"

func (t Transaction) clone() Transaction {
	out := make(Transaction, len(t)+2)
	for k, v := range t {
		out[k] = v
	}
	return out
}

// From resolves the sender address.
func (t Transaction) From() (common.Address, error) {
	switch v := t["from"].(type) {
	case common.Address:
		return v, nil
	case string:
		if !common.IsHexAddress(v) {
			return common.Address{}, fmt.Errorf("invalid from address %q", v)
		}
		return common.HexToAddress(v), nil
	case nil:
		return common.Address{}, fmt.Errorf("missing from address")
	default:
		return common.Address{}, fmt.Errorf("unsupported from type %T", v)
	}
}

// RawTransaction returns the 0x-prefixed encoding of tx. Pre-signed entries pass through;
// everything else is signed as an EIP-155 legacy transaction with key.
func RawTransaction(tx Transaction, key *ecdsa.PrivateKey, chainID *big.Int) (string, error) {
	if raw, ok := tx[signedKey].(string); ok && raw != "" {
		return raw, nil
	}
	if key == nil {
		return "", fmt.Errorf("unsigned transaction and no signing key")
	}
	from, err := tx.From()
	if err != nil {
		return "", err
	}
	if signer := AddressOf(key); signer != from {
		return "", fmt.Errorf("from %s does not match signing key %s", from.Hex(), signer.Hex())
	}

	legacy := &types.LegacyTx{}
	if legacy.Nonce, err = toUint64(tx["nonce"]); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	if legacy.GasPrice, err = toBig(tx["gasPrice"]); err != nil {
		return "", fmt.Errorf("gasPrice: %w", err)
	}
	if legacy.Gas, err = toUint64(tx["gas"]); err != nil {
		return "", fmt.Errorf("gas: %w", err)
	}
	if v, ok := tx["value"]; ok {
		if legacy.Value, err = toBig(v); err != nil {
			return "", fmt.Errorf("value: %w", err)
		}
	} else {
		legacy.Value = new(big.Int)
	}
	if to, ok := tx["to"].(string); ok && to != "" {
		if !common.IsHexAddress(to) {
			return "", fmt.Errorf("invalid to address %q", to)
		}
		addr := common.HexToAddress(to)
		legacy.To = &addr
	}
	if data, ok := tx["data"].(string); ok && data != "" && data != "0x" {
		if legacy.Data, err = hexutil.Decode(data); err != nil {
			return "", fmt.Errorf("data: %w", err)
		}
	}

	signed, err := types.SignTx(types.NewTx(legacy), types.NewEIP155Signer(chainID), key)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	b, err := signed.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("encode transaction: %w", err)
	}
	return hexutil.Encode(b), nil
}

func toBig(v any) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, fmt.Errorf("missing")
		}
		return new(big.Int).Set(n), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case float64:
		if n < 0 || n != math.Trunc(n) {
			return nil, fmt.Errorf("not a whole non-negative number: %v", n)
		}
		out, _ := big.NewFloat(n).Int(nil)
		return out, nil
	case json.Number:
		return toBig(string(n))
	case string:
		out, ok := new(big.Int).SetString(strings.TrimSpace(n), 0)
		if !ok || out.Sign() < 0 {
			return nil, fmt.Errorf("invalid number %q", n)
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("missing")
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

func toUint64(v any) (uint64, error) {
	n, err := toBig(v)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("out of range: %s", n)
	}
	return n.Uint64(), nil
}
