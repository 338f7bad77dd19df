package evm

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ParsePrivateKey decodes a hex secp256k1 key, with or without the 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	k := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if k == "" {
		return nil, errors.New("private key not set")
	}
	key, err := crypto.HexToECDSA(k)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// AddressOf returns the account controlled by key.
func AddressOf(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// MatchAddress fails unless key controls the account at hexAddr.
func MatchAddress(key *ecdsa.PrivateKey, hexAddr string) error {
	if !common.IsHexAddress(hexAddr) {
		return fmt.Errorf("invalid address %q", hexAddr)
	}
	if got := AddressOf(key); got != common.HexToAddress(hexAddr) {
		return fmt.Errorf("private key controls %s, not %s", got.Hex(), hexAddr)
	}
	return nil
}
