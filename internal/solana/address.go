// Package solana holds lightweight Solana primitives shared by the API
// and the scan worker.
package solana

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ErrInvalidAddress indicates a string that is not a valid Solana
// wallet address.
var ErrInvalidAddress = errors.New("invalid solana address")

// ValidateAddress checks that addr is a base58-encoded 32-byte ed25519
// public key on the curve. Off-curve program-derived addresses are
// rejected: the scanner only tracks wallets that can sign.
func ValidateAddress(addr string) error {
	if len(addr) < 32 || len(addr) > 44 {
		return fmt.Errorf("%w: length %d", ErrInvalidAddress, len(addr))
	}

	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%w: decoded to %d bytes", ErrInvalidAddress, len(raw))
	}

	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("%w: not on curve", ErrInvalidAddress)
	}

	return nil
}
