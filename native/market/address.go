package market

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidAddress rejects malformed address strings.
var ErrInvalidAddress = errors.New("market: invalid address")

// ParseAddress decodes a 0x-prefixed 20-byte hex address.
func ParseAddress(s string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil || len(raw) != len(out) {
		return out, ErrInvalidAddress
	}
	copy(out[:], raw)
	return out, nil
}

// FormatAddress renders an address as 0x-prefixed lowercase hex.
func FormatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// DeriveTokenAddress computes the identity of the nth token minted for a
// creator. The creation nonce is global and strictly increasing, so derived
// identities are never reused.
func DeriveTokenAddress(creator [20]byte, nonce uint64) [20]byte {
	payload := make([]byte, len(creator)+8)
	copy(payload, creator[:])
	binary.BigEndian.PutUint64(payload[len(creator):], nonce)
	hash := ethcrypto.Keccak256(payload)
	var out [20]byte
	copy(out[:], hash[12:])
	return out
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}
