// Package addresscodec validates XRPL classic addresses. Addresses are
// base58check-encoded account IDs using the XRP Ledger alphabet; validation
// here is the caller-side precondition before any RPC is issued, so a typo
// never reaches the network.
package addresscodec

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
)

// The XRP Ledger base58 alphabet (excludes 0, O, I, l).
const alphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

// accountIDPrefix is the type prefix for account IDs ("r" addresses).
const accountIDPrefix = 0x00

// accountIDLength is the length of a decoded account ID in bytes.
const accountIDLength = 20

var (
	ErrInvalidCharacter = errors.New("invalid base58 character")
	ErrInvalidChecksum  = errors.New("invalid checksum")
	ErrInvalidFormat    = errors.New("invalid address format")
)

var decodeTable [256]int8

func init() {
	for i := range decodeTable {
		decodeTable[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		decodeTable[alphabet[i]] = int8(i)
	}
}

// decodeBase58 decodes s using the XRPL alphabet, preserving leading-zero
// bytes encoded as leading 'r' characters.
func decodeBase58(s string) ([]byte, error) {
	if s == "" {
		return nil, ErrInvalidFormat
	}
	n := new(big.Int)
	radix := big.NewInt(58)
	for i := 0; i < len(s); i++ {
		v := decodeTable[s[i]]
		if v < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCharacter, s[i])
		}
		n.Mul(n, radix)
		n.Add(n, big.NewInt(int64(v)))
	}

	decoded := n.Bytes()
	leading := 0
	for leading < len(s) && s[leading] == alphabet[0] {
		leading++
	}
	out := make([]byte, leading+len(decoded))
	copy(out[leading:], decoded)
	return out, nil
}

func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:4]
}

// DecodeClassicAddress decodes and verifies a classic address, returning the
// 20-byte account ID.
func DecodeClassicAddress(address string) ([]byte, error) {
	if len(address) < 25 || len(address) > 35 {
		return nil, fmt.Errorf("%w: bad length %d", ErrInvalidFormat, len(address))
	}
	raw, err := decodeBase58(address)
	if err != nil {
		return nil, err
	}
	if len(raw) != 1+accountIDLength+4 {
		return nil, fmt.Errorf("%w: bad payload length %d", ErrInvalidFormat, len(raw))
	}

	payload, check := raw[:len(raw)-4], raw[len(raw)-4:]
	if !bytes.Equal(checksum(payload), check) {
		return nil, ErrInvalidChecksum
	}
	if payload[0] != accountIDPrefix {
		return nil, fmt.Errorf("%w: bad type prefix 0x%02x", ErrInvalidFormat, payload[0])
	}
	return payload[1:], nil
}

// IsValidClassicAddress reports whether address is a well-formed classic
// address with a valid checksum.
func IsValidClassicAddress(address string) bool {
	_, err := DecodeClassicAddress(address)
	return err == nil
}
