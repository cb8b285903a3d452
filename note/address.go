package note

import (
	"errors"
	"fmt"
	"strings"
)

// AddressLen is the length of a shielded address in hex characters
// (32 bytes).
const AddressLen = 64

var ErrInvalidAddress = errors.New("invalid shielded address")

// NormalizeAddress canonicalizes a recipient address: lowercased hex with no
// 0x prefix, exactly 32 bytes. Short addresses are rejected outright rather
// than padded, so a truncated paste cannot silently become a valid but wrong
// recipient.
func NormalizeAddress(s string) (string, error) {
	addr := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if len(addr) != AddressLen {
		return "", fmt.Errorf("%w: want %d hex chars, got %d", ErrInvalidAddress, AddressLen, len(addr))
	}
	if !isHex(addr) {
		return "", fmt.Errorf("%w: non-hex characters", ErrInvalidAddress)
	}
	return addr, nil
}

// NormalizeAddressLoose is the legacy behaviour: short hex is left-zero-padded
// to the full width. Callers that still accept abbreviated addresses must opt
// in explicitly.
func NormalizeAddressLoose(s string) (string, error) {
	addr := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if addr == "" || len(addr) > AddressLen {
		return "", fmt.Errorf("%w: want at most %d hex chars, got %d", ErrInvalidAddress, AddressLen, len(addr))
	}
	if !isHex(addr) {
		return "", fmt.Errorf("%w: non-hex characters", ErrInvalidAddress)
	}
	return strings.Repeat("0", AddressLen-len(addr)) + addr, nil
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
