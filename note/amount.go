package note

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// MicroUnit is the number of micro-units per whole unit of display currency.
const MicroUnit = 1_000_000

// Decimals is the number of decimal places carried by a display amount.
const Decimals = 6

// valueBytes is the width of an encoded value crossing into proof
// construction: 32 bytes, big-endian.
const valueBytes = 32

var (
	ErrInvalidAmount = errors.New("amount is not a valid positive decimal")
	ErrInvalidValue  = errors.New("value is not valid hex")
)

// ParseAmount converts a user-facing decimal string ("0.50") to micro-units.
// The conversion is pure string arithmetic; values never pass through a
// float, so no precision is lost.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return nil, ErrInvalidAmount
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" && frac == "" {
		return nil, ErrInvalidAmount
	}
	if len(frac) > Decimals {
		return nil, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, Decimals)
	}
	// Right-pad the fraction to exactly Decimals digits.
	frac += strings.Repeat("0", Decimals-len(frac))
	if whole == "" {
		whole = "0"
	}

	digits := whole + frac
	for _, c := range digits {
		if c < '0' || c > '9' {
			return nil, ErrInvalidAmount
		}
	}

	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, ErrInvalidAmount
	}
	return v, nil
}

// FormatAmount renders micro-units as a decimal display string with
// trailing zeros trimmed ("500000" -> "0.5").
func FormatAmount(v *big.Int) string {
	q, r := new(big.Int).QuoRem(v, big.NewInt(MicroUnit), new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	frac := strings.TrimRight(fmt.Sprintf("%06d", r), "0")
	return q.String() + "." + frac
}

// EncodeValue encodes micro-units as 32-byte big-endian hex, the form the
// prover expects for input and output values.
func EncodeValue(v *big.Int) (string, error) {
	if v == nil || v.Sign() < 0 {
		return "", ErrInvalidAmount
	}
	b := v.Bytes()
	if len(b) > valueBytes {
		return "", fmt.Errorf("%w: value exceeds 32 bytes", ErrInvalidAmount)
	}
	buf := make([]byte, valueBytes)
	copy(buf[valueBytes-len(b):], b)
	return fmt.Sprintf("%x", buf), nil
}

// DecodeValue parses a hex-encoded value back into micro-units. Accepts
// both padded and minimal hex.
func DecodeValue(s string) (*big.Int, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, ErrInvalidValue
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, ErrInvalidValue
	}
	return v, nil
}
