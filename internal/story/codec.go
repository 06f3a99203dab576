// Package story encodes free-text star narratives for storage on the ledger.
//
// A story is stored as the concatenation of its ASCII code points, each
// rendered as two lowercase hex digits. Decode stops at the first "00" pair,
// so it is not a strict inverse of Encode for text containing NUL.
package story

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMaxLength is the longest story, in characters, the ledger accepts.
const DefaultMaxLength = 500

// Validation errors, checked in this order by Prepare.
var (
	ErrEmpty    = errors.New("story is required")
	ErrTooLong  = errors.New("story exceeds maximum length")
	ErrNotASCII = errors.New("story must contain only ASCII characters")
)

// Policy decides what happens to a story longer than the maximum.
type Policy string

// Overflow policies.
const (
	Reject   Policy = "reject"
	Truncate Policy = "truncate"
)

// ParsePolicy maps a configuration value onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case Reject:
		return Reject, nil
	case Truncate:
		return Truncate, nil
	default:
		return "", fmt.Errorf("unknown story overflow policy %q", s)
	}
}

// Codec validates and encodes stories.
type Codec struct {
	MaxLength int
	Overflow  Policy
}

// NewCodec returns a Codec. A non-positive maxLength selects DefaultMaxLength.
func NewCodec(maxLength int, overflow Policy) Codec {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return Codec{MaxLength: maxLength, Overflow: overflow}
}

// Prepare validates text and returns its encoded form.
func (c Codec) Prepare(text string) (string, error) {
	if text == "" {
		return "", ErrEmpty
	}

	limit := c.MaxLength
	if limit <= 0 {
		limit = DefaultMaxLength
	}
	if n := utf8.RuneCountInString(text); n > limit {
		if c.Overflow != Truncate {
			return "", fmt.Errorf("%w: %d characters, limit %d", ErrTooLong, n, limit)
		}
		// Non-ASCII anywhere in the input is rejected, even past the cut.
		if !isASCII(text) {
			return "", ErrNotASCII
		}
		text = text[:limit]
	}

	if !isASCII(text) {
		return "", ErrNotASCII
	}
	return Encode(text), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return true
}

const hexDigits = "0123456789abcdef"

// Encode renders every character of text as two lowercase hex digits.
// Text is expected to be ASCII; see Prepare.
func Encode(text string) string {
	var sb strings.Builder
	sb.Grow(len(text) * 2)
	for i := 0; i < len(text); i++ {
		c := text[i]
		sb.WriteByte(hexDigits[c>>4])
		sb.WriteByte(hexDigits[c&0x0f])
	}
	return sb.String()
}

// Decode reads hex two digits at a time and stops at the first "00" pair or
// at the end of the input.
func Decode(encoded string) (string, error) {
	if len(encoded)%2 != 0 {
		return "", fmt.Errorf("odd length hex story (%d digits)", len(encoded))
	}
	var sb strings.Builder
	sb.Grow(len(encoded) / 2)
	for i := 0; i < len(encoded); i += 2 {
		hi, ok1 := fromHex(encoded[i])
		lo, ok2 := fromHex(encoded[i+1])
		if !ok1 || !ok2 {
			return "", fmt.Errorf("invalid hex %q at offset %d", encoded[i:i+2], i)
		}
		c := hi<<4 | lo
		if c == 0 {
			break
		}
		sb.WriteByte(c)
	}
	return sb.String(), nil
}

func fromHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
