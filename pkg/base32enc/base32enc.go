package base32enc

import (
	"errors"
	"strings"
)

// ErrInvalidEncoding indicates input containing bytes outside the RFC 4648
// base32 alphabet.
var ErrInvalidEncoding = errors.New("invalid base32 encoding")

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// reverse maps alphabet bytes back to their 5-bit values; 0xFF marks bytes
// outside the alphabet.
var reverse = func() [256]byte {
	var m [256]byte
	for i := range m {
		m[i] = 0xFF
	}
	for i := 0; i < len(alphabet); i++ {
		c := alphabet[i]
		m[c] = byte(i)
		if c >= 'A' && c <= 'Z' {
			m[c+'a'-'A'] = byte(i)
		}
	}
	return m
}()

// Encode maps every 5-bit group of src to one alphabet character, padding the
// final group with zero bits. No "=" padding characters are emitted, matching
// what authenticator apps expect in otpauth URIs.
func Encode(src []byte) string {
	if len(src) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.Grow((len(src)*8 + 4) / 5)

	var buf uint16
	var bits uint
	for _, b := range src {
		buf = buf<<8 | uint16(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			sb.WriteByte(alphabet[buf>>bits&0x1F])
		}
	}
	if bits > 0 {
		sb.WriteByte(alphabet[buf<<(5-bits)&0x1F])
	}
	return sb.String()
}

// Decode reassembles the 5-bit groups of s into bytes. Input is
// case-insensitive and may carry trailing "=" padding; a trailing group of
// fewer than 8 bits is discarded. Bytes outside the alphabet yield
// ErrInvalidEncoding.
func Decode(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if s == "" {
		return []byte{}, nil
	}

	dst := make([]byte, 0, len(s)*5/8)

	var buf uint16
	var bits uint
	for i := 0; i < len(s); i++ {
		v := reverse[s[i]]
		if v == 0xFF {
			return nil, ErrInvalidEncoding
		}
		buf = buf<<5 | uint16(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			dst = append(dst, byte(buf>>bits))
		}
	}
	return dst, nil
}
