// Package base32enc implements the RFC 4648 base32 alphabet (A-Z, 2-7) used
// for TOTP shared secrets.
//
// Encoding never emits "=" padding because authenticator apps and otpauth
// URIs expect unpadded secrets. Decoding is deliberately tolerant: it accepts
// mixed case, strips trailing "=" padding, and discards a trailing partial
// byte, so secrets survive being retyped by hand from enrollment screens.
//
// The package guarantees Decode(Encode(b)) == b for every byte slice b.
package base32enc
