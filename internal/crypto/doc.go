// Package crypto implements the primitive operations the protocol is
// built on: X25519 key pairs, session-key derivation, and the
// XChaCha20-Poly1305 AEAD used for message payloads.
package crypto
