package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/sempicanha/commilink/internal/domain"
)

const didPrefix = "did:opp:x25519:"

// IdentityFromKey derives the self-certifying identity string for a
// public key. Stable for the lifetime of the key pair.
func IdentityFromKey(pub [KeyBytes]byte) domain.Identity {
	return domain.Identity(didPrefix + base64.StdEncoding.EncodeToString(pub[:]))
}

// KeyFromIdentity recovers the public key embedded in an identity
// string.
func KeyFromIdentity(id domain.Identity) (pub [KeyBytes]byte, err error) {
	s, ok := strings.CutPrefix(id.String(), didPrefix)
	if !ok {
		return pub, errors.New("crypto: not a commilink identity")
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return pub, err
	}
	if len(b) != KeyBytes {
		return pub, errors.New("crypto: bad public key size in identity")
	}
	copy(pub[:], b)
	return pub, nil
}

// PublicKey converts raw key material from the wire, checking its size.
func PublicKey(b []byte) (pub [KeyBytes]byte, err error) {
	if len(b) != KeyBytes {
		return pub, errors.New("crypto: bad public key size")
	}
	copy(pub[:], b)
	return pub, nil
}

// RoomKey decodes an operator-provisioned base64 room key.
func RoomKey(b64 string) (key [KeyBytes]byte, err error) {
	b, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return key, err
	}
	if len(b) != KeyBytes {
		return key, errors.New("crypto: room key must be 32 bytes")
	}
	copy(key[:], b)
	return key, nil
}

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:10])
}
