package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/curve25519"

	"github.com/sempicanha/commilink/internal/util/memzero"
)

// KeyBytes is the size of keys, public and symmetric alike.
const KeyBytes = 32

// GenerateKeypair returns a fresh Curve25519 key pair.
// The private key is clamped per RFC 7748.
func GenerateKeypair() (priv, pub [KeyBytes]byte, err error) {
	if _, err = rand.Read(priv[:]); err != nil {
		return
	}
	clamp(&priv)
	pb, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return
	}
	copy(pub[:], pb)
	return
}

// SessionKey derives the 32-byte symmetric key shared by the holders of
// the two key pairs: X25519 of our private and the peer's public,
// compressed through BLAKE2b-256. Both sides computing it from their
// respective halves obtain identical output. The raw shared point is
// never used as a key and is wiped after hashing.
func SessionKey(priv, peerPub [KeyBytes]byte) (key [KeyBytes]byte, err error) {
	shared, err := curve25519.X25519(priv[:], peerPub[:])
	if err != nil {
		return key, err
	}
	key = blake2b.Sum256(shared)
	memzero.Zero(shared)
	return key, nil
}

func clamp(k *[KeyBytes]byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}
