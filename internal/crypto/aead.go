package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/chacha20poly1305"
)

// NonceBytes is the XChaCha20-Poly1305 nonce size. Nonces are random
// per message; the extended size makes that safe.
const NonceBytes = chacha20poly1305.NonceSizeX

// Seal encrypts plaintext under key with a fresh random nonce and
// returns the nonce alongside the ciphertext.
func Seal(key [KeyBytes]byte, plaintext []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, NonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return nonce, aead.Seal(nil, nonce, plaintext, nil), nil
}

// Open decrypts a Seal output. It fails closed: any tampering with the
// ciphertext or a wrong key yields an error and no plaintext.
func Open(key [KeyBytes]byte, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, nil)
}
