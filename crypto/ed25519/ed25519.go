// Package ed25519 re-exports the standard library's Ed25519 primitive under
// names local to this module, so that every R⬢ signing role — author,
// usher, and quorum member — goes through one call site regardless of which
// package in this tree needs to sign or verify a pre-hash.
package ed25519

import (
	stded25519 "crypto/ed25519"
	"io"
)

const (
	PublicKeySize  = stded25519.PublicKeySize
	PrivateKeySize = stded25519.PrivateKeySize
	SignatureSize  = stded25519.SignatureSize
	SeedSize       = stded25519.SeedSize
)

type (
	PublicKey  = stded25519.PublicKey
	PrivateKey = stded25519.PrivateKey
)

func GenerateKey(rand io.Reader) (PublicKey, PrivateKey, error) {
	return stded25519.GenerateKey(rand)
}

func NewKeyFromSeed(seed []byte) PrivateKey {
	return stded25519.NewKeyFromSeed(seed)
}

func Sign(privateKey PrivateKey, message []byte) []byte {
	return stded25519.Sign(privateKey, message)
}

func Verify(publicKey PublicKey, message []byte, sig []byte) bool {
	return stded25519.Verify(publicKey, message, sig)
}

func PublicFromPrivate(privateKey PrivateKey) PublicKey {
	pub, ok := stded25519.PrivateKey(privateKey).Public().(stded25519.PublicKey)
	if !ok {
		return nil
	}
	return PublicKey(pub)
}
