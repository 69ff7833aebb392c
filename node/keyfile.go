package node

import (
	"fmt"

	"github.com/hodeauxledger/rhexledger/crypto/ed25519"
	"github.com/hodeauxledger/rhexledger/rhexcrypto"
)

// readHotKeyFile reads the raw ed25519 seed rhexcrypto.WriteHotKeyFile wrote
// and expands it into a keypair.
func readHotKeyFile(path string) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	seed, err := rhexcrypto.ReadHotKeyFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("node: read hot key file: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return ed25519.PublicFromPrivate(priv), priv, nil
}
