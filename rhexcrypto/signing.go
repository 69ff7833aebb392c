package rhexcrypto

import "github.com/hodeauxledger/rhexledger/crypto/ed25519"

// SignWithHotKeyFile loads the raw seed at hotKeyPath, signs message with
// it, and wipes the plaintext seed from memory before returning — the
// pattern every usher co-signing call site should use instead of holding a
// decrypted PrivateKey across a suspension point.
func SignWithHotKeyFile(hotKeyPath string, message []byte) (ed25519.PublicKey, []byte, error) {
	seed, err := ReadHotKeyFile(hotKeyPath)
	if err != nil {
		return nil, nil, err
	}
	defer Wipe(seed)

	priv := ed25519.NewKeyFromSeed(seed)
	pub := ed25519.PublicFromPrivate(priv)
	sig := ed25519.Sign(priv, message)
	return pub, sig, nil
}

// SignWithEncryptedKeyFile decrypts the key file at path with password,
// signs message, and wipes the decrypted seed before returning.
func SignWithEncryptedKeyFile(path, password string, message []byte) (ed25519.PublicKey, []byte, error) {
	seed, err := ReadEncryptedKeyFile(path, password)
	if err != nil {
		return nil, nil, err
	}
	defer Wipe(seed)

	priv := ed25519.NewKeyFromSeed(seed)
	pub := ed25519.PublicFromPrivate(priv)
	sig := ed25519.Sign(priv, message)
	return pub, sig, nil
}
