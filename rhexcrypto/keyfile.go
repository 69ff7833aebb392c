package rhexcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/argon2"

	"github.com/hodeauxledger/rhexledger/crypto/ed25519"
)

// Key file layout, "HKYV1": a magic header identifying the format, an
// Argon2id salt, an AES-GCM nonce, and the sealed 32-byte Ed25519 seed.
const (
	keyFileMagic  = "HKYV1\x00"
	saltSize      = 16
	nonceSize     = 12
	seedPlainSize = ed25519.SeedSize
	gcmTagSize    = 16
)

// Argon2id parameters: m=19MiB, t=2, p=1, outlen=32.
const (
	argonTime    = 2
	argonMemory  = 19 * 1024 // KiB
	argonThreads = 1
	argonKeyLen  = 32
)

var (
	ErrBadKeyFileMagic = errors.New("rhexcrypto: bad key file magic")
	ErrBadKeyFileSize  = errors.New("rhexcrypto: key file has wrong size")
	ErrWrongPassword   = errors.New("rhexcrypto: wrong password or corrupt key file")
)

// EncryptSeed seals a 32-byte Ed25519 seed with a password, using
// Argon2id for key derivation and AES-256-GCM for authenticated encryption,
// and returns the full HKYV1 file bytes.
func EncryptSeed(seed []byte, password string) ([]byte, error) {
	if len(seed) != seedPlainSize {
		return nil, fmt.Errorf("rhexcrypto: seed must be %d bytes, got %d", seedPlainSize, len(seed))
	}
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, err
	}
	ciphertext := gcm.Seal(nil, nonce, seed, nil)

	out := make([]byte, 0, len(keyFileMagic)+saltSize+nonceSize+len(ciphertext))
	out = append(out, []byte(keyFileMagic)...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// DecryptSeed reverses EncryptSeed, returning the 32-byte plaintext seed.
// The caller is responsible for wiping the returned slice after use.
func DecryptSeed(fileBytes []byte, password string) ([]byte, error) {
	minSize := len(keyFileMagic) + saltSize + nonceSize + gcmTagSize + seedPlainSize
	if len(fileBytes) < minSize {
		return nil, ErrBadKeyFileSize
	}
	if string(fileBytes[:len(keyFileMagic)]) != keyFileMagic {
		return nil, ErrBadKeyFileMagic
	}
	off := len(keyFileMagic)
	salt := fileBytes[off : off+saltSize]
	off += saltSize
	nonce := fileBytes[off : off+nonceSize]
	off += nonceSize
	ciphertext := fileBytes[off:]

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plain, nil
}

// WriteEncryptedKeyFile seals seed with password and writes it atomically
// (write-to-tmp, then rename) to path.
func WriteEncryptedKeyFile(path string, seed []byte, password string) error {
	data, err := EncryptSeed(seed, password)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data, 0o600)
}

// ReadEncryptedKeyFile reads and decrypts an HKYV1 file at path.
func ReadEncryptedKeyFile(path string, password string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecryptSeed(data, password)
}

// WriteHotKeyFile writes a raw, unencrypted 32-byte seed, used only for
// ephemeral usher relay signing where latency matters more than at-rest
// confidentiality of a key that is, by design, only ever held in the
// relay's own process memory.
func WriteHotKeyFile(path string, seed []byte) error {
	if len(seed) != seedPlainSize {
		return fmt.Errorf("rhexcrypto: hot key seed must be %d bytes", seedPlainSize)
	}
	return writeFileAtomic(path, seed, 0o600)
}

// ReadHotKeyFile reads a raw hot key seed written by WriteHotKeyFile.
func ReadHotKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) != seedPlainSize {
		return nil, ErrBadKeyFileSize
	}
	return data, nil
}

// Wipe overwrites b with zeros in place. Callers should defer Wipe(seed)
// immediately after loading any plaintext key material.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
