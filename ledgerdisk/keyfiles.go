package ledgerdisk

import "path/filepath"

// KeysDir returns the directory keytool/usherd key files live under.
func (s *Store) KeysDir() string {
	return filepath.Join(s.root, "keys")
}

// EncryptedKeyFilePath returns the path for an at-rest encrypted key file
// named after its holder (e.g. an authority or alias name).
func (s *Store) EncryptedKeyFilePath(name string) string {
	return filepath.Join(s.KeysDir(), name+".hkey")
}

// HotKeyFilePath returns the path for a raw hot key file used by usherd for
// ephemeral relay signing.
func (s *Store) HotKeyFilePath(name string) string {
	return filepath.Join(s.KeysDir(), name+".hot")
}
