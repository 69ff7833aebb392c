// Package rhexconfig loads usherd's TOML configuration file, the way
// go-ethereum's geth loads its own node/eth config structs with
// github.com/naoina/toml.
package rhexconfig

import (
	"os"

	"github.com/naoina/toml"
)

// Config is the full usherd configuration: ledger storage, the usher
// listener, the read-only status API, and this node's hot signing key.
type Config struct {
	// Name identifies this node in logs.
	Name string `toml:"name"`

	// LedgerPath is the root directory for the content-addressed disk
	// store (scope_table.json plus one subdirectory per scope).
	LedgerPath string `toml:"ledger_path"`

	// Usher holds the relay listener's settings.
	Usher UsherConfig `toml:"usher"`

	// API holds the read-only HTTP status API's settings.
	API APIConfig `toml:"api"`

	// Cache holds the goleveldb/fastcache-backed index's settings.
	Cache CacheConfig `toml:"cache"`

	// HotKeyPath is the raw ed25519 seed file this usher signs with. It is
	// never encrypted at rest — see keytool's hot/encrypt subcommands for
	// the at-rest-encrypted alternative used by offline authority keys.
	HotKeyPath string `toml:"hot_key_path"`
}

// UsherConfig is the TCP relay listener's address.
type UsherConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// APIConfig is the read-only HTTP status API's address. Host empty disables
// the API.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// CacheConfig sizes the cache index's backing store.
type CacheConfig struct {
	// DBPath is the goleveldb directory. Empty selects an in-memory store,
	// useful for short-lived mirrors and tests.
	DBPath string `toml:"db_path"`
	// SizeBytes sizes the fastcache read-through layer in front of the
	// hottest (rhex) table. Zero disables it.
	SizeBytes int `toml:"size_bytes"`
}

// Default returns a Config with the same conservative defaults geth ships
// in its own DefaultConfig: an in-memory cache, the usher relay on all
// interfaces at port 7610, and the status API disabled.
func Default() Config {
	return Config{
		Name:       "usherd",
		LedgerPath: "./ledger",
		Usher:      UsherConfig{Host: "0.0.0.0", Port: 7610},
		Cache:      CacheConfig{SizeBytes: 32 * 1024 * 1024},
	}
}

// Load reads and parses a TOML config file at path, applying it on top of
// Default().
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
