// Package node assembles a usherd process: the cache index, the disk
// store, the usher relay, and the read-only status API, all wired behind
// a small Lifecycle registry in the style of go-ethereum's own node.Node
// (RegisterLifecycle, Start, Close).
package node

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hodeauxledger/rhexledger/clock"
	"github.com/hodeauxledger/rhexledger/crypto/ed25519"
	"github.com/hodeauxledger/rhexledger/ledgerdb"
	"github.com/hodeauxledger/rhexledger/ledgerdb/memorydb"
	"github.com/hodeauxledger/rhexledger/ledgerdisk"
	"github.com/hodeauxledger/rhexledger/rhexapi"
	"github.com/hodeauxledger/rhexledger/rhexconfig"
	"github.com/hodeauxledger/rhexledger/rhexlog"
	"github.com/hodeauxledger/rhexledger/scope"
	"github.com/hodeauxledger/rhexledger/usher"
)

// Config is rhexconfig.Config, re-exported so callers can write
// node.Config{...} without a second import.
type Config = rhexconfig.Config

// Lifecycle is anything the node starts and stops as a unit, in
// registration order on Start and reverse order on Close.
type Lifecycle interface {
	Start() error
	Stop() error
}

// ErrNodeRunning is returned by Start once the node has already started.
var ErrNodeRunning = errors.New("node: already started")

// Node is one usherd process: its resources plus whatever Lifecycles have
// been registered on it.
type Node struct {
	config *rhexconfig.Config

	Index  *ledgerdb.Index
	Disk   *ledgerdisk.Store
	Scopes *scope.Table
	Clock  *clock.GTClock
	Log    *rhexlog.Logger

	UsherPub  ed25519.PublicKey
	UsherPriv ed25519.PrivateKey

	mu         sync.Mutex
	started    bool
	lifecycles []Lifecycle
}

// New opens every resource a config names (disk store, cache index, scope
// table, clock, hot key) and registers the usher relay and, if configured,
// the status API as Lifecycles.
func New(cfg *rhexconfig.Config) (*Node, error) {
	if cfg == nil {
		c := rhexconfig.Default()
		cfg = &c
	}
	log := rhexlog.New("node", cfg.Name)

	disk, err := ledgerdisk.Open(cfg.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("node: open disk store: %w", err)
	}

	scopes, err := disk.LoadScopeTable()
	if err != nil {
		return nil, fmt.Errorf("node: load scope table: %w", err)
	}

	store, err := openCacheStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("node: open cache store: %w", err)
	}
	idx := ledgerdb.Open(store, cfg.Cache.SizeBytes)

	pub, priv, err := loadOrCreateHotKey(cfg.HotKeyPath)
	if err != nil {
		return nil, fmt.Errorf("node: load hot key: %w", err)
	}

	n := &Node{
		config:    cfg,
		Index:     idx,
		Disk:      disk,
		Scopes:    scopes,
		Clock:     clock.New(),
		Log:       log,
		UsherPub:  pub,
		UsherPriv: priv,
	}

	relay := usher.New(idx, disk, scopes, n.Clock, pub, priv, log.New("component", "usher"))
	n.RegisterLifecycle(&usherLifecycle{server: relay, addr: fmt.Sprintf("%s:%d", cfg.Usher.Host, cfg.Usher.Port)})

	if cfg.API.Host != "" {
		api := rhexapi.New(idx, fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port), n.Clock, log.New("component", "rhexapi"))
		n.RegisterLifecycle(api)
	}

	return n, nil
}

func openCacheStore(cfg *rhexconfig.Config) (ledgerdb.KeyValueStore, error) {
	if cfg.Cache.DBPath == "" {
		return memorydb.New(), nil
	}
	return ledgerdb.OpenLevelStore(cfg.Cache.DBPath)
}

func loadOrCreateHotKey(path string) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	if path == "" {
		return ed25519.GenerateKey(nil)
	}
	return readHotKeyFile(path)
}

// RegisterLifecycle adds l to the node's managed set. Once Start has been
// called it logs an error and drops l; lifecycles may only be added up front.
func (n *Node) RegisterLifecycle(l Lifecycle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		n.Log.Error("cannot register lifecycle after start")
		return
	}
	n.lifecycles = append(n.lifecycles, l)
}

// Start starts every registered Lifecycle in registration order, stopping
// and unwinding whatever already started if any one of them fails.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return ErrNodeRunning
	}

	started := make([]Lifecycle, 0, len(n.lifecycles))
	for _, l := range n.lifecycles {
		if err := l.Start(); err != nil {
			for i := len(started) - 1; i >= 0; i-- {
				_ = started[i].Stop()
			}
			return err
		}
		started = append(started, l)
	}
	n.started = true
	return nil
}

// Close stops every registered Lifecycle in reverse registration order, if
// the node is running, and releases the cache index. A second Close stops
// nothing again.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var firstErr error
	if n.started {
		for i := len(n.lifecycles) - 1; i >= 0; i-- {
			if err := n.lifecycles[i].Stop(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	n.started = false
	if err := n.Index.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// usherLifecycle adapts usher.Server into the Start()/Stop() shape every
// other Lifecycle uses: Start binds with Listen and runs Serve's accept loop
// in a goroutine.
type usherLifecycle struct {
	server *usher.Server
	addr   string
}

func (u *usherLifecycle) Start() error {
	if err := u.server.Listen(u.addr); err != nil {
		return err
	}
	go u.server.Serve()
	return nil
}

func (u *usherLifecycle) Stop() error {
	return u.server.Close()
}
