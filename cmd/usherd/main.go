// Command usherd runs the usher relay as a long-lived process: listen
// starts the full node (relay plus status API) from a TOML config file,
// and rebuild replays a disk store's chains into a fresh cache index.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hodeauxledger/rhexledger/internal/flags"
	"github.com/hodeauxledger/rhexledger/ledgerdb"
	"github.com/hodeauxledger/rhexledger/ledgerdisk"
	"github.com/hodeauxledger/rhexledger/node"
	"github.com/hodeauxledger/rhexledger/rhexconfig"
	"github.com/hodeauxledger/rhexledger/rhexlog"
)

var (
	gitCommit = ""
	gitDate   = ""
)

func main() {
	app := flags.NewApp(gitCommit, gitDate, "the rhexledger usher relay daemon")
	app.Commands = []*cli.Command{listenCommand, rebuildCommand}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var configFlag = &cli.StringFlag{
	Name:     "config",
	Usage:    "path to a TOML usherd configuration file",
	Required: true,
	Category: flags.LedgerCategory,
}

var listenCommand = &cli.Command{
	Name:  "listen",
	Usage: "start the usher relay and status API from a config file",
	Flags: []cli.Flag{configFlag},
	Action: func(ctx *cli.Context) error {
		cfg, err := rhexconfig.Load(ctx.String("config"))
		if err != nil {
			return fmt.Errorf("usherd listen: load config: %w", err)
		}

		n, err := node.New(&cfg)
		if err != nil {
			return fmt.Errorf("usherd listen: %w", err)
		}
		if err := n.Start(); err != nil {
			return fmt.Errorf("usherd listen: start: %w", err)
		}
		n.Log.Info("usherd started", "name", cfg.Name, "ledger_path", cfg.LedgerPath)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		n.Log.Info("usherd shutting down")
		return n.Close()
	},
}

var rebuildCommand = &cli.Command{
	Name:      "rebuild",
	Usage:     "replay every scope's on-disk chain into a fresh cache index",
	ArgsUsage: "",
	Flags:     []cli.Flag{configFlag},
	Action: func(ctx *cli.Context) error {
		cfg, err := rhexconfig.Load(ctx.String("config"))
		if err != nil {
			return fmt.Errorf("usherd rebuild: load config: %w", err)
		}
		log := rhexlog.New("component", "rebuild")

		disk, err := ledgerdisk.Open(cfg.LedgerPath)
		if err != nil {
			return err
		}
		scopes, err := disk.LoadScopeTable()
		if err != nil {
			return err
		}

		var store ledgerdb.KeyValueStore
		if cfg.Cache.DBPath == "" {
			return fmt.Errorf("usherd rebuild: cache.db_path must be set to rebuild a persistent index")
		}
		store, err = ledgerdb.OpenLevelStore(cfg.Cache.DBPath)
		if err != nil {
			return err
		}
		idx := ledgerdb.Open(store, cfg.Cache.SizeBytes)
		defer idx.Close()

		for _, entry := range scopes.All() {
			chain, err := disk.LoadChain(entry.Name)
			if err != nil {
				log.Warn("skipping scope with unreadable chain", "scope", entry.Name, "err", err)
				continue
			}
			var head = chain[0].CurrentHash
			for i, r := range chain {
				if err := idx.PutRecord(r); err != nil {
					return fmt.Errorf("usherd rebuild: scope %s record %d: %w", entry.Name, i, err)
				}
				head = r.CurrentHash
			}
			if err := idx.PutScope(entry.Name, ledgerdb.ScopeRow{Role: entry.Role, Head: head}); err != nil {
				return err
			}
			log.Info("rebuilt scope", "scope", entry.Name, "records", len(chain))
		}
		return nil
	},
}
