// Command ledger builds, signs, finalizes, and verifies R⬢ records offline
// (without an usher connection), and inspects a disk-store scope's chain.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/hodeauxledger/rhexledger/canon"
	"github.com/hodeauxledger/rhexledger/crypto/ed25519"
	"github.com/hodeauxledger/rhexledger/internal/flags"
	"github.com/hodeauxledger/rhexledger/ledgerdisk"
	"github.com/hodeauxledger/rhexledger/rhex"
	"github.com/hodeauxledger/rhexledger/rhexcrypto"
)

var (
	gitCommit = ""
	gitDate   = ""
)

func main() {
	app := flags.NewApp(gitCommit, gitDate, "a tool for building and inspecting R⬢ records offline")
	app.Commands = []*cli.Command{
		buildCommand,
		craftCommand,
		finalizeCommand,
		verifyCommand,
		genesisCommand,
		inspectCommand,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	scopeFlag      = &cli.StringFlag{Name: "scope", Usage: "scope name", Category: flags.ScopeCategory}
	typeFlag       = &cli.StringFlag{Name: "type", Usage: "record_type", Category: flags.LedgerCategory}
	nonceFlag      = &cli.StringFlag{Name: "nonce", Usage: "intent nonce", Category: flags.LedgerCategory}
	authorSeedFlag = &cli.StringFlag{Name: "author-seed", Usage: "path to author's raw ed25519 seed", Category: flags.KeyCategory}
	usherPubFlag   = &cli.StringFlag{Name: "usher-pub", Usage: "base64url usher public key", Category: flags.KeyCategory}
	inFlag         = &cli.StringFlag{Name: "in", Usage: "input packed record file", Category: flags.LedgerCategory}
	outFlag        = &cli.StringFlag{Name: "out", Usage: "output packed record file", Category: flags.LedgerCategory}
)

// buildCommand drafts and author-signs a new record from flags, writing the
// packed result to --out.
var buildCommand = &cli.Command{
	Name:  "build",
	Usage: "draft and author-sign a new record",
	Flags: []cli.Flag{scopeFlag, typeFlag, nonceFlag, authorSeedFlag, usherPubFlag, outFlag},
	Action: func(ctx *cli.Context) error {
		seed, err := os.ReadFile(ctx.String("author-seed"))
		if err != nil {
			return err
		}
		authorPriv := ed25519.NewKeyFromSeed(seed)
		authorPub := ed25519.PublicFromPrivate(authorPriv)

		usherPub, err := rhexcrypto.DecodeB64(ctx.String("usher-pub"))
		if err != nil {
			return err
		}

		var in rhex.Intent
		in.Scope = ctx.String("scope")
		in.Nonce = ctx.String("nonce")
		in.RecordType = ctx.String("type")
		copy(in.AuthorPublicKey[:], authorPub)
		copy(in.UsherPublicKey[:], usherPub)

		r := rhex.Draft(in)
		r, err = rhex.AuthorSign(r, authorPriv)
		if err != nil {
			return err
		}
		return writeRecord(ctx.String("out"), r)
	},
}

// craftCommand applies the next signature stage (usher or quorum) to an
// existing packed record.
var craftCommand = &cli.Command{
	Name:      "craft",
	Usage:     "apply the next signature stage to a record",
	ArgsUsage: "usher|quorum",
	Flags:     []cli.Flag{inFlag, outFlag, authorSeedFlag},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("ledger craft: expected usher|quorum")
		}
		r, err := readRecord(ctx.String("in"))
		if err != nil {
			return err
		}
		seed, err := os.ReadFile(ctx.String("author-seed"))
		if err != nil {
			return err
		}
		priv := ed25519.NewKeyFromSeed(seed)

		switch ctx.Args().Get(0) {
		case "usher":
			r, err = rhex.UsherSign(r, 0, priv)
		case "quorum":
			r, err = rhex.QuorumSign(r, priv)
		default:
			return fmt.Errorf("ledger craft: unknown stage %q", ctx.Args().Get(0))
		}
		if err != nil {
			return err
		}
		return writeRecord(ctx.String("out"), r)
	},
}

var finalizeCommand = &cli.Command{
	Name:  "finalize",
	Usage: "compute and store current_hash for a fully-signed record",
	Flags: []cli.Flag{inFlag, outFlag},
	Action: func(ctx *cli.Context) error {
		r, err := readRecord(ctx.String("in"))
		if err != nil {
			return err
		}
		r, err = rhex.Finalize(r)
		if err != nil {
			return err
		}
		return writeRecord(ctx.String("out"), r)
	},
}

var verifyCommand = &cli.Command{
	Name:      "verify",
	Usage:     "validate a packed record's signatures and hash",
	ArgsUsage: "<record-file>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("ledger verify: expected a record file argument")
		}
		r, err := readRecord(ctx.Args().Get(0))
		if err != nil {
			return err
		}
		if err := rhex.Validate(r); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

// genesisCommand builds a fully-signed, finalized genesis record in one
// shot — author, usher (self-co-signed for bootstrap), and one quorum
// signature from the same key, since a genesis record has no prior quorum
// to draw from.
var genesisCommand = &cli.Command{
	Name:  "genesis",
	Usage: "build a self-contained genesis record for a new scope",
	Flags: []cli.Flag{scopeFlag, authorSeedFlag, outFlag,
		&cli.StringFlag{Name: "note", Usage: "free-text genesis note"}},
	Action: func(ctx *cli.Context) error {
		seed, err := os.ReadFile(ctx.String("author-seed"))
		if err != nil {
			return err
		}
		priv := ed25519.NewKeyFromSeed(seed)
		pub := ed25519.PublicFromPrivate(priv)

		var in rhex.Intent
		in.Scope = ctx.String("scope")
		in.RecordType = rhex.TypeScopeGenesis
		in.Data = canon.Object(map[string]canon.Value{
			"note": canon.String(ctx.String("note")),
		})
		copy(in.AuthorPublicKey[:], pub)
		copy(in.UsherPublicKey[:], pub)

		r := rhex.Draft(in)
		r, err = rhex.AuthorSign(r, priv)
		if err != nil {
			return err
		}
		r, err = rhex.UsherSign(r, 0, priv)
		if err != nil {
			return err
		}
		r, err = rhex.QuorumSign(r, priv)
		if err != nil {
			return err
		}
		r, err = rhex.Finalize(r)
		if err != nil {
			return err
		}
		return writeRecord(ctx.String("out"), r)
	},
}

// inspectCommand replays a scope's chain straight from a ledger_path disk
// store and prints one line per record — the offline counterpart to
// usherctl's over-the-wire request:rhex.
var inspectCommand = &cli.Command{
	Name:      "inspect",
	Usage:     "print every record in a scope's chain from a disk store",
	ArgsUsage: "<ledger-path>",
	Flags:     []cli.Flag{scopeFlag},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("ledger inspect: expected a ledger_path argument")
		}
		store, err := ledgerdisk.Open(ctx.Args().Get(0))
		if err != nil {
			return err
		}
		chain, err := store.LoadChain(ctx.String("scope"))
		if err != nil {
			return err
		}
		for _, r := range chain {
			fmt.Printf("%s  %-16s  %s\n", r.CurrentHash.String(), r.Intent.RecordType, r.Intent.Nonce)
		}
		return nil
	},
}

func writeRecord(path string, r *rhex.Record) error {
	b, err := rhex.Pack(r)
	if err != nil {
		return err
	}
	if path == "" {
		_, err := os.Stdout.Write(b)
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func readRecord(path string) (*rhex.Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return rhex.Unpack(b)
}
