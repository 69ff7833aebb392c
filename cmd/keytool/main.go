// Command keytool manages ed25519 author/usher/authority keys: generating
// them, viewing their public identity, signing and verifying raw payloads
// read from stdin, and moving between hot
// (plaintext) and encrypted-at-rest storage.
package main

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/hodeauxledger/rhexledger/crypto/ed25519"
	"github.com/hodeauxledger/rhexledger/internal/flags"
	"github.com/hodeauxledger/rhexledger/rhexcrypto"
)

var (
	gitCommit = ""
	gitDate   = ""
)

func main() {
	app := flags.NewApp(gitCommit, gitDate, "a tool for managing rhexledger author/usher/authority keys")
	app.Commands = []*cli.Command{
		generateCommand,
		viewCommand,
		signCommand,
		verifyCommand,
		hotCommand,
		encryptCommand,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var outFlag = &cli.StringFlag{Name: "out", Usage: "output key file path", Category: flags.KeyCategory}

var generateCommand = &cli.Command{
	Name:      "generate",
	Usage:     "generate a new ed25519 keypair and write the raw seed to --out",
	ArgsUsage: "",
	Flags:     []cli.Flag{outFlag},
	Action: func(ctx *cli.Context) error {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return err
		}
		out := ctx.String("out")
		if out != "" {
			seed := priv[:ed25519.SeedSize]
			if err := os.WriteFile(out, seed, 0o600); err != nil {
				return err
			}
		}
		fmt.Printf("public_key: %s\n", rhexcrypto.EncodeB64(pub))
		return nil
	},
}

var viewCommand = &cli.Command{
	Name:      "view",
	Usage:     "print the public key for a raw seed file",
	ArgsUsage: "<seed-file>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("keytool view: expected exactly one seed file argument")
		}
		seed, err := os.ReadFile(ctx.Args().Get(0))
		if err != nil {
			return err
		}
		if len(seed) != ed25519.SeedSize {
			return fmt.Errorf("keytool view: seed file must be %d bytes, got %d", ed25519.SeedSize, len(seed))
		}
		priv := ed25519.NewKeyFromSeed(seed)
		fmt.Printf("public_key: %s\n", rhexcrypto.EncodeB64(ed25519.PublicFromPrivate(priv)))
		return nil
	},
}

var signCommand = &cli.Command{
	Name:      "sign",
	Usage:     "sign raw bytes from stdin with a seed file, printing a base64url signature",
	ArgsUsage: "<seed-file>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("keytool sign: expected exactly one seed file argument")
		}
		seed, err := os.ReadFile(ctx.Args().Get(0))
		if err != nil {
			return err
		}
		priv := ed25519.NewKeyFromSeed(seed)
		msg, err := readAllStdin()
		if err != nil {
			return err
		}
		sig := ed25519.Sign(priv, msg)
		fmt.Println(rhexcrypto.EncodeB64(sig))
		return nil
	},
}

var verifyCommand = &cli.Command{
	Name:      "verify",
	Usage:     "verify a base64url signature over stdin against a base64url public key",
	ArgsUsage: "<public-key-b64> <signature-b64>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 2 {
			return fmt.Errorf("keytool verify: expected <public-key-b64> <signature-b64>")
		}
		pub, err := rhexcrypto.DecodeB64(ctx.Args().Get(0))
		if err != nil {
			return err
		}
		sig, err := rhexcrypto.DecodeB64(ctx.Args().Get(1))
		if err != nil {
			return err
		}
		msg, err := readAllStdin()
		if err != nil {
			return err
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), msg, sig) {
			return fmt.Errorf("keytool verify: signature does not verify")
		}
		fmt.Println("ok")
		return nil
	},
}

var passwordFlag = &cli.StringFlag{Name: "password", Usage: "key file password", Category: flags.KeyCategory}

// hotCommand decrypts an Argon2id/AES-GCM-sealed HKYV1 key file and writes
// its seed out as a raw hot key file for usherd's ephemeral relay signing.
var hotCommand = &cli.Command{
	Name:      "hot",
	Usage:     "decrypt an at-rest key file into a plaintext hot key file for usherd",
	ArgsUsage: "<encrypted-key-file> <hot-key-file>",
	Flags:     []cli.Flag{passwordFlag},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 2 {
			return fmt.Errorf("keytool hot: expected <encrypted-key-file> <hot-key-file>")
		}
		seed, err := rhexcrypto.ReadEncryptedKeyFile(ctx.Args().Get(0), ctx.String("password"))
		if err != nil {
			return err
		}
		defer rhexcrypto.Wipe(seed)
		return rhexcrypto.WriteHotKeyFile(ctx.Args().Get(1), seed)
	},
}

// encryptCommand seals a raw hot key file's seed into an at-rest HKYV1 key
// file, the form offline authority keys are stored in.
var encryptCommand = &cli.Command{
	Name:      "encrypt",
	Usage:     "wrap a raw hot key file into an at-rest encrypted key file",
	ArgsUsage: "<hot-key-file> <encrypted-key-file>",
	Flags:     []cli.Flag{passwordFlag},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 2 {
			return fmt.Errorf("keytool encrypt: expected <hot-key-file> <encrypted-key-file>")
		}
		seed, err := rhexcrypto.ReadHotKeyFile(ctx.Args().Get(0))
		if err != nil {
			return err
		}
		defer rhexcrypto.Wipe(seed)
		return rhexcrypto.WriteEncryptedKeyFile(ctx.Args().Get(1), seed, ctx.String("password"))
	},
}

func readAllStdin() ([]byte, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}
	return buf, nil
}
