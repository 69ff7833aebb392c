// Command usherctl talks to a running usher relay over the wire protocol:
// submitting a packed record for co-signing and dispatch, or checking that a
// relay host accepts a connection (auth dials and sends no record).
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hodeauxledger/rhexledger/internal/flags"
	"github.com/hodeauxledger/rhexledger/rhex"
	"github.com/hodeauxledger/rhexledger/wireframe"
)

var (
	gitCommit = ""
	gitDate   = ""
)

func main() {
	app := flags.NewApp(gitCommit, gitDate, "a tool for submitting records to a running usher relay")
	app.Commands = []*cli.Command{submitCommand, authCommand}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	hostFlag    = &cli.StringFlag{Name: "host", Value: "127.0.0.1", Category: flags.NetworkingCategory}
	portFlag    = &cli.IntFlag{Name: "port", Value: 7610, Category: flags.NetworkingCategory}
	timeoutFlag = &cli.DurationFlag{Name: "timeout", Value: 5 * time.Second, Category: flags.NetworkingCategory}
)

var submitCommand = &cli.Command{
	Name:      "submit",
	Usage:     "send a packed record to a usher and print every response record",
	ArgsUsage: "<record-file>",
	Flags:     []cli.Flag{hostFlag, portFlag, timeoutFlag},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("usherctl submit: expected a record file argument")
		}
		payload, err := os.ReadFile(ctx.Args().Get(0))
		if err != nil {
			return err
		}

		conn, err := wireframe.Connect(ctx.String("host"), ctx.Int("port"), ctx.Duration("timeout"))
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := conn.Send(payload); err != nil {
			return err
		}
		return printResponses(conn, ctx.Duration("timeout"))
	},
}

// authCommand is a bare connectivity probe: dial the relay and confirm it
// accepts a connection within --timeout, without sending any record.
var authCommand = &cli.Command{
	Name:  "auth",
	Usage: "probe that a usher relay accepts connections",
	Flags: []cli.Flag{hostFlag, portFlag, timeoutFlag},
	Action: func(ctx *cli.Context) error {
		conn, err := wireframe.Connect(ctx.String("host"), ctx.Int("port"), ctx.Duration("timeout"))
		if err != nil {
			return err
		}
		defer conn.Close()
		fmt.Println("ok")
		return nil
	},
}

func printResponses(conn *wireframe.Conn, timeout time.Duration) error {
	for {
		resp, err := conn.Recv(time.Now().Add(timeout))
		if err != nil {
			return err
		}
		if resp == nil {
			return nil
		}
		r, err := rhex.Unpack(resp)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s\n", r.Intent.RecordType, r.CurrentHash.String())
	}
}
