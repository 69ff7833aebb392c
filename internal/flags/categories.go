// Package flags provides shared urfave/cli scaffolding for the keytool,
// ledger, usherctl and usherd command line shells.
package flags

import "github.com/urfave/cli/v2"

const (
	LedgerCategory     = "LEDGER"
	KeyCategory        = "KEY"
	ScopeCategory      = "SCOPE"
	NetworkingCategory = "NETWORKING"
	LoggingCategory    = "LOGGING AND DEBUGGING"
	MiscCategory       = "MISC"
)

func init() {
	cli.HelpFlag.(*cli.BoolFlag).Category = MiscCategory
	cli.VersionFlag.(*cli.BoolFlag).Category = MiscCategory
}

// NewApp creates an app with sane defaults.
func NewApp(gitCommit, gitDate, usage string) *cli.App {
	app := cli.NewApp()
	app.EnableBashCompletion = true
	app.Version = VersionWithCommit(gitCommit, gitDate)
	app.Usage = usage
	app.Copyright = "Copyright 2024 The rhexledger Authors"
	app.Before = func(ctx *cli.Context) error {
		return nil
	}
	return app
}

// VersionWithCommit formats a version string from a base version plus the
// git commit/date the binary was built from, when known.
func VersionWithCommit(gitCommit, gitDate string) string {
	vsn := "1.0.0"
	if len(gitCommit) >= 8 {
		vsn += "-" + gitCommit[:8]
	}
	if gitDate != "" {
		vsn += "-" + gitDate
	}
	return vsn
}
