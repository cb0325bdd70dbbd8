package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/tiagosilva/ecclesia/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Login  commands.LoginCmd  `cmd:"" help:"Authenticate against the server"`
		Logout commands.LogoutCmd `cmd:"" help:"Discard the stored session"`
		Whoami commands.WhoamiCmd `cmd:"" help:"Show the authenticated account"`
		Watch  commands.WatchCmd  `cmd:"" help:"Follow a live transmission"`

		Server  string `help:"Server base URL" default:"http://localhost:8080" env:"ECCLESIA_SERVER"`
		Debug   bool   `help:"Enable debug mode."`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Server: cli.Server, Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
