package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/paularlott/cli"

	"github.com/martinsuchenak/ztnetd/cmd/account"
	membercmd "github.com/martinsuchenak/ztnetd/cmd/member"
	"github.com/martinsuchenak/ztnetd/cmd/network"
	"github.com/martinsuchenak/ztnetd/cmd/server"
	"github.com/martinsuchenak/ztnetd/internal/log"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	rootCmd := &cli.Command{
		Name:        "ztnetd",
		Version:     version,
		Usage:       "Self-hosted ZeroTier network management console",
		Description: "Manage ZeroTier networks and members with a REST API, websocket events, webhooks, and an MCP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:         "log-level",
				Usage:        "Log level (trace, debug, info, warn, error)",
				DefaultValue: "info",
				EnvVars:      []string{"ZTNETD_LOG_LEVEL"},
				Global:       true,
			},
			&cli.StringFlag{
				Name:         "server",
				Usage:        "Server URL for remote commands",
				DefaultValue: "http://localhost:3000",
				EnvVars:      []string{"ZTNETD_SERVER_URL"},
				Global:       true,
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "API token for remote commands (defaults to the stored session)",
				EnvVars: []string{"ZTNETD_TOKEN"},
				Global:  true,
			},
		},
		PreRun: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			log.SetLevel(cmd.GetString("log-level"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			server.Command(),
			{
				Name:        "account",
				Usage:       "Account commands",
				Description: "Register, log in, and inspect your account",
				Commands:    account.Commands(),
			},
			{
				Name:        "network",
				Usage:       "Network management commands",
				Description: "Manage networks on the connected server",
				Commands:    network.Commands(),
			},
			{
				Name:        "member",
				Usage:       "Member management commands",
				Description: "Manage network members on the connected server",
				Commands:    membercmd.Commands(),
			},
		},
	}

	if err := rootCmd.Execute(context.Background()); err != nil {
		log.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
