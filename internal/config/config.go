package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/paularlott/cli"
)

// Config holds the application configuration
type Config struct {
	ListenAddr string
	DataDir    string

	// ControllerMode is "local" for a node's embedded controller or
	// "central" for the hosted API.
	ControllerMode      string
	ControllerURL       string
	ControllerToken     string
	ControllerTokenFile string

	SessionSecret string
	ServiceToken  string
	MCPToken      string

	PollInterval time.Duration
}

// GetFlags returns the server command-line flags. Every flag can also
// be set through its ZTNETD_* environment variable.
func GetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:         "listen",
			Usage:        "Address to listen on",
			DefaultValue: ":3000",
			EnvVars:      []string{"ZTNETD_LISTEN_ADDR"},
		},
		&cli.StringFlag{
			Name:         "data-dir",
			Usage:        "Directory for the SQLite database",
			DefaultValue: "./data",
			EnvVars:      []string{"ZTNETD_DATA_DIR"},
		},
		&cli.StringFlag{
			Name:         "controller-mode",
			Usage:        "Controller backend (local, central)",
			DefaultValue: "local",
			EnvVars:      []string{"ZTNETD_CONTROLLER_MODE"},
		},
		&cli.StringFlag{
			Name:    "controller-url",
			Usage:   "Controller base URL (defaults per mode)",
			EnvVars: []string{"ZTNETD_CONTROLLER_URL"},
		},
		&cli.StringFlag{
			Name:    "controller-token",
			Usage:   "Controller auth token (local) or API token (central)",
			EnvVars: []string{"ZTNETD_CONTROLLER_TOKEN"},
		},
		&cli.StringFlag{
			Name:         "controller-token-file",
			Usage:        "Path to the controller's authtoken.secret",
			DefaultValue: "/var/lib/zerotier-one/authtoken.secret",
			EnvVars:      []string{"ZTNETD_CONTROLLER_TOKEN_FILE"},
		},
		&cli.StringFlag{
			Name:    "session-secret",
			Usage:   "Secret used to sign session tokens",
			EnvVars: []string{"ZTNETD_SESSION_SECRET"},
		},
		&cli.StringFlag{
			Name:    "api-token",
			Usage:   "Service token for machine API access (empty disables)",
			EnvVars: []string{"ZTNETD_API_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "mcp-token",
			Usage:   "Bearer token for the MCP endpoint (empty disables auth)",
			EnvVars: []string{"ZTNETD_MCP_TOKEN"},
		},
		&cli.StringFlag{
			Name:         "poll-interval",
			Usage:        "Interval between background reconciliation sweeps",
			DefaultValue: "60s",
			EnvVars:      []string{"ZTNETD_POLL_INTERVAL"},
		},
	}
}

// Load builds the configuration from the parsed command flags and
// resolves the controller token.
func Load(cmd *cli.Command) (*Config, error) {
	cfg := &Config{
		ListenAddr:          cmd.GetString("listen"),
		DataDir:             cmd.GetString("data-dir"),
		ControllerMode:      strings.ToLower(cmd.GetString("controller-mode")),
		ControllerURL:       cmd.GetString("controller-url"),
		ControllerToken:     cmd.GetString("controller-token"),
		ControllerTokenFile: cmd.GetString("controller-token-file"),
		SessionSecret:       cmd.GetString("session-secret"),
		ServiceToken:        cmd.GetString("api-token"),
		MCPToken:            cmd.GetString("mcp-token"),
	}

	switch cfg.ControllerMode {
	case "local", "central":
	default:
		return nil, fmt.Errorf("invalid controller mode %q (expected local or central)", cfg.ControllerMode)
	}

	if cfg.ControllerURL == "" {
		if cfg.ControllerMode == "local" {
			cfg.ControllerURL = "http://localhost:9993"
		} else {
			cfg.ControllerURL = "https://api.zerotier.com/api/v1"
		}
	}

	// Local mode reads the node's authtoken.secret when no token is
	// given explicitly.
	if cfg.ControllerToken == "" && cfg.ControllerMode == "local" {
		data, err := os.ReadFile(cfg.ControllerTokenFile)
		if err != nil {
			return nil, fmt.Errorf("reading controller token file: %w", err)
		}
		cfg.ControllerToken = strings.TrimSpace(string(data))
	}
	if cfg.ControllerToken == "" {
		return nil, fmt.Errorf("no controller token configured")
	}

	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("session secret is required (set ZTNETD_SESSION_SECRET)")
	}

	interval, err := time.ParseDuration(cmd.GetString("poll-interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid poll interval: %w", err)
	}
	if interval < time.Second {
		return nil, fmt.Errorf("poll interval must be at least 1s")
	}
	cfg.PollInterval = interval

	return cfg, nil
}

// IsMCPEnabled checks if MCP authentication is configured
func (c *Config) IsMCPEnabled() bool {
	return c.MCPToken != ""
}

// IsAPIAuthEnabled reports whether a machine service token is set
func (c *Config) IsAPIAuthEnabled() bool {
	return c.ServiceToken != ""
}
