package network

import (
	"context"
	"fmt"
	"strings"

	"github.com/paularlott/cli"

	"github.com/martinsuchenak/ztnetd/internal/apiclient"
	"github.com/martinsuchenak/ztnetd/internal/model"
)

type networkResponse struct {
	Network   *model.Network        `json:"network"`
	Conflicts []model.RouteConflict `json:"route_conflicts,omitempty"`
}

// Commands returns the network command group
func Commands() []*cli.Command {
	return []*cli.Command{
		listCommand(),
		getCommand(),
		createCommand(),
		updateCommand(),
		deleteCommand(),
	}
}

func newClient(cmd *cli.Command) *apiclient.Client {
	return apiclient.New(cmd.GetString("server"), cmd.GetString("token"))
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:        "list",
		Usage:       "List networks",
		Description: "List the networks visible to your account",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var networks []model.Network
			if err := newClient(cmd).Get("/api/networks", &networks); err != nil {
				return err
			}
			if len(networks) == 0 {
				fmt.Println("No networks found")
				return nil
			}
			for _, n := range networks {
				fmt.Printf("%s\t%s\n", n.ID, n.Name)
			}
			return nil
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:  "get",
		Usage: "Show a network",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "network", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var resp networkResponse
			if err := newClient(cmd).Get("/api/networks/"+cmd.GetStringArg("network"), &resp); err != nil {
				return err
			}
			printNetwork(resp.Network)
			for _, c := range resp.Conflicts {
				fmt.Printf("Warning: route %s also managed by network %s\n", c.Target, c.OtherNetworkID)
			}
			return nil
		},
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:        "create",
		Usage:       "Create a network",
		Description: "Provision a new network on the controller",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Network name", Required: true},
			&cli.StringFlag{Name: "organization", Usage: "Owning organization ID"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			body := map[string]string{
				"name":            cmd.GetString("name"),
				"organization_id": cmd.GetString("organization"),
			}
			var resp networkResponse
			if err := newClient(cmd).Post("/api/networks", body, &resp); err != nil {
				return err
			}
			fmt.Printf("Network created: %s (ID: %s)\n", resp.Network.Name, resp.Network.ID)
			return nil
		},
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Update a network",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "network", Required: true},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Network name"},
			&cli.StringFlag{Name: "description", Usage: "Network description"},
			&cli.StringFlag{Name: "routes", Usage: "Comma-separated CIDR routes, \"target\" or \"target=via\""},
			&cli.IntFlag{Name: "mtu", Usage: "Network MTU"},
			&cli.BoolFlag{Name: "public", Usage: "Make the network public (joins need no authorization)"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			client := newClient(cmd)
			id := cmd.GetStringArg("network")

			// Fetch-then-modify so unset flags keep their values.
			var current networkResponse
			if err := client.Get("/api/networks/"+id, &current); err != nil {
				return err
			}
			network := current.Network

			if name := cmd.GetString("name"); name != "" {
				network.Name = name
			}
			if desc := cmd.GetString("description"); desc != "" {
				network.Description = desc
			}
			if routes := cmd.GetString("routes"); routes != "" {
				network.Routes = parseRoutes(routes)
			}
			if mtu := cmd.GetInt("mtu"); mtu > 0 {
				network.MTU = mtu
			}
			if cmd.GetBool("public") {
				network.Private = false
			}

			var resp networkResponse
			if err := client.Put("/api/networks/"+id, network, &resp); err != nil {
				return err
			}
			fmt.Println("Network updated")
			for _, c := range resp.Conflicts {
				fmt.Printf("Warning: route %s also managed by network %s\n", c.Target, c.OtherNetworkID)
			}
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:        "delete",
		Usage:       "Delete a network",
		Description: "Remove a network from the controller and the database",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "network", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			if err := newClient(cmd).Delete("/api/networks/"+cmd.GetStringArg("network"), nil); err != nil {
				return err
			}
			fmt.Println("Network deleted")
			return nil
		},
	}
}

func printNetwork(n *model.Network) {
	fmt.Printf("ID:          %s\n", n.ID)
	fmt.Printf("Name:        %s\n", n.Name)
	fmt.Printf("Private:     %t\n", n.Private)
	if n.Description != "" {
		fmt.Printf("Description: %s\n", n.Description)
	}
	if n.MTU > 0 {
		fmt.Printf("MTU:         %d\n", n.MTU)
	}
	for _, r := range n.Routes {
		if r.Via != "" {
			fmt.Printf("Route:       %s via %s\n", r.Target, r.Via)
		} else {
			fmt.Printf("Route:       %s\n", r.Target)
		}
	}
	for _, p := range n.IPPools {
		fmt.Printf("Pool:        %s - %s\n", p.Start, p.End)
	}
}

func parseRoutes(s string) []model.Route {
	var routes []model.Route
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		target, via, _ := strings.Cut(item, "=")
		routes = append(routes, model.Route{Target: target, Via: via})
	}
	return routes
}
