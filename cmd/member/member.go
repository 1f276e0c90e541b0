package member

import (
	"context"
	"fmt"
	"strings"

	"github.com/paularlott/cli"

	"github.com/martinsuchenak/ztnetd/internal/apiclient"
	"github.com/martinsuchenak/ztnetd/internal/model"
)

type roster struct {
	Members []model.Member `json:"members"`
	Zombies []model.Member `json:"zombies,omitempty"`
	Stale   bool           `json:"stale,omitempty"`
}

// Commands returns the member command group
func Commands() []*cli.Command {
	return []*cli.Command{
		listCommand(),
		addCommand(),
		authorizeCommand(),
		deauthorizeCommand(),
		setCommand(),
		stashCommand(),
		restoreCommand(),
		deleteCommand(),
		purgeCommand(),
		tagCommand(),
		untagCommand(),
	}
}

func newClient(cmd *cli.Command) *apiclient.Client {
	return apiclient.New(cmd.GetString("server"), cmd.GetString("token"))
}

func memberPath(cmd *cli.Command) string {
	return "/api/networks/" + cmd.GetStringArg("network") + "/members/" + cmd.GetStringArg("member")
}

func memberArgs() []cli.Argument {
	return []cli.Argument{
		&cli.StringArg{Name: "network", Required: true},
		&cli.StringArg{Name: "member", Required: true},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:        "list",
		Usage:       "List a network's members",
		Description: "Show the live roster merged from the database and the controller",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "network", Required: true},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "stashed", Usage: "List stashed members instead"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			path := "/api/networks/" + cmd.GetStringArg("network") + "/members"
			if cmd.GetBool("stashed") {
				path += "?stashed=true"
			}

			var r roster
			if err := newClient(cmd).Get(path, &r); err != nil {
				return err
			}
			if r.Stale {
				fmt.Println("Warning: controller unreachable, showing stored state only")
			}
			if len(r.Members) == 0 {
				fmt.Println("No members found")
			}
			for _, m := range r.Members {
				printMemberLine(&m)
			}
			if len(r.Zombies) > 0 {
				fmt.Println("\nZombies (stashed here, still on the controller):")
				for _, m := range r.Zombies {
					printMemberLine(&m)
				}
			}
			return nil
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:        "add",
		Usage:       "Add a member by node address",
		Description: "Register a node on a network. The member starts unauthorized; adding a stashed member restores it.",
		Arguments:   memberArgs(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Member name"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			body := map[string]string{
				"id":   cmd.GetStringArg("member"),
				"name": cmd.GetString("name"),
			}
			var m model.Member
			err := newClient(cmd).Post("/api/networks/"+cmd.GetStringArg("network")+"/members", body, &m)
			if err != nil {
				return err
			}
			fmt.Printf("Member added: %s\n", m.ID)
			return nil
		},
	}
}

func authorizeCommand() *cli.Command {
	return setAuthorization("authorize", "Authorize a member", true)
}

func deauthorizeCommand() *cli.Command {
	return setAuthorization("deauthorize", "Revoke a member's authorization", false)
}

func setAuthorization(name, usage string, authorized bool) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		Arguments: memberArgs(),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var m model.Member
			err := newClient(cmd).Put(memberPath(cmd), map[string]bool{"authorized": authorized}, &m)
			if err != nil {
				return err
			}
			fmt.Printf("Member %s authorized=%t\n", m.ID, m.Authorized)
			return nil
		},
	}
}

func setCommand() *cli.Command {
	return &cli.Command{
		Name:        "set",
		Usage:       "Update member settings",
		Description: "Change a member's name, description, bridging, or static IPs",
		Arguments:   memberArgs(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Member name"},
			&cli.StringFlag{Name: "description", Usage: "Member description"},
			&cli.StringFlag{Name: "ips", Usage: "Comma-separated static IP assignments"},
			&cli.BoolFlag{Name: "bridge", Usage: "Allow ethernet bridging"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			update := map[string]interface{}{}
			if name := cmd.GetString("name"); name != "" {
				update["name"] = name
			}
			if desc := cmd.GetString("description"); desc != "" {
				update["description"] = desc
			}
			if ips := cmd.GetString("ips"); ips != "" {
				update["ip_assignments"] = parseList(ips)
			}
			if cmd.GetBool("bridge") {
				update["active_bridge"] = true
			}
			if len(update) == 0 {
				return fmt.Errorf("nothing to update")
			}

			var m model.Member
			if err := newClient(cmd).Put(memberPath(cmd), update, &m); err != nil {
				return err
			}
			fmt.Println("Member updated")
			return nil
		},
	}
}

func stashCommand() *cli.Command {
	return &cli.Command{
		Name:        "stash",
		Usage:       "Soft-delete a member",
		Description: "De-authorize and hide a member. Use \"add\" to restore it later.",
		Arguments:   memberArgs(),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			if err := newClient(cmd).Delete(memberPath(cmd), nil); err != nil {
				return err
			}
			fmt.Println("Member stashed")
			return nil
		},
	}
}

func restoreCommand() *cli.Command {
	return &cli.Command{
		Name:        "restore",
		Usage:       "Restore a stashed member",
		Arguments:   memberArgs(),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			body := map[string]string{"id": cmd.GetStringArg("member")}
			var m model.Member
			err := newClient(cmd).Post("/api/networks/"+cmd.GetStringArg("network")+"/members", body, &m)
			if err != nil {
				return err
			}
			fmt.Printf("Member restored: %s\n", m.ID)
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:        "delete",
		Usage:       "Delete a member",
		Description: "Remove a member. Deleting a stashed member is permanent: that node address can never rejoin the network.",
		Arguments:   memberArgs(),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			if err := newClient(cmd).Delete(memberPath(cmd)+"/permanent", nil); err != nil {
				return err
			}
			fmt.Println("Member deleted")
			return nil
		},
	}
}

func purgeCommand() *cli.Command {
	return &cli.Command{
		Name:        "purge-stash",
		Usage:       "Permanently delete all stashed members",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "network", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var resp struct {
				Deleted int `json:"deleted"`
			}
			err := newClient(cmd).Delete("/api/networks/"+cmd.GetStringArg("network")+"/stashed", &resp)
			if err != nil {
				return err
			}
			fmt.Printf("Permanently deleted %d stashed member(s)\n", resp.Deleted)
			return nil
		},
	}
}

func tagCommand() *cli.Command {
	return &cli.Command{
		Name:        "tag",
		Usage:       "Attach a notation to a member",
		Description: "Notations are shared per network: attaching an existing name reuses it",
		Arguments:   memberArgs(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Notation name", Required: true},
			&cli.StringFlag{Name: "color", Usage: "Display color (e.g. #ff8800)"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			body := map[string]string{
				"name":  cmd.GetString("name"),
				"color": cmd.GetString("color"),
			}
			var n model.Notation
			if err := newClient(cmd).Post(memberPath(cmd)+"/notations", body, &n); err != nil {
				return err
			}
			fmt.Printf("Notation attached: %s\n", n.Name)
			return nil
		},
	}
}

func untagCommand() *cli.Command {
	return &cli.Command{
		Name:      "untag",
		Usage:     "Detach a notation from a member",
		Arguments: memberArgs(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Notation name", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			path := memberPath(cmd) + "/notations/" + cmd.GetString("name")
			if err := newClient(cmd).Delete(path, nil); err != nil {
				return err
			}
			fmt.Println("Notation detached")
			return nil
		},
	}
}

func printMemberLine(m *model.Member) {
	status := "offline"
	if m.Online {
		status = "online"
	}
	auth := "unauthorized"
	if m.Authorized {
		auth = "authorized"
	}
	fmt.Printf("%s\t%s\t%s\t%s\t%s\n", m.ID, m.Name, auth, status, strings.Join(m.IPAssignments, ","))
}

func parseList(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
