package account

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/paularlott/cli"
	"golang.org/x/term"

	"github.com/martinsuchenak/ztnetd/internal/apiclient"
	"github.com/martinsuchenak/ztnetd/internal/model"
)

type session struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Commands returns the account command group
func Commands() []*cli.Command {
	return []*cli.Command{
		registerCommand(),
		loginCommand(),
		logoutCommand(),
		whoamiCommand(),
	}
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:        "register",
		Usage:       "Register a new user",
		Description: "Create a user account. The first registered user becomes the administrator.",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "username", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			return authenticate(cmd, "/api/auth/register", cmd.GetStringArg("username"))
		},
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:        "login",
		Usage:       "Log in and store a session token",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "username", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			return authenticate(cmd, "/api/auth/login", cmd.GetStringArg("username"))
		},
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Discard the stored session token",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			if err := apiclient.ClearSession(); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		},
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the logged-in user",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			client := apiclient.New(cmd.GetString("server"), cmd.GetString("token"))

			var user model.User
			if err := client.Get("/api/auth/me", &user); err != nil {
				return err
			}
			fmt.Printf("Username: %s\n", user.Username)
			fmt.Printf("Admin:    %t\n", user.IsAdmin)
			fmt.Printf("ID:       %s\n", user.ID)
			return nil
		},
	}
}

func authenticate(cmd *cli.Command, path, username string) error {
	password, err := promptPassword()
	if err != nil {
		return err
	}

	client := apiclient.New(cmd.GetString("server"), cmd.GetString("token"))

	var sess session
	err = client.Post(path, map[string]string{
		"username": username,
		"password": password,
	}, &sess)
	if err != nil {
		return err
	}

	if err := apiclient.SaveSession(sess.Token); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	fmt.Printf("Logged in as %s\n", sess.User.Username)
	if sess.User.IsAdmin {
		fmt.Println("This account has administrator rights.")
	}
	return nil
}

// promptPassword reads the password from the terminal without echo,
// falling back to stdin when not attached to a terminal.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	if term.IsTerminal(int(syscall.Stdin)) {
		data, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
