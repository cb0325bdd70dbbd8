package commands

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"
)

type LoginCmd struct {
	Username string `arg:"" help:"Account username"`
	Password string `help:"Account password (prompted when omitted)" env:"ECCLESIA_PASSWORD"`
}

func (c *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := newSessionStore(globals)
	if err != nil {
		return err
	}

	password := c.Password
	if password == "" {
		fmt.Fprintf(os.Stderr, "Password for %s: ", c.Username)
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
	}

	user, err := store.Login(ctx, c.Username, password)
	if err != nil {
		return err
	}

	fmt.Printf("Logged in as %s (%s)\n", user.Username, user.Role)
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(_ context.Context, globals *Globals) error {
	store, err := newSessionStore(globals)
	if err != nil {
		return err
	}

	store.Logout()
	fmt.Println("Logged out")
	return nil
}
