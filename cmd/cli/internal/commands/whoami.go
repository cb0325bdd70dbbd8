package commands

import (
	"context"
	"fmt"
)

type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := newSessionStore(globals)
	if err != nil {
		return err
	}

	user, ok, err := store.CheckAuth(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not logged in")
	}

	fmt.Printf("%s (%s)\n", user.Username, user.Role)
	if user.Email != "" {
		fmt.Printf("  email: %s\n", user.Email)
	}
	return nil
}
