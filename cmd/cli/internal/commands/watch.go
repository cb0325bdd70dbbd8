package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/tiagosilva/ecclesia/internal/client"
	"github.com/tiagosilva/ecclesia/internal/liveroom"
	"github.com/tiagosilva/ecclesia/internal/presence"
	"github.com/tiagosilva/ecclesia/internal/realtime"
)

type WatchCmd struct {
	LiveID int64 `arg:"" help:"Live transmission ID"`
}

func (c *WatchCmd) Run(ctx context.Context, globals *Globals) error {
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

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt := client.NewRealtime(websocketURL(globals.Server), user.ID)
	if err := rt.Connect(ctx); err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Join(c.LiveID); err != nil {
		return err
	}

	fmt.Printf("Watching live %d as %s\n", c.LiveID, user.Username)

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-rt.Events():
			if !ok {
				return fmt.Errorf("connection lost")
			}
			printEvent(env)
		}
	}
}

func printEvent(env realtime.Envelope) {
	switch env.Type {
	case liveroom.EventViewerCount:
		var count liveroom.ViewerCount
		if json.Unmarshal(env.Data, &count) == nil {
			fmt.Printf("viewers: %d\n", count.Count)
		}
	case liveroom.EventChat:
		var msg liveroom.ChatMessage
		if json.Unmarshal(env.Data, &msg) == nil {
			fmt.Printf("[%s] %s\n", msg.Name, msg.Text)
		}
	case liveroom.EventNewReading:
		fmt.Printf("reading: %s\n", env.Data)
	case liveroom.EventNewPrayer:
		fmt.Printf("prayer request: %s\n", env.Data)
	case liveroom.EventOfferingStatus:
		var status liveroom.OfferingStatus
		if json.Unmarshal(env.Data, &status) == nil {
			fmt.Printf("offering active: %t\n", status.Active)
		}
	case presence.EventStatusChange:
		var change presence.StatusChange
		if json.Unmarshal(env.Data, &change) == nil {
			fmt.Printf("user %d online: %t\n", change.UserID, change.Online)
		}
	default:
		fmt.Printf("%s: %s\n", env.Type, env.Data)
	}
}
