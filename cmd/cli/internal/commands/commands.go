package commands

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/tiagosilva/ecclesia/internal/client"
)

type Globals struct {
	Server  string
	Debug   bool
	Version string
}

func newSessionStore(globals *Globals) (*client.SessionStore, error) {
	level := zerolog.WarnLevel
	if globals.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	return client.NewSessionStore(globals.Server)
}

// websocketURL derives the ws:// endpoint from the server base URL.
func websocketURL(server string) string {
	url := server
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return strings.TrimSuffix(url, "/") + "/ws"
}
