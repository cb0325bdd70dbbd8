package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/tiagosilva/ecclesia/internal/liveroom"
	"github.com/tiagosilva/ecclesia/internal/models"
	"github.com/tiagosilva/ecclesia/internal/presence"
	"github.com/tiagosilva/ecclesia/internal/store"
	"github.com/tiagosilva/ecclesia/internal/store/memory"
)

func TestLiveIDUnmarshal(t *testing.T) {
	var payload JoinLive

	require.NoError(t, json.Unmarshal([]byte(`{"liveId": 7}`), &payload))
	require.Equal(t, int64(7), payload.LiveID.Int64())

	require.NoError(t, json.Unmarshal([]byte(`{"liveId": "42"}`), &payload))
	require.Equal(t, int64(42), payload.LiveID.Int64())

	require.Error(t, json.Unmarshal([]byte(`{"liveId": "seven"}`), &payload))
}

type testEnv struct {
	server *httptest.Server
	stores store.Stores
	live   *models.Live
}

func setupHandler(t *testing.T) *testEnv {
	t.Helper()

	stores := memory.NewStores()
	registry := presence.NewRegistry(stores.Principals)
	rooms := liveroom.NewCoordinator(stores.Lives, stores.ViewerSessions, stores.Readings, stores.PrayerRequests)

	live := &models.Live{Title: "Sunday service", VideoID: "yt123"}
	require.NoError(t, stores.Lives.Create(context.Background(), live))

	server := httptest.NewServer(NewHandler(registry, rooms))
	t.Cleanup(server.Close)

	return &testEnv{server: server, stores: stores, live: live}
}

func dial(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(env.server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func sendEvent(t *testing.T, ws *websocket.Conn, event string, payload any) {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(Envelope{Type: event, Data: data})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, raw))
}

func readEvent(t *testing.T, ws *websocket.Conn) Envelope {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := ws.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func TestHandlerPresenceFlow(t *testing.T) {
	env := setupHandler(t)

	alice := dial(t, env)
	sendEvent(t, alice, EventUserConnected, UserConnected{UserID: 1})

	got := readEvent(t, alice)
	require.Equal(t, presence.EventStatusChange, got.Type)

	var change presence.StatusChange
	require.NoError(t, json.Unmarshal(got.Data, &change))
	require.Equal(t, presence.StatusChange{UserID: 1, Online: true}, change)

	// A second principal's announcement reaches alice, and the newcomer
	// gets a catch-up event for alice's principal.
	bob := dial(t, env)
	sendEvent(t, bob, EventUserConnected, UserConnected{UserID: 2})

	got = readEvent(t, alice)
	require.NoError(t, json.Unmarshal(got.Data, &change))
	require.Equal(t, presence.StatusChange{UserID: 2, Online: true}, change)

	seen := map[int64]bool{}
	for i := 0; i < 2; i++ {
		got = readEvent(t, bob)
		require.Equal(t, presence.EventStatusChange, got.Type)
		require.NoError(t, json.Unmarshal(got.Data, &change))
		require.True(t, change.Online)
		seen[change.UserID] = true
	}
	require.True(t, seen[1])
	require.True(t, seen[2])

	// Closing bob's socket broadcasts offline to alice.
	require.NoError(t, bob.Close())
	got = readEvent(t, alice)
	require.NoError(t, json.Unmarshal(got.Data, &change))
	require.Equal(t, presence.StatusChange{UserID: 2, Online: false}, change)
}

func TestHandlerDuplicateConnectionEvicted(t *testing.T) {
	env := setupHandler(t)

	first := dial(t, env)
	sendEvent(t, first, EventUserConnected, UserConnected{UserID: 1})
	readEvent(t, first)

	second := dial(t, env)
	sendEvent(t, second, EventUserConnected, UserConnected{UserID: 1})

	// The first socket is closed by the eviction.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, _, err := first.ReadMessage()
		if err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure) ||
				websocket.IsUnexpectedCloseError(err), "unexpected error: %v", err)
			break
		}
	}

	got := readEvent(t, second)
	require.Equal(t, presence.EventStatusChange, got.Type)
}

func TestHandlerLiveRoomFlow(t *testing.T) {
	ctx := context.Background()
	env := setupHandler(t)

	alice := dial(t, env)
	sendEvent(t, alice, EventUserConnected, UserConnected{UserID: 1})
	readEvent(t, alice)

	sendEvent(t, alice, EventJoinLive, JoinLive{LiveID: LiveID(env.live.ID)})
	got := readEvent(t, alice)
	require.Equal(t, liveroom.EventViewerCount, got.Type)

	var count liveroom.ViewerCount
	require.NoError(t, json.Unmarshal(got.Data, &count))
	require.Equal(t, liveroom.ViewerCount{LiveID: env.live.ID, Count: 1}, count)

	sendEvent(t, alice, EventToggleOffering, ToggleOffering{LiveID: LiveID(env.live.ID), Active: true})
	got = readEvent(t, alice)
	require.Equal(t, liveroom.EventOfferingStatus, got.Type)

	sendEvent(t, alice, EventAddReading, AddReading{LiveID: LiveID(env.live.ID), Text: "John 3:16", MinuteMarker: "12:30"})
	got = readEvent(t, alice)
	require.Equal(t, liveroom.EventNewReading, got.Type)

	var reading models.Reading
	require.NoError(t, json.Unmarshal(got.Data, &reading))
	require.Equal(t, "John 3:16", reading.Text)

	sendEvent(t, alice, EventPrayerRequest, PrayerRequest{LiveID: LiveID(env.live.ID), For: "Maria", Reason: "health"})
	got = readEvent(t, alice)
	require.Equal(t, liveroom.EventNewPrayer, got.Type)

	sendEvent(t, alice, EventChat, Chat{LiveID: LiveID(env.live.ID), Name: "Alice", Text: "amen"})
	got = readEvent(t, alice)
	require.Equal(t, liveroom.EventChat, got.Type)

	var chat liveroom.ChatMessage
	require.NoError(t, json.Unmarshal(got.Data, &chat))
	require.Equal(t, int64(1), chat.UserID)
	require.Equal(t, "amen", chat.Text)

	// Readings and prayers were persisted, chat was not.
	readings, err := env.stores.Readings.ListByLive(ctx, env.live.ID)
	require.NoError(t, err)
	require.Len(t, readings, 1)

	requests, err := env.stores.PrayerRequests.ListByLive(ctx, env.live.ID)
	require.NoError(t, err)
	require.Len(t, requests, 1)
}

func TestHandlerJoinUnknownLive(t *testing.T) {
	env := setupHandler(t)

	alice := dial(t, env)
	sendEvent(t, alice, EventJoinLive, JoinLive{LiveID: 999})

	got := readEvent(t, alice)
	require.Equal(t, EventError, got.Type)

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(got.Data, &payload))
	require.NotEmpty(t, payload.Error)
}

func TestHandlerMalformedPayloadKeepsConnection(t *testing.T) {
	env := setupHandler(t)

	alice := dial(t, env)
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"join-live","data":{"liveId":"x"}}`)))

	got := readEvent(t, alice)
	require.Equal(t, EventError, got.Type)

	// The connection is still usable.
	sendEvent(t, alice, EventUserConnected, UserConnected{UserID: 1})
	got = readEvent(t, alice)
	require.Equal(t, presence.EventStatusChange, got.Type)
}
