package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tiagosilva/ecclesia/internal/models"
	"github.com/tiagosilva/ecclesia/internal/store"
)

func TestPrincipalStore(t *testing.T) {
	ctx := context.Background()
	s := NewPrincipalStore()

	t.Run("create assigns id", func(t *testing.T) {
		p := &models.Principal{Username: "admin", Name: "Admin", Email: "admin@example.com"}
		require.NoError(t, s.Create(ctx, p))
		require.Equal(t, int64(1), p.ID)
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		err := s.Create(ctx, &models.Principal{Username: "admin"})
		require.ErrorIs(t, err, store.ErrPrincipalAlreadyExists)
	})

	t.Run("get by username", func(t *testing.T) {
		p, err := s.GetByUsername(ctx, "admin")
		require.NoError(t, err)
		require.Equal(t, "Admin", p.Name)
	})

	t.Run("set online", func(t *testing.T) {
		require.NoError(t, s.SetOnline(ctx, 1, true))
		p, err := s.Get(ctx, 1)
		require.NoError(t, err)
		require.True(t, p.Online)

		require.ErrorIs(t, s.SetOnline(ctx, 999, true), store.ErrPrincipalNotFound)
	})

	t.Run("clone on read", func(t *testing.T) {
		p, err := s.Get(ctx, 1)
		require.NoError(t, err)
		p.Name = "mutated"

		fresh, err := s.Get(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, "Admin", fresh.Name)
	})
}

func TestLiveStoreCurrent(t *testing.T) {
	ctx := context.Background()
	s := NewLiveStore()

	_, err := s.Current(ctx)
	require.ErrorIs(t, err, store.ErrLiveNotFound)

	older := &models.Live{Title: "Sunday service", StartedAt: time.Now().Add(-2 * time.Hour)}
	newer := &models.Live{Title: "Evening prayer", StartedAt: time.Now().Add(-10 * time.Minute)}
	require.NoError(t, s.Create(ctx, older))
	require.NoError(t, s.Create(ctx, newer))

	current, err := s.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, "Evening prayer", current.Title)

	now := time.Now()
	ended := &models.Live{Title: "Ended", StartedAt: now, EndedAt: &now}
	require.NoError(t, s.Create(ctx, ended))

	current, err = s.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, "Evening prayer", current.Title)
}

func TestLiveStoreOffering(t *testing.T) {
	ctx := context.Background()
	s := NewLiveStore()

	live := &models.Live{Title: "Sunday service"}
	require.NoError(t, s.Create(ctx, live))

	require.NoError(t, s.SetOfferingActive(ctx, live.ID, true))
	got, err := s.Get(ctx, live.ID)
	require.NoError(t, err)
	require.True(t, got.OfferingActive)

	require.ErrorIs(t, s.SetOfferingActive(ctx, 999, true), store.ErrLiveNotFound)
}

func TestViewerSessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewViewerSessionStore()

	first := &models.ViewerSession{SessionID: uuid.New(), LiveID: 1}
	second := &models.ViewerSession{SessionID: uuid.New(), LiveID: 1}
	other := &models.ViewerSession{SessionID: uuid.New(), LiveID: 2}
	require.NoError(t, s.Create(ctx, first))
	require.NoError(t, s.Create(ctx, second))
	require.NoError(t, s.Create(ctx, other))

	count, err := s.CountOpen(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	t.Run("close is idempotent", func(t *testing.T) {
		require.NoError(t, s.Close(ctx, first.SessionID))
		require.NoError(t, s.Close(ctx, first.SessionID))

		count, err := s.CountOpen(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})

	t.Run("close unknown session", func(t *testing.T) {
		err := s.Close(ctx, uuid.New())
		require.ErrorIs(t, err, store.ErrViewerSessionNotFound)
	})
}

func TestRoomEntryStores(t *testing.T) {
	ctx := context.Background()

	t.Run("readings keep insertion order", func(t *testing.T) {
		s := NewReadingStore()
		require.NoError(t, s.Create(ctx, &models.Reading{LiveID: 1, Text: "John 3:16", MinuteMarker: "12:30"}))
		require.NoError(t, s.Create(ctx, &models.Reading{LiveID: 1, Text: "Psalm 23", MinuteMarker: "25:00"}))
		require.NoError(t, s.Create(ctx, &models.Reading{LiveID: 2, Text: "Luke 15", MinuteMarker: "05:00"}))

		readings, err := s.ListByLive(ctx, 1)
		require.NoError(t, err)
		require.Len(t, readings, 2)
		require.Equal(t, "John 3:16", readings[0].Text)
		require.Equal(t, "Psalm 23", readings[1].Text)
	})

	t.Run("prayer requests", func(t *testing.T) {
		s := NewPrayerRequestStore()
		require.NoError(t, s.Create(ctx, &models.PrayerRequest{LiveID: 1, For: "Maria", Reason: "health"}))

		requests, err := s.ListByLive(ctx, 1)
		require.NoError(t, err)
		require.Len(t, requests, 1)
		require.NotZero(t, requests[0].ID)
		require.Equal(t, "Maria", requests[0].For)
	})
}
