package server

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tiagosilva/ecclesia/internal/bible"
	"github.com/tiagosilva/ecclesia/internal/liveroom"
	"github.com/tiagosilva/ecclesia/internal/models"
	"github.com/tiagosilva/ecclesia/internal/store"
	"github.com/tiagosilva/ecclesia/internal/youtube"
)

// LiveHandlers exposes the current transmission state over REST for
// clients that are not holding a WebSocket open.
type LiveHandlers struct {
	lives     store.LiveStore
	rooms     *liveroom.Coordinator
	youtube   *youtube.Client
	bible     *bible.Client
	channelID string
}

// NewLiveHandlers creates the live lookup handlers. youtubeClient and
// bibleClient may be nil when the upstream integrations are not
// configured.
func NewLiveHandlers(lives store.LiveStore, rooms *liveroom.Coordinator, youtubeClient *youtube.Client, bibleClient *bible.Client, channelID string) *LiveHandlers {
	return &LiveHandlers{
		lives:     lives,
		rooms:     rooms,
		youtube:   youtubeClient,
		bible:     bibleClient,
		channelID: channelID,
	}
}

type currentLiveResponse struct {
	Live      *models.Live       `json:"live"`
	Viewers   int                `json:"viewers"`
	Broadcast *youtube.Broadcast `json:"broadcast,omitempty"`
}

// Current returns the live in progress with its viewer count, plus the
// channel's YouTube broadcast when the integration is configured.
func (h *LiveHandlers) Current(w http.ResponseWriter, r *http.Request) {
	resp := currentLiveResponse{}

	live, err := h.lives.Current(r.Context())
	switch {
	case err == nil:
		resp.Live = live
		resp.Viewers = h.rooms.ViewerCount(live.ID)
	case errors.Is(err, store.ErrLiveNotFound):
	default:
		log.Error().Err(err).Msg("Failed to load current live")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if h.youtube != nil && h.channelID != "" {
		broadcast, found, err := h.youtube.CurrentLive(r.Context(), h.channelID)
		if err != nil {
			log.Warn().Err(err).Msg("YouTube lookup failed")
		} else if found {
			resp.Broadcast = broadcast
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Passage proxies a scripture lookup for reading announcements.
func (h *LiveHandlers) Passage(w http.ResponseWriter, r *http.Request) {
	if h.bible == nil {
		writeError(w, http.StatusServiceUnavailable, "passage lookup is not configured")
		return
	}

	ref := r.URL.Query().Get("ref")
	if ref == "" {
		writeError(w, http.StatusBadRequest, "missing ref parameter")
		return
	}

	passage, err := h.bible.Passage(r.Context(), ref)
	if err != nil {
		log.Debug().Err(err).Str("ref", ref).Msg("Passage lookup failed")
		writeError(w, http.StatusBadGateway, "passage lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, passage)
}
