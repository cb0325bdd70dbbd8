package models

import (
	"time"

	"github.com/google/uuid"
)

// Live is a broadcast that viewers can join. VideoID references the
// external video platform; OfferingActive is room-scoped ephemeral state
// mirrored here so late joiners can load it.
type Live struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	VideoID        string     `json:"videoId"`
	OfferingActive bool       `json:"ofertaAtiva"`
	StartedAt      time.Time  `json:"startedAt"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
}

// ViewerSession records one transport's membership interval in a live
// room. Sessions are closed by setting EndedAt, never deleted, so viewing
// history survives. A session is open while EndedAt is nil.
type ViewerSession struct {
	SessionID uuid.UUID  `json:"sessionId"`
	LiveID    int64      `json:"liveId"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// IsOpen returns true while the session has not ended.
func (s *ViewerSession) IsOpen() bool {
	return s.EndedAt == nil
}

// Reading is a Bible-reading announcement made during a live, anchored to
// a minute marker in the stream.
type Reading struct {
	ID           int64     `json:"id"`
	LiveID       int64     `json:"liveId"`
	Text         string    `json:"texto"`
	MinuteMarker string    `json:"minuto"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PrayerRequest is a viewer-submitted prayer request for a live.
type PrayerRequest struct {
	ID        int64     `json:"id"`
	LiveID    int64     `json:"liveId"`
	For       string    `json:"para"`
	Reason    string    `json:"motivo"`
	CreatedAt time.Time `json:"createdAt"`
}
