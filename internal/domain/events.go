package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventTypeReleaseGrabbed is the event type published after a submission.
const EventTypeReleaseGrabbed = "release.grabbed"

// GrabbedEvent describes a release successfully handed to a download client.
type GrabbedEvent struct {
	ID          uuid.UUID `json:"id"`
	EventType   string    `json:"event_type"`
	Release     Release   `json:"release"`
	BookIDs     []int64   `json:"book_ids,omitempty"`
	ClientID    int64     `json:"client_id"`
	ClientName  string    `json:"client_name"`
	RemoteJobID string    `json:"remote_job_id,omitempty"`
	GrabbedAt   time.Time `json:"grabbed_at"`
}

// NewGrabbedEvent builds a GrabbedEvent for the given candidate and client.
func NewGrabbedEvent(c Candidate, clientID int64, clientName, remoteJobID string) *GrabbedEvent {
	ids := make([]int64, 0, len(c.Books))
	for _, b := range c.Books {
		ids = append(ids, b.ID)
	}
	return &GrabbedEvent{
		ID:          uuid.New(),
		EventType:   EventTypeReleaseGrabbed,
		Release:     c.Release,
		BookIDs:     ids,
		ClientID:    clientID,
		ClientName:  clientName,
		RemoteJobID: remoteJobID,
		GrabbedAt:   time.Now().UTC(),
	}
}
