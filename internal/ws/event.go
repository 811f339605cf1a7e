package ws

import (
	"time"

	"aula/internal/classroom"
)

// Event names pushed to viewers.
const (
	EventClassroomUpdated     = "classroom_updated"
	EventClassroomImageUpdate = "classroom_image_update"
)

// ClassroomSnapshot is the wire form of a classroom inside a broadcast.
// Timestamps are rendered as RFC 3339 strings.
type ClassroomSnapshot struct {
	ID          string  `json:"id"`
	ClassID     string  `json:"classId"`
	Name        string  `json:"name"`
	DeviceID    string  `json:"deviceId"`
	Capacity    int     `json:"capacity"`
	Occupancy   int     `json:"occupancy"`
	LatestImage *string `json:"latestImage"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

// Event is a broadcast envelope pushed to every live connection.
type Event struct {
	Event     string            `json:"event"`
	Classroom ClassroomSnapshot `json:"classroom"`
}

func snapshot(c *classroom.Classroom) ClassroomSnapshot {
	return ClassroomSnapshot{
		ID:          c.ID,
		ClassID:     c.ClassID,
		Name:        c.Name,
		DeviceID:    c.DeviceID,
		Capacity:    c.Capacity,
		Occupancy:   c.Occupancy,
		LatestImage: c.LatestImage,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   c.UpdatedAt.Format(time.RFC3339),
	}
}

// NewClassroomUpdated builds a classroom_updated event.
func NewClassroomUpdated(c *classroom.Classroom) *Event {
	return &Event{Event: EventClassroomUpdated, Classroom: snapshot(c)}
}

// NewClassroomImageUpdate builds a classroom_image_update event.
func NewClassroomImageUpdate(c *classroom.Classroom) *Event {
	return &Event{Event: EventClassroomImageUpdate, Classroom: snapshot(c)}
}
