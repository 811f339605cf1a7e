// Package pipeline sequences one occupancy update: frame in, inference,
// annotation, image store, persistence, broadcast, conditional alert.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"aula/internal/alert"
	"aula/internal/annotate"
	"aula/internal/blob"
	"aula/internal/classroom"
	"aula/internal/detection"
	"aula/internal/ws"
)

// Store is the classroom persistence boundary the pipeline consumes.
type Store interface {
	GetByClassID(ctx context.Context, classID string) (*classroom.Classroom, error)
	Update(ctx context.Context, classID string, u classroom.Update) (*classroom.Classroom, error)
	SetOccupancyAndImage(ctx context.Context, classID string, occupancy int, imageURL string) (*classroom.Classroom, error)
}

// Broadcaster fans one event out to every live viewer.
type Broadcaster interface {
	Broadcast(event *ws.Event)
}

// Orchestrator runs the occupancy-update state machine. It is parameterized
// over the detection backend, selected once at startup, so the embedded and
// remote deployments share every other step. No step retries; two concurrent
// updates to the same room interleave with last-write-wins semantics at the
// store.
type Orchestrator struct {
	store    Store
	blobs    blob.Store
	detector detection.Backend
	hub      Broadcaster
	alerts   alert.Dispatcher
	loc      *time.Location
}

// New creates an orchestrator.
func New(store Store, blobs blob.Store, detector detection.Backend, hub Broadcaster, alerts alert.Dispatcher, loc *time.Location) *Orchestrator {
	if loc == nil {
		loc = time.UTC
	}
	return &Orchestrator{
		store:    store,
		blobs:    blobs,
		detector: detector,
		hub:      hub,
		alerts:   alerts,
		loc:      loc,
	}
}

// ProcessFrame handles one uploaded camera frame for a room. Strictly
// linear: validate device binding, detect, clamp to capacity, annotate,
// store the image, persist, broadcast, and conditionally schedule an alert.
// Any failure before persistence leaves the room, its image reference and
// the viewer connections untouched.
func (o *Orchestrator) ProcessFrame(ctx context.Context, classID, deviceID string, frame []byte) (*classroom.Classroom, error) {
	room, err := o.store.GetByClassID(ctx, classID)
	if err != nil {
		return nil, err
	}
	if room.DeviceID != deviceID {
		return nil, fmt.Errorf("%w: deviceId mismatch", classroom.ErrValidation)
	}

	count, err := o.detector.Detect(ctx, frame, deviceID)
	if err != nil {
		if errors.Is(err, detection.ErrInvalidFrame) {
			return nil, fmt.Errorf("%w: invalid image", classroom.ErrValidation)
		}
		return nil, err
	}

	// Detection-path occupancy never exceeds the configured capacity.
	occupancy := count
	if occupancy > room.Capacity {
		occupancy = room.Capacity
	}

	annotated, err := annotate.Annotate(frame, occupancy, room.Capacity, time.Now().In(o.loc))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid image", classroom.ErrValidation)
	}

	newURL, err := o.blobs.Put(ctx, annotated)
	if err != nil {
		return nil, fmt.Errorf("storing annotated image: %w", err)
	}

	if room.LatestImage != nil {
		if err := o.blobs.Delete(ctx, *room.LatestImage); err != nil {
			log.Printf("[Pipeline] best-effort delete of old image failed: %v", err)
		}
	}

	updated, err := o.store.SetOccupancyAndImage(ctx, classID, occupancy, newURL)
	if err != nil {
		return nil, err
	}

	o.finish(updated, ws.NewClassroomImageUpdate(updated))
	return updated, nil
}

// UpdateClassroom handles a direct field update. Occupancy is not clamped
// here: setting it above capacity is the supported way to arm an alert
// without a camera frame.
func (o *Orchestrator) UpdateClassroom(ctx context.Context, classID string, u classroom.Update) (*classroom.Classroom, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}

	updated, err := o.store.Update(ctx, classID, u)
	if err != nil {
		return nil, err
	}

	o.finish(updated, ws.NewClassroomUpdated(updated))
	return updated, nil
}

// finish is the shared tail of both entry points: broadcast the refreshed
// snapshot, then enqueue exactly one alert task when the persisted occupancy
// exceeds capacity. The alert is detached; its latency and failures never
// reach the request.
func (o *Orchestrator) finish(room *classroom.Classroom, event *ws.Event) {
	o.hub.Broadcast(event)

	if room.Occupancy > room.Capacity {
		o.alerts.Enqueue(alert.Task{
			ClassID:   room.ClassID,
			ClassName: room.Name,
			Occupancy: room.Occupancy,
			Capacity:  room.Capacity,
		})
	}
}
