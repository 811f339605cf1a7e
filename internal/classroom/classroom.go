package classroom

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates the requested classroom does not exist.
	ErrNotFound = errors.New("classroom not found")
	// ErrConflict indicates a classId collision.
	ErrConflict = errors.New("classId already exists")
	// ErrValidation indicates a rejected request payload.
	ErrValidation = errors.New("validation failed")
	// ErrStoreUnavailable wraps storage-level failures.
	ErrStoreUnavailable = errors.New("classroom store unavailable")
)

// Classroom is a monitored room identified by a unique class code.
type Classroom struct {
	ID          string    `json:"id"`
	ClassID     string    `json:"classId"`
	Name        string    `json:"name"`
	DeviceID    string    `json:"deviceId"`
	Capacity    int       `json:"capacity"`
	Occupancy   int       `json:"occupancy"`
	LatestImage *string   `json:"latestImage"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewClassroom describes a classroom to be created.
type NewClassroom struct {
	ClassID   string `json:"classId"`
	Name      string `json:"name"`
	DeviceID  string `json:"deviceId"`
	Capacity  int    `json:"capacity"`
	Occupancy int    `json:"occupancy"`
}

// Validate checks a creation payload.
func (n NewClassroom) Validate() error {
	if n.ClassID == "" {
		return fmt.Errorf("%w: classId is required", ErrValidation)
	}
	if n.DeviceID == "" {
		return fmt.Errorf("%w: deviceId is required", ErrValidation)
	}
	if n.Capacity < 0 {
		return fmt.Errorf("%w: capacity must be >= 0", ErrValidation)
	}
	if n.Occupancy < 0 {
		return fmt.Errorf("%w: occupancy must be >= 0", ErrValidation)
	}
	return nil
}

// Update is a partial update to a classroom. Nil fields are left untouched.
// Occupancy is intentionally not bounded by capacity here: a direct update
// above capacity is what arms the capacity alert.
type Update struct {
	ClassID     *string `json:"classId"`
	Name        *string `json:"name"`
	DeviceID    *string `json:"deviceId"`
	Capacity    *int    `json:"capacity"`
	Occupancy   *int    `json:"occupancy"`
	LatestImage *string `json:"latestImage"`
}

// Validate checks an update payload.
func (u Update) Validate() error {
	if u.Capacity != nil && *u.Capacity < 0 {
		return fmt.Errorf("%w: capacity must be >= 0", ErrValidation)
	}
	if u.Occupancy != nil && *u.Occupancy < 0 {
		return fmt.Errorf("%w: occupancy must be >= 0", ErrValidation)
	}
	return nil
}

// Apply merges the update into a classroom record.
func (u Update) Apply(c *Classroom) {
	if u.ClassID != nil {
		c.ClassID = *u.ClassID
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.DeviceID != nil {
		c.DeviceID = *u.DeviceID
	}
	if u.Capacity != nil {
		c.Capacity = *u.Capacity
	}
	if u.Occupancy != nil {
		c.Occupancy = *u.Occupancy
	}
	if u.LatestImage != nil {
		c.LatestImage = u.LatestImage
	}
}
