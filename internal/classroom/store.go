package classroom

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// isUniqueViolation reports whether err is the driver's constraint error,
// which is how a create or rename that loses a race against a concurrent
// writer surfaces despite the existence checks.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// Store handles SQLite persistence for classrooms.
type Store struct {
	db *sql.DB
}

// NewStore opens the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations.
func (s *Store) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS classrooms (
			id TEXT PRIMARY KEY,
			class_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			device_id TEXT NOT NULL,
			capacity INTEGER NOT NULL,
			occupancy INTEGER NOT NULL DEFAULT 0,
			latest_image TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_classrooms_class_id ON classrooms(class_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Create inserts a new classroom. The existence check gives the common
// duplicate a deterministic Conflict; two concurrent creates with the same
// classId can race past it, in which case the UNIQUE column rejects the
// loser and the driver error maps to the same Conflict.
func (s *Store) Create(ctx context.Context, n NewClassroom) (*Classroom, error) {
	existing, err := s.GetByClassID(ctx, n.ClassID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	if existing != nil {
		return nil, ErrConflict
	}

	now := time.Now().UTC()
	c := &Classroom{
		ID:        uuid.NewString(),
		ClassID:   n.ClassID,
		Name:      n.Name,
		DeviceID:  n.DeviceID,
		Capacity:  n.Capacity,
		Occupancy: n.Occupancy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `INSERT INTO classrooms (id, class_id, name, device_id, capacity, occupancy, latest_image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query, c.ID, c.ClassID, c.Name, c.DeviceID, c.Capacity, c.Occupancy, c.LatestImage, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("%w: failed to create classroom: %v", ErrStoreUnavailable, err)
	}
	return c, nil
}

// GetByClassID retrieves a classroom by its class code.
func (s *Store) GetByClassID(ctx context.Context, classID string) (*Classroom, error) {
	query := `SELECT id, class_id, name, device_id, capacity, occupancy, latest_image, created_at, updated_at
		FROM classrooms WHERE class_id = ?`

	var c Classroom
	err := s.db.QueryRowContext(ctx, query, classID).Scan(
		&c.ID, &c.ClassID, &c.Name, &c.DeviceID, &c.Capacity, &c.Occupancy, &c.LatestImage, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get classroom: %v", ErrStoreUnavailable, err)
	}
	return &c, nil
}

// List returns all classrooms ordered by creation time.
func (s *Store) List(ctx context.Context) ([]*Classroom, error) {
	query := `SELECT id, class_id, name, device_id, capacity, occupancy, latest_image, created_at, updated_at
		FROM classrooms ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list classrooms: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	classrooms := make([]*Classroom, 0)
	for rows.Next() {
		var c Classroom
		if err := rows.Scan(&c.ID, &c.ClassID, &c.Name, &c.DeviceID, &c.Capacity, &c.Occupancy, &c.LatestImage, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan classroom: %v", ErrStoreUnavailable, err)
		}
		classrooms = append(classrooms, &c)
	}
	return classrooms, nil
}

// Update applies a partial update to a classroom and returns the new record.
// A classId rename is checked for collisions first, with the same racing
// fallback to the UNIQUE column as Create.
func (s *Store) Update(ctx context.Context, classID string, u Update) (*Classroom, error) {
	c, err := s.GetByClassID(ctx, classID)
	if err != nil {
		return nil, err
	}

	if u.ClassID != nil && *u.ClassID != classID {
		other, err := s.GetByClassID(ctx, *u.ClassID)
		if err != nil && err != ErrNotFound {
			return nil, err
		}
		if other != nil {
			return nil, ErrConflict
		}
	}

	u.Apply(c)
	c.UpdatedAt = time.Now().UTC()

	query := `UPDATE classrooms SET class_id = ?, name = ?, device_id = ?, capacity = ?, occupancy = ?, latest_image = ?, updated_at = ?
		WHERE id = ?`
	_, err = s.db.ExecContext(ctx, query, c.ClassID, c.Name, c.DeviceID, c.Capacity, c.Occupancy, c.LatestImage, c.UpdatedAt, c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("%w: failed to update classroom: %v", ErrStoreUnavailable, err)
	}
	return c, nil
}

// SetOccupancyAndImage persists the detection-path result for a classroom.
func (s *Store) SetOccupancyAndImage(ctx context.Context, classID string, occupancy int, imageURL string) (*Classroom, error) {
	c, err := s.GetByClassID(ctx, classID)
	if err != nil {
		return nil, err
	}

	c.Occupancy = occupancy
	c.LatestImage = &imageURL
	c.UpdatedAt = time.Now().UTC()

	query := `UPDATE classrooms SET occupancy = ?, latest_image = ?, updated_at = ? WHERE id = ?`
	_, err = s.db.ExecContext(ctx, query, c.Occupancy, c.LatestImage, c.UpdatedAt, c.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to update occupancy: %v", ErrStoreUnavailable, err)
	}
	return c, nil
}

// Delete removes a classroom by class code.
func (s *Store) Delete(ctx context.Context, classID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM classrooms WHERE class_id = ?", classID)
	if err != nil {
		return fmt.Errorf("%w: failed to delete classroom: %v", ErrStoreUnavailable, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to delete classroom: %v", ErrStoreUnavailable, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
