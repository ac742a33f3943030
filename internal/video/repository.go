// Package video manages video records and the upload workflow that links
// them to objects in remote storage.
package video

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Video is a stored video record: a display name plus the public URL of
// the binary in the object store.
type Video struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ErrNotFound is returned when a video record does not exist.
var ErrNotFound = errors.New("video not found")

// Repository handles all video database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Insert creates a new video record and returns it with its generated id.
func (r *Repository) Insert(ctx context.Context, name, url string) (*Video, error) {
	v := &Video{}
	err := r.db.QueryRow(ctx,
		`INSERT INTO videos (name, url)
		 VALUES ($1, $2)
		 RETURNING id, name, url, created_at, updated_at`,
		name, url,
	).Scan(&v.ID, &v.Name, &v.URL, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert video: %w", err)
	}
	return v, nil
}

// List returns all video records in insertion order.
func (r *Repository) List(ctx context.Context) ([]Video, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, url, created_at, updated_at
		 FROM videos ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []Video
	for rows.Next() {
		var v Video
		if err := rows.Scan(&v.ID, &v.Name, &v.URL, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan video row: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate video rows: %w", err)
	}
	return videos, nil
}

// GetByID fetches a video record by its UUID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Video, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	v := &Video{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, url, created_at, updated_at
		 FROM videos WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.Name, &v.URL, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video by id: %w", err)
	}
	return v, nil
}

// Update overwrites name and url of an existing record and returns the
// updated row.
func (r *Repository) Update(ctx context.Context, id, name, url string) (*Video, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	v := &Video{}
	err := r.db.QueryRow(ctx,
		`UPDATE videos SET name = $2, url = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING id, name, url, created_at, updated_at`,
		id, name, url,
	).Scan(&v.ID, &v.Name, &v.URL, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update video: %w", err)
	}
	return v, nil
}

// Delete removes a record and returns the deleted row, so callers can
// derive the remote object to clean up.
func (r *Repository) Delete(ctx context.Context, id string) (*Video, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	v := &Video{}
	err := r.db.QueryRow(ctx,
		`DELETE FROM videos WHERE id = $1
		 RETURNING id, name, url, created_at, updated_at`,
		id,
	).Scan(&v.ID, &v.Name, &v.URL, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete video: %w", err)
	}
	return v, nil
}

// isUUID reports whether id parses as a UUID. Postgres would reject a
// malformed id with a cast error; callers expect not-found instead.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
