// Package albums provides a PostgreSQL-backed store for named albums
// and their video references.
package albums

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mediacellar/mediacellar/internal/logging"
	"github.com/mediacellar/mediacellar/internal/metrics"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

var (
	// ErrNotFound means the requested album does not exist.
	ErrNotFound = errors.New("album not found")
	// ErrDuplicateName means an album with that name already exists.
	ErrDuplicateName = errors.New("album name already exists")
)

// Album is a named collection of video paths.
type Album struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	VideoCount int       `json:"video_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Video is a single video reference inside an album. Paths are stored
// relative to the media root.
type Video struct {
	Path    string    `json:"path"`
	AddedAt time.Time `json:"added_at"`
}

// Store is a PostgreSQL album store.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL and returns a new Store.
func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for use by other packages.
func (s *Store) DB() *sql.DB {
	return s.db
}

// UpdateConnectionMetrics updates the database connection metrics.
func (s *Store) UpdateConnectionMetrics() {
	stats := s.db.Stats()
	metrics.SetDBConnectionsOpen(stats.OpenConnections)
}

// Migrate runs the embedded SQL migration files in lexical order.
func (s *Store) Migrate() error {
	files, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		logging.Info("running migration", zap.String("file", f))
		content, err := migrationFiles.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}

	return nil
}

// Create inserts a new empty album.
func (s *Store) Create(ctx context.Context, name string) (*Album, error) {
	a := &Album{Name: name}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO albums (name) VALUES ($1) RETURNING id, created_at`,
		name).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("insert album: %w", err)
	}
	return a, nil
}

// List returns all albums with their video counts, newest first.
func (s *Store) List(ctx context.Context) ([]Album, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.name, COUNT(v.path), a.created_at
		FROM albums a
		LEFT JOIN album_videos v ON v.album_id = a.id
		GROUP BY a.id
		ORDER BY a.created_at DESC, a.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query albums: %w", err)
	}
	defer rows.Close()

	albums := []Album{}
	for rows.Next() {
		var a Album
		if err := rows.Scan(&a.ID, &a.Name, &a.VideoCount, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan album: %w", err)
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

// Get returns a single album and its videos.
func (s *Store) Get(ctx context.Context, id int) (*Album, []Video, error) {
	a := &Album{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, created_at FROM albums WHERE id = $1`,
		id).Scan(&a.Name, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("query album: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, added_at FROM album_videos WHERE album_id = $1 ORDER BY added_at, path`,
		id)
	if err != nil {
		return nil, nil, fmt.Errorf("query album videos: %w", err)
	}
	defer rows.Close()

	videos := []Video{}
	for rows.Next() {
		var v Video
		if err := rows.Scan(&v.Path, &v.AddedAt); err != nil {
			return nil, nil, fmt.Errorf("scan album video: %w", err)
		}
		videos = append(videos, v)
	}
	a.VideoCount = len(videos)
	return a, videos, rows.Err()
}

// Delete removes an album and its video references.
func (s *Store) Delete(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM albums WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete album: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddVideo adds a video path to an album. Adding the same path twice
// is a no-op.
func (s *Store) AddVideo(ctx context.Context, albumID int, path string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM albums WHERE id = $1)`, albumID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check album: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO album_videos (album_id, path) VALUES ($1, $2)
		 ON CONFLICT (album_id, path) DO NOTHING`,
		albumID, path)
	if err != nil {
		return fmt.Errorf("insert album video: %w", err)
	}
	return nil
}

// RemoveVideo removes a video path from an album.
func (s *Store) RemoveVideo(ctx context.Context, albumID int, path string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM album_videos WHERE album_id = $1 AND path = $2`,
		albumID, path)
	if err != nil {
		return fmt.Errorf("delete album video: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RenamePath rewrites stored video references after a filesystem rename.
// Exact matches are rewritten to the new path; references under a renamed
// directory get their prefix rewritten.
func (s *Store) RenamePath(ctx context.Context, oldPath, newPath string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE album_videos
		SET path = $2 || substring(path FROM length($1) + 1)
		WHERE path = $1 OR path LIKE $1 || '/%'`,
		oldPath, newPath)
	if err != nil {
		return fmt.Errorf("rewrite album paths: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		logging.Info("rewrote album video paths",
			zap.String("from", oldPath),
			zap.String("to", newPath),
			zap.Int64("rows", n))
	}
	return nil
}
