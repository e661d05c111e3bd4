// ABOUTME: SQLite-backed scene store persisting named topology documents.
// ABOUTME: Provides upsert, get, list, and delete over a WAL-mode database.
package scene

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/2389-research/topoedit/topo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned when no scene has the requested id.
var ErrNotFound = errors.New("scene not found")

const timeLayout = time.RFC3339Nano

// Scene is a named, persisted topology.
type Scene struct {
	ID          string         `json:"id"`
	Name        string         `json:"name" validate:"required,max=200"`
	Description string         `json:"description,omitempty" validate:"max=2000"`
	Doc         *topo.Document `json:"topology" validate:"required"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Summary is a scene row for list queries, without the document body.
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Nodes       int       `json:"nodes"`
	Edges       int       `json:"edges"`
	Groups      int       `json:"groups"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SQLiteStore persists scenes in a single table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates a scene database at path and ensures the schema.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS scenes (
			scene_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			topology JSON NOT NULL,
			node_count INTEGER NOT NULL,
			edge_count INTEGER NOT NULL,
			group_count INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_scenes_updated ON scenes(updated_at);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save inserts sc, or updates it when a scene with the same id exists. A
// scene without an id gets a fresh ULID. CreatedAt is preserved on update.
func (s *SQLiteStore) Save(ctx context.Context, sc *Scene) error {
	if sc.Doc == nil {
		return fmt.Errorf("save scene: %w", topo.ErrInvalidDocument)
	}
	body, err := topo.EncodeDocument(sc.Doc)
	if err != nil {
		return fmt.Errorf("save scene: %w", err)
	}

	now := s.now()
	if sc.ID == "" {
		sc.ID = ulid.Make().String()
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = now
	}
	sc.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scenes (scene_id, name, description, topology, node_count, edge_count, group_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(scene_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			topology = excluded.topology,
			node_count = excluded.node_count,
			edge_count = excluded.edge_count,
			group_count = excluded.group_count,
			updated_at = excluded.updated_at`,
		sc.ID,
		sc.Name,
		sc.Description,
		string(body),
		len(sc.Doc.Nodes)-len(sc.Doc.Groups),
		len(sc.Doc.Edges),
		len(sc.Doc.Groups),
		sc.CreatedAt.Format(timeLayout),
		sc.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert scene: %w", err)
	}
	return nil
}

// Get loads one scene with its document.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Scene, error) {
	var (
		sc                   Scene
		body                 string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT scene_id, name, description, topology, created_at, updated_at
		 FROM scenes WHERE scene_id = ?`, id,
	).Scan(&sc.ID, &sc.Name, &sc.Description, &body, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query scene: %w", err)
	}

	doc, err := topo.DecodeDocument([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("decode scene %s: %w", id, err)
	}
	sc.Doc = doc
	sc.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	sc.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &sc, nil
}

// List returns every scene, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scene_id, name, description, node_count, edge_count, group_count, updated_at
		 FROM scenes ORDER BY updated_at DESC, scene_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sum       Summary
			updatedAt string
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Description, &sum.Nodes, &sum.Edges, &sum.Groups, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		sum.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenes: %w", err)
	}
	return out, nil
}

// Delete removes a scene.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scenes WHERE scene_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
