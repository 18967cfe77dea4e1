// Package drafts keeps a local history of evaluated programs in SQLite so work survives
// a crash or a closed terminal.
package drafts

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/dyluth/playbox/internal/program"
)

// ErrNoDrafts is returned by Latest when nothing has been saved.
var ErrNoDrafts = errors.New("no drafts")

// Draft is one saved snapshot.
type Draft struct {
	ID        string
	Title     string
	Hash      string
	CreatedAt time.Time
	Program   program.Program
}

// Store is a SQLite-backed draft history.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *rand.Rand
}

// Open opens or creates the draft database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create drafts dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("open drafts db: %w", err)
	}

	s := &Store{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate drafts db: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) newID(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS drafts (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL DEFAULT '',
		hash       TEXT NOT NULL,
		files      TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_drafts_created ON drafts(created_at DESC);
	`)
	return err
}

// Hash identifies a program's content.
func Hash(files map[string]string) string {
	data, _ := json.Marshal(files) // map keys are sorted by encoding/json
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Save records p unless it is identical to the most recent draft. It reports whether a
// new row was written.
func (s *Store) Save(ctx context.Context, p program.Program) (bool, error) {
	files, err := program.Files(p)
	if err != nil {
		return false, err
	}
	hash := Hash(files)

	var latest string
	err = s.db.QueryRowContext(ctx, `SELECT hash FROM drafts ORDER BY created_at DESC, id DESC LIMIT 1`).Scan(&latest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("read latest draft: %w", err)
	}
	if latest == hash {
		return false, nil
	}

	filesJSON, err := json.Marshal(files)
	if err != nil {
		return false, fmt.Errorf("encode draft files: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, title, hash, files, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.newID(now), program.Title(p), hash, string(filesJSON), now.Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("insert draft: %w", err)
	}
	return true, nil
}

// Latest returns the most recent draft, or ErrNoDrafts.
func (s *Store) Latest(ctx context.Context) (*Draft, error) {
	drafts, err := s.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, ErrNoDrafts
	}
	return drafts[0], nil
}

// Exists reports whether a draft with id is stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM drafts WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("check draft: %w", err)
	}
	return n > 0, nil
}

// ScanIDs returns the sorted ids of every draft whose id starts with prefix.
func (s *Store) ScanIDs(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM drafts WHERE substr(id, 1, ?) = ? ORDER BY id`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("scan drafts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan drafts: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Get returns the draft with id, or ErrNoDrafts.
func (s *Store) Get(ctx context.Context, id string) (*Draft, error) {
	drafts, err := s.query(ctx, `SELECT id, title, hash, files, created_at FROM drafts WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, ErrNoDrafts
	}
	return drafts[0], nil
}

// List returns up to limit drafts, newest first. A limit of zero or less returns all.
func (s *Store) List(ctx context.Context, limit int) ([]*Draft, error) {
	query := `SELECT id, title, hash, files, created_at FROM drafts ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Draft, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*Draft
	for rows.Next() {
		var d Draft
		var filesJSON, createdAt string
		if err := rows.Scan(&d.ID, &d.Title, &d.Hash, &filesJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}

		var files map[string]string
		if err := json.Unmarshal([]byte(filesJSON), &files); err != nil {
			return nil, fmt.Errorf("decode draft %s: %w", d.ID, err)
		}
		if d.Program, err = program.FromFiles(files); err != nil {
			return nil, fmt.Errorf("decode draft %s: %w", d.ID, err)
		}
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		drafts = append(drafts, &d)
	}
	return drafts, rows.Err()
}
