// Package history persists analysis results and aggregates them into
// metrics.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/panbanda/prism/internal/service/analysis"
	"github.com/panbanda/prism/internal/summary"
	"github.com/panbanda/prism/pkg/analyzer"
)

// ErrNotFound is returned when no entry has the requested id.
var ErrNotFound = errors.New("history entry not found")

// Entry is one stored analysis.
type Entry struct {
	bun.BaseModel `bun:"table:analyses"`

	ID          string          `bun:"id,pk" json:"id"`
	Kind        analyzer.Kind   `bun:"kind,notnull" json:"fileType"`
	FileName    string          `bun:"file_name" json:"fileName,omitempty"`
	IssuesCount int             `bun:"issues_count,notnull,default:0" json:"issuesCount"`
	Summary     json.RawMessage `bun:"summary,type:text" json:"summary,omitempty"`
	Result      json.RawMessage `bun:"result,type:text" json:"result,omitempty"`
	CreatedAt   time.Time       `bun:"created_at,notnull" json:"createdAt"`
}

// NewEntry builds an unsaved entry from a result and its summary.
func NewEntry(res *analysis.Result, sum *summary.Summary) (Entry, error) {
	if sum == nil {
		sum = summary.Build(res)
	}
	resJSON, err := json.Marshal(res)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to encode result: %w", err)
	}
	sumJSON, err := json.Marshal(sum)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to encode summary: %w", err)
	}
	return Entry{
		Kind:        res.Kind,
		FileName:    res.FileName,
		IssuesCount: sum.IssuesCount,
		Summary:     sumJSON,
		Result:      resJSON,
		CreatedAt:   sum.GeneratedAt,
	}, nil
}

// Store is an sqlite-backed history of analyses.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists. ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	sqldb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// A private in-memory database lives only as long as its connection.
	sqldb.SetMaxOpenConns(1)

	s := &Store{
		db:  bun.NewDB(sqldb, sqlitedialect.New()),
		now: time.Now,
	}
	if err := s.migrate(ctx); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*Entry)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create analyses table: %w", err)
	}
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_kind ON analyses(kind)`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// newID is sortable by creation time; DefaultEntropy is monotonic within a
// millisecond and safe for concurrent use.
func newID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}

// Save assigns an id (and a creation time when unset) and stores e.
func (s *Store) Save(ctx context.Context, e Entry) (Entry, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.ID = newID(e.CreatedAt)
	if _, err := s.db.NewInsert().Model(&e).Exec(ctx); err != nil {
		return Entry{}, fmt.Errorf("failed to save analysis: %w", err)
	}
	return e, nil
}

// Record saves a result with its summary.
func (s *Store) Record(ctx context.Context, res *analysis.Result, sum *summary.Summary) (Entry, error) {
	e, err := NewEntry(res, sum)
	if err != nil {
		return Entry{}, err
	}
	return s.Save(ctx, e)
}

// List returns the newest entries first, without their result bodies.
// limit <= 0 returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	entries := []Entry{}
	q := s.db.NewSelect().
		Model(&entries).
		ExcludeColumn("result").
		OrderExpr("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return entries, nil
}

// Get returns the entry with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	var e Entry
	err := s.db.NewSelect().Model(&e).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to load analysis %s: %w", id, err)
	}
	return e, nil
}

// Restore decodes the stored result of e.
func (e Entry) Restore() (*analysis.Result, error) {
	var res analysis.Result
	if err := json.Unmarshal(e.Result, &res); err != nil {
		return nil, fmt.Errorf("failed to decode stored result: %w", err)
	}
	return &res, nil
}
