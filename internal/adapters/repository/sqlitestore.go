package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/okian/talentboard/internal/domain/model"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	defaultBusyTimeout     = 5 * time.Second
	defaultMigrationsTable = "schema_migrations"
	projectIDCounter       = "project_id"
)

// SQLiteStore persists the registry in a SQLite database. All access goes
// through a single connection, so transactions are serialised by SQLite
// itself and an in-memory database lives as long as the store.
type SQLiteStore struct {
	db              *sql.DB
	mu              sync.Mutex
	closed          atomic.Bool
	busyTimeout     time.Duration
	migrationsTable string
}

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	s := &SQLiteStore{
		busyTimeout:     defaultBusyTimeout,
		migrationsTable: defaultMigrationsTable,
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	s.db = db

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds()),
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	drv, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{MigrationsTable: s.migrationsTable})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	// m.Close would close the shared *sql.DB, so only the source is released.
	defer func() { _ = src.Close() }()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Update runs fn in one SQL transaction.
func (s *SQLiteStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, true, func(tx *sqlTx) error { return fn(tx) })
}

// View runs fn in a transaction that is always rolled back.
func (s *SQLiteStore) View(ctx context.Context, fn func(r Reader) error) error {
	return s.inTx(ctx, false, func(tx *sqlTx) error { return fn(tx) })
}

func (s *SQLiteStore) inTx(ctx context.Context, writable bool, fn func(tx *sqlTx) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		if s.closed.Load() {
			return ErrClosed
		}
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqlTx{tx: tx, writable: writable}); err != nil {
		return err
	}
	if !writable {
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

type sqlTx struct {
	tx       *sql.Tx
	writable bool
}

type rowScanner interface {
	Scan(dest ...any) error
}

const talentColumns = `identity, name, gender, birthday, physical_address, government_id,
	career, certifications, is_verified, rating, project_count, last_update_at`

const projectColumns = `id, title, description, budget, client, required_skills,
	deadline, is_active, assigned_talent, created_at`

func (t *sqlTx) Talent(ctx context.Context, id model.Identity) (model.Talent, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+talentColumns+` FROM talents WHERE identity = ?`, string(id))
	talent, err := scanTalent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Talent{}, ErrNotFound
	}
	if err != nil {
		return model.Talent{}, fmt.Errorf("get talent %s: %w", id, err)
	}
	return talent, nil
}

func (t *sqlTx) Talents(ctx context.Context) ([]model.Talent, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+talentColumns+` FROM talents ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list talents: %w", err)
	}
	defer rows.Close()

	out := []model.Talent{}
	for rows.Next() {
		talent, err := scanTalent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan talent: %w", err)
		}
		out = append(out, talent)
	}
	return out, rows.Err()
}

func (t *sqlTx) Project(ctx context.Context, id uint64) (model.Project, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, int64(id))
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Project{}, ErrNotFound
	}
	if err != nil {
		return model.Project{}, fmt.Errorf("get project %d: %w", id, err)
	}
	return p, nil
}

func (t *sqlTx) ProjectCount(ctx context.Context) (uint64, error) {
	var n int64
	err := t.tx.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = ?`, projectIDCounter).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("read project counter: %w", err)
	}
	return uint64(n), nil
}

func (t *sqlTx) Events(ctx context.Context, after uint64, limit int) ([]model.Event, error) {
	query := `SELECT seq, kind, caller, talent, project_id, at FROM events WHERE seq > ? ORDER BY seq`
	args := []any{int64(after)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		var (
			e                        model.Event
			seq, projectID           int64
			kind, caller, talent, at string
		)
		if err := rows.Scan(&seq, &kind, &caller, &talent, &projectID, &at); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Seq = uint64(seq)
		e.Kind = model.EventKind(kind)
		e.Caller = model.Identity(caller)
		e.Talent = model.Identity(talent)
		e.ProjectID = uint64(projectID)
		if e.At, err = decodeTime(at); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *sqlTx) Stats(ctx context.Context) (Stats, error) {
	var (
		st               Stats
		projects, events int64
	)
	err := t.tx.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM talents),
		(SELECT COALESCE(SUM(is_verified), 0) FROM talents),
		(SELECT value FROM counters WHERE name = ?),
		(SELECT COUNT(*) FROM projects WHERE is_active = 1),
		(SELECT COUNT(*) FROM events)`, projectIDCounter).
		Scan(&st.Talents, &st.VerifiedTalents, &projects, &st.ActiveProjects, &events)
	if err != nil {
		return Stats{}, fmt.Errorf("read stats: %w", err)
	}
	st.Projects = uint64(projects)
	st.Events = uint64(events)
	return st, nil
}

func (t *sqlTx) PutTalent(ctx context.Context, talent model.Talent) error {
	if !t.writable {
		return fmt.Errorf("put talent: read-only transaction")
	}
	if talent.Identity.IsZero() {
		return model.ErrInvalidIdentity
	}
	certs, err := encodeStrings(talent.Certifications)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `INSERT INTO talents (`+talentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (identity) DO UPDATE SET
			name = excluded.name,
			gender = excluded.gender,
			birthday = excluded.birthday,
			physical_address = excluded.physical_address,
			government_id = excluded.government_id,
			career = excluded.career,
			certifications = excluded.certifications,
			is_verified = excluded.is_verified,
			rating = excluded.rating,
			project_count = excluded.project_count,
			last_update_at = excluded.last_update_at`,
		string(talent.Identity), talent.Name, talent.Gender, encodeTime(talent.Birthday),
		talent.PhysicalAddress, talent.GovernmentID, talent.Career, certs,
		talent.IsVerified, int64(talent.Rating), int64(talent.ProjectCount),
		encodeTime(talent.LastUpdateTimestamp),
	)
	if err != nil {
		return fmt.Errorf("put talent %s: %w", talent.Identity, err)
	}
	return nil
}

func (t *sqlTx) PutProject(ctx context.Context, p model.Project) error {
	if !t.writable {
		return fmt.Errorf("put project: read-only transaction")
	}
	last, err := t.ProjectCount(ctx)
	if err != nil {
		return err
	}
	if p.ID == 0 || p.ID > last {
		return fmt.Errorf("put project %d: %w", p.ID, ErrUnallocatedID)
	}
	skills, err := encodeStrings(p.RequiredSkills)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			budget = excluded.budget,
			required_skills = excluded.required_skills,
			deadline = excluded.deadline,
			is_active = excluded.is_active,
			assigned_talent = excluded.assigned_talent`,
		int64(p.ID), p.Title, p.Description, p.Budget.String(), string(p.Client), skills,
		encodeTime(p.Deadline), p.IsActive, string(p.AssignedTalent), encodeTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put project %d: %w", p.ID, err)
	}
	return nil
}

func (t *sqlTx) NextProjectID(ctx context.Context) (uint64, error) {
	if !t.writable {
		return 0, fmt.Errorf("next project id: read-only transaction")
	}
	var id int64
	err := t.tx.QueryRowContext(ctx,
		`UPDATE counters SET value = value + 1 WHERE name = ? RETURNING value`, projectIDCounter,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("allocate project id: %w", err)
	}
	return uint64(id), nil
}

func (t *sqlTx) AppendEvent(ctx context.Context, e model.Event) (model.Event, error) {
	if !t.writable {
		return model.Event{}, fmt.Errorf("append event: read-only transaction")
	}
	var seq int64
	err := t.tx.QueryRowContext(ctx, `INSERT INTO events (seq, kind, caller, talent, project_id, at)
		VALUES ((SELECT COALESCE(MAX(seq), 0) + 1 FROM events), ?, ?, ?, ?, ?)
		RETURNING seq`,
		string(e.Kind), string(e.Caller), string(e.Talent), int64(e.ProjectID), encodeTime(e.At),
	).Scan(&seq)
	if err != nil {
		return model.Event{}, fmt.Errorf("append event %s: %w", e.Kind, err)
	}
	e.Seq = uint64(seq)
	return e, nil
}

func scanTalent(row rowScanner) (model.Talent, error) {
	var (
		t                                     model.Talent
		identity, birthday, certs, lastUpdate string
		rating, projectCount                  int64
	)
	err := row.Scan(&identity, &t.Name, &t.Gender, &birthday, &t.PhysicalAddress, &t.GovernmentID,
		&t.Career, &certs, &t.IsVerified, &rating, &projectCount, &lastUpdate)
	if err != nil {
		return model.Talent{}, err
	}
	t.Identity = model.Identity(identity)
	t.Rating = uint64(rating)
	t.ProjectCount = uint64(projectCount)
	if t.Certifications, err = decodeStrings(certs); err != nil {
		return model.Talent{}, err
	}
	if t.Birthday, err = decodeTime(birthday); err != nil {
		return model.Talent{}, err
	}
	if t.LastUpdateTimestamp, err = decodeTime(lastUpdate); err != nil {
		return model.Talent{}, err
	}
	return t, nil
}

func scanProject(row rowScanner) (model.Project, error) {
	var (
		p                                                   model.Project
		id                                                  int64
		budget, client, skills, assigned, deadline, created string
	)
	err := row.Scan(&id, &p.Title, &p.Description, &budget, &client, &skills,
		&deadline, &p.IsActive, &assigned, &created)
	if err != nil {
		return model.Project{}, err
	}
	p.ID = uint64(id)
	p.Client = model.Identity(client)
	p.AssignedTalent = model.Identity(assigned)
	if p.Budget, err = model.ParseAmount(budget); err != nil {
		return model.Project{}, fmt.Errorf("decode budget %q: %w", budget, err)
	}
	if p.RequiredSkills, err = decodeStrings(skills); err != nil {
		return model.Project{}, err
	}
	if p.Deadline, err = decodeTime(deadline); err != nil {
		return model.Project{}, err
	}
	if p.CreatedAt, err = decodeTime(created); err != nil {
		return model.Project{}, err
	}
	return p, nil
}

func encodeStrings(in []string) (string, error) {
	if in == nil {
		in = []string{}
	}
	b, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(b), nil
}

func decodeStrings(s string) ([]string, error) {
	out := []string{}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode list %q: %w", s, err)
	}
	return out, nil
}

// Times are stored as RFC 3339 text in UTC; the zero time is stored as "".
func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode time %q: %w", s, err)
	}
	return t.UTC(), nil
}
