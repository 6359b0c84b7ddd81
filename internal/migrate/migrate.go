// Package migrate applies the embedded SQL schema over database/sql.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"
)

//go:embed sql/*.up.sql
var embedded embed.FS

const (
	defaultTable = "schema_migrations"
	upSuffix     = ".up.sql"
)

// Manager executes pending migrations and records them in a bookkeeping table.
type Manager struct {
	db    *sql.DB
	files fs.FS
	table string
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithFS replaces the embedded migration set. Files must sit at the FS root.
func WithFS(files fs.FS) Option {
	return func(m *Manager) {
		m.files = files
	}
}

// WithTable overrides the default bookkeeping table.
func WithTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.table = name
		}
	}
}

// NewManager constructs a Manager over the embedded schema.
func NewManager(db *sql.DB, opts ...Option) *Manager {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(fmt.Sprintf("migrate: embedded schema missing: %v", err))
	}
	m := &Manager{db: db, files: sub, table: defaultTable, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up applies every pending migration in name order and returns the names applied.
func (m *Manager) Up(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	executed, err := m.listExecuted(ctx)
	if err != nil {
		return nil, err
	}
	names, err := m.pending()
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, name := range names {
		if executed[name] {
			continue
		}
		if err := m.apply(ctx, name); err != nil {
			return applied, fmt.Errorf("applying migration %s: %w", name, err)
		}
		slog.Info("migration applied", "name", name)
		applied = append(applied, name)
	}
	return applied, nil
}

// Status returns the applied migrations in application order.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`SELECT name FROM %s ORDER BY applied_at ASC, name ASC`, m.table))
	if err != nil {
		return nil, fmt.Errorf("reading migration history: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning migration name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (m *Manager) ensureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`, m.table)
	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating %s: %w", m.table, err)
	}
	return nil
}

func (m *Manager) listExecuted(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`SELECT name FROM %s`, m.table))
	if err != nil {
		return nil, fmt.Errorf("listing applied migrations: %w", err)
	}
	defer rows.Close()

	executed := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning migration name: %w", err)
		}
		executed[name] = true
	}
	return executed, rows.Err()
}

func (m *Manager) pending() ([]string, error) {
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), upSuffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// apply runs one file and its bookkeeping row in a single transaction.
func (m *Manager) apply(ctx context.Context, name string) error {
	body, err := fs.ReadFile(m.files, name)
	if err != nil {
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range splitStatements(string(body)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (name, applied_at) VALUES ($1, $2)`, m.table),
		name, m.now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// splitStatements splits on semicolons outside single-quoted literals.
func splitStatements(body string) []string {
	var stmts []string
	var current strings.Builder
	inString := false
	flush := func() {
		if s := strings.TrimSpace(current.String()); !commentOnly(s) {
			stmts = append(stmts, s)
		}
		current.Reset()
	}
	for _, r := range body {
		switch {
		case r == '\'':
			inString = !inString
			current.WriteRune(r)
		case r == ';' && !inString:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return stmts
}

func commentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
