// Package migrate applies embedded SQL migration files in lexical order,
// recording each applied file in a schema_migrations table.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
)

// Dialect carries the SQL differences between supported backends.
type Dialect struct {
	Name        string
	Placeholder string // positional parameter for the version column
	Timestamp   string // column type for applied_at
}

var (
	Postgres = Dialect{Name: "postgres", Placeholder: "$1", Timestamp: "TIMESTAMPTZ DEFAULT NOW()"}
	SQLite   = Dialect{Name: "sqlite", Placeholder: "?", Timestamp: "TEXT DEFAULT CURRENT_TIMESTAMP"}
)

// Apply runs every *.sql file in fsys that has not been recorded yet. Each
// file runs in its own transaction together with its bookkeeping row.
func Apply(ctx context.Context, db *sql.DB, fsys fs.FS, d Dialect) ([]string, error) {
	applied, err := appliedVersions(ctx, db, d)
	if err != nil {
		return nil, err
	}

	pending, err := Pending(fsys, applied)
	if err != nil {
		return nil, err
	}

	for _, file := range pending {
		content, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", file, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin transaction for %s: %w", file, err)
		}

		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("execute migration %s: %w", file, err)
		}

		insert := "INSERT INTO schema_migrations (version) VALUES (" + d.Placeholder + ")"
		if _, err := tx.ExecContext(ctx, insert, file); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("record migration %s: %w", file, err)
		}

		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit migration %s: %w", file, err)
		}

		slog.Info("migrate: applied", "backend", d.Name, "file", file)
	}

	return pending, nil
}

// Pending returns the sorted migration file names in fsys that are not in applied.
func Pending(fsys fs.FS, applied map[string]bool) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") && !applied[e.Name()] {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)
	return files, nil
}

// Applied lists the recorded migration versions in order.
func Applied(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration versions: %w", err)
	}
	return versions, nil
}

func appliedVersions(ctx context.Context, db *sql.DB, d Dialect) (map[string]bool, error) {
	ddl := `CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY,
		applied_at ` + d.Timestamp + `
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	versions, err := Applied(ctx, db)
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}
