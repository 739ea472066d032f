package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
)`

// Migrate applies embedded migrations for the store's dialect in lexical
// order. Applied versions are recorded in schema_migrations, so calling it
// on every start is safe.
func (s *Store) Migrate(ctx context.Context) error {
	dir := path.Join("migrations", s.dialect)
	entries, err := migrationFS.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	if _, err := s.db.ExecContext(ctx, migrationsTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []string
	if err := s.db.SelectContext(ctx, &applied, "SELECT version FROM schema_migrations"); err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	done := make(map[string]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}

	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")
		if _, ok := done[version]; ok {
			continue
		}
		raw, err := migrationFS.ReadFile(path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(raw)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			tx.Rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"),
			version, time.Now().UTC(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
		s.logger.Info("migration applied", zap.String("dialect", s.dialect), zap.String("version", version))
	}
	return nil
}
