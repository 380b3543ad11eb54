package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrNotFound = errors.New("record not found")

// queries holds every read/write statement so Store and Tx share them.
type queries struct {
	ext sqlx.ExtContext
}

type Store struct {
	queries
	db      *sqlx.DB
	dialect string
}

// Tx is a Store view bound to one database transaction.
type Tx struct {
	queries
}

func New(driver, dsn string) (*Store, error) {
	dialect, sqlDriver, err := resolveDriver(driver)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(sqlDriver, dsn)
	if err != nil {
		return nil, err
	}
	if dialect == DriverSQLite {
		// in-memory databases live per connection and sqlite allows a single writer
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}
	return &Store{queries: queries{ext: db}, db: db, dialect: dialect}, nil
}

func resolveDriver(driver string) (string, string, error) {
	switch strings.ToLower(driver) {
	case "", DriverSQLite:
		return DriverSQLite, "sqlite", nil
	case DriverPostgres, "pgx":
		return DriverPostgres, "pgx", nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Migrate() error {
	dir := path.Join("migrations", s.dialect)
	entries, err := migrations.ReadDir(dir)
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join(dir, file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

// InTx runs fn inside a single transaction. Any error from fn rolls back.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&Tx{queries: queries{ext: tx}}); err != nil {
		return err
	}
	return tx.Commit()
}

func (q queries) rebind(query string) string {
	return q.ext.Rebind(query)
}

func (q queries) forUpdate(query string) string {
	if q.ext.DriverName() == "pgx" {
		return query + " FOR UPDATE"
	}
	return query
}

func isIgnorableMigrationError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column name") || strings.Contains(msg, "already exists")
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
