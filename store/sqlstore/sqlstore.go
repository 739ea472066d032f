package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/MrEthical07/adminauth/admin"
)

// Driver names accepted by Config.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config selects the database and tunes the pool.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Store implements admin.Store. A Store returned by Open is bound to the
// pool; the Store handed to a WithinTx callback is bound to the transaction.
type Store struct {
	db      *sqlx.DB
	q       sqlx.ExtContext
	dialect string
	inTx    bool
	logger  *zap.Logger
}

var _ admin.Store = (*Store)(nil)

// Open connects, configures the pool and pings the database.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var driverName string
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverPostgres, "pgx":
		driverName = "pgx"
		cfg.Driver = DriverPostgres
	case DriverSQLite:
		driverName = "sqlite"
		cfg.Driver = DriverSQLite
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.Driver)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("sqlstore: empty DSN")
	}

	db, err := sqlx.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == DriverSQLite {
		// One writer; also keeps in-memory databases on a single connection.
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
		if cfg.ConnMaxIdleTime > 0 {
			db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	logger.Info("sqlstore connected", zap.String("driver", cfg.Driver))
	return &Store{db: db, q: db, dialect: cfg.Driver, logger: logger}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks database reachability.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Dialect returns DriverPostgres or DriverSQLite.
func (s *Store) Dialect() string {
	return s.dialect
}

func (s *Store) Users() admin.UserRepository       { return userRepository{s} }
func (s *Store) Sessions() admin.SessionRepository { return sessionRepository{s} }
func (s *Store) Requests() admin.RequestRepository { return requestRepository{s} }

// WithinTx runs fn in a transaction. Nested calls reuse the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx admin.Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	scoped := &Store{db: s.db, q: tx, dialect: s.dialect, inTx: true, logger: s.logger}
	if err := fn(scoped); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("sqlstore rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) rebind(query string) string {
	return s.q.Rebind(query)
}

func (s *Store) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, s.q, dest, s.rebind(query), args...)
}

func (s *Store) selectRows(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, s.q, dest, s.rebind(query), args...)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.q.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return true
		}
		return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")
	}
	return false
}
