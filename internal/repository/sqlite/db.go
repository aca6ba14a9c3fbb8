package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/dutyroster/scheduler/internal/logging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// DB wraps a pure-Go SQLite connection, following the shape of the
// teacher's internal/database.DB but trimmed to this service's needs
// and built on modernc.org/sqlite (driver name "sqlite") rather than
// the teacher's ncruces-based driver.
type DB struct {
	conn   *sql.DB
	path   string
	logger zerolog.Logger
}

// New opens a connection and configures it per opts. It does not run
// migrations; call Migrate for that.
func New(opts Options) (*DB, error) {
	conn, err := sql.Open("sqlite", opts.connectionString())
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// modernc.org/sqlite serializes access per connection; a single
	// writer connection avoids SQLITE_BUSY under our PRAGMA busy_timeout.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}

	return &DB{
		conn:   conn,
		path:   opts.Path,
		logger: logging.GetLogger("repository.sqlite"),
	}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the underlying *sql.DB for callers that need direct access
// outside the Repository interface, such as test fixtures seeding rows.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Migrate applies every embedded migration, the same
// iofs-source-plus-driver-instance pattern as the teacher's
// MigrateDatabase, but pointed at the real upstream
// golang-migrate/migrate/v4/database/sqlite driver (the pure-Go,
// modernc.org/sqlite-based one) instead of the teacher's vendored,
// mattn/go-sqlite3-based copy, so the whole stack stays cgo-free.
func (db *DB) Migrate() error {
	driver, err := migratesqlite.WithInstance(db.conn, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("reading embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("constructing migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	db.logger.Info().Str("path", db.path).Msg("migrations applied")
	return nil
}

type txKey struct{}

// querier is the narrow subset of *sql.DB / *sql.Tx that repository
// methods need; it lets each method run against either, depending on
// whether ctx carries an active transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (db *DB) querier(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db.conn
}

// WithTransaction runs fn with a transaction bound into ctx, following
// the teacher's WithTransaction panic-recovery-then-rethrow and
// rollback-on-error shape, adapted so callers never touch *sql.Tx
// directly (the Repository interface is persistence-agnostic).
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
