package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage/sqlstore"
)

// codeStringTooLong is SQLSTATE string_data_right_truncation.
const codeStringTooLong = "22001"

type Store struct {
	*sqlstore.Store
	pool        *pgxpool.Pool
	db          *sql.DB
	replicaPool *pgxpool.Pool
	replica     *sql.DB
	logger      zerolog.Logger
}

// New opens the primary pool and, when replicaDSN is set, a read pool on
// the replica. Migrations always run against the primary.
func New(dsn, replicaDSN string, logger zerolog.Logger) (*Store, error) {
	if err := runMigrations(dsn, logger); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	s := &Store{pool: pool, db: stdlib.OpenDBFromPool(pool), logger: logger}

	opts := []sqlstore.Option{sqlstore.WithTruncationDetector(IsTruncation)}
	if replicaDSN != "" {
		rp, err := pgxpool.New(context.Background(), replicaDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open read replica: %w", err)
		}
		s.replicaPool = rp
		s.replica = stdlib.OpenDBFromPool(rp)
		opts = append(opts, sqlstore.WithReadPool(s.replica))
		logger.Info().Msg("Using read replica for contact reads")
	}
	s.Store = sqlstore.New(s.db, storage.Postgres, logger, opts...)
	return s, nil
}

// IsTruncation reports a "value too long" error from postgres.
func IsTruncation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeStringTooLong
}

func runMigrations(dsn string, logger zerolog.Logger) error {
	sourceDriver, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithSourceInstance(
		"iofs",
		sourceDriver,
		dsn,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	if dirty {
		logger.Warn().
			Uint("version", version).
			Msg("Database is in dirty state, forcing version")
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force migration version: %w", err)
		}
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err == migrate.ErrNoChange {
		logger.Info().Msg("No new migrations to apply")
	} else {
		newVersion, _, _ := m.Version()
		logger.Info().
			Uint("from_version", version).
			Uint("to_version", newVersion).
			Msg("Migrations applied successfully")
	}

	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() {
	if s.replica != nil {
		_ = s.replica.Close()
		s.replicaPool.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	s.pool.Close()
}
