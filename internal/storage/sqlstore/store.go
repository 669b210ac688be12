// Package sqlstore implements storage.Store on database/sql. The postgres
// and sqlite backends open the pools and run migrations, then hand the
// pools to New.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/ldap-contacts/internal/contact"
	"github.com/sonroyaalmerol/ldap-contacts/internal/storage"
)

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ storage.Store = (*Store)(nil)
	_ storage.Tx    = (*tx)(nil)
)

type Store struct {
	write   *sql.DB
	read    *sql.DB
	dialect storage.Dialect
	logger  zerolog.Logger

	isTruncation func(error) bool
}

type Option func(*Store)

// WithReadPool routes reads to a replica pool.
func WithReadPool(db *sql.DB) Option {
	return func(s *Store) {
		if db != nil {
			s.read = db
		}
	}
}

// WithTruncationDetector recognises the driver's "value too long" error so
// it can be reported as a truncation naming the field.
func WithTruncationDetector(fn func(error) bool) Option {
	return func(s *Store) { s.isTruncation = fn }
}

func New(db *sql.DB, dialect storage.Dialect, logger zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		write:        db,
		read:         db,
		dialect:      dialect,
		logger:       logger.With().Str("component", "sqlstore").Logger(),
		isTruncation: func(error) bool { return false },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close is a no-op; the backend owns the pools.
func (s *Store) Close() {}

func (s *Store) Dialect() storage.Dialect { return s.dialect }

func (s *Store) rebind(q string) string { return s.dialect.Rebind(q) }

// withConn runs fn on a connection taken from the read pool and returns it
// to the pool on every path.
func (s *Store) withConn(ctx context.Context, fn func(q querier) error) error {
	conn, err := s.read.Conn(ctx)
	if err != nil {
		return contact.ErrSQL(err)
	}
	defer conn.Close()
	return fn(conn)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	sqlTx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return contact.ErrSQL(err)
	}
	t := &tx{tx: sqlTx, s: s}
	if err := fn(t); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error().Err(rbErr).Msg("rollback failed")
		}
		return contact.ErrSQL(err)
	}
	if err := sqlTx.Commit(); err != nil {
		return contact.ErrSQL(err)
	}
	return nil
}

// writeError maps a failed INSERT/UPDATE of c. Truncation is reported
// against the first field exceeding its limit.
func (s *Store) writeError(err error, c *contact.Contact) error {
	if err == nil {
		return nil
	}
	if s.isTruncation(err) && c != nil {
		for _, m := range contact.Columns() {
			v, ok := m.StringValue(c)
			if !ok || m.MaxLen == 0 {
				continue
			}
			if n := utf8.RuneCountInString(v); n > m.MaxLen {
				return contact.ErrTruncated(m, n)
			}
		}
	}
	return contact.ErrSQL(err)
}

type tx struct {
	tx *sql.Tx
	s  *Store
}

func (t *tx) rebind(q string) string { return t.s.rebind(q) }

func (t *tx) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, t.rebind(q), args...)
	if err != nil {
		return nil, contact.ErrSQL(err)
	}
	return res, nil
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}

func intArgs(ids []int) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
