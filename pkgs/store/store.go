// Package store is the configuration store: sqlite-backed persistence for
// every entity the runtime engine and the HTTP control plane touch.
package store

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Store wraps the sqlite handle. All timestamps are persisted as unix
// seconds; NULL maps to nil pointers on the model structs.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at dsn and ensures the
// schema. WAL keeps engine writes from blocking control-plane reads.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "ping database")
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, errors.Wrap(err, "init schema")
	}
	logrus.Debugf("store opened at %s", dsn)
	return s, nil
}

// Close checkpoints the WAL and closes the handle.
func (s *Store) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// DB exposes the raw handle for the data-query surface.
func (s *Store) DB() *sql.DB {
	return s.db
}

func now() int64 {
	return time.Now().Unix()
}

func unixTime(v int64) time.Time {
	return time.Unix(v, 0)
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}

func timeNull(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func strNull(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullF64(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func f64Null(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullI64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

func i64Null(i *int64) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}
