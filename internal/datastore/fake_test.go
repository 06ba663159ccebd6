package datastore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB is an in-memory vendor table with transaction bookkeeping.
type fakeDB struct {
	mu sync.Mutex

	rows map[string]int

	// suppressWrites models a trigger that silently swallows updates.
	suppressWrites bool
	execErr        error

	dials     int
	dialErr   error
	begins    int
	commits   int
	rollbacks int
	openTx    int
}

func newFakeDB(rows map[string]int) *fakeDB {
	if rows == nil {
		rows = map[string]int{}
	}
	return &fakeDB{rows: rows}
}

func (db *fakeDB) dialer() Dialer {
	return func(context.Context) (Conn, error) {
		db.mu.Lock()
		defer db.mu.Unlock()
		db.dials++
		if db.dialErr != nil {
			return nil, db.dialErr
		}
		return &fakeConn{db: db}, nil
	}
}

func (db *fakeDB) flag(email string) (int, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	v, ok := db.rows[email]
	return v, ok
}

type fakeConn struct {
	db     *fakeDB
	dead   bool
	closed bool
}

func (c *fakeConn) Ping(context.Context) error {
	if c.dead || c.closed {
		return errors.New("connection reset by peer")
	}
	return nil
}

func (c *fakeConn) Begin(context.Context) (pgx.Tx, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	c.db.begins++
	c.db.openTx++
	return &fakeTx{db: c.db, pending: map[string]int{}}, nil
}

func (c *fakeConn) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	return c.db.row(sql, args[0].(string), nil)
}

func (c *fakeConn) Close(context.Context) error {
	c.closed = true
	return nil
}

// row must be called with db.mu held.
func (db *fakeDB) row(sql, email string, pending map[string]int) pgx.Row {
	v, ok := db.rows[email]
	if p, staged := pending[email]; staged {
		v = p
	}
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	if strings.Contains(sql, "created_at") {
		return fakeRow{values: []any{"7d7a3c1e-1f1b-4f55-9f52-0e2f1f2f9f01", email, v, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}}
	}
	return fakeRow{values: []any{v}}
}

type fakeTx struct {
	pgx.Tx
	db       *fakeDB
	pending  map[string]int
	finished bool
}

func (tx *fakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	return tx.db.row(sql, args[0].(string), tx.pending)
}

func (tx *fakeTx) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	if tx.db.execErr != nil {
		return pgconn.CommandTag{}, tx.db.execErr
	}
	want := args[0].(int)
	email := args[1].(string)
	if _, ok := tx.db.rows[email]; !ok {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	if !tx.db.suppressWrites {
		tx.pending[email] = want
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	if tx.finished {
		return pgx.ErrTxClosed
	}
	for k, v := range tx.pending {
		tx.db.rows[k] = v
	}
	tx.finished = true
	tx.db.commits++
	tx.db.openTx--
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	if tx.finished {
		return pgx.ErrTxClosed
	}
	tx.finished = true
	tx.db.rollbacks++
	tx.db.openTx--
	return nil
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int:
			*p = r.values[i].(int)
		case *string:
			*p = r.values[i].(string)
		case *time.Time:
			*p = r.values[i].(time.Time)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}
