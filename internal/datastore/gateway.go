// Package datastore flips and reads the vendor mobile verification flag
// directly in the application database, bypassing the OTP challenge.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shipgl/vendor-bootstrap/internal/infra"
)

var (
	// ErrConnectionLost means the connection was dead and one redial failed.
	ErrConnectionLost = errors.New("datastore connection lost")
	// ErrNotFound means no vendor row matches the email.
	ErrNotFound = errors.New("vendor not found")
	// ErrVerificationFailed means the flag did not read back as written.
	ErrVerificationFailed = errors.New("verification flag readback mismatch")
	// ErrEmptyEmail is returned before touching the database.
	ErrEmptyEmail = errors.New("email is empty")
)

const (
	selectFlagSQL   = `SELECT mobile_verified FROM vendor WHERE email = $1`
	lockFlagSQL     = `SELECT mobile_verified FROM vendor WHERE email = $1 FOR UPDATE`
	updateFlagSQL   = `UPDATE vendor SET mobile_verified = $1 WHERE email = $2`
	selectVendorSQL = `SELECT id::text, email, mobile_verified, created_at FROM vendor WHERE email = $1`
)

// Flag is the tri-state mobile_verified value.
type Flag int

const (
	FlagUnknown    Flag = -1
	FlagUnverified Flag = 0
	FlagVerified   Flag = 1
)

// Status is the verification state of one vendor row.
type Status struct {
	Exists         bool
	MobileVerified Flag
}

// Vendor is the subset of the vendor row the bootstrap cares about.
type Vendor struct {
	ID             string
	Email          string
	MobileVerified Flag
	CreatedAt      time.Time
}

// Conn is the slice of *pgx.Conn the gateway uses.
type Conn interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

// Dialer opens a new connection.
type Dialer func(ctx context.Context) (Conn, error)

// Gateway owns one connection and runs at most one transaction at a time.
type Gateway struct {
	dial   Dialer
	logger *slog.Logger

	mu   sync.Mutex
	conn Conn
}

// New builds a gateway that dials lazily on first use.
func New(dial Dialer, logger *slog.Logger) *Gateway {
	return &Gateway{dial: dial, logger: logger}
}

// Open builds a gateway and dials immediately so misconfiguration surfaces early.
func Open(ctx context.Context, dial Dialer, logger *slog.Logger) (*Gateway, error) {
	g := New(dial, logger)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.ensureConn(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// VerifyMobile sets mobile_verified = 1 and commits only after reading it back.
func (g *Gateway) VerifyMobile(ctx context.Context, email string) (string, error) {
	if err := g.setFlag(ctx, email, FlagVerified); err != nil {
		return "", err
	}
	msg := fmt.Sprintf("mobile verification successful for %s", email)
	g.logger.Info("mobile verified", slog.String("email", email))
	return msg, nil
}

// ResetMobile sets mobile_verified = 0. Used for cleanup between runs.
func (g *Gateway) ResetMobile(ctx context.Context, email string) (string, error) {
	if err := g.setFlag(ctx, email, FlagUnverified); err != nil {
		return "", err
	}
	msg := fmt.Sprintf("mobile verification reset for %s", email)
	g.logger.Info("mobile verification reset", slog.String("email", email))
	return msg, nil
}

// GetStatus is a read-only lookup. A missing row is reported, not returned as an error.
func (g *Gateway) GetStatus(ctx context.Context, email string) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	conn, err := g.ensureConn(ctx)
	if err != nil {
		return Status{Exists: false, MobileVerified: FlagUnknown}, err
	}

	var flag int
	if err := conn.QueryRow(ctx, selectFlagSQL, email).Scan(&flag); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Status{Exists: false, MobileVerified: FlagUnknown}, nil
		}
		return Status{Exists: false, MobileVerified: FlagUnknown}, fmt.Errorf("read status for %s: %w", email, err)
	}
	return Status{Exists: true, MobileVerified: Flag(flag)}, nil
}

// Vendor fetches the vendor row for email.
func (g *Gateway) Vendor(ctx context.Context, email string) (Vendor, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	conn, err := g.ensureConn(ctx)
	if err != nil {
		return Vendor{}, err
	}

	var (
		v    Vendor
		flag int
	)
	if err := conn.QueryRow(ctx, selectVendorSQL, email).Scan(&v.ID, &v.Email, &flag, &v.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vendor{}, fmt.Errorf("%w: %s", ErrNotFound, email)
		}
		return Vendor{}, fmt.Errorf("read vendor %s: %w", email, err)
	}
	v.MobileVerified = Flag(flag)
	return v, nil
}

// Close releases the connection.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return nil
	}
	err := g.conn.Close(ctx)
	g.conn = nil
	return err
}

func (g *Gateway) setFlag(ctx context.Context, email string, want Flag) error {
	if email == "" {
		return ErrEmptyEmail
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	conn, err := g.ensureConn(ctx)
	if err != nil {
		return err
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer tx.Rollback(ctx) // nolint:errcheck

	var current int
	if err := tx.QueryRow(ctx, lockFlagSQL, email).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			g.logger.Warn("vendor not found", slog.String("email", email))
			return fmt.Errorf("%w: %s", ErrNotFound, email)
		}
		return fmt.Errorf("lock vendor %s: %w", email, err)
	}
	g.logger.Debug("vendor found", slog.String("email", email), slog.Int("mobile_verified", current))

	tag, err := tx.Exec(ctx, updateFlagSQL, int(want), email)
	if err != nil {
		return fmt.Errorf("update mobile_verified for %s: %w", email, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: update touched no rows for %s", ErrVerificationFailed, email)
	}

	var after int
	if err := tx.QueryRow(ctx, selectFlagSQL, email).Scan(&after); err != nil {
		return fmt.Errorf("read back mobile_verified for %s: %w", email, err)
	}
	if Flag(after) != want {
		g.logger.Error("mobile_verified readback mismatch", slog.String("email", email), slog.Int("want", int(want)), slog.Int("got", after))
		return fmt.Errorf("%w: mobile_verified is still %d", ErrVerificationFailed, after)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit mobile_verified for %s: %w", email, err)
	}
	return nil
}

// ensureConn returns a live connection, redialling exactly once. Callers hold g.mu.
func (g *Gateway) ensureConn(ctx context.Context) (Conn, error) {
	if g.conn != nil {
		err := g.conn.Ping(ctx)
		if err == nil {
			return g.conn, nil
		}
		g.logger.Warn("datastore connection lost, reconnecting", slog.Any("error", err))
		_ = g.conn.Close(ctx)
		g.conn = nil
	}

	conn, err := g.dial(ctx)
	if err != nil {
		g.logger.Error("datastore reconnect failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	g.conn = conn
	return conn, nil
}

// PostgresDialer dials dsn with infra.NewPostgresConn.
func PostgresDialer(dsn string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		conn, err := infra.NewPostgresConn(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}
