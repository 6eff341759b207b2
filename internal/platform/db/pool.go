package db

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

var errPoolExhausted = errors.New("connection pool exhausted")

const (
	defaultAcquireWait = 100 * time.Millisecond
	defaultRetryDelay  = 100 * time.Millisecond
	overflowCloseWait  = 5 * time.Second
)

// Querier is the subset of pgx used by repositories. *pgxpool.Conn, *pgx.Conn
// and pgx.Tx all satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Runner leases a connection for the duration of fn. *Pool satisfies it.
type Runner interface {
	Run(ctx context.Context, fn func(q Querier) error) error
}

// Conn is a leased connection. Callers must call Release exactly once.
type Conn struct {
	Querier
	release  func()
	overflow bool
}

// Overflow reports whether the connection was opened outside the pool.
func (c *Conn) Overflow() bool { return c.overflow }

// Release returns a pooled connection to the pool or closes an overflow
// connection. Subsequent calls are no-ops.
func (c *Conn) Release() {
	if c.release != nil {
		c.release()
		c.release = nil
	}
}

// Pool is a bounded connection pool. When every pooled connection is busy,
// Acquire waits briefly, retries once, and then opens a short-lived overflow
// connection that is closed on release instead of being pooled.
type Pool struct {
	pool        *pgxpool.Pool
	acquire     func(ctx context.Context) (*Conn, error)
	open        func(ctx context.Context) (*Conn, error)
	acquireWait time.Duration
	retryDelay  time.Duration
	overflow    atomic.Int32
	logger      zerolog.Logger
}

func NewPool(ctx context.Context, databaseURL string, minConns, maxConns int32, logger zerolog.Logger) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	connCfg := cfg.ConnConfig.Copy()
	p := &Pool{
		pool: pool,
		acquire: func(ctx context.Context) (*Conn, error) {
			c, err := pool.Acquire(ctx)
			if err != nil {
				return nil, err
			}
			return &Conn{Querier: c, release: c.Release}, nil
		},
		open: func(ctx context.Context) (*Conn, error) {
			c, err := pgx.ConnectConfig(ctx, connCfg)
			if err != nil {
				return nil, fmt.Errorf("open overflow connection: %w", err)
			}
			return &Conn{Querier: c, release: func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), overflowCloseWait)
				defer cancel()
				_ = c.Close(closeCtx)
			}}, nil
		},
		acquireWait: defaultAcquireWait,
		retryDelay:  defaultRetryDelay,
		logger:      logger,
	}
	return p, nil
}

// Acquire leases a connection, honouring ctx for cancellation.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	for attempt := 0; attempt < 2; attempt++ {
		conn, err := p.tryAcquire(ctx)
		if err == nil {
			return conn, nil
		}
		if !errors.Is(err, errPoolExhausted) {
			return nil, err
		}
		if attempt == 0 {
			if err := sleep(ctx, p.retryDelay); err != nil {
				return nil, err
			}
		}
	}

	conn, err := p.open(ctx)
	if err != nil {
		return nil, err
	}
	conn.overflow = true
	n := p.overflow.Add(1)
	p.logger.Warn().Int32("overflow_conns", n).Msg("connection pool exhausted, opened overflow connection")

	release := conn.release
	conn.release = func() {
		release()
		p.overflow.Add(-1)
	}
	return conn, nil
}

func (p *Pool) tryAcquire(ctx context.Context) (*Conn, error) {
	actx, cancel := context.WithTimeout(ctx, p.acquireWait)
	defer cancel()

	conn, err := p.acquire(actx)
	if err == nil {
		return conn, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(actx.Err(), context.DeadlineExceeded) {
		return nil, errPoolExhausted
	}
	return nil, err
}

// Run leases a connection for the duration of fn.
func (p *Pool) Run(ctx context.Context, fn func(q Querier) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()
	return fn(conn)
}

// OverflowConns returns the number of overflow connections currently open.
func (p *Pool) OverflowConns() int32 {
	return p.overflow.Load()
}

func (p *Pool) Ping(ctx context.Context) error {
	if p.pool == nil {
		return errors.New("pool not initialized")
	}
	return p.pool.Ping(ctx)
}

func (p *Pool) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsNoRows reports whether err means the query matched no rows.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
