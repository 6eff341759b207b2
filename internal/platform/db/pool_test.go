package db

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeSource struct {
	free     atomic.Int32
	acquires atomic.Int32
	opened   atomic.Int32
	released atomic.Int32
	closed   atomic.Int32
}

func (f *fakeSource) pool() *Pool {
	return &Pool{
		acquire: func(ctx context.Context) (*Conn, error) {
			f.acquires.Add(1)
			if f.free.Add(-1) >= 0 {
				return &Conn{release: func() {
					f.free.Add(1)
					f.released.Add(1)
				}}, nil
			}
			f.free.Add(1)
			<-ctx.Done()
			return nil, ctx.Err()
		},
		open: func(ctx context.Context) (*Conn, error) {
			f.opened.Add(1)
			return &Conn{release: func() { f.closed.Add(1) }}, nil
		},
		acquireWait: 5 * time.Millisecond,
		retryDelay:  5 * time.Millisecond,
		logger:      zerolog.Nop(),
	}
}

func TestPool_AcquireFromPool(t *testing.T) {
	src := &fakeSource{}
	src.free.Store(1)
	p := src.pool()

	conn, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.Overflow() {
		t.Error("expected pooled connection")
	}
	conn.Release()
	conn.Release()

	if src.released.Load() != 1 {
		t.Errorf("expected exactly one release, got %d", src.released.Load())
	}
	if src.free.Load() != 1 {
		t.Errorf("expected connection back in pool, free=%d", src.free.Load())
	}
}

func TestPool_RetriesOnceThenOverflows(t *testing.T) {
	src := &fakeSource{}
	p := src.pool()

	conn, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !conn.Overflow() {
		t.Error("expected overflow connection")
	}
	if src.acquires.Load() != 2 {
		t.Errorf("expected 2 pool attempts, got %d", src.acquires.Load())
	}
	if src.opened.Load() != 1 {
		t.Errorf("expected 1 overflow connection, got %d", src.opened.Load())
	}
	if p.OverflowConns() != 1 {
		t.Errorf("expected overflow gauge 1, got %d", p.OverflowConns())
	}

	conn.Release()
	if src.closed.Load() != 1 {
		t.Errorf("expected overflow connection to be closed, got %d", src.closed.Load())
	}
	if p.OverflowConns() != 0 {
		t.Errorf("expected overflow gauge 0, got %d", p.OverflowConns())
	}
}

func TestPool_CancelledContext(t *testing.T) {
	src := &fakeSource{}
	p := src.pool()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Acquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if src.opened.Load() != 0 {
		t.Error("expected no overflow connection for a cancelled request")
	}
}

func TestPool_AcquireError(t *testing.T) {
	boom := errors.New("auth failed")
	p := &Pool{
		acquire:     func(context.Context) (*Conn, error) { return nil, boom },
		open:        func(context.Context) (*Conn, error) { t.Fatal("unexpected overflow"); return nil, nil },
		acquireWait: time.Second,
		retryDelay:  time.Millisecond,
		logger:      zerolog.Nop(),
	}

	_, err := p.Acquire(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("expected acquire error, got %v", err)
	}
}

func TestPool_RunReleases(t *testing.T) {
	src := &fakeSource{}
	src.free.Store(1)
	p := src.pool()

	want := errors.New("query failed")
	err := p.Run(context.Background(), func(q Querier) error { return want })
	if !errors.Is(err, want) {
		t.Errorf("expected fn error, got %v", err)
	}
	if src.released.Load() != 1 {
		t.Errorf("expected release after Run, got %d", src.released.Load())
	}
}

func TestPool_Stats_NoPool(t *testing.T) {
	p := &Pool{}
	stats := p.Stats()
	if stats.TotalConns != 0 || stats.OverflowConns != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
	if err := p.Ping(context.Background()); err == nil {
		t.Error("expected error pinging uninitialized pool")
	}
}
