package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vali024/valix-shop/internal/domain"
	"github.com/vali024/valix-shop/pkg/circuitbreaker"
)

var ErrSyncerClosed = errors.New("cart syncer is closed")

// CartWriter is the server side of a sync.
type CartWriter interface {
	PutCart(ctx context.Context, userID string, lines domain.Lines) error
	ClearCart(ctx context.Context, userID string) error
}

type syncJob struct {
	lines domain.Lines
	clear bool
}

// Syncer pushes cart snapshots to the server in the background.
//
// Each user has at most one write in flight. A snapshot pushed while another
// is in flight replaces any snapshot still queued for that user, so writes
// land in push order and intermediate states may be skipped.
type Syncer struct {
	writer  CartWriter
	breaker *circuitbreaker.Breaker
	log     *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]syncJob
	running map[string]chan struct{}
	lastErr map[string]error
	closed  bool
	wg      sync.WaitGroup
}

func NewSyncer(w CartWriter, breaker *circuitbreaker.Breaker, log *zap.Logger) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.DefaultSettings("cart-sync"), log)
	}
	return &Syncer{
		writer:  w,
		breaker: breaker,
		log:     log,
		timeout: 5 * time.Second,
		pending: make(map[string]syncJob),
		running: make(map[string]chan struct{}),
		lastErr: make(map[string]error),
	}
}

// Push schedules a full replace of the user's server cart.
func (s *Syncer) Push(userID string, lines domain.Lines) {
	s.enqueue(userID, syncJob{lines: lines.Clone()})
}

// PushClear schedules deletion of the user's server cart.
func (s *Syncer) PushClear(userID string) {
	s.enqueue(userID, syncJob{clear: true})
}

func (s *Syncer) enqueue(userID string, job syncJob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.log.Warn("cart sync dropped", zap.String("user_id", userID), zap.Error(ErrSyncerClosed))
		return
	}

	s.pending[userID] = job
	if _, ok := s.running[userID]; ok {
		return
	}

	done := make(chan struct{})
	s.running[userID] = done
	s.wg.Add(1)
	go s.drain(userID, done)
}

func (s *Syncer) drain(userID string, done chan struct{}) {
	defer s.wg.Done()
	defer close(done)

	for {
		s.mu.Lock()
		job, ok := s.pending[userID]
		if !ok {
			delete(s.running, userID)
			s.mu.Unlock()
			return
		}
		delete(s.pending, userID)
		s.mu.Unlock()

		err := s.apply(userID, job)

		s.mu.Lock()
		if err != nil {
			s.lastErr[userID] = err
		} else {
			delete(s.lastErr, userID)
		}
		s.mu.Unlock()
	}
}

func (s *Syncer) apply(userID string, job syncJob) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := s.breaker.Do(func() error {
		if job.clear {
			return s.writer.ClearCart(ctx, userID)
		}
		return s.writer.PutCart(ctx, userID, job.lines)
	})
	if err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrSyncFailure, err)
		s.log.Warn("cart sync failed",
			zap.String("user_id", userID),
			zap.Bool("clear", job.clear),
			zap.Error(err))
		return err
	}
	return nil
}

// ClearCart queues a clear behind any pending snapshot for the user and
// waits for it to land.
func (s *Syncer) ClearCart(ctx context.Context, userID string) error {
	s.PushClear(userID)
	return s.Flush(ctx, userID)
}

// Flush waits until nothing is queued or in flight for the user and returns
// the error of the last write, if it failed.
func (s *Syncer) Flush(ctx context.Context, userID string) error {
	for {
		s.mu.Lock()
		done, ok := s.running[userID]
		if !ok {
			err := s.lastErr[userID]
			s.mu.Unlock()
			return err
		}
		s.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops accepting snapshots and waits for in-flight ones.
func (s *Syncer) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
