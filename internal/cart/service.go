package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vali024/valix-shop/internal/cache"
	"github.com/vali024/valix-shop/internal/domain"
	"github.com/vali024/valix-shop/internal/repository"
)

// Service is the server-side gateway for user carts: a read-through cache in
// front of the repository. Writes replace the whole cart.
type Service struct {
	repo  repository.CartRepository
	cache cache.CartCache
	sfg   singleflight.Group // Prevents cache stampede
	log   *zap.Logger

	// reads tracks users with a cache fill in flight so a slow fill cannot
	// store a cart that a later write already replaced. Entries live only
	// while a fill is pending.
	mu    sync.Mutex
	reads map[string]*pendingRead
}

type pendingRead struct {
	writes  uint64
	readers int
}

func NewService(repo repository.CartRepository, c cache.CartCache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:  repo,
		cache: c,
		log:   log,
		reads: make(map[string]*pendingRead),
	}
}

// GetCart returns the stored lines. A user without a cart has an empty one.
func (s *Service) GetCart(ctx context.Context, userID string) (domain.Lines, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cache get error", zap.String("user_id", userID), zap.Error(err))
		}

		seen := s.startRead(userID)
		cart, err = s.repo.GetCart(ctx, userID)
		if err != nil {
			s.endRead(userID, seen)
			if errors.Is(err, repository.ErrCartNotFound) {
				return domain.NewCartDocument(userID, nil), nil
			}
			return nil, err
		}

		go s.fillCache(userID, cart, seen)

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.CartDocument).Lines(), nil
}

func (s *Service) PutCart(ctx context.Context, userID string, lines domain.Lines) error {
	if err := s.repo.PutCart(ctx, domain.NewCartDocument(userID, lines)); err != nil {
		s.log.Error("repo put cart error", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	s.written(userID)

	s.invalidateCache(userID)
	return nil
}

func (s *Service) ClearCart(ctx context.Context, userID string) error {
	if err := s.repo.ClearCart(ctx, userID); err != nil {
		s.log.Error("repo clear cart error", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	s.written(userID)

	s.invalidateCache(userID)
	return nil
}

func (s *Service) startRead(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reads[userID]
	if !ok {
		r = &pendingRead{}
		s.reads[userID] = r
	}
	r.readers++
	return r.writes
}

// endRead reports whether a write landed since startRead returned seen.
func (s *Service) endRead(userID string, seen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.reads[userID]
	stale := r.writes != seen
	if r.readers--; r.readers == 0 {
		delete(s.reads, userID)
	}
	return stale
}

// written marks a completed write. Without a pending read there is nothing to guard.
func (s *Service) written(userID string) {
	s.mu.Lock()
	if r, ok := s.reads[userID]; ok {
		r.writes++
	}
	s.mu.Unlock()
}

func (s *Service) fillCache(userID string, cart *domain.CartDocument, seen uint64) {
	if s.endRead(userID, seen) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, userID, cart); err != nil {
		s.log.Warn("cache set error", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *Service) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("cache invalidate error", zap.String("user_id", userID), zap.Error(err))
	}
}
