package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/dimitrije/teamforge/internal/logging"
	"github.com/dimitrije/teamforge/internal/models"
)

// Service answers verification questions through the cache and keeps the
// cache coherent by invalidating on every write.
type Service struct {
	dir    *Directory
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewService(dir *Directory, cache Cache, ttl time.Duration, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{dir: dir, cache: cache, ttl: ttl, logger: logging.OrDefault(logger)}
}

func (s *Service) IsVerified(ctx context.Context, userID string) (bool, error) {
	if v, ok := s.cache.Verified(ctx, userID); ok {
		return v, nil
	}

	gen, cacheable := s.cache.Generation(ctx, userID)
	v, err := s.dir.IsVerified(ctx, userID)
	if err != nil {
		return false, err
	}
	if cacheable {
		s.cache.SetVerified(ctx, userID, v, s.ttl, gen)
	}
	return v, nil
}

func (s *Service) VerifiedProfile(ctx context.Context, userID string) (*models.Profile, error) {
	return s.dir.VerifiedProfile(ctx, userID)
}

func (s *Service) MarkVerified(ctx context.Context, p *models.Profile) error {
	if err := s.dir.MarkVerified(ctx, p); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, p.UserID)
	s.logger.Info("user verified", "user_id", p.UserID)
	return nil
}

// Unverify drops the user's verification and reports whether one existed.
func (s *Service) Unverify(ctx context.Context, userID string) (bool, error) {
	removed, err := s.dir.Unverify(ctx, userID)
	if err != nil {
		return false, err
	}
	s.cache.Invalidate(ctx, userID)
	if removed {
		s.logger.Info("user unverified", "user_id", userID)
	}
	return removed, nil
}

func (s *Service) VerifiedCount(ctx context.Context) (int, error) {
	if n, ok := s.cache.Count(ctx); ok {
		return n, nil
	}

	gen, cacheable := s.cache.CountGeneration(ctx)
	n, err := s.dir.CountVerified(ctx)
	if err != nil {
		return 0, err
	}
	if cacheable {
		s.cache.SetCount(ctx, n, s.ttl, gen)
	}
	return n, nil
}
