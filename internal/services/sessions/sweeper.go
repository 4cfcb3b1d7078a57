package sessions

import (
	"context"
	"time"

	"github.com/ternarybob/redactiq/internal/common"
)

// Sweep deletes sessions older than ttl and returns how many were removed
func (s *Service) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	ids, err := s.storage.DeleteOlderThan(ctx, time.Now().Add(-ttl))
	for _, id := range ids {
		s.dropCache(id)
	}
	if err != nil {
		s.logger.Warn().Err(err).Int("removed", len(ids)).Msg("Session sweep incomplete")
		return len(ids), err
	}

	if len(ids) > 0 {
		s.logger.Info().Int("removed", len(ids)).Str("ttl", ttl.String()).Msg("Expired sessions removed")
	}
	return len(ids), nil
}

// StartSweeper removes expired sessions every interval until ctx is done
func (s *Service) StartSweeper(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 || interval <= 0 {
		s.logger.Debug().Msg("Session sweeper disabled")
		return
	}

	common.SafeGo(s.logger, "sessionSweeper", func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = s.Sweep(ctx, ttl)
			}
		}
	})

	s.logger.Debug().
		Str("ttl", ttl.String()).
		Str("interval", interval.String()).
		Msg("Session sweeper started")
}
