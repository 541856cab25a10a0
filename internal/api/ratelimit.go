package api

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"grimm.is/wanboard/internal/errors"
)

const limiterCleanupInterval = 10 * time.Minute

// limitMutations rejects a client that exceeds the configured mutation rate
// with 429 and a Retry-After header. Without a limiter it is a no-op.
func (s *Server) limitMutations(next http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		ok, retry := s.limiter.Allow(ip)
		if ok {
			next(w, r)
			return
		}

		secs := int(math.Ceil(retry.Seconds()))
		s.logger.Warn("mutation rate limited", "client_ip", ip, "path", r.URL.Path, "retry_after", secs)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		err := errors.Attr(errors.New(errors.KindRateLimited, "too many requests"), "retry_after", secs)
		writeFail(w, r, err, nil)
	}
}

func (s *Server) cleanupLimiter(ctx context.Context) {
	ticker := s.clock.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if n := s.limiter.CleanupExpired(limiterCleanupInterval); n > 0 {
				s.logger.Debug("rate limiter cleanup", "removed", n)
			}
		}
	}
}
