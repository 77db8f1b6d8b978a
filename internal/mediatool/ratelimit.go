package mediatool

import (
	"context"

	"golang.org/x/time/rate"
)

// SpawnLimiter throttles subprocess creation so a burst of queued jobs
// doesn't fork an unbounded number of ffmpeg/ffprobe processes at once —
// distinct from the job dispatcher's worker-count cap, which bounds
// concurrent jobs, not concurrent spawns within a single job's retries.
type SpawnLimiter struct {
	limiter *rate.Limiter
}

// NewSpawnLimiter allows up to burst immediate spawns, refilling at
// ratePerSec afterward.
func NewSpawnLimiter(ratePerSec float64, burst int) *SpawnLimiter {
	return &SpawnLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Wait blocks until a spawn token is available or ctx is cancelled.
func (s *SpawnLimiter) Wait(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}
