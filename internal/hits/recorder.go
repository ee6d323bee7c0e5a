// Package hits counts endpoint hits at most once per logical request.
package hits

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Annany2002/nebula-apibuilder/internal/logger"
	"github.com/Annany2002/nebula-apibuilder/internal/metrics"
)

var (
	customLog = logger.NewLogger()
)

// HitIncrementer atomically adds one to an endpoint's hit counter.
type HitIncrementer interface {
	IncrementHits(ctx context.Context, endpointID int64) error
}

// Deduper remembers which request keys were already counted.
type Deduper interface {
	// Claim reports true the first time key is seen within the retention window.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets key so a later Claim succeeds again.
	Release(ctx context.Context, key string) error
}

// Recorder is the single place hits are counted.
type Recorder struct {
	counter HitIncrementer
	dedup   Deduper
}

// NewRecorder creates a recorder that increments through counter and deduplicates through dedup.
func NewRecorder(counter HitIncrementer, dedup Deduper) *Recorder {
	return &Recorder{counter: counter, dedup: dedup}
}

// Record counts one hit for endpointID unless requestID was already counted for it.
// An empty requestID cannot be deduplicated and always counts. When the dedup store
// is unreachable the hit is counted without deduplication.
func (r *Recorder) Record(ctx context.Context, endpointID int64, requestID string) (bool, error) {
	key := ""
	result := metrics.HitCounted
	if requestID != "" {
		key = strconv.FormatInt(endpointID, 10) + ":" + requestID
		claimed, err := r.dedup.Claim(ctx, key)
		switch {
		case err != nil:
			customLog.Warnf("Hits: Dedup store unavailable for request '%s' on endpoint %d, counting without dedup: %v", requestID, endpointID, err)
			key = ""
			result = metrics.HitUndeduplicated
		case !claimed:
			customLog.Debugf("Hits: Request '%s' already counted for endpoint %d", requestID, endpointID)
			metrics.ObserveHit(metrics.HitDuplicate)
			return false, nil
		}
	}

	if err := r.counter.IncrementHits(ctx, endpointID); err != nil {
		metrics.ObserveHit(metrics.HitFailed)
		if key != "" {
			if relErr := r.dedup.Release(ctx, key); relErr != nil {
				customLog.Warnf("Hits: Failed to release request '%s' for endpoint %d: %v", requestID, endpointID, relErr)
			}
		}
		return false, fmt.Errorf("failed to increment hits: %w", err)
	}
	metrics.ObserveHit(result)
	return true, nil
}
