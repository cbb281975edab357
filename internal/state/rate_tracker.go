package state

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

// RateKey identifies one sliding window.
type RateKey struct {
	GuildID  string
	ActorID  string
	Category models.Category
}

// RateTracker counts events per key over a sliding window. Each key's
// series is only touched inside MapOf.Compute, which locks the key's bucket,
// so updates to one key are serialized while different keys proceed in
// parallel. Series are replaced, never mutated, so readers see a stable slice.
type RateTracker struct {
	windows *xsync.MapOf[RateKey, []time.Time]
	// horizon bounds how long an idle series survives the reaper.
	horizon time.Duration

	// OnReap is called after every sweep with the number of keys removed.
	OnReap func(removed int)

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewRateTracker creates a tracker whose reaper drops timestamps older than
// horizon. horizon must be at least the largest window in use.
func NewRateTracker(horizon time.Duration) *RateTracker {
	return &RateTracker{
		windows: xsync.NewMapOf[RateKey, []time.Time](),
		horizon: horizon,
		stop:    make(chan struct{}),
	}
}

func prune(series []time.Time, now time.Time, window time.Duration, extra int) []time.Time {
	out := make([]time.Time, 0, len(series)+extra)
	for _, t := range series {
		if now.Sub(t) <= window {
			out = append(out, t)
		}
	}
	return out
}

// Record appends at to the key's series, drops entries older than window
// relative to at, and returns the resulting count.
func (rt *RateTracker) Record(key RateKey, at time.Time, window time.Duration) int {
	series, _ := rt.windows.Compute(key, func(old []time.Time, _ bool) ([]time.Time, bool) {
		next := prune(old, at, window, 1)
		return append(next, at), false
	})
	return len(series)
}

// RecordBreach records like Record and, when the count reaches threshold,
// clears the series in the same critical section. Exactly one caller observes
// breached for a given run of events, however many record concurrently.
func (rt *RateTracker) RecordBreach(key RateKey, at time.Time, window time.Duration, threshold int) (count int, breached bool) {
	rt.windows.Compute(key, func(old []time.Time, _ bool) ([]time.Time, bool) {
		next := append(prune(old, at, window, 1), at)
		count = len(next)
		if count >= threshold {
			breached = true
			return nil, true
		}
		return next, false
	})
	return count, breached
}

// Count returns the number of events within window of now without recording.
func (rt *RateTracker) Count(key RateKey, now time.Time, window time.Duration) int {
	series, ok := rt.windows.Load(key)
	if !ok {
		return 0
	}
	n := 0
	for _, t := range series {
		if now.Sub(t) <= window {
			n++
		}
	}
	return n
}

func (rt *RateTracker) Reset(key RateKey) {
	rt.windows.Delete(key)
}

// Len returns the number of live keys.
func (rt *RateTracker) Len() int {
	return rt.windows.Size()
}

// Reap prunes every series against the horizon and deletes empty keys.
func (rt *RateTracker) Reap(now time.Time) int {
	var keys []RateKey
	rt.windows.Range(func(k RateKey, _ []time.Time) bool {
		keys = append(keys, k)
		return true
	})

	removed := 0
	for _, k := range keys {
		rt.windows.Compute(k, func(old []time.Time, loaded bool) ([]time.Time, bool) {
			if !loaded {
				return nil, true
			}
			next := prune(old, now, rt.horizon, 0)
			if len(next) == 0 {
				removed++
				return nil, true
			}
			return next, false
		})
	}
	return removed
}

// Start runs the reaper every interval until Stop or ctx is done.
func (rt *RateTracker) Start(ctx context.Context, interval time.Duration) {
	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-rt.stop:
				return
			case now := <-ticker.C:
				n := rt.Reap(now)
				if rt.OnReap != nil {
					rt.OnReap(n)
				}
			}
		}
	}()
}

func (rt *RateTracker) Stop() {
	rt.stopOnce.Do(func() { close(rt.stop) })
	rt.wg.Wait()
}
