package dispatcher

import (
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

type RateLimitBucket struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// RateLimitMonitor tracks Discord's per-route buckets from response headers
// for calls made outside discordgo's own limiter.
type RateLimitMonitor struct {
	mu      sync.RWMutex
	buckets map[string]*RateLimitBucket
	now     func() time.Time
}

func NewRateLimitMonitor() *RateLimitMonitor {
	return &RateLimitMonitor{
		buckets: make(map[string]*RateLimitBucket),
		now:     time.Now,
	}
}

func (rlm *RateLimitMonitor) CanExecute(route, guildID string) bool {
	rlm.mu.RLock()
	bucket, exists := rlm.buckets[getKey(route, guildID)]
	rlm.mu.RUnlock()

	if !exists || rlm.now().After(bucket.ResetAt) {
		return true
	}
	return bucket.Remaining > 0
}

func (rlm *RateLimitMonitor) UpdateFromFastHTTPResponse(resp *fasthttp.Response, route, guildID string) {
	remaining := string(resp.Header.Peek("X-RateLimit-Remaining"))
	if remaining == "" && resp.StatusCode() != fasthttp.StatusTooManyRequests {
		return
	}

	bucket := &RateLimitBucket{}
	bucket.Remaining, _ = strconv.Atoi(remaining)
	if limit := string(resp.Header.Peek("X-RateLimit-Limit")); limit != "" {
		bucket.Limit, _ = strconv.Atoi(limit)
	}

	// Reset-After is relative and immune to clock skew; prefer it.
	if after := string(resp.Header.Peek("X-RateLimit-Reset-After")); after != "" {
		secs, _ := strconv.ParseFloat(after, 64)
		bucket.ResetAt = rlm.now().Add(time.Duration(secs * float64(time.Second)))
	} else if reset := string(resp.Header.Peek("X-RateLimit-Reset")); reset != "" {
		secs, _ := strconv.ParseFloat(reset, 64)
		bucket.ResetAt = time.Unix(0, int64(secs*float64(time.Second)))
	}

	if resp.StatusCode() == fasthttp.StatusTooManyRequests {
		bucket.Remaining = 0
		if retry := string(resp.Header.Peek("Retry-After")); retry != "" {
			secs, _ := strconv.ParseFloat(retry, 64)
			bucket.ResetAt = rlm.now().Add(time.Duration(secs * float64(time.Second)))
		}
	}

	rlm.mu.Lock()
	rlm.buckets[getKey(route, guildID)] = bucket
	rlm.mu.Unlock()
}

func getKey(route, guildID string) string {
	return route + ":" + guildID
}

func (rlm *RateLimitMonitor) GetBucket(route, guildID string) *RateLimitBucket {
	rlm.mu.RLock()
	defer rlm.mu.RUnlock()
	return rlm.buckets[getKey(route, guildID)]
}
