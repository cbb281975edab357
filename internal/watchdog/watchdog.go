package watchdog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eryxsegithub/TheStudioBot/internal/logging"
	"github.com/eryxsegithub/TheStudioBot/internal/metrics"
)

// Watchdog flags background loops that stopped sending heartbeats.
type Watchdog struct {
	mu            sync.RWMutex
	components    map[string]*ComponentHealth
	checkInterval time.Duration
	now           func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

type ComponentHealth struct {
	Name          string
	LastHeartbeat time.Time
	Healthy       bool
	Threshold     time.Duration
}

func NewWatchdog(checkInterval time.Duration) *Watchdog {
	return &Watchdog{
		components:    make(map[string]*ComponentHealth),
		checkInterval: checkInterval,
		now:           time.Now,
		stop:          make(chan struct{}),
	}
}

// RegisterComponent starts tracking name. A component is unhealthy once
// threshold passes without a heartbeat.
func (w *Watchdog) RegisterComponent(name string, threshold time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.components[name] = &ComponentHealth{
		Name:          name,
		LastHeartbeat: w.now(),
		Healthy:       true,
		Threshold:     threshold,
	}
	metrics.ComponentHealthy.WithLabelValues(name).Set(1)
}

func (w *Watchdog) Heartbeat(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	comp, exists := w.components[name]
	if !exists {
		return
	}
	comp.LastHeartbeat = w.now()
	if !comp.Healthy {
		logging.Info("Watchdog: %s recovered", name)
		metrics.ComponentHealthy.WithLabelValues(name).Set(1)
	}
	comp.Healthy = true
}

// Beat returns a heartbeat callback bound to name.
func (w *Watchdog) Beat(name string) func() {
	return func() { w.Heartbeat(name) }
}

func (w *Watchdog) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case <-ticker.C:
				w.CheckAll()
			}
		}
	}()
}

func (w *Watchdog) CheckAll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	for name, comp := range w.components {
		elapsed := now.Sub(comp.LastHeartbeat)
		if elapsed > comp.Threshold && comp.Healthy {
			comp.Healthy = false
			metrics.ComponentHealthy.WithLabelValues(name).Set(0)
			logging.Error("Watchdog: %s unhealthy (no heartbeat for %v)", name, elapsed.Round(time.Second))
		}
	}
}

func (w *Watchdog) IsHealthy(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	comp, exists := w.components[name]
	return exists && comp.Healthy
}

func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.wg.Wait()
}

// GetStatus returns every component's health, sorted by name.
func (w *Watchdog) GetStatus() []ComponentHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]ComponentHealth, 0, len(w.components))
	for _, comp := range w.components {
		out = append(out, *comp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (w *Watchdog) AllHealthy() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, comp := range w.components {
		if !comp.Healthy {
			return false
		}
	}
	return true
}
