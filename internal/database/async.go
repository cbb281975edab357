package database

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eryxsegithub/TheStudioBot/internal/logging"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

// AuditWriter queues audit entries from the detection path and writes them
// from one goroutine. Enqueue never blocks; entries are dropped when the
// queue is full.
type AuditWriter struct {
	store   Store
	queue   chan models.AuditEntry
	dropped atomic.Uint64
	written atomic.Uint64

	// OnFlush is called after every write attempt, used as a liveness beat.
	OnFlush func()

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewAuditWriter(store Store, size int) *AuditWriter {
	if size <= 0 {
		size = 1024
	}
	return &AuditWriter{
		store: store,
		queue: make(chan models.AuditEntry, size),
		done:  make(chan struct{}),
	}
}

func (w *AuditWriter) Enqueue(entry models.AuditEntry) bool {
	select {
	case w.queue <- entry:
		return true
	default:
		w.dropped.Add(1)
		logging.Warn("Audit queue full, dropping %s entry for guild %s", entry.Action, entry.GuildID)
		return false
	}
}

func (w *AuditWriter) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *AuditWriter) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case entry := <-w.queue:
			w.write(entry)
		case <-ticker.C:
			w.beat()
		case <-w.done:
			for {
				select {
				case entry := <-w.queue:
					w.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (w *AuditWriter) write(entry models.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.store.AppendAudit(ctx, entry); err != nil {
		logging.Error("Failed to persist audit entry for guild %s: %v", entry.GuildID, err)
	} else {
		w.written.Add(1)
	}
	w.beat()
}

func (w *AuditWriter) beat() {
	if w.OnFlush != nil {
		w.OnFlush()
	}
}

// Stop drains the queue and waits for the writer to exit.
func (w *AuditWriter) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
}

func (w *AuditWriter) Dropped() uint64 {
	return w.dropped.Load()
}

func (w *AuditWriter) Written() uint64 {
	return w.written.Load()
}
