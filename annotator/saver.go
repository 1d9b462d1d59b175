package annotator

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const saveTimeout = 15 * time.Second

type saveJob struct {
	ctx      context.Context
	provider string
}

// saver writes click selections from its own goroutine so a slow store
// never holds the page loop. Only the latest unsaved choice is kept: a
// click made while a write is in flight replaces any queued one.
type saver struct {
	save   func(ctx context.Context, provider string) error
	logger *slog.Logger

	mu      sync.Mutex
	next    *saveJob
	running bool
	idle    sync.WaitGroup
}

// enqueue schedules provider for writing. The write outlives ctx's
// cancellation (a sign-in click usually navigates away) but keeps its
// values, and is bounded by saveTimeout.
func (s *saver) enqueue(ctx context.Context, provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = &saveJob{ctx: context.WithoutCancel(ctx), provider: provider}
	if !s.running {
		s.running = true
		s.idle.Add(1)
		go s.work()
	}
}

func (s *saver) work() {
	defer s.idle.Done()
	for {
		s.mu.Lock()
		job := s.next
		s.next = nil
		if job == nil {
			s.running = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(job.ctx, saveTimeout)
		err := s.save(ctx, job.provider)
		cancel()
		if err != nil {
			s.logger.Warn("annotator: save selection", "provider", job.provider, "error", err)
			continue
		}
		s.logger.Debug("annotator: selection saved", "provider", job.provider)
	}
}

// wait blocks until no write is pending. It must be called from the
// goroutine that calls enqueue.
func (s *saver) wait() { s.idle.Wait() }
