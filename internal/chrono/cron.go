// Package chrono schedules the recurring poll tick on top of
// github.com/robfig/cron/v3.
package chrono

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

const (
	MinIntervalMinutes = 1
	MaxIntervalMinutes = 60
)

// Scheduler runs at most one registered job at a fixed minute interval.
type Scheduler struct {
	cron *cron.Cron

	mu         sync.Mutex
	entry      cron.EntryID
	registered bool
}

func NewScheduler() *Scheduler {
	cronner := cron.New(cron.WithLogger(slogCronLogger{}))
	cronner.Start()
	return &Scheduler{cron: cronner}
}

// Register replaces any existing job with one firing every `minutes`
// minutes. the interval is clamped to [MinIntervalMinutes,
// MaxIntervalMinutes] rather than rejected, a bad stored preference
// should not kill polling.
func (s *Scheduler) Register(minutes int, tick func()) error {
	if minutes < MinIntervalMinutes {
		minutes = MinIntervalMinutes
	}
	if minutes > MaxIntervalMinutes {
		minutes = MaxIntervalMinutes
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registered {
		s.cron.Remove(s.entry)
		s.registered = false
	}
	entry, err := s.cron.AddFunc(fmt.Sprintf("@every %dm", minutes), tick)
	if err != nil {
		return fmt.Errorf("register poll job: %w", err)
	}
	s.entry = entry
	s.registered = true
	return nil
}

// Unregister removes the job if one is registered. idempotent.
func (s *Scheduler) Unregister() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registered {
		s.cron.Remove(s.entry)
		s.registered = false
	}
}

// Stop halts the scheduler. already-running jobs finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

type slogCronLogger struct{}

func (l slogCronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug(fmt.Sprintf("cron: %s", msg), keysAndValues...)
}

func (l slogCronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error(fmt.Sprintf("cron: %s", msg), append([]any{"err", err}, keysAndValues...)...)
}
