package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/trajectory-animator/internal/storage"
)

// ProgressFunc reports frames done and frames total.
type ProgressFunc func() (done, total int)

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger   *slog.Logger
	Progress ProgressFunc
	// StatusFile is rewritten on every tick; empty disables it.
	StatusFile string
	Interval   time.Duration

	// Store and RunID, when set, receive frames-done updates.
	Store storage.Backend
	RunID string
}

// Status is the snapshot written to the status file.
type Status struct {
	RunID   string    `json:"runId,omitempty"`
	Done    int       `json:"done"`
	Total   int       `json:"total"`
	Percent float64   `json:"percent"`
	Elapsed string    `json:"elapsed"`
	ETA     string    `json:"eta"`
	Updated time.Time `json:"updated"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	started   time.Time
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status returns the current progress.
func (s *Service) Status(now time.Time) Status {
	done, total := s.deps.Progress()
	st := Status{RunID: s.deps.RunID, Done: done, Total: total, Updated: now.UTC()}

	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	var elapsed time.Duration
	if !started.IsZero() {
		elapsed = now.Sub(started)
	}
	st.Elapsed = elapsed.Round(time.Second).String()

	if total > 0 {
		st.Percent = float64(done) / float64(total) * 100
	}
	st.ETA = "unknown"
	if done > 0 && total >= done {
		remaining := time.Duration(float64(elapsed) / float64(done) * float64(total-done))
		st.ETA = remaining.Round(time.Second).String()
	}
	return st
}

// Start starts the status monitor goroutine. It stops on Stop or when ctx
// is done.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.started = time.Now()
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	var statusFile *os.File
	if s.deps.StatusFile != "" {
		f, err := os.Create(s.deps.StatusFile)
		if err != nil {
			s.mu.Lock()
			s.isRunning = false
			close(s.done)
			s.mu.Unlock()
			return err
		}
		statusFile = f
	}

	go func() {
		defer func() {
			// final snapshot so the file shows where the render ended
			s.tick(context.Background(), statusFile)
			if statusFile != nil {
				statusFile.Close()
			}
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(s.done)
		}()

		s.deps.Logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx, statusFile)
			}
		}
	}()

	return nil
}

func (s *Service) tick(ctx context.Context, statusFile *os.File) {
	st := s.Status(time.Now())

	if statusFile != nil {
		out, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			s.deps.Logger.Error("Error encoding status", "error", err)
			return
		}
		statusFile.Truncate(0)
		statusFile.Seek(0, 0)
		statusFile.Write(append(out, '\n'))
	}

	if s.deps.Store != nil && s.deps.RunID != "" {
		if err := s.deps.Store.UpdateRun(ctx, s.deps.RunID, st.Done); err != nil {
			s.deps.Logger.Error("Error updating render run", "error", err)
		}
	}

	s.deps.Logger.Debug("Render progress", "done", st.Done, "total", st.Total, "eta", st.ETA)
}

// Stop stops the status monitor and waits for the final snapshot.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	done := s.done
	s.mu.Unlock()
	<-done
}
