package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/tramsim/consist/internal/dispatcher"
	"github.com/tramsim/consist/internal/logging"
	"github.com/tramsim/consist/internal/otel"
	"github.com/tramsim/consist/internal/session"
	"github.com/tramsim/consist/internal/worker"
)

// StatusFileName is written into Dependencies.StatusDir.
const StatusFileName = "status.json"

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager    *logging.SlogManager
	Session       *session.Context
	WorkerManager *worker.Manager
	OTel          *otel.Provider // optional
	StatusDir     string
	Interval      time.Duration
}

// Status is one observation of the running simulation.
type Status struct {
	Time                time.Time        `json:"time"`
	SessionID           string           `json:"sessionId,omitempty"`
	Session             string           `json:"session"`
	Active              bool             `json:"active"`
	Tick                int              `json:"tick"`
	Cars                int              `json:"cars"`
	Links               int              `json:"links"`
	InFlight            int              `json:"inFlight"`
	PendingWrites       int              `json:"pendingWrites"`
	LastWriteDurationMs float32          `json:"lastWriteDurationMs"`
	Counters            map[string]int64 `json:"counters,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus collects the current status.
func (s *Service) GetStatus(ctx context.Context) Status {
	st := Status{Time: time.Now()}

	if s.deps.Session != nil {
		sess := s.deps.Session.Get()
		st.SessionID = sess.ID
		st.Session = sess.Name
		st.Active = s.deps.Session.Active()
	}

	if w := s.deps.WorkerManager; w != nil {
		st.Tick = w.Tick()
		st.PendingWrites = w.Pending()
		st.LastWriteDurationMs = float32(w.GetLastDBWriteDuration().Microseconds()) / 1000
		if c := w.Consist(); c != nil {
			st.Cars = len(c.Cars())
			st.Links = len(c.Transport().Links())
			st.InFlight = c.Transport().Pending()
		}
	}

	if s.deps.OTel != nil && s.deps.OTel.Enabled() {
		rm, err := s.deps.OTel.Collect(ctx)
		if err != nil {
			s.deps.LogManager.Logger().Error("Failed to collect metrics", "error", err)
		} else {
			st.Counters = sums(rm)
		}
	}
	return st
}

// sums flattens every int64 sum to its total over all attribute sets.
func sums(rm metricdata.ResourceMetrics) map[string]int64 {
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				out[m.Name] += dp.Value
			}
		}
	}
	return out
}

// HandleStatus answers the :STATUS: command with the status as JSON.
func (s *Service) HandleStatus(e dispatcher.Event) (any, error) {
	b, err := json.Marshal(s.GetStatus(context.Background()))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status: %w", err)
	}
	return string(b), nil
}

// WriteStatusFile replaces the status file with the current status.
func (s *Service) WriteStatusFile(ctx context.Context) error {
	b, err := json.MarshalIndent(s.GetStatus(ctx), "", "  ")
	if err != nil {
		b = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
	}
	path := filepath.Join(s.deps.StatusDir, StatusFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0644); err != nil {
		return fmt.Errorf("error writing status file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(s.deps.StatusDir, 0755); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("error creating status directory: %w", err)
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "dir", s.deps.StatusDir)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if s.deps.Session != nil && !s.deps.Session.Active() {
					continue
				}
				if err := s.WriteStatusFile(context.Background()); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
