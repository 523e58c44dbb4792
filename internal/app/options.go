package service

import (
	"time"

	"github.com/okian/diarisk/internal/adapters/narrator"
	"github.com/okian/diarisk/internal/adapters/repository"
	"github.com/okian/diarisk/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of report workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the report job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the submission guard.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDedupeWindow sets how long a submission key suppresses repeats.
func WithDedupeWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.dedupeWindow = d
		}
	}
}

// WithMaxDatasetRows caps rows per analyzed dataset.
func WithMaxDatasetRows(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxDatasetRows = n
		}
	}
}

// WithModelWeights overrides weights of the risk model.
func WithModelWeights(weights map[string]float64) Option {
	return func(s *Service) {
		s.modelWeights = weights
	}
}

// WithStore sets the history store. backend names it in stats. The service
// closes the store on Stop.
func WithStore(store repository.Store, backend string) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.storeBackend = backend
		}
	}
}

// WithNarrator sets the report narrator. A nil narrator disables reports and
// every assessment is stored with status skipped.
func WithNarrator(n narrator.Narrator) Option {
	return func(s *Service) {
		s.narrator = n
	}
}

// WithJobTimeout bounds one narration.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the UUID generator for assessment ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}
