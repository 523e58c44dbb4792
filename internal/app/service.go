// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/diarisk/internal/adapters/dataset"
	reportqueue "github.com/okian/diarisk/internal/adapters/mq/queue"
	workerpool "github.com/okian/diarisk/internal/adapters/mq/worker"
	"github.com/okian/diarisk/internal/adapters/narrator"
	"github.com/okian/diarisk/internal/adapters/repository"
	"github.com/okian/diarisk/internal/domain/dedupe"
	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/internal/domain/scoring"
	"github.com/okian/diarisk/internal/domain/types"
	"github.com/okian/diarisk/pkg/logger"
	"github.com/okian/diarisk/pkg/metrics"
)

const (
	stopTimeout = 30 * time.Second
	// backpressureReason is recorded on assessments whose report job was
	// rejected by a full queue.
	backpressureReason = "backpressure"
)

// Service implements the API dependencies for the risk service.
type Service struct {
	mu sync.RWMutex

	// Core components
	engine   *scoring.Engine
	analyzer *dataset.Analyzer
	store    repository.Store
	deduper  dedupe.Deduper
	queue    reportqueue.Queue
	pool     *workerpool.Pool
	narrator narrator.Narrator

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	dedupeWindow   time.Duration
	maxDatasetRows int
	modelWeights   map[string]float64
	storeBackend   string
	jobTimeout     time.Duration
	now            func() time.Time
	newID          func() string

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// New constructs a Service. Without WithStore it keeps assessments in memory.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU(),
		queueSize:      reportqueue.DefaultCapacity,
		dedupeSize:     dedupe.DefaultMaxSize,
		dedupeWindow:   dedupe.DefaultWindow,
		maxDatasetRows: dataset.DefaultMaxRows,
		jobTimeout:     30 * time.Second,
		now:            time.Now,
		newID:          func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore(repository.WithClock(s.now))
		s.storeBackend = "memory"
	}
	return s
}

// Start builds the engine and starts the report workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	var engineOpts []scoring.Option
	if len(s.modelWeights) > 0 {
		m, err := scoring.ModelV1().WithWeights(s.modelWeights)
		if err != nil {
			return fmt.Errorf("model weights: %w", err)
		}
		engineOpts = append(engineOpts, scoring.WithModel(m))
	}
	engine, err := scoring.NewEngine(engineOpts...)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	s.engine = engine
	s.analyzer = dataset.NewAnalyzer(engine, dataset.WithMaxRows(s.maxDatasetRows))
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
		dedupe.WithWindow(s.dedupeWindow),
		dedupe.WithClock(s.now),
	)
	s.queue = reportqueue.NewInMemoryQueue(
		reportqueue.WithCapacity(s.queueSize),
		reportqueue.WithClock(s.now),
	)

	if s.narrator != nil {
		s.pool = workerpool.NewPool(s.workerCount, s.queue, s.narrator, s.store,
			workerpool.WithJobTimeout(s.jobTimeout))
		// Workers outlive ctx so Stop can drain the queue.
		s.pool.Start(context.WithoutCancel(ctx))
	}

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "risk service started",
		logger.String("model", engine.Model().Version),
		logger.String("store", s.storeBackend),
		logger.String("narrator", s.narratorName()),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains pending report jobs, then closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping risk service...")
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "report workers did not drain", logger.Error(err))
		}
		s.pool = nil
	} else {
		_ = s.queue.Close()
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "close store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "risk service stopped")
}

func (s *Service) narratorName() string {
	if s.narrator == nil {
		return "none"
	}
	return s.narrator.Name()
}

// assess scores m and records scoring metrics. Callers hold s.mu.
func (s *Service) assess(m model.HealthMetrics) (scoring.Assessment, error) {
	if !s.started {
		return scoring.Assessment{}, ErrNotStarted
	}
	if err := m.Validate(); err != nil {
		metrics.RecordAssessmentInvalid()
		return scoring.Assessment{}, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}

	start := time.Now()
	a, err := s.engine.Assess(m)
	if err != nil {
		metrics.RecordAssessmentInvalid()
		return scoring.Assessment{}, err
	}
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	if a.Degenerate() {
		metrics.RecordAssessmentDegenerate()
	} else {
		metrics.RecordAssessmentScored(a.RiskScore, string(a.RiskBand))
	}
	return a, nil
}

// Score runs the engine without storing anything.
func (s *Service) Score(_ context.Context, m model.HealthMetrics) (types.ScoreResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := s.assess(m)
	if err != nil {
		return types.ScoreResponse{}, err
	}
	return types.NewScoreResponse(a), nil
}

// Submit scores and stores a submission, then enqueues its report job.
// key is the client's idempotency key; when empty a fingerprint of the user
// and metrics is used. A repeat inside the dedupe window returns the first
// assessment with StatusDuplicate.
func (s *Service) Submit(ctx context.Context, userID, key string, req types.AssessmentRequest) (types.AssessmentResponse, error) {
	const op = "service.submit"
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return types.AssessmentResponse{}, fmt.Errorf("%s: %w", op, types.ErrMissingUser)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.assess(req.HealthMetrics)
	if err != nil {
		return types.AssessmentResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	dkey := dedupe.Fingerprint(userID, req.HealthMetrics)
	if key != "" {
		dkey = userID + "\x00" + key
	}
	id := s.newID()
	if existing, dup := s.deduper.SeenAndRecord(ctx, dkey, id); dup {
		metrics.RecordSubmissionDuplicate()
		return s.duplicate(ctx, userID, existing)
	}

	now := s.now()
	a := model.Assessment{
		ID:                id,
		UserID:            userID,
		PatientName:       strings.TrimSpace(req.PatientName),
		Input:             req.HealthMetrics.Clone(),
		RiskScore:         res.RiskScore,
		RiskBand:          res.RiskBand,
		ConfidenceScore:   res.ConfidenceScore,
		KeyFactors:        res.KeyFactors,
		ShapValues:        res.ShapValues,
		HealthSuggestions: res.HealthSuggestions,
		ModelVersion:      res.ModelVersion,
		ReportStatus:      model.ReportPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	// Insufficient data gets no narrative.
	narrate := s.narrator != nil && !res.Degenerate()
	if !narrate {
		a.ReportStatus = model.ReportSkipped
		metrics.RecordReport(string(model.ReportSkipped))
	}

	if err := s.store.Save(ctx, a); err != nil {
		s.deduper.Unrecord(ctx, dkey)
		return types.AssessmentResponse{}, fmt.Errorf("%s: save: %w", op, err)
	}

	if narrate {
		job := model.ReportJob{AssessmentID: a.ID, UserID: userID, Input: a.NarrativeInput()}
		if !s.queue.Enqueue(ctx, job) {
			s.deduper.Unrecord(ctx, dkey)
			if err := s.store.MarkReportFailed(ctx, a.ID, backpressureReason); err != nil {
				s.logger.Warn(ctx, "mark rejected report", logger.String("assessmentID", a.ID), logger.Error(err))
			}
			metrics.RecordReport(string(model.ReportFailed))
			return types.AssessmentResponse{}, fmt.Errorf("%s: %w", op, types.ErrBackpressure)
		}
	}

	s.logger.Debug(ctx, "assessment accepted",
		logger.String("assessmentID", a.ID),
		logger.String("userID", userID),
		logger.Int("riskScore", a.RiskScore),
	)
	return types.AssessmentResponse{Status: types.StatusAccepted, Assessment: a}, nil
}

// duplicate loads the assessment a repeated submission refers to. The first
// submission may still be saving, in which case only the id is known.
func (s *Service) duplicate(ctx context.Context, userID, id string) (types.AssessmentResponse, error) {
	a, err := s.store.Get(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		a = model.Assessment{ID: id, UserID: userID, ReportStatus: model.ReportPending}
	case err != nil:
		return types.AssessmentResponse{}, fmt.Errorf("service.submit: load duplicate: %w", err)
	}
	return types.AssessmentResponse{Status: types.StatusDuplicate, Assessment: a}, nil
}

// Assessment returns one assessment owned by userID.
func (s *Service) Assessment(ctx context.Context, userID, id string) (model.Assessment, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Assessment{}, err
	}
	if a.UserID != userID {
		return model.Assessment{}, fmt.Errorf("assessment %s: %w", id, types.ErrForbidden)
	}
	return a, nil
}

// History lists userID's assessments newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]model.Assessment, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, types.ErrMissingUser
	}
	return s.store.History(ctx, userID, limit)
}

// AnalyzeDataset scores a CSV or XLSX dataset.
func (s *Service) AnalyzeDataset(ctx context.Context, r io.Reader, f dataset.Format) (dataset.Report, error) {
	s.mu.RLock()
	analyzer := s.analyzer
	s.mu.RUnlock()
	if analyzer == nil {
		return dataset.Report{}, ErrNotStarted
	}
	return analyzer.Analyze(ctx, r, f)
}

// Model returns the active model table, or ModelV1 before Start.
func (s *Service) Model() scoring.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return scoring.ModelV1()
	}
	return s.engine.Model()
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := types.Stats{
		QueueCapacity: s.queueSize,
		StoreBackend:  s.storeBackend,
		Narrator:      s.narratorName(),
		StartedAt:     s.startedAt,
	}
	if !s.started {
		return st
	}

	st.StoredAssessments = s.store.Count(ctx)
	st.QueueLength = s.queue.Len(ctx)
	st.DedupeSize = s.deduper.Size()
	st.ModelVersion = s.engine.Model().Version
	if s.pool != nil {
		st.Workers = s.pool.Size()
	}

	metrics.UpdateQueueSize(st.QueueLength)
	metrics.UpdateStoreRecords(st.StoredAssessments)
	return st
}
