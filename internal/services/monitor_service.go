package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/platform/apierr"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/platform/logger"
	"github.com/clearlens/governance-backend/internal/repos"
)

// MetricsSource delivers live drift readings for a monitored model. The real
// source sits next to the serving infrastructure; tests supply a scripted one.
type MetricsSource interface {
	Observe(ctx context.Context, modelCardID uuid.UUID) ([]DriftResult, error)
}

type MonitorStatus struct {
	ModelCardID  uuid.UUID  `json:"model_card_id"`
	AssessmentID uuid.UUID  `json:"assessment_id"`
	Interval     string     `json:"interval"`
	StartedAt    time.Time  `json:"started_at"`
	LastObserved *time.Time `json:"last_observed,omitempty"`
	Observations int        `json:"observations"`
}

// MonitorService runs one cooperative poller goroutine per monitored model.
// Each monitor anchors its drift rows to a dedicated diagnosis assessment so
// findings stay queryable through the normal results API.
type MonitorService interface {
	Start(ctx context.Context, modelCardID uuid.UUID, interval time.Duration) (*MonitorStatus, error)
	Stop(modelCardID uuid.UUID) error
	Status(modelCardID uuid.UUID) (*MonitorStatus, error)
	List() []MonitorStatus
	Close()
}

type monitorEntry struct {
	status MonitorStatus
	cancel context.CancelFunc
	done   chan struct{}
}

type monitorService struct {
	db       *gorm.DB
	log      *logger.Logger
	cards    repos.ModelCardRepo
	diag     repos.DiagnosisAssessmentRepo
	source   MetricsSource

	mu       sync.Mutex
	monitors map[uuid.UUID]*monitorEntry
}

func NewMonitorService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cards repos.ModelCardRepo,
	diag repos.DiagnosisAssessmentRepo,
	source MetricsSource,
) MonitorService {
	return &monitorService{
		db:       db,
		log:      baseLog.With("service", "MonitorService"),
		cards:    cards,
		diag:     diag,
		source:   source,
		monitors: map[uuid.UUID]*monitorEntry{},
	}
}

func (s *monitorService) Start(ctx context.Context, modelCardID uuid.UUID, interval time.Duration) (*MonitorStatus, error) {
	if interval <= 0 {
		interval = time.Minute
	}
	dbc := dbctx.New(ctx)
	card, err := s.cards.GetByID(dbc, modelCardID)
	if err != nil {
		return nil, apierr.Internal("load_model_card", err)
	}
	if card == nil {
		return nil, apierr.NotFound("model_card_not_found", "model card %s not found", modelCardID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.monitors[modelCardID]; running {
		return nil, apierr.Conflict("monitor_already_running", "model %s is already monitored", modelCardID)
	}

	now := time.Now().UTC()
	anchor := &domain.DiagnosisAssessment{
		ID:             uuid.New(),
		Name:           "continuous monitoring: " + card.Name,
		ModelCardID:    modelCardID,
		Status:         domain.AssessmentStatusRunning,
		OwnerUserID:    card.OwnerUserID,
		OrganizationID: card.OrganizationID,
		Config:         mustJSON(map[string]any{"interval_seconds": int(interval.Seconds())}),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.diag.Create(dbc, anchor); err != nil {
		return nil, apierr.Internal("create_monitor_anchor", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	entry := &monitorEntry{
		status: MonitorStatus{
			ModelCardID:  modelCardID,
			AssessmentID: anchor.ID,
			Interval:     interval.String(),
			StartedAt:    now,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.monitors[modelCardID] = entry
	go s.run(runCtx, entry, interval)

	st := entry.status
	return &st, nil
}

func (s *monitorService) run(ctx context.Context, entry *monitorEntry, interval time.Duration) {
	defer close(entry.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.observe(ctx, entry)
		}
	}
}

func (s *monitorService) observe(ctx context.Context, entry *monitorEntry) {
	modelID := entry.status.ModelCardID
	readings, err := s.source.Observe(ctx, modelID)
	if err != nil {
		s.log.Warn("Monitor observation failed", "model_card_id", modelID, "error", err)
		return
	}

	now := time.Now().UTC()
	rows := make([]*domain.DriftDetection, 0, len(readings))
	driftDetected := false
	for _, r := range readings {
		detected := r.DriftScore >= r.Threshold
		if !detected {
			continue
		}
		driftDetected = true
		rows = append(rows, &domain.DriftDetection{
			ID:           uuid.New(),
			AssessmentID: entry.status.AssessmentID,
			FeatureName:  r.FeatureName,
			DriftScore:   r.DriftScore,
			Threshold:    r.Threshold,
			Detected:     true,
			TestName:     r.TestName,
			ObservedAt:   now,
			CreatedAt:    now,
		})
	}

	dbc := dbctx.New(ctx)
	if len(rows) > 0 {
		if err := s.diag.AddDrift(dbc, rows); err != nil {
			s.log.Error("Store drift readings", "model_card_id", modelID, "error", err)
			return
		}
	}
	if driftDetected {
		if err := s.diag.UpdateFields(dbc, entry.status.AssessmentID, map[string]interface{}{
			"drift_detected": true,
		}); err != nil {
			s.log.Warn("Flag drift on monitor anchor", "model_card_id", modelID, "error", err)
		}
	}

	s.mu.Lock()
	entry.status.Observations++
	entry.status.LastObserved = &now
	s.mu.Unlock()
}

func (s *monitorService) Stop(modelCardID uuid.UUID) error {
	s.mu.Lock()
	entry, ok := s.monitors[modelCardID]
	if ok {
		delete(s.monitors, modelCardID)
	}
	s.mu.Unlock()
	if !ok {
		return apierr.NotFound("monitor_not_found", "model %s is not monitored", modelCardID)
	}

	entry.cancel()
	<-entry.done

	dbc := dbctx.New(context.Background())
	if err := s.diag.UpdateFields(dbc, entry.status.AssessmentID, map[string]interface{}{
		"status":       domain.AssessmentStatusCompleted,
		"completed_at": time.Now().UTC(),
	}); err != nil {
		s.log.Warn("Close monitor anchor", "model_card_id", modelCardID, "error", err)
	}
	return nil
}

func (s *monitorService) Status(modelCardID uuid.UUID) (*MonitorStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.monitors[modelCardID]
	if !ok {
		return nil, apierr.NotFound("monitor_not_found", "model %s is not monitored", modelCardID)
	}
	st := entry.status
	return &st, nil
}

func (s *monitorService) List() []MonitorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MonitorStatus, 0, len(s.monitors))
	for _, entry := range s.monitors {
		out = append(out, entry.status)
	}
	return out
}

// Close stops every monitor; used on shutdown.
func (s *monitorService) Close() {
	s.mu.Lock()
	ids := make([]uuid.UUID, 0, len(s.monitors))
	for id := range s.monitors {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		_ = s.Stop(id)
	}
}
