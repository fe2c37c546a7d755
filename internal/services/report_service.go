package services

import (
	"github.com/google/uuid"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/platform/apierr"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/platform/logger"
	"github.com/clearlens/governance-backend/internal/repos"
)

// ReportService submits evidence-pack generation work; the pack itself is
// assembled by the report_generation job handler in the worker.
type ReportService interface {
	SubmitEvidencePack(dbc dbctx.Context, modelCardID uuid.UUID) (*domain.Job, error)
}

type reportService struct {
	log   *logger.Logger
	cards repos.ModelCardRepo
	jobs  JobService
}

func NewReportService(baseLog *logger.Logger, cards repos.ModelCardRepo, jobs JobService) ReportService {
	return &reportService{
		log:   baseLog.With("service", "ReportService"),
		cards: cards,
		jobs:  jobs,
	}
}

func (s *reportService) SubmitEvidencePack(dbc dbctx.Context, modelCardID uuid.UUID) (*domain.Job, error) {
	card, err := s.cards.GetByID(dbc, modelCardID)
	if err != nil {
		return nil, apierr.Internal("load_model_card", err)
	}
	if card == nil {
		return nil, apierr.NotFound("model_card_not_found", "model card %s not found", modelCardID)
	}
	if err := authorizeOwned(dbc.Ctx, card.OwnerUserID, card.OrganizationID, "model card"); err != nil {
		return nil, err
	}

	return s.jobs.Submit(dbc, SubmitJobInput{
		Name:    "evidence pack: " + card.Name,
		JobType: domain.JobTypeReportGeneration,
		Parameters: map[string]any{
			"model_card_id": card.ID.String(),
		},
		OwnerUserID:    card.OwnerUserID,
		OrganizationID: card.OrganizationID,
	})
}
