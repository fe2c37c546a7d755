package services

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/platform/apierr"
	"github.com/clearlens/governance-backend/internal/platform/ctxutil"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/platform/logger"
	"github.com/clearlens/governance-backend/internal/repos"
)

type CreateDataSourceInput struct {
	Name             string
	SourceType       string
	Description      string
	ConnectionConfig map[string]any
}

type AddSchemaMappingInput struct {
	SourceColumn string
	TargetField  string
	DataType     string
}

type AddValidationInput struct {
	RuleName string
	Passed   bool
	Detail   map[string]any
}

type AddProtectedAttributeInput struct {
	AttributeName    string
	PrivilegedValues []string
}

type DataSourceService interface {
	Create(dbc dbctx.Context, in CreateDataSourceInput) (*domain.DataSource, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*domain.DataSource, error)
	List(dbc dbctx.Context, filter repos.DataSourceFilter) ([]*domain.DataSource, int64, error)
	Update(dbc dbctx.Context, id uuid.UUID, updates map[string]any) (*domain.DataSource, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error

	AddSchemaMapping(dbc dbctx.Context, id uuid.UUID, in AddSchemaMappingInput) (*domain.SchemaMapping, error)
	ListSchemaMappings(dbc dbctx.Context, id uuid.UUID) ([]*domain.SchemaMapping, error)
	AddValidation(dbc dbctx.Context, id uuid.UUID, in AddValidationInput) (*domain.DataValidation, error)
	ListValidations(dbc dbctx.Context, id uuid.UUID) ([]*domain.DataValidation, error)
	AddProtectedAttribute(dbc dbctx.Context, id uuid.UUID, in AddProtectedAttributeInput) (*domain.ProtectedAttributeConfig, error)
	ListProtectedAttributes(dbc dbctx.Context, id uuid.UUID) ([]*domain.ProtectedAttributeConfig, error)
}

type dataSourceService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.DataSourceRepo
}

func NewDataSourceService(db *gorm.DB, baseLog *logger.Logger, repo repos.DataSourceRepo) DataSourceService {
	return &dataSourceService{
		db:   db,
		log:  baseLog.With("service", "DataSourceService"),
		repo: repo,
	}
}

func knownSourceType(t string) bool {
	switch t {
	case "s3", "azure_blob", "sharepoint", "api", "upload":
		return true
	default:
		return false
	}
}

var dataSourceUpdatableFields = map[string]bool{
	"name":              true,
	"description":       true,
	"status":            true,
	"connection_config": true,
}

func (s *dataSourceService) Create(dbc dbctx.Context, in CreateDataSourceInput) (*domain.DataSource, error) {
	if in.Name == "" {
		return nil, apierr.Validation("missing_name", "missing data source name")
	}
	if !knownSourceType(in.SourceType) {
		return nil, apierr.Validation("unsupported_source_type", "unsupported source_type %q", in.SourceType)
	}
	var owner, org uuid.UUID
	if rd := ctxutil.GetRequestData(dbc.Ctx); rd != nil {
		owner = rd.UserID
		org = rd.OrganizationID
	}
	if owner == uuid.Nil {
		return nil, apierr.Validation("missing_owner", "missing owner_user_id")
	}

	now := time.Now().UTC()
	ds := &domain.DataSource{
		ID:               uuid.New(),
		Name:             in.Name,
		SourceType:       in.SourceType,
		Status:           "registered",
		OwnerUserID:      owner,
		OrganizationID:   org,
		ConnectionConfig: mustJSON(in.ConnectionConfig),
		Description:      in.Description,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(dbc, ds); err != nil {
		return nil, apierr.Internal("create_data_source", err)
	}
	return ds, nil
}

func (s *dataSourceService) Get(dbc dbctx.Context, id uuid.UUID) (*domain.DataSource, error) {
	ds, err := s.repo.GetByID(dbc, id)
	if err != nil {
		return nil, apierr.Internal("load_data_source", err)
	}
	if ds == nil {
		return nil, apierr.NotFound("data_source_not_found", "data source %s not found", id)
	}
	if err := authorizeOwned(dbc.Ctx, ds.OwnerUserID, ds.OrganizationID, "data source"); err != nil {
		return nil, err
	}
	return ds, nil
}

func (s *dataSourceService) List(dbc dbctx.Context, filter repos.DataSourceFilter) ([]*domain.DataSource, int64, error) {
	if rd := ctxutil.GetRequestData(dbc.Ctx); rd != nil {
		if filter.OrganizationID == uuid.Nil && rd.OrganizationID != uuid.Nil {
			filter.OrganizationID = rd.OrganizationID
		} else if filter.OwnerUserID == uuid.Nil && rd.OrganizationID == uuid.Nil {
			filter.OwnerUserID = rd.UserID
		}
	}
	out, total, err := s.repo.List(dbc, filter)
	if err != nil {
		return nil, 0, apierr.Internal("list_data_sources", err)
	}
	return out, total, nil
}

func (s *dataSourceService) Update(dbc dbctx.Context, id uuid.UUID, updates map[string]any) (*domain.DataSource, error) {
	if len(updates) == 0 {
		return nil, apierr.Validation("empty_update", "no fields to update")
	}
	fields := map[string]interface{}{}
	for k, v := range updates {
		if !dataSourceUpdatableFields[k] {
			return nil, apierr.Validation("unknown_field", "field %q is not updatable", k)
		}
		if k == "connection_config" {
			fields[k] = mustJSON(v)
		} else {
			fields[k] = v
		}
	}
	if _, err := s.Get(dbc, id); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateFields(dbc, id, fields); err != nil {
		return nil, apierr.Internal("update_data_source", err)
	}
	ds, err := s.repo.GetByID(dbc, id)
	if err != nil {
		return nil, apierr.Internal("reload_data_source", err)
	}
	return ds, nil
}

func (s *dataSourceService) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if _, err := s.Get(dbc, id); err != nil {
		return err
	}
	if err := s.repo.Delete(dbc, id); err != nil {
		return apierr.Internal("delete_data_source", err)
	}
	return nil
}

func (s *dataSourceService) AddSchemaMapping(dbc dbctx.Context, id uuid.UUID, in AddSchemaMappingInput) (*domain.SchemaMapping, error) {
	if in.SourceColumn == "" || in.TargetField == "" {
		return nil, apierr.Validation("missing_mapping_fields", "source_column and target_field are required")
	}
	if _, err := s.Get(dbc, id); err != nil {
		return nil, err
	}
	m := &domain.SchemaMapping{
		ID:           uuid.New(),
		DataSourceID: id,
		SourceColumn: in.SourceColumn,
		TargetField:  in.TargetField,
		DataType:     in.DataType,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.AddSchemaMapping(dbc, m); err != nil {
		return nil, apierr.Internal("add_schema_mapping", err)
	}
	return m, nil
}

func (s *dataSourceService) ListSchemaMappings(dbc dbctx.Context, id uuid.UUID) ([]*domain.SchemaMapping, error) {
	if _, err := s.Get(dbc, id); err != nil {
		return nil, err
	}
	out, err := s.repo.ListSchemaMappings(dbc, id)
	if err != nil {
		return nil, apierr.Internal("list_schema_mappings", err)
	}
	return out, nil
}

func (s *dataSourceService) AddValidation(dbc dbctx.Context, id uuid.UUID, in AddValidationInput) (*domain.DataValidation, error) {
	if in.RuleName == "" {
		return nil, apierr.Validation("missing_rule_name", "rule_name is required")
	}
	if _, err := s.Get(dbc, id); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	v := &domain.DataValidation{
		ID:           uuid.New(),
		DataSourceID: id,
		RuleName:     in.RuleName,
		Passed:       in.Passed,
		Detail:       mustJSON(in.Detail),
		ValidatedAt:  now,
		CreatedAt:    now,
	}
	if err := s.repo.AddValidation(dbc, v); err != nil {
		return nil, apierr.Internal("add_validation", err)
	}

	// A failing validation flips the source to error; a passing one promotes
	// a registered source to validated.
	status := "validated"
	if !in.Passed {
		status = "error"
	}
	if err := s.repo.UpdateFields(dbc, id, map[string]interface{}{"status": status}); err != nil {
		s.log.Warn("Update data source status after validation", "data_source_id", id, "error", err)
	}
	return v, nil
}

func (s *dataSourceService) ListValidations(dbc dbctx.Context, id uuid.UUID) ([]*domain.DataValidation, error) {
	if _, err := s.Get(dbc, id); err != nil {
		return nil, err
	}
	out, err := s.repo.ListValidations(dbc, id)
	if err != nil {
		return nil, apierr.Internal("list_validations", err)
	}
	return out, nil
}

func (s *dataSourceService) AddProtectedAttribute(dbc dbctx.Context, id uuid.UUID, in AddProtectedAttributeInput) (*domain.ProtectedAttributeConfig, error) {
	if in.AttributeName == "" {
		return nil, apierr.Validation("missing_attribute_name", "attribute_name is required")
	}
	if _, err := s.Get(dbc, id); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p := &domain.ProtectedAttributeConfig{
		ID:             uuid.New(),
		DataSourceID:   id,
		AttributeName:  in.AttributeName,
		PrivilegedVals: mustJSON(in.PrivilegedValues),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.AddProtectedAttribute(dbc, p); err != nil {
		return nil, apierr.Internal("add_protected_attribute", err)
	}
	return p, nil
}

func (s *dataSourceService) ListProtectedAttributes(dbc dbctx.Context, id uuid.UUID) ([]*domain.ProtectedAttributeConfig, error) {
	if _, err := s.Get(dbc, id); err != nil {
		return nil, err
	}
	out, err := s.repo.ListProtectedAttributes(dbc, id)
	if err != nil {
		return nil, apierr.Internal("list_protected_attributes", err)
	}
	return out, nil
}
