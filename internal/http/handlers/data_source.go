package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/clearlens/governance-backend/internal/http/response"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/repos"
	"github.com/clearlens/governance-backend/internal/services"
)

type DataSourceHandler struct {
	sources services.DataSourceService
}

func NewDataSourceHandler(sources services.DataSourceService) *DataSourceHandler {
	return &DataSourceHandler{sources: sources}
}

type createDataSourceRequest struct {
	Name             string         `json:"name" binding:"required"`
	SourceType       string         `json:"source_type" binding:"required"`
	Description      string         `json:"description"`
	ConnectionConfig map[string]any `json:"connection_config"`
}

// POST /api/v1/data-ingestion/sources
func (h *DataSourceHandler) Create(c *gin.Context) {
	var req createDataSourceRequest
	if !bindJSON(c, &req) {
		return
	}
	ds, err := h.sources.Create(dbctx.New(c.Request.Context()), services.CreateDataSourceInput{
		Name:             req.Name,
		SourceType:       req.SourceType,
		Description:      req.Description,
		ConnectionConfig: req.ConnectionConfig,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"data_source": ds})
}

// GET /api/v1/data-ingestion/sources
func (h *DataSourceHandler) List(c *gin.Context) {
	skip, limit := parsePagination(c)
	filter := repos.DataSourceFilter{
		SourceType: c.Query("source_type"),
		Skip:       skip,
		Limit:      limit,
	}
	items, total, err := h.sources.List(dbctx.New(c.Request.Context()), filter)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondPage(c, items, total, skip, limit)
}

// GET /api/v1/data-ingestion/sources/:id
func (h *DataSourceHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	ds, err := h.sources.Get(dbctx.New(c.Request.Context()), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"data_source": ds})
}

// PATCH /api/v1/data-ingestion/sources/:id
func (h *DataSourceHandler) Update(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var updates map[string]any
	if !bindJSON(c, &updates) {
		return
	}
	ds, err := h.sources.Update(dbctx.New(c.Request.Context()), id, updates)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"data_source": ds})
}

// DELETE /api/v1/data-ingestion/sources/:id
func (h *DataSourceHandler) Delete(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.sources.Delete(dbctx.New(c.Request.Context()), id); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}

type addSchemaMappingRequest struct {
	SourceColumn string `json:"source_column" binding:"required"`
	TargetField  string `json:"target_field" binding:"required"`
	DataType     string `json:"data_type"`
}

// POST /api/v1/data-ingestion/sources/:id/schema-mappings
func (h *DataSourceHandler) AddSchemaMapping(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req addSchemaMappingRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.sources.AddSchemaMapping(dbctx.New(c.Request.Context()), id, services.AddSchemaMappingInput{
		SourceColumn: req.SourceColumn,
		TargetField:  req.TargetField,
		DataType:     req.DataType,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"schema_mapping": m})
}

// GET /api/v1/data-ingestion/sources/:id/schema-mappings
func (h *DataSourceHandler) ListSchemaMappings(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	items, err := h.sources.ListSchemaMappings(dbctx.New(c.Request.Context()), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"schema_mappings": items})
}

type addValidationRequest struct {
	RuleName string         `json:"rule_name" binding:"required"`
	Passed   bool           `json:"passed"`
	Detail   map[string]any `json:"detail"`
}

// POST /api/v1/data-ingestion/sources/:id/validations
func (h *DataSourceHandler) AddValidation(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req addValidationRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := h.sources.AddValidation(dbctx.New(c.Request.Context()), id, services.AddValidationInput{
		RuleName: req.RuleName,
		Passed:   req.Passed,
		Detail:   req.Detail,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"validation": v})
}

// GET /api/v1/data-ingestion/sources/:id/validations
func (h *DataSourceHandler) ListValidations(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	items, err := h.sources.ListValidations(dbctx.New(c.Request.Context()), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"validations": items})
}

type addProtectedAttributeRequest struct {
	AttributeName    string   `json:"attribute_name" binding:"required"`
	PrivilegedValues []string `json:"privileged_values"`
}

// POST /api/v1/data-ingestion/sources/:id/protected-attributes
func (h *DataSourceHandler) AddProtectedAttribute(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req addProtectedAttributeRequest
	if !bindJSON(c, &req) {
		return
	}
	pa, err := h.sources.AddProtectedAttribute(dbctx.New(c.Request.Context()), id, services.AddProtectedAttributeInput{
		AttributeName:    req.AttributeName,
		PrivilegedValues: req.PrivilegedValues,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"protected_attribute": pa})
}

// GET /api/v1/data-ingestion/sources/:id/protected-attributes
func (h *DataSourceHandler) ListProtectedAttributes(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	items, err := h.sources.ListProtectedAttributes(dbctx.New(c.Request.Context()), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"protected_attributes": items})
}
