package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/casefile-api/internal/catalog"
	"github.com/noah-isme/casefile-api/internal/dto"
	"github.com/noah-isme/casefile-api/internal/models"
	appErrors "github.com/noah-isme/casefile-api/pkg/errors"
	"github.com/noah-isme/casefile-api/pkg/response"
)

type recordService interface {
	Documents() []catalog.Summary
	Get(ctx context.Context, ref string, id int64) (models.Record, error)
	LatestByStudent(ctx context.Context, ref string, studentID int64) (models.Record, error)
	List(ctx context.Context, ref string, query dto.RecordListQuery) ([]models.Record, *models.Pagination, error)
	Store(ctx context.Context, ref string, data models.Record) (*dto.StoreRecordResponse, error)
	Update(ctx context.Context, ref string, id int64, data models.Record) (*dto.UpdateRecordResponse, error)
	Delete(ctx context.Context, ref string, id int64) error
}

// RecordHandler exposes the case-file record endpoints of every document type.
type RecordHandler struct {
	service recordService
}

// NewRecordHandler constructs the handler.
func NewRecordHandler(service recordService) *RecordHandler {
	return &RecordHandler{service: service}
}

// Documents godoc
// @Summary List document types
// @Tags Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *RecordHandler) Documents(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Documents(), nil)
}

// List godoc
// @Summary List records of a document type
// @Tags Records
// @Produce json
// @Param document_id path string true "Document type id or key"
// @Param student_id query int false "Student filter"
// @Param page query int false "Page number; omit page and per_page to list every record"
// @Param per_page query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Router /documents/{document_id}/records [get]
func (h *RecordHandler) List(c *gin.Context) {
	var query dto.RecordListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	records, pagination, err := h.service.List(c.Request.Context(), c.Param("document_id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get a record
// @Tags Records
// @Produce json
// @Param document_id path string true "Document type id or key"
// @Param id path int true "Record ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{document_id}/records/{id} [get]
func (h *RecordHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.service.Get(c.Request.Context(), c.Param("document_id"), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Latest godoc
// @Summary Get the student's current record
// @Tags Records
// @Produce json
// @Param document_id path string true "Document type id or key"
// @Param student_id path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{document_id}/students/{student_id}/latest [get]
func (h *RecordHandler) Latest(c *gin.Context) {
	studentID, err := idParam(c, "student_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.service.LatestByStudent(c.Request.Context(), c.Param("document_id"), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Store godoc
// @Summary Store a record (insert a new version or update the current one)
// @Tags Records
// @Accept json
// @Produce json
// @Param document_id path string true "Document type id or key"
// @Param payload body object true "Record fields, student_id required. JSON columns take any JSON value; a string is stored verbatim and must already be serialized JSON to read back as structured data"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents/{document_id}/records [post]
func (h *RecordHandler) Store(c *gin.Context) {
	var payload models.Record
	if err := c.ShouldBindJSON(&payload); err != nil || payload == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid record payload"))
		return
	}
	result, err := h.service.Store(c.Request.Context(), c.Param("document_id"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	status, message := http.StatusOK, "record updated"
	if result.Created {
		status, message = http.StatusCreated, "record created"
	}
	response.Stored(c, status, result.ID, message, result)
}

// Update godoc
// @Summary Update a record
// @Tags Records
// @Accept json
// @Produce json
// @Param document_id path string true "Document type id or key"
// @Param id path int true "Record ID"
// @Param payload body object true "Fields to overwrite. JSON columns take any JSON value; a string is stored verbatim and must already be serialized JSON to read back as structured data"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{document_id}/records/{id} [put]
func (h *RecordHandler) Update(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var payload models.Record
	if err := c.ShouldBindJSON(&payload); err != nil || payload == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid record payload"))
		return
	}
	result, err := h.service.Update(c.Request.Context(), c.Param("document_id"), id, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Stored(c, http.StatusOK, result.ID, "record updated", result)
}

// Delete godoc
// @Summary Delete a record
// @Tags Records
// @Produce json
// @Param document_id path string true "Document type id or key"
// @Param id path int true "Record ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{document_id}/records/{id} [delete]
func (h *RecordHandler) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("document_id"), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, fmt.Sprintf("record %d deleted", id))
}
