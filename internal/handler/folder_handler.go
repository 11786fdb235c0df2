package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/casefile-api/internal/models"
	"github.com/noah-isme/casefile-api/internal/service"
	"github.com/noah-isme/casefile-api/pkg/response"
)

type folderService interface {
	List(ctx context.Context, studentID int64) ([]models.FolderItem, error)
	History(ctx context.Context, studentID int64, ref string) ([]models.FolderItem, error)
	Export(ctx context.Context, studentID int64, format string) (*service.FolderExport, error)
}

// FolderHandler exposes a student's folder ledger.
type FolderHandler struct {
	service folderService
}

// NewFolderHandler constructs the handler.
func NewFolderHandler(service folderService) *FolderHandler {
	return &FolderHandler{service: service}
}

// List godoc
// @Summary Latest folder entry per document type
// @Tags Folder
// @Produce json
// @Param student_id path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{student_id}/folder [get]
func (h *FolderHandler) List(c *gin.Context) {
	studentID, err := idParam(c, "student_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.service.List(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// History godoc
// @Summary Folder entries of one document type, newest first
// @Tags Folder
// @Produce json
// @Param student_id path int true "Student ID"
// @Param document_id path string true "Document type id or key"
// @Success 200 {object} response.Envelope
// @Router /students/{student_id}/folder/{document_id} [get]
func (h *FolderHandler) History(c *gin.Context) {
	studentID, err := idParam(c, "student_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.service.History(c.Request.Context(), studentID, c.Param("document_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Export godoc
// @Summary Export the folder ledger
// @Tags Folder
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce application/pdf
// @Param student_id path int true "Student ID"
// @Param format query string false "csv (default), xlsx or pdf"
// @Success 200 {file} binary
// @Router /students/{student_id}/folder/export [get]
func (h *FolderHandler) Export(c *gin.Context) {
	studentID, err := idParam(c, "student_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	out, err := h.service.Export(c.Request.Context(), studentID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", attachmentHeader(out.FileName))
	c.Data(http.StatusOK, out.ContentType, out.Content)
}
