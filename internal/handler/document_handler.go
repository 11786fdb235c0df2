package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/casefile-api/internal/dto"
	"github.com/noah-isme/casefile-api/internal/service"
	appErrors "github.com/noah-isme/casefile-api/pkg/errors"
	"github.com/noah-isme/casefile-api/pkg/response"
)

type documentService interface {
	Render(ctx context.Context, ref string, studentID int64, format string) (*service.RenderedDocument, error)
	RenderURL(ctx context.Context, ref string, studentID int64, format string) (*dto.RenderURLResponse, error)
	Download(ctx context.Context, token string) (*service.DocumentDownload, error)
}

// DocumentHandler renders filled document templates.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(service documentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Render godoc
// @Summary Render a student's document
// @Description Fills the document template with the student's latest record and streams the file.
// @Tags Documents
// @Produce application/vnd.openxmlformats-officedocument.wordprocessingml.document
// @Produce application/pdf
// @Param document_id path string true "Document type id or key"
// @Param student_id path int true "Student ID"
// @Param format query string false "docx or pdf"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /documents/{document_id}/students/{student_id}/render [get]
func (h *DocumentHandler) Render(c *gin.Context) {
	studentID, err := idParam(c, "student_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	doc, err := h.service.Render(c.Request.Context(), c.Param("document_id"), studentID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", attachmentHeader(doc.FileName))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, doc.ContentType, doc.Content)
}

// RenderURL godoc
// @Summary Render a student's document and return a signed download link
// @Tags Documents
// @Produce json
// @Param document_id path string true "Document type id or key"
// @Param student_id path int true "Student ID"
// @Param format query string false "docx or pdf"
// @Success 200 {object} response.Envelope
// @Router /documents/{document_id}/students/{student_id}/render-url [get]
func (h *DocumentHandler) RenderURL(c *gin.Context) {
	studentID, err := idParam(c, "student_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	link, err := h.service.RenderURL(c.Request.Context(), c.Param("document_id"), studentID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download a rendered document through a signed token
// @Tags Documents
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /downloads/{token} [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", attachmentHeader(result.FileName))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.ContentType, result.File, nil)
}
