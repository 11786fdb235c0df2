package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/casefile-api/internal/catalog"
	"github.com/noah-isme/casefile-api/internal/dto"
	"github.com/noah-isme/casefile-api/internal/mapper"
	"github.com/noah-isme/casefile-api/internal/models"
	appErrors "github.com/noah-isme/casefile-api/pkg/errors"
	"github.com/noah-isme/casefile-api/pkg/render"
	"github.com/noah-isme/casefile-api/pkg/storage"
)

const (
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePDF  = "application/pdf"
)

type latestRecordReader interface {
	LatestByStudent(ctx context.Context, doc *catalog.DocumentType, studentID int64) (models.Record, error)
}

type studentDirectory interface {
	Student(ctx context.Context, id int64) (*models.Student, error)
	Labeler(ctx context.Context) mapper.Labeler
}

type templateLoader interface {
	Load(name string) ([]byte, error)
}

// DocumentConverter turns a filled DOCX into PDF.
type DocumentConverter interface {
	Convert(ctx context.Context, filename string, document []byte) ([]byte, error)
}

type renderedFileStore interface {
	SaveUnique(stem, ext string, data []byte) (string, error)
	Open(name string) (*os.File, error)
}

type folderAppender interface {
	Append(ctx context.Context, entry *models.FolderEntry) error
}

type downloadSigner interface {
	Generate(file string, studentID int64) (string, time.Time, error)
	Parse(raw string) (*storage.DownloadClaims, error)
}

// RenderedDocument is a filled template ready to stream.
type RenderedDocument struct {
	FileName    string
	ContentType string
	Content     []byte
}

// DocumentDownload bundles an opened rendered file for streaming.
type DocumentDownload struct {
	File        *os.File
	FileName    string
	ContentType string
	SizeBytes   int64
}

// DocumentServiceConfig holds render dependencies that are optional.
type DocumentServiceConfig struct {
	APIPrefix string
	Now       func() time.Time
}

// DocumentService renders case-file documents from the latest stored record.
type DocumentService struct {
	catalog   *catalog.Catalog
	records   latestRecordReader
	students  studentDirectory
	templates templateLoader
	converter DocumentConverter
	files     renderedFileStore
	folders   folderAppender
	signer    downloadSigner
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       DocumentServiceConfig
}

// NewDocumentService constructs the service. converter and signer may be nil.
func NewDocumentService(cat *catalog.Catalog, records latestRecordReader, students studentDirectory, templates templateLoader, converter DocumentConverter, files renderedFileStore, folders folderAppender, signer downloadSigner, metrics *MetricsService, logger *zap.Logger, cfg DocumentServiceConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &DocumentService{
		catalog:   cat,
		records:   records,
		students:  students,
		templates: templates,
		converter: converter,
		files:     files,
		folders:   folders,
		signer:    signer,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

type renderJob struct {
	documentID int
	key        string
	template   catalog.Template
	version    int64
	values     map[string]string
}

// Render fills the template of the document type for the student, stores the
// output and records it in the student's folder. format may be "" (template
// format), "docx" or "pdf".
func (s *DocumentService) Render(ctx context.Context, ref string, studentID int64, format string) (*RenderedDocument, error) {
	if studentID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid student id")
	}
	start := time.Now()
	job, err := s.prepare(ctx, ref, studentID)
	if err != nil {
		return nil, err
	}

	ext := string(job.template.Format)
	if format != "" {
		ext = strings.ToLower(format)
	}
	content, err := s.fill(ctx, job, ext)
	s.metrics.ObserveRender(job.key, ext, err, time.Since(start))
	if err != nil {
		s.logger.Warn("render failed", zap.String("document", job.key), zap.Int64("student_id", studentID), zap.Error(err))
		return nil, err
	}

	name, err := s.files.SaveUnique(fmt.Sprintf("%s_%d", job.template.Name, studentID), ext, content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store rendered document")
	}

	entry := &models.FolderEntry{StudentID: studentID, DocumentID: job.documentID, VersionID: job.version, File: &name}
	if err := s.folders.Append(ctx, entry); err != nil {
		s.logger.Warn("folder entry not recorded", zap.String("file", name), zap.Error(err))
	}

	s.logger.Info("document rendered",
		zap.String("document", job.key),
		zap.Int64("student_id", studentID),
		zap.String("file", name),
		zap.Duration("duration", time.Since(start)),
	)
	return &RenderedDocument{FileName: name, ContentType: contentType(ext), Content: content}, nil
}

// RenderURL renders the document and returns a signed link to download it.
func (s *DocumentService) RenderURL(ctx context.Context, ref string, studentID int64, format string) (*dto.RenderURLResponse, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	doc, err := s.Render(ctx, ref, studentID, format)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(doc.FileName, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return &dto.RenderURLResponse{
		URL:       fmt.Sprintf("%s/downloads/%s", base, token),
		File:      doc.FileName,
		ExpiresAt: expiresAt,
	}, nil
}

// Download validates a signed token and opens the rendered file it names.
func (s *DocumentService) Download(ctx context.Context, token string) (*DocumentDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	claims, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.ErrInvalidToken
	}
	file, err := s.files.Open(claims.File)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "rendered file no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open rendered file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read rendered file")
	}
	name := filepath.Base(claims.File)
	return &DocumentDownload{
		File:        file,
		FileName:    name,
		ContentType: contentType(strings.TrimPrefix(filepath.Ext(name), ".")),
		SizeBytes:   info.Size(),
	}, nil
}

func (s *DocumentService) prepare(ctx context.Context, ref string, studentID int64) (*renderJob, error) {
	doc, known := s.catalog.Resolve(ref)
	if !known {
		return s.prepareGeneric(ctx, ref, studentID)
	}

	record, err := s.records.LatestByStudent(ctx, doc, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no %s record for student %d", doc.Key, studentID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to load %s", doc.Key))
	}
	student, err := s.students.Student(ctx, studentID)
	if err != nil {
		return nil, err
	}

	version, _ := record.Int64(doc.VersionColumn)
	values := mapper.WithClock(s.cfg.Now).Map(doc, record, student.Fields(), s.students.Labeler(ctx))
	return &renderJob{documentID: doc.ID, key: doc.Key, template: doc.Template, version: version, values: values}, nil
}

// prepareGeneric handles document ids without a schema: a generic template
// filled with the student identity only.
func (s *DocumentService) prepareGeneric(ctx context.Context, ref string, studentID int64) (*renderJob, error) {
	id, err := strconv.Atoi(strings.TrimSpace(ref))
	if err != nil || id <= 0 {
		return nil, appErrors.Clone(appErrors.ErrUnknownDocument, fmt.Sprintf("unknown document type %q", ref))
	}
	student, err := s.students.Student(ctx, studentID)
	if err != nil {
		return nil, err
	}
	name := s.catalog.GenericTemplate(id)
	values := mapper.WithClock(s.cfg.Now).Identity(student.Fields(), s.students.Labeler(ctx))
	return &renderJob{
		documentID: id,
		key:        name,
		template:   catalog.Template{Name: name, Format: catalog.FormatDOCX, Delimiters: catalog.DelimCurly},
		values:     values,
	}, nil
}

func (s *DocumentService) fill(ctx context.Context, job *renderJob, ext string) ([]byte, error) {
	switch {
	case job.template.Format == catalog.FormatPDF:
		if ext != string(catalog.FormatPDF) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is only available as pdf", job.key))
		}
		layout, err := s.templates.Load(job.template.Name + ".pdf.yaml")
		if err != nil {
			return nil, renderError(err)
		}
		out, err := render.NewPDFRenderer().Render(layout, job.values)
		if err != nil {
			return nil, renderError(err)
		}
		return out, nil
	case ext == string(catalog.FormatDOCX) || ext == string(catalog.FormatPDF):
		template, err := s.templates.Load(job.template.FileName())
		if err != nil {
			return nil, renderError(err)
		}
		out, err := render.NewDOCXRenderer(render.DelimitersFor(string(job.template.Delimiters))).Render(template, job.values)
		if err != nil {
			return nil, renderError(err)
		}
		if ext == string(catalog.FormatDOCX) {
			return out, nil
		}
		if s.converter == nil {
			return nil, appErrors.Clone(appErrors.ErrConverterFailed, "pdf conversion is not configured")
		}
		pdf, err := s.converter.Convert(ctx, job.template.FileName(), out)
		if err != nil {
			return nil, renderError(err)
		}
		return pdf, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", ext))
	}
}

func renderError(err error) error {
	switch {
	case errors.Is(err, render.ErrTemplateNotFound):
		return appErrors.Wrap(err, appErrors.ErrTemplateNotFound.Code, appErrors.ErrTemplateNotFound.Status, appErrors.ErrTemplateNotFound.Message)
	case errors.Is(err, render.ErrConvert):
		return appErrors.Wrap(err, appErrors.ErrConverterFailed.Code, appErrors.ErrConverterFailed.Status, appErrors.ErrConverterFailed.Message)
	default:
		return appErrors.Wrap(err, appErrors.ErrRenderFailed.Code, appErrors.ErrRenderFailed.Status, appErrors.ErrRenderFailed.Message)
	}
}

func contentType(ext string) string {
	switch ext {
	case "pdf":
		return mimePDF
	case "docx":
		return mimeDOCX
	default:
		return "application/octet-stream"
	}
}
