package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/casefile-api/internal/catalog"
	"github.com/noah-isme/casefile-api/internal/dto"
	"github.com/noah-isme/casefile-api/internal/models"
	"github.com/noah-isme/casefile-api/internal/repository"
	appErrors "github.com/noah-isme/casefile-api/pkg/errors"
)

type recordStore interface {
	Get(ctx context.Context, doc *catalog.DocumentType, id int64) (models.Record, error)
	LatestByStudent(ctx context.Context, doc *catalog.DocumentType, studentID int64) (models.Record, error)
	List(ctx context.Context, doc *catalog.DocumentType, filter models.RecordFilter) ([]models.Record, int, error)
	Store(ctx context.Context, doc *catalog.DocumentType, data models.Record) (repository.StoreResult, error)
	Update(ctx context.Context, doc *catalog.DocumentType, id int64, data models.Record) (int64, error)
	Delete(ctx context.Context, doc *catalog.DocumentType, id int64) error
}

type storeIdentity struct {
	StudentID int64 `validate:"required,gt=0"`
}

// RecordService exposes the record store of every catalog document type.
type RecordService struct {
	catalog   *catalog.Catalog
	repo      recordStore
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRecordService constructs the service.
func NewRecordService(cat *catalog.Catalog, repo recordStore, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RecordService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{catalog: cat, repo: repo, metrics: metrics, validator: validate, logger: logger}
}

// Documents lists the known document types.
func (s *RecordService) Documents() []catalog.Summary {
	return s.catalog.Summaries()
}

// Resolve finds a document type by id or key.
func (s *RecordService) Resolve(ref string) (*catalog.DocumentType, error) {
	doc, ok := s.catalog.Resolve(ref)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownDocument, fmt.Sprintf("unknown document type %q", ref))
	}
	return doc, nil
}

// Get returns a record by id.
func (s *RecordService) Get(ctx context.Context, ref string, id int64) (models.Record, error) {
	doc, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid record id")
	}
	start := time.Now()
	record, err := s.repo.Get(ctx, doc, id)
	s.metrics.ObserveDBQuery("record_get", time.Since(start))
	if err != nil {
		return nil, s.translate(doc, "get", err)
	}
	return record, nil
}

// LatestByStudent returns the student's current record of the document type.
func (s *RecordService) LatestByStudent(ctx context.Context, ref string, studentID int64) (models.Record, error) {
	doc, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	if studentID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid student id")
	}
	start := time.Now()
	record, err := s.repo.LatestByStudent(ctx, doc, studentID)
	s.metrics.ObserveDBQuery("record_latest", time.Since(start))
	if err != nil {
		return nil, s.translate(doc, "get", err)
	}
	return record, nil
}

// List returns records newest first with pagination metadata. Without page or
// per_page every record is returned on a single page.
func (s *RecordService) List(ctx context.Context, ref string, query dto.RecordListQuery) ([]models.Record, *models.Pagination, error) {
	doc, err := s.Resolve(ref)
	if err != nil {
		return nil, nil, err
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters")
	}
	filter := models.RecordFilter{StudentID: query.StudentID, Page: query.Page, PerPage: query.PerPage}
	start := time.Now()
	records, total, err := s.repo.List(ctx, doc, filter)
	s.metrics.ObserveDBQuery("record_list", time.Since(start))
	if err != nil {
		return nil, nil, s.translate(doc, "list", err)
	}
	if !filter.Paginated() {
		return records, &models.Pagination{Page: 1, PageSize: total, TotalCount: total}, nil
	}
	page, perPage := filter.Normalized()
	return records, &models.Pagination{Page: page, PageSize: perPage, TotalCount: total}, nil
}

// Store upserts the student's record.
func (s *RecordService) Store(ctx context.Context, ref string, data models.Record) (*dto.StoreRecordResponse, error) {
	doc, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	studentID, _ := data.Int64(catalog.ColumnStudentID)
	if err := s.validator.Struct(storeIdentity{StudentID: studentID}); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	data[catalog.ColumnStudentID] = studentID

	start := time.Now()
	result, err := s.repo.Store(ctx, doc, data)
	s.metrics.ObserveDBQuery("record_store", time.Since(start))
	if err != nil {
		return nil, s.translate(doc, "store", err)
	}
	s.logger.Info("record stored",
		zap.String("document", doc.Key),
		zap.Int64("student_id", studentID),
		zap.Int64("id", result.ID),
		zap.Int64("version", result.Version),
		zap.Bool("created", result.Created),
	)
	return &dto.StoreRecordResponse{ID: result.ID, Version: result.Version, Created: result.Created}, nil
}

// Update overwrites the fields present in data.
func (s *RecordService) Update(ctx context.Context, ref string, id int64, data models.Record) (*dto.UpdateRecordResponse, error) {
	doc, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid record id")
	}
	start := time.Now()
	version, err := s.repo.Update(ctx, doc, id, data)
	s.metrics.ObserveDBQuery("record_update", time.Since(start))
	if err != nil {
		return nil, s.translate(doc, "update", err)
	}
	return &dto.UpdateRecordResponse{ID: id, Version: version}, nil
}

// Delete removes a record.
func (s *RecordService) Delete(ctx context.Context, ref string, id int64) error {
	doc, err := s.Resolve(ref)
	if err != nil {
		return err
	}
	if id <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "invalid record id")
	}
	start := time.Now()
	err = s.repo.Delete(ctx, doc, id)
	s.metrics.ObserveDBQuery("record_delete", time.Since(start))
	if err != nil {
		return s.translate(doc, "delete", err)
	}
	s.logger.Info("record deleted", zap.String("document", doc.Key), zap.Int64("id", id), zap.Bool("soft", doc.SoftDelete))
	return nil
}

func (s *RecordService) translate(doc *catalog.DocumentType, op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s record not found", doc.Key))
	}
	s.logger.Error("record operation failed", zap.String("document", doc.Key), zap.String("op", op), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to %s %s", op, doc.Key))
}
