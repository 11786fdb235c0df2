package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/casefile-api/internal/catalog"
	"github.com/noah-isme/casefile-api/internal/models"
	appErrors "github.com/noah-isme/casefile-api/pkg/errors"
	"github.com/noah-isme/casefile-api/pkg/export"
)

type folderLedger interface {
	ListLatest(ctx context.Context, studentID int64) ([]models.FolderEntry, error)
	History(ctx context.Context, studentID int64, documentID int) ([]models.FolderEntry, error)
}

var folderExportHeaders = []string{"document_id", "document", "version", "detail_id", "file", "added_date"}

// FolderExport is a rendered ledger export.
type FolderExport struct {
	FileName    string
	ContentType string
	Content     []byte
}

// FolderService reads a student's folder ledger.
type FolderService struct {
	catalog   *catalog.Catalog
	ledger    folderLedger
	exporters map[export.Format]export.Exporter
	logger    *zap.Logger
}

// NewFolderService constructs the service with the CSV, XLSX and PDF exporters.
func NewFolderService(cat *catalog.Catalog, ledger folderLedger, logger *zap.Logger) *FolderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FolderService{
		catalog: cat,
		ledger:  ledger,
		exporters: map[export.Format]export.Exporter{
			export.FormatCSV:  export.NewCSVExporter(),
			export.FormatXLSX: export.NewXLSXExporter(),
			export.FormatPDF:  export.NewPDFExporter(),
		},
		logger: logger,
	}
}

// List returns the latest ledger entry of every document type for the student.
func (s *FolderService) List(ctx context.Context, studentID int64) ([]models.FolderItem, error) {
	if studentID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid student id")
	}
	entries, err := s.ledger.ListLatest(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load folder")
	}
	return s.decorate(entries), nil
}

// History returns every ledger entry of one document type for the student.
func (s *FolderService) History(ctx context.Context, studentID int64, ref string) ([]models.FolderItem, error) {
	if studentID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid student id")
	}
	documentID, err := s.documentID(ref)
	if err != nil {
		return nil, err
	}
	entries, err := s.ledger.History(ctx, studentID, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load folder history")
	}
	return s.decorate(entries), nil
}

// Export renders the student's current folder in the requested format.
func (s *FolderService) Export(ctx context.Context, studentID int64, format string) (*FolderExport, error) {
	f := export.Format(strings.ToLower(strings.TrimSpace(format)))
	if f == "" {
		f = export.FormatCSV
	}
	exporter, ok := s.exporters[f]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	items, err := s.List(ctx, studentID)
	if err != nil {
		return nil, err
	}
	data := export.Dataset{
		Title:   fmt.Sprintf("Folder %d", studentID),
		Headers: folderExportHeaders,
		Rows:    make([]map[string]string, 0, len(items)),
	}
	for _, item := range items {
		row := map[string]string{
			"document_id": strconv.Itoa(item.DocumentID),
			"document":    item.DocumentName,
			"version":     strconv.FormatInt(item.VersionID, 10),
			"added_date":  item.AddedDate.Format("2006-01-02 15:04"),
		}
		if item.DetailID != nil {
			row["detail_id"] = strconv.FormatInt(*item.DetailID, 10)
		}
		if item.File != nil {
			row["file"] = *item.File
		}
		data.Rows = append(data.Rows, row)
	}

	content, err := exporter.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export folder")
	}
	return &FolderExport{
		FileName:    fmt.Sprintf("folder_%d.%s", studentID, f),
		ContentType: f.ContentType(),
		Content:     content,
	}, nil
}

func (s *FolderService) documentID(ref string) (int, error) {
	if doc, ok := s.catalog.Resolve(ref); ok {
		return doc.ID, nil
	}
	id, err := strconv.Atoi(strings.TrimSpace(ref))
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrUnknownDocument, fmt.Sprintf("unknown document type %q", ref))
	}
	return id, nil
}

func (s *FolderService) decorate(entries []models.FolderEntry) []models.FolderItem {
	items := make([]models.FolderItem, 0, len(entries))
	for _, entry := range entries {
		item := models.FolderItem{FolderEntry: entry}
		if doc, ok := s.catalog.ByID(entry.DocumentID); ok {
			item.DocumentKey = doc.Key
			item.DocumentName = doc.Name
		} else {
			item.DocumentKey = s.catalog.GenericTemplate(entry.DocumentID)
			item.DocumentName = item.DocumentKey
		}
		items = append(items, item)
	}
	return items
}
