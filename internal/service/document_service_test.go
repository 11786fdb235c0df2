package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/casefile-api/internal/mapper"
	"github.com/noah-isme/casefile-api/internal/models"
	appErrors "github.com/noah-isme/casefile-api/pkg/errors"
	"github.com/noah-isme/casefile-api/pkg/render"
	"github.com/noah-isme/casefile-api/pkg/storage"
)

type studentDirectoryStub struct {
	students map[int64]*models.Student
	labels   map[string]string
}

func (s *studentDirectoryStub) Student(ctx context.Context, id int64) (*models.Student, error) {
	if student, ok := s.students[id]; ok {
		return student, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %d not found", id))
}

func (s *studentDirectoryStub) Labeler(ctx context.Context) mapper.Labeler {
	return mapper.LabelerFunc(func(lookup string, id int64) string {
		return s.labels[fmt.Sprintf("%s:%d", lookup, id)]
	})
}

type folderAppenderStub struct {
	entries []models.FolderEntry
	err     error
}

func (f *folderAppenderStub) Append(ctx context.Context, entry *models.FolderEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, *entry)
	return nil
}

type converterStub struct {
	calls int
	err   error
}

func (c *converterStub) Convert(ctx context.Context, filename string, document []byte) ([]byte, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []byte("%PDF-1.7 " + filename), nil
}

type documentFixture struct {
	svc       *DocumentService
	records   *recordStoreFake
	folders   *folderAppenderStub
	converter *converterStub
	files     *storage.LocalStorage
	templates string
}

func writeDocx(t *testing.T, path, body string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := zip.NewWriter(buf)
	w, err := writer.Create("word/document.xml")
	require.NoError(t, err)
	_, err = io.WriteString(w, body)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func newDocumentFixture(t *testing.T) *documentFixture {
	t.Helper()
	templates := t.TempDir()
	writeDocx(t, filepath.Join(templates, "anamnesis.docx"),
		`<w:p><w:t>{student_full_name} {school} {interview_date} {age_at_interview} {pregnancy_planned_no}</w:t></w:p>`)
	writeDocx(t, filepath.Join(templates, "enrollment_certificate.docx"),
		`<w:p><w:t>{student_full_name} / {student_identification} / {reason_for_consultation}</w:t></w:p>`)
	require.NoError(t, os.WriteFile(filepath.Join(templates, "school_certificate.pdf.yaml"), []byte(`
elements:
  - type: title
    text: Certificado
  - type: field
    label: Alumno
    value: "{student_full_name}"
`), 0o644))

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	records := newRecordStoreFake()
	records.latest[7] = models.Record{
		"id":                int64(11),
		"student_id":        int64(7),
		"version":           int64(3),
		"interview_date":    "2024-03-14",
		"school_id":         int64(2),
		"pregnancy_planned": int64(2),
	}
	birth := time.Date(2010, 3, 15, 0, 0, 0, 0, time.UTC)
	students := &studentDirectoryStub{
		students: map[int64]*models.Student{
			7: {ID: 7, Identification: "12.345.678-9", Names: "Sofía", FatherLastname: "Pérez", MotherLastname: "Soto", BirthDate: &birth},
		},
		labels: map[string]string{"schools:2": "Escuela Los Aromos"},
	}
	folders := &folderAppenderStub{}
	converter := &converterStub{}
	signer := storage.NewSignedURLSigner("secret", time.Minute)

	svc := NewDocumentService(defaultCatalog(t), records, students, render.NewTemplateStore(templates), converter, files, folders, signer, NewMetricsService(), nil,
		DocumentServiceConfig{Now: func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }})
	return &documentFixture{svc: svc, records: records, folders: folders, converter: converter, files: files, templates: templates}
}

func documentXML(t *testing.T, docx []byte) string {
	t.Helper()
	reader, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	require.NoError(t, err)
	rc, err := reader.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestDocumentServiceRenderKnownDocument(t *testing.T) {
	fx := newDocumentFixture(t)

	doc, err := fx.svc.Render(context.Background(), "1", 7, "")
	require.NoError(t, err)
	assert.Equal(t, mimeDOCX, doc.ContentType)
	assert.True(t, strings.HasPrefix(doc.FileName, "anamnesis_7_"))
	assert.True(t, strings.HasSuffix(doc.FileName, ".docx"))
	assert.Equal(t, `<w:p><w:t>Sofía Pérez Soto Escuela Los Aromos 14/03/2024 13 1</w:t></w:p>`, documentXML(t, doc.Content))
	stored, err := fx.files.Open(doc.FileName)
	require.NoError(t, err)
	require.NoError(t, stored.Close())

	require.Len(t, fx.folders.entries, 1)
	entry := fx.folders.entries[0]
	assert.Equal(t, 1, entry.DocumentID)
	assert.Equal(t, int64(3), entry.VersionID)
	require.NotNil(t, entry.File)
	assert.Equal(t, doc.FileName, *entry.File)
	assert.Nil(t, entry.DetailID)
}

func TestDocumentServiceRendersUniqueNames(t *testing.T) {
	fx := newDocumentFixture(t)

	first, err := fx.svc.Render(context.Background(), "anamnesis", 7, "docx")
	require.NoError(t, err)
	second, err := fx.svc.Render(context.Background(), "anamnesis", 7, "docx")
	require.NoError(t, err)
	assert.NotEqual(t, first.FileName, second.FileName)
}

func TestDocumentServiceGenericFallback(t *testing.T) {
	fx := newDocumentFixture(t)

	doc, err := fx.svc.Render(context.Background(), "21", 7, "")
	require.NoError(t, err)
	assert.Equal(t, `<w:p><w:t>Sofía Pérez Soto / 12.345.678-9 / </w:t></w:p>`, documentXML(t, doc.Content))
	require.Len(t, fx.folders.entries, 1)
	assert.Equal(t, 21, fx.folders.entries[0].DocumentID)

	_, err = fx.svc.Render(context.Background(), "30", 7, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTemplateNotFound.Code, appErrors.FromError(err).Code)

	_, err = fx.svc.Render(context.Background(), "nonsense", 7, "")
	assert.Equal(t, appErrors.ErrUnknownDocument.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceNoRecord(t *testing.T) {
	fx := newDocumentFixture(t)

	_, err := fx.svc.Render(context.Background(), "anamnesis", 8, "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Empty(t, fx.folders.entries)
}

func TestDocumentServiceMissingTemplate(t *testing.T) {
	fx := newDocumentFixture(t)
	require.NoError(t, os.Remove(filepath.Join(fx.templates, "anamnesis.docx")))

	_, err := fx.svc.Render(context.Background(), "anamnesis", 7, "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "TEMPLATE_NOT_FOUND", appErr.Code)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
}

func TestDocumentServiceBrokenTemplate(t *testing.T) {
	fx := newDocumentFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(fx.templates, "anamnesis.docx"), []byte("not a zip"), 0o644))

	_, err := fx.svc.Render(context.Background(), "anamnesis", 7, "")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, appErrors.FromError(err).Status)
}

func TestDocumentServiceConvertsToPDF(t *testing.T) {
	fx := newDocumentFixture(t)

	doc, err := fx.svc.Render(context.Background(), "anamnesis", 7, "pdf")
	require.NoError(t, err)
	assert.Equal(t, mimePDF, doc.ContentType)
	assert.Equal(t, "%PDF-1.7 anamnesis.docx", string(doc.Content))
	assert.True(t, strings.HasSuffix(doc.FileName, ".pdf"))

	fx.converter.err = fmt.Errorf("%w: status 503", render.ErrConvert)
	_, err = fx.svc.Render(context.Background(), "anamnesis", 7, "pdf")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, appErrors.FromError(err).Status)
}

func TestDocumentServicePDFLayout(t *testing.T) {
	fx := newDocumentFixture(t)
	fx.records.latest[7]["issue_date"] = "2024-05-02"

	doc, err := fx.svc.Render(context.Background(), "school_certificate", 7, "")
	require.NoError(t, err)
	assert.Equal(t, mimePDF, doc.ContentType)
	assert.True(t, bytes.HasPrefix(doc.Content, []byte("%PDF-")))

	_, err = fx.svc.Render(context.Background(), "school_certificate", 7, "docx")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceFolderFailureDoesNotFailRender(t *testing.T) {
	fx := newDocumentFixture(t)
	fx.folders.err = errors.New("connection reset")

	doc, err := fx.svc.Render(context.Background(), "anamnesis", 7, "")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Content)
}

func TestDocumentServiceSignedDownload(t *testing.T) {
	fx := newDocumentFixture(t)

	link, err := fx.svc.RenderURL(context.Background(), "anamnesis", 7, "")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link.URL, "/api/v1/downloads/"))
	token := strings.TrimPrefix(link.URL, "/api/v1/downloads/")

	download, err := fx.svc.Download(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, link.File, download.FileName)
	assert.Equal(t, mimeDOCX, download.ContentType)
	assert.Greater(t, download.SizeBytes, int64(0))

	_, err = fx.svc.Download(context.Background(), token+"x")
	assert.Equal(t, appErrors.ErrInvalidToken.Code, appErrors.FromError(err).Code)

	require.NoError(t, os.Remove(download.File.Name()))
	_, err = fx.svc.Download(context.Background(), token)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}
