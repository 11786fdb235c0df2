package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/casefile-api/internal/catalog"
	"github.com/noah-isme/casefile-api/internal/models"
)

const testCatalog = `
lookups:
  schools: {table: schools, label_columns: [school_name]}
documents:
  - id: 1
    key: anamnesis
    table: anamnesis
    folder: true
    fields:
      - {name: interview_date, kind: date}
      - {name: school_id, kind: int}
      - {name: diagnoses, kind: json}
    children:
      - name: informants
        table: anamnesis_informants
        foreign_key: anamnesis_id
        fields: [{name: name}, {name: relationship_id, kind: int}]
  - id: 4
    key: individual_support_plan
    table: individual_support_plans
    version_column: version_id
    document_type_column: document_type_id
    unique_by: [student_id, school_id, document_type_id, period_id]
    soft_delete: true
    fields: [{name: school_id, kind: int}, {name: period_id, kind: int}, {name: goals}]
    children:
      - name: professionals
        table: individual_support_plan_professionals
        foreign_key: individual_support_plan_id
        strategy: match_fields
        soft_delete: true
        match_on: [professional_id, hours, date_from]
        fields: [{name: professional_id, kind: int}, {name: hours}, {name: date_from, kind: date}]
`

func newRecordRepoMock(t *testing.T) (*RecordRepository, sqlmock.Sqlmock, *catalog.Catalog) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)

	repo := NewRecordRepository(sqlx.NewDb(db, "postgres"))
	repo.now = func() time.Time { return time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC) }
	return repo, mock, c
}

func mustDoc(t *testing.T, c *catalog.Catalog, ref string) *catalog.DocumentType {
	t.Helper()
	doc, ok := c.Resolve(ref)
	require.True(t, ok)
	return doc
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func expectLock(mock sqlmock.Sqlmock, key string) {
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs(key).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestRecordRepositoryStoreInsertsFirstVersion(t *testing.T) {
	repo, mock, c := newRecordRepoMock(t)
	doc := mustDoc(t, c, "anamnesis")

	mock.ExpectBegin()
	expectLock(mock, "anamnesis:7")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM anamnesis WHERE student_id = $1 ORDER BY id DESC LIMIT 1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) FROM anamnesis WHERE student_id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO anamnesis (student_id, version, added_date, updated_date, interview_date, diagnoses) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id")).
		WithArgs(int64(7), int64(1), sqlmock.AnyArg(), sqlmock.AnyArg(), day(2024, 3, 15), `["adhd"]`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO anamnesis_informants (anamnesis_id, sort_order, added_date, updated_date, name, relationship_id) VALUES ($1, $2, $3, $4, $5, $6)")).
		WithArgs(int64(11), int64(0), sqlmock.AnyArg(), sqlmock.AnyArg(), "Ana", int64(2)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO folders")).
		WithArgs(int64(7), 1, int64(1), sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := repo.Store(context.Background(), doc, models.Record{
		"student_id":     "7",
		"interview_date": "2024-03-15",
		"diagnoses":      []interface{}{"adhd"},
		"informants": []interface{}{
			map[string]interface{}{"name": "Ana", "relationship_id": "2"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StoreResult{ID: 11, Version: 1, Created: true}, result)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryStoreTwiceBumpsVersion(t *testing.T) {
	repo, mock, c := newRecordRepoMock(t)
	doc := mustDoc(t, c, "anamnesis")
	doc.Folder = false
	doc.Children = nil

	findQuery := regexp.QuoteMeta("SELECT id FROM anamnesis WHERE student_id = $1 ORDER BY id DESC LIMIT 1")

	mock.ExpectBegin()
	expectLock(mock, "anamnesis:7")
	mock.ExpectQuery(findQuery).WithArgs(int64(7)).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0)")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO anamnesis")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectCommit()

	// The second call takes the same lock and therefore sees the first insert.
	mock.ExpectBegin()
	expectLock(mock, "anamnesis:7")
	mock.ExpectQuery(findQuery).WithArgs(int64(7)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE anamnesis SET interview_date = $1, updated_date = $2, version = version + 1 WHERE id = $3 RETURNING version")).
		WithArgs(day(2024, 3, 16), sqlmock.AnyArg(), int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(2)))
	mock.ExpectCommit()

	first, err := repo.Store(context.Background(), doc, models.Record{"student_id": int64(7), "interview_date": "2024-03-15"})
	require.NoError(t, err)
	second, err := repo.Store(context.Background(), doc, models.Record{"student_id": int64(7), "interview_date": "2024-03-16"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Version+1, second.Version)
	assert.False(t, second.Created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryStoreScopesSupportPlans(t *testing.T) {
	repo, mock, c := newRecordRepoMock(t)
	doc := mustDoc(t, c, "individual_support_plan")

	mock.ExpectBegin()
	expectLock(mock, "individual_support_plans:7")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM individual_support_plans WHERE student_id = $1 AND school_id = $2 AND document_type_id = $3 AND period_id IS NULL AND deleted_date IS NULL ORDER BY id DESC LIMIT 1")).
		WithArgs(int64(7), int64(3), 4).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version_id), 0) FROM individual_support_plans WHERE student_id = $1 AND document_type_id = $2")).
		WithArgs(int64(7), 4).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(2)))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO individual_support_plans (student_id, document_type_id, version_id, added_date, updated_date, school_id) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id")).
		WithArgs(int64(7), 4, int64(3), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(30)))
	mock.ExpectCommit()

	result, err := repo.Store(context.Background(), doc, models.Record{"student_id": 7, "school_id": 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryStoreRequiresStudent(t *testing.T) {
	repo, mock, c := newRecordRepoMock(t)

	_, err := repo.Store(context.Background(), mustDoc(t, c, "anamnesis"), models.Record{"interview_date": "2024-03-15"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryUpdateReplacesChildren(t *testing.T) {
	repo, mock, c := newRecordRepoMock(t)
	doc := mustDoc(t, c, "anamnesis")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE anamnesis SET interview_date = $1, school_id = $2, updated_date = $3 WHERE id = $4 RETURNING version")).
		WithArgs(nil, nil, sqlmock.AnyArg(), int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(4)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM anamnesis_informants WHERE anamnesis_id = $1")).
		WithArgs(int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	insertInformant := regexp.QuoteMeta("INSERT INTO anamnesis_informants (anamnesis_id, sort_order, added_date, updated_date, name, relationship_id)")
	mock.ExpectExec(insertInformant).
		WithArgs(int64(11), int64(0), sqlmock.AnyArg(), sqlmock.AnyArg(), "Ana", int64(1)).
		WillReturnResult(sqlmock.NewResult(20, 1))
	mock.ExpectExec(insertInformant).
		WithArgs(int64(11), int64(5), sqlmock.AnyArg(), sqlmock.AnyArg(), "Luis", nil).
		WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectCommit()

	version, err := repo.Update(context.Background(), doc, 11, models.Record{
		"interview_date": "15/03/2024",
		"school_id":      "not-a-number",
		"informants": []models.Record{
			{"name": "Ana", "relationship_id": 1},
			{"name": "Luis", "relationship_id": "x", "sort_order": 5},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryUpdateMissingRecord(t *testing.T) {
	repo, mock, c := newRecordRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE anamnesis SET updated_date = $1 WHERE id = $2 RETURNING version")).
		WithArgs(sqlmock.AnyArg(), int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), mustDoc(t, c, "anamnesis"), 99, models.Record{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryUpdateKeepsUnchangedProfessionals(t *testing.T) {
	repo, mock, c := newRecordRepoMock(t)
	doc := mustDoc(t, c, "individual_support_plan")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE individual_support_plans SET updated_date = $1 WHERE id = $2 AND document_type_id = $3 AND deleted_date IS NULL RETURNING version_id")).
		WithArgs(sqlmock.AnyArg(), int64(3), 4).
		WillReturnRows(sqlmock.NewRows([]string{"version_id"}).AddRow(int64(2)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, deleted_date, professional_id, hours, date_from FROM individual_support_plan_professionals WHERE individual_support_plan_id = $1 ORDER BY id ASC")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "deleted_date", "professional_id", "hours", "date_from"}).
			AddRow(int64(21), nil, int64(9), "10", day(2024, 3, 1)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE individual_support_plan_professionals SET professional_id = $1, hours = $2, date_from = $3, sort_order = $4, updated_date = $5, deleted_date = NULL WHERE id = $6")).
		WithArgs(int64(9), " 10 ", day(2024, 3, 1), int64(0), sqlmock.AnyArg(), int64(21)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := repo.Update(context.Background(), doc, 3, models.Record{
		"professionals": []interface{}{
			map[string]interface{}{"professional_id": float64(9), "hours": " 10 ", "date_from": "2024-03-01"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryGetExcludesSoftDeleted(t *testing.T) {
	repo, mock, c := newRecordRepoMock(t)
	doc := mustDoc(t, c, "individual_support_plan")
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, document_type_id, version_id, added_date, updated_date, deleted_date, school_id, period_id, goals FROM individual_support_plans WHERE id = $1 AND document_type_id = $2 AND deleted_date IS NULL")).
		WithArgs(int64(3), 4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "document_type_id", "version_id", "added_date", "updated_date", "deleted_date", "school_id", "period_id", "goals"}).
			AddRow(int64(3), int64(7), int64(4), int64(2), now, now, nil, int64(3), int64(1), []byte("Read fluently")))
	mock.ExpectQuery(regexp.QuoteMeta("FROM individual_support_plan_professionals WHERE individual_support_plan_id = $1 AND deleted_date IS NULL ORDER BY sort_order ASC, id ASC")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "individual_support_plan_id", "sort_order", "added_date", "updated_date", "professional_id", "hours", "date_from"}).
			AddRow(int64(21), int64(3), int64(0), now, now, int64(9), "10", day(2024, 3, 1)))
	mock.ExpectCommit()

	record, err := repo.Get(context.Background(), doc, 3)
	require.NoError(t, err)
	assert.Equal(t, "Read fluently", record["goals"])

	professionals, ok := record.Children("professionals")
	require.True(t, ok)
	require.Len(t, professionals, 1)
	assert.Equal(t, "2024-03-01", professionals[0]["date_from"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryGetNotFound(t *testing.T) {
	repo, mock, c := newRecordRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM anamnesis WHERE id = $1")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := repo.Get(context.Background(), mustDoc(t, c, "anamnesis"), 5)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryLatestByStudent(t *testing.T) {
	repo, mock, c := newRecordRepoMock(t)
	doc := mustDoc(t, c, "anamnesis")
	doc.Children = nil
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM anamnesis WHERE student_id = $1 ORDER BY id DESC LIMIT 1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "version", "added_date", "updated_date", "interview_date", "school_id", "diagnoses"}).
			AddRow(int64(12), int64(7), int64(3), now, now, day(2024, 3, 15), int64(2), `[{"value":"ADHD"}]`))
	mock.ExpectCommit()

	record, err := repo.LatestByStudent(context.Background(), doc, 7)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", record["interview_date"])
	assert.Equal(t, []interface{}{map[string]interface{}{"value": "ADHD"}}, record["diagnoses"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryListPaginates(t *testing.T) {
	repo, mock, c := newRecordRepoMock(t)
	doc := mustDoc(t, c, "anamnesis")
	studentID := int64(7)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM anamnesis WHERE student_id = $1")).
		WithArgs(studentID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(150))
	mock.ExpectQuery(regexp.QuoteMeta("FROM anamnesis WHERE student_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3")).
		WithArgs(studentID, 100, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "version", "added_date", "updated_date", "interview_date", "school_id", "diagnoses"}).
			AddRow(int64(40), studentID, int64(2), now, now, nil, nil, "not-json-["))
	mock.ExpectCommit()

	records, total, err := repo.List(context.Background(), doc, models.RecordFilter{StudentID: &studentID, Page: 2, PerPage: 500})
	require.NoError(t, err)
	assert.Equal(t, 150, total)
	require.Len(t, records, 1)
	assert.Equal(t, "not-json-[", records[0]["diagnoses"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryListWithoutPagingReturnsEveryRecord(t *testing.T) {
	repo, mock, c := newRecordRepoMock(t)
	doc := mustDoc(t, c, "anamnesis")
	studentID := int64(7)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "student_id", "version", "added_date", "updated_date", "interview_date", "school_id", "diagnoses"})
	for id := int64(130); id > 0; id-- {
		rows.AddRow(id, studentID, id, now, now, nil, nil, nil)
	}
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM anamnesis WHERE student_id = \$1 ORDER BY id DESC$`).
		WithArgs(studentID).
		WillReturnRows(rows)
	mock.ExpectCommit()

	records, total, err := repo.List(context.Background(), doc, models.RecordFilter{StudentID: &studentID})
	require.NoError(t, err)
	assert.Equal(t, 130, total)
	require.Len(t, records, 130)
	assert.Equal(t, int64(130), records[0]["id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryListExcludesSoftDeleted(t *testing.T) {
	repo, mock, c := newRecordRepoMock(t)
	doc := mustDoc(t, c, "individual_support_plan")
	studentID := int64(7)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM individual_support_plans WHERE student_id = $1 AND document_type_id = $2 AND deleted_date IS NULL")).
		WithArgs(studentID, 4).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM individual_support_plans WHERE student_id = $1 AND document_type_id = $2 AND deleted_date IS NULL ORDER BY id DESC LIMIT $3 OFFSET $4")).
		WithArgs(studentID, 4, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "document_type_id", "version_id", "added_date", "updated_date", "deleted_date", "school_id", "period_id", "goals"}).
			AddRow(int64(3), studentID, int64(4), int64(2), now, now, nil, int64(3), int64(1), []byte("Read fluently")))
	mock.ExpectCommit()

	records, total, err := repo.List(context.Background(), doc, models.RecordFilter{StudentID: &studentID, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, records, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryLatestByStudentExcludesSoftDeleted(t *testing.T) {
	repo, mock, c := newRecordRepoMock(t)
	doc := mustDoc(t, c, "individual_support_plan")
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM individual_support_plans WHERE student_id = $1 AND document_type_id = $2 AND deleted_date IS NULL ORDER BY id DESC LIMIT 1")).
		WithArgs(int64(7), 4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "document_type_id", "version_id", "added_date", "updated_date", "deleted_date", "school_id", "period_id", "goals"}).
			AddRow(int64(3), int64(7), int64(4), int64(2), now, now, nil, int64(3), int64(1), []byte("Read fluently")))
	mock.ExpectQuery(regexp.QuoteMeta("FROM individual_support_plan_professionals WHERE individual_support_plan_id = $1 AND deleted_date IS NULL ORDER BY sort_order ASC, id ASC")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "individual_support_plan_id", "sort_order", "added_date", "updated_date", "professional_id", "hours", "date_from"}))
	mock.ExpectCommit()

	record, err := repo.LatestByStudent(context.Background(), doc, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), record["id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositorySoftDelete(t *testing.T) {
	repo, mock, c := newRecordRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE individual_support_plans SET deleted_date = $1 WHERE id = $2 AND document_type_id = $3 AND deleted_date IS NULL")).
		WithArgs(sqlmock.AnyArg(), int64(3), 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE individual_support_plan_professionals SET deleted_date = $1 WHERE individual_support_plan_id = $2 AND deleted_date IS NULL")).
		WithArgs(sqlmock.AnyArg(), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), mustDoc(t, c, "individual_support_plan"), 3))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryHardDeleteMissing(t *testing.T) {
	repo, mock, c := newRecordRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM anamnesis_informants WHERE anamnesis_id = $1")).
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM anamnesis WHERE id = $1")).
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), mustDoc(t, c, "anamnesis"), 8)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}
