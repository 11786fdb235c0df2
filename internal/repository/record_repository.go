package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/casefile-api/internal/catalog"
	"github.com/noah-isme/casefile-api/internal/models"
	"github.com/noah-isme/casefile-api/pkg/database"
)

// StoreResult describes the outcome of a store call.
type StoreResult struct {
	ID      int64 `json:"id"`
	Version int64 `json:"version"`
	Created bool  `json:"created"`
}

// RecordRepository persists case-file documents of any catalog document type.
type RecordRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewRecordRepository constructs the repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db, now: time.Now}
}

// Get returns a single live record with its children.
func (r *RecordRepository) Get(ctx context.Context, doc *catalog.DocumentType, id int64) (record models.Record, err error) {
	err = database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		where, args := scopeClause(doc, []string{"id = $1"}, []interface{}{id})
		query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(doc.Columns(), ", "), doc.Table, where)
		record, err = queryOne(ctx, tx, doc, query, args...)
		if err != nil {
			return err
		}
		return r.attachChildren(ctx, tx, doc, record)
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", doc.Key, err)
	}
	return record, nil
}

// LatestByStudent returns the student's record with the highest id.
func (r *RecordRepository) LatestByStudent(ctx context.Context, doc *catalog.DocumentType, studentID int64) (record models.Record, err error) {
	err = database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		where, args := scopeClause(doc, []string{"student_id = $1"}, []interface{}{studentID})
		query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY id DESC LIMIT 1", strings.Join(doc.Columns(), ", "), doc.Table, where)
		record, err = queryOne(ctx, tx, doc, query, args...)
		if err != nil {
			return err
		}
		return r.attachChildren(ctx, tx, doc, record)
	})
	if err != nil {
		return nil, fmt.Errorf("get latest %s: %w", doc.Key, err)
	}
	return record, nil
}

// List returns live records newest first together with the total count. A
// filter without paging returns every matching record.
func (r *RecordRepository) List(ctx context.Context, doc *catalog.DocumentType, filter models.RecordFilter) (records []models.Record, total int, err error) {
	conditions := []string{}
	args := []interface{}{}
	if filter.StudentID != nil {
		args = append(args, *filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	where, args := scopeClause(doc, conditions, args)

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY id DESC", strings.Join(doc.Columns(), ", "), doc.Table, where)

	err = database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if !filter.Paginated() {
			records, err = queryMany(ctx, tx, doc.Fields, query, args...)
			total = len(records)
			return err
		}

		countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", doc.Table, where)
		if err := sqlx.GetContext(ctx, tx, &total, countQuery, args...); err != nil {
			return fmt.Errorf("count: %w", err)
		}

		page, perPage := filter.Normalized()
		pageQuery := fmt.Sprintf("%s LIMIT $%d OFFSET $%d", query, len(args)+1, len(args)+2)
		pageArgs := append(append([]interface{}{}, args...), perPage, (page-1)*perPage)
		records, err = queryMany(ctx, tx, doc.Fields, pageQuery, pageArgs...)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", doc.Key, err)
	}
	return records, total, nil
}

// Store upserts the student's record under the document type's uniqueness rule.
// An existing record is overwritten and its version bumped; otherwise a new
// record is inserted with the next version for the student.
func (r *RecordRepository) Store(ctx context.Context, doc *catalog.DocumentType, data models.Record) (result StoreResult, err error) {
	studentID, ok := data.Int64(catalog.ColumnStudentID)
	if !ok {
		return result, fmt.Errorf("store %s: student_id required", doc.Key)
	}

	err = database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", lockKey(doc, studentID)); err != nil {
			return fmt.Errorf("lock student: %w", err)
		}

		existingID, found, err := r.findExisting(ctx, tx, doc, data)
		if err != nil {
			return err
		}

		now := r.now().UTC()
		if found {
			version, err := r.update(ctx, tx, doc, existingID, data, now, true)
			if err != nil {
				return err
			}
			result = StoreResult{ID: existingID, Version: version}
		} else {
			id, version, err := r.insert(ctx, tx, doc, studentID, data, now)
			if err != nil {
				return err
			}
			result = StoreResult{ID: id, Version: version, Created: true}
		}

		if doc.Folder {
			detailID := result.ID
			entry := models.FolderEntry{
				StudentID:  studentID,
				DocumentID: doc.ID,
				VersionID:  result.Version,
				DetailID:   &detailID,
				AddedDate:  now,
			}
			if err := appendFolderEntry(ctx, tx, &entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return StoreResult{}, fmt.Errorf("store %s: %w", doc.Key, err)
	}
	return result, nil
}

// Update overwrites the columns present in data and synchronises any child
// collections present in data. It returns the unchanged version.
func (r *RecordRepository) Update(ctx context.Context, doc *catalog.DocumentType, id int64, data models.Record) (version int64, err error) {
	err = database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		version, err = r.update(ctx, tx, doc, id, data, r.now().UTC(), false)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", doc.Key, err)
	}
	return version, nil
}

// Delete removes the record, softly when the document type keeps history.
func (r *RecordRepository) Delete(ctx context.Context, doc *catalog.DocumentType, id int64) error {
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if doc.SoftDelete {
			return r.softDelete(ctx, tx, doc, id)
		}
		return r.hardDelete(ctx, tx, doc, id)
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", doc.Key, err)
	}
	return nil
}

func (r *RecordRepository) findExisting(ctx context.Context, tx *sqlx.Tx, doc *catalog.DocumentType, data models.Record) (int64, bool, error) {
	conditions := make([]string, 0, len(doc.UniqueBy)+1)
	args := make([]interface{}, 0, len(doc.UniqueBy))
	for _, col := range doc.UniqueBy {
		var value interface{}
		if col == doc.DocumentTypeColumn {
			value = doc.ID
		} else {
			field, _ := doc.Field(col)
			value = coerce(field.Kind, data[col])
		}
		if value == nil {
			conditions = append(conditions, col+" IS NULL")
			continue
		}
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if doc.SoftDelete {
		conditions = append(conditions, catalog.ColumnDeletedDate+" IS NULL")
	}

	query := fmt.Sprintf("SELECT id FROM %s WHERE %s ORDER BY id DESC LIMIT 1", doc.Table, strings.Join(conditions, " AND "))
	var id int64
	if err := sqlx.GetContext(ctx, tx, &id, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("find existing: %w", err)
	}
	return id, true, nil
}

func (r *RecordRepository) insert(ctx context.Context, tx *sqlx.Tx, doc *catalog.DocumentType, studentID int64, data models.Record, now time.Time) (int64, int64, error) {
	versionQuery := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s WHERE student_id = $1", doc.VersionColumn, doc.Table)
	versionArgs := []interface{}{studentID}
	if doc.DocumentTypeColumn != "" {
		versionQuery += fmt.Sprintf(" AND %s = $2", doc.DocumentTypeColumn)
		versionArgs = append(versionArgs, doc.ID)
	}
	var current int64
	if err := sqlx.GetContext(ctx, tx, &current, versionQuery, versionArgs...); err != nil {
		return 0, 0, fmt.Errorf("next version: %w", err)
	}
	version := current + 1

	columns := []string{catalog.ColumnStudentID}
	args := []interface{}{studentID}
	if doc.DocumentTypeColumn != "" {
		columns = append(columns, doc.DocumentTypeColumn)
		args = append(args, doc.ID)
	}
	columns = append(columns, doc.VersionColumn, catalog.ColumnAddedDate, catalog.ColumnUpdatedDate)
	args = append(args, version, now, now)
	for _, field := range doc.Fields {
		value, ok := data[field.Name]
		if !ok {
			continue
		}
		columns = append(columns, field.Name)
		args = append(args, coerce(field.Kind, value))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id", doc.Table, strings.Join(columns, ", "), placeholders(1, len(args)))
	var id int64
	if err := sqlx.GetContext(ctx, tx, &id, query, args...); err != nil {
		return 0, 0, fmt.Errorf("insert: %w", err)
	}

	for _, child := range doc.Children {
		rows, ok := data.Children(child.Name)
		if !ok {
			continue
		}
		if err := insertChildren(ctx, tx, child, id, rows, now); err != nil {
			return 0, 0, err
		}
	}
	return id, version, nil
}

func (r *RecordRepository) update(ctx context.Context, tx *sqlx.Tx, doc *catalog.DocumentType, id int64, data models.Record, now time.Time, bump bool) (int64, error) {
	sets := []string{}
	args := []interface{}{}
	for _, field := range doc.Fields {
		value, ok := data[field.Name]
		if !ok {
			continue
		}
		args = append(args, coerce(field.Kind, value))
		sets = append(sets, fmt.Sprintf("%s = $%d", field.Name, len(args)))
	}
	args = append(args, now)
	sets = append(sets, fmt.Sprintf("%s = $%d", catalog.ColumnUpdatedDate, len(args)))
	if bump {
		sets = append(sets, fmt.Sprintf("%s = %s + 1", doc.VersionColumn, doc.VersionColumn))
	}

	args = append(args, id)
	where, args := scopeClause(doc, []string{fmt.Sprintf("id = $%d", len(args))}, args)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING %s", doc.Table, strings.Join(sets, ", "), where, doc.VersionColumn)

	var version int64
	if err := sqlx.GetContext(ctx, tx, &version, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sql.ErrNoRows
		}
		return 0, fmt.Errorf("update row: %w", err)
	}

	for _, child := range doc.Children {
		rows, ok := data.Children(child.Name)
		if !ok {
			continue
		}
		if err := syncChildren(ctx, tx, child, id, rows, now); err != nil {
			return 0, err
		}
	}
	return version, nil
}

func (r *RecordRepository) softDelete(ctx context.Context, tx *sqlx.Tx, doc *catalog.DocumentType, id int64) error {
	now := r.now().UTC()
	where, args := scopeClause(doc, []string{"id = $2"}, []interface{}{now, id})
	query := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s", doc.Table, catalog.ColumnDeletedDate, where)
	if err := execAffecting(ctx, tx, query, args...); err != nil {
		return err
	}
	for _, child := range doc.Children {
		if !child.SoftDelete {
			continue
		}
		childQuery := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $2 AND %s IS NULL", child.Table, catalog.ColumnDeletedDate, child.ForeignKey, catalog.ColumnDeletedDate)
		if _, err := tx.ExecContext(ctx, childQuery, now, id); err != nil {
			return fmt.Errorf("soft delete %s: %w", child.Name, err)
		}
	}
	return nil
}

func (r *RecordRepository) hardDelete(ctx context.Context, tx *sqlx.Tx, doc *catalog.DocumentType, id int64) error {
	for _, child := range doc.Children {
		childQuery := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", child.Table, child.ForeignKey)
		if _, err := tx.ExecContext(ctx, childQuery, id); err != nil {
			return fmt.Errorf("delete %s: %w", child.Name, err)
		}
	}
	where, args := scopeClause(doc, []string{"id = $1"}, []interface{}{id})
	return execAffecting(ctx, tx, fmt.Sprintf("DELETE FROM %s WHERE %s", doc.Table, where), args...)
}

func (r *RecordRepository) attachChildren(ctx context.Context, tx *sqlx.Tx, doc *catalog.DocumentType, record models.Record) error {
	id, ok := record.Int64(catalog.ColumnID)
	if !ok {
		return nil
	}
	for _, child := range doc.Children {
		rows, err := loadChildren(ctx, tx, child, id)
		if err != nil {
			return err
		}
		record[child.Name] = rows
	}
	return nil
}

// scopeClause appends the document-type and soft-delete filters shared by every
// read and write path.
func scopeClause(doc *catalog.DocumentType, conditions []string, args []interface{}) (string, []interface{}) {
	if doc.DocumentTypeColumn != "" {
		args = append(args, doc.ID)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", doc.DocumentTypeColumn, len(args)))
	}
	if doc.SoftDelete {
		conditions = append(conditions, catalog.ColumnDeletedDate+" IS NULL")
	}
	if len(conditions) == 0 {
		return "1=1", args
	}
	return strings.Join(conditions, " AND "), args
}

func lockKey(doc *catalog.DocumentType, studentID int64) string {
	return fmt.Sprintf("%s:%d", doc.Table, studentID)
}

func placeholders(from, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ", ")
}

func execAffecting(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryOne(ctx context.Context, q sqlx.QueryerContext, doc *catalog.DocumentType, query string, args ...interface{}) (models.Record, error) {
	records, err := queryMany(ctx, q, doc.Fields, query, args...)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, sql.ErrNoRows
	}
	return records[0], nil
}

func queryMany(ctx context.Context, q sqlx.QueryerContext, fields []catalog.Field, query string, args ...interface{}) ([]models.Record, error) {
	rows, err := q.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	kinds := make(map[string]catalog.FieldKind, len(fields))
	for _, f := range fields {
		kinds[f.Name] = f.Kind
	}

	records := []models.Record{}
	for rows.Next() {
		raw := map[string]interface{}{}
		if err := rows.MapScan(raw); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		record := make(models.Record, len(raw))
		for col, value := range raw {
			record[col] = readValue(kinds[col], value)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return records, nil
}
