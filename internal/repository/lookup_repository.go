package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/casefile-api/internal/catalog"
	"github.com/noah-isme/casefile-api/internal/models"
)

// LookupRepository reads student identities and lookup-table labels.
type LookupRepository struct {
	db *sqlx.DB
}

// NewLookupRepository constructs the repository.
func NewLookupRepository(db *sqlx.DB) *LookupRepository {
	return &LookupRepository{db: db}
}

// Student fetches the identity fields of a student.
func (r *LookupRepository) Student(ctx context.Context, id int64) (*models.Student, error) {
	const query = `
SELECT
	id,
	COALESCE(identification_number, '') AS identification_number,
	COALESCE(names, '') AS names,
	COALESCE(father_lastname, '') AS father_lastname,
	COALESCE(mother_lastname, '') AS mother_lastname,
	birth_date,
	gender_id,
	nationality_id,
	commune_id,
	COALESCE(address, '') AS address,
	COALESCE(phone, '') AS phone,
	school_id,
	course_id
FROM students
WHERE id = $1`

	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, fmt.Errorf("get student %d: %w", id, err)
	}
	return &student, nil
}

// Label returns the display label of a lookup row. Missing rows surface
// sql.ErrNoRows.
func (r *LookupRepository) Label(ctx context.Context, spec catalog.LookupSpec, id int64) (string, error) {
	keyColumn := spec.KeyColumn
	if keyColumn == "" {
		keyColumn = catalog.ColumnID
	}
	query := fmt.Sprintf("SELECT concat_ws(' ', %s) FROM %s WHERE %s = $1", strings.Join(spec.LabelColumns, ", "), spec.Table, keyColumn)

	var label string
	if err := r.db.GetContext(ctx, &label, query, id); err != nil {
		return "", fmt.Errorf("lookup %s %d: %w", spec.Table, id, err)
	}
	return strings.TrimSpace(label), nil
}
