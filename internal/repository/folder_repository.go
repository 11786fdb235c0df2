package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/casefile-api/internal/models"
)

type namedExecer interface {
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

// FolderRepository manages the append-only folders ledger.
type FolderRepository struct {
	db *sqlx.DB
}

// NewFolderRepository constructs the repository.
func NewFolderRepository(db *sqlx.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

// Append records a new ledger entry.
func (r *FolderRepository) Append(ctx context.Context, entry *models.FolderEntry) error {
	if entry.AddedDate.IsZero() {
		entry.AddedDate = time.Now().UTC()
	}
	return appendFolderEntry(ctx, r.db, entry)
}

// ListLatest returns the newest ledger entry per document type for a student.
func (r *FolderRepository) ListLatest(ctx context.Context, studentID int64) ([]models.FolderEntry, error) {
	const query = `
SELECT DISTINCT ON (document_id) id, student_id, document_id, version_id, detail_id, file, added_date
FROM folders
WHERE student_id = $1
ORDER BY document_id ASC, id DESC`

	var entries []models.FolderEntry
	if err := r.db.SelectContext(ctx, &entries, query, studentID); err != nil {
		return nil, fmt.Errorf("list latest folder entries: %w", err)
	}
	return entries, nil
}

// History returns every ledger entry of a document type for a student, newest first.
func (r *FolderRepository) History(ctx context.Context, studentID int64, documentID int) ([]models.FolderEntry, error) {
	const query = `
SELECT id, student_id, document_id, version_id, detail_id, file, added_date
FROM folders
WHERE student_id = $1 AND document_id = $2
ORDER BY id DESC`

	var entries []models.FolderEntry
	if err := r.db.SelectContext(ctx, &entries, query, studentID, documentID); err != nil {
		return nil, fmt.Errorf("list folder history: %w", err)
	}
	return entries, nil
}

func appendFolderEntry(ctx context.Context, exec namedExecer, entry *models.FolderEntry) error {
	const query = `INSERT INTO folders (student_id, document_id, version_id, detail_id, file, added_date)
VALUES (:student_id, :document_id, :version_id, :detail_id, :file, :added_date)`
	if _, err := exec.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append folder entry: %w", err)
	}
	return nil
}
