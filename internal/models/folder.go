package models

import "time"

// FolderEntry is an append-only ledger row pointing at the latest artifact of a
// document type for a student: either a stored record (DetailID) or a rendered
// file (File).
type FolderEntry struct {
	ID         int64     `db:"id" json:"id"`
	StudentID  int64     `db:"student_id" json:"student_id"`
	DocumentID int       `db:"document_id" json:"document_id"`
	VersionID  int64     `db:"version_id" json:"version_id"`
	DetailID   *int64    `db:"detail_id" json:"detail_id,omitempty"`
	File       *string   `db:"file" json:"file,omitempty"`
	AddedDate  time.Time `db:"added_date" json:"added_date"`
}

// FolderItem is a ledger entry decorated with the document type name.
type FolderItem struct {
	FolderEntry
	DocumentKey  string `json:"document_key,omitempty"`
	DocumentName string `json:"document_name,omitempty"`
}
