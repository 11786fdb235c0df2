package dto

import "time"

// RecordListQuery captures GET /documents/:document_id/records query params.
type RecordListQuery struct {
	StudentID *int64 `form:"student_id" validate:"omitempty,gt=0"`
	Page      int    `form:"page" validate:"omitempty,gte=1"`
	PerPage   int    `form:"per_page" validate:"omitempty,gte=1"`
}

// StoreRecordResponse reports the outcome of a store.
type StoreRecordResponse struct {
	ID      int64 `json:"id"`
	Version int64 `json:"version"`
	Created bool  `json:"created"`
}

// UpdateRecordResponse reports the version after an update.
type UpdateRecordResponse struct {
	ID      int64 `json:"id"`
	Version int64 `json:"version"`
}

// RenderURLResponse carries a signed download link for a rendered document.
type RenderURLResponse struct {
	URL       string    `json:"url"`
	File      string    `json:"file"`
	ExpiresAt time.Time `json:"expires_at"`
}
