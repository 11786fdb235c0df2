package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is a document row keyed by column name. Child collections are attached
// under their collection name as []Record.
type Record map[string]interface{}

// Int64 returns the value under key as an int64 when it holds an integer or a
// numeric string.
func (r Record) Int64(key string) (int64, bool) {
	return ToInt64(r[key])
}

// String returns the value under key formatted as a string. Nil renders as "".
func (r Record) String(key string) string {
	return ToString(r[key])
}

// Children returns the child rows stored under name. The second return value
// reports whether the key was present at all.
func (r Record) Children(name string) ([]Record, bool) {
	raw, ok := r[name]
	if !ok {
		return nil, false
	}
	switch rows := raw.(type) {
	case []Record:
		return rows, true
	case []map[string]interface{}:
		out := make([]Record, 0, len(rows))
		for _, row := range rows {
			out = append(out, Record(row))
		}
		return out, true
	case []interface{}:
		out := make([]Record, 0, len(rows))
		for _, item := range rows {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, Record(m))
			}
		}
		return out, true
	case nil:
		return []Record{}, true
	default:
		return nil, false
	}
}

// RecordFilter narrows list queries.
type RecordFilter struct {
	StudentID *int64
	Page      int
	PerPage   int
}

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Paginated reports whether the caller asked for a page. Filters without page
// or per_page list every matching record.
func (f RecordFilter) Paginated() bool {
	return f.Page > 0 || f.PerPage > 0
}

// Normalized returns the page (from 1) and page size (default 20, at most 100).
func (f RecordFilter) Normalized() (page, perPage int) {
	page, perPage = f.Page, f.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// ToInt64 converts common driver and JSON numeric representations.
func ToInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case []byte:
		return ToInt64(string(n))
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// ToString formats a scalar value the way it is compared and displayed.
func ToString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		if s {
			return "1"
		}
		return "0"
	case time.Time:
		if s.IsZero() {
			return ""
		}
		if s.Hour() == 0 && s.Minute() == 0 && s.Second() == 0 && s.Nanosecond() == 0 {
			return s.Format(DateLayout)
		}
		return s.Format(time.RFC3339)
	case *time.Time:
		if s == nil {
			return ""
		}
		return ToString(*s)
	default:
		return fmt.Sprint(s)
	}
}

// DateLayout is the wire format of date columns.
const DateLayout = "2006-01-02"
