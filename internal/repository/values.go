package repository

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/noah-isme/casefile-api/internal/catalog"
	"github.com/noah-isme/casefile-api/internal/models"
)

// coerce converts request input into the driver value stored for a column kind.
// Unparseable dates and integers become NULL. JSON columns marshal structured
// input and store strings verbatim, so a string is expected to hold serialized
// JSON already: "123" reads back as the number 123, and text that is not JSON
// reads back unchanged.
func coerce(kind catalog.FieldKind, value interface{}) interface{} {
	if value == nil {
		return nil
	}
	switch kind {
	case catalog.KindDate:
		return coerceDate(value)
	case catalog.KindInt:
		if b, ok := value.(bool); ok {
			if b {
				return int64(1)
			}
			return int64(0)
		}
		n, ok := models.ToInt64(value)
		if !ok {
			return nil
		}
		return n
	case catalog.KindJSON:
		switch v := value.(type) {
		case string:
			return v
		case []byte:
			return string(v)
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil
		}
		return string(encoded)
	default:
		switch v := value.(type) {
		case string:
			return v
		case []byte:
			return string(v)
		}
		return models.ToString(value)
	}
}

func coerceDate(value interface{}) interface{} {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return nil
		}
		return time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
	case *time.Time:
		if v == nil {
			return nil
		}
		return coerceDate(*v)
	case []byte:
		return coerceDate(string(v))
	case string:
		parsed, err := time.Parse(models.DateLayout, strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		return parsed
	default:
		return nil
	}
}

// readValue normalises a scanned driver value. Dates render as YYYY-MM-DD and
// JSON columns decode when well formed, falling back to the raw text.
func readValue(kind catalog.FieldKind, value interface{}) interface{} {
	if b, ok := value.([]byte); ok {
		value = string(b)
	}
	if value == nil {
		return nil
	}
	switch kind {
	case catalog.KindDate:
		switch v := value.(type) {
		case time.Time:
			return v.Format(models.DateLayout)
		case string:
			if len(v) >= len(models.DateLayout) {
				if _, err := time.Parse(models.DateLayout, v[:len(models.DateLayout)]); err == nil {
					return v[:len(models.DateLayout)]
				}
			}
			return v
		}
	case catalog.KindJSON:
		if s, ok := value.(string); ok {
			var decoded interface{}
			if err := json.Unmarshal([]byte(s), &decoded); err != nil {
				return s
			}
			return decoded
		}
	}
	return value
}
