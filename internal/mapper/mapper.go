// Package mapper turns a stored record and the student it belongs to into the
// flat placeholder dictionary consumed by the template renderers.
package mapper

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/casefile-api/internal/catalog"
	"github.com/noah-isme/casefile-api/internal/models"
)

// DisplayDateLayout is how dates are printed on documents.
const DisplayDateLayout = "02/01/2006"

// Labeler resolves a lookup-table id to its display label. Unknown ids resolve
// to "".
type Labeler interface {
	Label(lookup string, id int64) string
}

// LabelerFunc adapts a function to Labeler.
type LabelerFunc func(lookup string, id int64) string

// Label implements Labeler.
func (f LabelerFunc) Label(lookup string, id int64) string {
	if f == nil {
		return ""
	}
	return f(lookup, id)
}

// Mapper evaluates catalog placeholder rules.
type Mapper struct {
	now func() time.Time
}

// New constructs a mapper using the wall clock for today and age fallbacks.
func New() *Mapper {
	return &Mapper{now: time.Now}
}

// WithClock returns a mapper reading "today" from now.
func WithClock(now func() time.Time) *Mapper {
	return &Mapper{now: now}
}

type sources struct {
	record  models.Record
	student models.Record
	row     models.Record
}

func (s sources) value(ref string) interface{} {
	scope, name, found := strings.Cut(ref, ".")
	if !found {
		return s.record[ref]
	}
	switch scope {
	case "student":
		return s.student[name]
	case "row":
		return s.row[name]
	default:
		return s.record[name]
	}
}

// Map builds the placeholder dictionary for a document. Student identity
// placeholders are always present; document rules may override them.
func (m *Mapper) Map(doc *catalog.DocumentType, record, student models.Record, labels Labeler) map[string]string {
	out := m.Identity(student, labels)
	src := sources{record: record, student: student}
	for _, rule := range doc.Placeholders {
		m.apply(out, rule, src, labels, "")
	}
	return out
}

// Identity builds the student identity placeholders printed on every document.
func (m *Mapper) Identity(student models.Record, labels Labeler) map[string]string {
	if labels == nil {
		labels = LabelerFunc(nil)
	}
	src := sources{student: student}
	names := student.String("names")
	father := student.String("father_lastname")
	mother := student.String("mother_lastname")

	out := map[string]string{
		"student_names":           strings.TrimSpace(names),
		"student_father_lastname": strings.TrimSpace(father),
		"student_mother_lastname": strings.TrimSpace(mother),
		"student_full_name":       joinNonEmpty(" ", names, father, mother),
		"student_lastnames":       joinNonEmpty(" ", father, mother),
		"student_identification":  strings.TrimSpace(student.String("identification_number")),
		"student_address":         strings.TrimSpace(student.String("address")),
		"student_phone":           strings.TrimSpace(student.String("phone")),
		"student_birth_date":      formatDate(student["birth_date"]),
		"student_gender":          lookupLabel(labels, "genders", student["gender_id"]),
		"student_nationality":     lookupLabel(labels, "nationalities", student["nationality_id"]),
		"student_commune":         lookupLabel(labels, "communes", student["commune_id"]),
		"student_school":          lookupLabel(labels, "schools", student["school_id"]),
		"student_course":          lookupLabel(labels, "courses", student["course_id"]),
		"today":                   m.now().Format(DisplayDateLayout),
	}
	m.apply(out, catalog.Rule{Kind: catalog.RuleAge, Placeholder: "student_age", Birth: "student.birth_date"}, src, labels, "")
	return out
}

func (m *Mapper) apply(out map[string]string, rule catalog.Rule, src sources, labels Labeler, n string) {
	if labels == nil {
		labels = LabelerFunc(nil)
	}
	name := func(placeholder string) string {
		if n == "" {
			return placeholder
		}
		return strings.ReplaceAll(placeholder, "{n}", n)
	}

	switch rule.Kind {
	case catalog.RuleText:
		out[name(rule.Placeholder)] = formatText(src.value(rule.Source))
	case catalog.RuleDate:
		out[name(rule.Placeholder)] = formatDate(src.value(rule.Source))
	case catalog.RuleLookup:
		out[name(rule.Placeholder)] = lookupLabel(labels, rule.Lookup, src.value(rule.Source))
	case catalog.RuleToday:
		out[name(rule.Placeholder)] = m.now().Format(DisplayDateLayout)
	case catalog.RuleCheckbox:
		code := normalize(models.ToString(src.value(rule.Source)))
		for placeholder, option := range rule.Options {
			out[name(placeholder)] = flag(code != "" && code == normalize(option))
		}
	case catalog.RuleMultiSelect:
		selected := Selections(src.value(rule.Source))
		for placeholder, option := range rule.Options {
			_, ok := selected[normalize(option)]
			out[name(placeholder)] = flag(ok)
		}
	case catalog.RuleAge:
		birth, ok := parseDate(src.value(rule.Birth))
		reference, refOK := parseDate(src.value(rule.Reference))
		if !refOK {
			reference = m.now()
		}
		years, months, valid := Age(birth, reference)
		if !ok || !valid {
			out[name(rule.Placeholder)] = ""
			if rule.Months != "" {
				out[name(rule.Months)] = ""
			}
			return
		}
		out[name(rule.Placeholder)] = strconv.Itoa(years)
		if rule.Months != "" {
			out[name(rule.Months)] = strconv.Itoa(months)
		}
	case catalog.RuleJoin:
		parts := make([]string, 0, len(rule.Sources))
		for _, ref := range rule.Sources {
			parts = append(parts, formatText(src.value(ref)))
		}
		separator := rule.Separator
		if separator == "" {
			separator = " "
		}
		out[name(rule.Placeholder)] = joinNonEmpty(separator, parts...)
	case catalog.RuleTable:
		m.applyTable(out, rule, src, labels)
	}
}

func (m *Mapper) applyTable(out map[string]string, rule catalog.Rule, src sources, labels Labeler) {
	rows, _ := src.record.Children(rule.Child)
	count := len(rows)
	if rule.Limit > 0 {
		count = rule.Limit
	}
	for i := 0; i < count; i++ {
		row := models.Record{}
		if i < len(rows) {
			row = rows[i]
		}
		rowSrc := sources{record: src.record, student: src.student, row: row}
		for _, column := range rule.Columns {
			m.apply(out, column, rowSrc, labels, strconv.Itoa(i+1))
		}
	}
}

// Age returns whole years and the remaining months between birth and reference.
// valid is false when reference precedes birth.
func Age(birth, reference time.Time) (years, months int, valid bool) {
	if reference.Before(birth) {
		return 0, 0, false
	}
	total := (reference.Year()-birth.Year())*12 + int(reference.Month()) - int(birth.Month())
	if reference.Day() < birth.Day() {
		total--
	}
	return total / 12, total % 12, true
}

// Selections parses a multi-select value: a JSON array (or decoded slice) of
// strings or objects carrying a "value" key. Anything else selects nothing.
func Selections(value interface{}) map[string]struct{} {
	selected := map[string]struct{}{}

	var items []interface{}
	switch v := value.(type) {
	case []interface{}:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case string, []byte:
		raw := models.ToString(v)
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return selected
		}
	default:
		return selected
	}

	for _, item := range items {
		var text string
		switch it := item.(type) {
		case string:
			text = it
		case map[string]interface{}:
			text = models.ToString(it["value"])
		case float64:
			text = models.ToString(it)
		default:
			continue
		}
		if key := normalize(text); key != "" {
			selected[key] = struct{}{}
		}
	}
	return selected
}

func formatText(value interface{}) string {
	switch v := value.(type) {
	case []interface{}, map[string]interface{}:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
	return models.ToString(value)
}

func formatDate(value interface{}) string {
	t, ok := parseDate(value)
	if !ok {
		return ""
	}
	return t.Format(DisplayDateLayout)
}

func parseDate(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, !v.IsZero()
	case []byte:
		return parseDate(string(v))
	case string:
		s := strings.TrimSpace(v)
		if len(s) >= len(models.DateLayout) {
			if t, err := time.Parse(models.DateLayout, s[:len(models.DateLayout)]); err == nil {
				return t, true
			}
		}
		if t, err := time.Parse(DisplayDateLayout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func lookupLabel(labels Labeler, lookup string, value interface{}) string {
	id, ok := models.ToInt64(value)
	if !ok || id == 0 {
		return ""
	}
	return labels.Label(lookup, id)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func flag(on bool) string {
	if on {
		return "1"
	}
	return ""
}

func joinNonEmpty(separator string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, separator)
}
