// Package catalog describes every document type kept in a student's case file:
// the table it lives in, its columns, how new versions are scoped, how child
// collections are synchronised and how its template placeholders are filled.
package catalog

import (
	"sort"
	"strconv"
	"strings"
)

// FieldKind is the storage type of a scalar column.
type FieldKind string

const (
	KindText FieldKind = "text"
	KindDate FieldKind = "date"
	KindInt  FieldKind = "int"
	KindJSON FieldKind = "json"
)

// SyncStrategy selects how a child collection is rewritten on save.
type SyncStrategy string

const (
	// SyncReplaceAll removes every live child and inserts the submitted list.
	SyncReplaceAll SyncStrategy = "replace_all"
	// SyncMatchFields keeps rows whose match fields are unchanged.
	SyncMatchFields SyncStrategy = "match_fields"
)

// TemplateFormat is the file format of a document template.
type TemplateFormat string

const (
	FormatDOCX TemplateFormat = "docx"
	FormatPDF  TemplateFormat = "pdf"
)

// Delimiters wrap a placeholder name inside a template.
type Delimiters string

const (
	DelimCurly  Delimiters = "curly"  // {tag}
	DelimSquare Delimiters = "square" // [tag]
	DelimAngle  Delimiters = "angle"  // <<tag>>
)

// Standard columns present on every document table.
const (
	ColumnID          = "id"
	ColumnStudentID   = "student_id"
	ColumnAddedDate   = "added_date"
	ColumnUpdatedDate = "updated_date"
	ColumnDeletedDate = "deleted_date"
	ColumnSortOrder   = "sort_order"
)

// Field is a scalar column of a document or child table.
type Field struct {
	Name string    `yaml:"name"`
	Kind FieldKind `yaml:"kind"`
}

// ChildSpec describes a repeating sub-record collection.
type ChildSpec struct {
	Name       string       `yaml:"name"`
	Table      string       `yaml:"table"`
	ForeignKey string       `yaml:"foreign_key"`
	Strategy   SyncStrategy `yaml:"strategy"`
	SoftDelete bool         `yaml:"soft_delete"`
	MatchOn    []string     `yaml:"match_on"`
	Fields     []Field      `yaml:"fields"`
}

// Field returns the named child field.
func (c ChildSpec) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Template names the file used to render a document type.
type Template struct {
	Name       string         `yaml:"name"`
	Format     TemplateFormat `yaml:"format"`
	Delimiters Delimiters     `yaml:"delimiters"`
}

// FileName returns the template file name inside the templates directory.
func (t Template) FileName() string {
	return t.Name + "." + string(t.Format)
}

// Rule maps record data to one or more template placeholders.
type Rule struct {
	Kind        string            `yaml:"kind"`
	Placeholder string            `yaml:"placeholder"`
	Source      string            `yaml:"source"`
	Sources     []string          `yaml:"sources"`
	Separator   string            `yaml:"separator"`
	Lookup      string            `yaml:"lookup"`
	Options     map[string]string `yaml:"options"`
	Birth       string            `yaml:"birth"`
	Reference   string            `yaml:"reference"`
	Months      string            `yaml:"months_placeholder"`
	Child       string            `yaml:"child"`
	Limit       int               `yaml:"limit"`
	Columns     []Rule            `yaml:"columns"`
}

// Rule kinds understood by the field mapper.
const (
	RuleText        = "text"
	RuleDate        = "date"
	RuleLookup      = "lookup"
	RuleCheckbox    = "checkbox"
	RuleMultiSelect = "multiselect"
	RuleAge         = "age"
	RuleToday       = "today"
	RuleJoin        = "join"
	RuleTable       = "table"
)

// DocumentType is the full schema of one kind of case-file document.
type DocumentType struct {
	ID                 int         `yaml:"id"`
	Key                string      `yaml:"key"`
	Name               string      `yaml:"name"`
	Table              string      `yaml:"table"`
	VersionColumn      string      `yaml:"version_column"`
	DocumentTypeColumn string      `yaml:"document_type_column"`
	UniqueBy           []string    `yaml:"unique_by"`
	SoftDelete         bool        `yaml:"soft_delete"`
	Folder             bool        `yaml:"folder"`
	Fields             []Field     `yaml:"fields"`
	Children           []ChildSpec `yaml:"children"`
	Template           Template    `yaml:"template"`
	Placeholders       []Rule      `yaml:"placeholders"`
}

// Field returns the named scalar field, including the student_id column.
func (d *DocumentType) Field(name string) (Field, bool) {
	if name == ColumnStudentID {
		return Field{Name: ColumnStudentID, Kind: KindInt}, true
	}
	if d.DocumentTypeColumn != "" && name == d.DocumentTypeColumn {
		return Field{Name: name, Kind: KindInt}, true
	}
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Child returns the named child collection.
func (d *DocumentType) Child(name string) (ChildSpec, bool) {
	for _, c := range d.Children {
		if c.Name == name {
			return c, true
		}
	}
	return ChildSpec{}, false
}

// Columns returns every selectable column of the document table.
func (d *DocumentType) Columns() []string {
	cols := []string{ColumnID, ColumnStudentID}
	if d.DocumentTypeColumn != "" {
		cols = append(cols, d.DocumentTypeColumn)
	}
	cols = append(cols, d.VersionColumn, ColumnAddedDate, ColumnUpdatedDate)
	if d.SoftDelete {
		cols = append(cols, ColumnDeletedDate)
	}
	for _, f := range d.Fields {
		cols = append(cols, f.Name)
	}
	return cols
}

// LookupSpec resolves foreign keys of one lookup table to a display label.
type LookupSpec struct {
	Table        string   `yaml:"table"`
	KeyColumn    string   `yaml:"key_column"`
	LabelColumns []string `yaml:"label_columns"`
}

// Catalog is the set of known document types.
type Catalog struct {
	Documents        []DocumentType        `yaml:"documents"`
	Lookups          map[string]LookupSpec `yaml:"lookups"`
	GenericTemplates map[int]string        `yaml:"generic_templates"`

	byID  map[int]*DocumentType
	byKey map[string]*DocumentType
}

// Resolve finds a document type by numeric id or key.
func (c *Catalog) Resolve(ref string) (*DocumentType, bool) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(ref); err == nil {
		doc, ok := c.byID[id]
		return doc, ok
	}
	doc, ok := c.byKey[strings.ToLower(ref)]
	return doc, ok
}

// ByID finds a document type by numeric id.
func (c *Catalog) ByID(id int) (*DocumentType, bool) {
	doc, ok := c.byID[id]
	return doc, ok
}

// Lookup returns the lookup table definition by name.
func (c *Catalog) Lookup(name string) (LookupSpec, bool) {
	spec, ok := c.Lookups[name]
	return spec, ok
}

// GenericTemplate returns the template file stem for a document id that has no
// schema of its own.
func (c *Catalog) GenericTemplate(documentID int) string {
	if name, ok := c.GenericTemplates[documentID]; ok && name != "" {
		return name
	}
	return "document_" + strconv.Itoa(documentID)
}

// Summary is the public listing of a document type.
type Summary struct {
	ID       int            `json:"id"`
	Key      string         `json:"key"`
	Name     string         `json:"name"`
	Format   TemplateFormat `json:"format"`
	Children []string       `json:"children,omitempty"`
}

// Summaries lists document types ordered by id.
func (c *Catalog) Summaries() []Summary {
	out := make([]Summary, 0, len(c.Documents))
	for _, d := range c.Documents {
		s := Summary{ID: d.ID, Key: d.Key, Name: d.Name, Format: d.Template.Format}
		for _, ch := range d.Children {
			s.Children = append(s.Children, ch.Name)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
