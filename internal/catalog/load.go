package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed documents.yaml
var defaultCatalog []byte

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Default returns the catalog bundled with the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads the catalog from path, falling back to the embedded default when
// path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML catalog.
func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) init() error {
	if len(c.Documents) == 0 {
		return fmt.Errorf("catalog defines no documents")
	}
	c.byID = make(map[int]*DocumentType, len(c.Documents))
	c.byKey = make(map[string]*DocumentType, len(c.Documents))

	for name, spec := range c.Lookups {
		if spec.KeyColumn == "" {
			spec.KeyColumn = ColumnID
		}
		if err := checkIdentifiers("lookup "+name, append([]string{spec.Table, spec.KeyColumn}, spec.LabelColumns...)...); err != nil {
			return err
		}
		if len(spec.LabelColumns) == 0 {
			return fmt.Errorf("lookup %s: label_columns required", name)
		}
		c.Lookups[name] = spec
	}

	for i := range c.Documents {
		doc := &c.Documents[i]
		doc.Key = strings.ToLower(strings.TrimSpace(doc.Key))
		if err := c.validateDocument(doc); err != nil {
			return fmt.Errorf("document %q: %w", doc.Key, err)
		}
		if _, dup := c.byID[doc.ID]; dup {
			return fmt.Errorf("document %q: duplicate id %d", doc.Key, doc.ID)
		}
		if _, dup := c.byKey[doc.Key]; dup {
			return fmt.Errorf("duplicate document key %q", doc.Key)
		}
		c.byID[doc.ID] = doc
		c.byKey[doc.Key] = doc
	}
	return nil
}

func (c *Catalog) validateDocument(doc *DocumentType) error {
	if doc.ID <= 0 {
		return fmt.Errorf("id must be positive")
	}
	if doc.Key == "" {
		return fmt.Errorf("key required")
	}
	if doc.VersionColumn == "" {
		doc.VersionColumn = "version"
	}
	if len(doc.UniqueBy) == 0 {
		doc.UniqueBy = []string{ColumnStudentID}
	}
	if doc.Template.Name == "" {
		doc.Template.Name = doc.Key
	}
	if doc.Template.Format == "" {
		doc.Template.Format = FormatDOCX
	}
	if doc.Template.Delimiters == "" {
		doc.Template.Delimiters = DelimCurly
	}
	switch doc.Template.Format {
	case FormatDOCX, FormatPDF:
	default:
		return fmt.Errorf("unknown template format %q", doc.Template.Format)
	}

	names := []string{doc.Table, doc.VersionColumn}
	if doc.DocumentTypeColumn != "" {
		names = append(names, doc.DocumentTypeColumn)
	}
	for i := range doc.Fields {
		if err := checkKind(&doc.Fields[i]); err != nil {
			return err
		}
		names = append(names, doc.Fields[i].Name)
	}
	if err := checkIdentifiers("table", names...); err != nil {
		return err
	}
	for _, col := range doc.UniqueBy {
		if _, ok := doc.Field(col); !ok {
			return fmt.Errorf("unique_by column %q is not a field", col)
		}
	}

	for i := range doc.Children {
		child := &doc.Children[i]
		if child.Strategy == "" {
			child.Strategy = SyncReplaceAll
		}
		if err := validateChild(child); err != nil {
			return fmt.Errorf("child %q: %w", child.Name, err)
		}
	}

	for _, rule := range doc.Placeholders {
		if err := c.validateRule(doc, rule, false); err != nil {
			return fmt.Errorf("placeholder %q: %w", rule.Placeholder, err)
		}
	}
	return nil
}

func validateChild(child *ChildSpec) error {
	names := []string{child.Table, child.ForeignKey}
	for i := range child.Fields {
		if err := checkKind(&child.Fields[i]); err != nil {
			return err
		}
		names = append(names, child.Fields[i].Name)
	}
	if err := checkIdentifiers("child", names...); err != nil {
		return err
	}
	switch child.Strategy {
	case SyncReplaceAll:
	case SyncMatchFields:
		if !child.SoftDelete {
			return fmt.Errorf("match_fields requires soft_delete")
		}
		if len(child.MatchOn) == 0 {
			return fmt.Errorf("match_fields requires match_on")
		}
		for _, name := range child.MatchOn {
			if _, ok := child.Field(name); !ok {
				return fmt.Errorf("match_on field %q is not a field", name)
			}
		}
	default:
		return fmt.Errorf("unknown strategy %q", child.Strategy)
	}
	return nil
}

func (c *Catalog) validateRule(doc *DocumentType, rule Rule, inTable bool) error {
	switch rule.Kind {
	case RuleText, RuleDate, RuleToday:
	case RuleLookup:
		if _, ok := c.Lookups[rule.Lookup]; !ok {
			return fmt.Errorf("unknown lookup %q", rule.Lookup)
		}
	case RuleCheckbox, RuleMultiSelect:
		if len(rule.Options) == 0 {
			return fmt.Errorf("options required")
		}
	case RuleAge:
		if rule.Birth == "" {
			return fmt.Errorf("birth source required")
		}
	case RuleJoin:
		if len(rule.Sources) == 0 {
			return fmt.Errorf("sources required")
		}
	case RuleTable:
		if inTable {
			return fmt.Errorf("nested tables are not supported")
		}
		if _, ok := doc.Child(rule.Child); !ok {
			return fmt.Errorf("unknown child %q", rule.Child)
		}
		if len(rule.Columns) == 0 {
			return fmt.Errorf("columns required")
		}
		for _, col := range rule.Columns {
			if col.Kind != RuleCheckbox && col.Kind != RuleMultiSelect && !strings.Contains(col.Placeholder, "{n}") {
				return fmt.Errorf("column %q needs an {n} marker", col.Placeholder)
			}
			if err := c.validateRule(doc, col, true); err != nil {
				return fmt.Errorf("column %q: %w", col.Placeholder, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown kind %q", rule.Kind)
	}
	if rule.Kind != RuleCheckbox && rule.Kind != RuleMultiSelect && rule.Placeholder == "" {
		return fmt.Errorf("placeholder required")
	}
	return nil
}

func checkKind(f *Field) error {
	if f.Kind == "" {
		f.Kind = KindText
	}
	switch f.Kind {
	case KindText, KindDate, KindInt, KindJSON:
		return nil
	default:
		return fmt.Errorf("field %q: unknown kind %q", f.Name, f.Kind)
	}
}

func checkIdentifiers(scope string, names ...string) error {
	for _, name := range names {
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("%s: invalid identifier %q", scope, name)
		}
	}
	return nil
}
