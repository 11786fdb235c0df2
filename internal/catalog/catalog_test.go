package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	doc, ok := c.Resolve("1")
	require.True(t, ok)
	assert.Equal(t, "anamnesis", doc.Key)
	assert.Equal(t, "version", doc.VersionColumn)
	assert.Equal(t, []string{ColumnStudentID}, doc.UniqueBy)
	assert.Len(t, doc.Children, 3)

	byKey, ok := c.Resolve("Anamnesis")
	require.True(t, ok)
	assert.Same(t, doc, byKey)

	_, ok = c.Resolve("999")
	assert.False(t, ok)
}

func TestDefaultCatalogSupportPlanScope(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	plan, ok := c.Resolve("individual_support_plan")
	require.True(t, ok)
	assert.Equal(t, "version_id", plan.VersionColumn)
	assert.Equal(t, "document_type_id", plan.DocumentTypeColumn)
	assert.Equal(t, []string{"student_id", "school_id", "document_type_id", "period_id"}, plan.UniqueBy)
	assert.True(t, plan.SoftDelete)

	professionals, ok := plan.Child("professionals")
	require.True(t, ok)
	assert.Equal(t, SyncMatchFields, professionals.Strategy)
	assert.Len(t, professionals.MatchOn, 7)

	followUp, ok := c.ByID(5)
	require.True(t, ok)
	assert.Equal(t, plan.Table, followUp.Table)
	assert.Equal(t, "support_plan_follow_up", followUp.Template.Name)
}

func TestColumnsIncludeStandardColumns(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	doc, _ := c.Resolve("health_evaluation")
	cols := doc.Columns()
	assert.Equal(t, []string{"id", "student_id", "version", "added_date", "updated_date", "deleted_date"}, cols[:6])
	assert.Contains(t, cols, "evaluation_date")
}

func TestGenericTemplateFallback(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "school_record_cover", c.GenericTemplate(20))
	assert.Equal(t, "document_77", c.GenericTemplate(77))
}

func TestSummariesOrderedByID(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	summaries := c.Summaries()
	require.NotEmpty(t, summaries)
	for i := 1; i < len(summaries); i++ {
		assert.Less(t, summaries[i-1].ID, summaries[i].ID)
	}
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	cases := map[string]string{
		"empty": `documents: []`,
		"bad identifier": `
documents:
  - id: 1
    key: x
    table: "x; drop table students"`,
		"duplicate id": `
documents:
  - {id: 1, key: a, table: a}
  - {id: 1, key: b, table: b}`,
		"unknown lookup": `
documents:
  - id: 1
    key: a
    table: a
    fields: [{name: school_id, kind: int}]
    placeholders:
      - {kind: lookup, placeholder: school, source: record.school_id, lookup: schools}`,
		"unique_by outside fields": `
documents:
  - {id: 1, key: a, table: a, unique_by: [student_id, period_id]}`,
		"match without soft delete": `
documents:
  - id: 1
    key: a
    table: a
    children:
      - name: rows
        table: a_rows
        foreign_key: a_id
        strategy: match_fields
        match_on: [name]
        fields: [{name: name}]`,
		"table column without marker": `
documents:
  - id: 1
    key: a
    table: a
    children:
      - {name: rows, table: a_rows, foreign_key: a_id, fields: [{name: name}]}
    placeholders:
      - kind: table
        child: rows
        columns:
          - {kind: text, placeholder: row_name, source: row.name}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
documents:
  - id: 40
    key: custom_note
    table: custom_notes
    fields: [{name: body}]
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	doc, ok := c.Resolve("40")
	require.True(t, ok)
	assert.Equal(t, KindText, doc.Fields[0].Kind)
	assert.Equal(t, FormatDOCX, doc.Template.Format)
	assert.Equal(t, "custom_note", doc.Template.Name)
}
