package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/casefile-api/internal/catalog"
	"github.com/noah-isme/casefile-api/internal/models"
)

var professionalsSpec = catalog.ChildSpec{
	Name:       "professionals",
	Strategy:   catalog.SyncMatchFields,
	SoftDelete: true,
	MatchOn:    []string{"professional_id", "hours", "date_from"},
	Fields: []catalog.Field{
		{Name: "professional_id", Kind: catalog.KindInt},
		{Name: "hours", Kind: catalog.KindText},
		{Name: "date_from", Kind: catalog.KindDate},
	},
}

func stored(id int64, deleted bool, row models.Record) existingChild {
	return existingChild{ID: id, Deleted: deleted, Key: matchKey(row, professionalsSpec)}
}

func TestPlanMatchSyncUnchangedResubmission(t *testing.T) {
	existing := []existingChild{
		stored(1, false, models.Record{"professional_id": int64(9), "hours": "10", "date_from": "2024-03-01"}),
		stored(2, false, models.Record{"professional_id": int64(4), "hours": "6", "date_from": nil}),
	}
	incoming := []models.Record{
		{"professional_id": "9", "hours": "10", "date_from": "2024-03-01"},
		{"professional_id": float64(4), "hours": "6"},
	}

	plan := planMatchSync(existing, incoming, professionalsSpec)
	assert.Equal(t, []childRefresh{{ID: 1, Index: 0}, {ID: 2, Index: 1}}, plan.Refresh)
	assert.Empty(t, plan.Insert)
	assert.Empty(t, plan.Retire)
}

func TestPlanMatchSyncChangedRowIsRecreated(t *testing.T) {
	existing := []existingChild{
		stored(1, false, models.Record{"professional_id": int64(9), "hours": "10", "date_from": "2024-03-01"}),
	}
	incoming := []models.Record{
		{"professional_id": 9, "hours": "12", "date_from": "2024-03-01"},
	}

	plan := planMatchSync(existing, incoming, professionalsSpec)
	assert.Empty(t, plan.Refresh)
	assert.Equal(t, []int{0}, plan.Insert)
	assert.Equal(t, []int64{1}, plan.Retire)
}

func TestPlanMatchSyncRevivesDeletedRow(t *testing.T) {
	existing := []existingChild{
		stored(1, true, models.Record{"professional_id": int64(9), "hours": "10"}),
	}
	incoming := []models.Record{{"professional_id": 9, "hours": "10"}}

	plan := planMatchSync(existing, incoming, professionalsSpec)
	assert.Equal(t, []childRefresh{{ID: 1, Index: 0}}, plan.Refresh)
	assert.Empty(t, plan.Retire)
}

func TestPlanMatchSyncClaimsEachRowOnce(t *testing.T) {
	same := models.Record{"professional_id": int64(9), "hours": "10"}
	existing := []existingChild{
		stored(1, true, same),
		stored(2, false, same),
	}
	incoming := []models.Record{
		{"professional_id": 9, "hours": "10"},
		{"professional_id": 9, "hours": "10"},
		{"professional_id": 9, "hours": "10"},
	}

	plan := planMatchSync(existing, incoming, professionalsSpec)
	// Live rows are claimed before soft-deleted ones.
	assert.Equal(t, []childRefresh{{ID: 2, Index: 0}, {ID: 1, Index: 1}}, plan.Refresh)
	assert.Equal(t, []int{2}, plan.Insert)
	assert.Empty(t, plan.Retire)
}

func TestPlanMatchSyncEmptySubmissionRetiresLiveRows(t *testing.T) {
	existing := []existingChild{
		stored(1, false, models.Record{"professional_id": int64(9)}),
		stored(2, true, models.Record{"professional_id": int64(4)}),
	}

	plan := planMatchSync(existing, nil, professionalsSpec)
	assert.Empty(t, plan.Refresh)
	assert.Empty(t, plan.Insert)
	assert.Equal(t, []int64{1}, plan.Retire)
}

func TestPlanMatchSyncIgnoresCaseAndSurroundingSpace(t *testing.T) {
	existing := []existingChild{
		stored(1, false, models.Record{"professional_id": int64(9), "hours": "Diez", "date_from": "2024-03-01"}),
	}
	incoming := []models.Record{{"professional_id": "9", "hours": "  DIEZ ", "date_from": "2024-03-01"}}

	plan := planMatchSync(existing, incoming, professionalsSpec)
	assert.Equal(t, []childRefresh{{ID: 1, Index: 0}}, plan.Refresh)
	assert.Empty(t, plan.Insert)
	assert.Empty(t, plan.Retire)
}

func TestCoerceDegradesInvalidInput(t *testing.T) {
	assert.Nil(t, coerce(catalog.KindDate, "2024-13-45"))
	assert.Nil(t, coerce(catalog.KindInt, "abc"))
	assert.Equal(t, int64(12), coerce(catalog.KindInt, " 12 "))
	assert.Equal(t, "raw text", coerce(catalog.KindJSON, "raw text"))
	assert.Equal(t, `{"a":1}`, coerce(catalog.KindJSON, map[string]interface{}{"a": 1}))
	assert.Equal(t, "not-json-[", readValue(catalog.KindJSON, []byte("not-json-[")))
}

func TestCoerceJSONStoresStringsVerbatim(t *testing.T) {
	value := coerce(catalog.KindJSON, "123")
	assert.Equal(t, "123", value)
	assert.Equal(t, float64(123), readValue(catalog.KindJSON, value))

	value = coerce(catalog.KindJSON, `"123"`)
	assert.Equal(t, `"123"`, value)
	assert.Equal(t, "123", readValue(catalog.KindJSON, value))

	value = coerce(catalog.KindJSON, []interface{}{"TEA", "TDAH"})
	assert.Equal(t, []interface{}{"TEA", "TDAH"}, readValue(catalog.KindJSON, value))
}
