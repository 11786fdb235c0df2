package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/casefile-api/internal/catalog"
	"github.com/noah-isme/casefile-api/internal/models"
)

// existingChild is a stored child row reduced to what matching needs.
type existingChild struct {
	ID      int64
	Deleted bool
	Key     string
}

// childRefresh pairs a stored row with the incoming row that claimed it.
type childRefresh struct {
	ID    int64
	Index int
}

// matchPlan is the set of writes that brings stored children in line with the
// submitted list.
type matchPlan struct {
	Refresh []childRefresh
	Insert  []int
	Retire  []int64
}

// planMatchSync pairs every incoming row with at most one stored row carrying
// the same match key. Keys compare the coerced match fields lowercased and
// trimmed, so rows differing only in letter case or surrounding whitespace
// count as the same row. Live rows are claimed before soft-deleted ones. Stored
// live rows left unclaimed are retired.
func planMatchSync(existing []existingChild, incoming []models.Record, spec catalog.ChildSpec) matchPlan {
	plan := matchPlan{}
	claimed := make([]bool, len(existing))

	for index, row := range incoming {
		key := matchKey(row, spec)
		match := -1
		for i, candidate := range existing {
			if claimed[i] || candidate.Key != key {
				continue
			}
			if !candidate.Deleted {
				match = i
				break
			}
			if match < 0 {
				match = i
			}
		}
		if match < 0 {
			plan.Insert = append(plan.Insert, index)
			continue
		}
		claimed[match] = true
		plan.Refresh = append(plan.Refresh, childRefresh{ID: existing[match].ID, Index: index})
	}

	for i, candidate := range existing {
		if !claimed[i] && !candidate.Deleted {
			plan.Retire = append(plan.Retire, candidate.ID)
		}
	}
	return plan
}

func matchKey(row models.Record, spec catalog.ChildSpec) string {
	parts := make([]string, 0, len(spec.MatchOn))
	for _, name := range spec.MatchOn {
		field, _ := spec.Field(name)
		value := coerce(field.Kind, row[name])
		if t, ok := value.(time.Time); ok {
			value = t.Format(models.DateLayout)
		}
		parts = append(parts, strings.ToLower(strings.TrimSpace(models.ToString(value))))
	}
	return strings.Join(parts, "\x1f")
}

func syncChildren(ctx context.Context, tx *sqlx.Tx, spec catalog.ChildSpec, parentID int64, rows []models.Record, now time.Time) error {
	if spec.Strategy == catalog.SyncMatchFields {
		return matchChildren(ctx, tx, spec, parentID, rows, now)
	}
	return replaceChildren(ctx, tx, spec, parentID, rows, now)
}

func replaceChildren(ctx context.Context, tx *sqlx.Tx, spec catalog.ChildSpec, parentID int64, rows []models.Record, now time.Time) error {
	if spec.SoftDelete {
		query := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $2 AND %s IS NULL", spec.Table, catalog.ColumnDeletedDate, spec.ForeignKey, catalog.ColumnDeletedDate)
		if _, err := tx.ExecContext(ctx, query, now, parentID); err != nil {
			return fmt.Errorf("retire %s: %w", spec.Name, err)
		}
	} else {
		query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", spec.Table, spec.ForeignKey)
		if _, err := tx.ExecContext(ctx, query, parentID); err != nil {
			return fmt.Errorf("clear %s: %w", spec.Name, err)
		}
	}
	return insertChildren(ctx, tx, spec, parentID, rows, now)
}

func insertChildren(ctx context.Context, tx *sqlx.Tx, spec catalog.ChildSpec, parentID int64, rows []models.Record, now time.Time) error {
	for index, row := range rows {
		if err := insertChild(ctx, tx, spec, parentID, index, row, now); err != nil {
			return err
		}
	}
	return nil
}

func insertChild(ctx context.Context, tx *sqlx.Tx, spec catalog.ChildSpec, parentID int64, index int, row models.Record, now time.Time) error {
	columns := []string{spec.ForeignKey, catalog.ColumnSortOrder, catalog.ColumnAddedDate, catalog.ColumnUpdatedDate}
	args := []interface{}{parentID, sortOrder(row, index), now, now}
	for _, field := range spec.Fields {
		columns = append(columns, field.Name)
		args = append(args, coerce(field.Kind, row[field.Name]))
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", spec.Table, strings.Join(columns, ", "), placeholders(1, len(args)))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", spec.Name, err)
	}
	return nil
}

func matchChildren(ctx context.Context, tx *sqlx.Tx, spec catalog.ChildSpec, parentID int64, rows []models.Record, now time.Time) error {
	columns := append([]string{catalog.ColumnID, catalog.ColumnDeletedDate}, spec.MatchOn...)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 ORDER BY id ASC", strings.Join(columns, ", "), spec.Table, spec.ForeignKey)
	stored, err := queryMany(ctx, tx, spec.Fields, query, parentID)
	if err != nil {
		return fmt.Errorf("load %s: %w", spec.Name, err)
	}

	existing := make([]existingChild, 0, len(stored))
	for _, row := range stored {
		id, _ := row.Int64(catalog.ColumnID)
		existing = append(existing, existingChild{
			ID:      id,
			Deleted: row[catalog.ColumnDeletedDate] != nil,
			Key:     matchKey(row, spec),
		})
	}

	plan := planMatchSync(existing, rows, spec)
	for _, refresh := range plan.Refresh {
		if err := refreshChild(ctx, tx, spec, refresh, rows[refresh.Index], now); err != nil {
			return err
		}
	}
	for _, index := range plan.Insert {
		if err := insertChild(ctx, tx, spec, parentID, index, rows[index], now); err != nil {
			return err
		}
	}
	if len(plan.Retire) > 0 {
		retire := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE id = $2", spec.Table, catalog.ColumnDeletedDate)
		for _, id := range plan.Retire {
			if _, err := tx.ExecContext(ctx, retire, now, id); err != nil {
				return fmt.Errorf("retire %s %d: %w", spec.Name, id, err)
			}
		}
	}
	return nil
}

func refreshChild(ctx context.Context, tx *sqlx.Tx, spec catalog.ChildSpec, refresh childRefresh, row models.Record, now time.Time) error {
	sets := []string{}
	args := []interface{}{}
	for _, field := range spec.Fields {
		args = append(args, coerce(field.Kind, row[field.Name]))
		sets = append(sets, fmt.Sprintf("%s = $%d", field.Name, len(args)))
	}
	args = append(args, sortOrder(row, refresh.Index), now, refresh.ID)
	sets = append(sets,
		fmt.Sprintf("%s = $%d", catalog.ColumnSortOrder, len(args)-2),
		fmt.Sprintf("%s = $%d", catalog.ColumnUpdatedDate, len(args)-1),
		catalog.ColumnDeletedDate+" = NULL",
	)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", spec.Table, strings.Join(sets, ", "), len(args))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("refresh %s %d: %w", spec.Name, refresh.ID, err)
	}
	return nil
}

func loadChildren(ctx context.Context, q sqlx.QueryerContext, spec catalog.ChildSpec, parentID int64) ([]models.Record, error) {
	columns := []string{catalog.ColumnID, spec.ForeignKey, catalog.ColumnSortOrder, catalog.ColumnAddedDate, catalog.ColumnUpdatedDate}
	for _, field := range spec.Fields {
		columns = append(columns, field.Name)
	}
	where := spec.ForeignKey + " = $1"
	if spec.SoftDelete {
		where += " AND " + catalog.ColumnDeletedDate + " IS NULL"
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s ASC, id ASC", strings.Join(columns, ", "), spec.Table, where, catalog.ColumnSortOrder)
	rows, err := queryMany(ctx, q, spec.Fields, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", spec.Name, err)
	}
	return rows, nil
}

func sortOrder(row models.Record, index int) int64 {
	if explicit, ok := row.Int64(catalog.ColumnSortOrder); ok {
		return explicit
	}
	return int64(index)
}
