package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tenantry/tenantdb/internal/store"
)

// ValidateInsert checks that row conforms to the table's structure: every
// required column (NOT NULL, no default, not auto-generated) is present,
// no unknown columns are supplied, and provided values match their column's
// type category and length constraint.
func (r *Registry) ValidateInsert(ctx context.Context, schemaName, tableName string, row store.Row) error {
	table, err := r.Table(ctx, schemaName, tableName)
	if err != nil {
		return err
	}

	for _, col := range table.Columns {
		if col.Nullable || col.HasDefault || col.AutoGenerated() {
			continue
		}
		// An explicit nil is reported by the value loop below as a null
		// violation, not as a missing column.
		if _, ok := row[col.Name]; !ok {
			return fmt.Errorf("missing required column %q in %s", col.Name, table.QualifiedName())
		}
	}

	for name, value := range row {
		col, ok := table.Column(name)
		if !ok {
			return NewColumnMatchError(name, schemaName, tableName, table.ColumnNames())
		}
		if value == nil {
			if !col.Nullable {
				return fmt.Errorf("column %q in %s cannot be null", name, table.QualifiedName())
			}
			continue
		}
		if err := validateValue(value, col); err != nil {
			return fmt.Errorf("invalid value for column %q in %s: %w", name, table.QualifiedName(), err)
		}
	}

	return nil
}

func validateValue(value any, col Column) error {
	switch col.Type {
	case Text:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		if col.MaxLength > 0 && len([]rune(s)) > col.MaxLength {
			return fmt.Errorf("string exceeds maximum length of %d", col.MaxLength)
		}
		if len(col.Enum) > 0 && !containsString(col.Enum, s) {
			return fmt.Errorf("value %q not in allowed set %v", s, col.Enum)
		}
	case Integer:
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		default:
			return fmt.Errorf("expected integer, got %T", value)
		}
	case Float:
		switch value.(type) {
		case float32, float64, int, int32, int64:
		default:
			return fmt.Errorf("expected number, got %T", value)
		}
	case Boolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case Timestamp, Date, Time:
		switch value.(type) {
		case time.Time, string:
		default:
			return fmt.Errorf("expected timestamp, got %T", value)
		}
	case UUID:
		switch v := value.(type) {
		case uuid.UUID:
		case string:
			if _, err := uuid.Parse(v); err != nil {
				return fmt.Errorf("invalid uuid format: %q", v)
			}
		default:
			return fmt.Errorf("expected uuid, got %T", value)
		}
	case JSON:
		if _, err := json.Marshal(value); err != nil {
			return fmt.Errorf("value is not JSON-serializable: %v", err)
		}
	case Array:
		switch value.(type) {
		case []any, []string, []int, []int64, []float64, []bool:
		default:
			return fmt.Errorf("expected array, got %T", value)
		}
	case Unknown:
		// Unknown declared types are accepted without validation.
	}
	return nil
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
