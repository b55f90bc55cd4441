package catalog

import (
	"fmt"

	iceberg "github.com/apache/iceberg-go"

	"github.com/arkilian/lakeingest/pkg/types"
)

const initialSchemaID = 0

// ToIcebergSchema maps a dataset schema to an Iceberg schema. Field IDs are
// assigned from 1 in column order. Every field is optional so later runs may
// append nulls into any column.
func ToIcebergSchema(schema types.Schema) (*iceberg.Schema, error) {
	fields := make([]iceberg.NestedField, 0, len(schema.Columns))
	for i, col := range schema.Columns {
		typ, err := icebergType(col.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		fields = append(fields, iceberg.NestedField{
			ID:       i + 1,
			Name:     col.Name,
			Type:     typ,
			Required: false,
		})
	}
	return iceberg.NewSchema(initialSchemaID, fields...), nil
}

func icebergType(t types.ColumnType) (iceberg.Type, error) {
	switch t {
	case types.ColumnTypeString:
		return iceberg.PrimitiveTypes.String, nil
	case types.ColumnTypeLong:
		return iceberg.PrimitiveTypes.Int64, nil
	case types.ColumnTypeDouble:
		return iceberg.PrimitiveTypes.Float64, nil
	case types.ColumnTypeBoolean:
		return iceberg.PrimitiveTypes.Bool, nil
	case types.ColumnTypeTimestamp:
		return iceberg.PrimitiveTypes.Timestamp, nil
	default:
		return nil, fmt.Errorf("unsupported column type %q", t)
	}
}

// FromIcebergSchema describes an existing table's schema in dataset terms.
// Types without a dataset equivalent keep their Iceberg name.
func FromIcebergSchema(schema *iceberg.Schema) types.Schema {
	if schema == nil {
		return types.Schema{}
	}
	fields := schema.Fields()
	columns := make([]types.ColumnDef, 0, len(fields))
	for _, f := range fields {
		columns = append(columns, types.ColumnDef{
			Name:     f.Name,
			Type:     columnType(f.Type),
			Nullable: !f.Required,
		})
	}
	return types.Schema{Columns: columns}
}

func columnType(t iceberg.Type) types.ColumnType {
	switch t.(type) {
	case iceberg.StringType:
		return types.ColumnTypeString
	case iceberg.Int32Type, iceberg.Int64Type:
		return types.ColumnTypeLong
	case iceberg.Float32Type, iceberg.Float64Type:
		return types.ColumnTypeDouble
	case iceberg.BooleanType:
		return types.ColumnTypeBoolean
	case iceberg.TimestampType, iceberg.TimestampTzType:
		return types.ColumnTypeTimestamp
	default:
		return types.ColumnType(t.String())
	}
}
