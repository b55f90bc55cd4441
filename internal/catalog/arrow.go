package catalog

import (
	"fmt"
	"math"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/arkilian/lakeingest/pkg/types"
)

// valueAppender appends one dataset value to an Arrow builder.
type valueAppender func(v types.Value) error

// chunkToRecord builds an Arrow record shaped like target from rows positioned
// by schema. Columns are matched by name. A target column absent from the
// dataset is filled with nulls; a dataset column absent from the target is an error.
func chunkToRecord(target *arrow.Schema, schema types.Schema, rows []types.Row) (arrow.Record, error) {
	for _, col := range schema.Columns {
		if _, ok := target.FieldsByName(col.Name); !ok {
			return nil, fmt.Errorf("column %q does not exist in table schema", col.Name)
		}
	}

	mem := memory.NewGoAllocator()
	builder := array.NewRecordBuilder(mem, target)
	defer builder.Release()

	for i, field := range target.Fields() {
		src := schema.Index(field.Name)
		if src < 0 {
			if !field.Nullable {
				return nil, fmt.Errorf("required column %q is missing from the input", field.Name)
			}
			fb := builder.Field(i)
			for range rows {
				fb.AppendNull()
			}
			continue
		}

		appendValue, err := newValueAppender(builder.Field(i), field)
		if err != nil {
			return nil, err
		}
		for r, row := range rows {
			v := row[src]
			if v == nil {
				if !field.Nullable {
					return nil, fmt.Errorf("row %d: null in required column %q", r, field.Name)
				}
				builder.Field(i).AppendNull()
				continue
			}
			if err := appendValue(v); err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", r, field.Name, err)
			}
		}
	}

	return builder.NewRecord(), nil
}

func newValueAppender(b array.Builder, field arrow.Field) (valueAppender, error) {
	switch fb := b.(type) {
	case *array.StringBuilder:
		return func(v types.Value) error {
			s, err := asString(v)
			if err != nil {
				return err
			}
			fb.Append(s)
			return nil
		}, nil

	case *array.LargeStringBuilder:
		return func(v types.Value) error {
			s, err := asString(v)
			if err != nil {
				return err
			}
			fb.Append(s)
			return nil
		}, nil

	case *array.Int64Builder:
		return func(v types.Value) error {
			n, err := asInt64(v)
			if err != nil {
				return err
			}
			fb.Append(n)
			return nil
		}, nil

	case *array.Int32Builder:
		return func(v types.Value) error {
			n, err := asInt64(v)
			if err != nil {
				return err
			}
			if n < math.MinInt32 || n > math.MaxInt32 {
				return fmt.Errorf("value %d overflows int32", n)
			}
			fb.Append(int32(n))
			return nil
		}, nil

	case *array.Float64Builder:
		return func(v types.Value) error {
			f, err := asFloat64(v)
			if err != nil {
				return err
			}
			fb.Append(f)
			return nil
		}, nil

	case *array.Float32Builder:
		return func(v types.Value) error {
			f, err := asFloat64(v)
			if err != nil {
				return err
			}
			fb.Append(float32(f))
			return nil
		}, nil

	case *array.BooleanBuilder:
		return func(v types.Value) error {
			bv, ok := v.(bool)
			if !ok {
				return fmt.Errorf("cannot store %T as boolean", v)
			}
			fb.Append(bv)
			return nil
		}, nil

	case *array.TimestampBuilder:
		unit := field.Type.(*arrow.TimestampType).Unit
		return func(v types.Value) error {
			t, ok := v.(time.Time)
			if !ok {
				return fmt.Errorf("cannot store %T as timestamp", v)
			}
			ts, err := arrow.TimestampFromTime(t, unit)
			if err != nil {
				return err
			}
			fb.Append(ts)
			return nil
		}, nil

	case *array.Date32Builder:
		return func(v types.Value) error {
			t, ok := v.(time.Time)
			if !ok {
				return fmt.Errorf("cannot store %T as date", v)
			}
			fb.Append(arrow.Date32FromTime(t))
			return nil
		}, nil

	default:
		return nil, fmt.Errorf("column %q has unsupported type %s", field.Name, field.Type)
	}
}

func asString(v types.Value) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case int64, float64, bool:
		return fmt.Sprint(x), nil
	default:
		return "", fmt.Errorf("cannot store %T as string", v)
	}
}

func asInt64(v types.Value) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	default:
		return 0, fmt.Errorf("cannot store %T as long", v)
	}
}

func asFloat64(v types.Value) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("cannot store %T as double", v)
	}
}
