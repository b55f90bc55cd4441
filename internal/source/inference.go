package source

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/arkilian/lakeingest/pkg/types"
)

// ISO-8601 timestamp shapes recognised during inference.
var timestampPatterns = []struct {
	pattern *regexp.Regexp
	formats []string
}{
	// with timezone
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`),
		[]string{time.RFC3339Nano, time.RFC3339},
	},
	// without timezone
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"2006-01-02T15:04:05.999999999"},
	},
	// date and time with space
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"2006-01-02 15:04:05.999999999"},
	},
	// date only
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
		[]string{"2006-01-02"},
	},
}

// parseTimestamp parses an ISO-8601 cell. Zoned values are normalised to UTC;
// naive values are taken as UTC.
func parseTimestamp(value string) (time.Time, bool) {
	for _, tp := range timestampPatterns {
		if !tp.pattern.MatchString(value) {
			continue
		}
		for _, format := range tp.formats {
			if t, err := time.Parse(format, value); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func isBool(value string) bool {
	return strings.EqualFold(value, "true") || strings.EqualFold(value, "false")
}

// inferColumnType picks one type for a column from all of its non-empty cells.
// Priority: string > timestamp > double > long. Boolean applies only when
// every non-empty cell is true or false.
func inferColumnType(values []string) types.ColumnType {
	var hasBool, hasTimestamp, hasDouble, hasLong bool

	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		if isBool(value) {
			hasBool = true
			continue
		}
		if _, ok := parseTimestamp(value); ok {
			hasTimestamp = true
			continue
		}
		if _, err := strconv.ParseInt(value, 10, 64); err == nil {
			hasLong = true
			continue
		}
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			hasDouble = true
			continue
		}

		// Any text makes the whole column text.
		return types.ColumnTypeString
	}

	numeric := hasDouble || hasLong
	switch {
	case hasBool && !hasTimestamp && !numeric:
		return types.ColumnTypeBoolean
	case hasBool, hasTimestamp && numeric:
		return types.ColumnTypeString
	case hasTimestamp:
		return types.ColumnTypeTimestamp
	case hasDouble:
		return types.ColumnTypeDouble
	case hasLong:
		return types.ColumnTypeLong
	default:
		return types.ColumnTypeString
	}
}

// convertCell turns a raw cell into the typed value of its column.
// Empty cells become nil.
func convertCell(raw string, typ types.ColumnType) (types.Value, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	switch typ {
	case types.ColumnTypeLong:
		return strconv.ParseInt(value, 10, 64)
	case types.ColumnTypeDouble:
		return strconv.ParseFloat(value, 64)
	case types.ColumnTypeBoolean:
		return strings.EqualFold(value, "true"), nil
	case types.ColumnTypeTimestamp:
		t, ok := parseTimestamp(value)
		if !ok {
			return nil, &strconv.NumError{Func: "parseTimestamp", Num: value, Err: strconv.ErrSyntax}
		}
		return t, nil
	default:
		return raw, nil
	}
}
