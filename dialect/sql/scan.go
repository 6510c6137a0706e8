package sql

import "fmt"

// ScanMaps reads all rows into maps keyed by column name and closes rows.
// Byte slices are converted to strings, since text columns come back as
// []byte from most drivers.
func ScanMaps(rows ColumnScanner) (_ []map[string]any, rerr error) {
	defer func() {
		if err := rows.Close(); err != nil && rerr == nil {
			rerr = err
		}
	}()
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sql/scan: columns: %w", err)
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sql/scan: %w", err)
		}
		m := make(map[string]any, len(columns))
		for i, c := range columns {
			m[c] = normalize(values[i])
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sql/scan: %w", err)
	}
	return out, nil
}

// ScanInt64 reads a single integer value from the first column of the first row.
func ScanInt64(rows ColumnScanner) (int64, error) {
	ms, err := ScanMaps(rows)
	if err != nil {
		return 0, err
	}
	if len(ms) == 0 {
		return 0, fmt.Errorf("sql/scan: no rows")
	}
	for _, v := range ms[0] {
		n, ok := ToInt64(v)
		if !ok {
			return 0, fmt.Errorf("sql/scan: unexpected type %T", v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("sql/scan: no columns")
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// ToInt64 converts the integer representations returned by drivers.
func ToInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case uint32:
		return int64(v), true
	case float64:
		return int64(v), true
	case []byte:
		var n int64
		_, err := fmt.Sscan(string(v), &n)
		return n, err == nil
	case string:
		var n int64
		_, err := fmt.Sscan(v, &n)
		return n, err == nil
	}
	return 0, false
}

// ToFloat64 converts the numeric representations returned by drivers.
func ToFloat64(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case []byte:
		var f float64
		_, err := fmt.Sscan(string(v), &f)
		return f, err == nil
	case string:
		var f float64
		_, err := fmt.Sscan(v, &f)
		return f, err == nil
	}
	if n, ok := ToInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}
