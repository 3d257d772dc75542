package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonMap adapts map[string]any to a JSONB column.
type jsonMap map[string]any

func (m jsonMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, fmt.Errorf("error encoding jsonb: %w", err)
	}
	return b, nil
}

// jsonMapScanner scans a JSONB column into the map it points to.
type jsonMapScanner struct {
	dst *map[string]any
}

func (s jsonMapScanner) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s.dst = map[string]any{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source %T", src)
	}
	m := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("error decoding jsonb: %w", err)
		}
	}
	*s.dst = m
	return nil
}

func scanJSON(dst *map[string]any) jsonMapScanner {
	return jsonMapScanner{dst: dst}
}
