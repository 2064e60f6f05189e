package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is a free-form JSONB column.
type JSONMap map[string]interface{}

// Value marshals the map to JSON for persistence. A nil map is stored as an empty object.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(map[string]interface{}(m))
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb payload: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the map.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for JSONMap", value)
	}
	if len(data) == 0 {
		*m = JSONMap{}
		return nil
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal jsonb payload: %w", err)
	}
	*m = out
	return nil
}
