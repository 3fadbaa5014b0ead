package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonValue encodes v for a jsonb column. Drivers accept the text form on
// both postgres and sqlite.
func jsonValue(v any) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// scanJSON decodes a jsonb column into dst. A NULL column leaves dst untouched
// and reports false.
func scanJSON(value any, dst any) (bool, error) {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return false, nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return false, fmt.Errorf("unsupported scan type %T", value)
	}
	return true, json.Unmarshal(raw, dst)
}
