package types

import (
	"encoding/json"

	"gorm.io/datatypes"
)

func jsonUnmarshal(raw datatypes.JSON, v any) error {
	return json.Unmarshal(raw, v)
}

func decodeStringArray(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// MustJSON marshals v into a datatypes.JSON column value. Marshal failures
// collapse to an empty object so a bad value never aborts a write path.
func MustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(b)
}
