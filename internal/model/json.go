package model

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// decodeDoc turns a stored JSON column into a generic map, nil if empty or
// not an object.
func decodeDoc(doc datatypes.JSON) map[string]any {
	if len(doc) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil
	}
	return m
}

// EncodeDoc marshals a generic map into a JSON column value.
func EncodeDoc(m map[string]any) datatypes.JSON {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
