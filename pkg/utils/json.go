package utils

import (
	"encoding/json"
)

// JSONMarshal marshals data to JSON with pretty formatting.
func JSONMarshal(data interface{}) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}

// JSONUnmarshal unmarshals JSON data into a destination.
func JSONUnmarshal(data []byte, dest interface{}) error {
	return json.Unmarshal(data, dest)
}

// JSONValidate checks if a byte slice is syntactically valid JSON.
func JSONValidate(data []byte) bool {
	var v interface{}
	return json.Unmarshal(data, &v) == nil
}

// JSONMerge merges string-keyed JSON objects into one, with later maps
// overriding earlier maps on key conflict.
func JSONMerge(objs ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for _, obj := range objs {
		for key, value := range obj {
			result[key] = value
		}
	}
	return result
}
