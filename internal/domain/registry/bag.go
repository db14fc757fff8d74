package registry

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// DecodeBag parses a bag column into a plain map, treating empty/null as {}.
func DecodeBag(raw datatypes.JSON) (map[string]any, error) {
	out := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MergeBag merges patch into base (patch keys win), returning a new JSON blob.
// Merged, not replaced, per the registry's bag invariant.
func MergeBag(base datatypes.JSON, patch map[string]any) (datatypes.JSON, error) {
	merged, err := DecodeBag(base)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		merged[k] = v
	}
	b, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
