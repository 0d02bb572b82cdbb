package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// StringArray is stored as a JSON array in a text column so the same model
// works on postgres and sqlite. Postgres array literals are still accepted
// when scanning.
type StringArray []string

// Scan implements the sql.Scanner interface
func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = StringArray{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return s.Scan(string(v))
	case string:
		if v == "" || v == "{}" || v == "[]" {
			*s = StringArray{}
			return nil
		}
		if strings.HasPrefix(v, "[") {
			var arr []string
			if err := json.Unmarshal([]byte(v), &arr); err != nil {
				return fmt.Errorf("scan StringArray: %w", err)
			}
			*s = arr
			return nil
		}

		// PostgreSQL array format: {value1,value2,value3}
		parts := strings.Split(strings.Trim(v, "{}"), ",")
		result := make([]string, len(parts))
		for i, part := range parts {
			result[i] = strings.Trim(strings.TrimSpace(part), "\"")
		}
		*s = result
		return nil
	default:
		return fmt.Errorf("cannot scan %T into StringArray", value)
	}
}

// Value implements the driver.Valuer interface
func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// PlatformList is an ordered set of target platforms.
type PlatformList []PlatformType

func (l *PlatformList) Scan(value interface{}) error {
	var raw StringArray
	if err := raw.Scan(value); err != nil {
		return err
	}
	out := make(PlatformList, len(raw))
	for i, name := range raw {
		out[i] = PlatformType(name)
	}
	*l = out
	return nil
}

func (l PlatformList) Value() (driver.Value, error) {
	raw := make(StringArray, len(l))
	for i, p := range l {
		raw[i] = string(p)
	}
	return raw.Value()
}

func (l PlatformList) Contains(p PlatformType) bool {
	for _, candidate := range l {
		if candidate == p {
			return true
		}
	}
	return false
}

// PlatformMap holds one string per platform, e.g. remote references or
// pinned account ids.
type PlatformMap map[PlatformType]string

func (m *PlatformMap) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = PlatformMap{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into PlatformMap", value)
	}
	if len(raw) == 0 {
		*m = PlatformMap{}
		return nil
	}
	out := PlatformMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan PlatformMap: %w", err)
	}
	*m = out
	return nil
}

func (m PlatformMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(map[PlatformType]string(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m PlatformMap) Clone() PlatformMap {
	out := make(PlatformMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
