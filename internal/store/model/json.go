package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// JSONField wraps an arbitrary value so gorm persists it as a json/jsonb
// column.
type JSONField[T any] struct {
	Data T
}

func MakeJSONField[T any](data T) *JSONField[T] {
	return &JSONField[T]{Data: data}
}

func (f JSONField[T]) Value() (driver.Value, error) {
	return json.Marshal(f.Data)
}

func (f *JSONField[T]) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, &f.Data)
	case string:
		return json.Unmarshal([]byte(v), &f.Data)
	default:
		return errors.New(fmt.Sprint("failed to unmarshal JSON value:", value))
	}
}

func (f JSONField[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Data)
}

func (f *JSONField[T]) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &f.Data)
}
