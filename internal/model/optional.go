package model

import (
	"bytes"
	"encoding/json"
)

// Optional поле частичного обновления.
// Отсутствующее в JSON поле остается с Set == false, явный null дает Set == true и Null == true
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func Some[T any](value T) Optional[T] {
	return Optional[T]{Set: true, Value: value}
}

func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// Apply применяет поле к nullable-значению: null очищает, отсутствие оставляет как есть
func (o Optional[T]) Apply(target **T) {
	if !o.Set {
		return
	}
	if o.Null {
		*target = nil
		return
	}
	value := o.Value
	*target = &value
}
