package mfm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// orderedObject is a JSON object that keeps its keys in insertion order.
// Its zero value is an empty object.
type orderedObject struct {
	keys   []string
	values []any
}

// Set adds key to the object.
func (o *orderedObject) Set(key string, value any) *orderedObject {
	o.keys = append(o.keys, key)
	o.values = append(o.values, value)
	return o
}

// SetNonZero adds key to the object unless value is zero. Types with an
// IsZero method, like decimals and dates, decide for themselves.
func (o *orderedObject) SetNonZero(key string, value any) *orderedObject {
	if isZero(value) {
		return o
	}
	return o.Set(key, value)
}

func isZero(value any) bool {
	if z, ok := value.(interface{ IsZero() bool }); ok {
		return z.IsZero()
	}
	v := reflect.ValueOf(value)
	return !v.IsValid() || v.IsZero()
}

// MarshalJSON writes the keys in the order they were set.
func (o *orderedObject) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, key := range o.keys {
		value, err := json.Marshal(o.values[i])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		b.Write(k)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}
