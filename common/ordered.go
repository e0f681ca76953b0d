package common

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OrderedMap is a JSON object whose keys keep their document order.
// Datacube semantics ("first asset", "first matching dimension", "last step
// wins") depend on that order, which a plain Go map would lose.
type OrderedMap[T any] struct {
	keys   []string
	values map[string]T
}

// Len returns the number of entries
func (m OrderedMap[T]) Len() int {
	return len(m.keys)
}

// Keys returns the keys in document order
func (m OrderedMap[T]) Keys() []string {
	return m.keys
}

// Get returns the value for the given key
func (m OrderedMap[T]) Get(key string) (T, bool) {
	v, ok := m.values[key]
	return v, ok
}

// First returns the first entry in document order
func (m OrderedMap[T]) First() (string, T, bool) {
	if len(m.keys) == 0 {
		var zero T
		return "", zero, false
	}
	return m.keys[0], m.values[m.keys[0]], true
}

// Set adds or replaces the value for the given key. A new key is appended at the end.
func (m *OrderedMap[T]) Set(key string, value T) {
	if m.values == nil {
		m.values = map[string]T{}
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// UnmarshalJSON implements json.Unmarshaler, keeping the key order of the document
func (m *OrderedMap[T]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("OrderedMap: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("OrderedMap: expected an object, got %v", tok)
	}
	m.keys = nil
	m.values = map[string]T{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("OrderedMap: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("OrderedMap: expected a key, got %v", tok)
		}
		var value T
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("OrderedMap[%s]: %w", key, err)
		}
		if _, ok := m.values[key]; !ok {
			m.keys = append(m.keys, key)
		}
		m.values[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("OrderedMap: %w", err)
	}
	return nil
}

// MarshalJSON implements json.Marshaler, writing the keys in document order
func (m OrderedMap[T]) MarshalJSON() ([]byte, error) {
	buffer := bytes.NewBufferString("{")
	for i, k := range m.keys {
		if i > 0 {
			buffer.WriteRune(',')
		}
		jsonKey, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		jsonValue, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buffer.Write(jsonKey)
		buffer.WriteRune(':')
		buffer.Write(jsonValue)
	}
	buffer.WriteRune('}')
	return buffer.Bytes(), nil
}
