// Package canonical serializes structured values into a unique byte form.
//
// Producers and the verification service must agree byte-for-byte on the
// serialized payload, so the rules here are deliberately rigid: no
// insignificant whitespace, object keys sorted lexicographically ascending by
// their literal string form, array order preserved, standard JSON literal
// encoding for primitives with HTML escaping disabled. Two values that are the
// same key/value set in different insertion order canonicalize identically;
// values that differ in array order or numeric literal text do not.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Marshal renders v into its canonical form. It is pure and total over the
// JSON-shaped value domain: strings, numbers, booleans, nil, []any slices,
// and string-keyed maps, recursively. Anything else is an error.
func Marshal(v any) (string, error) {
	var b strings.Builder
	if err := write(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

func write(b *strings.Builder, v any) error {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
		return nil
	case bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
		return nil
	case string:
		return writeString(b, val)
	case json.Number:
		return writeNumberLiteral(b, string(val))
	case float64:
		return writeFloat(b, val)
	case float32:
		return writeFloat(b, float64(val))
	case int:
		b.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case int32:
		b.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
		return nil
	case uint64:
		b.WriteString(strconv.FormatUint(val, 10))
		return nil
	case []any:
		return writeArray(b, val)
	case map[string]any:
		return writeObject(b, val)
	}
	return writeReflected(b, v)
}

// writeReflected handles named map/slice types (domain.Metadata and friends)
// that do not match the concrete cases above.
func writeReflected(b *strings.Builder, v any) error {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return write(b, rv.Bool())
	case reflect.String:
		return writeString(b, rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString(strconv.FormatInt(rv.Int(), 10))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		b.WriteString(strconv.FormatUint(rv.Uint(), 10))
		return nil
	case reflect.Float32, reflect.Float64:
		return writeFloat(b, rv.Float())
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return writeArray(b, items)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("canonical: map keys must be strings, got %s", rv.Type().Key())
		}
		obj := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			obj[iter.Key().String()] = iter.Value().Interface()
		}
		return writeObject(b, obj)
	}
	return fmt.Errorf("canonical: unsupported type %T", v)
}

func writeArray(b *strings.Builder, items []any) error {
	b.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := write(b, item); err != nil {
			return err
		}
	}
	b.WriteByte(']')
	return nil
}

func writeObject(b *strings.Builder, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writeString(b, k); err != nil {
			return err
		}
		b.WriteByte(':')
		if err := write(b, obj[k]); err != nil {
			return err
		}
	}
	b.WriteByte('}')
	return nil
}

func writeString(b *strings.Builder, s string) error {
	// json.Marshal would escape <, > and & for HTML embedding; producers sign
	// plain JSON string literals, so HTML escaping stays off.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("canonical: encode string: %w", err)
	}
	b.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	return nil
}

func writeFloat(b *strings.Builder, f float64) error {
	blob, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("canonical: encode number: %w", err)
	}
	b.Write(blob)
	return nil
}

func writeNumberLiteral(b *strings.Builder, literal string) error {
	literal = strings.TrimSpace(literal)
	if literal == "" {
		return fmt.Errorf("canonical: empty number literal")
	}
	// The producer's literal is preserved verbatim so independently written
	// runtimes agree on bytes, but it must still be a JSON number.
	if literal[0] != '-' && (literal[0] < '0' || literal[0] > '9') {
		return fmt.Errorf("canonical: invalid number literal %q", literal)
	}
	var check json.RawMessage
	if err := json.Unmarshal([]byte(literal), &check); err != nil {
		return fmt.Errorf("canonical: invalid number literal %q: %w", literal, err)
	}
	b.WriteString(literal)
	return nil
}
