// Package signature computes deterministic change-detection digests for
// sync payloads. Structurally equal values always produce identical
// digests regardless of map key order or favicon cache entry order.
package signature

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
)

// ErrCycle is returned when the value graph references itself. A cycle
// is a programming error in the caller, never expected in practice.
var ErrCycle = errors.New("signature: cycle detected")

// ErrNonSerializable is returned when the top-level value has no JSON
// representation at all (function, channel, and the like).
var ErrNonSerializable = errors.New("signature: value is not serializable")

// Canonicalize serializes a JSON-like value with object keys sorted at
// every nesting level.
//
// Values implementing json.Marshaler are converted first and the result
// is canonicalized again. Non-serializable scalars become null inside
// arrays but are omitted as object members, mirroring encoding/json and
// JSON.stringify asymmetry. NaN and infinities serialize as null.
func Canonicalize(v any) (string, error) {
	var b strings.Builder
	seen := make(map[uintptr]struct{})
	ok, err := writeCanonical(&b, reflect.ValueOf(v), seen)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNonSerializable
	}
	return b.String(), nil
}

// writeCanonical appends the canonical form of rv to b. It reports
// false (with no output) when rv has no JSON representation.
func writeCanonical(b *strings.Builder, rv reflect.Value, seen map[uintptr]struct{}) (bool, error) {
	if !rv.IsValid() {
		b.WriteString("null")
		return true, nil
	}

	// The pre-conversion hook runs before any structural inspection and
	// its result is re-canonicalized.
	if rv.CanInterface() {
		if m, ok := rv.Interface().(json.Marshaler); ok {
			raw, err := m.MarshalJSON()
			if err != nil {
				return false, fmt.Errorf("signature: marshal hook: %w", err)
			}
			var decoded any
			if err := json.Unmarshal(raw, &decoded); err != nil {
				return false, fmt.Errorf("signature: marshal hook produced invalid JSON: %w", err)
			}
			return writeCanonical(b, reflect.ValueOf(decoded), seen)
		}
	}

	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			b.WriteString("null")
			return true, nil
		}
		if rv.Kind() == reflect.Pointer {
			if err := enter(rv.Pointer(), seen); err != nil {
				return false, err
			}
			defer leave(rv.Pointer(), seen)
		}
		return writeCanonical(b, rv.Elem(), seen)

	case reflect.Bool:
		if rv.Bool() {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
		return true, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		fmt.Fprintf(b, "%d", rv.Int())
		return true, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		fmt.Fprintf(b, "%d", rv.Uint())
		return true, nil

	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			b.WriteString("null")
			return true, nil
		}
		raw, err := json.Marshal(f)
		if err != nil {
			return false, fmt.Errorf("signature: encode float: %w", err)
		}
		b.Write(raw)
		return true, nil

	case reflect.String:
		raw, err := json.Marshal(rv.String())
		if err != nil {
			return false, fmt.Errorf("signature: encode string: %w", err)
		}
		b.Write(raw)
		return true, nil

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice {
			if rv.IsNil() {
				b.WriteString("null")
				return true, nil
			}
			if err := enter(rv.Pointer(), seen); err != nil {
				return false, err
			}
			defer leave(rv.Pointer(), seen)
		}
		b.WriteByte('[')
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			ok, err := writeCanonical(b, rv.Index(i), seen)
			if err != nil {
				return false, err
			}
			if !ok {
				// Holes and non-serializable elements stay as null so
				// array positions are preserved.
				b.WriteString("null")
			}
		}
		b.WriteByte(']')
		return true, nil

	case reflect.Map:
		if rv.IsNil() {
			b.WriteString("null")
			return true, nil
		}
		if err := enter(rv.Pointer(), seen); err != nil {
			return false, err
		}
		defer leave(rv.Pointer(), seen)
		return true, writeObject(b, rv, seen)

	case reflect.Struct:
		// Structs take the encoding/json route so field tags and
		// omitempty behave exactly as on the wire, then the decoded
		// generic form is canonicalized.
		raw, err := json.Marshal(rv.Interface())
		if err != nil {
			return false, fmt.Errorf("signature: encode struct: %w", err)
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return false, fmt.Errorf("signature: decode struct: %w", err)
		}
		return writeCanonical(b, reflect.ValueOf(decoded), seen)

	default:
		// Func, chan, complex, unsafe pointer: no JSON representation.
		return false, nil
	}
}

// writeObject writes a map as a JSON object with sorted keys. Members
// whose value has no JSON representation are omitted entirely.
func writeObject(b *strings.Builder, rv reflect.Value, seen map[uintptr]struct{}) error {
	keys := make([]string, 0, rv.Len())
	byKey := make(map[string]reflect.Value, rv.Len())
	for _, k := range rv.MapKeys() {
		name, err := keyString(k)
		if err != nil {
			return err
		}
		keys = append(keys, name)
		byKey[name] = rv.MapIndex(k)
	}
	sort.Strings(keys)

	b.WriteByte('{')
	first := true
	for _, name := range keys {
		var member strings.Builder
		ok, err := writeCanonical(&member, byKey[name], seen)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		raw, err := json.Marshal(name)
		if err != nil {
			return fmt.Errorf("signature: encode key: %w", err)
		}
		b.Write(raw)
		b.WriteByte(':')
		b.WriteString(member.String())
	}
	b.WriteByte('}')
	return nil
}

// keyString renders a map key as a JSON object member name.
func keyString(k reflect.Value) (string, error) {
	switch k.Kind() {
	case reflect.String:
		return k.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%d", k.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf("%d", k.Uint()), nil
	default:
		return "", fmt.Errorf("signature: unsupported map key kind %s", k.Kind())
	}
}

func enter(p uintptr, seen map[uintptr]struct{}) error {
	if _, ok := seen[p]; ok {
		return ErrCycle
	}
	seen[p] = struct{}{}
	return nil
}

func leave(p uintptr, seen map[uintptr]struct{}) {
	delete(seen, p)
}
