// Package canonical serializes JSON-representable values into the unique
// deterministic byte form used for profile signing.
//
// The rules are the RFC 8785 (JCS) subset the registry protocol depends on:
// no whitespace, object members sorted by ascending code-point order of their
// keys, array order preserved, JSON string escaping, and ES6 number formatting.
// Two structurally equal values always serialize to identical bytes, so two
// independent implementations agree on what a signature covers.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Marshal returns the canonical byte form of v.
//
// v may be any JSON-representable value. Decoded JSON values (nil, bool,
// string, json.Number, float64, []any, map[string]any) are serialized
// directly; anything else is normalized through encoding/json first, which
// also rejects non-JSON types. Integer lexemes survive normalization exactly.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := appendValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalString is Marshal returning a string.
func MarshalString(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func appendValue(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if x {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		appendString(buf, x)
	case json.Number:
		return appendNumberLexeme(buf, x)
	case float64:
		return appendFloat(buf, x)
	case float32:
		return appendFloat(buf, float64(x))
	case int:
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case int8:
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case int16:
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(x, 10))
	case uint:
		buf.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint8:
		buf.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint16:
		buf.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(x, 10))
	case []any:
		buf.WriteByte('[')
		for i, el := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendValue(buf, el); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			appendString(buf, k)
			buf.WriteByte(':')
			if err := appendValue(buf, x[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		norm, err := normalize(v)
		if err != nil {
			return err
		}
		return appendValue(buf, norm)
	}
	return nil
}

// normalize round-trips v through encoding/json so structs, typed maps and
// typed slices collapse to the base JSON value types. UseNumber keeps integer
// lexemes intact instead of forcing them through float64.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: value is not JSON-representable: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("canonical: %w", err)
	}
	return out, nil
}

const hexDigits = "0123456789abcdef"

// appendString writes s as a JSON string with the minimal escaping JCS
// mandates. Non-ASCII code points pass through as UTF-8.
func appendString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[r>>4])
				buf.WriteByte(hexDigits[r&0xf])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// appendNumberLexeme serializes a json.Number. Integer lexemes in int64 range
// are emitted exactly; everything else goes through the ES6 float path, which
// is what a JavaScript implementation of this protocol would produce.
func appendNumberLexeme(buf *bytes.Buffer, n json.Number) error {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			buf.WriteString(strconv.FormatInt(i, 10))
			return nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("canonical: invalid number %q: %w", s, err)
	}
	return appendFloat(buf, f)
}

// appendFloat writes f using ES6 Number.prototype.toString semantics as
// required by RFC 8785 section 3.2.2.3.
func appendFloat(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("canonical: NaN and Infinity are not JSON-representable")
	}
	// ES6 serializes both zeros as "0".
	if f == 0 {
		buf.WriteByte('0')
		return nil
	}
	neg := false
	if f < 0 {
		neg = true
		f = -f
	}
	// ES6 switches to exponent notation outside [1e-6, 1e21).
	format := byte('e')
	if f >= 1e-6 && f < 1e21 {
		format = 'f'
	}
	s := strconv.FormatFloat(f, format, -1, 64)
	// Go prints "1e+09"; ES6 prints "1e+9".
	if i := strings.IndexByte(s, 'e'); i > 0 && s[i+2] == '0' {
		s = s[:i+2] + s[i+3:]
	}
	if neg {
		buf.WriteByte('-')
	}
	buf.WriteString(s)
	return nil
}
