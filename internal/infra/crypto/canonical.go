package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Canonicalize renders v as canonical JSON (RFC 8785 ordering and number
// formatting). Structs are marshalled with encoding/json first so that
// their json tags decide the member names.
func Canonicalize(v any) ([]byte, error) {
	switch value := v.(type) {
	case json.RawMessage:
		return CanonicalizeJSON(value)
	case []byte:
		return CanonicalizeJSON(value)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return CanonicalizeJSON(raw)
}

// CanonicalizeJSON re-encodes one JSON document canonically. Trailing data
// after the document is rejected.
func CanonicalizeJSON(input []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return nil, errors.New("invalid JSON: trailing data")
	}

	enc := &canonicalEncoder{}
	if err := enc.encode(value); err != nil {
		return nil, err
	}
	return enc.buf.Bytes(), nil
}

type canonicalEncoder struct {
	buf bytes.Buffer
}

func (e *canonicalEncoder) encode(value any) error {
	switch v := value.(type) {
	case nil:
		e.buf.WriteString("null")
	case bool:
		e.buf.WriteString(strconv.FormatBool(v))
	case string:
		return e.encodeString(v)
	case json.Number:
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return fmt.Errorf("invalid JSON number: %w", err)
		}
		num, err := formatNumber(f)
		if err != nil {
			return err
		}
		e.buf.WriteString(num)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return utf16Less(keys[i], keys[j]) })
		e.buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			if err := e.encodeString(k); err != nil {
				return err
			}
			e.buf.WriteByte(':')
			if err := e.encode(v[k]); err != nil {
				return err
			}
		}
		e.buf.WriteByte('}')
	case []any:
		e.buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			if err := e.encode(item); err != nil {
				return err
			}
		}
		e.buf.WriteByte(']')
	default:
		return fmt.Errorf("unsupported JSON type %T", value)
	}
	return nil
}

func (e *canonicalEncoder) encodeString(s string) error {
	if !utf8.ValidString(s) {
		return errors.New("invalid UTF-8 in JSON string")
	}
	const hexDigits = "0123456789abcdef"
	e.buf.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"' || r == '\\':
			e.buf.WriteByte('\\')
			e.buf.WriteRune(r)
		case r == '\b':
			e.buf.WriteString(`\b`)
		case r == '\f':
			e.buf.WriteString(`\f`)
		case r == '\n':
			e.buf.WriteString(`\n`)
		case r == '\r':
			e.buf.WriteString(`\r`)
		case r == '\t':
			e.buf.WriteString(`\t`)
		case r < 0x20:
			e.buf.WriteString(`\u00`)
			e.buf.WriteByte(hexDigits[r>>4])
			e.buf.WriteByte(hexDigits[r&0x0f])
		default:
			e.buf.WriteRune(r)
		}
	}
	e.buf.WriteByte('"')
	return nil
}

// utf16Less orders member names by their UTF-16 code units.
func utf16Less(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	for i := 0; i < len(ra) && i < len(rb); i++ {
		ua, ub := utf16Units(ra[i]), utf16Units(rb[i])
		for j := 0; j < len(ua) && j < len(ub); j++ {
			if ua[j] != ub[j] {
				return ua[j] < ub[j]
			}
		}
		if len(ua) != len(ub) {
			return len(ua) < len(ub)
		}
	}
	return len(ra) < len(rb)
}

func utf16Units(r rune) []uint16 {
	if r < 0x10000 {
		return []uint16{uint16(r)}
	}
	r -= 0x10000
	return []uint16{uint16(0xd800 + (r >> 10)), uint16(0xdc00 + (r & 0x3ff))}
}

// formatNumber follows the ECMAScript Number.prototype.toString rules.
func formatNumber(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", errors.New("invalid JSON number")
	}
	if f == 0 {
		return "0", nil
	}
	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, expPart, ok := strings.Cut(sci, "e")
	if !ok {
		return "", fmt.Errorf("invalid float format: %q", sci)
	}
	exp, err := strconv.Atoi(expPart)
	if err != nil {
		return "", fmt.Errorf("invalid float exponent: %w", err)
	}
	digits := strings.Replace(mantissa, ".", "", 1)

	switch {
	case exp >= 21 || exp <= -7:
		if len(digits) == 1 {
			return sign + digits + "e" + signedExp(exp), nil
		}
		return sign + digits[:1] + "." + digits[1:] + "e" + signedExp(exp), nil
	case exp+1 >= len(digits):
		return sign + digits + strings.Repeat("0", exp+1-len(digits)), nil
	case exp+1 <= 0:
		return sign + "0." + strings.Repeat("0", -(exp+1)) + digits, nil
	default:
		return sign + digits[:exp+1] + "." + digits[exp+1:], nil
	}
}

func signedExp(exp int) string {
	if exp > 0 {
		return "+" + strconv.Itoa(exp)
	}
	return strconv.Itoa(exp)
}
