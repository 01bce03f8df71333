// Package header extracts a fixed vocabulary of fields from one file's
// FITS-style header, normalising case, whitespace and units, and validating
// presence and value domain of mandatory fields.
package header

import (
	"fmt"
	"strconv"
	"strings"
)

// Raw is a flat header key to value map. Values are strings, numbers or
// booleans as decoded by the file reader.
type Raw map[string]any

// str returns a trimmed string value. Absent keys, empty strings and the
// literal "null" all report absence.
func (r Raw) str(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprintf("%v", v)
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return "", false
	}
	return s, true
}

// float returns a numeric value, accepting native numbers and numeric strings.
func (r Raw) float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" || strings.EqualFold(s, "null") {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// integer returns an integral value, rejecting non-integral floats.
func (r Raw) integer(key string) (int, bool) {
	f, ok := r.float(key)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// boolean returns a boolean value, accepting T/F style strings.
func (r Raw) boolean(key string) (bool, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToUpper(strings.TrimSpace(b)) {
		case "T", "TRUE", "1":
			return true, true
		case "F", "FALSE", "0":
			return false, true
		}
	}
	return false, false
}

// indexed collects KEY1..KEYn values for a counted keyword pair, e.g.
// MBRCNT with MBR1, MBR2. Missing entries within the count are skipped.
func (r Raw) indexed(countKey, prefix string) []string {
	n, ok := r.integer(countKey)
	if !ok || n <= 0 {
		return nil
	}
	values := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if v, ok := r.str(prefix + strconv.Itoa(i)); ok {
			values = append(values, v)
		}
	}
	return values
}
