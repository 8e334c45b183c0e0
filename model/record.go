package model

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Record is one parsed bulk data card. Fields holds the logical data fields in
// card order with continuation markers removed; Fields[0] is the first field
// after the card name. Values are int, float64, string or nil for a blank.
type Record struct {
	Card   string `yaml:"card"`
	Fields []any  `yaml:"fields"`
}

// Len is the number of fields with trailing blanks dropped
func (r Record) Len() int {
	n := len(r.Fields)
	for n > 0 && r.Fields[n-1] == nil {
		n--
	}
	return n
}

func (r Record) Blank(i int) bool {
	return i >= len(r.Fields) || r.Fields[i] == nil
}

// fieldReader pulls typed values out of a record. The first failure sticks and
// later calls return zero values, so a builder can read every field and check
// err once.
type fieldReader struct {
	rec Record
	err error
}

func newFieldReader(rec Record) *fieldReader {
	return &fieldReader{rec: rec}
}

func (f *fieldReader) fail(i int, name, format string, args ...any) {
	if f.err != nil {
		return
	}
	f.err = &RecordError{Card: f.rec.Card, Field: i, Name: name, Reason: fmt.Sprintf(format, args...)}
}

func (f *fieldReader) failf(format string, args ...any) {
	if f.err != nil {
		return
	}
	f.err = &RecordError{Card: f.rec.Card, Reason: fmt.Sprintf(format, args...)}
}

func (f *fieldReader) blank(i int) bool { return f.rec.Blank(i) }

func (f *fieldReader) int(i int, name string) int {
	if f.blank(i) {
		f.fail(i, name, "required integer is blank")
		return 0
	}
	return f.intOr(i, name, 0)
}

func (f *fieldReader) intOr(i int, name string, def int) int {
	if f.blank(i) {
		return def
	}
	switch v := f.rec.Fields[i].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case float64:
		if v == math.Trunc(v) {
			return int(v)
		}
	case float32:
		if float64(v) == math.Trunc(float64(v)) {
			return int(v)
		}
	}
	f.fail(i, name, "expected integer, got %v", f.rec.Fields[i])
	return 0
}

// positive reads a required integer greater than zero
func (f *fieldReader) positive(i int, name string) int {
	v := f.int(i, name)
	if f.err == nil && v <= 0 {
		f.fail(i, name, "must be positive, got %d", v)
	}
	return v
}

// nonNegative reads an optional integer defaulting to zero
func (f *fieldReader) nonNegative(i int, name string) int {
	v := f.intOr(i, name, 0)
	if f.err == nil && v < 0 {
		f.fail(i, name, "must not be negative, got %d", v)
	}
	return v
}

func (f *fieldReader) float(i int, name string) float64 {
	if f.blank(i) {
		f.fail(i, name, "required real is blank")
		return 0
	}
	return f.floatOr(i, name, 0)
}

func (f *fieldReader) floatOr(i int, name string, def float64) float64 {
	if f.blank(i) {
		return def
	}
	switch v := f.rec.Fields[i].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	}
	f.fail(i, name, "expected real, got %v", f.rec.Fields[i])
	return 0
}

func (f *fieldReader) isFloat(i int) bool {
	if f.blank(i) {
		return false
	}
	switch f.rec.Fields[i].(type) {
	case float64, float32:
		return true
	}
	return false
}

func (f *fieldReader) isKeyword(i int, word string) bool {
	if f.blank(i) {
		return false
	}
	s, ok := f.rec.Fields[i].(string)
	return ok && strings.EqualFold(strings.TrimSpace(s), word)
}

// components reads a packed component code such as 123456
func (f *fieldReader) components(i int, name string, allowZero bool) []int {
	code := f.intOr(i, name, 0)
	if f.err != nil {
		return nil
	}
	comps, err := ParseComponents(code)
	if err != nil {
		f.fail(i, name, "%v", err)
		return nil
	}
	if len(comps) == 1 && comps[0] == 0 && !allowZero {
		f.fail(i, name, "component 0 is only valid on scalar points")
		return nil
	}
	return comps
}

// MaxThruSpan is the largest number of IDs one THRU range may expand to
const MaxThruSpan = 1_000_000

// idList reads IDs from field i to the end, expanding "ID THRU ID" ranges
func (f *fieldReader) idList(i int, name string) []int {
	var ids []int
	n := f.rec.Len()
	for j := i; j < n; j++ {
		if f.blank(j) {
			continue
		}
		if f.isKeyword(j, "THRU") {
			if len(ids) == 0 || j+1 >= n {
				f.fail(j, name, "THRU needs a start and an end")
				return nil
			}
			end := f.int(j+1, name)
			start := ids[len(ids)-1]
			if f.err == nil && end < start {
				f.fail(j+1, name, "THRU range %d to %d is descending", start, end)
			}
			if f.err == nil && end-start >= MaxThruSpan {
				f.fail(j+1, name, "THRU range %d to %d spans more than %d ids", start, end, MaxThruSpan)
			}
			if f.err != nil {
				return nil
			}
			for id := start + 1; id <= end; id++ {
				ids = append(ids, id)
			}
			j++
			continue
		}
		ids = append(ids, f.positive(j, name))
	}
	if f.err == nil && len(ids) == 0 {
		f.fail(i, name, "at least one id is required")
	}
	return ids
}

// ParseComponents unpacks a component code into ascending component numbers.
// 0 is the single component of a scalar point.
func ParseComponents(code int) ([]int, error) {
	if code < 0 {
		return nil, fmt.Errorf("negative component code %d", code)
	}
	if code == 0 {
		return []int{0}, nil
	}
	var seen [7]bool
	comps := make([]int, 0, 6)
	for c := code; c > 0; c /= 10 {
		d := c % 10
		if d < 1 || d > 6 {
			return nil, fmt.Errorf("component code %d: digit %d out of range 1-6", code, d)
		}
		if seen[d] {
			return nil, fmt.Errorf("component code %d: digit %d repeated", code, d)
		}
		seen[d] = true
		comps = append(comps, d)
	}
	sort.Ints(comps)
	return comps, nil
}

// PackComponents is the inverse of ParseComponents
func PackComponents(comps []int) int {
	sorted := append([]int(nil), comps...)
	sort.Ints(sorted)
	code := 0
	for _, c := range sorted {
		code = code*10 + c
	}
	return code
}
