package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	isoLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006/01/02",
		"2006-01",
	}
	monthFirstLayouts = []string{"1/2/2006", "1/2/2006 15:04", "1/2/2006 15:04:05", "1-2-2006"}
	dayFirstLayouts   = []string{"2/1/2006", "2/1/2006 15:04", "2/1/2006 15:04:05", "2-1-2006"}
	wordLayouts       = []string{"2 January 2006", "January 2, 2006", "2 Jan 2006", "Jan 2, 2006"}
)

// ParseTime parses the date formats seen in grant files. ISO forms are tried
// first; dayFirst decides how ambiguous d/m/y dates are read. The result is UTC.
func ParseTime(s string, dayFirst bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := append([]string{}, isoLayouts...)
	if dayFirst {
		layouts = append(layouts, dayFirstLayouts...)
		layouts = append(layouts, monthFirstLayouts...)
	} else {
		layouts = append(layouts, monthFirstLayouts...)
		layouts = append(layouts, dayFirstLayouts...)
	}
	layouts = append(layouts, wordLayouts...)

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a date", s)
}

// ToFloat converts a cell to float64. Strings may carry thousands separators
// and a leading currency sign. Missing and blank cells report ok=false with a
// nil error, and so do NaN and infinities.
func ToFloat(v any) (f float64, ok bool, err error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		if !IsFinite(x) {
			return 0, false, nil
		}
		return x, true, nil
	case int64:
		return float64(x), true, nil
	case int:
		return float64(x), true, nil
	case bool:
		if x {
			return 1, true, nil
		}
		return 0, true, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false, nil
		}
		s = strings.TrimLeft(s, "£$€")
		s = strings.ReplaceAll(s, ",", "")
		f, perr := strconv.ParseFloat(s, 64)
		if perr != nil {
			return 0, false, fmt.Errorf("cannot convert %q to a number", x)
		}
		if !IsFinite(f) {
			return 0, false, nil
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("cannot convert %v (%T) to a number", v, v)
	}
}

// IsFinite reports whether f is neither NaN nor an infinity
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ToTime converts a cell to time.Time; see ToFloat for the meaning of ok
func ToTime(v any, dayFirst bool) (t time.Time, ok bool, err error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return x.UTC(), true, nil
	case string:
		if strings.TrimSpace(x) == "" {
			return time.Time{}, false, nil
		}
		t, err := ParseTime(x, dayFirst)
		if err != nil {
			return time.Time{}, false, err
		}
		return t, true, nil
	default:
		return time.Time{}, false, fmt.Errorf("cannot convert %v (%T) to a date", v, v)
	}
}

// ToString renders any cell as text; nil stays nil
func ToString(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
