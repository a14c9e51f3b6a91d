package util

import (
	"fmt"
	"strings"
	"time"
)

var strftimeVerbs = map[byte]string{
	'd': "02",
	'e': "_2",
	'm': "01",
	'y': "06",
	'Y': "2006",
	'b': "Jan",
	'h': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'H': "15",
	'I': "03",
	'p': "PM",
	'M': "04",
	'S': "05",
	'z': "-0700",
	'Z': "MST",
	'%': "%",
}

// StrftimeToLayout translates a strftime-style format such as "%d-%b-%Y" into a Go
// time layout. Formats without any % verb are returned unchanged, so Go layouts pass through.
func StrftimeToLayout(format string) (string, error) {
	if !strings.Contains(format, "%") {
		return format, nil
	}
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(format) {
			return "", fmt.Errorf("dangling %% in date format %q", format)
		}
		i++
		layout, ok := strftimeVerbs[format[i]]
		if !ok {
			return "", fmt.Errorf("unsupported date verb %%%c in %q", format[i], format)
		}
		b.WriteString(layout)
	}
	return b.String(), nil
}

// ParseDate parses s under layout and returns the UTC calendar date.
func ParseDate(layout, s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
}
