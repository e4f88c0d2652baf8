// Package util provides small string helpers shared by the loaders and the
// render pipeline.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

var strftime = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'e': "_2",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'p': "PM",
	'b': "Jan",
	'h': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'j': "002",
	'Z': "MST",
	'z': "-0700",
	'f': "000000",
	'F': "2006-01-02",
	'T': "15:04:05",
	'%': "%",
}

// StrftimeToLayout converts a C strftime format such as "%Y-%m-%d %H:%M" to a
// Go time layout. Unknown directives are kept verbatim.
func StrftimeToLayout(format string) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i == len(format)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		if layout, ok := strftime[format[i]]; ok {
			b.WriteString(layout)
		} else {
			b.WriteByte('%')
			b.WriteByte(format[i])
		}
	}
	return b.String()
}
