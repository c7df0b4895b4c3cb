package cleaning

import (
	"strings"
	"time"

	"github.com/Veraticus/demandflow/internal/dataset"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Canonical date renderings written back into date columns.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// DateLayouts are tried in order when coercing a value to a date.
var DateLayouts = []string{
	DateTimeLayout,
	DateLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"02-01-2006",
	"02-01-2006 15:04",
	"02-01-2006 15:04:05",
	"01/02/2006",
	"01/02/2006 15:04",
	"01/02/2006 15:04:05",
	"02.01.2006",
	"20060102",
}

// ParseDate coerces s to a time using DateLayouts. The second return value is false
// when no layout matches.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDateColumn returns the parsed value of every element of s.
// Unparseable or missing elements have ok[i] == false.
func ParseDateColumn(s series.Series) (times []time.Time, ok []bool) {
	times = make([]time.Time, s.Len())
	ok = make([]bool, s.Len())
	for i := 0; i < s.Len(); i++ {
		e := s.Elem(i)
		if e.IsNA() {
			continue
		}
		raw, present := dataset.KeyString(e)
		if !present {
			continue
		}
		times[i], ok[i] = ParseDate(raw)
	}
	return times, ok
}

// CoerceDates rewrites col as canonical date strings; values that cannot be parsed become missing.
// The column keeps a time component only when some value carries one.
func CoerceDates(df dataframe.DataFrame, col string) (dataframe.DataFrame, int) {
	times, ok := ParseDateColumn(df.Col(col))

	layout := DateLayout
	for i, t := range times {
		if ok[i] && (t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0) {
			layout = DateTimeLayout
			break
		}
	}

	values := make([]string, len(times))
	invalid := 0
	for i, t := range times {
		if !ok[i] {
			values[i] = dataset.NAMarker
			if !df.Col(col).Elem(i).IsNA() {
				invalid++
			}
			continue
		}
		values[i] = t.Format(layout)
	}

	return df.Mutate(series.New(values, series.String, col)), invalid
}
