package dataset

import (
	"fmt"
	"math"
	"strconv"

	"github.com/Veraticus/demandflow/internal/common"
	"github.com/Veraticus/demandflow/internal/model"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// NAMarker is the value gota uses to represent a missing element.
const NAMarker = "NaN"

// HasColumn reports whether df carries the named column.
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// MissingColumns returns the names in cols that df does not carry, in order.
func MissingColumns(df dataframe.DataFrame, cols ...string) []string {
	var missing []string
	for _, c := range cols {
		if !HasColumn(df, c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Require reports whether df has every column req needs. An absent column is an
// ErrMissingColumn under model.Fail; under model.SkipStep it is logged and Require
// returns false with a nil error.
func Require(df dataframe.DataFrame, req model.Requirement) (bool, error) {
	missing := MissingColumns(df, req.Columns...)
	if len(missing) == 0 {
		return true, nil
	}
	if req.Policy == model.Fail {
		return false, fmt.Errorf("%w: %s needs %v", common.ErrMissingColumn, req.Step, missing)
	}
	common.LogInfo("Columns absent, skipping step", common.Fields{
		"step":    req.Step,
		"missing": missing,
	})
	return false, nil
}

// KeyString renders an element as a join or grouping key.
// Integral floats render without a fractional part so 5 and 5.0 compare equal.
// The second return value is false for missing elements.
func KeyString(e series.Element) (string, bool) {
	if e.IsNA() {
		return "", false
	}
	if e.Type() == series.Float {
		f := e.Float()
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return strconv.FormatInt(int64(f), 10), true
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return e.String(), true
}

// FormatCell renders an element for export. Missing elements render as the empty string.
func FormatCell(e series.Element) string {
	if e.IsNA() {
		return ""
	}
	if e.Type() == series.Float {
		return FormatFloat(e.Float())
	}
	return e.String()
}

// FormatFloat renders a float the way a spreadsheet reader expects: integral values keep a ".0".
func FormatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if f == math.Trunc(f) {
		return s + ".0"
	}
	return s
}

// Rows renders df as string rows, header first, missing values as empty strings.
func Rows(df dataframe.DataFrame) [][]string {
	names := df.Names()
	rows := make([][]string, 0, df.Nrow()+1)
	rows = append(rows, append([]string(nil), names...))

	cols := make([]series.Series, len(names))
	for i, n := range names {
		cols[i] = df.Col(n)
	}
	for r := 0; r < df.Nrow(); r++ {
		row := make([]string, len(cols))
		for c, s := range cols {
			row[c] = FormatCell(s.Elem(r))
		}
		rows = append(rows, row)
	}
	return rows
}

// Values renders df rows as typed cell values for sinks that keep numbers numeric.
// Missing values are nil.
func Values(df dataframe.DataFrame) [][]any {
	names := df.Names()
	cols := make([]series.Series, len(names))
	for i, n := range names {
		cols[i] = df.Col(n)
	}

	out := make([][]any, df.Nrow())
	for r := range out {
		row := make([]any, len(cols))
		for c, s := range cols {
			row[c] = CellValue(s.Elem(r))
		}
		out[r] = row
	}
	return out
}

// CellValue converts an element to a Go value: int, float64, bool, string or nil.
func CellValue(e series.Element) any {
	if e.IsNA() {
		return nil
	}
	switch e.Type() {
	case series.Int:
		v, err := e.Int()
		if err != nil {
			return nil
		}
		return v
	case series.Float:
		return e.Float()
	case series.Bool:
		v, err := e.Bool()
		if err != nil {
			return nil
		}
		return v
	default:
		return e.String()
	}
}

// Empty builds a zero-row frame with the given string columns.
func Empty(names ...string) dataframe.DataFrame {
	cols := make([]series.Series, len(names))
	for i, n := range names {
		cols[i] = series.New([]string{}, series.String, n)
	}
	return dataframe.New(cols...)
}

// Table pairs a frame with the name it is exported under.
type Table struct {
	Name  string
	Frame dataframe.DataFrame
}
