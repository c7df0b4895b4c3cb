package dataset

import (
	"math"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
)

func TestKeyString(t *testing.T) {
	floats := series.New([]float64{5, 2.5, math.NaN()}, series.Float, "f")
	ints := series.New([]int{5}, series.Int, "i")

	k, ok := KeyString(floats.Elem(0))
	assert.True(t, ok)
	assert.Equal(t, "5", k)

	k, ok = KeyString(floats.Elem(1))
	assert.True(t, ok)
	assert.Equal(t, "2.5", k)

	_, ok = KeyString(floats.Elem(2))
	assert.False(t, ok)

	k, _ = KeyString(ints.Elem(0))
	assert.Equal(t, "5", k)
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "20.0", FormatFloat(20))
	assert.Equal(t, "2.25", FormatFloat(2.25))
	assert.Equal(t, "", FormatFloat(math.NaN()))
}

func TestRows(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"a", "NaN"}, series.String, "name"),
		series.New([]float64{1, math.NaN()}, series.Float, "value"),
	)

	assert.Equal(t, [][]string{
		{"name", "value"},
		{"a", "1.0"},
		{"", ""},
	}, Rows(df))

	assert.Equal(t, [][]any{{"a", 1.0}, {nil, nil}}, Values(df))
}

func TestMissingColumns(t *testing.T) {
	df := Empty("order_id", "customer_id")
	assert.Equal(t, []string{"order_date"}, MissingColumns(df, "order_id", "order_date"))
	assert.Nil(t, MissingColumns(df, "customer_id"))
	assert.Equal(t, 0, df.Nrow())
}
