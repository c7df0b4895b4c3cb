package cleaning

import (
	"github.com/Veraticus/demandflow/internal/dataset"
	"github.com/Veraticus/demandflow/internal/model"
	"github.com/go-gota/gota/dataframe"
)

// ColumnProfile counts the missing values of one column.
type ColumnProfile struct {
	Name    string
	Type    string
	Missing int
}

// Profile is the data-quality summary of a table.
type Profile struct {
	Dataset    model.DatasetName
	Columns    []ColumnProfile
	Rows       int
	Duplicates int
}

// TotalMissing sums the missing values over every column.
func (p Profile) TotalMissing() int {
	total := 0
	for _, c := range p.Columns {
		total += c.Missing
	}
	return total
}

// ProfileTable computes the data-quality summary of df.
func ProfileTable(name model.DatasetName, df dataframe.DataFrame) Profile {
	p := Profile{
		Dataset:    name,
		Rows:       df.Nrow(),
		Duplicates: CountDuplicates(df),
	}
	for _, col := range df.Names() {
		s := df.Col(col)
		missing := 0
		for _, na := range s.IsNaN() {
			if na {
				missing++
			}
		}
		p.Columns = append(p.Columns, ColumnProfile{Name: col, Type: string(s.Type()), Missing: missing})
	}
	return p
}

// ProfileAll profiles every dataset in load order.
func ProfileAll(ds dataset.Datasets) []Profile {
	profiles := make([]Profile, 0, len(ds))
	for _, name := range model.AllDatasets {
		if df, ok := ds[name]; ok {
			profiles = append(profiles, ProfileTable(name, df))
		}
	}
	return profiles
}
