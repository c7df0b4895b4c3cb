package join

import (
	"fmt"

	"github.com/Veraticus/demandflow/internal/common"
	"github.com/Veraticus/demandflow/internal/dataset"
	"github.com/go-gota/gota/dataframe"
)

// InnerJoin matches rows of left and right on equal key values.
//
// Output rows follow left row order, then right row order within a key. Columns are
// every left column in place followed by the right non-key columns; names present
// on both sides get LeftSuffix and RightSuffix. Keys compare by rendered value so an
// integer key matches the same id stored as text; missing keys never match.
func InnerJoin(left, right dataframe.DataFrame, key string) (dataframe.DataFrame, error) {
	if missing := dataset.MissingColumns(left, key); missing != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: left side lacks %q", common.ErrMissingColumn, key)
	}
	if missing := dataset.MissingColumns(right, key); missing != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: right side lacks %q", common.ErrMissingColumn, key)
	}

	index := make(map[string][]int, right.Nrow())
	rk := right.Col(key)
	for i := 0; i < rk.Len(); i++ {
		if k, ok := dataset.KeyString(rk.Elem(i)); ok {
			index[k] = append(index[k], i)
		}
	}

	var li, ri []int
	lk := left.Col(key)
	for i := 0; i < lk.Len(); i++ {
		k, ok := dataset.KeyString(lk.Elem(i))
		if !ok {
			continue
		}
		for _, j := range index[k] {
			li = append(li, i)
			ri = append(ri, j)
		}
	}
	if li == nil {
		li, ri = []int{}, []int{}
	}

	leftPart := left.Subset(li)
	if right.Ncol() == 1 {
		return leftPart, leftPart.Err
	}
	rightPart := right.Drop(key).Subset(ri)

	leftPart, rightPart = suffixOverlaps(leftPart, rightPart)

	out := leftPart.CBind(rightPart)
	if out.Err != nil {
		return dataframe.DataFrame{}, out.Err
	}
	return out, nil
}

func suffixOverlaps(left, right dataframe.DataFrame) (dataframe.DataFrame, dataframe.DataFrame) {
	for _, name := range right.Names() {
		if !dataset.HasColumn(left, name) {
			continue
		}
		left = left.Rename(name+LeftSuffix, name)
		right = right.Rename(name+RightSuffix, name)
	}
	return left, right
}
