package model

// AbsencePolicy decides what a step does when a declared column is absent.
type AbsencePolicy int

const (
	// SkipStep logs the absence and leaves the table unchanged.
	SkipStep AbsencePolicy = iota
	// Fail aborts the run with ErrMissingColumn.
	Fail
)

func (p AbsencePolicy) String() string {
	if p == Fail {
		return "fail"
	}
	return "skip"
}

// Requirement declares the columns a step needs and how to react if any is missing.
type Requirement struct {
	Step    string
	Columns []string
	Policy  AbsencePolicy
}

// Schema declares the optional columns of a dataset and the cleaning applied to each.
// Every listed column is optional: steps over absent columns are skipped.
type Schema struct {
	Name DatasetName
	// Keys identify a row. The first key is the one the dataset is joined on.
	Keys []string
	// RequiredIDs drop the row when missing.
	RequiredIDs []string
	// Dates are coerced to calendar dates, unparseable values become missing.
	Dates []string
	// Numeric columns have missing values replaced by the column median.
	Numeric []string
	// Categorical columns are filled with DefaultCategory then title-cased.
	Categorical []string
}

// JoinKey returns the column the dataset is joined on, or "" when it declares no keys.
func (s Schema) JoinKey() string {
	if len(s.Keys) == 0 {
		return ""
	}
	return s.Keys[0]
}

// JoinRequirement declares the join key a merge with this dataset needs on both sides.
// Without it the merge is skipped.
func (s Schema) JoinRequirement() Requirement {
	return Requirement{
		Step:    "join " + string(s.Name),
		Columns: []string{s.JoinKey()},
		Policy:  SkipStep,
	}
}

// DefaultCategory fills missing categorical values.
const DefaultCategory = "Unknown"

// Schemas holds the cleaning schema of every dataset.
var Schemas = map[DatasetName]Schema{
	Orders: {
		Name:        Orders,
		Keys:        []string{ColOrderID},
		RequiredIDs: []string{ColOrderID, ColCustomerID},
		Dates:       []string{ColOrderDate},
	},
	OrderItems: {
		Name: OrderItems,
		Keys: []string{ColOrderID, ColProductID},
	},
	Products: {
		Name:        Products,
		Keys:        []string{ColProductID},
		Numeric:     []string{ColPrice},
		Categorical: []string{ColCategory, ColCity},
	},
	Customers: {
		Name:        Customers,
		Keys:        []string{ColCustomerID},
		Numeric:     []string{ColAge},
		Categorical: []string{ColCategory, ColCity},
	},
	Delivery: {
		Name:    Delivery,
		Keys:    []string{ColOrderID},
		Numeric: []string{ColDeliveryTime},
	},
	Feedback: {
		Name:    Feedback,
		Keys:    []string{ColOrderID},
		Numeric: []string{ColRating},
	},
}

// SchemaFor returns the schema of a dataset, or an empty schema for unknown names.
func SchemaFor(name DatasetName) Schema {
	if s, ok := Schemas[name]; ok {
		return s
	}
	return Schema{Name: name}
}
