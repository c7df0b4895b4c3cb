package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemas_CoverEveryDataset(t *testing.T) {
	for _, name := range AllDatasets {
		s, ok := Schemas[name]
		assert.True(t, ok, "schema for %s", name)
		assert.Equal(t, name, s.Name)
		assert.NotEmpty(t, s.Keys, "keys for %s", name)
		assert.NotEmpty(t, DefaultFileNames[name], "file name for %s", name)
	}
}

func TestSchemaFor(t *testing.T) {
	assert.Equal(t, []string{ColPrice}, SchemaFor(Products).Numeric)

	unknown := SchemaFor("returns")
	assert.Equal(t, DatasetName("returns"), unknown.Name)
	assert.Empty(t, unknown.Numeric)
}

func TestAbsencePolicy_String(t *testing.T) {
	assert.Equal(t, "skip", SkipStep.String())
	assert.Equal(t, "fail", Fail.String())
}

func TestSchema_JoinKey(t *testing.T) {
	tests := []struct {
		name DatasetName
		want string
	}{
		{name: OrderItems, want: ColOrderID},
		{name: Products, want: ColProductID},
		{name: Customers, want: ColCustomerID},
		{name: Delivery, want: ColOrderID},
		{name: Feedback, want: ColOrderID},
		{name: "returns", want: ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			assert.Equal(t, tt.want, SchemaFor(tt.name).JoinKey())
		})
	}

	req := SchemaFor(Customers).JoinRequirement()
	assert.Equal(t, []string{ColCustomerID}, req.Columns)
	assert.Equal(t, SkipStep, req.Policy)
}
