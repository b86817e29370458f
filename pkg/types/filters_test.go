package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterSet_IsEmpty(t *testing.T) {
	tests := []struct {
		name    string
		filters *FilterSet
		want    bool
	}{
		{name: "nil", filters: nil, want: true},
		{name: "zero value", filters: &FilterSet{}, want: true},
		{name: "empty locations slice", filters: &FilterSet{Locations: []string{}}, want: true},
		{name: "hole spacing", filters: &FilterSet{HoleSpacing: HoleSpacingCenterset}, want: false},
		{name: "tub spout false is still set", filters: &FilterSet{HasTubSpout: Bool(false)}, want: false},
		{name: "length max zero is still set", filters: &FilterSet{LengthMax: Float(0)}, want: false},
		{name: "width max", filters: &FilterSet{WidthMax: Float(36)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filters.IsEmpty())
		})
	}
}

func TestFilterSet_Fields(t *testing.T) {
	f := &FilterSet{
		WidthMax:    Float(30),
		HoleSpacing: HoleSpacingWidespread,
		Locations:   []string{LocationFloor},
	}
	assert.Equal(t, []string{FieldHoleSpacing, FieldLocations, FieldWidthMax}, f.Fields())

	var nilSet *FilterSet
	assert.Nil(t, nilSet.Fields())
}

func TestFilterSet_Allows(t *testing.T) {
	t.Run("allowed field", func(t *testing.T) {
		f := &FilterSet{LengthMax: Float(60)}
		assert.NoError(t, f.Allows([]string{FieldLengthMax}))
	})

	t.Run("disallowed field", func(t *testing.T) {
		f := &FilterSet{LengthMax: Float(60), HasTubSpout: Bool(true)}
		err := f.Allows([]string{FieldLengthMax})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFilterNotAllowed))

		var fieldErr *FilterFieldError
		require.True(t, errors.As(err, &fieldErr))
		assert.Equal(t, FieldHasTubSpout, fieldErr.Field)
	})

	t.Run("empty set allowed everywhere", func(t *testing.T) {
		var f *FilterSet
		assert.NoError(t, f.Allows(nil))
	})
}
