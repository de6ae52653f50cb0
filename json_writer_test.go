package mfm

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etnz/mfm/date"
)

func TestOrderedObject(t *testing.T) {
	tests := []struct {
		name  string
		build func(o *orderedObject)
		want  string
	}{
		{
			name:  "empty",
			build: func(o *orderedObject) {},
			want:  `{}`,
		},
		{
			name: "insertion order",
			build: func(o *orderedObject) {
				o.Set("z", 1).Set("a", "hello").Set("m", true)
			},
			want: `{"z":1,"a":"hello","m":true}`,
		},
		{
			name: "zero values are skipped only when asked",
			build: func(o *orderedObject) {
				o.Set("kept", 0)
				o.SetNonZero("text", "")
				o.SetNonZero("int", 0)
				o.SetNonZero("decimal", decimal.Zero)
				o.SetNonZero("date", date.Date{})
				o.SetNonZero("nil", nil)
				o.SetNonZero("fund", FundRef("5113428"))
				o.SetNonZero("price", decimal.RequireFromString("1.50"))
			},
			want: `{"kept":0,"fund":"5113428","price":"1.5"}`,
		},
		{
			name: "keys are escaped",
			build: func(o *orderedObject) {
				o.Set(`a"b`, 1)
			},
			want: `{"a\"b":1}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o orderedObject
			tt.build(&o)
			got, err := o.MarshalJSON()
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestOrderedObject_Error(t *testing.T) {
	var o orderedObject
	o.Set("a", 1).Set("ch", make(chan int))
	_, err := o.MarshalJSON()
	assert.ErrorContains(t, err, `"ch"`)
}
