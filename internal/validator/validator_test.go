package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyString(t *testing.T) {
	tests := []struct {
		name      string
		defined   bool
		value     string
		wantClass Class
		wantValue string
	}{
		{"undefined column", false, "anything", ClassQueryFailed, Sentinel},
		{"empty string", true, "", ClassSrcEmpty, Sentinel},
		{"whitespace only", true, "   \t\n", ClassSrcEmpty, Sentinel},
		{"has data", true, "Cobalt Blue", ClassHasData, "Cobalt Blue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var acc Accumulator
			field := acc.ClassifyString(tt.defined, tt.value)
			assert.Equal(t, tt.wantClass, field.Class)
			assert.Equal(t, tt.wantValue, field.Value)
		})
	}
}

func TestClassifyStringPtr(t *testing.T) {
	var acc Accumulator
	field := acc.ClassifyStringPtr(nil)
	assert.Equal(t, ClassSrcEmpty, field.Class)
	assert.Equal(t, Sentinel, field.Value)

	value := "Y"
	acc2 := Accumulator{}
	field2 := acc2.ClassifyStringPtr(&value)
	assert.Equal(t, ClassHasData, field2.Class)
	assert.Equal(t, "Y", field2.Value)
}

func TestClassifyCollection(t *testing.T) {
	var acc Accumulator

	empty := acc.ClassifyCollection(nil)
	assert.Equal(t, ClassSrcEmpty, empty.Class)
	assert.Equal(t, Sentinel, empty.Value)

	blanksOnly := acc.ClassifyCollection([]string{"", "  "})
	assert.Equal(t, ClassSrcEmpty, blanksOnly.Class)

	withData := acc.ClassifyCollection([]string{"Cotton", "", "Linen"})
	assert.Equal(t, ClassHasData, withData.Class)
	assert.Equal(t, "Cotton, Linen", withData.Value)
}

func TestAccumulatorSummary(t *testing.T) {
	var acc Accumulator
	acc.ClassifyString(true, "has data")
	acc.ClassifyString(true, "")
	acc.ClassifyString(false, "irrelevant")

	summary := acc.Summary()
	assert.Equal(t, 1, summary.HasData)
	assert.Equal(t, 1, summary.SrcEmpty)
	assert.Equal(t, 1, summary.QueryFailed)
}
