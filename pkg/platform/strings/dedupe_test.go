package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{name: "trims and drops blanks", input: []string{" property ", "", "  "}, expected: []string{"property"}},
		{name: "keeps first occurrence order", input: []string{"b", "a", "b", " a"}, expected: []string{"b", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList("   ", ","))
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"},
		SplitList(" kafka-1:9092, ,kafka-2:9092,kafka-1:9092", ","))
}

func TestAppendUnique(t *testing.T) {
	history := AppendUnique(nil, "return_type")
	history = AppendUnique(history, "property")
	history = AppendUnique(history, "return_type")
	history = AppendUnique(history, "")
	assert.Equal(t, []string{"return_type", "property"}, history)
}
