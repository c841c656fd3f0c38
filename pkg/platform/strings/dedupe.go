// Package strings holds small slice-of-string helpers shared by config parsing
// and the wizard history.
package strings

import (
	"slices"
	"strings"
)

// SplitList splits a separated list, trimming entries and dropping blanks and
// repeats. Order of first occurrence is preserved.
//
//	SplitList(" kafka-1:9092, ,kafka-2:9092,kafka-1:9092", ",")
//	// []string{"kafka-1:9092", "kafka-2:9092"}
func SplitList(v, sep string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(v, sep))
}

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
	if values == nil {
		return nil
	}
	result := make([]string, 0, len(values))
	for _, v := range values {
		result = AppendUnique(result, strings.TrimSpace(v))
	}
	return result
}

// AppendUnique appends v unless it is empty or already present.
func AppendUnique(values []string, v string) []string {
	if v == "" || slices.Contains(values, v) {
		return values
	}
	return append(values, v)
}
