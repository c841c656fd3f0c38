package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPence(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"1250", 125000, true},
		{"1,250.5", 125050, true},
		{"0.07", 7, true},
		{" 10.00 ", 1000, true},
		{"-1", 0, false},
		{"1.234", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Pence(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChecker(t *testing.T) {
	errs := New().
		Required("name", "").
		Date("name", "not-a-date").
		Date("effective_date", "2026-02-30").
		Amount("price", "0").
		NonNegativeAmount("relief", "0").
		SortCode("sort_code", "12-34-56").
		AccountNumber("account_number", "1234567").
		Postcode("postcode", "EH1 1AA").
		Email("email", "nope").
		OneOf("return_type", "gift", "conveyance", "lease").
		Accepted("declaration", "").
		Errors()

	assert.Equal(t, "is required", errs["name"], "first error per field wins")
	assert.Contains(t, errs, "effective_date")
	assert.Contains(t, errs, "price")
	assert.NotContains(t, errs, "relief")
	assert.NotContains(t, errs, "sort_code")
	assert.Contains(t, errs, "account_number")
	assert.NotContains(t, errs, "postcode")
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "return_type")
	assert.Contains(t, errs, "declaration")
}

func TestCheckerSkipsEmptyOptionalFields(t *testing.T) {
	errs := New().
		Date("d", "").
		Amount("a", "").
		SortCode("s", "").
		AccountNumber("n", "").
		Postcode("p", "").
		Email("e", "").
		OneOf("o", "", "x").
		Errors()
	assert.Empty(t, errs)
}

func TestDateOrder(t *testing.T) {
	assert.Contains(t, New().DateOrder("end", "2026-04-01", "2026-03-31").Errors(), "end")
	assert.Empty(t, New().DateOrder("end", "2026-04-01", "2026-04-01").Errors())
	assert.Empty(t, New().DateOrder("end", "bad", "2026-04-01").Errors())
}
