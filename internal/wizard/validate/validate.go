// Package validate collects field errors for wizard steps. Every check except
// Required skips empty values so a field is reported once.
package validate

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"taxportal/internal/wizard/models"
	"taxportal/pkg/email"
)

const DateLayout = "2006-01-02"

var (
	amountPattern   = regexp.MustCompile(`^\d{1,12}(\.\d{1,2})?$`)
	sortCodePattern = regexp.MustCompile(`^\d{2}-?\d{2}-?\d{2}$`)
	accountPattern  = regexp.MustCompile(`^\d{8}$`)
	postcodePattern = regexp.MustCompile(`^(?i)[A-Z]{1,2}\d[A-Z\d]? ?\d[A-Z]{2}$`)
)

// Checker accumulates the first error per field.
type Checker struct {
	errs models.FieldErrors
}

func New() *Checker {
	return &Checker{errs: models.FieldErrors{}}
}

func (c *Checker) Errors() models.FieldErrors {
	return c.errs
}

// Check records msg when ok is false.
func (c *Checker) Check(ok bool, field, msg string) *Checker {
	if !ok {
		c.errs.Add(field, msg)
	}
	return c
}

func (c *Checker) Required(field, v string) *Checker {
	return c.Check(strings.TrimSpace(v) != "", field, "is required")
}

func (c *Checker) MaxLen(field, v string, n int) *Checker {
	return c.Check(len([]rune(v)) <= n, field, "must be at most "+strconv.Itoa(n)+" characters")
}

func (c *Checker) OneOf(field, v string, allowed ...string) *Checker {
	if v == "" {
		return c
	}
	return c.Check(slices.Contains(allowed, v), field, "is not an allowed option")
}

// Date accepts YYYY-MM-DD.
func (c *Checker) Date(field, v string) *Checker {
	if v == "" {
		return c
	}
	_, err := time.Parse(DateLayout, v)
	return c.Check(err == nil, field, "must be a date in the format YYYY-MM-DD")
}

// DateOrder requires from <= to when both are valid dates.
func (c *Checker) DateOrder(field, from, to string) *Checker {
	f, err1 := time.Parse(DateLayout, from)
	t, err2 := time.Parse(DateLayout, to)
	if err1 != nil || err2 != nil {
		return c
	}
	return c.Check(!t.Before(f), field, "must not be before the start date")
}

// Amount accepts a positive sum of money with at most two decimal places.
func (c *Checker) Amount(field, v string) *Checker {
	if v == "" {
		return c
	}
	pence, ok := Pence(v)
	return c.Check(ok && pence > 0, field, "must be a positive amount such as 1250.00")
}

// NonNegativeAmount is Amount allowing zero.
func (c *Checker) NonNegativeAmount(field, v string) *Checker {
	if v == "" {
		return c
	}
	_, ok := Pence(v)
	return c.Check(ok, field, "must be an amount such as 1250.00")
}

// Quantity accepts a positive decimal with up to two places, such as tonnes.
func (c *Checker) Quantity(field, v string) *Checker {
	return c.Amount(field, v)
}

func (c *Checker) SortCode(field, v string) *Checker {
	if v == "" {
		return c
	}
	return c.Check(sortCodePattern.MatchString(v), field, "must be a sort code such as 12-34-56")
}

func (c *Checker) AccountNumber(field, v string) *Checker {
	if v == "" {
		return c
	}
	return c.Check(accountPattern.MatchString(v), field, "must be 8 digits")
}

func (c *Checker) Postcode(field, v string) *Checker {
	if v == "" {
		return c
	}
	return c.Check(postcodePattern.MatchString(strings.TrimSpace(v)), field, "must be a UK postcode")
}

func (c *Checker) Email(field, v string) *Checker {
	if v == "" {
		return c
	}
	return c.Check(email.Valid(v), field, "must be an email address")
}

// Accepted requires a ticked declaration box.
func (c *Checker) Accepted(field, v string) *Checker {
	return c.Check(v == "true" || v == "yes" || v == "on", field, "must be accepted")
}

// Pence parses a money string into pence.
func Pence(v string) (int64, bool) {
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	if !amountPattern.MatchString(v) {
		return 0, false
	}
	whole, frac, _ := strings.Cut(v, ".")
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, false
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, false
	}
	return w*100 + f, true
}
