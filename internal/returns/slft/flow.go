package slft

import (
	"regexp"

	"taxportal/internal/wizard/flow"
	"taxportal/internal/wizard/models"
	"taxportal/internal/wizard/validate"
)

var (
	yearPattern    = regexp.MustCompile(`^20\d{2}$`)
	licencePattern = regexp.MustCompile(`^[A-Z]{3}/[A-Z]/\d{7}$`)
)

// Flow returns the SLFT step table: period, site, tonnage, credits (only
// when claiming credits), declaration.
func Flow() *flow.Flow[Return] {
	return flow.MustNew(Name, Form,
		flow.Step[Return]{
			Name:     "period",
			Fields:   []string{"period.year", "period.quarter"},
			Validate: validatePeriod,
		},
		flow.Step[Return]{
			Name:     "site",
			Fields:   []string{"site.name", "site.licence_number", "site.postcode"},
			Validate: validateSite,
		},
		flow.Step[Return]{
			Name: "tonnage",
			Fields: []string{
				"tonnage.standard", "tonnage.lower", "tonnage.exempt",
				"tonnage.water_discount", "claiming_credits",
			},
			Validate: validateTonnage,
		},
		flow.Step[Return]{
			Name:     "credits",
			Fields:   []string{"credits.environmental", "credits.bad_debt", "credits.permanent_removal"},
			When:     func(r *Return) bool { return r.ClaimingCredits == "yes" },
			Validate: validateCredits,
		},
		flow.Step[Return]{
			Name:   "declaration",
			Fields: []string{"declaration"},
			Validate: func(r *Return) models.FieldErrors {
				return validate.New().Accepted("declaration", r.Declaration).Errors()
			},
		},
	).WithSetup(func(r *Return, params models.Document) {
		if v, ok := params["year"].(string); ok {
			r.Period.Year = v
		}
		if v, ok := params["quarter"].(string); ok {
			r.Period.Quarter = v
		}
	})
}

func validatePeriod(r *Return) models.FieldErrors {
	return validate.New().
		Required("period.year", r.Period.Year).
		Check(r.Period.Year == "" || yearPattern.MatchString(r.Period.Year), "period.year", "must be a year such as 2026").
		Required("period.quarter", r.Period.Quarter).
		OneOf("period.quarter", r.Period.Quarter, "Q1", "Q2", "Q3", "Q4").
		Errors()
}

func validateSite(r *Return) models.FieldErrors {
	s := r.Site
	return validate.New().
		Required("site.name", s.Name).
		Required("site.licence_number", s.LicenceNumber).
		Check(s.LicenceNumber == "" || licencePattern.MatchString(s.LicenceNumber),
			"site.licence_number", "must be a SEPA licence number such as PPC/A/1234567").
		Postcode("site.postcode", s.Postcode).
		Errors()
}

func validateTonnage(r *Return) models.FieldErrors {
	t := r.Tonnage
	c := validate.New().
		NonNegativeAmount("tonnage.standard", t.Standard).
		NonNegativeAmount("tonnage.lower", t.Lower).
		NonNegativeAmount("tonnage.exempt", t.Exempt).
		NonNegativeAmount("tonnage.water_discount", t.WaterDiscount).
		Required("claiming_credits", r.ClaimingCredits).
		OneOf("claiming_credits", r.ClaimingCredits, "yes", "no")
	if t.Standard == "" && t.Lower == "" && t.Exempt == "" && t.WaterDiscount == "" {
		c.Check(false, "tonnage.standard", "enter the tonnage for at least one band")
	}
	return c.Errors()
}

func validateCredits(r *Return) models.FieldErrors {
	cr := r.Credits
	c := validate.New().
		NonNegativeAmount("credits.environmental", cr.Environmental).
		NonNegativeAmount("credits.bad_debt", cr.BadDebt).
		NonNegativeAmount("credits.permanent_removal", cr.Permanent)
	total := int64(0)
	for _, v := range []string{cr.Environmental, cr.BadDebt, cr.Permanent} {
		if p, ok := validate.Pence(v); ok {
			total += p
		}
	}
	c.Check(total > 0, "credits.environmental", "enter at least one credit amount")
	return c.Errors()
}
