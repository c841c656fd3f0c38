package claims

import (
	"regexp"

	"taxportal/internal/wizard/flow"
	"taxportal/internal/wizard/models"
	"taxportal/internal/wizard/validate"
)

var returnReferencePattern = regexp.MustCompile(`^(?i)(LBTT|SLFT)-[0-9A-F]{8}$`)

// Flow returns the claim step table. Agent details are skipped unless the
// claimant is an agent; an amended return goes straight from reason to
// amount, other reasons explain themselves on the details page first.
func Flow() *flow.Flow[Claim] {
	return flow.MustNew(Name, Form,
		flow.Step[Claim]{
			Name:     "claimant_type",
			Fields:   []string{"claimant_type", "return_reference"},
			Validate: validateClaimant,
		},
		flow.Step[Claim]{
			Name:     "agent",
			Fields:   []string{"agent.name", "agent.reference", "agent.email"},
			When:     func(c *Claim) bool { return c.ClaimantType == ClaimantAgent },
			Validate: validateAgent,
		},
		flow.Step[Claim]{
			Name:     "taxpayer",
			Fields:   []string{"taxpayer.name", "taxpayer.address", "taxpayer.postcode", "taxpayer.email"},
			Validate: validateTaxpayer,
		},
		flow.Step[Claim]{
			Name:   "reason",
			Fields: []string{"reason"},
			Next: func(c *Claim) string {
				if c.Reason == ReasonAmendedReturn {
					return "amount"
				}
				return ""
			},
			Validate: func(c *Claim) models.FieldErrors {
				return validate.New().
					Required("reason", c.Reason).
					OneOf("reason", c.Reason, ReasonAmendedReturn, ReasonOverpayment, ReasonMainResidence, ReasonOther).
					Errors()
			},
		},
		flow.Step[Claim]{
			Name:     "details",
			Fields:   []string{"details", "disposal_date"},
			When:     func(c *Claim) bool { return c.Reason != ReasonAmendedReturn },
			Validate: validateDetails,
		},
		flow.Step[Claim]{
			Name:   "amount",
			Fields: []string{"amount"},
			Validate: func(c *Claim) models.FieldErrors {
				return validate.New().Required("amount", c.Amount).Amount("amount", c.Amount).Errors()
			},
		},
		flow.Step[Claim]{
			Name:     "bank",
			Fields:   []string{"bank.account_name", "bank.sort_code", "bank.account_number"},
			Validate: validateBank,
		},
		flow.Step[Claim]{
			Name:   "declaration",
			Fields: []string{"declaration"},
			Validate: func(c *Claim) models.FieldErrors {
				return validate.New().Accepted("declaration", c.Declaration).Errors()
			},
		},
	).WithSetup(func(c *Claim, params models.Document) {
		if v, ok := params["return_reference"].(string); ok {
			c.ReturnReference = v
		}
	})
}

func validateClaimant(c *Claim) models.FieldErrors {
	return validate.New().
		Required("claimant_type", c.ClaimantType).
		OneOf("claimant_type", c.ClaimantType, ClaimantTaxpayer, ClaimantAgent).
		Required("return_reference", c.ReturnReference).
		Check(c.ReturnReference == "" || returnReferencePattern.MatchString(c.ReturnReference),
			"return_reference", "must be a return reference such as LBTT-1A2B3C4D").
		Errors()
}

func validateAgent(c *Claim) models.FieldErrors {
	return validate.New().
		Required("agent.name", c.Agent.Name).
		Required("agent.email", c.Agent.Email).
		Email("agent.email", c.Agent.Email).
		Errors()
}

func validateTaxpayer(c *Claim) models.FieldErrors {
	t := c.Taxpayer
	return validate.New().
		Required("taxpayer.name", t.Name).
		Required("taxpayer.address", t.Address).
		Required("taxpayer.postcode", t.Postcode).
		Postcode("taxpayer.postcode", t.Postcode).
		Email("taxpayer.email", t.Email).
		Errors()
}

func validateDetails(c *Claim) models.FieldErrors {
	v := validate.New().
		Required("details", c.Details).
		MaxLen("details", c.Details, 2000)
	if c.Reason == ReasonMainResidence {
		v.Required("disposal_date", c.DisposalDate).Date("disposal_date", c.DisposalDate)
	}
	return v.Errors()
}

func validateBank(c *Claim) models.FieldErrors {
	b := c.Bank
	return validate.New().
		Required("bank.account_name", b.AccountName).
		Required("bank.sort_code", b.SortCode).
		SortCode("bank.sort_code", b.SortCode).
		Required("bank.account_number", b.AccountNumber).
		AccountNumber("bank.account_number", b.AccountNumber).
		Errors()
}
