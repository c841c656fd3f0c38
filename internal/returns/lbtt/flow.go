package lbtt

import (
	"taxportal/internal/wizard/flow"
	"taxportal/internal/wizard/models"
	"taxportal/internal/wizard/validate"
)

// Flow returns the LBTT step table:
// return_type, property, transaction, lease (lease returns only),
// agent (agent filings only), buyer, declaration.
func Flow() *flow.Flow[Return] {
	return flow.MustNew(Name, Form,
		flow.Step[Return]{
			Name:     "return_type",
			Fields:   []string{"return_type", "filed_by"},
			Validate: validateReturnType,
		},
		flow.Step[Return]{
			Name: "property",
			Fields: []string{
				"property.address", "property.postcode",
				"property.title_number", "property.local_authority",
			},
			Validate: validateProperty,
		},
		flow.Step[Return]{
			Name: "transaction",
			Fields: []string{
				"transaction.effective_date", "transaction.contract_date",
				"transaction.consideration", "transaction.linked",
				"transaction.linked_consideration",
			},
			Validate: validateTransaction,
		},
		flow.Step[Return]{
			Name:     "lease",
			Fields:   []string{"lease.start_date", "lease.end_date", "lease.annual_rent", "lease.premium"},
			When:     (*Return).IsLeaseReturn,
			Validate: validateLease,
		},
		flow.Step[Return]{
			Name:     "agent",
			Fields:   []string{"agent.name", "agent.reference", "agent.email", "agent.phone"},
			When:     func(r *Return) bool { return r.FiledBy == FiledByAgent },
			Validate: validateAgent,
		},
		flow.Step[Return]{
			Name:     "buyer",
			Fields:   []string{"buyer.type", "buyer.name", "buyer.address", "buyer.postcode", "buyer.email"},
			Validate: validateBuyer,
		},
		flow.Step[Return]{
			Name:   "declaration",
			Fields: []string{"declaration"},
			Validate: func(r *Return) models.FieldErrors {
				return validate.New().Accepted("declaration", r.Declaration).Errors()
			},
		},
	).WithSetup(func(r *Return, params models.Document) {
		if v, ok := params["return_type"].(string); ok {
			r.ReturnType = v
		}
		r.FiledBy = FiledByTaxpayer
		if v, ok := params["filed_by"].(string); ok && v != "" {
			r.FiledBy = v
		}
	})
}

func validateReturnType(r *Return) models.FieldErrors {
	return validate.New().
		Required("return_type", r.ReturnType).
		OneOf("return_type", r.ReturnType, TypeConveyance, TypeLease, TypeAssignation, TypeTermination).
		Required("filed_by", r.FiledBy).
		OneOf("filed_by", r.FiledBy, FiledByTaxpayer, FiledByAgent).
		Errors()
}

func validateProperty(r *Return) models.FieldErrors {
	p := r.Property
	return validate.New().
		Required("property.address", p.Address).
		MaxLen("property.address", p.Address, 255).
		Required("property.postcode", p.Postcode).
		Postcode("property.postcode", p.Postcode).
		Required("property.local_authority", p.LocalAuthority).
		Errors()
}

func validateTransaction(r *Return) models.FieldErrors {
	t := r.Transaction
	c := validate.New().
		Required("transaction.effective_date", t.EffectiveDate).
		Date("transaction.effective_date", t.EffectiveDate).
		Date("transaction.contract_date", t.ContractDate).
		DateOrder("transaction.effective_date", t.ContractDate, t.EffectiveDate).
		Required("transaction.linked", t.Linked).
		OneOf("transaction.linked", t.Linked, "yes", "no")
	if r.IsLeaseReturn() {
		c.NonNegativeAmount("transaction.consideration", t.Consideration)
	} else {
		c.Required("transaction.consideration", t.Consideration).
			NonNegativeAmount("transaction.consideration", t.Consideration)
	}
	if t.Linked == "yes" {
		c.Required("transaction.linked_consideration", t.LinkedConsideration).
			Amount("transaction.linked_consideration", t.LinkedConsideration)
	}
	return c.Errors()
}

func validateLease(r *Return) models.FieldErrors {
	l := r.Lease
	return validate.New().
		Required("lease.start_date", l.StartDate).
		Date("lease.start_date", l.StartDate).
		Required("lease.end_date", l.EndDate).
		Date("lease.end_date", l.EndDate).
		DateOrder("lease.end_date", l.StartDate, l.EndDate).
		Required("lease.annual_rent", l.AnnualRent).
		NonNegativeAmount("lease.annual_rent", l.AnnualRent).
		NonNegativeAmount("lease.premium", l.Premium).
		Errors()
}

func validateAgent(r *Return) models.FieldErrors {
	a := r.Agent
	return validate.New().
		Required("agent.name", a.Name).
		Required("agent.email", a.Email).
		Email("agent.email", a.Email).
		MaxLen("agent.reference", a.Reference, 30).
		Errors()
}

func validateBuyer(r *Return) models.FieldErrors {
	b := r.Buyer
	return validate.New().
		Required("buyer.type", b.Type).
		OneOf("buyer.type", b.Type, "individual", "organisation").
		Required("buyer.name", b.Name).
		Required("buyer.address", b.Address).
		Required("buyer.postcode", b.Postcode).
		Postcode("buyer.postcode", b.Postcode).
		Email("buyer.email", b.Email).
		Errors()
}
