// Package lbtt is the Land and Buildings Transaction Tax return wizard.
package lbtt

const (
	Name = "lbtt-return"
	Form = "LBTT"
)

// Return types.
const (
	TypeConveyance  = "conveyance"
	TypeLease       = "lease"
	TypeAssignation = "assignation"
	TypeTermination = "termination"
)

const (
	FiledByTaxpayer = "taxpayer"
	FiledByAgent    = "agent"
)

type Property struct {
	Address        string `json:"address"`
	Postcode       string `json:"postcode"`
	TitleNumber    string `json:"title_number"`
	LocalAuthority string `json:"local_authority"`
}

type Transaction struct {
	EffectiveDate       string `json:"effective_date"`
	ContractDate        string `json:"contract_date"`
	Consideration       string `json:"consideration"`
	Linked              string `json:"linked"`
	LinkedConsideration string `json:"linked_consideration"`
}

type Lease struct {
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	AnnualRent string `json:"annual_rent"`
	Premium    string `json:"premium"`
}

type Agent struct {
	Name      string `json:"name"`
	Reference string `json:"reference"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type Buyer struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Postcode string `json:"postcode"`
	Email    string `json:"email"`
}

// Return is the partial LBTT return cached between pages.
type Return struct {
	ReturnType  string      `json:"return_type"`
	FiledBy     string      `json:"filed_by"`
	Property    Property    `json:"property"`
	Transaction Transaction `json:"transaction"`
	Lease       Lease       `json:"lease"`
	Agent       Agent       `json:"agent"`
	Buyer       Buyer       `json:"buyer"`
	Declaration string      `json:"declaration"`
}

// IsLeaseReturn reports whether the lease details page applies.
func (r *Return) IsLeaseReturn() bool {
	return r.ReturnType == TypeLease || r.ReturnType == TypeAssignation || r.ReturnType == TypeTermination
}
