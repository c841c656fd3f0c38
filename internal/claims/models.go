// Package claims is the repayment claim wizard.
package claims

const (
	Name = "repayment-claim"
	Form = "CLAIM"
)

const (
	ClaimantTaxpayer = "taxpayer"
	ClaimantAgent    = "agent"
)

// Claim reasons.
const (
	ReasonAmendedReturn = "amended_return"
	ReasonOverpayment   = "overpayment"
	ReasonMainResidence = "main_residence"
	ReasonOther         = "other"
)

type Agent struct {
	Name      string `json:"name"`
	Reference string `json:"reference"`
	Email     string `json:"email"`
}

type Taxpayer struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Postcode string `json:"postcode"`
	Email    string `json:"email"`
}

type Bank struct {
	AccountName   string `json:"account_name"`
	SortCode      string `json:"sort_code"`
	AccountNumber string `json:"account_number"`
}

// Claim is the partial repayment claim cached between pages.
type Claim struct {
	ClaimantType    string   `json:"claimant_type"`
	ReturnReference string   `json:"return_reference"`
	Agent           Agent    `json:"agent"`
	Taxpayer        Taxpayer `json:"taxpayer"`
	Reason          string   `json:"reason"`
	Details         string   `json:"details"`
	DisposalDate    string   `json:"disposal_date"`
	Amount          string   `json:"amount"`
	Bank            Bank     `json:"bank"`
	Declaration     string   `json:"declaration"`
}
