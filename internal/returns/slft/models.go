// Package slft is the Scottish Landfill Tax quarterly return wizard.
package slft

const (
	Name = "slft-return"
	Form = "SLFT"
)

type Period struct {
	Year    string `json:"year"`
	Quarter string `json:"quarter"`
}

type Site struct {
	Name          string `json:"name"`
	LicenceNumber string `json:"licence_number"`
	Postcode      string `json:"postcode"`
}

// Tonnage is declared per rate band, in tonnes with up to two decimals.
type Tonnage struct {
	Standard      string `json:"standard"`
	Lower         string `json:"lower"`
	Exempt        string `json:"exempt"`
	WaterDiscount string `json:"water_discount"`
}

type Credits struct {
	Environmental string `json:"environmental"`
	BadDebt       string `json:"bad_debt"`
	Permanent     string `json:"permanent_removal"`
}

// Return is the partial SLFT return cached between pages.
type Return struct {
	Period          Period  `json:"period"`
	Site            Site    `json:"site"`
	Tonnage         Tonnage `json:"tonnage"`
	ClaimingCredits string  `json:"claiming_credits"`
	Credits         Credits `json:"credits"`
	Declaration     string  `json:"declaration"`
}
