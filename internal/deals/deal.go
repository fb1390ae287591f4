package deals

// Delimiters the model wraps structured deal payloads in when answering chat.
const (
	openDelim  = "<<<DEAL>>>"
	closeDelim = "<<<END_DEAL>>>"
)

type Owner struct {
	Name       string `json:"name"`
	Address    string `json:"address,omitempty"`
	APN        string `json:"apn,omitempty"`
	OwnerType  string `json:"ownerType,omitempty"`
	YearsOwned string `json:"yearsOwned,omitempty"`
}

type Financial struct {
	Label     string `json:"label"`
	Value     string `json:"value"`
	Highlight bool   `json:"highlight,omitempty"`
}

// Record is a structured deal as emitted by the model. Records are only ever
// produced by parsing model output; nothing in this package fabricates one.
type Record struct {
	ID               string      `json:"id,omitempty"`
	Address          string      `json:"address"`
	Details          string      `json:"details"`
	Status           string      `json:"status"`
	StatusLabel      string      `json:"statusLabel"`
	IsQCT            bool        `json:"isQCT"`
	IsOZ             bool        `json:"isOZ"`
	RiskScore        string      `json:"riskScore,omitempty"`
	FeasibilityScore float64     `json:"feasibilityScore,omitempty"`
	DealSignals      []string    `json:"dealSignals,omitempty"`
	Source           string      `json:"source,omitempty"`
	ListingURL       string      `json:"listingUrl,omitempty"`
	Owner            Owner       `json:"owner"`
	Financials       []Financial `json:"financials,omitempty"`
}
