package models

// Client is a taxpayer managed by a firm user.
type Client struct {
	ID          string `json:"id"`
	FirmAdminID string `json:"firmAdminId"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	TaxYear     int    `json:"taxYear"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// ClientSummary is a client row with its intake state, as listed to staff.
type ClientSummary struct {
	Client
	IntakeID    string       `json:"intakeId"`
	IntakeToken string       `json:"intakeToken"`
	Status      IntakeStatus `json:"status"`
	LastUpdated string       `json:"lastUpdated"`
}
