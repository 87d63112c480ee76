package domain

// Credentials holds the exchange API key set a user supplies.
// Never persisted in clear text and never transmitted except as outbound
// request headers.
type Credentials struct {
	APIKey    string `json:"apiKey"`
	APISecret string `json:"apiSecret"`
	Email     string `json:"email"`
}

// IsConfigured reports whether every required field is non-empty.
// It says nothing about validity: that is only known once a real call
// succeeds or fails against the exchange.
func (c Credentials) IsConfigured() bool {
	return c.APIKey != "" && c.APISecret != "" && c.Email != ""
}

// NotionCredentials holds the asset-ledger database access pair.
type NotionCredentials struct {
	Token      string `json:"token"`
	DatabaseID string `json:"databaseId"`
}

// IsConfigured reports whether both fields are non-empty.
func (c NotionCredentials) IsConfigured() bool {
	return c.Token != "" && c.DatabaseID != ""
}
