package menu

// Account is the signed-in viewer as reported by the backend.
type Account struct {
	ID       int64  `json:"_account_id"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

// DisplayName returns the best human-facing identifier for the account.
func (a *Account) DisplayName() string {
	if a == nil {
		return ""
	}
	switch {
	case a.Name != "":
		return a.Name
	case a.Username != "":
		return a.Username
	case a.Email != "":
		return a.Email
	default:
		return ""
	}
}
