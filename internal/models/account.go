package models

// Account represents a financial account a user posts transactions against.
type Account struct {
	Base
	Name string `json:"name"`
}

// Payee is a remembered counterparty offered as an input suggestion.
type Payee struct {
	Base
	Name string `json:"name"`
}
