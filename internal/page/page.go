// Package page composes the top-level page from the caller's session.
package page

import "hisaab/internal/identity"

// View names.
const (
	ViewSignedOut = "signed_out"
	ViewSignedIn  = "signed_in"
)

// Section names in render order.
const (
	SectionHero             = "hero"
	SectionNav              = "nav"
	SectionAddTransaction   = "add_transaction"
	SectionTransactionPanel = "transaction_panel"
)

// Layout describes what the client should render.
type Layout struct {
	View     string   `json:"view"`
	Sections []string `json:"sections"`
	UserID   string   `json:"userId,omitempty"`
}

// Compose picks the signed-in or signed-out layout. It never touches the
// document store, so a signed-out caller causes no queries.
func Compose(session identity.Session) Layout {
	if !session.Ready {
		return Layout{View: ViewSignedOut, Sections: []string{SectionHero}}
	}
	return Layout{
		View:     ViewSignedIn,
		Sections: []string{SectionNav, SectionAddTransaction, SectionTransactionPanel},
		UserID:   session.UserID,
	}
}
