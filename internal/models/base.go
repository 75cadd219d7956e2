package models

import "time"

// Collection names in the document store.
const (
	CollectionTransactions = "transactions"
	CollectionAccounts     = "accounts"
	CollectionPayees       = "payees"
)

// FieldCreatedBy is the tenant-partition key every owned document carries.
const FieldCreatedBy = "createdBy"

// DateLayout is the calendar date format used by transaction dates.
const DateLayout = "2006-01-02"

// Base contains the fields shared by every owned document.
type Base struct {
	ID        string    `json:"id"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// FormatDate renders t as a transaction calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// IsDate reports whether s is a valid YYYY-MM-DD calendar date.
func IsDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
