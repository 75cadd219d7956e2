// Package uuid generates the time-ordered identifiers used for documents,
// forms and request ids.
package uuid

import googleuuid "github.com/google/uuid"

// New returns a UUIDv7 string. Ids from one process compare in creation order.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.New().String()
	}
	return id.String()
}

// IsValid reports whether s parses as a UUID of any version.
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
