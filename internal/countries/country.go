package countries

import "errors"

var ErrCountryNotFound = errors.New("country not found")

// Country is pre-seeded reference data, read-only after startup.
type Country struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}
