package types

import "strings"

// PersonDetail names a recipient of a subscription line; the list is sized
// independently of the line quantity.
type PersonDetail struct {
	Name        string `json:"name" validate:"required"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
}

// PersonDetails is stored as a JSON column on cart and order lines.
type PersonDetails []PersonDetail

// Normalize trims every entry and drops blank rows.
func (p PersonDetails) Normalize() PersonDetails {
	out := make(PersonDetails, 0, len(p))
	for _, person := range p {
		name := strings.TrimSpace(person.Name)
		phone := strings.TrimSpace(person.PhoneNumber)
		if name == "" && phone == "" {
			continue
		}
		out = append(out, PersonDetail{Name: name, PhoneNumber: phone})
	}
	return out
}
