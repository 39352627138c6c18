package types

import (
	"encoding/json"
	"strings"

	"github.com/angelmondragon/loyalty-portal/pkg/enums"
)

// Identity is the authenticated account as returned by the loyalty API.
type Identity struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Role        enums.Role `json:"role"`
	FirstName   string     `json:"firstName,omitempty"`
	LastName    string     `json:"lastName,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
	PhoneNumber string     `json:"phoneNumber,omitempty"`
}

// UnmarshalJSON accepts both "id" and the document-style "_id".
func (i *Identity) UnmarshalJSON(data []byte) error {
	type alias Identity
	var raw struct {
		alias
		DocumentID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Identity(raw.alias)
	if i.ID == "" {
		i.ID = raw.DocumentID
	}
	return nil
}

// Valid reports whether the identity carries the fields a session needs.
func (i Identity) Valid() bool {
	return strings.TrimSpace(i.Email) != "" && i.Role.IsValid()
}

// Name returns the best human-readable label for the identity.
func (i Identity) Name() string {
	if name := strings.TrimSpace(i.DisplayName); name != "" {
		return name
	}
	if full := strings.TrimSpace(i.FirstName + " " + i.LastName); full != "" {
		return full
	}
	return i.Email
}

// RegistrationFields is the payload of the registration endpoint.
type RegistrationFields struct {
	FirstName   string     `json:"firstName" validate:"required"`
	LastName    string     `json:"lastName" validate:"required"`
	Email       string     `json:"email" validate:"required,email"`
	Password    string     `json:"password" validate:"required,min=6"`
	PhoneNumber string     `json:"phoneNumber" validate:"required"`
	Role        enums.Role `json:"role" validate:"required,oneof=admin merchant"`
}
