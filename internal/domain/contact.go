package domain

import "strings"

// PhoneNumber is one number attached to a contact.
type PhoneNumber struct {
	Number string `json:"number"          mapstructure:"number"`
	Label  string `json:"label,omitempty" mapstructure:"label"`
}

// EmergencyContact is an entry of the user's contact list stored under
// Contatos/{uid}. The first entry of the list is the emergency contact used
// for location dispatch.
type EmergencyContact struct {
	ID           string        `json:"id"           mapstructure:"id"`
	Name         string        `json:"name"         mapstructure:"name"`
	PhoneNumbers []PhoneNumber `json:"phoneNumbers" mapstructure:"phoneNumbers"`
}

// PrimaryNumber returns the first non-blank phone number of the contact.
func (c EmergencyContact) PrimaryNumber() (string, bool) {
	for _, p := range c.PhoneNumbers {
		if n := strings.TrimSpace(p.Number); n != "" {
			return n, true
		}
	}
	return "", false
}

// EmergencyNumber is an entry of the public emergency-services directory.
type EmergencyNumber struct {
	Name   string `json:"name"`
	Number string `json:"number"`
	Link   string `json:"link"`
}
