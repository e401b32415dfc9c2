package services

import "github.com/tbourn/go-sos-backend/internal/domain"

var emergencyDirectory = []domain.EmergencyNumber{
	{Name: "Bombeiros", Number: "193"},
	{Name: "Polícia Civil", Number: "197"},
	{Name: "Delegacia da Mulher", Number: "180"},
	{Name: "Ambulância", Number: "192"},
	{Name: "SAMU", Number: "192"},
	{Name: "Centro da Mulher", Number: "180"},
}

// EmergencyNumbers returns the public emergency-services directory, each
// entry with a tel: link. The slice is a copy.
func EmergencyNumbers() []domain.EmergencyNumber {
	out := make([]domain.EmergencyNumber, len(emergencyDirectory))
	for i, e := range emergencyDirectory {
		e.Link = "tel:" + e.Number
		out[i] = e
	}
	return out
}
