package validate

import (
	"errors"
	"strings"
	"time"
)

// MinAge is the youngest age accepted at registration.
const MinAge = 14

// Registration errors carry the message shown to the user.
var (
	ErrMissingFields    = errors.New("Preencha todos os campos obrigatórios!")
	ErrInvalidBirthDate = errors.New("Data de nascimento inválida.")
	ErrUnderage         = errors.New("Você deve ter pelo menos 14 anos para se cadastrar.")
	ErrInvalidPhone     = errors.New("Formato de telefone inválido. Utilize o formato (DDD) 000000000.")
	ErrInvalidCPF       = errors.New("CPF inválido. Verifique e tente novamente.")
)

// birthDateLayouts are tried in order when parsing a birth date.
var birthDateLayouts = []string{"2006-01-02", "02/01/2006", time.RFC3339}

// Registration is the first step of the signup form.
type Registration struct {
	Nome           string
	Sobrenome      string
	DataNascimento string
	Telefone       string
	CPF            string
}

// ParseBirthDate accepts ISO (2006-01-02), Brazilian (02/01/2006) or RFC3339 dates.
func ParseBirthDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidBirthDate
}

// Age returns the number of full years between birth and now.
func Age(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// CheckRegistration applies the step-one rules in order: required fields,
// minimum age, phone shape, CPF. The first failing rule is returned.
func CheckRegistration(r Registration, now time.Time) error {
	for _, v := range []string{r.Nome, r.Sobrenome, r.DataNascimento, r.Telefone, r.CPF} {
		if strings.TrimSpace(v) == "" {
			return ErrMissingFields
		}
	}
	birth, err := ParseBirthDate(r.DataNascimento)
	if err != nil {
		return err
	}
	if Age(birth, now) < MinAge {
		return ErrUnderage
	}
	if !Phone(r.Telefone) {
		return ErrInvalidPhone
	}
	if !CPF(r.CPF) {
		return ErrInvalidCPF
	}
	return nil
}
