package domain

import "strings"

// UserProfile is the snapshot of a user's registration data kept in the
// realtime store under users/{uid}. JSON names follow the mobile client.
type UserProfile struct {
	Nome           string `json:"nome"           mapstructure:"nome"`
	Sobrenome      string `json:"sobrenome"      mapstructure:"sobrenome"`
	Email          string `json:"email"          mapstructure:"email"`
	DataNascimento string `json:"dataNascimento" mapstructure:"dataNascimento"`
	CPF            string `json:"cpf"            mapstructure:"cpf"`
	Telefone       string `json:"telefone"       mapstructure:"telefone"`
	Rua            string `json:"rua"            mapstructure:"rua"`
	Bairro         string `json:"bairro"         mapstructure:"bairro"`
	CEP            string `json:"cep"            mapstructure:"cep"`
	Cidade         string `json:"cidade"         mapstructure:"cidade"`
	Foto           string `json:"foto,omitempty" mapstructure:"foto"`
}

// FullName joins first and last name with a single space.
func (p UserProfile) FullName() string {
	return p.Nome + " " + p.Sobrenome
}

// Address composes the human-readable address used in call records:
// street, neighborhood and city joined by ", ".
func (p UserProfile) Address() string {
	return strings.Join([]string{p.Rua, p.Bairro, p.Cidade}, ", ")
}
