package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tbourn/go-sos-backend/internal/domain"
	"github.com/tbourn/go-sos-backend/internal/realtime"
	"github.com/tbourn/go-sos-backend/internal/validate"
)

// ProfileStore reads and replaces profile documents.
type ProfileStore interface {
	ProfileSource
	SaveProfile(ctx context.Context, uid string, p domain.UserProfile) error
}

// ProfileUpdate carries the editable fields of a profile; nil fields are
// left unchanged.
type ProfileUpdate struct {
	Rua      *string `json:"rua,omitempty"`
	Bairro   *string `json:"bairro,omitempty"`
	CEP      *string `json:"cep,omitempty"`
	Cidade   *string `json:"cidade,omitempty"`
	Telefone *string `json:"telefone,omitempty"`
	Foto     *string `json:"foto,omitempty"`
}

// ProfileService reads, registers and edits user profiles.
type ProfileService struct {
	Store ProfileStore
	Now   func() time.Time
}

// Get returns the profile snapshot of userID.
func (s *ProfileService) Get(ctx context.Context, userID string) (domain.UserProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.UserProfile{}, ErrUnauthenticated
	}
	p, err := s.Store.Profile(ctx, userID)
	if errors.Is(err, realtime.ErrNotFound) {
		return p, ErrProfileNotFound
	}
	return p, err
}

// Register validates the signup data and writes the profile. The phone is
// formatted before the shape check and the CPF is stored masked.
func (s *ProfileService) Register(ctx context.Context, userID string, p domain.UserProfile) (domain.UserProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.UserProfile{}, ErrUnauthenticated
	}
	p = trimProfile(p)
	p.Telefone = validate.FormatPhone(p.Telefone)
	err := validate.CheckRegistration(validate.Registration{
		Nome:           p.Nome,
		Sobrenome:      p.Sobrenome,
		DataNascimento: p.DataNascimento,
		Telefone:       p.Telefone,
		CPF:            p.CPF,
	}, s.now())
	if err != nil {
		return domain.UserProfile{}, err
	}
	p.CPF = validate.FormatCPF(p.CPF)
	if err := s.Store.SaveProfile(ctx, userID, p); err != nil {
		return domain.UserProfile{}, err
	}
	return p, nil
}

// Update merges u into the stored profile.
func (s *ProfileService) Update(ctx context.Context, userID string, u ProfileUpdate) (domain.UserProfile, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return p, err
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&p.Rua, u.Rua)
	set(&p.Bairro, u.Bairro)
	set(&p.CEP, u.CEP)
	set(&p.Cidade, u.Cidade)
	set(&p.Foto, u.Foto)
	if u.Telefone != nil {
		tel := validate.FormatPhone(*u.Telefone)
		if !validate.Phone(tel) {
			return domain.UserProfile{}, validate.ErrInvalidPhone
		}
		p.Telefone = tel
	}
	if err := s.Store.SaveProfile(ctx, userID, p); err != nil {
		return domain.UserProfile{}, err
	}
	return p, nil
}

func (s *ProfileService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func trimProfile(p domain.UserProfile) domain.UserProfile {
	for _, f := range []*string{&p.Nome, &p.Sobrenome, &p.Email, &p.DataNascimento, &p.CPF,
		&p.Telefone, &p.Rua, &p.Bairro, &p.CEP, &p.Cidade, &p.Foto} {
		*f = strings.TrimSpace(*f)
	}
	return p
}
