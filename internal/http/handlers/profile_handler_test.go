package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/tbourn/go-sos-backend/internal/domain"
	"github.com/tbourn/go-sos-backend/internal/services"
	"github.com/tbourn/go-sos-backend/internal/validate"
)

func TestGetProfile(t *testing.T) {
	profiles := stubProfiles{get: func(_ context.Context, uid string) (domain.UserProfile, error) {
		if uid == "nobody" {
			return domain.UserProfile{}, services.ErrProfileNotFound
		}
		return domain.UserProfile{Nome: "Maria", Sobrenome: "Silva"}, nil
	}}
	r := newTestRouter(t, Deps{Profiles: profiles})

	w := do(r, http.MethodGet, "/profile", nil)
	if got := decode[domain.UserProfile](t, w); w.Code != http.StatusOK || got.FullName() != "Maria Silva" {
		t.Fatalf("status=%d body=%+v", w.Code, got)
	}
	w = do(r, http.MethodGet, "/profile", nil, withHeader("X-Test-User", "nobody"))
	if w.Code != http.StatusNotFound || errCode(t, w) != ErrCodeProfileNotFound {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestRegisterProfile(t *testing.T) {
	var got domain.UserProfile
	profiles := stubProfiles{register: func(_ context.Context, _ string, p domain.UserProfile) (domain.UserProfile, error) {
		got = p
		if p.CPF == "111.111.111-11" {
			return domain.UserProfile{}, validate.ErrInvalidCPF
		}
		p.CPF = "529.982.247-25"
		return p, nil
	}}
	r := newTestRouter(t, Deps{Profiles: profiles})

	req := RegisterProfileRequest{
		Nome: "Maria", Sobrenome: "Silva", DataNascimento: "21/04/1990",
		CPF: "52998224725", Telefone: "11987654321", Rua: "Rua A", Bairro: "Centro", Cidade: "São Paulo",
	}
	w := do(r, http.MethodPost, "/profile", req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got.Nome != "Maria" || got.Cidade != "São Paulo" || got.DataNascimento != "21/04/1990" {
		t.Fatalf("request not forwarded: %+v", got)
	}
	if p := decode[domain.UserProfile](t, w); p.CPF != "529.982.247-25" {
		t.Fatalf("cpf=%q", p.CPF)
	}

	req.CPF = "111.111.111-11"
	w = do(r, http.MethodPost, "/profile", req)
	er := decode[ErrorResponse](t, w)
	if w.Code != http.StatusUnprocessableEntity || er.Code != ErrCodeInvalidRegistration || er.Message != validate.ErrInvalidCPF.Error() {
		t.Fatalf("status=%d body=%+v", w.Code, er)
	}

	if w := do(r, http.MethodPost, "/profile", "[]"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status=%d", w.Code)
	}
}

func TestUpdateProfile(t *testing.T) {
	if err := validate.RegisterBindings(); err != nil {
		t.Fatalf("bindings: %v", err)
	}
	var got services.ProfileUpdate
	calls := 0
	profiles := stubProfiles{update: func(_ context.Context, _ string, u services.ProfileUpdate) (domain.UserProfile, error) {
		calls++
		got = u
		return domain.UserProfile{Nome: "Maria", Rua: *u.Rua}, nil
	}}
	r := newTestRouter(t, Deps{Profiles: profiles})

	w := do(r, http.MethodPatch, "/profile", map[string]any{"rua": "Rua B", "telefone": "(11) 98765-4321"})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got.Rua == nil || *got.Rua != "Rua B" || got.Cidade != nil || got.Telefone == nil {
		t.Fatalf("unexpected update %+v", got)
	}

	w = do(r, http.MethodPatch, "/profile", map[string]any{"rua": "Rua C", "telefone": "123"})
	if w.Code != http.StatusUnprocessableEntity || errCode(t, w) != ErrCodeInvalidRegistration {
		t.Fatalf("bad phone: status=%d body=%s", w.Code, w.Body.String())
	}
	if calls != 1 {
		t.Fatalf("service must not run on invalid input, calls=%d", calls)
	}
}
