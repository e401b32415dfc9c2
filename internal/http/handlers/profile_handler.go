package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/tbourn/go-sos-backend/internal/domain"
	"github.com/tbourn/go-sos-backend/internal/services"
	"github.com/tbourn/go-sos-backend/internal/validate"
)

// RegisterProfileRequest is the first signup step. Rules are checked in
// order by the service so the first failing one is reported.
type RegisterProfileRequest struct {
	Nome           string `json:"nome"           example:"Maria"`
	Sobrenome      string `json:"sobrenome"      example:"Silva"`
	Email          string `json:"email"          example:"maria@example.com"`
	DataNascimento string `json:"dataNascimento" example:"21/04/1990"`
	CPF            string `json:"cpf"            example:"529.982.247-25"`
	Telefone       string `json:"telefone"       example:"(11) 98765-4321"`
	Rua            string `json:"rua"            example:"Rua das Flores, 10"`
	Bairro         string `json:"bairro"         example:"Centro"`
	CEP            string `json:"cep"            example:"01001-000"`
	Cidade         string `json:"cidade"         example:"São Paulo"`
}

// UpdateProfileRequest carries the editable fields; absent fields are kept.
type UpdateProfileRequest struct {
	Rua      *string `json:"rua"`
	Bairro   *string `json:"bairro"`
	CEP      *string `json:"cep"`
	Cidade   *string `json:"cidade"`
	Telefone *string `json:"telefone" binding:"omitempty,br_phone" example:"(11) 98765-4321"`
	Foto     *string `json:"foto"`
}

func (r RegisterProfileRequest) profile() domain.UserProfile {
	return domain.UserProfile{
		Nome:           r.Nome,
		Sobrenome:      r.Sobrenome,
		Email:          r.Email,
		DataNascimento: r.DataNascimento,
		CPF:            r.CPF,
		Telefone:       r.Telefone,
		Rua:            r.Rua,
		Bairro:         r.Bairro,
		CEP:            r.CEP,
		Cidade:         r.Cidade,
	}
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Profile snapshot
// @Tags        Profile
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.UserProfile
// @Failure     404  {object}  handlers.ErrorResponse  "Profile not found"
// @Router      /profile [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	uid, okID := userID(c)
	if !okID {
		return
	}
	p, err := h.profiles.Get(c.Request.Context(), uid)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// RegisterProfile godoc
// @ID          registerProfile
// @Summary     Register profile
// @Description Checks required fields, age (14+), phone and CPF, then stores
// @Description the profile with the CPF masked.
// @Tags        Profile
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.RegisterProfileRequest  true  "Signup data"
// @Success     201   {object}  domain.UserProfile
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     422   {object}  handlers.ErrorResponse  "Validation failed"
// @Router      /profile [post]
func (h *Handlers) RegisterProfile(c *gin.Context) {
	uid, okID := userID(c)
	if !okID {
		return
	}
	var req RegisterProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p, err := h.profiles.Register(c.Request.Context(), uid, req.profile())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Edit address, phone or photo
// @Tags        Profile
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.UpdateProfileRequest  true  "Fields to change"
// @Success     200   {object}  domain.UserProfile
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     404   {object}  handlers.ErrorResponse  "Profile not found"
// @Failure     422   {object}  handlers.ErrorResponse  "Invalid phone"
// @Router      /profile [patch]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	uid, okID := userID(c)
	if !okID {
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			failErr(c, validate.ErrInvalidPhone)
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p, err := h.profiles.Update(c.Request.Context(), uid, services.ProfileUpdate(req))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}
