package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sos-backend/internal/domain"
	"github.com/tbourn/go-sos-backend/internal/services"
)

// AddContactRequest is a contact picked on the device.
type AddContactRequest struct {
	ID           string               `json:"id"           example:"42"`
	Name         string               `json:"name"         example:"Ana"`
	PhoneNumbers []domain.PhoneNumber `json:"phoneNumbers"`
}

// ContactsResponse is the contact list after a change, with the message
// to show the user.
type ContactsResponse struct {
	Message  string                    `json:"message,omitempty" example:"Ana adicionado com sucesso"`
	Contacts []domain.EmergencyContact `json:"contacts"`
}

// ListContacts godoc
// @ID          listContacts
// @Summary     Emergency contact list
// @Description The first entry is the emergency contact. With q the list is
// @Description filtered by name or number, ignoring case and accents.
// @Tags        Contacts
// @Produce     json
// @Security    BearerAuth
// @Param       q    query     string  false  "Search term"
// @Success     200  {object}  handlers.ContactsResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /contacts [get]
func (h *Handlers) ListContacts(c *gin.Context) {
	uid, okID := userID(c)
	if !okID {
		return
	}
	list, err := h.contacts.List(c.Request.Context(), uid)
	if err != nil {
		failErr(c, err)
		return
	}
	if q, has := c.GetQuery("q"); has {
		list = services.Search(list, q)
	}
	ok(c, http.StatusOK, ContactsResponse{Contacts: nonNilContacts(list)})
}

// AddContact godoc
// @ID          addContact
// @Summary     Add a contact
// @Description Appends a contact. Duplicates (same id or number) answer 409.
// @Description Retries with the same Idempotency-Key replay the first answer.
// @Tags        Contacts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string                      false  "Key for safe retries"
// @Param       body             body    handlers.AddContactRequest  true   "Contact"
// @Success     201  {object}  handlers.ContactsResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Already in list"
// @Router      /contacts [post]
func (h *Handlers) AddContact(c *gin.Context) {
	uid, okID := userID(c)
	if !okID {
		return
	}
	ctx := c.Request.Context()
	if h.replayed(c, uid, func(string) any {
		list, _ := h.contacts.List(ctx, uid)
		return ContactsResponse{Contacts: nonNilContacts(list)}
	}) {
		return
	}

	var req AddContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	in := domain.EmergencyContact{ID: strings.TrimSpace(req.ID), Name: req.Name, PhoneNumbers: req.PhoneNumbers}
	list, err := h.contacts.Add(ctx, uid, in)
	if errors.Is(err, services.ErrContactExists) {
		fail(c, http.StatusConflict, ErrCodeContactExists, services.ContactExistsMessage(strings.TrimSpace(req.Name)))
		return
	}
	if err != nil {
		failErr(c, err)
		return
	}
	added := list[len(list)-1]
	h.remember(c, uid, added.ID, http.StatusCreated)
	ok(c, http.StatusCreated, ContactsResponse{
		Message:  services.ContactAddedMessage(added.Name),
		Contacts: list,
	})
}

// RemoveContact godoc
// @ID          removeContact
// @Summary     Remove a contact by position
// @Tags        Contacts
// @Produce     json
// @Security    BearerAuth
// @Param       index  path      int  true  "Zero-based position"  minimum(0)
// @Success     200    {object}  handlers.ContactsResponse
// @Failure     400    {object}  handlers.ErrorResponse
// @Failure     404    {object}  handlers.ErrorResponse
// @Router      /contacts/{index} [delete]
func (h *Handlers) RemoveContact(c *gin.Context) {
	uid, okID := userID(c)
	if !okID {
		return
	}
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil || idx < 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "index must be a non-negative integer")
		return
	}
	list, err := h.contacts.Remove(c.Request.Context(), uid, idx)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ContactsResponse{Contacts: nonNilContacts(list)})
}

// ClearContacts godoc
// @ID          clearContacts
// @Summary     Remove every contact
// @Tags        Contacts
// @Security    BearerAuth
// @Success     204
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /contacts [delete]
func (h *Handlers) ClearContacts(c *gin.Context) {
	uid, okID := userID(c)
	if !okID {
		return
	}
	if err := h.contacts.Clear(c.Request.Context(), uid); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

func nonNilContacts(list []domain.EmergencyContact) []domain.EmergencyContact {
	if list == nil {
		return []domain.EmergencyContact{}
	}
	return list
}
