// Package handlers implements the HTTP endpoints of the emergency-audio API.
//
// Handlers stay transport-thin: they bind and check input, call a service
// interface and translate the result (or a service sentinel error) into a
// response. The caller's identity is set by middleware.Auth.
package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sos-backend/internal/capture"
	"github.com/tbourn/go-sos-backend/internal/domain"
	"github.com/tbourn/go-sos-backend/internal/http/middleware"
	"github.com/tbourn/go-sos-backend/internal/services"
	"github.com/tbourn/go-sos-backend/internal/utils"
)

// SessionService drives one user's record -> upload -> notify session.
type SessionService interface {
	Snapshot(userID string) domain.SessionSnapshot
	Start(ctx context.Context, userID string, perm capture.Permission) (domain.SessionSnapshot, error)
	Append(ctx context.Context, userID string, r io.Reader) (int64, error)
	StopAsync(ctx context.Context, userID string) (domain.SessionSnapshot, error)
	StopAndProcess(ctx context.Context, userID string) (services.PipelineResult, error)
	Reset(userID string) (domain.SessionSnapshot, error)
	Subscribe(userID string) (<-chan domain.SessionSnapshot, func())
}

// RecordingService is the user's library of uploaded recordings.
type RecordingService interface {
	List(ctx context.Context, userID string) ([]domain.RecordingObject, error)
	URL(ctx context.Context, userID, name string) (string, error)
	Delete(ctx context.Context, userID, name string) error
}

// CallService reads the call history.
type CallService interface {
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.CallRecord, int64, error)
	Get(ctx context.Context, userID, id string) (*domain.CallRecord, error)
	Stats(ctx context.Context, userID string) (count int64, newest int64, err error)
}

// ProfileService reads and edits the user's profile.
type ProfileService interface {
	Get(ctx context.Context, userID string) (domain.UserProfile, error)
	Register(ctx context.Context, userID string, p domain.UserProfile) (domain.UserProfile, error)
	Update(ctx context.Context, userID string, u services.ProfileUpdate) (domain.UserProfile, error)
}

// ContactService manages the emergency contact list.
type ContactService interface {
	List(ctx context.Context, userID string) ([]domain.EmergencyContact, error)
	Add(ctx context.Context, userID string, c domain.EmergencyContact) ([]domain.EmergencyContact, error)
	Remove(ctx context.Context, userID string, index int) ([]domain.EmergencyContact, error)
	Clear(ctx context.Context, userID string) error
}

// DispatchService sends the user's position to the emergency contact.
type DispatchService interface {
	Dispatch(ctx context.Context, userID string, loc capture.Locator) (services.Dispatch, error)
}

// IdempotencyStore remembers completed unsafe requests so retries with the
// same Idempotency-Key are answered without repeating side effects.
type IdempotencyStore interface {
	Get(ctx context.Context, userID, scope, key string, now time.Time) (*domain.Idempotency, error)
	Put(ctx context.Context, userID, scope, key, resourceID string, status int) error
}

// Deps are the services behind the endpoints. Nil Idempotency disables
// replay handling.
type Deps struct {
	Sessions    SessionService
	Recordings  RecordingService
	Calls       CallService
	Profiles    ProfileService
	Contacts    ContactService
	Dispatch    DispatchService
	Idempotency IdempotencyStore
	// WSOrigins limits websocket origins; empty allows any.
	WSOrigins []string
}

// Handlers groups the endpoints.
type Handlers struct {
	sessions   SessionService
	recordings RecordingService
	calls      CallService
	profiles   ProfileService
	contacts   ContactService
	dispatch   DispatchService
	idem       IdempotencyStore
	wsOrigins  []string
}

// New returns Handlers bound to d.
func New(d Deps) *Handlers {
	return &Handlers{
		sessions:   d.Sessions,
		recordings: d.Recordings,
		calls:      d.Calls,
		profiles:   d.Profiles,
		contacts:   d.Contacts,
		dispatch:   d.Dispatch,
		idem:       d.Idempotency,
		wsOrigins:  d.WSOrigins,
	}
}

// userID returns the authenticated identity. Routes are mounted behind
// middleware.Auth, so a miss is answered with 401.
func userID(c *gin.Context) (string, bool) {
	uid, ok := middleware.UserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
	}
	return uid, ok
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	p := utils.Page{Number: page, Size: pageSize}
	return Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: p.Pages(total), HasNext: p.HasNext(total)}
}

// clampPagination reads page and page_size, bounded to [1, 100].
func clampPagination(c *gin.Context) (page, pageSize int) {
	p := utils.ParsePage(c.Query("page"), c.Query("page_size"), 20, 100)
	return p.Number, p.Size
}

// replayed answers a retried request from the idempotency store. It reports
// whether a response was written.
func (h *Handlers) replayed(c *gin.Context, uid string, body func(resourceID string) any) bool {
	if h.idem == nil || !middleware.IsReplay(c) {
		return false
	}
	key, _ := middleware.GetIdempotencyKey(c)
	rec, err := h.idem.Get(c.Request.Context(), uid, middleware.RouteScope(c), key, time.Now().UTC())
	if err != nil || rec == nil {
		return false
	}
	c.Header("Idempotency-Replayed", "true")
	ok(c, rec.Status, body(rec.ResourceID))
	return true
}

// remember stores the outcome of a completed unsafe request. Failures are
// logged; the request already succeeded.
func (h *Handlers) remember(c *gin.Context, uid, resourceID string, status int) {
	key, has := middleware.GetIdempotencyKey(c)
	if h.idem == nil || !has {
		return
	}
	if err := h.idem.Put(c.Request.Context(), uid, middleware.RouteScope(c), key, resourceID, status); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
	}
}
