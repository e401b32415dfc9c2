package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sos-backend/internal/capture"
	"github.com/tbourn/go-sos-backend/internal/services"
	"github.com/tbourn/go-sos-backend/internal/validate"
)

// Stable error codes. Clients branch on these, never on messages.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	ErrCodePermissionDenied    = "permission_denied"
	ErrCodeAlreadyRecording    = "already_recording"
	ErrCodeNotRecording        = "not_recording"
	ErrCodeUploadInProgress    = "upload_in_progress"
	ErrCodeRecordingTooLarge   = "recording_too_large"
	ErrCodeUploadFailed        = "upload_failed"
	ErrCodeProfileNotFound     = "profile_not_found"
	ErrCodeInvalidRegistration = "invalid_registration"
	ErrCodeRecordingNotFound   = "recording_not_found"
	ErrCodeContactExists       = "contact_exists"
	ErrCodeInvalidContact      = "invalid_contact"
	ErrCodeNoEmergencyContact  = "no_emergency_contact"
	ErrCodeLocationUnavailable = "location_unavailable"
	ErrCodeTimeout             = "timeout"
)

// apiError is the HTTP rendition of a service error.
type apiError struct {
	status int
	code   string
	msg    string
}

// errorTable maps service sentinels to responses, first match wins. A nil
// msg means err.Error() is safe and meant for the user.
var errorTable = []struct {
	target error
	apiError
}{
	{services.ErrUnauthenticated, apiError{http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required"}},
	{capture.ErrPermissionDenied, apiError{http.StatusForbidden, ErrCodePermissionDenied, capture.PermissionDeniedNotice}},
	{capture.ErrAlreadyRecording, apiError{http.StatusConflict, ErrCodeAlreadyRecording, "a recording is already running"}},
	{services.ErrUploadInProgress, apiError{http.StatusConflict, ErrCodeUploadInProgress, "the previous recording is still uploading"}},
	{services.ErrNotRecording, apiError{http.StatusConflict, ErrCodeNotRecording, "no recording is running"}},
	{capture.ErrTooLarge, apiError{http.StatusRequestEntityTooLarge, ErrCodeRecordingTooLarge, "recording exceeds the size limit"}},
	{services.ErrUploadFailed, apiError{http.StatusBadGateway, ErrCodeUploadFailed, "upload failed"}},
	{services.ErrProfileNotFound, apiError{http.StatusNotFound, ErrCodeProfileNotFound, "profile not found"}},
	{services.ErrRecordingNotFound, apiError{http.StatusNotFound, ErrCodeRecordingNotFound, "recording not found"}},
	{services.ErrInvalidRecordingName, apiError{http.StatusBadRequest, ErrCodeBadRequest, "invalid recording name"}},
	{services.ErrContactExists, apiError{http.StatusConflict, ErrCodeContactExists, ""}},
	{services.ErrInvalidContact, apiError{http.StatusBadRequest, ErrCodeInvalidContact, "contact needs a name and a phone number"}},
	{services.ErrContactIndex, apiError{http.StatusNotFound, ErrCodeNotFound, "contact not found"}},
	{services.ErrNoEmergencyContact, apiError{http.StatusUnprocessableEntity, ErrCodeNoEmergencyContact, ""}},
	{services.ErrLocationUnavailable, apiError{http.StatusUnprocessableEntity, ErrCodeLocationUnavailable, services.ErrLocationUnavailable.Error()}},
	{validate.ErrMissingFields, apiError{http.StatusUnprocessableEntity, ErrCodeInvalidRegistration, ""}},
	{validate.ErrInvalidBirthDate, apiError{http.StatusUnprocessableEntity, ErrCodeInvalidRegistration, ""}},
	{validate.ErrUnderage, apiError{http.StatusUnprocessableEntity, ErrCodeInvalidRegistration, ""}},
	{validate.ErrInvalidPhone, apiError{http.StatusUnprocessableEntity, ErrCodeInvalidRegistration, ""}},
	{validate.ErrInvalidCPF, apiError{http.StatusUnprocessableEntity, ErrCodeInvalidRegistration, ""}},
	{context.DeadlineExceeded, apiError{http.StatusGatewayTimeout, ErrCodeTimeout, "request timed out"}},
}

// failErr renders err through errorTable, falling back to a logged 500.
func failErr(c *gin.Context, err error) {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			msg := e.msg
			if msg == "" {
				msg = e.target.Error()
			}
			fail(c, e.status, e.code, msg)
			return
		}
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeRecordingTooLarge, "request body exceeds the size limit")
		return
	}
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
}
