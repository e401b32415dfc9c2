// Package services defines the business logic of the emergency-audio
// backend: the record -> upload -> notify pipeline, location dispatch and the
// profile, contact and recording libraries around them.
//
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers.
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Pipeline errors.
var (
	// ErrUnauthenticated is returned when an operation needs a signed-in
	// identity and none was supplied.
	ErrUnauthenticated = errors.New("no authenticated user")

	// ErrUploadInProgress is returned when a new recording is started while
	// the previous one is still uploading.
	ErrUploadInProgress = errors.New("previous recording is still uploading")

	// ErrNotRecording is returned when audio is appended to or a stop is
	// requested for a session that is not recording.
	ErrNotRecording = errors.New("session is not recording")

	// ErrUploadFailed wraps blob storage failures of an upload task.
	ErrUploadFailed = errors.New("upload failed")

	// ErrProfileNotFound is returned when the user has no profile document.
	ErrProfileNotFound = errors.New("profile not found")
)

// Dispatch errors. Their messages are shown to the user as is.
var (
	// ErrNoEmergencyContact is returned when the contact list is empty or its
	// first entry has no phone number.
	ErrNoEmergencyContact = errors.New("Não há contato de emergência configurado.")

	// ErrLocationUnavailable is returned when the position read fails.
	ErrLocationUnavailable = errors.New("Não foi possível obter a localização em tempo real.")
)

// Library errors.
var (
	// ErrRecordingNotFound indicates the requested recording does not exist.
	ErrRecordingNotFound = errors.New("recording not found")

	// ErrInvalidRecordingName is returned for names with path separators.
	ErrInvalidRecordingName = errors.New("invalid recording name")

	// ErrContactExists is returned when a contact with the same id is
	// already in the list.
	ErrContactExists = errors.New("contact already in list")

	// ErrInvalidContact is returned for contacts without a name or number.
	ErrInvalidContact = errors.New("contact needs a name and a phone number")

	// ErrContactIndex is returned for an index outside the contact list.
	ErrContactIndex = errors.New("contact index out of range")
)
