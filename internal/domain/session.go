package domain

import (
	"errors"
	"fmt"
	"time"
)

// Phase is the coarse state of a recording session.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRecording Phase = "recording"
	PhaseUploading Phase = "uploading"
	PhaseUploaded  Phase = "uploaded"
	PhaseFailed    Phase = "failed"
)

// ErrInvalidTransition is returned when a session is asked to move to a
// phase that is not reachable from its current one.
var ErrInvalidTransition = errors.New("invalid session transition")

// Session is the state of one user's recording control. It is a value: every
// transition returns a new Session and leaves the receiver untouched. Fields
// are unexported so that only reachable combinations can be built (there is
// no way to be uploading and uploaded at once, or to carry a failure reason
// outside the failed phase).
type Session struct {
	phase     Phase
	progress  float64
	url       string
	reason    string
	updatedAt time.Time
}

// SessionSnapshot is the JSON view of a Session.
type SessionSnapshot struct {
	Phase     Phase     `json:"phase"`
	Progress  float64   `json:"progress"`
	URL       string    `json:"url,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns an idle session.
func NewSession() Session { return Session{phase: PhaseIdle} }

// Phase reports the current phase. The zero Session is idle.
func (s Session) Phase() Phase {
	if s.phase == "" {
		return PhaseIdle
	}
	return s.phase
}

// Progress is the upload fraction; 1 once uploaded, 0 outside uploads.
func (s Session) Progress() float64 { return s.progress }

// URL is the fetchable address of the uploaded recording (uploaded only).
func (s Session) URL() string { return s.url }

// Reason is the failure description (failed only).
func (s Session) Reason() string { return s.reason }

// Snapshot exports the session for transport.
func (s Session) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		Phase:     s.Phase(),
		Progress:  s.progress,
		URL:       s.url,
		Reason:    s.reason,
		UpdatedAt: s.updatedAt,
	}
}

// BeginRecording moves idle, uploaded or failed sessions to recording.
func (s Session) BeginRecording(at time.Time) (Session, error) {
	switch s.Phase() {
	case PhaseIdle, PhaseUploaded, PhaseFailed:
		return Session{phase: PhaseRecording, updatedAt: at}, nil
	}
	return s, s.invalid(PhaseRecording)
}

// BeginUpload moves a recording session to uploading at 0%.
func (s Session) BeginUpload(at time.Time) (Session, error) {
	if s.Phase() != PhaseRecording {
		return s, s.invalid(PhaseUploading)
	}
	return Session{phase: PhaseUploading, updatedAt: at}, nil
}

// WithProgress records upload progress. Values are clamped to [0,1] and a
// lower value than the current one is ignored.
func (s Session) WithProgress(f float64, at time.Time) (Session, error) {
	if s.Phase() != PhaseUploading {
		return s, s.invalid(PhaseUploading)
	}
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	if f < s.progress {
		return s, nil
	}
	s.progress = f
	s.updatedAt = at
	return s, nil
}

// Complete marks the upload as done at 100% with the resulting URL.
func (s Session) Complete(url string, at time.Time) (Session, error) {
	if s.Phase() != PhaseUploading {
		return s, s.invalid(PhaseUploaded)
	}
	return Session{phase: PhaseUploaded, progress: 1, url: url, updatedAt: at}, nil
}

// Fail ends a recording or uploading session with a reason.
func (s Session) Fail(reason string, at time.Time) (Session, error) {
	switch s.Phase() {
	case PhaseRecording, PhaseUploading:
		return Session{phase: PhaseFailed, reason: reason, updatedAt: at}, nil
	}
	return s, s.invalid(PhaseFailed)
}

// Reset returns to idle from any phase.
func (s Session) Reset(at time.Time) Session {
	return Session{phase: PhaseIdle, updatedAt: at}
}

func (s Session) invalid(to Phase) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Phase(), to)
}
