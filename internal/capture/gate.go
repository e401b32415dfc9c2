// Package capture owns the device side of a recording session: the
// permission gate that must pass before capture starts, the recorder state
// machine and the devices that turn captured audio into a local file.
package capture

import (
	"context"
	"errors"
	"strings"
)

// PermissionDeniedNotice is shown to the user when microphone access is refused.
const PermissionDeniedNotice = "Por favor, conceda permissão para acessar a gravação de áudio para usar essa funcionalidade."

// ErrPermissionDenied is returned by Gate.Request when access was refused.
var ErrPermissionDenied = errors.New("audio capture permission denied")

// Permission asks the platform for audio-capture access.
type Permission interface {
	Request(ctx context.Context) (granted bool, err error)
}

// Notifier surfaces a user-facing message.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, message string)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, message string) { f(ctx, message) }

// Gate blocks recording until Permission grants access. A refusal is
// reported once through Notifier; re-requesting is up to the caller.
type Gate struct {
	Permission Permission
	Notifier   Notifier
}

// Request returns nil when capture may start. A platform error counts as a
// refusal and is returned wrapped in ErrPermissionDenied.
func (g Gate) Request(ctx context.Context) error {
	if g.Permission == nil {
		return g.deny(ctx, nil)
	}
	ok, err := g.Permission.Request(ctx)
	if err != nil || !ok {
		return g.deny(ctx, err)
	}
	return nil
}

func (g Gate) deny(ctx context.Context, cause error) error {
	if g.Notifier != nil {
		g.Notifier.Notify(ctx, PermissionDeniedNotice)
	}
	if cause != nil {
		return errors.Join(ErrPermissionDenied, cause)
	}
	return ErrPermissionDenied
}

// Static is a fixed answer.
type Static bool

// Request returns the fixed answer.
func (s Static) Request(context.Context) (bool, error) { return bool(s), nil }

// Reported is the status a remote client reports for its own microphone
// permission ("granted", "denied", "undetermined").
type Reported string

// Request grants only an explicit "granted".
func (r Reported) Request(context.Context) (bool, error) {
	return strings.EqualFold(strings.TrimSpace(string(r)), "granted"), nil
}
