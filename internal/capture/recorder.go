package capture

import (
	"context"
	"errors"
	"sync"

	"github.com/tbourn/go-sos-backend/internal/domain"
)

var (
	// ErrAlreadyRecording is returned by Start while a capture is running.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNotRecording is returned by Stop when nothing was started.
	ErrNotRecording = errors.New("not recording")
)

// Device captures audio into a local file between Start and Stop.
type Device interface {
	Start(ctx context.Context) error
	// Stop finalizes the capture and returns the local file.
	Stop(ctx context.Context) (domain.Recording, error)
}

// Recorder guards a Device with the idle -> recording -> idle cycle. Start
// goes through the Gate first; a refusal never reaches the device.
type Recorder struct {
	Gate   Gate
	Device Device

	mu        sync.Mutex
	recording bool
}

// NewRecorder returns an idle recorder.
func NewRecorder(gate Gate, dev Device) *Recorder {
	return &Recorder{Gate: gate, Device: dev}
}

// Start requests permission and starts the device.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return ErrAlreadyRecording
	}
	if err := r.Gate.Request(ctx); err != nil {
		return err
	}
	if err := r.Device.Start(ctx); err != nil {
		return err
	}
	r.recording = true
	return nil
}

// Stop finalizes the capture. The recorder is idle afterwards even when the
// device fails to finalize.
func (r *Recorder) Stop(ctx context.Context) (domain.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return domain.Recording{}, ErrNotRecording
	}
	r.recording = false
	return r.Device.Stop(ctx)
}

// Recording reports whether a capture is running.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}
