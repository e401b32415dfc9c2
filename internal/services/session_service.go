// Package services – SessionService
//
// SessionService owns one recording session per user and runs the pipeline
// gate -> record -> upload -> notify as explicit sequential stages:
//
//	Start    permission gate, then the capture device
//	Stop     finalize capture            -> domain.Recording
//	Process  upload with progress        -> domain.UploadTask
//	         write the call record       -> domain.CallRecord
//
// Each stage has one error boundary. A failed stage moves the session to
// failed(reason); a failed notify leaves it uploaded because the audio is
// already stored. A new Start while the previous upload is still running is
// rejected with ErrUploadInProgress.
package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-sos-backend/internal/capture"
	"github.com/tbourn/go-sos-backend/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Uploader is the upload stage.
type Uploader interface {
	Upload(ctx context.Context, userID string, rec domain.Recording, onProgress ProgressFunc) (domain.UploadTask, error)
}

// CallWriter is the notify stage.
type CallWriter interface {
	Notify(ctx context.Context, userID string, task domain.UploadTask, at time.Time) (*domain.CallRecord, error)
}

// DeviceFactory returns a fresh capture device for userID.
type DeviceFactory func(userID string) capture.Device

// PipelineResult carries the typed output of the stages that ran.
type PipelineResult struct {
	Recording domain.Recording
	Task      domain.UploadTask
	Call      *domain.CallRecord
}

// SessionService coordinates recording sessions.
type SessionService struct {
	Uploader  Uploader
	Calls     CallWriter
	NewDevice DeviceFactory
	// Notices receives user-facing messages such as the permission notice.
	Notices capture.Notifier
	Log     zerolog.Logger
	Now     func() time.Time

	mu    sync.Mutex
	users map[string]*userSession
	wg    sync.WaitGroup
}

type userSession struct {
	mu      sync.Mutex
	state   domain.Session
	rec     *capture.Recorder
	dev     capture.Device
	pending string // local file of the recording being uploaded
	subs    map[int]chan domain.SessionSnapshot
	nextSub int
}

// NewSessionService wires the pipeline stages.
func NewSessionService(up Uploader, calls CallWriter, newDevice DeviceFactory, log zerolog.Logger) *SessionService {
	return &SessionService{Uploader: up, Calls: calls, NewDevice: newDevice, Log: log, Now: time.Now}
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SessionService) user(userID string) *userSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]*userSession)
	}
	us, ok := s.users[userID]
	if !ok {
		us = &userSession{state: domain.NewSession(), subs: make(map[int]chan domain.SessionSnapshot)}
		s.users[userID] = us
	}
	return us
}

// Snapshot returns the current session of userID.
func (s *SessionService) Snapshot(userID string) domain.SessionSnapshot {
	us := s.user(userID)
	us.mu.Lock()
	defer us.mu.Unlock()
	return us.state.Snapshot()
}

// Start opens the permission gate and starts capturing. A denied permission
// leaves the session untouched and never reaches the device.
func (s *SessionService) Start(ctx context.Context, userID string, perm capture.Permission) (domain.SessionSnapshot, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.SessionSnapshot{}, ErrUnauthenticated
	}
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Start", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	us := s.user(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	switch us.state.Phase() {
	case domain.PhaseUploading:
		return us.state.Snapshot(), ErrUploadInProgress
	case domain.PhaseRecording:
		return us.state.Snapshot(), capture.ErrAlreadyRecording
	}

	dev := s.NewDevice(userID)
	rec := capture.NewRecorder(capture.Gate{Permission: perm, Notifier: s.Notices}, dev)
	if err := rec.Start(ctx); err != nil {
		if !errors.Is(err, capture.ErrPermissionDenied) {
			s.Log.Error().Err(err).Str("user_id", userID).Msg("recorder start failed")
		}
		return us.state.Snapshot(), err
	}
	next, err := us.state.BeginRecording(s.now())
	if err != nil {
		return us.state.Snapshot(), err
	}
	us.rec, us.dev = rec, dev
	s.set(us, next)
	return next.Snapshot(), nil
}

// Append streams encoded audio into the running capture. It only works for
// devices fed by the caller (capture.SpoolDevice).
func (s *SessionService) Append(ctx context.Context, userID string, r io.Reader) (int64, error) {
	us := s.user(userID)
	us.mu.Lock()
	w, ok := us.dev.(io.Writer)
	recording := us.state.Phase() == domain.PhaseRecording
	us.mu.Unlock()
	if !recording || !ok {
		return 0, ErrNotRecording
	}
	n, err := io.Copy(w, readerCtx{ctx: ctx, r: r})
	if errors.Is(err, capture.ErrNotRecording) {
		return n, ErrNotRecording
	}
	return n, err
}

// Stop finalizes the capture and moves the session to uploading(0).
func (s *SessionService) Stop(ctx context.Context, userID string) (domain.Recording, error) {
	us := s.user(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	if us.state.Phase() != domain.PhaseRecording || us.rec == nil {
		return domain.Recording{}, ErrNotRecording
	}
	rec, err := us.rec.Stop(ctx)
	us.rec, us.dev = nil, nil
	if err != nil {
		s.Log.Error().Err(err).Str("user_id", userID).Msg("recorder stop failed")
		if failed, ferr := us.state.Fail(err.Error(), s.now()); ferr == nil {
			s.set(us, failed)
		}
		return domain.Recording{}, err
	}
	next, err := us.state.BeginUpload(s.now())
	if err != nil {
		return domain.Recording{}, err
	}
	us.pending = rec.Path
	s.set(us, next)
	return rec, nil
}

// Process runs the upload and notify stages for a stopped recording.
func (s *SessionService) Process(ctx context.Context, userID string, rec domain.Recording) (PipelineResult, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Process", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	us := s.user(userID)
	res := PipelineResult{Recording: rec}

	task, err := s.Uploader.Upload(ctx, userID, rec, func(f float64) {
		us.mu.Lock()
		defer us.mu.Unlock()
		if next, perr := us.state.WithProgress(f, s.now()); perr == nil {
			s.set(us, next)
		}
	})
	res.Task = task
	us.mu.Lock()
	if us.pending == rec.Path {
		us.pending = ""
	}
	if err != nil {
		if failed, ferr := us.state.Fail(err.Error(), s.now()); ferr == nil {
			s.set(us, failed)
		}
		us.mu.Unlock()
		return res, err
	}
	if done, cerr := us.state.Complete(task.URL, s.now()); cerr == nil {
		s.set(us, done)
	}
	us.mu.Unlock()

	call, err := s.Calls.Notify(ctx, userID, task, s.now())
	if err != nil {
		s.Log.Error().Err(err).Str("user_id", userID).Str("key", task.Key).Msg("post-upload notify failed")
		return res, err
	}
	res.Call = call
	return res, nil
}

// StopAndProcess runs Stop then Process in the calling goroutine.
func (s *SessionService) StopAndProcess(ctx context.Context, userID string) (PipelineResult, error) {
	rec, err := s.Stop(ctx, userID)
	if err != nil {
		return PipelineResult{}, err
	}
	return s.Process(ctx, userID, rec)
}

// StopAsync stops the capture and runs Process in the background. The
// pipeline outlives ctx's cancellation; progress is observed through
// Snapshot or Subscribe.
func (s *SessionService) StopAsync(ctx context.Context, userID string) (domain.SessionSnapshot, error) {
	rec, err := s.Stop(ctx, userID)
	if err != nil {
		return s.Snapshot(userID), err
	}
	snap := s.Snapshot(userID)
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.Process(bg, userID, rec)
	}()
	return snap, nil
}

// HeldFiles lists the local files live sessions still need: open spool
// files of running captures and recordings stopped but not yet uploaded.
func (s *SessionService) HeldFiles() []string {
	s.mu.Lock()
	users := make([]*userSession, 0, len(s.users))
	for _, us := range s.users {
		users = append(users, us)
	}
	s.mu.Unlock()

	var out []string
	for _, us := range users {
		us.mu.Lock()
		if p, ok := us.dev.(interface{ Path() string }); ok {
			if name := p.Path(); name != "" {
				out = append(out, name)
			}
		}
		if us.pending != "" {
			out = append(out, us.pending)
		}
		us.mu.Unlock()
	}
	return out
}

// Wait blocks until every background pipeline has finished.
func (s *SessionService) Wait() { s.wg.Wait() }

// Reset returns a settled session (uploaded or failed) to idle.
func (s *SessionService) Reset(userID string) (domain.SessionSnapshot, error) {
	us := s.user(userID)
	us.mu.Lock()
	defer us.mu.Unlock()
	switch us.state.Phase() {
	case domain.PhaseRecording:
		return us.state.Snapshot(), capture.ErrAlreadyRecording
	case domain.PhaseUploading:
		return us.state.Snapshot(), ErrUploadInProgress
	}
	next := us.state.Reset(s.now())
	s.set(us, next)
	return next.Snapshot(), nil
}

// Subscribe returns a channel of snapshots for userID, starting with the
// current one, and a cancel func that closes it. Slow readers only miss
// intermediate snapshots; the latest one is always delivered.
func (s *SessionService) Subscribe(userID string) (<-chan domain.SessionSnapshot, func()) {
	us := s.user(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	ch := make(chan domain.SessionSnapshot, 8)
	id := us.nextSub
	us.nextSub++
	us.subs[id] = ch
	ch <- us.state.Snapshot()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			us.mu.Lock()
			defer us.mu.Unlock()
			delete(us.subs, id)
			close(ch)
		})
	}
}

// set stores next and fans it out. us.mu must be held.
func (s *SessionService) set(us *userSession, next domain.Session) {
	us.state = next
	snap := next.Snapshot()
	for _, ch := range us.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// readerCtx stops a copy once ctx is done.
type readerCtx struct {
	ctx context.Context
	r   io.Reader
}

func (r readerCtx) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
