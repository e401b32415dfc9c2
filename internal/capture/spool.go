package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tbourn/go-sos-backend/internal/domain"
)

// ErrTooLarge is returned by SpoolDevice.Write once MaxBytes would be exceeded.
var ErrTooLarge = errors.New("recording exceeds size limit")

// SpoolPattern matches the files a SpoolDevice creates in its directory.
const SpoolPattern = "rec-*"

// SpoolDevice is a Device fed by a remote client: encoded audio chunks are
// appended with Write while recording and the spool file becomes the
// Recording on Stop.
type SpoolDevice struct {
	Dir      string
	Ext      string
	MaxBytes int64
	Now      func() time.Time

	mu      sync.Mutex
	f       *os.File
	n       int64
	started time.Time
}

// NewSpoolDevice returns a device spooling into dir. maxBytes <= 0 disables
// the size cap.
func NewSpoolDevice(dir, ext string, maxBytes int64) *SpoolDevice {
	return &SpoolDevice{Dir: dir, Ext: strings.TrimPrefix(ext, "."), MaxBytes: maxBytes, Now: time.Now}
}

// Start opens a fresh spool file.
func (s *SpoolDevice) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f != nil {
		return ErrAlreadyRecording
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(s.Dir, SpoolPattern+"."+s.Ext)
	if err != nil {
		return fmt.Errorf("create spool: %w", err)
	}
	s.f, s.n, s.started = f, 0, s.Now().UTC()
	return nil
}

// Write appends p to the spool file.
func (s *SpoolDevice) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return 0, ErrNotRecording
	}
	if s.MaxBytes > 0 && s.n+int64(len(p)) > s.MaxBytes {
		return 0, ErrTooLarge
	}
	n, err := s.f.Write(p)
	s.n += int64(n)
	return n, err
}

// Path returns the open spool file, or "" when not recording.
func (s *SpoolDevice) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ""
	}
	return s.f.Name()
}

// Size returns the number of bytes spooled so far.
func (s *SpoolDevice) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Stop closes the spool file and returns it as a Recording.
func (s *SpoolDevice) Stop(context.Context) (domain.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return domain.Recording{}, ErrNotRecording
	}
	f := s.f
	s.f = nil
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return domain.Recording{}, err
	}
	return domain.Recording{Path: f.Name(), Ext: s.Ext, Size: s.n, CreatedAt: s.started}, nil
}

// Abort closes and removes an unfinished spool file.
func (s *SpoolDevice) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return
	}
	name := s.f.Name()
	_ = s.f.Close()
	_ = os.Remove(name)
	s.f = nil
}

// PurgeSpool removes spool files in dir older than maxAge and returns how
// many were deleted. Files listed in held belong to a live session and are
// kept whatever their age.
func PurgeSpool(dir string, maxAge time.Duration, now time.Time, held []string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, SpoolPattern))
	if err != nil {
		return 0, err
	}
	keep := make(map[string]struct{}, len(held))
	for _, h := range held {
		if abs, err := filepath.Abs(h); err == nil {
			keep[abs] = struct{}{}
		}
	}
	n := 0
	for _, m := range matches {
		if abs, err := filepath.Abs(m); err == nil {
			if _, ok := keep[abs]; ok {
				continue
			}
		}
		st, err := os.Stat(m)
		if err != nil || st.IsDir() {
			continue
		}
		if now.Sub(st.ModTime()) < maxAge {
			continue
		}
		if err := os.Remove(m); err == nil {
			n++
		}
	}
	return n, nil
}
