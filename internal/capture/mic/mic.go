// Package mic captures the local microphone through miniaudio (malgo). It is
// used by the device-side CLI; the server never links it.
package mic

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-sos-backend/internal/capture"
	"github.com/tbourn/go-sos-backend/internal/domain"
)

// Config selects the capture format. Backends restricts the audio backends
// tried, in order; empty uses the platform defaults.
type Config struct {
	SampleRate uint32
	Channels   uint32
	Dir        string
	Backends   []malgo.Backend
}

// DefaultConfig is 44.1 kHz mono, spooled to the system temp dir.
func DefaultConfig() Config {
	return Config{SampleRate: 44100, Channels: 1, Dir: os.TempDir()}
}

// Device is a capture.Device recording signed 16-bit PCM and finalizing it
// to a WAV file on Stop.
type Device struct {
	cfg Config

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	dev     *malgo.Device
	pcm     *os.File
	n       int64
	werr    error
	started time.Time
}

// New returns an idle microphone device.
func New(cfg Config) *Device {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	if cfg.Dir == "" {
		cfg.Dir = os.TempDir()
	}
	return &Device{cfg: cfg}
}

// Start opens the default capture device.
func (d *Device) Start(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev != nil {
		return capture.ErrAlreadyRecording
	}

	mctx, err := malgo.InitContext(d.cfg.Backends, malgo.ContextConfig{}, func(msg string) {
		log.Debug().Str("component", "malgo").Msg(msg)
	})
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	pcm, err := os.CreateTemp(d.cfg.Dir, "mic-*.pcm")
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return err
	}

	dc := malgo.DefaultDeviceConfig(malgo.Capture)
	dc.Capture.Format = malgo.FormatS16
	dc.Capture.Channels = d.cfg.Channels
	dc.SampleRate = d.cfg.SampleRate
	dc.Alsa.NoMMap = 1

	onFrames := func(_, in []byte, _ uint32) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.pcm == nil || d.werr != nil {
			return
		}
		n, err := d.pcm.Write(in)
		d.n += int64(n)
		d.werr = err
	}

	dev, err := malgo.InitDevice(mctx.Context, dc, malgo.DeviceCallbacks{Data: onFrames})
	if err != nil {
		cleanup(mctx, pcm)
		return fmt.Errorf("init capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		cleanup(mctx, pcm)
		return fmt.Errorf("start capture device: %w", err)
	}

	d.ctx, d.dev, d.pcm, d.n, d.werr = mctx, dev, pcm, 0, nil
	d.started = time.Now().UTC()
	return nil
}

// Stop closes the device and writes the captured PCM as a WAV file.
func (d *Device) Stop(context.Context) (domain.Recording, error) {
	d.mu.Lock()
	dev := d.dev
	d.mu.Unlock()
	if dev == nil {
		return domain.Recording{}, capture.ErrNotRecording
	}
	// Stop outside the lock: the data callback takes it.
	_ = dev.Stop()
	dev.Uninit()

	d.mu.Lock()
	defer d.mu.Unlock()
	pcm, n, werr := d.pcm, d.n, d.werr
	cleanup(d.ctx, nil)
	d.ctx, d.dev, d.pcm = nil, nil, nil
	defer os.Remove(pcm.Name())
	defer pcm.Close()

	if werr != nil {
		return domain.Recording{}, fmt.Errorf("spool pcm: %w", werr)
	}
	if _, err := pcm.Seek(0, io.SeekStart); err != nil {
		return domain.Recording{}, err
	}
	out, err := os.CreateTemp(d.cfg.Dir, "rec-*.wav")
	if err != nil {
		return domain.Recording{}, err
	}
	if err := capture.WriteWAV(out, pcm, n, uint16(d.cfg.Channels), d.cfg.SampleRate, 16); err != nil {
		_ = out.Close()
		_ = os.Remove(out.Name())
		return domain.Recording{}, err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(out.Name())
		return domain.Recording{}, err
	}
	st, err := os.Stat(out.Name())
	if err != nil {
		return domain.Recording{}, err
	}
	return domain.Recording{Path: filepath.Clean(out.Name()), Ext: "wav", Size: st.Size(), CreatedAt: d.started}, nil
}

func cleanup(mctx *malgo.AllocatedContext, f *os.File) {
	if f != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}
	if mctx != nil {
		_ = mctx.Uninit()
		mctx.Free()
	}
}

// Access is a capture.Permission that grants access when the platform
// exposes at least one capture device. Desktop platforms have no separate
// permission prompt, so enumerating devices is the closest equivalent.
type Access struct {
	Backends []malgo.Backend
}

// Request enumerates capture devices.
func (p Access) Request(context.Context) (bool, error) {
	names, err := captureDevices(p.Backends)
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// CaptureDevices lists the names of the available capture devices.
func CaptureDevices() ([]string, error) { return captureDevices(nil) }

func captureDevices(backends []malgo.Backend) ([]string, error) {
	mctx, err := malgo.InitContext(backends, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}
	defer cleanup(mctx, nil)

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for i := range infos {
		names = append(names, infos[i].Name())
	}
	return names, nil
}
