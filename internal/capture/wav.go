package capture

import (
	"fmt"
	"io"

	"github.com/youpy/go-wav"
)

// WriteWAV wraps raw little-endian PCM from pcm (pcmBytes long) in a WAV
// container written to dst.
func WriteWAV(dst io.Writer, pcm io.Reader, pcmBytes int64, channels uint16, sampleRate uint32, bitsPerSample uint16) error {
	block := int64(channels) * int64(bitsPerSample) / 8
	if block <= 0 {
		return fmt.Errorf("wav: invalid format %d ch x %d bits", channels, bitsPerSample)
	}
	frames := pcmBytes / block
	w := wav.NewWriter(dst, uint32(frames), channels, sampleRate, bitsPerSample)
	if _, err := io.CopyN(w, pcm, frames*block); err != nil {
		return fmt.Errorf("wav: copy samples: %w", err)
	}
	return nil
}
