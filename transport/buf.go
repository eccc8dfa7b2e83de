package transport

import (
	"fmt"
	"io"
	"time"
)

const (
	// ServerSampleRate is the PCM16 rate the realtime endpoint expects.
	ServerSampleRate = 24_000
	bytesPerSample   = 2
)

// chunkSize returns the byte size of duration worth of PCM at sampleRate.
func chunkSize(sampleRate int, duration time.Duration, bytesPerSample int, channels int) int {
	frames := int(float64(sampleRate) * duration.Seconds())
	return frames * bytesPerSample * channels
}

// ChunkReader re-slices an audio stream into fixed-size chunks. Only the
// last chunk before EOF may be shorter.
type ChunkReader struct {
	r         io.Reader
	buf       []byte
	tmp       []byte
	chunkSize int
	eof       bool
}

func NewChunkReader(r io.Reader, chunkSize int) *ChunkReader {
	return &ChunkReader{
		r:         r,
		chunkSize: chunkSize,
		buf:       make([]byte, 0, chunkSize*2),
		tmp:       make([]byte, chunkSize),
	}
}

// NewAudioChunkReader emits latency sized chunks of mono PCM16.
func NewAudioChunkReader(r io.Reader, sampleRate int, latency time.Duration) *ChunkReader {
	return NewChunkReader(r, chunkSize(sampleRate, latency, bytesPerSample, 1))
}

func (f *ChunkReader) ChunkSize() int {
	return f.chunkSize
}

func (f *ChunkReader) Read(p []byte) (int, error) {
	if len(p) < f.chunkSize {
		return 0, fmt.Errorf("buffer passed to Read must be at least %d bytes", f.chunkSize)
	}

	for len(f.buf) < f.chunkSize && !f.eof {
		n, err := f.r.Read(f.tmp)
		if n > 0 {
			f.buf = append(f.buf, f.tmp[:n]...)
		}
		if err == io.EOF {
			f.eof = true
			break
		}
		if err != nil {
			return 0, err
		}
	}

	if len(f.buf) == 0 && f.eof {
		return 0, io.EOF
	}

	n := min(f.chunkSize, len(f.buf))
	copy(p, f.buf[:n])
	f.buf = append(f.buf[:0], f.buf[n:]...)

	return n, nil
}
