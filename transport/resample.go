package transport

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"

	"github.com/faiface/beep"
)

type PCMStreamer struct {
	data []int16
	pos  int
}

func NewPCMStreamer(b []byte) *PCMStreamer {
	samples := make([]int16, len(b)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return &PCMStreamer{data: samples}
}

func (s *PCMStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if s.pos >= len(s.data) {
			return i, false
		}
		val := float64(s.data[s.pos]) / 32768.0
		samples[i][0] = val
		samples[i][1] = val
		s.pos++
	}
	return len(samples), true
}

func (s *PCMStreamer) Err() error { return nil }

// ResamplePCM converts mono little-endian PCM16 from fromRate to toRate.
func ResamplePCM(pcmData []byte, fromRate, toRate int) ([]byte, error) {
	if fromRate == toRate {
		return pcmData, nil
	}

	streamer := NewPCMStreamer(pcmData)
	resampler := beep.Resample(3, beep.SampleRate(fromRate), beep.SampleRate(toRate), streamer)

	buf := new(bytes.Buffer)
	sample := make([][2]float64, 1024)

	for {
		n, ok := resampler.Stream(sample)
		for i := 0; i < n; i++ {
			mono := (sample[i][0] + sample[i][1]) / 2.0
			mono = max(-1, min(1, mono))
			if err := binary.Write(buf, binary.LittleEndian, int16(mono*32767)); err != nil {
				return nil, err
			}
		}
		if !ok {
			break
		}
	}

	return buf.Bytes(), nil
}

// ResampleWriter resamples mono PCM16 written to it and forwards the result
// to Sink. A trailing odd byte is held back until the next write.
type ResampleWriter struct {
	Sink     io.Writer
	FromRate int
	ToRate   int

	mu    sync.Mutex
	carry []byte
}

func (w *ResampleWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data := p
	if len(w.carry) > 0 {
		data = append(w.carry, p...)
		w.carry = nil
	}
	if len(data)%2 == 1 {
		w.carry = []byte{data[len(data)-1]}
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return len(p), nil
	}

	out, err := ResamplePCM(data, w.FromRate, w.ToRate)
	if err != nil {
		return 0, err
	}
	if _, err := w.Sink.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}
