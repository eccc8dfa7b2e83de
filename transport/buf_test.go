package transport

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// trickleReader returns at most n bytes per Read.
type trickleReader struct {
	r io.Reader
	n int
}

func (t *trickleReader) Read(p []byte) (int, error) {
	if len(p) > t.n {
		p = p[:t.n]
	}
	return t.r.Read(p)
}

func TestChunkReader(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3, 4}, 10)
	r := NewChunkReader(&trickleReader{r: bytes.NewReader(data), n: 3}, 16)

	buf := make([]byte, 16)
	var sizes []int
	var got []byte
	for {
		n, err := r.Read(buf)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, n)
		got = append(got, buf[:n]...)
	}

	require.Equal(t, []int{16, 16, 8}, sizes)
	require.Equal(t, data, got)
}

func TestChunkReader_ShortBuffer(t *testing.T) {
	r := NewChunkReader(bytes.NewReader(nil), 16)
	_, err := r.Read(make([]byte, 8))
	require.Error(t, err)
}

func TestNewAudioChunkReader(t *testing.T) {
	r := NewAudioChunkReader(bytes.NewReader(nil), ServerSampleRate, 100*time.Millisecond)
	require.Equal(t, 4800, r.ChunkSize())
}
