package scene

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bwerrors "github.com/matzehuels/blockworld/pkg/errors"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

// wavBytes returns a silent 16-bit mono PCM file.
func wavBytes(rate, samples int) []byte {
	var b bytes.Buffer
	le := binary.LittleEndian
	dataSize := samples * 2

	b.WriteString("RIFF")
	binary.Write(&b, le, uint32(36+dataSize))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, le, uint32(16))
	binary.Write(&b, le, uint16(1)) // PCM
	binary.Write(&b, le, uint16(1)) // mono
	binary.Write(&b, le, uint32(rate))
	binary.Write(&b, le, uint32(rate*2))
	binary.Write(&b, le, uint16(2))
	binary.Write(&b, le, uint16(16))
	b.WriteString("data")
	binary.Write(&b, le, uint32(dataSize))
	b.Write(make([]byte, dataSize))
	return b.Bytes()
}

func glbBytes() []byte {
	b := []byte("glTF")
	b = binary.LittleEndian.AppendUint32(b, 2)
	b = binary.LittleEndian.AppendUint32(b, 12)
	return b
}

func TestInspect(t *testing.T) {
	img := pngBytes(t, 3, 2)

	m, err := Inspect(KindImage, img)
	require.NoError(t, err)
	assert.Equal(t, "image/png", m.MIME)
	assert.Equal(t, 3, m.Width)
	assert.Equal(t, 2, m.Height)
	assert.Equal(t, len(img), m.Size)

	m, err = Inspect(KindModel, glbBytes())
	require.NoError(t, err)
	assert.Equal(t, "model/gltf-binary", m.MIME)

	m, err = Inspect(KindModel, []byte(`{"asset": {"version": "2.0"}, "scenes": []}`))
	require.NoError(t, err)
	assert.Equal(t, "model/gltf+json", m.MIME)

	m, err = Inspect(KindAudio, wavBytes(8000, 8000))
	require.NoError(t, err)
	assert.Equal(t, time.Second, m.Duration)
	assert.Equal(t, 8000, m.SampleRate)
	assert.Equal(t, 1, m.Channels)

	for _, tc := range []struct {
		kind Kind
		data []byte
	}{
		{KindImage, glbBytes()},
		{KindModel, img},
		{KindAudio, img},
		{KindVideo, img},
		{KindCube, img},
		{KindImage, []byte("plain text")},
	} {
		_, err := Inspect(tc.kind, tc.data)
		assert.True(t, errors.Is(err, ErrUnsupportedMedia), "%s: %v", tc.kind, err)
	}
}

func TestHTTPLoader(t *testing.T) {
	img := pngBytes(t, 8, 8)
	var flaky atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tex.png":
			assert.Contains(t, r.Header.Get("User-Agent"), "blockworld/")
			w.Write(img)
		case "/flaky.png":
			if flaky.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write(img)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewHTTPLoader()
	l.Retry.Delay = time.Millisecond
	ctx := context.Background()

	m, err := l.Load(ctx, Request{Kind: KindImage, Src: srv.URL + "/tex.png"})
	require.NoError(t, err)
	assert.Equal(t, 8, m.Width)

	_, err = l.Load(ctx, Request{Kind: KindImage, Src: srv.URL + "/flaky.png"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), flaky.Load())

	_, err = l.Load(ctx, Request{Kind: KindImage, Src: srv.URL + "/missing.png"})
	require.Error(t, err)
	assert.True(t, bwerrors.Is(err, bwerrors.ErrCodeMediaLoad))

	l.MaxBytes = 10
	_, err = l.Load(ctx, Request{Kind: KindImage, Src: srv.URL + "/tex.png"})
	assert.True(t, errors.Is(err, ErrUnsupportedMedia))
}

func TestMultiLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "duck.glb"), glbBytes(), 0o644))

	var remote atomic.Int32
	l := &MultiLoader{
		HTTP: LoaderFunc(func(context.Context, Request) (Media, error) {
			remote.Add(1)
			return Media{MIME: "remote"}, nil
		}),
		File: FileLoader{Root: dir},
	}
	ctx := context.Background()

	m, err := l.Load(ctx, Request{Kind: KindModel, Src: "duck.glb"})
	require.NoError(t, err)
	assert.Equal(t, "model/gltf-binary", m.MIME)

	m, err = l.Load(ctx, Request{Kind: KindModel, Src: "file://" + filepath.Join(dir, "duck.glb")})
	require.NoError(t, err)
	assert.Equal(t, "model/gltf-binary", m.MIME)

	m, err = l.Load(ctx, Request{Kind: KindModel, Src: "https://example.com/duck.glb"})
	require.NoError(t, err)
	assert.Equal(t, "remote", m.MIME)
	assert.Equal(t, int32(1), remote.Load())

	_, err = l.Load(ctx, Request{Kind: KindModel, Src: "missing.glb"})
	assert.True(t, bwerrors.Is(err, bwerrors.ErrCodeMediaLoad))

	_, err = (&MultiLoader{}).Load(ctx, Request{Kind: KindModel, Src: "http://x/y.glb"})
	assert.True(t, bwerrors.Is(err, bwerrors.ErrCodeUnsupported))
}
