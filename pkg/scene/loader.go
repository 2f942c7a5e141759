package scene

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/matzehuels/blockworld/pkg/buildinfo"
	bwerrors "github.com/matzehuels/blockworld/pkg/errors"
	"github.com/matzehuels/blockworld/pkg/httputil"
)

// DefaultMaxMediaBytes caps a single media download.
const DefaultMaxMediaBytes = 64 << 20

// ErrUnsupportedMedia is returned when content does not match the node kind.
var ErrUnsupportedMedia = errors.New("scene: unsupported media")

var (
	glbType  = filetype.NewType("glb", "model/gltf-binary")
	gltfMIME = "model/gltf+json"
)

func init() {
	filetype.AddMatcher(glbType, isGLB)
}

func isGLB(buf []byte) bool {
	return len(buf) >= 12 && string(buf[:4]) == "glTF"
}

func isGLTFJSON(buf []byte) bool {
	trimmed := bytes.TrimSpace(buf)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var doc struct {
		Asset *struct {
			Version string `json:"version"`
		} `json:"asset"`
	}
	return json.Unmarshal(trimmed, &doc) == nil && doc.Asset != nil
}

// Inspect validates data as content for a node of kind k and extracts what
// a renderer needs up front: image dimensions and audio length.
func Inspect(k Kind, data []byte) (Media, error) {
	m := Media{Size: len(data)}
	t, _ := filetype.Match(data)

	switch k {
	case KindImage:
		if !filetype.IsImage(data) {
			return m, fmt.Errorf("%w: %s is not an image", ErrUnsupportedMedia, describe(t.MIME.Value))
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return m, fmt.Errorf("%w: decode %s: %v", ErrUnsupportedMedia, t.MIME.Value, err)
		}
		m.MIME, m.Width, m.Height = t.MIME.Value, cfg.Width, cfg.Height
	case KindModel:
		switch {
		case isGLB(data):
			m.MIME = glbType.MIME.Value
		case isGLTFJSON(data):
			m.MIME = gltfMIME
		default:
			return m, fmt.Errorf("%w: %s is not a glTF model", ErrUnsupportedMedia, describe(t.MIME.Value))
		}
	case KindAudio:
		if !filetype.IsAudio(data) {
			return m, fmt.Errorf("%w: %s is not audio", ErrUnsupportedMedia, describe(t.MIME.Value))
		}
		m.MIME = t.MIME.Value
		if err := audioInfo(&m, t.Extension, data); err != nil {
			return m, err
		}
	case KindVideo:
		if !filetype.IsVideo(data) {
			return m, fmt.Errorf("%w: %s is not video", ErrUnsupportedMedia, describe(t.MIME.Value))
		}
		m.MIME = t.MIME.Value
	default:
		return m, fmt.Errorf("%w: %s nodes have no media", ErrUnsupportedMedia, k)
	}
	return m, nil
}

func describe(mime string) string {
	if mime == "" {
		return "unknown content"
	}
	return mime
}

// audioInfo fills in length and format for the containers beep can decode.
func audioInfo(m *Media, ext string, data []byte) error {
	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch ext {
	case "wav":
		s, format, err = wav.Decode(bytes.NewReader(data))
	case "mp3":
		s, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUnsupportedMedia, ext, err)
	}
	defer s.Close()

	m.SampleRate = int(format.SampleRate)
	m.Channels = format.NumChannels
	m.Duration = format.SampleRate.D(s.Len())
	return nil
}

// HTTPLoader downloads media over HTTP, retrying transient failures.
type HTTPLoader struct {
	Client   *http.Client
	MaxBytes int64
	Retry    httputil.Policy
}

// NewHTTPLoader returns a loader with default timeout, size cap and retry
// policy.
func NewHTTPLoader() *HTTPLoader {
	return &HTTPLoader{
		Client:   httputil.NewClient(30 * time.Second),
		MaxBytes: DefaultMaxMediaBytes,
		Retry:    httputil.Policy{Attempts: 3, Delay: 250 * time.Millisecond, MaxDelay: 5 * time.Second},
	}
}

func (l *HTTPLoader) Load(ctx context.Context, req Request) (Media, error) {
	var data []byte
	err := httputil.Retry(ctx, l.Retry, func() error {
		var err error
		data, err = l.fetch(ctx, req.Src)
		return err
	})
	if err != nil {
		return Media{}, bwerrors.Wrap(bwerrors.ErrCodeMediaLoad, err, "fetch %s", req.Src)
	}
	return Inspect(req.Kind, data)
}

func (l *HTTPLoader) fetch(ctx context.Context, src string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", buildinfo.UserAgent())

	client := l.Client
	if client == nil {
		client = httputil.NewClient(0)
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, httputil.TransportError(ctx, err, "get %s", src)
	}
	defer resp.Body.Close()

	if err := httputil.CheckResponse(resp); err != nil {
		return nil, err
	}

	limit := l.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxMediaBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, httputil.TransportError(ctx, err, "read %s", src)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrUnsupportedMedia, limit)
	}
	return data, nil
}

// FileLoader reads media from the local filesystem. Relative paths resolve
// against Root.
type FileLoader struct {
	Root string
}

func (l FileLoader) Load(ctx context.Context, req Request) (Media, error) {
	if err := ctx.Err(); err != nil {
		return Media{}, err
	}
	path := strings.TrimPrefix(req.Src, "file://")
	if !filepath.IsAbs(path) && l.Root != "" {
		path = filepath.Join(l.Root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Media{}, bwerrors.Wrap(bwerrors.ErrCodeMediaLoad, err, "read %s", req.Src)
	}
	return Inspect(req.Kind, data)
}

// MultiLoader dispatches on the URL scheme of Src: http and https go to
// HTTP, everything else to File.
type MultiLoader struct {
	HTTP Loader
	File Loader
}

// NewMultiLoader loads remote media over HTTP and local media relative to
// root.
func NewMultiLoader(root string) *MultiLoader {
	return &MultiLoader{HTTP: NewHTTPLoader(), File: FileLoader{Root: root}}
}

func (l *MultiLoader) Load(ctx context.Context, req Request) (Media, error) {
	u, err := url.Parse(req.Src)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if l.HTTP == nil {
			return Media{}, bwerrors.New(bwerrors.ErrCodeUnsupported, "remote media disabled: %s", req.Src)
		}
		return l.HTTP.Load(ctx, req)
	}
	if l.File == nil {
		return Media{}, bwerrors.New(bwerrors.ErrCodeUnsupported, "local media disabled: %s", req.Src)
	}
	return l.File.Load(ctx, req)
}
