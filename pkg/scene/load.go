package scene

import (
	"context"
	"fmt"
	"time"

	"github.com/matzehuels/blockworld/pkg/observability"
)

// Request asks a [Loader] for the content behind a media node.
type Request struct {
	Kind Kind
	Src  string
}

// Media describes loaded content.
type Media struct {
	MIME       string        `json:"mime"`
	Size       int           `json:"size"`
	Width      int           `json:"width,omitempty"`  // images
	Height     int           `json:"height,omitempty"` // images
	Duration   time.Duration `json:"duration,omitempty"`
	SampleRate int           `json:"sampleRate,omitempty"`
	Channels   int           `json:"channels,omitempty"`
}

// Loader fetches and validates media. Implementations must honor ctx
// cancellation and be safe for concurrent use.
type Loader interface {
	Load(ctx context.Context, req Request) (Media, error)
}

// LoaderFunc adapts a function to [Loader].
type LoaderFunc func(ctx context.Context, req Request) (Media, error)

func (f LoaderFunc) Load(ctx context.Context, req Request) (Media, error) { return f(ctx, req) }

type loadResult struct {
	id    NodeID
	media Media
	err   error
}

func (s *Scene) startLoad(loader Loader, id NodeID, req Request) {
	s.inflight.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		hooks := observability.Media()
		start := time.Now()
		hooks.OnLoadStart(s.ctx, req.Kind.String(), req.Src)
		m, err := safeLoad(s.ctx, loader, req)
		hooks.OnLoadComplete(s.ctx, req.Kind.String(), req.Src, m.Size, time.Since(start), err)

		s.mu.Lock()
		s.done = append(s.done, loadResult{id: id, media: m, err: err})
		s.mu.Unlock()

		select {
		case s.notify <- struct{}{}:
		default:
		}
	}()
}

// safeLoad runs loader, reporting a panic as a load error.
func safeLoad(ctx context.Context, loader Loader, req Request) (m Media, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = Media{}, fmt.Errorf("%s loader panicked: %v", req.Kind, r)
		}
	}()
	return loader.Load(ctx, req)
}

// Sync applies media loads that completed since the last call and returns
// how many nodes changed. Call it from the frame goroutine.
func (s *Scene) Sync() int {
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.mu.Unlock()

	applied := 0
	for _, r := range done {
		s.inflight.Add(-1)
		if s.closed.Load() {
			continue
		}
		if !s.Attached(r.id) {
			s.logger.Debug("dropping media for detached node", "node", r.id)
			continue
		}

		n := &s.nodes[r.id]
		if r.err != nil {
			n.Content = Content{Status: ContentFailed, Color: s.fallback, Err: r.err.Error()}
			s.logger.Error("media load failed", "kind", n.Kind, "src", n.Src, "err", r.err)
		} else {
			n.Content = Content{Status: ContentLoaded, Media: r.media, Color: s.fallback}
			s.logger.Debug("media loaded", "kind", n.Kind, "src", n.Src, "mime", r.media.MIME, "bytes", r.media.Size)
		}
		applied++
	}
	return applied
}

// Pending returns the number of loads started but not yet applied by Sync.
func (s *Scene) Pending() int {
	return int(s.inflight.Load())
}

// Wait blocks until every load has been applied, syncing as results arrive.
func (s *Scene) Wait(ctx context.Context) error {
	for {
		s.Sync()
		if s.Pending() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.notify:
		}
	}
}
