package scene

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chewxy/math32"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/blockworld/pkg/anim"
	bwerrors "github.com/matzehuels/blockworld/pkg/errors"
	"github.com/matzehuels/blockworld/pkg/mml"
	"github.com/matzehuels/blockworld/pkg/observability"
)

// FallbackColor is shown by media nodes without loaded content.
var FallbackColor = colorful.Color{R: 0.5, G: 0.5, B: 0.5}

// Builder turns MML elements into scenes. The zero value builds without
// loading media.
type Builder struct {
	Loader   Loader
	Logger   *log.Logger
	Fallback *colorful.Color
}

// NewBuilder returns a builder that loads media with loader and logs to
// logger. Either may be nil.
func NewBuilder(loader Loader, logger *log.Logger) *Builder {
	return &Builder{Loader: loader, Logger: logger}
}

// Build builds a scene from a parsed document. It fails only for a document
// without a root; unknown tags and media failures degrade in place.
func (b *Builder) Build(ctx context.Context, doc *mml.Document) (*Scene, error) {
	if doc == nil || doc.Root == nil {
		return nil, bwerrors.New(bwerrors.ErrCodeInvalidMarkup, "document has no root element")
	}
	hooks := observability.Pipeline()
	hooks.OnBuildStart(ctx)
	start := time.Now()

	s := b.BuildElement(ctx, doc.Root)

	hooks.OnBuildComplete(ctx, s.Len(), time.Since(start), nil)
	s.logger.Debug("built scene", "nodes", s.Len(), "loads", s.Pending(), "warnings", len(doc.Warnings))
	return s, nil
}

// BuildElement builds a scene rooted at el. Media loads start immediately
// and run until they finish or the scene is closed.
func (b *Builder) BuildElement(ctx context.Context, el mml.Element) *Scene {
	logger := b.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	fallback := FallbackColor
	if b.Fallback != nil {
		fallback = *b.Fallback
	}

	s := newScene(ctx, logger, fallback)
	b.add(s, None, el)
	return s
}

func (b *Builder) add(s *Scene, parent NodeID, el mml.Element) {
	c := el.Base()
	n := Node{
		Tag:       el.Tag(),
		Name:      c.ID,
		Parent:    parent,
		Transform: transformOf(c.Transform),
		Color:     colorful.Color{R: 1, G: 1, B: 1},
		Anims:     anim.FromAttrAnims(c.Anims),
	}
	if dropped := len(c.Anims) - len(n.Anims); dropped > 0 {
		s.logger.Warn("ignoring unusable animations", "tag", n.Tag, "id", n.Name, "count", dropped)
	}

	switch v := el.(type) {
	case *mml.Group:
		n.Kind = KindGroup
	case *mml.Cube:
		n.Kind = KindCube
		n.Geometry = Geometry{Width: f32(v.Width), Height: f32(v.Height), Depth: f32(v.Depth)}
		n.Color = parseColor(v.Color)
	case *mml.Sphere:
		n.Kind = KindSphere
		n.Geometry = Geometry{Radius: f32(v.Radius), Segments: v.Segments, HeightSegments: v.HeightSegments}
		n.Color = parseColor(v.Color)
	case *mml.Cylinder:
		n.Kind = KindCylinder
		n.Geometry = Geometry{
			Radius:         f32(v.Radius),
			RadiusTop:      f32(v.Top()),
			RadiusBottom:   f32(v.Bottom()),
			Height:         f32(v.Height),
			Segments:       v.Segments,
			HeightSegments: v.HeightSegments,
		}
		n.Color = parseColor(v.Color)
	case *mml.Image:
		n.Kind = KindImage
		n.Geometry = Geometry{Width: f32(v.Width), Height: f32(v.Height)}
	case *mml.Model:
		n.Kind = KindModel
	case *mml.Light:
		n.Kind = KindLight
		n.Color = parseColor(v.Color)
		light := *v
		light.Common = mml.Common{}
		n.Light = &light
	case *mml.Label:
		n.Kind = KindLabel
		n.Text, n.FontSize = v.Text, v.FontSize
		n.Color = parseColor(v.Color)
	case *mml.Audio:
		n.Kind = KindAudio
		sound := v.Sound
		n.Sound = &sound
	case *mml.Video:
		n.Kind = KindVideo
		n.Geometry = Geometry{Width: f32(v.Width), Height: f32(v.Height)}
		sound := v.Sound
		n.Sound = &sound
	default:
		n.Kind = KindPlaceholder
		s.logger.Warn("unknown tag built as empty group", "tag", el.Tag(), "children", len(c.Children))
	}

	if m, ok := el.(mml.Media); ok {
		n.Src = m.Source()
		n.Content = Content{Status: ContentNone, Color: s.fallback}
	}

	id := s.add(n)

	if n.Kind.IsMedia() && n.Src != "" {
		if b.Loader == nil {
			s.logger.Debug("media loading disabled", "kind", n.Kind, "src", n.Src)
		} else {
			s.nodes[id].Content.Status = ContentPending
			s.startLoad(b.Loader, id, Request{Kind: n.Kind, Src: n.Src})
		}
	}

	for _, child := range c.Children {
		b.add(s, id, child)
	}
}

func transformOf(t mml.Transform) Transform {
	return Transform{
		Position: Vec3{f32(t.X), f32(t.Y), f32(t.Z)},
		Rotation: Vec3{degToRad(t.RX), degToRad(t.RY), degToRad(t.RZ)},
		Scale:    Vec3{f32(t.SX), f32(t.SY), f32(t.SZ)},
	}
}

func degToRad(deg float64) float32 {
	return f32(deg) * math32.Pi / 180
}

func f32(v float64) float32 { return float32(v) }

func parseColor(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{R: 1, G: 1, B: 1}
	}
	return c
}
