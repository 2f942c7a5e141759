// Package scene builds a live, animated scene tree from parsed MML.
//
// Nodes live in an arena owned by [Scene] and refer to each other by
// [NodeID]; the root is always [Root]. A scene is mutated only from the
// goroutine that drives frames: [Scene.Tick] advances attribute animations,
// and [Scene.Sync] applies media that finished loading in the background.
//
//	s, err := scene.NewBuilder(loader, logger).Build(ctx, doc)
//	defer s.Close()
//	for range ticker.C {
//	    s.Sync()
//	    s.Tick(dt)
//	}
//
// Media loads never fail a build. Until a load completes, and forever if it
// fails, the node shows a flat fallback color.
package scene

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/blockworld/pkg/anim"
	"github.com/matzehuels/blockworld/pkg/mml"
)

// NodeID indexes a node in its scene.
type NodeID int

const (
	// Root is the ID of the node built from the document root.
	Root NodeID = 0
	// None is the parent of the root.
	None NodeID = -1
)

// Kind is what a node renders as.
type Kind int

const (
	KindGroup Kind = iota
	KindCube
	KindSphere
	KindCylinder
	KindImage
	KindModel
	KindLight
	KindLabel
	KindAudio
	KindVideo
	KindPlaceholder // unknown tag
)

var kindNames = [...]string{"group", "cube", "sphere", "cylinder", "image", "model", "light", "label", "audio", "video", "placeholder"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// IsMedia reports whether nodes of kind k load external content.
func (k Kind) IsMedia() bool {
	return k == KindImage || k == KindModel || k == KindAudio || k == KindVideo
}

// Vec3 is a float32 vector, the precision a GPU scene graph works in.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Mul(o Vec3) Vec3 { return Vec3{v.X * o.X, v.Y * o.Y, v.Z * o.Z} }

// Scale multiplies every component by f.
func (v Vec3) Scale(f float32) Vec3 { return Vec3{v.X * f, v.Y * f, v.Z * f} }

// Transform is a node's local transform. Rotation is in radians.
type Transform struct {
	Position Vec3 `json:"position"`
	Rotation Vec3 `json:"rotation"`
	Scale    Vec3 `json:"scale"`
}

// Set overwrites one channel.
func (t *Transform) Set(ch anim.Channel, v float32) {
	switch ch {
	case anim.X:
		t.Position.X = v
	case anim.Y:
		t.Position.Y = v
	case anim.Z:
		t.Position.Z = v
	case anim.RX:
		t.Rotation.X = v
	case anim.RY:
		t.Rotation.Y = v
	case anim.RZ:
		t.Rotation.Z = v
	case anim.SX:
		t.Scale.X = v
	case anim.SY:
		t.Scale.Y = v
	case anim.SZ:
		t.Scale.Z = v
	}
}

// Geometry holds primitive dimensions; unused fields are zero.
type Geometry struct {
	Width          float32 `json:"width,omitempty"`
	Height         float32 `json:"height,omitempty"`
	Depth          float32 `json:"depth,omitempty"`
	Radius         float32 `json:"radius,omitempty"`
	RadiusTop      float32 `json:"radiusTop,omitempty"`
	RadiusBottom   float32 `json:"radiusBottom,omitempty"`
	Segments       int     `json:"segments,omitempty"`
	HeightSegments int     `json:"heightSegments,omitempty"`
}

// ContentStatus tracks a media node's external content.
type ContentStatus int

const (
	ContentNone    ContentStatus = iota // nothing to load
	ContentPending                      // load in flight
	ContentLoaded
	ContentFailed
)

func (s ContentStatus) String() string {
	switch s {
	case ContentPending:
		return "pending"
	case ContentLoaded:
		return "loaded"
	case ContentFailed:
		return "failed"
	default:
		return "none"
	}
}

// Content is what a media node currently shows. Color is the flat fallback
// used whenever Status is not ContentLoaded.
type Content struct {
	Status ContentStatus
	Media  Media
	Color  colorful.Color
	Err    string
}

// Node is one scene element.
type Node struct {
	ID        NodeID
	Kind      Kind
	Tag       string
	Name      string // markup id attribute
	Parent    NodeID
	Children  []NodeID
	Transform Transform
	Geometry  Geometry
	Color     colorful.Color
	Src       string
	Text      string
	FontSize  int
	Sound     *mml.Sound
	Light     *mml.Light
	Anims     []anim.Descriptor
	Anim      anim.State
	Content   Content

	detached bool
}

// Scene owns a node arena plus the background media loads feeding it.
type Scene struct {
	nodes    []Node
	logger   *log.Logger
	fallback colorful.Color

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	done     []loadResult
	notify   chan struct{}
	inflight atomic.Int64
	closed   atomic.Bool
}

func newScene(ctx context.Context, logger *log.Logger, fallback colorful.Color) *Scene {
	ctx, cancel := context.WithCancel(ctx)
	return &Scene{
		logger:   logger,
		fallback: fallback,
		ctx:      ctx,
		cancel:   cancel,
		notify:   make(chan struct{}, 1),
	}
}

func (s *Scene) add(n Node) NodeID {
	n.ID = NodeID(len(s.nodes))
	s.nodes = append(s.nodes, n)
	if n.Parent != None {
		p := &s.nodes[n.Parent]
		p.Children = append(p.Children, n.ID)
	}
	return n.ID
}

// Len returns the number of nodes ever added, detached ones included.
func (s *Scene) Len() int { return len(s.nodes) }

// Node returns the node with the given ID. The pointer is valid until the
// scene is closed; mutate it only from the frame goroutine.
func (s *Scene) Node(id NodeID) (*Node, bool) {
	if id < 0 || int(id) >= len(s.nodes) {
		return nil, false
	}
	return &s.nodes[id], true
}

// Children returns a copy of id's child IDs.
func (s *Scene) Children(id NodeID) []NodeID {
	n, ok := s.Node(id)
	if !ok {
		return nil
	}
	return append([]NodeID(nil), n.Children...)
}

// Walk visits attached nodes depth-first from the root, parents before
// children. Returning false skips a node's subtree.
func (s *Scene) Walk(fn func(n *Node) bool) {
	if len(s.nodes) == 0 {
		return
	}
	s.walk(Root, fn)
}

func (s *Scene) walk(id NodeID, fn func(*Node) bool) {
	if !fn(&s.nodes[id]) {
		return
	}
	for _, c := range s.nodes[id].Children {
		s.walk(c, fn)
	}
}

// Count returns the number of attached nodes of kind k.
func (s *Scene) Count(k Kind) int {
	n := 0
	s.Walk(func(node *Node) bool {
		if node.Kind == k {
			n++
		}
		return true
	})
	return n
}

// Attached reports whether id is still reachable from the root.
func (s *Scene) Attached(id NodeID) bool {
	for id != None {
		n, ok := s.Node(id)
		if !ok || n.detached {
			return false
		}
		id = n.Parent
	}
	return true
}

// Detach removes id's subtree from its parent. Pending media for the subtree
// is discarded when it arrives.
func (s *Scene) Detach(id NodeID) error {
	n, ok := s.Node(id)
	if !ok {
		return fmt.Errorf("scene: no node %d", id)
	}
	if id == Root {
		return fmt.Errorf("scene: cannot detach the root")
	}
	if n.detached {
		return nil
	}
	n.detached = true
	p := &s.nodes[n.Parent]
	for i, c := range p.Children {
		if c == id {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			break
		}
	}
	return nil
}

// Tick advances every attached node's animation clock by dt seconds and
// overwrites the animated transform channels. It returns the number of
// animated nodes visited.
func (s *Scene) Tick(dt float64) int {
	deltaMs := dt * 1000
	visited := 0
	s.Walk(func(n *Node) bool {
		if len(n.Anims) == 0 {
			return true
		}
		var writes []anim.Write
		n.Anim, writes = anim.Advance(n.Anim, n.Anims, deltaMs)
		for _, w := range writes {
			n.Transform.Set(w.Channel, float32(w.Value))
		}
		visited++
		return true
	})
	return visited
}

// Close cancels in-flight media loads and waits for them to return. Results
// that arrive afterwards are dropped.
func (s *Scene) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.inflight.Add(-int64(len(s.done)))
	s.done = nil
	s.mu.Unlock()
}
