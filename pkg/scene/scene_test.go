package scene

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/blockworld/pkg/mml"
)

func build(t *testing.T, b *Builder, markup string) *Scene {
	t.Helper()
	doc, err := mml.ParseString(markup)
	require.NoError(t, err)
	s, err := b.Build(context.Background(), doc)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestBuildTree(t *testing.T) {
	s := build(t, &Builder{}, `<m-group>
  <m-cube id="a" width="2" x="1" color="#ff0000"/>
  <m-foo><m-cube/></m-foo>
  <m-sphere radius="3"/>
</m-group>`)

	assert.Equal(t, 5, s.Len())
	root, ok := s.Node(Root)
	require.True(t, ok)
	assert.Equal(t, KindGroup, root.Kind)
	assert.Equal(t, None, root.Parent)
	require.Len(t, root.Children, 3)

	cube, _ := s.Node(root.Children[0])
	assert.Equal(t, KindCube, cube.Kind)
	assert.Equal(t, "a", cube.Name)
	assert.Equal(t, float32(2), cube.Geometry.Width)
	assert.Equal(t, float32(1), cube.Transform.Position.X)
	assert.Equal(t, Vec3{1, 1, 1}, cube.Transform.Scale)
	assert.Equal(t, "#ff0000", cube.Color.Hex())

	foo, _ := s.Node(root.Children[1])
	assert.Equal(t, KindPlaceholder, foo.Kind)
	assert.Equal(t, "m-foo", foo.Tag)
	require.Len(t, foo.Children, 1)
	inner, _ := s.Node(foo.Children[0])
	assert.Equal(t, KindCube, inner.Kind)
	assert.Equal(t, foo.ID, inner.Parent)

	assert.Equal(t, 2, s.Count(KindCube))
	assert.Equal(t, 1, s.Count(KindSphere))
	assert.Equal(t, 1, s.Count(KindPlaceholder))
}

func TestBuildNilDocument(t *testing.T) {
	_, err := (&Builder{}).Build(context.Background(), nil)
	assert.Error(t, err)
}

func TestBuildRotationRadians(t *testing.T) {
	s := build(t, &Builder{}, `<m-cube rx="90" ry="-180"/>`)
	n, _ := s.Node(Root)
	assert.InDelta(t, math.Pi/2, n.Transform.Rotation.X, 1e-6)
	assert.InDelta(t, -math.Pi, n.Transform.Rotation.Y, 1e-6)
}

func TestTickLinear(t *testing.T) {
	s := build(t, &Builder{}, `<m-group>
  <m-cube y="3"><m-attr-anim attr="y" start="0" end="10" duration="1000"/></m-cube>
  <m-cube y="3"/>
</m-group>`)

	assert.Equal(t, 1, s.Tick(0.25))
	assert.Equal(t, 1, s.Tick(0.25))

	animated, _ := s.Node(1)
	still, _ := s.Node(2)
	assert.InDelta(t, 5, animated.Transform.Position.Y, 1e-5)
	assert.InDelta(t, 500, animated.Anim.ElapsedMs, 1e-9)
	assert.Equal(t, float32(3), still.Transform.Position.Y)
}

func TestTickPingPongAndClobber(t *testing.T) {
	s := build(t, &Builder{}, `<m-cube>
  <m-attr-anim attr="y" start="0" end="10" duration="1000" ping-pong="true"/>
  <m-attr-anim attr="ry" start="0" end="180" duration="1000"/>
</m-cube>`)

	s.Tick(1.5)
	n, _ := s.Node(Root)
	assert.InDelta(t, 5, n.Transform.Position.Y, 1e-5)
	assert.InDelta(t, math.Pi/2, n.Transform.Rotation.Y, 1e-5)

	// External writes to an animated channel are overwritten next frame
	n.Transform.Position.Y = 100
	s.Tick(0.1)
	assert.InDelta(t, 4, n.Transform.Position.Y, 1e-5, "descending")
}

func TestTickSkipsDetached(t *testing.T) {
	s := build(t, &Builder{}, `<m-group><m-cube><m-attr-anim attr="x" start="0" end="1"/></m-cube></m-group>`)
	require.NoError(t, s.Detach(1))
	assert.Equal(t, 0, s.Tick(0.5))
	assert.False(t, s.Attached(1))
	assert.Empty(t, s.Children(Root))
	assert.Error(t, s.Detach(Root))
	assert.Error(t, s.Detach(42))
}

func TestMediaLoads(t *testing.T) {
	loader := LoaderFunc(func(ctx context.Context, req Request) (Media, error) {
		if req.Src == "broken.png" {
			return Media{}, errors.New("404")
		}
		return Media{MIME: "image/png", Size: 10, Width: 4, Height: 2}, nil
	})

	s := build(t, NewBuilder(loader, nil), `<m-group>
  <m-image src="ok.png"/>
  <m-image src="broken.png"/>
  <m-model/>
</m-group>`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	assert.Equal(t, 0, s.Pending())

	ok, _ := s.Node(1)
	assert.Equal(t, ContentLoaded, ok.Content.Status)
	assert.Equal(t, 4, ok.Content.Media.Width)

	broken, _ := s.Node(2)
	assert.Equal(t, ContentFailed, broken.Content.Status)
	assert.Equal(t, FallbackColor, broken.Content.Color)
	assert.Equal(t, "404", broken.Content.Err)

	model, _ := s.Node(3)
	assert.Equal(t, ContentNone, model.Content.Status, "no src, nothing to load")
}

func TestMediaUnderUnknownTag(t *testing.T) {
	loader := LoaderFunc(func(ctx context.Context, req Request) (Media, error) {
		return Media{MIME: "model/gltf-binary", Size: 12}, nil
	})

	s := build(t, NewBuilder(loader, nil), `<m-group>
  <m-foo>
    <m-cube x="1"/>
    <m-model src="a.glb"/>
  </m-foo>
  <m-cube/>
</m-group>`)

	assert.Equal(t, 5, s.Len())
	assert.Equal(t, 2, s.Count(KindCube))
	assert.Equal(t, 1, s.Count(KindModel))
	assert.Equal(t, 1, s.Count(KindPlaceholder))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))

	model, _ := s.Node(3)
	assert.Equal(t, KindModel, model.Kind)
	assert.Equal(t, ContentLoaded, model.Content.Status)
	assert.Equal(t, 12, model.Content.Media.Size)
}

func TestPanickingLoaderFallsBack(t *testing.T) {
	loader := LoaderFunc(func(ctx context.Context, req Request) (Media, error) {
		panic("decoder exploded")
	})

	s := build(t, NewBuilder(loader, nil), `<m-group><m-image src="bad.png"/><m-cube/></m-group>`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))

	img, _ := s.Node(1)
	assert.Equal(t, ContentFailed, img.Content.Status)
	assert.Equal(t, FallbackColor, img.Content.Color)
	assert.Contains(t, img.Content.Err, "decoder exploded")
}

func TestMediaForDetachedNodeIsDropped(t *testing.T) {
	release := make(chan struct{})
	loader := LoaderFunc(func(ctx context.Context, req Request) (Media, error) {
		<-release
		return Media{MIME: "model/gltf-binary"}, nil
	})

	s := build(t, NewBuilder(loader, nil), `<m-group><m-cube><m-model src="duck.glb"/></m-cube></m-group>`)
	assert.Equal(t, 1, s.Pending())

	require.NoError(t, s.Detach(1))
	close(release)
	require.NoError(t, s.Wait(context.Background()))

	model, _ := s.Node(2)
	assert.Equal(t, ContentPending, model.Content.Status)
	assert.False(t, s.Attached(2))
}

func TestCloseCancelsLoads(t *testing.T) {
	started := make(chan struct{})
	loader := LoaderFunc(func(ctx context.Context, req Request) (Media, error) {
		close(started)
		<-ctx.Done()
		return Media{}, ctx.Err()
	})

	doc, err := mml.ParseString(`<m-audio src="https://example.com/a.mp3"/>`)
	require.NoError(t, err)
	s, err := NewBuilder(loader, nil).Build(context.Background(), doc)
	require.NoError(t, err)

	<-started
	s.Close()
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, 0, s.Sync())

	n, _ := s.Node(Root)
	assert.Equal(t, ContentPending, n.Content.Status)
}

func TestBoundsAndFrame(t *testing.T) {
	s := build(t, &Builder{}, `<m-group x="1">
  <m-cube width="2" height="2" depth="2"/>
  <m-group sx="2" sy="2" sz="2"><m-cube x="2" width="1" height="1" depth="1"/></m-group>
</m-group>`)

	box := s.Bounds()
	require.False(t, box.Empty)
	assert.Equal(t, Vec3{0, -1, -1}, box.Min)
	assert.Equal(t, Vec3{6, 1, 1}, box.Max)
	assert.Equal(t, Vec3{3, 0, 0}, box.Center())

	cam := s.Frame(90)
	assert.Equal(t, box.Center(), cam.Target)
	// maxSize 6, tan(45°)=1: distance = 6/2*0.8
	assert.InDelta(t, 3+2.4, cam.Position.X, 1e-4)
	assert.InDelta(t, 2.4, cam.Position.Y, 1e-4)

	empty := build(t, &Builder{}, `<m-group/>`)
	assert.True(t, empty.Bounds().Empty)
}

func TestEachBox(t *testing.T) {
	s := build(t, &Builder{}, `<m-group>
  <m-cube id="a" width="2" height="2" depth="2"/>
  <m-image src="x.png"/>
  <m-group y="3"><m-sphere id="b" radius="1"/></m-group>
</m-group>`)

	boxes := map[string]Box{}
	s.EachBox(func(n *Node, b Box) { boxes[n.Name] = b })

	require.Len(t, boxes, 2, "only primitives have boxes")
	assert.Equal(t, Box{Min: Vec3{-1, -1, -1}, Max: Vec3{1, 1, 1}}, boxes["a"])
	assert.Equal(t, Box{Min: Vec3{-1, 2, -1}, Max: Vec3{1, 4, 1}}, boxes["b"])
}

func TestMarshalJSON(t *testing.T) {
	s := build(t, &Builder{}, `<m-group><m-cube color="#00ff00"><m-attr-anim attr="y" start="0" end="1"/></m-cube><m-image src="a.png"/></m-group>`)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var tree struct {
		Kind     string `json:"kind"`
		Children []struct {
			Kind     string `json:"kind"`
			Color    string `json:"color"`
			Anims    int    `json:"anims"`
			Geometry struct {
				Width float32 `json:"width"`
			} `json:"geometry"`
			Content *struct {
				Status string `json:"status"`
			} `json:"content"`
		} `json:"children"`
	}
	require.NoError(t, json.Unmarshal(data, &tree))
	assert.Equal(t, "group", tree.Kind)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, "#00ff00", tree.Children[0].Color)
	assert.Equal(t, 1, tree.Children[0].Anims)
	assert.Equal(t, float32(1), tree.Children[0].Geometry.Width)
	assert.Equal(t, "image", tree.Children[1].Kind)
	require.NotNil(t, tree.Children[1].Content)
	assert.Equal(t, "none", tree.Children[1].Content.Status)
	assert.Equal(t, FallbackColor.Hex(), tree.Children[1].Color)
}

func TestAnimatorFrames(t *testing.T) {
	s := build(t, &Builder{}, `<m-cube><m-attr-anim attr="x" start="0" end="10" duration="1000"/></m-cube>`)

	now := time.Unix(0, 0)
	a := NewAnimator(s)
	a.Now = func() time.Time { return now }

	assert.Equal(t, time.Duration(0), a.Frame())
	now = now.Add(300 * time.Millisecond)
	assert.Equal(t, 300*time.Millisecond, a.Frame())

	n, _ := s.Node(Root)
	assert.InDelta(t, 3, n.Transform.Position.X, 1e-5)
}

func TestAnimatorRunStops(t *testing.T) {
	s := build(t, &Builder{}, `<m-group/>`)
	ctx, cancel := context.WithCancel(context.Background())

	frames := 0
	err := NewAnimator(s).Run(ctx, 200, func(time.Duration) {
		frames++
		if frames == 3 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, frames)
}
