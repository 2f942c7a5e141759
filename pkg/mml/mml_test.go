package mml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bwerrors "github.com/matzehuels/blockworld/pkg/errors"
	"github.com/matzehuels/blockworld/pkg/layout/mondrian"
)

func blockSquares(t *testing.T) ([]mondrian.Square, int) {
	t.Helper()
	l, err := mondrian.Pack(5, []int{1, 2, 4})
	require.NoError(t, err)
	return l.Squares(), l.Width()
}

func TestEmitMarkup(t *testing.T) {
	squares, width := blockSquares(t)

	out, err := Emit(squares, width, EmitOptions{Seed: "2024-05-01-13-37", AnimChance: -1})
	require.NoError(t, err)

	want := `<m-group>
  <m-cube id="parcel-0-size-1" width="0.45" height="0.05" depth="0.45" x="-1" y="0.05" z="-1" color="#f7931a"> </m-cube>
  <m-cube id="parcel-1-size-2" width="0.9" height="0.1" depth="0.9" x="-0.25" y="0.1" z="-0.75" color="#f7931a"> </m-cube>
  <m-cube id="parcel-2-size-4" width="1.8" height="0.2" depth="1.8" x="-0.25" y="0.2" z="0.75" color="#f7931a"> </m-cube>
</m-group>
`
	assert.Equal(t, want, out.Markup)
	assert.Equal(t, map[string]int{"1": 1, "2": 1, "4": 1}, out.Stats.Counts)
	assert.Equal(t, 3, out.Stats.Total)
	assert.Equal(t, 5, out.Stats.Width)
	assert.Equal(t, []int{1, 2, 4}, out.Stats.Sizes())
	assert.Equal(t, 0, out.Animated)
	assert.Equal(t, -1, out.ModelIndex)
}

func TestEmitDeterministic(t *testing.T) {
	l, err := mondrian.Pack(12, []int{1, 1, 2, 3, 1, 2, 1, 1, 4, 1, 2, 1, 1, 1, 3})
	require.NoError(t, err)

	opts := EmitOptions{Seed: "2024-05-01-13-37", AnimChance: 1, ModelSrc: "https://example.com/duck.glb", ModelChance: 1}
	a, err := Emit(l.Squares(), l.Width(), opts)
	require.NoError(t, err)
	b, err := Emit(l.Squares(), l.Width(), opts)
	require.NoError(t, err)
	assert.Equal(t, a.Markup, b.Markup)

	opts.Seed = "2024-05-01-13-38"
	c, err := Emit(l.Squares(), l.Width(), opts)
	require.NoError(t, err)
	assert.NotEqual(t, a.Markup, c.Markup)
}

func TestEmitDecorations(t *testing.T) {
	squares, width := blockSquares(t)

	out, err := Emit(squares, width, EmitOptions{
		Seed:        "seed",
		AnimChance:  1,
		ModelSrc:    "https://example.com/duck.glb",
		ModelChance: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, out.Animated)
	assert.Equal(t, 2, out.ModelIndex, "model goes on the largest parcel")

	for _, child := range out.Root.Children {
		a := child.Base().Anims
		require.Len(t, a, 1)
		assert.Equal(t, "y", a[0].Attr)
		assert.Equal(t, 0.5, a[0].Start)
		assert.GreaterOrEqual(t, a[0].End, 0.5)
		assert.Less(t, a[0].End, 10.5)
		assert.Equal(t, 2000.0, a[0].StartTime)
		assert.GreaterOrEqual(t, a[0].Duration, 5000.0)
		assert.Less(t, a[0].Duration, 10000.0)
		assert.True(t, a[0].PingPong)
	}
	assert.Contains(t, out.Markup,
		`<m-model src="https://example.com/duck.glb" x="0" y="0.65" z="0" sx="0.5" sy="0.5" sz="0.5"> </m-model>`)

	out, err = Emit(squares, width, EmitOptions{Seed: "seed", ModelSrc: "m.glb", ModelSize: 3, ModelChance: 1})
	require.NoError(t, err)
	assert.Equal(t, -1, out.ModelIndex, "no parcel of size 3")
}

func TestEmitErrors(t *testing.T) {
	squares, width := blockSquares(t)

	tests := []struct {
		name    string
		squares []mondrian.Square
		width   int
		opts    EmitOptions
		code    bwerrors.Code
	}{
		{"zero width", squares, 0, EmitOptions{}, bwerrors.ErrCodeInvalidSize},
		{"negative scale", squares, width, EmitOptions{Scale: -1}, bwerrors.ErrCodeInvalidInput},
		{"bad color", squares, width, EmitOptions{Color: "orange"}, bwerrors.ErrCodeInvalidColor},
		{"anim chance", squares, width, EmitOptions{AnimChance: 2}, bwerrors.ErrCodeInvalidInput},
		{"empty square", []mondrian.Square{{R: 0}}, width, EmitOptions{}, bwerrors.ErrCodeInvalidSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Emit(tt.squares, tt.width, tt.opts)
			require.Error(t, err)
			assert.True(t, bwerrors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestEmitParseRoundTrip(t *testing.T) {
	l, err := mondrian.Pack(9, []int{1, 2, 1, 3, 1, 1, 2, 1, 4, 1})
	require.NoError(t, err)
	squares := l.Squares()

	out, err := Emit(squares, l.Width(), EmitOptions{Seed: "rt", AnimChance: 0.5, ModelSrc: "duck.glb", ModelChance: 1})
	require.NoError(t, err)

	doc, err := ParseString(out.Markup)
	require.NoError(t, err)
	assert.Empty(t, doc.Warnings)

	root, ok := doc.Root.(*Group)
	require.True(t, ok)
	require.Len(t, root.Children, len(squares))

	emitted := out.Root.Children
	for i, child := range root.Children {
		cube, ok := child.(*Cube)
		require.True(t, ok, "child %d is %T", i, child)
		want := emitted[i].(*Cube)

		assert.Equal(t, want.ID, cube.ID)
		assert.InDelta(t, want.Transform.X, cube.Transform.X, 1e-9)
		assert.InDelta(t, want.Transform.Y, cube.Transform.Y, 1e-9)
		assert.InDelta(t, want.Transform.Z, cube.Transform.Z, 1e-9)
		assert.InDelta(t, float64(squares[i].R)*0.45, cube.Width, 1e-9)
		assert.InDelta(t, float64(squares[i].R)*0.45, cube.Depth, 1e-9)
		assert.Equal(t, want.Anims, cube.Anims)
		assert.Equal(t, DefaultParcelColor, cube.Color)
	}

	model, ok := root.Children[out.ModelIndex].Base().Children[0].(*Model)
	require.True(t, ok)
	assert.Equal(t, "duck.glb", model.Src)
	assert.Equal(t, 0.5, model.Transform.SX)

	// Encoding the parsed tree reproduces the markup
	assert.Equal(t, out.Markup, EncodeString(doc.Root))
}

func TestParseUnknownTag(t *testing.T) {
	doc, err := ParseString(`<m-group><m-cube x="1"/><m-foo/><m-sphere/></m-group>`)
	require.NoError(t, err)

	root := doc.Root.(*Group)
	require.Len(t, root.Children, 3)
	assert.IsType(t, &Cube{}, root.Children[0])
	assert.IsType(t, &Sphere{}, root.Children[2])

	unknown, ok := root.Children[1].(*Unknown)
	require.True(t, ok)
	assert.Equal(t, "m-foo", unknown.Tag())
	assert.Empty(t, unknown.Children)

	require.Len(t, doc.Warnings, 1)
	assert.Contains(t, doc.Warnings[0].Message, "m-foo")
	assert.Equal(t, 1, doc.Warnings[0].Line)
}

func TestParseDefaults(t *testing.T) {
	doc, err := ParseString(`<m-store>
  <m-sphere/>
  <m-cylinder radiusTop="2"/>
  <m-label/>
  <m-audio src="a.mp3" loop="false"/>
  <m-video src="v.mp4" volume="0.5"/>
  <m-light color="#f00"/>
  <m-image src="i.png" rx="90"/>
</m-store>`)
	require.NoError(t, err)

	root := doc.Root.(*Group)
	assert.Equal(t, TagStore, root.Tag())
	require.Len(t, root.Children, 7)

	sphere := root.Children[0].(*Sphere)
	assert.Equal(t, DefaultRadius, sphere.Radius)
	assert.Equal(t, 32, sphere.Segments)
	assert.Equal(t, 1, sphere.HeightSegments)
	assert.Equal(t, DefaultColor, sphere.Color)
	assert.Equal(t, IdentityTransform(), sphere.Transform)

	cyl := root.Children[1].(*Cylinder)
	assert.Equal(t, 2.0, cyl.Top())
	assert.Equal(t, DefaultRadius, cyl.Bottom())
	assert.Equal(t, 1.0, cyl.Height)

	label := root.Children[2].(*Label)
	assert.Equal(t, "Label", label.Text)
	assert.Equal(t, 64, label.FontSize)

	audio := root.Children[3].(*Audio)
	assert.Equal(t, "a.mp3", audio.Source())
	assert.False(t, audio.Loop)
	assert.True(t, audio.Autoplay)
	assert.Equal(t, 1.0, audio.Volume)

	video := root.Children[4].(*Video)
	assert.Equal(t, 0.5, video.Volume)
	assert.Equal(t, 1.0, video.Width)

	light := root.Children[5].(*Light)
	assert.Equal(t, "#f00", light.Color)
	assert.Equal(t, 1.0, light.Distance)

	img := root.Children[6].(*Image)
	assert.Equal(t, 90.0, img.Transform.RX)
	assert.Equal(t, 1.0, img.Transform.SY)

	assert.Equal(t, map[string]int{
		TagStore: 1, TagSphere: 1, TagCylinder: 1, TagLabel: 1,
		TagAudio: 1, TagVideo: 1, TagLight: 1, TagImage: 1,
	}, Count(doc.Root))
}

func TestParseAttrAnim(t *testing.T) {
	doc, err := ParseString(`<m-cube>
  <m-model src="m.glb"/>
  <m-attr-anim attr="ry" start="0" end="360"/>
  <m-attr-anim attr="y" start="1" end="2" start-time="500" duration="250" ping-pong="1" easing="easeInOutCubic"/>
</m-cube>`)
	require.NoError(t, err)

	cube := doc.Root.(*Cube)
	require.Len(t, cube.Children, 1, "anims are not children")
	assert.Equal(t, []AttrAnim{
		{Attr: "ry", Start: 0, End: 360, StartTime: 0, Duration: 1000, Easing: "linear"},
		{Attr: "y", Start: 1, End: 2, StartTime: 500, Duration: 250, PingPong: false, Easing: "easeInOutCubic"},
	}, cube.Anims)
}

func TestParseWarningsAndErrors(t *testing.T) {
	doc, err := ParseString(`<m-group><m-cube width="wide" color="orange"/></m-group><m-group/>`)
	require.NoError(t, err)
	cube := doc.Root.Base().Children[0].(*Cube)
	assert.Equal(t, 1.0, cube.Width)
	assert.Equal(t, DefaultColor, cube.Color)
	assert.Len(t, doc.Warnings, 3)

	for _, input := range []string{"", "just text", `<m-attr-anim attr="y"/>`} {
		_, err := ParseString(input)
		require.Error(t, err, "input %q", input)
		assert.True(t, bwerrors.Is(err, bwerrors.ErrCodeInvalidMarkup))
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`<m-cube x=""y="1"/>`, `<m-cube x="0" y="1"></m-cube>`},
		{`<m-group><!-- parcels --><m-foo/></m-group>`, `<m-group><m-foo></m-foo></m-group>`},
		{`<m-model src="https://a.b/c.glb" />`, `<m-model src="https://a.b/c.glb"></m-model>`},
		{`<m-cube x="1"> </m-cube>`, `<m-cube x="1"> </m-cube>`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in))
	}
}

func TestEncodeHandAuthored(t *testing.T) {
	src := `<m-group id="scene" y="2">
  <m-light distance="10" x="0" y="5" z="0" color="#ffffff"> </m-light>
  <m-label text="Block &amp; parcels" x="0" y="3" z="0" color="#000000"> </m-label>
  <m-foo speed="3" x="0" y="0" z="0"> </m-foo>
</m-group>
`
	doc, err := ParseString(src)
	require.NoError(t, err)

	out := EncodeString(doc.Root)
	assert.True(t, strings.HasPrefix(out, `<m-group id="scene" y="2">`))
	assert.Contains(t, out, `<m-label text="Block &amp; parcels"`)
	assert.Contains(t, out, `<m-foo speed="3">`)

	again, err := ParseString(out)
	require.NoError(t, err)
	assert.Equal(t, out, EncodeString(again.Root))
}
