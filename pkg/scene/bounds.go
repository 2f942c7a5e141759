package scene

import "github.com/chewxy/math32"

// Box is an axis-aligned bounding box.
type Box struct {
	Min   Vec3 `json:"min"`
	Max   Vec3 `json:"max"`
	Empty bool `json:"empty,omitempty"`
}

// Size returns the box extent on each axis.
func (b Box) Size() Vec3 { return b.Max.Sub(b.Min) }

// Center returns the box midpoint.
func (b Box) Center() Vec3 { return b.Min.Add(b.Max).Scale(0.5) }

func (b *Box) extend(lo, hi Vec3) {
	if b.Empty {
		b.Min, b.Max, b.Empty = lo, hi, false
		return
	}
	b.Min = Vec3{math32.Min(b.Min.X, lo.X), math32.Min(b.Min.Y, lo.Y), math32.Min(b.Min.Z, lo.Z)}
	b.Max = Vec3{math32.Max(b.Max.X, hi.X), math32.Max(b.Max.Y, hi.Y), math32.Max(b.Max.Z, hi.Z)}
}

// Bounds returns the world-space box around every attached primitive
// (cubes, spheres, cylinders). Parent translation and scale are applied;
// rotation is ignored.
func (s *Scene) Bounds() Box {
	box := Box{Empty: true}
	s.EachBox(func(_ *Node, b Box) {
		box.extend(b.Min, b.Max)
	})
	return box
}

// EachBox calls fn with the world-space box of every attached primitive,
// parents before children, under the same rules as [Scene.Bounds].
func (s *Scene) EachBox(fn func(n *Node, b Box)) {
	if len(s.nodes) == 0 {
		return
	}
	s.eachBox(Root, Vec3{}, Vec3{1, 1, 1}, fn)
}

func (s *Scene) eachBox(id NodeID, origin, scale Vec3, fn func(*Node, Box)) {
	n := &s.nodes[id]
	center := origin.Add(n.Transform.Position.Mul(scale))
	scale = scale.Mul(n.Transform.Scale)

	var half Vec3
	switch n.Kind {
	case KindCube:
		half = Vec3{n.Geometry.Width, n.Geometry.Height, n.Geometry.Depth}.Scale(0.5)
	case KindSphere:
		r := n.Geometry.Radius
		half = Vec3{r, r, r}
	case KindCylinder:
		r := math32.Max(n.Geometry.RadiusTop, n.Geometry.RadiusBottom)
		half = Vec3{r, n.Geometry.Height / 2, r}
	}
	if half != (Vec3{}) {
		half = half.Mul(abs3(scale))
		fn(n, Box{Min: center.Sub(half), Max: center.Add(half)})
	}

	for _, c := range n.Children {
		s.eachBox(c, center, scale, fn)
	}
}

func abs3(v Vec3) Vec3 {
	return Vec3{math32.Abs(v.X), math32.Abs(v.Y), math32.Abs(v.Z)}
}

// Camera is a viewpoint looking at Target.
type Camera struct {
	Position Vec3 `json:"position"`
	Target   Vec3 `json:"target"`
}

// Frame places a camera with the given vertical field of view (degrees) on
// the diagonal above the scene so the whole bounding box is in view.
func (s *Scene) Frame(fovDeg float32) Camera {
	box := s.Bounds()
	if box.Empty {
		return Camera{Position: Vec3{10, 10, 10}}
	}
	size := box.Size()
	center := box.Center()
	maxSize := math32.Max(size.X, math32.Max(size.Y, size.Z))
	fov := fovDeg * math32.Pi / 180
	distance := maxSize / (2 * math32.Tan(fov/2)) * 0.8
	return Camera{
		Position: center.Add(Vec3{distance, distance, distance}),
		Target:   center,
	}
}
