// Package mml models, parses and writes MML, the XML vocabulary that
// describes a block scene declaratively.
//
// Every tag decodes once into a concrete element type with its attributes
// resolved against per-tag defaults, so consumers switch on the Go type
// instead of probing a string attribute bag:
//
//	doc, err := mml.ParseString(markup)
//	switch el := doc.Root.(type) {
//	case *mml.Cube:
//	    fmt.Println(el.Width, el.Color)
//	}
//
// Unknown tags never fail a parse; they become [*Unknown] placeholders and are
// reported in [Document.Warnings].
package mml

import (
	"encoding/xml"
	"fmt"
)

// Tag names.
const (
	TagGroup    = "m-group"
	TagStore    = "m-store"
	TagCube     = "m-cube"
	TagSphere   = "m-sphere"
	TagCylinder = "m-cylinder"
	TagImage    = "m-image"
	TagModel    = "m-model"
	TagLight    = "m-light"
	TagLabel    = "m-label"
	TagAudio    = "m-audio"
	TagVideo    = "m-video"
	TagAttrAnim = "m-attr-anim"
)

// Default attribute values.
const (
	DefaultColor          = "#ffffff"
	DefaultRadius         = 0.5
	DefaultSegments       = 32
	DefaultHeightSegments = 1
	DefaultFontSize       = 64
	DefaultLabelText      = "Label"
	DefaultAnimDuration   = 1000
	DefaultEasing         = "linear"
)

// Element is one decoded MML tag.
type Element interface {
	// Tag returns the tag name as written.
	Tag() string
	// Base returns the attributes and children shared by every tag.
	Base() *Common
}

// Media is an element whose content is loaded from Src.
type Media interface {
	Element
	Source() string
}

// Transform is a local transform. Rotations are in degrees as written in
// markup.
type Transform struct {
	X, Y, Z    float64
	RX, RY, RZ float64
	SX, SY, SZ float64
}

// IdentityTransform has zero position and rotation and unit scale.
func IdentityTransform() Transform {
	return Transform{SX: 1, SY: 1, SZ: 1}
}

// Common holds what every element carries.
type Common struct {
	ID        string
	Transform Transform
	Anims     []AttrAnim
	Children  []Element
}

func (c *Common) Base() *Common { return c }

// AttrAnim animates one transform channel of its parent element.
type AttrAnim struct {
	Attr      string
	Start     float64
	End       float64
	StartTime float64 // ms
	Duration  float64 // ms
	PingPong  bool
	Easing    string
}

// Group is m-group, or its alias m-store.
type Group struct {
	Common
	Name string // TagGroup or TagStore
}

// Cube is a box primitive.
type Cube struct {
	Common
	Width, Height, Depth float64
	Color                string
}

// Sphere is a sphere primitive.
type Sphere struct {
	Common
	Radius         float64
	Segments       int
	HeightSegments int
	Color          string
}

// Cylinder is a cylinder primitive. RadiusTop and RadiusBottom fall back to
// Radius when nil.
type Cylinder struct {
	Common
	Radius         float64
	RadiusTop      *float64
	RadiusBottom   *float64
	Height         float64
	Segments       int
	HeightSegments int
	Color          string
}

// Top returns the effective top radius.
func (c *Cylinder) Top() float64 {
	if c.RadiusTop != nil {
		return *c.RadiusTop
	}
	return c.Radius
}

// Bottom returns the effective bottom radius.
func (c *Cylinder) Bottom() float64 {
	if c.RadiusBottom != nil {
		return *c.RadiusBottom
	}
	return c.Radius
}

// Image is a textured plane.
type Image struct {
	Common
	Src           string
	Width, Height float64
}

// Model is an external glTF model.
type Model struct {
	Common
	Src string
}

// Light is a point light.
type Light struct {
	Common
	Color    string
	Distance float64
	Decay    float64
}

// Label is a text sprite.
type Label struct {
	Common
	Text     string
	Color    string
	FontSize int
}

// Sound holds playback settings shared by audio and video.
type Sound struct {
	Loop     bool
	Autoplay bool
	Volume   float64
	Distance float64
	Decay    float64
}

// Audio is positional audio.
type Audio struct {
	Common
	Sound
	Src string
}

// Video is a plane showing a video, with optional positional sound.
type Video struct {
	Common
	Sound
	Src           string
	Width, Height float64
}

// Unknown is a tag the vocabulary does not define. It keeps its raw
// attributes so it can be written back unchanged.
type Unknown struct {
	Common
	Name  string
	Attrs []xml.Attr
}

func (g *Group) Tag() string {
	if g.Name == "" {
		return TagGroup
	}
	return g.Name
}
func (*Cube) Tag() string       { return TagCube }
func (*Sphere) Tag() string     { return TagSphere }
func (*Cylinder) Tag() string   { return TagCylinder }
func (*Image) Tag() string      { return TagImage }
func (*Model) Tag() string      { return TagModel }
func (*Light) Tag() string      { return TagLight }
func (*Label) Tag() string      { return TagLabel }
func (*Audio) Tag() string      { return TagAudio }
func (*Video) Tag() string      { return TagVideo }
func (u *Unknown) Tag() string  { return u.Name }
func (i *Image) Source() string { return i.Src }
func (m *Model) Source() string { return m.Src }
func (a *Audio) Source() string { return a.Src }
func (v *Video) Source() string { return v.Src }

// NewCommon returns a Common with the identity transform.
func NewCommon() Common {
	return Common{Transform: IdentityTransform()}
}

// NewGroup returns an empty m-group.
func NewGroup() *Group {
	return &Group{Common: NewCommon(), Name: TagGroup}
}

// Warning is a non-fatal problem found while parsing.
type Warning struct {
	Line    int
	Message string
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("line %d: %s", w.Line, w.Message)
	}
	return w.Message
}

// Document is a parsed MML tree.
type Document struct {
	Root     Element
	Warnings []Warning
}

// Walk visits el and its descendants depth-first, parents before children.
// Returning false from fn skips the element's children.
func Walk(el Element, fn func(el Element, depth int) bool) {
	walk(el, 0, fn)
}

func walk(el Element, depth int, fn func(Element, int) bool) {
	if el == nil || !fn(el, depth) {
		return
	}
	for _, c := range el.Base().Children {
		walk(c, depth+1, fn)
	}
}

// Count returns the number of elements per tag under and including el.
func Count(el Element) map[string]int {
	counts := make(map[string]int)
	Walk(el, func(e Element, _ int) bool {
		counts[e.Tag()]++
		return true
	})
	return counts
}
