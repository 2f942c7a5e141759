package mml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	bwerrors "github.com/matzehuels/blockworld/pkg/errors"
)

// ParseString parses markup held in a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Parse reads one MML document. The input is repaired with [Normalize]
// before decoding. Unknown tags, extra root elements and malformed attribute
// values produce warnings; only undecodable XML or a missing root fails.
func Parse(r io.Reader) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, bwerrors.Wrap(bwerrors.ErrCodeInvalidMarkup, err, "read markup")
	}

	p := &parser{dec: newDecoder(bytes.NewReader([]byte(Normalize(string(raw)))))}
	if err := p.run(); err != nil {
		return nil, err
	}
	if p.doc.Root == nil {
		return nil, bwerrors.New(bwerrors.ErrCodeInvalidMarkup, "markup has no root element")
	}
	return &p.doc, nil
}

func newDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.Strict = false
	d.AutoClose = xml.HTMLAutoClose
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charset.NewReaderLabel
	return d
}

type parser struct {
	dec   *xml.Decoder
	doc   Document
	stack []Element
}

func (p *parser) run() error {
	for {
		tok, err := p.dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return bwerrors.Wrap(bwerrors.ErrCodeInvalidMarkup, err, "decode markup")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := p.start(t); err != nil {
				return err
			}
		case xml.EndElement:
			if len(p.stack) > 0 {
				p.stack = p.stack[:len(p.stack)-1]
			}
		}
	}
}

func (p *parser) start(t xml.StartElement) error {
	name := strings.ToLower(t.Name.Local)
	a := attrs{list: t.Attr, p: p, tag: name}

	if name == TagAttrAnim {
		if len(p.stack) == 0 {
			return bwerrors.New(bwerrors.ErrCodeInvalidMarkup, "m-attr-anim cannot be the root element")
		}
		parent := p.stack[len(p.stack)-1].Base()
		parent.Anims = append(parent.Anims, a.attrAnim())
		return p.skip()
	}

	if len(p.stack) == 0 && p.doc.Root != nil {
		p.warn("ignoring extra root element <%s>", name)
		return p.skip()
	}

	el := p.element(name, t, a)
	if len(p.stack) == 0 {
		p.doc.Root = el
	} else {
		parent := p.stack[len(p.stack)-1].Base()
		parent.Children = append(parent.Children, el)
	}
	p.stack = append(p.stack, el)
	return nil
}

func (p *parser) skip() error {
	if err := p.dec.Skip(); err != nil {
		return bwerrors.Wrap(bwerrors.ErrCodeInvalidMarkup, err, "decode markup")
	}
	return nil
}

func (p *parser) warn(format string, args ...any) {
	line, _ := p.dec.InputPos()
	p.doc.Warnings = append(p.doc.Warnings, Warning{Line: line, Message: fmt.Sprintf(format, args...)})
}

func (p *parser) element(name string, t xml.StartElement, a attrs) Element {
	c := Common{ID: a.str("id", ""), Transform: a.transform()}

	switch name {
	case TagGroup, TagStore:
		return &Group{Common: c, Name: name}
	case TagCube:
		return &Cube{
			Common: c,
			Width:  a.num("width", 1),
			Height: a.num("height", 1),
			Depth:  a.num("depth", 1),
			Color:  a.color(),
		}
	case TagSphere:
		return &Sphere{
			Common:         c,
			Radius:         a.num("radius", DefaultRadius),
			Segments:       a.integer("segments", DefaultSegments),
			HeightSegments: a.integer("heightSegments", DefaultHeightSegments),
			Color:          a.color(),
		}
	case TagCylinder:
		return &Cylinder{
			Common:         c,
			Radius:         a.num("radius", DefaultRadius),
			RadiusTop:      a.optFloat("radiusTop"),
			RadiusBottom:   a.optFloat("radiusBottom"),
			Height:         a.num("height", 1),
			Segments:       a.integer("segments", DefaultSegments),
			HeightSegments: a.integer("heightSegments", DefaultHeightSegments),
			Color:          a.color(),
		}
	case TagImage:
		return &Image{Common: c, Src: a.str("src", ""), Width: a.num("width", 1), Height: a.num("height", 1)}
	case TagModel:
		return &Model{Common: c, Src: a.str("src", "")}
	case TagLight:
		return &Light{Common: c, Color: a.color(), Distance: a.num("distance", 1), Decay: a.num("decay", 1)}
	case TagLabel:
		return &Label{Common: c, Text: a.str("text", DefaultLabelText), Color: a.color(), FontSize: a.integer("fontSize", DefaultFontSize)}
	case TagAudio:
		return &Audio{Common: c, Sound: a.sound(), Src: a.str("src", "")}
	case TagVideo:
		return &Video{Common: c, Sound: a.sound(), Src: a.str("src", ""), Width: a.num("width", 1), Height: a.num("height", 1)}
	default:
		p.warn("unknown tag <%s> replaced by empty group", t.Name.Local)
		return &Unknown{Common: c, Name: t.Name.Local, Attrs: append([]xml.Attr(nil), t.Attr...)}
	}
}

// attrs resolves attribute values against defaults, recording a warning for
// values that do not parse.
type attrs struct {
	list []xml.Attr
	p    *parser
	tag  string
}

func (a attrs) lookup(name string) (string, bool) {
	for _, at := range a.list {
		if at.Name.Local == name {
			return at.Value, true
		}
	}
	return "", false
}

func (a attrs) str(name, def string) string {
	if v, ok := a.lookup(name); ok {
		return v
	}
	return def
}

func (a attrs) num(name string, def float64) float64 {
	v, ok := a.lookup(name)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		a.p.warn("<%s> %s=%q is not a number, using %v", a.tag, name, v, def)
		return def
	}
	return f
}

func (a attrs) optFloat(name string) *float64 {
	if _, ok := a.lookup(name); !ok {
		return nil
	}
	f := a.num(name, 0)
	return &f
}

func (a attrs) integer(name string, def int) int {
	v, ok := a.lookup(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		a.p.warn("<%s> %s=%q is not an integer, using %d", a.tag, name, v, def)
		return def
	}
	return n
}

func (a attrs) flag(name string, def bool) bool {
	v, ok := a.lookup(name)
	if !ok {
		return def
	}
	return v == "true" || v == "1"
}

func (a attrs) color() string {
	v := a.str("color", DefaultColor)
	if err := bwerrors.ValidateColor(v); err != nil {
		a.p.warn("<%s> color=%q is not a hex color, using %s", a.tag, v, DefaultColor)
		return DefaultColor
	}
	return v
}

func (a attrs) transform() Transform {
	return Transform{
		X: a.num("x", 0), Y: a.num("y", 0), Z: a.num("z", 0),
		RX: a.num("rx", 0), RY: a.num("ry", 0), RZ: a.num("rz", 0),
		SX: a.num("sx", 1), SY: a.num("sy", 1), SZ: a.num("sz", 1),
	}
}

func (a attrs) sound() Sound {
	return Sound{
		Loop:     a.flag("loop", true),
		Autoplay: a.flag("autoplay", true),
		Volume:   a.num("volume", 1),
		Distance: a.num("distance", 1),
		Decay:    a.num("decay", 1),
	}
}

func (a attrs) attrAnim() AttrAnim {
	return AttrAnim{
		Attr:      a.str("attr", ""),
		Start:     a.num("start", 0),
		End:       a.num("end", 0),
		StartTime: a.num("start-time", 0),
		Duration:  a.num("duration", DefaultAnimDuration),
		PingPong:  a.str("ping-pong", "") == "true",
		Easing:    a.str("easing", DefaultEasing),
	}
}
