package mml

import (
	"bufio"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
)

// Encode writes el and its subtree as markup: two-space indentation, one
// element per line, explicit close tags, and a single space inside elements
// without children.
func Encode(w io.Writer, el Element) error {
	bw := bufio.NewWriter(w)
	e := &encoder{w: bw}
	e.element(el, 0)
	return bw.Flush()
}

// EncodeString returns the markup for el.
func EncodeString(el Element) string {
	var sb strings.Builder
	_ = Encode(&sb, el)
	return sb.String()
}

type encoder struct {
	w     *bufio.Writer
	attrs []xml.Attr
}

func (e *encoder) add(name, value string) {
	e.attrs = append(e.attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

func (e *encoder) num(name string, v float64) {
	e.add(name, formatNum(v))
}

func (e *encoder) numIf(name string, v, def float64) {
	if v != def {
		e.num(name, v)
	}
}

func (e *encoder) element(el Element, depth int) {
	e.attrs = e.attrs[:0]
	c := el.Base()
	if c.ID != "" {
		e.add("id", c.ID)
	}
	e.variant(el)

	// Grouping tags omit an identity transform; everything else always
	// states its position.
	_, grouping := el.(*Group)
	if _, ok := el.(*Unknown); ok {
		grouping = true
	}
	e.transform(c.Transform, grouping)
	if col, ok := colorOf(el); ok {
		e.add("color", col)
	}

	indent := strings.Repeat("  ", depth)
	e.open(indent, el.Tag(), e.attrs)

	if len(c.Anims) == 0 && len(c.Children) == 0 {
		e.w.WriteString(" </" + el.Tag() + ">\n")
		return
	}
	e.w.WriteString("\n")
	for _, a := range c.Anims {
		e.anim(a, depth+1)
	}
	for _, child := range c.Children {
		e.element(child, depth+1)
	}
	e.w.WriteString(indent + "</" + el.Tag() + ">\n")
}

func (e *encoder) open(indent, tag string, attrs []xml.Attr) {
	e.w.WriteString(indent + "<" + tag)
	for _, a := range attrs {
		e.w.WriteString(" " + a.Name.Local + `="`)
		xml.EscapeText(e.w, []byte(a.Value))
		e.w.WriteString(`"`)
	}
	e.w.WriteString(">")
}

func (e *encoder) transform(t Transform, grouping bool) {
	if grouping {
		e.numIf("x", t.X, 0)
		e.numIf("y", t.Y, 0)
		e.numIf("z", t.Z, 0)
	} else {
		e.num("x", t.X)
		e.num("y", t.Y)
		e.num("z", t.Z)
	}
	e.numIf("rx", t.RX, 0)
	e.numIf("ry", t.RY, 0)
	e.numIf("rz", t.RZ, 0)
	e.numIf("sx", t.SX, 1)
	e.numIf("sy", t.SY, 1)
	e.numIf("sz", t.SZ, 1)
}

// variant writes the tag-specific attributes other than color.
func (e *encoder) variant(el Element) {
	switch v := el.(type) {
	case *Cube:
		e.num("width", v.Width)
		e.num("height", v.Height)
		e.num("depth", v.Depth)
	case *Sphere:
		e.num("radius", v.Radius)
		e.segments(v.Segments, v.HeightSegments)
	case *Cylinder:
		e.num("radius", v.Radius)
		if v.RadiusTop != nil {
			e.num("radiusTop", *v.RadiusTop)
		}
		if v.RadiusBottom != nil {
			e.num("radiusBottom", *v.RadiusBottom)
		}
		e.num("height", v.Height)
		e.segments(v.Segments, v.HeightSegments)
	case *Image:
		e.add("src", v.Src)
		e.num("width", v.Width)
		e.num("height", v.Height)
	case *Model:
		e.add("src", v.Src)
	case *Light:
		e.numIf("distance", v.Distance, 1)
		e.numIf("decay", v.Decay, 1)
	case *Label:
		e.add("text", v.Text)
		if v.FontSize != DefaultFontSize {
			e.add("fontSize", strconv.Itoa(v.FontSize))
		}
	case *Audio:
		e.add("src", v.Src)
		e.sound(v.Sound)
	case *Video:
		e.add("src", v.Src)
		e.num("width", v.Width)
		e.num("height", v.Height)
		e.sound(v.Sound)
	case *Unknown:
		for _, a := range v.Attrs {
			switch a.Name.Local {
			case "id", "x", "y", "z", "rx", "ry", "rz", "sx", "sy", "sz":
			default:
				e.attrs = append(e.attrs, a)
			}
		}
	}
}

func (e *encoder) segments(seg, heightSeg int) {
	if seg != DefaultSegments {
		e.add("segments", strconv.Itoa(seg))
	}
	if heightSeg != DefaultHeightSegments {
		e.add("heightSegments", strconv.Itoa(heightSeg))
	}
}

func (e *encoder) sound(s Sound) {
	if !s.Loop {
		e.add("loop", "false")
	}
	if !s.Autoplay {
		e.add("autoplay", "false")
	}
	e.numIf("volume", s.Volume, 1)
	e.numIf("distance", s.Distance, 1)
	e.numIf("decay", s.Decay, 1)
}

func (e *encoder) anim(a AttrAnim, depth int) {
	attrs := []xml.Attr{
		{Name: xml.Name{Local: "attr"}, Value: a.Attr},
		{Name: xml.Name{Local: "start"}, Value: formatNum(a.Start)},
		{Name: xml.Name{Local: "end"}, Value: formatNum(a.End)},
		{Name: xml.Name{Local: "start-time"}, Value: formatNum(a.StartTime)},
		{Name: xml.Name{Local: "duration"}, Value: formatNum(a.Duration)},
		{Name: xml.Name{Local: "ping-pong"}, Value: strconv.FormatBool(a.PingPong)},
	}
	if a.Easing != "" && a.Easing != DefaultEasing {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "easing"}, Value: a.Easing})
	}
	e.open(strings.Repeat("  ", depth), TagAttrAnim, attrs)
	e.w.WriteString(" </" + TagAttrAnim + ">\n")
}

func colorOf(el Element) (string, bool) {
	switch v := el.(type) {
	case *Cube:
		return v.Color, true
	case *Sphere:
		return v.Color, true
	case *Cylinder:
		return v.Color, true
	case *Light:
		return v.Color, true
	case *Label:
		return v.Color, true
	}
	return "", false
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
