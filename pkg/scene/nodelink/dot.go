package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/blockworld/pkg/scene"
)

// Options configures scene tree rendering.
type Options struct {
	// Detailed adds kind, geometry, media and animation lines to labels.
	// When false, only the tag and markup id are shown.
	Detailed bool
}

// ToDOT converts the attached part of a scene to Graphviz DOT, one box per
// node with edges from parent to child. The result can be rendered with
// [RenderSVG] or [RenderPNG].
//
// Placeholder nodes (unknown tags) are drawn dashed with a grey fill.
func ToDOT(s *scene.Scene, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=24, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	var edges []string
	s.Walk(func(n *scene.Node) bool {
		attrs := fmtAttrs(n, fmtLabel(n, opts.Detailed))
		fmt.Fprintf(&buf, "  %q [%s];\n", nodeName(n.ID), strings.Join(attrs, ", "))
		for _, c := range n.Children {
			edges = append(edges, fmt.Sprintf("  %q -> %q;\n", nodeName(n.ID), nodeName(c)))
		}
		return true
	})

	buf.WriteString("\n")
	for _, e := range edges {
		buf.WriteString(e)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeName(id scene.NodeID) string { return "n" + strconv.Itoa(int(id)) }

func fmtLabel(n *scene.Node, detailed bool) string {
	head := n.Tag
	if n.Name != "" {
		head += "#" + n.Name
	}
	if !detailed {
		return head
	}

	parts := []string{"kind: " + n.Kind.String()}
	g := n.Geometry
	switch n.Kind {
	case scene.KindCube:
		parts = append(parts, fmt.Sprintf("size: %g x %g x %g", g.Width, g.Height, g.Depth))
	case scene.KindSphere:
		parts = append(parts, fmt.Sprintf("radius: %g", g.Radius))
	case scene.KindCylinder:
		parts = append(parts, fmt.Sprintf("radius: %g/%g height: %g", g.RadiusTop, g.RadiusBottom, g.Height))
	case scene.KindLabel:
		parts = append(parts, "text: "+n.Text)
	}
	p := n.Transform.Position
	parts = append(parts, fmt.Sprintf("pos: %g %g %g", p.X, p.Y, p.Z))
	if n.Src != "" {
		parts = append(parts, "src: "+n.Src)
	}
	if n.Kind.IsMedia() {
		parts = append(parts, "content: "+n.Content.Status.String())
	}
	if len(n.Anims) > 0 {
		parts = append(parts, fmt.Sprintf("anims: %d", len(n.Anims)))
	}
	return head + "\n" + strings.Join(parts, "\n")
}

func fmtAttrs(n *scene.Node, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch {
	case n.Kind == scene.KindPlaceholder:
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey", "fontcolor=black")
	case n.Kind == scene.KindCube || n.Kind == scene.KindSphere || n.Kind == scene.KindCylinder:
		attrs = append(attrs, fmt.Sprintf("color=%q", n.Color.Hex()), "penwidth=3")
	case n.Kind.IsMedia() && n.Content.Status == scene.ContentFailed:
		attrs = append(attrs, "color=red")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	out, err := render(dot, graphviz.SVG)
	if err != nil {
		return nil, err
	}
	return normalizeViewBox(out), nil
}

// RenderPNG renders a DOT graph to PNG using Graphviz.
func RenderPNG(dot string) ([]byte, error) {
	return render(dot, graphviz.PNG)
}

func render(dot string, format graphviz.Format) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
