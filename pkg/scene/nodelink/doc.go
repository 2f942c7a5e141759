// Package nodelink draws a scene tree as a node-link diagram.
//
// Each attached node becomes a box labelled with its tag and markup id,
// connected to its children by arrows. Primitives are outlined in their
// own color, placeholders for unknown tags are dashed and grey, and media
// nodes whose content failed to load are outlined red.
//
//	dot := nodelink.ToDOT(s, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(dot)
//
// Rendering goes through an embedded Graphviz (WebAssembly build), so no
// external binaries are needed.
package nodelink
