package scene

import "encoding/json"

type jsonContent struct {
	Status string `json:"status"`
	Media  *Media `json:"media,omitempty"`
	Error  string `json:"error,omitempty"`
}

type jsonNode struct {
	ID        NodeID       `json:"id"`
	Kind      string       `json:"kind"`
	Tag       string       `json:"tag"`
	Name      string       `json:"name,omitempty"`
	Transform Transform    `json:"transform"`
	Geometry  *Geometry    `json:"geometry,omitempty"`
	Color     string       `json:"color,omitempty"`
	Src       string       `json:"src,omitempty"`
	Text      string       `json:"text,omitempty"`
	Anims     int          `json:"anims,omitempty"`
	Content   *jsonContent `json:"content,omitempty"`
	Children  []jsonNode   `json:"children,omitempty"`
}

// MarshalJSON writes the attached tree as nested objects, the shape a
// browser-side renderer consumes.
func (s *Scene) MarshalJSON() ([]byte, error) {
	if len(s.nodes) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(s.jsonNode(Root))
}

func (s *Scene) jsonNode(id NodeID) jsonNode {
	n := &s.nodes[id]
	out := jsonNode{
		ID:        n.ID,
		Kind:      n.Kind.String(),
		Tag:       n.Tag,
		Name:      n.Name,
		Transform: n.Transform,
		Src:       n.Src,
		Text:      n.Text,
		Anims:     len(n.Anims),
	}
	if n.Geometry != (Geometry{}) {
		g := n.Geometry
		out.Geometry = &g
	}
	switch n.Kind {
	case KindCube, KindSphere, KindCylinder, KindLight, KindLabel:
		out.Color = n.Color.Hex()
	}
	if n.Kind.IsMedia() {
		c := &jsonContent{Status: n.Content.Status.String(), Error: n.Content.Err}
		if n.Content.Status == ContentLoaded {
			m := n.Content.Media
			c.Media = &m
		} else {
			out.Color = n.Content.Color.Hex()
		}
		out.Content = c
	}
	for _, child := range n.Children {
		out.Children = append(out.Children, s.jsonNode(child))
	}
	return out
}
