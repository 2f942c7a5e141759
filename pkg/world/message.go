package world

// Message types.
const (
	TypeJoin    = "join"
	TypeUpdate  = "update"
	TypeWelcome = "welcome"
	TypeState   = "state"
)

// Vec3 is a world-space position.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Message is what clients send, and what the hub sends back on join.
type Message struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Pos  *Vec3  `json:"pos,omitempty"`
}

// Player is one entry of a room state.
type Player struct {
	Vec3
	Name string `json:"name,omitempty"`
}

// State is broadcast to a room after every change.
type State struct {
	Type    string            `json:"type"`
	Players map[string]Player `json:"players"`
}
