// Package world relays player positions between visitors of the same block.
//
// Clients connect over a websocket, announce themselves with a join message
// and then stream position updates. After every change the hub broadcasts
// the full room state to everyone in the room:
//
//	→ {"type":"join","id":"","name":"satoshi"}
//	← {"type":"welcome","id":"6f1c…"}
//	→ {"type":"update","id":"6f1c…","pos":{"x":1,"y":0,"z":2}}
//	← {"type":"state","players":{"6f1c…":{"x":1,"y":0,"z":2,"name":"satoshi"}}}
//
// The hub is a thin pass-through: it keeps the last position per player in
// memory, orders nothing, and forgets a player when the connection closes.
package world
