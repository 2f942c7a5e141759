// Package anim evaluates attribute animations.
//
// A [Descriptor] is immutable; the only mutable state is the elapsed time in
// a [State], which callers store next to whatever they animate. [Advance] is
// a pure function from (state, descriptors, delta) to the new state and the
// channel values to write:
//
//	st, writes := anim.Advance(st, descs, 16.7)
//	for _, w := range writes {
//	    apply(w.Channel, w.Value)
//	}
//
// Every active descriptor writes its channel on every call, so a channel is
// always overwritten rather than nudged.
package anim

import (
	"math"

	"github.com/matzehuels/blockworld/pkg/mml"
)

// Channel is one transform component.
type Channel int

const (
	X Channel = iota
	Y
	Z
	RX
	RY
	RZ
	SX
	SY
	SZ
)

var channelNames = [...]string{"x", "y", "z", "rx", "ry", "rz", "sx", "sy", "sz"}

func (c Channel) String() string {
	if c < 0 || int(c) >= len(channelNames) {
		return "unknown"
	}
	return channelNames[c]
}

// IsRotation reports whether c is a rotation channel.
func (c Channel) IsRotation() bool { return c >= RX && c <= RZ }

// ParseChannel maps an attr name to its channel.
func ParseChannel(s string) (Channel, bool) {
	for i, n := range channelNames {
		if n == s {
			return Channel(i), true
		}
	}
	return 0, false
}

// Descriptor animates one channel from Start to End over Duration
// milliseconds, beginning StartTime milliseconds after the animation clock
// starts. Rotation values are in degrees.
type Descriptor struct {
	Channel   Channel
	Start     float64
	End       float64
	StartTime float64
	Duration  float64
	PingPong  bool
	Easing    Easing
}

// FromAttrAnim converts a parsed m-attr-anim. It reports false for unknown
// attrs and non-positive durations, which never write a channel.
func FromAttrAnim(a mml.AttrAnim) (Descriptor, bool) {
	ch, ok := ParseChannel(a.Attr)
	if !ok || !(a.Duration > 0) {
		return Descriptor{}, false
	}
	return Descriptor{
		Channel:   ch,
		Start:     a.Start,
		End:       a.End,
		StartTime: a.StartTime,
		Duration:  a.Duration,
		PingPong:  a.PingPong,
		Easing:    ParseEasing(a.Easing),
	}, true
}

// FromAttrAnims converts every usable animation, dropping the rest.
func FromAttrAnims(as []mml.AttrAnim) []Descriptor {
	var out []Descriptor
	for _, a := range as {
		if d, ok := FromAttrAnim(a); ok {
			out = append(out, d)
		}
	}
	return out
}

// Progress returns the eased position in [0, 1] at elapsed milliseconds, or
// false before StartTime.
func (d Descriptor) Progress(elapsedMs float64) (float64, bool) {
	if elapsedMs < d.StartTime || !(d.Duration > 0) {
		return 0, false
	}
	t := elapsedMs - d.StartTime
	p := math.Mod(t, d.Duration) / d.Duration
	if d.PingPong && int64(math.Floor(t/d.Duration))%2 == 1 {
		p = 1 - p
	}
	return d.Easing.Apply(p), true
}

// Value returns the channel value at elapsed milliseconds, in the units the
// descriptor was written in (degrees for rotations).
func Value(d Descriptor, elapsedMs float64) (float64, bool) {
	p, ok := d.Progress(elapsedMs)
	if !ok {
		return 0, false
	}
	return d.Start + (d.End-d.Start)*p, true
}

// State is the per-target animation clock.
type State struct {
	ElapsedMs float64
}

// Write is one channel assignment. Rotation values are in radians.
type Write struct {
	Channel Channel
	Value   float64
}

// Advance moves the clock forward by deltaMs and returns the value of every
// descriptor that has started, in descriptor order.
func Advance(st State, descs []Descriptor, deltaMs float64) (State, []Write) {
	st.ElapsedMs += deltaMs
	writes := make([]Write, 0, len(descs))
	for _, d := range descs {
		v, ok := Value(d, st.ElapsedMs)
		if !ok {
			continue
		}
		if d.Channel.IsRotation() {
			v = v * math.Pi / 180
		}
		writes = append(writes, Write{Channel: d.Channel, Value: v})
	}
	return st, writes
}
