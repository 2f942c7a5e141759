package scene

import (
	"context"
	"time"
)

// Animator drives a scene in real time: every frame it applies finished
// media loads and advances animations by the wall-clock time since the
// previous frame.
type Animator struct {
	Scene *Scene
	Now   func() time.Time

	last time.Time
}

// NewAnimator returns an animator on the system clock.
func NewAnimator(s *Scene) *Animator {
	return &Animator{Scene: s, Now: time.Now}
}

// Frame runs one frame and returns the delta it advanced by. The first
// frame advances by zero.
func (a *Animator) Frame() time.Duration {
	now := a.Now()
	var dt time.Duration
	if !a.last.IsZero() {
		dt = now.Sub(a.last)
	}
	a.last = now

	a.Scene.Sync()
	a.Scene.Tick(dt.Seconds())
	return dt
}

// Run calls Frame at fps frames per second until ctx is done, invoking
// onFrame after each frame when it is non-nil.
func (a *Animator) Run(ctx context.Context, fps int, onFrame func(dt time.Duration)) error {
	if fps <= 0 {
		fps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		dt := a.Frame()
		if onFrame != nil {
			onFrame(dt)
		}
	}
}
