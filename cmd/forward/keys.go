package main

import (
	"time"

	"github.com/om3d/forward/pkg/control"
)

// holdTime keeps a key down after its last press or repeat. Most terminals
// never report releases, so auto-repeat has to refresh it.
const holdTime = 250 * time.Millisecond

// Pointer units per terminal cell. A cell is two pixels tall.
const (
	lookPerColumn = 4.0
	lookPerRow    = 8.0
)

// keyState tracks held movement keys and mouse-look drags.
type keyState struct {
	until map[string]time.Time
	boost time.Time

	dragging     bool
	lastX, lastY int
	lookX, lookY float64
}

func newKeyState() *keyState {
	return &keyState{until: make(map[string]time.Time)}
}

func (k *keyState) press(name string, boost bool, now time.Time) {
	k.until[name] = now.Add(holdTime)
	if boost {
		k.boost = now.Add(holdTime)
	}
}

func (k *keyState) release(name string) {
	delete(k.until, name)
}

func (k *keyState) held(name string, now time.Time) bool {
	return now.Before(k.until[name])
}

func (k *keyState) startDrag(x, y int) {
	k.dragging = true
	k.lastX, k.lastY = x, y
}

func (k *keyState) drag(x, y int) {
	if !k.dragging {
		return
	}
	k.lookX += float64(x-k.lastX) * lookPerColumn
	k.lookY += float64(y-k.lastY) * lookPerRow
	k.lastX, k.lastY = x, y
}

func (k *keyState) stopDrag() {
	k.dragging = false
}

// input returns the controls for this frame and consumes the look delta.
func (k *keyState) input(now time.Time) control.Input {
	in := control.Input{
		Forward: k.held("w", now),
		Back:    k.held("s", now),
		Left:    k.held("a", now),
		Right:   k.held("d", now),
		Up:      k.held("space", now),
		Boost:   now.Before(k.boost),
		LookX:   k.lookX,
		LookY:   k.lookY,
	}
	k.lookX, k.lookY = 0, 0
	return in
}
