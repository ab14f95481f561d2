// Package gesture classifies pointer gestures on the editing surface and
// normalizes the selection a drag leaves behind.
package gesture

// Tracker tells drags from clicks. A gesture is a drag when the pointer moved
// between PointerDown and PointerUp.
type Tracker struct {
	pressed bool
	moved   bool
}

// PointerDown starts a new gesture and forgets the previous one.
func (t *Tracker) PointerDown() {
	t.pressed = true
	t.moved = false
}

// PointerMove latches movement while the pointer is held.
func (t *Tracker) PointerMove() {
	if t.pressed {
		t.moved = true
	}
}

// PointerUp ends the gesture and reports whether it was a drag.
func (t *Tracker) PointerUp() bool {
	drag := t.pressed && t.moved
	t.pressed = false
	t.moved = false
	return drag
}

// Pressed reports whether a gesture is in progress.
func (t *Tracker) Pressed() bool {
	return t.pressed
}
