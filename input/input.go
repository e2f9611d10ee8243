// Package input defines the event payloads delivered by window backends,
// modelled on the GLFW callback set. Backends enqueue values (not pointers)
// of these types, and layers type switch on them.
package input

import (
	"fmt"
	"strings"
)

// Action is the state change of a key or mouse button.
type Action int

const (
	Release Action = iota
	Press
	Repeat
)

func (x Action) String() string {
	switch x {
	case Release:
		return "release"
	case Press:
		return "press"
	case Repeat:
		return "repeat"
	default:
		return fmt.Sprintf("Action(%d)", int(x))
	}
}

// Mod is a bit set of modifier keys.
type Mod int

const (
	ModShift Mod = 1 << iota
	ModControl
	ModAlt
	ModSuper
	ModCapsLock
	ModNumLock
)

var modNames = [...]string{"shift", "control", "alt", "super", "caps_lock", "num_lock"}

// Has reports whether every modifier in mods is set.
func (x Mod) Has(mods Mod) bool {
	return x&mods == mods
}

// String formats the set as names joined by '+', e.g. "control+alt".
func (x Mod) String() string {
	if x == 0 {
		return "none"
	}
	var b strings.Builder
	for i, name := range modNames {
		if x&(1<<i) == 0 {
			continue
		}
		if b.Len() != 0 {
			b.WriteByte('+')
		}
		b.WriteString(name)
	}
	if rest := x &^ (1<<len(modNames) - 1); rest != 0 {
		if b.Len() != 0 {
			b.WriteByte('+')
		}
		fmt.Fprintf(&b, "%#x", int(rest))
	}
	return b.String()
}

// MouseButton identifies a mouse button, from 0.
type MouseButton int

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonRight
	MouseButtonMiddle
)

// Vec2 is a pair of float64 coordinates, e.g. a cursor position.
type Vec2 struct {
	X, Y float64
}

// Point is a pair of integer coordinates, e.g. a window position or size.
type Point struct {
	X, Y int
}

type (
	// KeyEvent reports a physical key changing state.
	KeyEvent struct {
		Key      Key
		Scancode int
		Action   Action
		Mods     Mod
	}

	// CharEvent reports a unicode character being input.
	CharEvent struct {
		Char rune
	}

	// CharModsEvent is CharEvent, with the modifiers held at the time.
	CharModsEvent struct {
		Char rune
		Mods Mod
	}

	// CursorPosEvent reports the cursor position, relative to the top left
	// of the content area.
	CursorPosEvent struct {
		Pos Vec2
	}

	// CursorEnterEvent reports the cursor entering or leaving the content area.
	CursorEnterEvent struct {
		Entered bool
	}

	MouseButtonEvent struct {
		Button MouseButton
		Action Action
		Mods   Mod
	}

	ScrollEvent struct {
		Offset Vec2
	}

	// DropEvent reports paths dropped onto the window.
	DropEvent struct {
		Paths []string
	}

	WindowPosEvent struct {
		Pos Point
	}

	WindowSizeEvent struct {
		Size Point
	}

	// WindowCloseEvent reports the user requesting the window be closed.
	WindowCloseEvent struct{}

	WindowRefreshEvent struct{}

	WindowFocusEvent struct {
		Focused bool
	}

	WindowIconifyEvent struct {
		Iconified bool
	}

	WindowMaximizeEvent struct {
		Maximized bool
	}

	FramebufferSizeEvent struct {
		Size Point
	}

	WindowContentScaleEvent struct {
		Scale Vec2
	}

	// ErrorEvent reports an asynchronous backend error.
	ErrorEvent struct {
		Code        int
		Description string
	}

	MonitorEvent struct {
		Monitor   string
		Connected bool
	}

	JoystickEvent struct {
		Joystick  int
		Connected bool
	}
)

// Error implements the error interface, allowing the event to be logged.
func (x ErrorEvent) Error() string {
	return fmt.Sprintf("input: backend error %#x: %s", x.Code, x.Description)
}

// Digit returns the number of a digit key (top row or keypad), and whether
// the key was a digit.
func (x KeyEvent) Digit() (int, bool) {
	switch {
	case x.Key >= Key0 && x.Key <= Key9:
		return int(x.Key - Key0), true
	case x.Key >= KeyKP0 && x.Key <= KeyKP9:
		return int(x.Key - KeyKP0), true
	default:
		return 0, false
	}
}
