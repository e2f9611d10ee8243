package input

import (
	"fmt"
)

// Key identifies a physical key, using the GLFW key codes, which are the
// ASCII codes for printable keys.
type Key int

const (
	KeyUnknown Key = -1

	KeySpace      Key = 32
	KeyApostrophe Key = 39
	KeyComma      Key = 44
	KeyMinus      Key = 45
	KeyPeriod     Key = 46
	KeySlash      Key = 47

	Key0 Key = 48
	Key1 Key = 49
	Key2 Key = 50
	Key3 Key = 51
	Key4 Key = 52
	Key5 Key = 53
	Key6 Key = 54
	Key7 Key = 55
	Key8 Key = 56
	Key9 Key = 57

	KeySemicolon Key = 59
	KeyEqual     Key = 61

	KeyA Key = 65
	KeyZ Key = 90

	KeyLeftBracket  Key = 91
	KeyBackslash    Key = 92
	KeyRightBracket Key = 93
	KeyGraveAccent  Key = 96

	KeyEscape    Key = 256
	KeyEnter     Key = 257
	KeyTab       Key = 258
	KeyBackspace Key = 259
	KeyInsert    Key = 260
	KeyDelete    Key = 261
	KeyRight     Key = 262
	KeyLeft      Key = 263
	KeyDown      Key = 264
	KeyUp        Key = 265
	KeyPageUp    Key = 266
	KeyPageDown  Key = 267
	KeyHome      Key = 268
	KeyEnd       Key = 269

	KeyF1  Key = 290
	KeyF12 Key = 301

	KeyKP0 Key = 320
	KeyKP9 Key = 329

	KeyLeftShift    Key = 340
	KeyLeftControl  Key = 341
	KeyLeftAlt      Key = 342
	KeyLeftSuper    Key = 343
	KeyRightShift   Key = 344
	KeyRightControl Key = 345
	KeyRightAlt     Key = 346
	KeyRightSuper   Key = 347
)

var keyNames = map[Key]string{
	KeyUnknown:      "unknown",
	KeySpace:        "space",
	KeyEscape:       "escape",
	KeyEnter:        "enter",
	KeyTab:          "tab",
	KeyBackspace:    "backspace",
	KeyInsert:       "insert",
	KeyDelete:       "delete",
	KeyRight:        "right",
	KeyLeft:         "left",
	KeyDown:         "down",
	KeyUp:           "up",
	KeyPageUp:       "page_up",
	KeyPageDown:     "page_down",
	KeyHome:         "home",
	KeyEnd:          "end",
	KeyLeftShift:    "left_shift",
	KeyLeftControl:  "left_control",
	KeyLeftAlt:      "left_alt",
	KeyLeftSuper:    "left_super",
	KeyRightShift:   "right_shift",
	KeyRightControl: "right_control",
	KeyRightAlt:     "right_alt",
	KeyRightSuper:   "right_super",
}

func (x Key) String() string {
	if name, ok := keyNames[x]; ok {
		return name
	}
	switch {
	case x > KeySpace && x <= KeyGraveAccent:
		return string(rune(x))
	case x >= KeyF1 && x <= KeyF12:
		return fmt.Sprintf("f%d", int(x-KeyF1)+1)
	case x >= KeyKP0 && x <= KeyKP9:
		return fmt.Sprintf("kp_%d", int(x-KeyKP0))
	default:
		return fmt.Sprintf("Key(%d)", int(x))
	}
}

// DigitKey returns the top row key for digit n, which must be in [0, 9].
func DigitKey(n int) Key {
	if n < 0 || n > 9 {
		panic(fmt.Sprintf("input: digit out of range: %d", n))
	}
	return Key0 + Key(n)
}
