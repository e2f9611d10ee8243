package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMod_String(t *testing.T) {
	for _, tc := range [...]struct {
		mods Mod
		want string
	}{
		{0, "none"},
		{ModAlt, "alt"},
		{ModControl | ModAlt, "control+alt"},
		{ModShift | ModNumLock, "shift+num_lock"},
		{ModSuper | 1<<8, "super+0x100"},
		{1 << 8, "0x100"},
	} {
		assert.Equal(t, tc.want, tc.mods.String())
	}
}

func TestMod_Has(t *testing.T) {
	mods := ModControl | ModAlt
	assert.True(t, mods.Has(ModAlt))
	assert.True(t, mods.Has(ModControl|ModAlt))
	assert.False(t, mods.Has(ModAlt|ModShift))
	assert.True(t, mods.Has(0))
}

func TestKey_String(t *testing.T) {
	for key, want := range map[Key]string{
		KeyA:       "A",
		Key7:       "7",
		KeySlash:   "/",
		KeyEscape:  "escape",
		KeyF1:      "f1",
		KeyF12:     "f12",
		KeyKP0 + 3: "kp_3",
		KeyUnknown: "unknown",
		Key(1000):  "Key(1000)",
	} {
		assert.Equal(t, want, key.String())
	}
}

func TestKeyEvent_Digit(t *testing.T) {
	n, ok := KeyEvent{Key: Key3}.Digit()
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok = KeyEvent{Key: KeyKP9}.Digit()
	assert.True(t, ok)
	assert.Equal(t, 9, n)

	_, ok = KeyEvent{Key: KeyA}.Digit()
	assert.False(t, ok)
}

func TestDigitKey(t *testing.T) {
	assert.Equal(t, Key0, DigitKey(0))
	assert.Equal(t, Key9, DigitKey(9))
	assert.PanicsWithValue(t, "input: digit out of range: 10", func() { DigitKey(10) })
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "press", Press.String())
	assert.Equal(t, "Action(7)", Action(7).String())
}

func TestErrorEvent(t *testing.T) {
	var err error = ErrorEvent{Code: 0x10001, Description: "not initialized"}
	assert.EqualError(t, err, "input: backend error 0x10001: not initialized")
}
