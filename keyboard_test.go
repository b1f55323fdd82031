// keyboard_test.go - Keyboard matrix test suite

package main

import "testing"

// TestKeyboard_MatrixReads tests half-row selection and combination.
func TestKeyboard_MatrixReads(t *testing.T) {
	var m ZXKeyboardMap
	m = m.Key(KeyRowCapsV, 0, true) // CAPS
	m = m.Key(KeyRowSpaceB, 0, true) // SPACE

	if got := m.ReadKeyboard(0xFE); got != 0x1E {
		t.Errorf("CAPS row = %#02x, expected 0x1E", got)
	}
	if got := m.ReadKeyboard(0x7F); got != 0x1E {
		t.Errorf("SPACE row = %#02x, expected 0x1E", got)
	}
	if got := m.ReadKeyboard(0xFD); got != 0x1F {
		t.Errorf("A-G row = %#02x, expected idle 0x1F", got)
	}
	// Selecting both rows at once ANDs the key states.
	if got := m.ReadKeyboard(0x7E); got != 0x1E {
		t.Errorf("combined rows = %#02x, expected 0x1E", got)
	}

	m = m.Key(KeyRowCapsV, 0, false)
	if got := m.ReadKeyboard(0xFE); got != 0x1F {
		t.Errorf("released CAPS row = %#02x, expected 0x1F", got)
	}
	if !m.IsPressed(KeyRowSpaceB, 0) {
		t.Error("SPACE must still be held")
	}
}
