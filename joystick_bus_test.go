// joystick_bus_test.go - Joystick device test suite

package main

import "testing"

// TestJoystick_PortDecodes tests each interface's address decode.
func TestJoystick_PortDecodes(t *testing.T) {
	testCases := []struct {
		name  string
		port  PortAddress
		match []uint16
		miss  []uint16
	}{
		{"Kempston", KempstonJoyPortAddress, []uint16{0x001F, 0xFA1F, 0x005F}, []uint16{0x003F, 0xFFFF}},
		{"Fuller", FullerJoyPortAddress, []uint16{0x007F, 0xAB7F}, []uint16{0x001F, 0x00FF}},
		{"SinclairLeft", SinclairLeftJoyPortAddress, []uint16{0xF7FE, 0xE7FE}, []uint16{0xEFFE, 0xFFFE}},
		{"SinclairRight", SinclairRightJoyPortAddress, []uint16{0xEFFE, 0xE7FE}, []uint16{0xF7FE, 0xFFFE}},
		{"Cursor", CursorJoyPortAddress, []uint16{0xEFFE, 0xF7FE, 0xE7FE}, []uint16{0xFFFE}},
	}
	for _, tc := range testCases {
		for _, port := range tc.match {
			if !tc.port.MatchPort(port) {
				t.Errorf("%s: port %#04x should match", tc.name, port)
			}
		}
		for _, port := range tc.miss {
			if tc.port.MatchPort(port) {
				t.Errorf("%s: port %#04x should not match", tc.name, port)
			}
		}
	}
}

// TestJoystick_KempstonState tests the active-high state byte.
func TestJoystick_KempstonState(t *testing.T) {
	var joy KempstonJoystickDevice
	if got := joy.PortRead(0x001F); got != 0x00 {
		t.Errorf("idle Kempston = %#02x, expected 0x00", got)
	}
	joy.SetDirections(DirUp | DirRight)
	joy.SetFire(true)
	if got := joy.PortRead(0x001F); got != 0x19 {
		t.Errorf("Kempston up+right+fire = %#02x, expected 0x19", got)
	}
	// Opposite directions on one axis cannot be held together.
	joy.SetDirections(DirLeft | DirRight)
	if got := joy.PortRead(0x001F) & 0x03; got != 0x02 {
		t.Errorf("Kempston left+right = %#02x, expected left only (0x02)", got)
	}
}

// TestJoystick_FullerState tests the active-low state byte.
func TestJoystick_FullerState(t *testing.T) {
	var joy FullerJoystickDevice
	if got := joy.PortRead(0x007F); got != 0xFF {
		t.Errorf("idle Fuller = %#02x, expected 0xFF", got)
	}
	joy.SetDirections(DirDown)
	joy.SetFire(true)
	if got := joy.PortRead(0x007F); got != 0xFF&^uint8(0x02)&^uint8(0x80) {
		t.Errorf("Fuller down+fire = %#02x, expected 0x7D", got)
	}
}

// TestJoystick_SinclairCursorRows tests the keyboard-row emulations.
func TestJoystick_SinclairCursorRows(t *testing.T) {
	left := SinclairJoystickDevice{Map: SinclairJoyLeftMap}
	left.SetDirections(DirLeft)
	if got := left.PortRead(0xF7FE); got != 0xFE {
		t.Errorf("Sinclair left stick key 1 = %#02x, expected 0xFE", got)
	}
	right := SinclairJoystickDevice{Map: SinclairJoyRightMap}
	right.SetFire(true)
	if got := right.PortRead(0xEFFE); got != 0xFE {
		t.Errorf("Sinclair right stick key 0 = %#02x, expected 0xFE", got)
	}

	var cursor CursorJoystickDevice
	cursor.SetDirections(DirLeft)
	if got := cursor.PortRead(0xF7FE); got != 0xEF {
		t.Errorf("Cursor left (key 5) = %#02x, expected 0xEF", got)
	}
	cursor.SetDirections(DirRight)
	if got := cursor.PortRead(0xEFFE); got != 0xFB {
		t.Errorf("Cursor right (key 8) = %#02x, expected 0xFB", got)
	}
}

// TestJoystick_WiredAnd tests a Kempston read combined with another
// device answering on the same port.
func TestJoystick_WiredAnd(t *testing.T) {
	downstream := newTestBusDevice(0x001F, 0xF0, nil)
	joy := NewKempstonJoystick(downstream)
	iface := joy.Joystick.(*KempstonJoystickDevice)
	iface.SetFire(true)
	// Force the raw all-directions pattern so the device presents the
	// full 0x1F; SetDirections would drop the conflicting axis halves.
	iface.joystickState.dir = DirUp | DirDown | DirLeft | DirRight

	data, _, ok := joy.ReadIO(0x001F, VideoTs{})
	if !ok {
		t.Fatal("joystick read not claimed")
	}
	if data != 0xF0&0x1F {
		t.Errorf("wired-AND read = %#02x, expected %#02x", data, 0xF0&0x1F)
	}
}

// TestJoystick_SelectNames tests name parsing with aliases.
func TestJoystick_SelectNames(t *testing.T) {
	testCases := []struct {
		name  string
		kind  JoystickKind
		count int
	}{
		{"Kempston", JoyKempston, 1},
		{"kempston", JoyKempston, 1},
		{"FULLER", JoyFuller, 1},
		{"Cursor", JoyCursor, 1},
		{"Protek", JoyCursor, 1},
		{"AGF", JoyCursor, 1},
		{"Sinclair", JoySinclair, 2},
		{"Interface II", JoySinclair, 2},
		{"Interface 2", JoySinclair, 2},
		{"IF II", JoySinclair, 2},
		{"if 2", JoySinclair, 2},
	}
	for _, tc := range testCases {
		sel, count, err := NewJoystickFromName(tc.name)
		if err != nil {
			t.Errorf("NewJoystickFromName(%q) failed: %v", tc.name, err)
			continue
		}
		if sel.Kind() != tc.kind || count != tc.count {
			t.Errorf("NewJoystickFromName(%q) = %v/%d, expected %v/%d",
				tc.name, sel.Kind(), count, tc.kind, tc.count)
		}
	}
	if _, _, err := NewJoystickFromName("Quickshot"); err == nil {
		t.Error("unknown joystick name should fail to parse")
	}
}

// TestJoystick_SelectIndex tests the global index mapping 0..4.
func TestJoystick_SelectIndex(t *testing.T) {
	testCases := []struct {
		global int
		kind   JoystickKind
		index  int
	}{
		{0, JoyKempston, 0},
		{1, JoyFuller, 0},
		{2, JoySinclair, 0},
		{3, JoySinclair, 1},
		{4, JoyCursor, 0},
	}
	for _, tc := range testCases {
		sel, index, err := NewJoystickWithIndex(tc.global)
		if err != nil {
			t.Errorf("NewJoystickWithIndex(%d) failed: %v", tc.global, err)
			continue
		}
		if sel.Kind() != tc.kind || index != tc.index {
			t.Errorf("NewJoystickWithIndex(%d) = %v/%d, expected %v/%d",
				tc.global, sel.Kind(), index, tc.kind, tc.index)
		}
	}
	if _, _, err := NewJoystickWithIndex(MAX_JOY_GLOBAL_INDEX + 1); err == nil {
		t.Error("out-of-range global index should fail")
	}
}

// TestJoystick_SelectRotation tests the cyclic rotation order:
// Kempston -> Fuller -> Sinclair[0] -> Sinclair[1] -> Cursor -> back.
func TestJoystick_SelectRotation(t *testing.T) {
	sel := NewJoystickSelect()
	index := 0
	order := []struct {
		kind  JoystickKind
		index int
	}{
		{JoyFuller, 0},
		{JoySinclair, 0},
		{JoySinclair, 1},
		{JoyCursor, 0},
		{JoyKempston, 0},
	}
	for i, expected := range order {
		index = sel.SelectNextJoystick(index)
		if sel.Kind() != expected.kind || index != expected.index {
			t.Fatalf("rotation step %d = %v/%d, expected %v/%d",
				i, sel.Kind(), index, expected.kind, expected.index)
		}
	}
	cursor, _, _ := NewJoystickFromName("Cursor")
	if !cursor.IsLast() || sel.IsLast() {
		t.Error("IsLast must track the Cursor variant only")
	}
}

// TestJoystick_SelectInterface tests stick access within variants.
func TestJoystick_SelectInterface(t *testing.T) {
	sel, _, _ := NewJoystickFromName("Sinclair")
	if sel.JoystickInterface(0) == nil || sel.JoystickInterface(1) == nil {
		t.Error("Sinclair must expose two sticks")
	}
	if sel.JoystickInterface(2) != nil {
		t.Error("Sinclair stick index 2 must not exist")
	}
	sel, _, _ = NewJoystickFromName("Kempston")
	if sel.JoystickInterface(0) == nil {
		t.Error("Kempston must expose one stick")
	}
	if sel.JoystickInterface(1) != nil {
		t.Error("Kempston stick index 1 must not exist")
	}
}

// TestJoystick_MultiDeviceRead tests the run-time selectable device
// on the bus, including the Sinclair double decode.
func TestJoystick_MultiDeviceRead(t *testing.T) {
	sel, _, _ := NewJoystickFromName("Sinclair")
	dev := NewMultiJoystickBusDevice(sel, nil)
	dev.Joystick.JoystickInterface(0).SetFire(true)
	dev.Joystick.JoystickInterface(1).SetDirections(DirUp)

	data, _, ok := dev.ReadIO(0xF7FE, VideoTs{})
	if !ok || data != 0xFF&^SinclairJoyLeftMap.Fire {
		t.Errorf("left row read = %#02x ok=%v, expected fire bit low", data, ok)
	}
	data, _, ok = dev.ReadIO(0xEFFE, VideoTs{})
	if !ok || data != 0xFF&^SinclairJoyRightMap.Up {
		t.Errorf("right row read = %#02x ok=%v, expected up bit low", data, ok)
	}
	// 0xE7FE drives both select lines: the rows AND together.
	data, _, ok = dev.ReadIO(0xE7FE, VideoTs{})
	if !ok || data != 0xFF&^SinclairJoyLeftMap.Fire&^SinclairJoyRightMap.Up {
		t.Errorf("double row read = %#02x ok=%v, expected both bits low", data, ok)
	}
	if _, _, ok := dev.ReadIO(0xFFFE, VideoTs{}); ok {
		t.Error("Sinclair claimed a row it does not decode")
	}
}
