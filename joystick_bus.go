// joystick_bus.go - Joystick peripherals on the I/O bus

/*
joystick_bus.go - Joystick Bus Devices

Four joystick interfaces were common on the Spectrum, each decoding a
different slice of the I/O space:

  Kempston:  IN 0x1F, active-high 000FUDLR, idle 0x00
  Fuller:    IN 0x7F, active-low bits, idle 0xFF
  Sinclair:  keyboard half-rows 0xF7FE (keys 1-5) / 0xEFFE (keys 0-6)
  Cursor:    keyboard half-rows for keys 5/6/7/8/0 (Protek, AGF)

Each concrete device decodes its own port mask and produces a state
byte. JoystickBusDevice wires one device into the bus chain with
wired-AND read semantics; MultiJoystickBusDevice holds a JoystickSelect
so the attached interface can be swapped at run time.
*/

package main

import (
	"fmt"
	"strings"
)

// Directions is the set of currently held joystick directions.
type Directions uint8

const (
	DirUp Directions = 1 << iota
	DirDown
	DirLeft
	DirRight
)

// JoystickInterface is the user-input side of a joystick device.
type JoystickInterface interface {
	SetDirections(dir Directions)
	Directions() Directions
	SetFire(pressed bool)
	Fire() bool
}

// JoystickDevice is the bus side of a joystick device.
type JoystickDevice interface {
	PortRead(port uint16) uint8
	PortWrite(port uint16, data uint8) bool
}

// PortAddress decodes a device's slice of the I/O space.
type PortAddress struct {
	Mask uint16
	Bits uint16
	// Inverted devices (Cursor) match when the masked address differs
	// from the mask, catching several keyboard half-rows at once.
	Inverted bool
}

func (p PortAddress) MatchPort(addr uint16) bool {
	if p.Inverted {
		return addr&p.Mask != p.Mask
	}
	return addr&p.Mask == p.Bits&p.Mask
}

var (
	KempstonJoyPortAddress      = PortAddress{Mask: 0x0020, Bits: 0x001F}
	FullerJoyPortAddress        = PortAddress{Mask: 0x00FF, Bits: 0x007F}
	SinclairLeftJoyPortAddress  = PortAddress{Mask: 0x0800, Bits: 0xF7FE}
	SinclairRightJoyPortAddress = PortAddress{Mask: 0x1000, Bits: 0xEFFE}
	CursorJoyPortAddress        = PortAddress{Mask: 0x1800, Bits: 0xE7FE, Inverted: true}
)

// =============================================================================
// Joystick state common core
// =============================================================================

type joystickState struct {
	dir  Directions
	fire bool
}

func (j *joystickState) SetDirections(dir Directions) {
	// A real stick cannot point both ways on one axis; up wins over
	// down and left wins over right.
	if dir&(DirUp|DirDown) == DirUp|DirDown {
		dir &^= DirDown
	}
	if dir&(DirLeft|DirRight) == DirLeft|DirRight {
		dir &^= DirRight
	}
	j.dir = dir
}

func (j *joystickState) Directions() Directions { return j.dir }
func (j *joystickState) SetFire(pressed bool) { j.fire = pressed }
func (j *joystickState) Fire() bool { return j.fire }

// =============================================================================
// Concrete devices
// =============================================================================

// KempstonJoystickDevice: active-high 000FUDLR.
type KempstonJoystickDevice struct {
	joystickState
}

func (j *KempstonJoystickDevice) PortRead(port uint16) uint8 {
	var data uint8
	if j.dir&DirRight != 0 {
		data |= 0x01
	}
	if j.dir&DirLeft != 0 {
		data |= 0x02
	}
	if j.dir&DirDown != 0 {
		data |= 0x04
	}
	if j.dir&DirUp != 0 {
		data |= 0x08
	}
	if j.fire {
		data |= 0x10
	}
	return data
}

func (j *KempstonJoystickDevice) PortWrite(port uint16, data uint8) bool { return false }

// FullerJoystickDevice: active-low, fire on bit 7.
type FullerJoystickDevice struct {
	joystickState
}

func (j *FullerJoystickDevice) PortRead(port uint16) uint8 {
	data := uint8(0xFF)
	if j.dir&DirUp != 0 {
		data &^= 0x01
	}
	if j.dir&DirDown != 0 {
		data &^= 0x02
	}
	if j.dir&DirLeft != 0 {
		data &^= 0x04
	}
	if j.dir&DirRight != 0 {
		data &^= 0x08
	}
	if j.fire {
		data &^= 0x80
	}
	return data
}

func (j *FullerJoystickDevice) PortWrite(port uint16, data uint8) bool { return false }

// SinclairJoyMap maps stick state onto the five active-low key bits of
// one keyboard half-row.
type SinclairJoyMap struct {
	Left, Right, Down, Up, Fire uint8
}

// SinclairJoyLeftMap: keys 1-5 on port 0xF7FE.
var SinclairJoyLeftMap = SinclairJoyMap{Left: 0x01, Right: 0x02, Down: 0x04, Up: 0x08, Fire: 0x10}

// SinclairJoyRightMap: keys 0-6 on port 0xEFFE.
var SinclairJoyRightMap = SinclairJoyMap{Fire: 0x01, Up: 0x02, Down: 0x04, Right: 0x08, Left: 0x10}

// SinclairJoystickDevice emulates one Interface II stick.
type SinclairJoystickDevice struct {
	joystickState
	Map SinclairJoyMap
}

func (j *SinclairJoystickDevice) PortRead(port uint16) uint8 {
	data := uint8(0xFF)
	if j.dir&DirLeft != 0 {
		data &^= j.Map.Left
	}
	if j.dir&DirRight != 0 {
		data &^= j.Map.Right
	}
	if j.dir&DirDown != 0 {
		data &^= j.Map.Down
	}
	if j.dir&DirUp != 0 {
		data &^= j.Map.Up
	}
	if j.fire {
		data &^= j.Map.Fire
	}
	return data
}

func (j *SinclairJoystickDevice) PortWrite(port uint16, data uint8) bool { return false }

// CursorJoystickDevice emulates Protek/AGF cursor-key interfaces:
// left is key 5 on half-row 0xF7FE, the rest live on 0xEFFE.
type CursorJoystickDevice struct {
	joystickState
}

func (j *CursorJoystickDevice) PortRead(port uint16) uint8 {
	data := uint8(0xFF)
	if port&SinclairLeftJoyPortAddress.Mask == 0 {
		if j.dir&DirLeft != 0 {
			data &^= 0x10 // key 5
		}
	}
	if port&SinclairRightJoyPortAddress.Mask == 0 {
		if j.fire {
			data &^= 0x01 // key 0
		}
		if j.dir&DirDown != 0 {
			data &^= 0x10 // key 6
		}
		if j.dir&DirUp != 0 {
			data &^= 0x08 // key 7
		}
		if j.dir&DirRight != 0 {
			data &^= 0x04 // key 8
		}
	}
	return data
}

func (j *CursorJoystickDevice) PortWrite(port uint16, data uint8) bool { return false }

// =============================================================================
// Bus devices
// =============================================================================

// JoystickBusDevice wires one joystick device into the bus chain.
type JoystickBusDevice struct {
	Joystick JoystickDevice
	port     PortAddress
	bus      BusDevice
}

func NewJoystickBusDevice(joystick JoystickDevice, port PortAddress, next BusDevice) *JoystickBusDevice {
	if next == nil {
		next = &NullDevice{}
	}
	return &JoystickBusDevice{Joystick: joystick, port: port, bus: next}
}

// NewKempstonJoystick builds the common Kempston configuration.
func NewKempstonJoystick(next BusDevice) *JoystickBusDevice {
	return NewJoystickBusDevice(&KempstonJoystickDevice{}, KempstonJoyPortAddress, next)
}

func (j *JoystickBusDevice) ReadIO(port uint16, ts VideoTs) (uint8, uint16, bool) {
	data, ws, ok := j.bus.ReadIO(port, ts)
	if j.port.MatchPort(port) {
		joyData := j.Joystick.PortRead(port)
		if ok {
			return data & joyData, ws, true
		}
		return joyData, 0, true
	}
	return data, ws, ok
}

func (j *JoystickBusDevice) WriteIO(port uint16, data uint8, ts VideoTs) (uint16, bool) {
	if j.port.MatchPort(port) && j.Joystick.PortWrite(port, data) {
		return 0, true
	}
	return j.bus.WriteIO(port, data, ts)
}

func (j *JoystickBusDevice) Reset(ts VideoTs) { j.bus.Reset(ts) }
func (j *JoystickBusDevice) UpdateTimestamp(ts VideoTs) { j.bus.UpdateTimestamp(ts) }
func (j *JoystickBusDevice) NextFrame(ts VideoTs) { j.bus.NextFrame(ts) }
func (j *JoystickBusDevice) Next() BusDevice { return j.bus }

// =============================================================================
// JoystickSelect - run-time interface choice
// =============================================================================

// JoystickKind tags the JoystickSelect variants.
type JoystickKind int

const (
	JoyKempston JoystickKind = iota
	JoyFuller
	JoySinclair
	JoyCursor
)

// MAX_JOY_GLOBAL_INDEX is the largest global joystick index: Kempston,
// Fuller and Cursor count one each, Sinclair counts two.
const MAX_JOY_GLOBAL_INDEX = 4

// JoystickSelect is the run-time choice of joystick interface. The
// Sinclair variant carries two sticks; all others carry one.
type JoystickSelect struct {
	kind     JoystickKind
	kempston KempstonJoystickDevice
	fuller   FullerJoystickDevice
	sinclair [2]SinclairJoystickDevice
	cursor   CursorJoystickDevice
}

// NewJoystickSelect returns the default (Kempston) selection.
func NewJoystickSelect() JoystickSelect {
	var sel JoystickSelect
	sel.setKind(JoyKempston)
	return sel
}

func (s *JoystickSelect) setKind(kind JoystickKind) {
	*s = JoystickSelect{kind: kind}
	s.sinclair[0].Map = SinclairJoyLeftMap
	s.sinclair[1].Map = SinclairJoyRightMap
}

// NewJoystickFromName parses a joystick name (case-insensitive, with
// the period aliases) and returns the selection plus the number of
// sticks in the variant.
func NewJoystickFromName(name string) (JoystickSelect, int, error) {
	var sel JoystickSelect
	switch {
	case strings.EqualFold(name, "Kempston"):
		sel.setKind(JoyKempston)
		return sel, 1, nil
	case strings.EqualFold(name, "Fuller"):
		sel.setKind(JoyFuller)
		return sel, 1, nil
	case strings.EqualFold(name, "Cursor"),
		strings.EqualFold(name, "Protek"),
		strings.EqualFold(name, "AGF"):
		sel.setKind(JoyCursor)
		return sel, 1, nil
	case strings.EqualFold(name, "Sinclair"),
		strings.EqualFold(name, "Interface II"),
		strings.EqualFold(name, "Interface 2"),
		strings.EqualFold(name, "IF II"),
		strings.EqualFold(name, "IF 2"):
		sel.setKind(JoySinclair)
		return sel, 2, nil
	}
	return sel, 0, fmt.Errorf("unrecognized joystick name: %s", name)
}

// NewJoystickWithIndex maps a global index 0..4 to a selection and the
// stick index within it: 0=Kempston, 1=Fuller, 2/3=Sinclair, 4=Cursor.
func NewJoystickWithIndex(globalIndex int) (JoystickSelect, int, error) {
	var sel JoystickSelect
	switch globalIndex {
	case 0:
		sel.setKind(JoyKempston)
		return sel, 0, nil
	case 1:
		sel.setKind(JoyFuller)
		return sel, 0, nil
	case 2, 3:
		sel.setKind(JoySinclair)
		return sel, globalIndex - 2, nil
	case 4:
		sel.setKind(JoyCursor)
		return sel, 0, nil
	}
	return sel, 0, fmt.Errorf("joystick index out of range: %d", globalIndex)
}

// Kind returns the selected variant tag.
func (s *JoystickSelect) Kind() JoystickKind { return s.kind }

// Name returns the canonical variant name.
func (s *JoystickSelect) Name() string {
	switch s.kind {
	case JoyFuller:
		return "Fuller"
	case JoySinclair:
		return "Sinclair"
	case JoyCursor:
		return "Cursor"
	}
	return "Kempston"
}

// Len returns the number of sticks in the current variant.
func (s *JoystickSelect) Len() int {
	if s.kind == JoySinclair {
		return 2
	}
	return 1
}

// IsLast reports whether the rotation is at its final variant.
func (s *JoystickSelect) IsLast() bool { return s.kind == JoyCursor }

// JoystickInterface returns the input side of stick index within the
// current variant, or nil when the index does not exist.
func (s *JoystickSelect) JoystickInterface(index int) JoystickInterface {
	switch {
	case s.kind == JoyKempston && index == 0:
		return &s.kempston
	case s.kind == JoyFuller && index == 0:
		return &s.fuller
	case s.kind == JoySinclair && index < 2:
		return &s.sinclair[index]
	case s.kind == JoyCursor && index == 0:
		return &s.cursor
	}
	return nil
}

// SelectNextJoystick rotates to the next stick, crossing into the next
// variant when the current one is exhausted: Kempston -> Fuller ->
// Sinclair[0] -> Sinclair[1] -> Cursor -> Kempston. Returns the stick
// index within the (possibly new) variant.
func (s *JoystickSelect) SelectNextJoystick(index int) int {
	switch s.kind {
	case JoyKempston:
		s.setKind(JoyFuller)
	case JoyFuller:
		s.setKind(JoySinclair)
	case JoySinclair:
		if index == 0 {
			return 1
		}
		s.setKind(JoyCursor)
	case JoyCursor:
		s.setKind(JoyKempston)
	}
	return 0
}

// portRead resolves a read against the selected variant, honouring the
// per-variant port decodes; ok is false when no stick decodes port.
func (s *JoystickSelect) portRead(port uint16) (uint8, bool) {
	switch s.kind {
	case JoyKempston:
		if KempstonJoyPortAddress.MatchPort(port) {
			return s.kempston.PortRead(port), true
		}
	case JoyFuller:
		if FullerJoyPortAddress.MatchPort(port) {
			return s.fuller.PortRead(port), true
		}
	case JoySinclair:
		data, ok := uint8(0xFF), false
		if SinclairLeftJoyPortAddress.MatchPort(port) {
			data &= s.sinclair[0].PortRead(port)
			ok = true
		}
		if SinclairRightJoyPortAddress.MatchPort(port) {
			data &= s.sinclair[1].PortRead(port)
			ok = true
		}
		return data, ok
	case JoyCursor:
		if CursorJoyPortAddress.MatchPort(port) {
			return s.cursor.PortRead(port), true
		}
	}
	return 0xFF, false
}

// MultiJoystickBusDevice wires a JoystickSelect into the bus chain.
type MultiJoystickBusDevice struct {
	Joystick JoystickSelect
	bus      BusDevice
}

func NewMultiJoystickBusDevice(joystick JoystickSelect, next BusDevice) *MultiJoystickBusDevice {
	if next == nil {
		next = &NullDevice{}
	}
	return &MultiJoystickBusDevice{Joystick: joystick, bus: next}
}

func (m *MultiJoystickBusDevice) ReadIO(port uint16, ts VideoTs) (uint8, uint16, bool) {
	data, ws, ok := m.bus.ReadIO(port, ts)
	if joyData, joyOk := m.Joystick.portRead(port); joyOk {
		if ok {
			return data & joyData, ws, true
		}
		return joyData, 0, true
	}
	return data, ws, ok
}

func (m *MultiJoystickBusDevice) WriteIO(port uint16, data uint8, ts VideoTs) (uint16, bool) {
	return m.bus.WriteIO(port, data, ts)
}

func (m *MultiJoystickBusDevice) Reset(ts VideoTs) { m.bus.Reset(ts) }
func (m *MultiJoystickBusDevice) UpdateTimestamp(ts VideoTs) { m.bus.UpdateTimestamp(ts) }
func (m *MultiJoystickBusDevice) NextFrame(ts VideoTs) { m.bus.NextFrame(ts) }
func (m *MultiJoystickBusDevice) Next() BusDevice { return m.bus }
