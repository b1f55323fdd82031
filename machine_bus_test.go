// machine_bus_test.go - Bus device chain test suite

package main

import "testing"

// testBusDevice answers on one port and records bus traffic.
type testBusDevice struct {
	port    uint16
	data    uint8
	writes  []uint8
	resets  int
	updates int
	frames  int
	bus     BusDevice
}

func newTestBusDevice(port uint16, data uint8, next BusDevice) *testBusDevice {
	if next == nil {
		next = &NullDevice{}
	}
	return &testBusDevice{port: port, data: data, bus: next}
}

func (d *testBusDevice) ReadIO(port uint16, ts VideoTs) (uint8, uint16, bool) {
	busData, ws, ok := d.bus.ReadIO(port, ts)
	if port == d.port {
		if ok {
			return busData & d.data, ws, true
		}
		return d.data, 0, true
	}
	return busData, ws, ok
}

func (d *testBusDevice) WriteIO(port uint16, data uint8, ts VideoTs) (uint16, bool) {
	if port == d.port {
		d.writes = append(d.writes, data)
		return 0, true
	}
	return d.bus.WriteIO(port, data, ts)
}

func (d *testBusDevice) Reset(ts VideoTs) { d.resets++; d.bus.Reset(ts) }
func (d *testBusDevice) UpdateTimestamp(ts VideoTs) { d.updates++; d.bus.UpdateTimestamp(ts) }
func (d *testBusDevice) NextFrame(ts VideoTs) { d.frames++; d.bus.NextFrame(ts) }
func (d *testBusDevice) Next() BusDevice { return d.bus }

// TestBus_NullDevice tests the chain terminator decodes nothing.
func TestBus_NullDevice(t *testing.T) {
	var null NullDevice
	if _, _, ok := null.ReadIO(0x00FE, VideoTs{}); ok {
		t.Error("NullDevice claimed a port read")
	}
	if _, handled := null.WriteIO(0x00FE, 0xFF, VideoTs{}); handled {
		t.Error("NullDevice claimed a port write")
	}
	if null.Next() != nil {
		t.Error("NullDevice must terminate the chain")
	}
}

// TestBus_StaticChainWiredAnd tests that overlapping reads AND.
func TestBus_StaticChainWiredAnd(t *testing.T) {
	inner := newTestBusDevice(0x1234, 0xF0, nil)
	outer := newTestBusDevice(0x1234, 0x3C, inner)
	data, _, ok := outer.ReadIO(0x1234, VideoTs{})
	if !ok {
		t.Fatal("chained read not claimed")
	}
	if data != 0xF0&0x3C {
		t.Errorf("wired-AND read = %#02x, expected %#02x", data, 0xF0&0x3C)
	}
}

// TestBus_StaticChainWriteFirstMatch tests write consumption order.
func TestBus_StaticChainWriteFirstMatch(t *testing.T) {
	inner := newTestBusDevice(0x1234, 0xFF, nil)
	outer := newTestBusDevice(0x1234, 0xFF, inner)
	if _, handled := outer.WriteIO(0x1234, 0x42, VideoTs{}); !handled {
		t.Fatal("write not handled")
	}
	if len(outer.writes) != 1 || outer.writes[0] != 0x42 {
		t.Errorf("head writes = %v, expected [0x42]", outer.writes)
	}
	if len(inner.writes) != 0 {
		t.Error("write leaked past the first matching device")
	}
}

// TestBus_DynamicBus tests attach, detach, broadcast and dispatch of
// the run-time chain.
func TestBus_DynamicBus(t *testing.T) {
	dchain := NewDynamicBus(nil)
	if dchain.Len() != 0 {
		t.Fatalf("new dynamic bus length = %d, expected 0", dchain.Len())
	}
	if _, handled := dchain.WriteIO(0, 0, VideoTs{}); handled {
		t.Error("empty dynamic bus handled a write")
	}
	if _, _, ok := dchain.ReadIO(0, VideoTs{}); ok {
		t.Error("empty dynamic bus claimed a read")
	}

	index := dchain.AppendDevice(newTestBusDevice(0x7FFD, 0xBF, nil))
	if index != 0 || dchain.Len() != 1 {
		t.Fatalf("append: index=%d len=%d, expected 0/1", index, dchain.Len())
	}
	if !IsDevice[testBusDevice](dchain.Device(index)) {
		t.Error("IsDevice failed on the attached device")
	}
	if IsDevice[NullDevice](dchain.Device(index)) {
		t.Error("IsDevice matched the wrong type")
	}

	removed := dchain.RemoveDevice()
	if removed == nil || dchain.Len() != 0 {
		t.Fatal("remove did not detach the device")
	}

	dchain.AppendDevice(&NullDevice{})
	index1 := dchain.AppendDevice(newTestBusDevice(0x7FFD, 0xBF, nil))
	if index1 != 1 {
		t.Fatalf("second append index = %d, expected 1", index1)
	}
	dev := DeviceAs[testBusDevice](dchain.Device(index1))
	if dev == nil {
		t.Fatal("DeviceAs returned nil for the right type")
	}

	if _, handled := dchain.WriteIO(0x7FFD, 42, VideoTs{}); !handled {
		t.Error("dynamic write not dispatched")
	}
	if len(dev.writes) != 1 || dev.writes[0] != 42 {
		t.Errorf("dynamic device writes = %v, expected [42]", dev.writes)
	}
	if data, _, ok := dchain.ReadIO(0x7FFD, VideoTs{}); !ok || data != 0xBF {
		t.Errorf("dynamic read = %#02x ok=%v, expected 0xBF", data, ok)
	}
	if _, _, ok := dchain.ReadIO(0x0001, VideoTs{}); ok {
		t.Error("dynamic bus claimed an undecoded port")
	}

	dchain.Reset(VideoTs{})
	dchain.UpdateTimestamp(VideoTs{})
	dchain.NextFrame(VideoTs{})
	if dev.resets != 1 || dev.updates != 1 || dev.frames != 1 {
		t.Errorf("broadcasts = %d/%d/%d, expected 1/1/1", dev.resets, dev.updates, dev.frames)
	}
}

// TestBus_DynamicWiredAnd tests that the terminal chain result ANDs
// with every matching dynamic device.
func TestBus_DynamicWiredAnd(t *testing.T) {
	tail := newTestBusDevice(0x1234, 0xF3, nil)
	dchain := NewDynamicBus(tail)
	dchain.AppendDevice(newTestBusDevice(0x1234, 0x5F, nil))
	data, _, ok := dchain.ReadIO(0x1234, VideoTs{})
	if !ok || data != 0xF3&0x5F {
		t.Errorf("dynamic wired-AND = %#02x ok=%v, expected %#02x", data, ok, 0xF3&0x5F)
	}
}

// TestBus_FindDevice tests the typed chain scan across static and
// dynamic sections.
func TestBus_FindDevice(t *testing.T) {
	ay := NewAy3891xMelodik(UlaVideoProfile, nil)
	dyn := NewDynamicBus(ay)
	dyn.AppendDevice(newTestBusDevice(0x1234, 0xFF, nil))
	head := NewKempstonJoystick(dyn)

	if FindDevice[Ay3891xBusDevice](head) != ay {
		t.Error("FindDevice missed the static AY device")
	}
	if FindDevice[testBusDevice](head) == nil {
		t.Error("FindDevice missed the dynamic device")
	}
	if FindDevice[MultiJoystickBusDevice](head) != nil {
		t.Error("FindDevice found a device that is not attached")
	}
}

// TestBus_DeviceAsPanics tests the wrong-type downcast contract.
func TestBus_DeviceAsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("DeviceAs should panic on a wrong-type downcast")
		}
	}()
	DeviceAs[Ay3891xBusDevice](&NullDevice{})
}
