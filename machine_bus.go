// machine_bus.go - Composable I/O bus device chain

/*
machine_bus.go - Peripheral Bus Fabric

Peripherals attach to the Z80 I/O space as a daisy chain of BusDevice
links. The ULA holds the head of the chain and consults it on every
I/O machine cycle:

  - Reads: a device that decodes the port answers with its data byte.
    When several devices along the chain claim the same port the
    results combine by bitwise AND, reproducing open-collector bus
    wiring (an unclaimed line floats high).
  - Writes: the first device that decodes the port consumes the write;
    devices behind it never see it.
  - Reset / UpdateTimestamp / NextFrame: broadcast to every link.

Two composition styles exist: a static chain built by nesting links at
construction time, and DynamicBus, a container that owns an ordered
vector of devices added or removed at run time in front of a static
tail. Generic downcast helpers find a concrete peripheral by type.
*/

package main

// BusDevice is one link of the peripheral daisy chain. A device that
// does not decode a port must forward the call to its successor.
type BusDevice interface {
	// ReadIO returns the device's data byte for a decoded port read,
	// combined by wired-AND with anything further down the chain. ok
	// is false when no device in the chain decoded the port. ws is
	// the number of wait states the access inserts (0 for none).
	ReadIO(port uint16, ts VideoTs) (data uint8, ws uint16, ok bool)
	// WriteIO offers a port write to the chain. The first device that
	// decodes the port consumes it; devices behind it never see it.
	// handled reports whether any device did.
	WriteIO(port uint16, data uint8, ts VideoTs) (ws uint16, handled bool)
	// Reset puts the device in its power-on state.
	Reset(ts VideoTs)
	// UpdateTimestamp notifies the device of the current frame time.
	UpdateTimestamp(ts VideoTs)
	// NextFrame is called once per frame, just before the timestamp
	// wraps; devices holding frame-relative state roll it over here.
	NextFrame(ts VideoTs)
	// Next returns the successor link, or nil for the terminator.
	Next() BusDevice
}

// =============================================================================
// NullDevice - chain terminator
// =============================================================================

// NullDevice terminates every chain. It decodes nothing.
type NullDevice struct{}

func (*NullDevice) ReadIO(port uint16, ts VideoTs) (uint8, uint16, bool) {
	return 0xFF, 0, false
}

func (*NullDevice) WriteIO(port uint16, data uint8, ts VideoTs) (uint16, bool) {
	return 0, false
}

func (*NullDevice) Reset(ts VideoTs) {}
func (*NullDevice) UpdateTimestamp(ts VideoTs) {}
func (*NullDevice) NextFrame(ts VideoTs) {}
func (*NullDevice) Next() BusDevice { return nil }

// =============================================================================
// DynamicBus - run-time composition
// =============================================================================

// DynamicBus owns an ordered set of devices that can be attached and
// detached at run time, in front of a static tail chain. Access to the
// dynamic devices pays interface dispatch; the tail is consulted the
// same way a static chain would be.
type DynamicBus struct {
	devices []BusDevice
	bus     BusDevice
}

// NewDynamicBus creates an empty dynamic bus in front of tail. A nil
// tail is replaced by the null terminator.
func NewDynamicBus(tail BusDevice) *DynamicBus {
	if tail == nil {
		tail = &NullDevice{}
	}
	return &DynamicBus{bus: tail}
}

// Len returns the number of attached dynamic devices.
func (d *DynamicBus) Len() int { return len(d.devices) }

// AppendDevice attaches a device at the end of the dynamic section and
// returns its index.
func (d *DynamicBus) AppendDevice(dev BusDevice) int {
	d.devices = append(d.devices, dev)
	return len(d.devices) - 1
}

// RemoveDevice detaches and returns the last dynamic device, or nil.
func (d *DynamicBus) RemoveDevice() BusDevice {
	if len(d.devices) == 0 {
		return nil
	}
	dev := d.devices[len(d.devices)-1]
	d.devices = d.devices[:len(d.devices)-1]
	return dev
}

// Clear detaches all dynamic devices.
func (d *DynamicBus) Clear() { d.devices = nil }

// Device returns the dynamic device at index, or nil.
func (d *DynamicBus) Device(index int) BusDevice {
	if index < 0 || index >= len(d.devices) {
		return nil
	}
	return d.devices[index]
}

// Devices returns the dynamic section in chain order.
func (d *DynamicBus) Devices() []BusDevice { return d.devices }

func (d *DynamicBus) ReadIO(port uint16, ts VideoTs) (uint8, uint16, bool) {
	data, ws, ok := d.bus.ReadIO(port, ts)
	for _, dev := range d.devices {
		if dd, dws, dok := dev.ReadIO(port, ts); dok {
			if ok {
				data &= dd
			} else {
				data, ok = dd, true
			}
			if dws != 0 {
				ws = dws
			}
		}
	}
	return data, ws, ok
}

func (d *DynamicBus) WriteIO(port uint16, data uint8, ts VideoTs) (uint16, bool) {
	for _, dev := range d.devices {
		if ws, handled := dev.WriteIO(port, data, ts); handled {
			return ws, true
		}
	}
	return d.bus.WriteIO(port, data, ts)
}

func (d *DynamicBus) Reset(ts VideoTs) {
	for _, dev := range d.devices {
		dev.Reset(ts)
	}
	d.bus.Reset(ts)
}

func (d *DynamicBus) UpdateTimestamp(ts VideoTs) {
	for _, dev := range d.devices {
		dev.UpdateTimestamp(ts)
	}
	d.bus.UpdateTimestamp(ts)
}

func (d *DynamicBus) NextFrame(ts VideoTs) {
	for _, dev := range d.devices {
		dev.NextFrame(ts)
	}
	d.bus.NextFrame(ts)
}

func (d *DynamicBus) Next() BusDevice { return d.bus }

// =============================================================================
// Chain queries
// =============================================================================

// FindDevice walks a chain, descending into dynamic sections, and
// returns the first device of the concrete type T, or nil.
func FindDevice[T any](head BusDevice) *T {
	for dev := head; dev != nil; dev = dev.Next() {
		if hit, ok := any(dev).(*T); ok {
			return hit
		}
		if dyn, ok := dev.(*DynamicBus); ok {
			for _, dd := range dyn.devices {
				if hit, ok := any(dd).(*T); ok {
					return hit
				}
			}
		}
	}
	return nil
}

// DeviceAs downcasts a dynamic device to a concrete type. It panics
// when the device is not of type T: asking for the wrong type is a
// caller bug, not a runtime condition.
func DeviceAs[T any](dev BusDevice) *T {
	hit, ok := any(dev).(*T)
	if !ok {
		panic("machine bus: wrong dynamic device type")
	}
	return hit
}

// IsDevice reports whether a bus device is of concrete type T.
func IsDevice[T any](dev BusDevice) bool {
	_, ok := any(dev).(*T)
	return ok
}

// =============================================================================
// AY audio capability
// =============================================================================

// AyAudioBus is implemented by chain links that can render AY audio.
// It lets the ULA render the sound of whatever AY device is attached
// without locating it first.
type AyAudioBus interface {
	RenderAyAudioVts(blep Blep, timeRate TimeRate, endTs VideoTs, chans [3]int)
}

// renderAyAudioDownChain forwards an AY render request along the
// chain, fanning out across dynamic sections and stopping at the
// first static link that renders itself.
func renderAyAudioDownChain(head BusDevice, blep Blep, timeRate TimeRate, endTs VideoTs, chans [3]int) {
	for dev := head; dev != nil; dev = dev.Next() {
		if dyn, ok := dev.(*DynamicBus); ok {
			for _, dd := range dyn.devices {
				if ay, ok := dd.(AyAudioBus); ok {
					ay.RenderAyAudioVts(blep, timeRate, endTs, chans)
				}
			}
			continue
		}
		if ay, ok := dev.(AyAudioBus); ok {
			ay.RenderAyAudioVts(blep, timeRate, endTs, chans)
			return
		}
	}
}
