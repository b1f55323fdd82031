// ay_bus.go - AY-3-891x register ports and change recorder on the bus

/*
ay_bus.go - AY-3-891x Bus Device

The sound chip appears to the Z80 as two ports: a register select
latch and a data port. Which addresses decode to them depends on the
interface the chip is mounted on:

  Melodik / 128k:  select+read  port & 0xC002 == 0xC000 (0xFFFD)
                   data write   port & 0xC002 == 0x8000 (0xBFFD)
  Fuller Box:      select+read  low byte 0x3F
                   data write   low byte 0x5F

Every data write is appended to an ordered per-frame change log of
{register, value, timestamp}; the synthesis engine consumes the log at
frame end. Reads return the register file contents through the
per-register read masks (unused bits read back zero; the I/O port
registers 14 and 15 read back the last value written to them).
*/

package main

// AyPortDecode describes how an AY mounting decodes its two ports.
type AyPortDecode struct {
	Name string
	// Mask-based matching (Melodik); ByteMatch switches to low-byte
	// equality matching (Fuller Box).
	SelectMask uint16
	SelectBits uint16
	DataMask   uint16
	DataBits   uint16
	ByteMatch  bool
}

var (
	// Ay128kPortDecode is the Melodik / 128k mounting.
	Ay128kPortDecode = AyPortDecode{
		Name:       "Melodik",
		SelectMask: 0xC002,
		SelectBits: 0xC000,
		DataMask:   0xC002,
		DataBits:   0x8000,
	}
	// AyFullerBoxPortDecode is the Fuller Box mounting.
	AyFullerBoxPortDecode = AyPortDecode{
		Name:       "Fuller Box",
		SelectBits: 0x003F,
		DataBits:   0x005F,
		ByteMatch:  true,
	}
)

func (p *AyPortDecode) IsSelect(port uint16) bool {
	if p.ByteMatch {
		return uint8(port) == uint8(p.SelectBits)
	}
	return port&p.SelectMask == p.SelectBits
}

func (p *AyPortDecode) IsDataWrite(port uint16) bool {
	if p.ByteMatch {
		return uint8(port) == uint8(p.DataBits)
	}
	return port&p.DataMask == p.DataBits
}

// IsDataRead reports whether a read of port returns the selected
// register; on both mountings reads share the select address.
func (p *AyPortDecode) IsDataRead(port uint16) bool {
	return p.IsSelect(port)
}

// ayRegReadMask zeroes the bits a register does not implement.
var ayRegReadMask = [AY_REG_COUNT]uint8{
	0xFF, 0x0F, 0xFF, 0x0F, 0xFF, 0x0F, 0x1F, 0xFF,
	0x1F, 0x1F, 0x1F, 0xFF, 0xFF, 0x0F, 0xFF, 0xFF,
}

// ayRecordedChange is a register write with its video timestamp; it is
// flattened to frame T-states when the log is drained.
type ayRecordedChange struct {
	Ts  VideoTs
	Reg uint8
	Val uint8
}

// Ay3891xIo is the chip's register file and port latch, with the
// per-frame change recorder.
type Ay3891xIo struct {
	regs     [AY_REG_COUNT]uint8
	selected uint8
	recorder []ayRecordedChange
	drained  []AyRegChange
	vslWrap  int16
}

// NewAy3891xIo creates the register file. vslCount is the owning
// frame's scan line count, used to roll undrained change timestamps
// into the next frame.
func NewAy3891xIo(vslCount int16) *Ay3891xIo {
	return &Ay3891xIo{vslWrap: vslCount}
}

// SelectPortWrite latches the register address. Only values 0-15
// address the chip; anything else deselects it.
func (io *Ay3891xIo) SelectPortWrite(val uint8) {
	io.selected = val
}

// SelectedReg returns the latched register index and whether it
// addresses the chip.
func (io *Ay3891xIo) SelectedReg() (uint8, bool) {
	return io.selected & 0x0F, io.selected < AY_REG_COUNT
}

// DataPortWrite stores a value into the selected register and records
// the change with its frame timestamp.
func (io *Ay3891xIo) DataPortWrite(val uint8, ts VideoTs) {
	reg, ok := io.SelectedReg()
	if !ok {
		return
	}
	io.regs[reg] = val
	io.recorder = append(io.recorder, ayRecordedChange{Ts: ts, Reg: reg, Val: val})
}

// DataPortRead returns the selected register through its read mask,
// or the floating bus value when the chip is deselected.
func (io *Ay3891xIo) DataPortRead() uint8 {
	reg, ok := io.SelectedReg()
	if !ok {
		return 0xFF
	}
	return io.regs[reg] & ayRegReadMask[reg]
}

// Reg returns a register's current value.
func (io *Ay3891xIo) Reg(reg uint8) uint8 {
	return io.regs[reg&0x0F]
}

// Reset clears the register file, the latch and the recorder.
func (io *Ay3891xIo) Reset() {
	io.regs = [AY_REG_COUNT]uint8{}
	io.selected = 0
	io.recorder = io.recorder[:0]
}

// NextFrame rolls undrained change timestamps into the next frame.
func (io *Ay3891xIo) NextFrame() {
	for i := range io.recorder {
		io.recorder[i].Ts.Vc -= io.vslWrap
	}
}

// DrainRegChanges flattens the recorded changes to frame T-states and
// clears the log. The returned slice is valid until the next drain.
func (io *Ay3891xIo) DrainRegChanges(profile *VideoFrameProfile) []AyRegChange {
	io.drained = io.drained[:0]
	for _, rec := range io.recorder {
		io.drained = append(io.drained, AyRegChange{
			Time: profile.VtsToTstates(rec.Ts),
			Reg:  rec.Reg,
			Val:  rec.Val,
		})
	}
	io.recorder = io.recorder[:0]
	return io.drained
}

// =============================================================================
// Bus device
// =============================================================================

// Ay3891xBusDevice mounts the sound generator and its I/O ports on the
// bus chain.
type Ay3891xBusDevice struct {
	AySound *Ay3891xAudio
	AyIo    *Ay3891xIo
	decode  AyPortDecode
	profile *VideoFrameProfile
	bus     BusDevice
}

// NewAy3891xMelodik builds the Melodik / 128k mounting.
func NewAy3891xMelodik(profile *VideoFrameProfile, next BusDevice) *Ay3891xBusDevice {
	return newAyBusDevice(Ay128kPortDecode, profile, next)
}

// NewAy3891xFullerBox builds the Fuller Box mounting.
func NewAy3891xFullerBox(profile *VideoFrameProfile, next BusDevice) *Ay3891xBusDevice {
	return newAyBusDevice(AyFullerBoxPortDecode, profile, next)
}

func newAyBusDevice(decode AyPortDecode, profile *VideoFrameProfile, next BusDevice) *Ay3891xBusDevice {
	if next == nil {
		next = &NullDevice{}
	}
	return &Ay3891xBusDevice{
		AySound: NewAy3891xAudio(),
		AyIo:    NewAy3891xIo(profile.VslCount),
		decode:  decode,
		profile: profile,
		bus:     next,
	}
}

func (d *Ay3891xBusDevice) Name() string { return "AY-3-8913 (" + d.decode.Name + ")" }

func (d *Ay3891xBusDevice) ReadIO(port uint16, ts VideoTs) (uint8, uint16, bool) {
	if d.decode.IsDataRead(port) {
		return d.AyIo.DataPortRead(), 0, true
	}
	return d.bus.ReadIO(port, ts)
}

func (d *Ay3891xBusDevice) WriteIO(port uint16, data uint8, ts VideoTs) (uint16, bool) {
	switch {
	case d.decode.IsSelect(port):
		d.AyIo.SelectPortWrite(data)
		return 0, true
	case d.decode.IsDataWrite(port):
		d.AyIo.DataPortWrite(data, ts)
		return 0, true
	}
	return d.bus.WriteIO(port, data, ts)
}

func (d *Ay3891xBusDevice) Reset(ts VideoTs) {
	d.AySound.Reset()
	d.AyIo.Reset()
	d.bus.Reset(ts)
}

func (d *Ay3891xBusDevice) UpdateTimestamp(ts VideoTs) {
	d.bus.UpdateTimestamp(ts)
}

func (d *Ay3891xBusDevice) NextFrame(ts VideoTs) {
	d.AyIo.NextFrame()
	d.bus.NextFrame(ts)
}

func (d *Ay3891xBusDevice) Next() BusDevice { return d.bus }

// RenderAyAudioVts drains the change log and renders this frame's
// sound through the measured AY amplitude curve.
func (d *Ay3891xBusDevice) RenderAyAudioVts(blep Blep, timeRate TimeRate, endTs VideoTs, chans [3]int) {
	changes := d.AyIo.DrainRegChanges(d.profile)
	end := d.profile.VtsToTstates(endTs)
	d.AySound.RenderAudio(changes, blep, AyAmpLevel, timeRate, end, chans)
}
