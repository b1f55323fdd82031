// cpu_z80.go - Z80 CPU engine with clocked machine cycles

/*
cpu_z80.go - Z80 CPU Engine

A Zilog Z80 implementing the CPU contract the ULA drives. Unlike a
free-running core, every machine cycle is routed through the frame
clock before its host callback fires, so ULA memory contention lands
on the exact T-state of the access that caused it:

  opcode fetch   clk.AddM1(pc)      4 T-states, refresh R
  memory access  clk.AddMreq(addr)  3 T-states
  internal ops   clk.AddNoMreq(a,n) n single T-states on address a
  port access    clk.AddIo(port)    4 T-states, ULA I/O contention

Execution runs until the clock's scan line reaches a limit or a break
surfaces: HALT hands control back so the ULA can fast-forward the
halted state, and a port write may request a break so the caller can
observe the machine before execution continues.
*/

package main

import "math/bits"

const (
	z80FlagS  = 0x80
	z80FlagZ  = 0x40
	z80FlagY  = 0x20
	z80FlagH  = 0x10
	z80FlagX  = 0x08
	z80FlagPV = 0x04
	z80FlagN  = 0x02
	z80FlagC  = 0x01
)

const (
	HALT_OPCODE  = 0x76
	nmiVector    = 0x0066
	irqVectorIM1 = 0x0038
)

// index modes for the DD/FD prefixes
const (
	ixNone = iota
	ixIX
	ixIY
)

// Z80 is the CPU state. Registers are exported pairwise through
// accessors; the flat fields keep the hot paths free of packing.
type Z80 struct {
	a, f             uint8
	b, c, d, e, h, l uint8
	a2, f2           uint8
	b2, c2           uint8
	d2, e2           uint8
	h2, l2           uint8
	ixh, ixl         uint8
	iyh, iyl         uint8
	sp, pc           uint16
	i, r             uint8
	im               uint8
	iff1, iff2       bool

	halted   bool
	eiDelay  bool
	brkWrite bool

	// RetiBreak makes ExecuteWithLimit return BreakReti after every
	// RETI, for peripherals that must observe interrupt returns.
	RetiBreak bool
}

// NewZ80 returns a CPU in its power-on state.
func NewZ80() *Z80 {
	cpu := &Z80{}
	cpu.Reset()
	return cpu
}

// Reset puts the CPU in its power-on state.
func (c *Z80) Reset() {
	*c = Z80{RetiBreak: c.RetiBreak}
	c.sp = 0xFFFF
	c.a, c.f = 0xFF, 0xFF
}

// =============================================================================
// Register accessors
// =============================================================================

func (c *Z80) PC() uint16 { return c.pc }
func (c *Z80) SetPC(pc uint16) { c.pc = pc }
func (c *Z80) SP() uint16 { return c.sp }
func (c *Z80) SetSP(sp uint16) { c.sp = sp }
func (c *Z80) R() uint8 { return c.r }
func (c *Z80) IsHalted() bool { return c.halted }

// AddR advances the refresh register by delta M1 cycles, preserving
// bit 7 as the hardware does.
func (c *Z80) AddR(delta int32) {
	c.r = c.r&0x80 | uint8(int32(c.r)+delta)&0x7F
}

func (c *Z80) AF() uint16 { return uint16(c.a)<<8 | uint16(c.f) }
func (c *Z80) BC() uint16 { return uint16(c.b)<<8 | uint16(c.c) }
func (c *Z80) DE() uint16 { return uint16(c.d)<<8 | uint16(c.e) }
func (c *Z80) HL() uint16 { return uint16(c.h)<<8 | uint16(c.l) }
func (c *Z80) IX() uint16 { return uint16(c.ixh)<<8 | uint16(c.ixl) }
func (c *Z80) IY() uint16 { return uint16(c.iyh)<<8 | uint16(c.iyl) }

func (c *Z80) SetAF(v uint16) { c.a, c.f = uint8(v>>8), uint8(v) }
func (c *Z80) SetBC(v uint16) { c.b, c.c = uint8(v>>8), uint8(v) }
func (c *Z80) SetDE(v uint16) { c.d, c.e = uint8(v>>8), uint8(v) }
func (c *Z80) SetHL(v uint16) { c.h, c.l = uint8(v>>8), uint8(v) }
func (c *Z80) SetIX(v uint16) { c.ixh, c.ixl = uint8(v>>8), uint8(v) }
func (c *Z80) SetIY(v uint16) { c.iyh, c.iyl = uint8(v>>8), uint8(v) }

func (c *Z80) irAddr() uint16 { return uint16(c.i)<<8 | uint16(c.r) }

func (c *Z80) incR() { c.r = c.r&0x80 | (c.r+1)&0x7F }

func (c *Z80) ixy(ix int) uint16 {
	switch ix {
	case ixIX:
		return c.IX()
	case ixIY:
		return c.IY()
	}
	return c.HL()
}

func (c *Z80) setIxy(ix int, v uint16) {
	switch ix {
	case ixIX:
		c.SetIX(v)
	case ixIY:
		c.SetIY(v)
	default:
		c.SetHL(v)
	}
}

// reg8 resolves an encoded 8-bit register operand. Index 6 ((HL)) is
// the caller's responsibility. Under an index prefix H and L address
// the index register halves.
func (c *Z80) reg8(idx uint8, ix int) *uint8 {
	switch idx {
	case 0:
		return &c.b
	case 1:
		return &c.c
	case 2:
		return &c.d
	case 3:
		return &c.e
	case 4:
		switch ix {
		case ixIX:
			return &c.ixh
		case ixIY:
			return &c.iyh
		}
		return &c.h
	case 5:
		switch ix {
		case ixIX:
			return &c.ixl
		case ixIY:
			return &c.iyl
		}
		return &c.l
	}
	return &c.a
}

// =============================================================================
// Clocked bus primitives
// =============================================================================

func (c *Z80) fetchOp(host MemIoHost, clk *FrameClock) uint8 {
	ts := clk.AddM1(c.pc)
	op := host.ReadMemM1(c.pc, c.irAddr(), ts)
	c.pc++
	c.incR()
	return op
}

func (c *Z80) rd(host MemIoHost, clk *FrameClock, addr uint16) uint8 {
	ts := clk.AddMreq(addr)
	return host.ReadMem(addr, ts)
}

func (c *Z80) wr(host MemIoHost, clk *FrameClock, addr uint16, val uint8) {
	ts := clk.AddMreq(addr)
	host.WriteMem(addr, val, ts)
}

func (c *Z80) rd16(host MemIoHost, clk *FrameClock, addr uint16) uint16 {
	lo := c.rd(host, clk, addr)
	hi := c.rd(host, clk, addr+1)
	return uint16(hi)<<8 | uint16(lo)
}

func (c *Z80) wr16(host MemIoHost, clk *FrameClock, addr uint16, val uint16) {
	c.wr(host, clk, addr, uint8(val))
	c.wr(host, clk, addr+1, uint8(val>>8))
}

func (c *Z80) imm8(host MemIoHost, clk *FrameClock) uint8 {
	v := c.rd(host, clk, c.pc)
	c.pc++
	return v
}

func (c *Z80) imm16(host MemIoHost, clk *FrameClock) uint16 {
	lo := c.imm8(host, clk)
	hi := c.imm8(host, clk)
	return uint16(hi)<<8 | uint16(lo)
}

func (c *Z80) in(host MemIoHost, clk *FrameClock, port uint16) uint8 {
	ts := clk.AddIo(port)
	data, ws := host.ReadIO(port, ts)
	if ws != 0 {
		clk.AddWait(ws)
	}
	return data
}

func (c *Z80) out(host MemIoHost, clk *FrameClock, port uint16, val uint8) {
	ts := clk.AddIo(port)
	ws, brk := host.WriteIO(port, val, ts)
	if ws != 0 {
		clk.AddWait(ws)
	}
	if brk {
		c.brkWrite = true
	}
}

func (c *Z80) push16(host MemIoHost, clk *FrameClock, val uint16) {
	c.sp--
	c.wr(host, clk, c.sp, uint8(val>>8))
	c.sp--
	c.wr(host, clk, c.sp, uint8(val))
}

func (c *Z80) pop16(host MemIoHost, clk *FrameClock) uint16 {
	lo := c.rd(host, clk, c.sp)
	c.sp++
	hi := c.rd(host, clk, c.sp)
	c.sp++
	return uint16(hi)<<8 | uint16(lo)
}

// effAddr resolves the memory operand address: (HL), or (IX+d) with
// the displacement fetch and its five internal T-states.
func (c *Z80) effAddr(host MemIoHost, clk *FrameClock, ix int) uint16 {
	if ix == ixNone {
		return c.HL()
	}
	d := int8(c.imm8(host, clk))
	clk.AddNoMreq(c.pc-1, 5)
	return c.ixy(ix) + uint16(int16(d))
}

// =============================================================================
// Flag helpers
// =============================================================================

func parity8(v uint8) uint8 {
	if bits.OnesCount8(v)&1 == 0 {
		return z80FlagPV
	}
	return 0
}

func szxyFlags(v uint8) uint8 {
	f := v & (z80FlagS | z80FlagX | z80FlagY)
	if v == 0 {
		f |= z80FlagZ
	}
	return f
}

func (c *Z80) adc8(v, cf uint8) {
	a := c.a
	res := uint16(a) + uint16(v) + uint16(cf)
	r := uint8(res)
	f := szxyFlags(r)
	if (a^v^r)&0x10 != 0 {
		f |= z80FlagH
	}
	if (a^v)&0x80 == 0 && (a^r)&0x80 != 0 {
		f |= z80FlagPV
	}
	if res > 0xFF {
		f |= z80FlagC
	}
	c.a, c.f = r, f
}

func (c *Z80) sbc8(v, cf uint8) {
	a := c.a
	res := uint16(a) - uint16(v) - uint16(cf)
	r := uint8(res)
	f := szxyFlags(r) | z80FlagN
	if (a^v^r)&0x10 != 0 {
		f |= z80FlagH
	}
	if (a^v)&0x80 != 0 && (a^r)&0x80 != 0 {
		f |= z80FlagPV
	}
	if res > 0xFF {
		f |= z80FlagC
	}
	c.a, c.f = r, f
}

func (c *Z80) and8(v uint8) {
	c.a &= v
	c.f = szxyFlags(c.a) | parity8(c.a) | z80FlagH
}

func (c *Z80) xor8(v uint8) {
	c.a ^= v
	c.f = szxyFlags(c.a) | parity8(c.a)
}

func (c *Z80) or8(v uint8) {
	c.a |= v
	c.f = szxyFlags(c.a) | parity8(c.a)
}

// cp8: SUB flags with the operand's X/Y bits, A unchanged.
func (c *Z80) cp8(v uint8) {
	a := c.a
	res := uint16(a) - uint16(v)
	r := uint8(res)
	f := r&z80FlagS | v&(z80FlagX|z80FlagY) | z80FlagN
	if r == 0 {
		f |= z80FlagZ
	}
	if (a^v^r)&0x10 != 0 {
		f |= z80FlagH
	}
	if (a^v)&0x80 != 0 && (a^r)&0x80 != 0 {
		f |= z80FlagPV
	}
	if res > 0xFF {
		f |= z80FlagC
	}
	c.f = f
}

func (c *Z80) aluOp(op, v uint8) {
	switch op {
	case 0:
		c.adc8(v, 0)
	case 1:
		c.adc8(v, c.f&z80FlagC)
	case 2:
		c.sbc8(v, 0)
	case 3:
		c.sbc8(v, c.f&z80FlagC)
	case 4:
		c.and8(v)
	case 5:
		c.xor8(v)
	case 6:
		c.or8(v)
	default:
		c.cp8(v)
	}
}

func (c *Z80) inc8(v uint8) uint8 {
	r := v + 1
	f := c.f&z80FlagC | szxyFlags(r)
	if r&0x0F == 0 {
		f |= z80FlagH
	}
	if r == 0x80 {
		f |= z80FlagPV
	}
	c.f = f
	return r
}

func (c *Z80) dec8(v uint8) uint8 {
	r := v - 1
	f := c.f&z80FlagC | szxyFlags(r) | z80FlagN
	if r&0x0F == 0x0F {
		f |= z80FlagH
	}
	if r == 0x7F {
		f |= z80FlagPV
	}
	c.f = f
	return r
}

func (c *Z80) add16(dst, v uint16) uint16 {
	res := uint32(dst) + uint32(v)
	f := c.f & (z80FlagS | z80FlagZ | z80FlagPV)
	f |= uint8(res>>8) & (z80FlagX | z80FlagY)
	if (dst^v^uint16(res))&0x1000 != 0 {
		f |= z80FlagH
	}
	if res > 0xFFFF {
		f |= z80FlagC
	}
	c.f = f
	return uint16(res)
}

func (c *Z80) adc16(v uint16) {
	hl := c.HL()
	cf := uint32(c.f & z80FlagC)
	res := uint32(hl) + uint32(v) + cf
	r := uint16(res)
	f := uint8(r>>8) & (z80FlagS | z80FlagX | z80FlagY)
	if r == 0 {
		f |= z80FlagZ
	}
	if (hl^v^r)&0x1000 != 0 {
		f |= z80FlagH
	}
	if (hl^v)&0x8000 == 0 && (hl^r)&0x8000 != 0 {
		f |= z80FlagPV
	}
	if res > 0xFFFF {
		f |= z80FlagC
	}
	c.f = f
	c.SetHL(r)
}

func (c *Z80) sbc16(v uint16) {
	hl := c.HL()
	cf := uint32(c.f & z80FlagC)
	res := uint32(hl) - uint32(v) - cf
	r := uint16(res)
	f := uint8(r>>8)&(z80FlagS|z80FlagX|z80FlagY) | z80FlagN
	if r == 0 {
		f |= z80FlagZ
	}
	if (hl^v^r)&0x1000 != 0 {
		f |= z80FlagH
	}
	if (hl^v)&0x8000 != 0 && (hl^r)&0x8000 != 0 {
		f |= z80FlagPV
	}
	if res > 0xFFFF {
		f |= z80FlagC
	}
	c.f = f
	c.SetHL(r)
}

func (c *Z80) daa() {
	a := c.a
	var adjust uint8
	f := c.f & z80FlagN
	if c.f&z80FlagH != 0 || a&0x0F > 9 {
		adjust = 0x06
	}
	if c.f&z80FlagC != 0 || a > 0x99 {
		adjust |= 0x60
		f |= z80FlagC
	}
	var r uint8
	if c.f&z80FlagN != 0 {
		r = a - adjust
	} else {
		r = a + adjust
	}
	if (a^r)&0x10 != 0 {
		f |= z80FlagH
	}
	c.a = r
	c.f = f | szxyFlags(r) | parity8(r)
}

func (c *Z80) condMet(cond uint8) bool {
	switch cond {
	case 0:
		return c.f&z80FlagZ == 0
	case 1:
		return c.f&z80FlagZ != 0
	case 2:
		return c.f&z80FlagC == 0
	case 3:
		return c.f&z80FlagC != 0
	case 4:
		return c.f&z80FlagPV == 0
	case 5:
		return c.f&z80FlagPV != 0
	case 6:
		return c.f&z80FlagS == 0
	default:
		return c.f&z80FlagS != 0
	}
}

// =============================================================================
// Execution loop
// =============================================================================

// ExecuteWithLimit runs instructions until the clock's scan line
// reaches vslLimit or a break surfaces.
func (c *Z80) ExecuteWithLimit(host MemIoHost, clk *FrameClock, vslLimit int16) BreakCause {
	for clk.Ts.Vc < vslLimit {
		if res := c.executeOne(host, clk); res != BreakLimit {
			return res
		}
	}
	return BreakLimit
}

// ExecuteNext runs one instruction, one halted refresh cycle, or one
// interrupt acceptance.
func (c *Z80) ExecuteNext(host MemIoHost, clk *FrameClock) BreakCause {
	return c.executeOne(host, clk)
}

func (c *Z80) executeOne(host MemIoHost, clk *FrameClock) BreakCause {
	if c.iff1 && !c.eiDelay && host.IsIrq(clk.Ts) {
		c.acceptIrq(host, clk)
		return BreakLimit
	}
	c.eiDelay = false
	if c.halted {
		c.haltCycle(host, clk)
		return BreakLimit
	}
	op := c.fetchOp(host, clk)
	res := c.exec(host, clk, op, ixNone)
	if c.brkWrite {
		c.brkWrite = false
		return BreakWriteIo
	}
	return res
}

// ExecuteInstruction runs one synthetic opcode without fetching it
// from memory (the M1 cycle still elapses).
func (c *Z80) ExecuteInstruction(host MemIoHost, clk *FrameClock, code uint8) BreakCause {
	if c.iff1 && !c.eiDelay && host.IsIrq(clk.Ts) {
		c.acceptIrq(host, clk)
		return BreakLimit
	}
	c.eiDelay = false
	c.halted = false
	clk.AddM1(c.pc)
	c.incR()
	res := c.exec(host, clk, code, ixNone)
	if c.brkWrite {
		c.brkWrite = false
		return BreakWriteIo
	}
	return res
}

// haltCycle burns one M1 refresh cycle while halted. The fetch still
// happens on the bus (and can cause snow); the byte is discarded.
func (c *Z80) haltCycle(host MemIoHost, clk *FrameClock) {
	ts := clk.AddM1(c.pc)
	host.ReadMemM1(c.pc, c.irAddr(), ts)
	c.incR()
}

// NMI accepts the non-maskable interrupt.
func (c *Z80) NMI(host MemIoHost, clk *FrameClock) bool {
	c.halted = false
	c.iff1 = false
	c.incR()
	clk.AddM1(c.pc)
	clk.AddNoMreq(c.irAddr(), 1)
	c.push16(host, clk, c.pc)
	c.pc = nmiVector
	return true
}

func (c *Z80) acceptIrq(host MemIoHost, clk *FrameClock) {
	c.halted = false
	c.iff1, c.iff2 = false, false
	c.incR()
	ts := clk.AddIrq(c.pc)
	switch c.im {
	case 2:
		vector := host.IrqData(ts)
		c.push16(host, clk, c.pc)
		addr := uint16(c.i)<<8 | uint16(vector)
		c.pc = c.rd16(host, clk, addr)
	default:
		// IM 0 sees 0xFF on the bus, which is RST 38h: same as IM 1.
		c.push16(host, clk, c.pc)
		c.pc = irqVectorIM1
	}
}

// =============================================================================
// Opcode execution
// =============================================================================

func (c *Z80) exec(host MemIoHost, clk *FrameClock, op uint8, ix int) BreakCause {
	switch {
	case op == HALT_OPCODE:
		c.halted = true
		return BreakHalt
	case op>>6 == 1: // LD r,r'
		dst, src := op>>3&7, op&7
		switch {
		case src == 6:
			addr := c.effAddr(host, clk, ix)
			// LD r,(IX+d) never redirects r to the index halves.
			*c.reg8(dst, ixNone) = c.rd(host, clk, addr)
		case dst == 6:
			addr := c.effAddr(host, clk, ix)
			c.wr(host, clk, addr, *c.reg8(src, ixNone))
		default:
			*c.reg8(dst, ix) = *c.reg8(src, ix)
		}
	case op>>6 == 2: // ALU A,r
		src := op & 7
		var v uint8
		if src == 6 {
			v = c.rd(host, clk, c.effAddr(host, clk, ix))
		} else {
			v = *c.reg8(src, ix)
		}
		c.aluOp(op>>3&7, v)
	default:
		return c.execMisc(host, clk, op, ix)
	}
	return BreakLimit
}

func (c *Z80) execMisc(host MemIoHost, clk *FrameClock, op uint8, ix int) BreakCause {
	switch op {
	case 0x00: // NOP
	case 0x01, 0x11, 0x21, 0x31: // LD rr,nn
		v := c.imm16(host, clk)
		switch op >> 4 {
		case 0:
			c.SetBC(v)
		case 1:
			c.SetDE(v)
		case 2:
			c.setIxy(ix, v)
		default:
			c.sp = v
		}
	case 0x02: // LD (BC),A
		c.wr(host, clk, c.BC(), c.a)
	case 0x12: // LD (DE),A
		c.wr(host, clk, c.DE(), c.a)
	case 0x0A: // LD A,(BC)
		c.a = c.rd(host, clk, c.BC())
	case 0x1A: // LD A,(DE)
		c.a = c.rd(host, clk, c.DE())
	case 0x22: // LD (nn),HL
		addr := c.imm16(host, clk)
		c.wr16(host, clk, addr, c.ixy(ix))
	case 0x2A: // LD HL,(nn)
		addr := c.imm16(host, clk)
		c.setIxy(ix, c.rd16(host, clk, addr))
	case 0x32: // LD (nn),A
		c.wr(host, clk, c.imm16(host, clk), c.a)
	case 0x3A: // LD A,(nn)
		c.a = c.rd(host, clk, c.imm16(host, clk))
	case 0x03, 0x13, 0x23, 0x33: // INC rr
		clk.AddNoMreq(c.irAddr(), 2)
		switch op >> 4 {
		case 0:
			c.SetBC(c.BC() + 1)
		case 1:
			c.SetDE(c.DE() + 1)
		case 2:
			c.setIxy(ix, c.ixy(ix)+1)
		default:
			c.sp++
		}
	case 0x0B, 0x1B, 0x2B, 0x3B: // DEC rr
		clk.AddNoMreq(c.irAddr(), 2)
		switch op >> 4 {
		case 0:
			c.SetBC(c.BC() - 1)
		case 1:
			c.SetDE(c.DE() - 1)
		case 2:
			c.setIxy(ix, c.ixy(ix)-1)
		default:
			c.sp--
		}
	case 0x04, 0x0C, 0x14, 0x1C, 0x24, 0x2C, 0x3C: // INC r
		reg := c.reg8(op>>3&7, ix)
		*reg = c.inc8(*reg)
	case 0x34: // INC (HL)
		addr := c.effAddr(host, clk, ix)
		v := c.rd(host, clk, addr)
		clk.AddNoMreq(addr, 1)
		c.wr(host, clk, addr, c.inc8(v))
	case 0x05, 0x0D, 0x15, 0x1D, 0x25, 0x2D, 0x3D: // DEC r
		reg := c.reg8(op>>3&7, ix)
		*reg = c.dec8(*reg)
	case 0x35: // DEC (HL)
		addr := c.effAddr(host, clk, ix)
		v := c.rd(host, clk, addr)
		clk.AddNoMreq(addr, 1)
		c.wr(host, clk, addr, c.dec8(v))
	case 0x06, 0x0E, 0x16, 0x1E, 0x26, 0x2E, 0x3E: // LD r,n
		*c.reg8(op>>3&7, ix) = c.imm8(host, clk)
	case 0x36: // LD (HL),n
		if ix == ixNone {
			c.wr(host, clk, c.HL(), c.imm8(host, clk))
		} else {
			d := int8(c.imm8(host, clk))
			v := c.imm8(host, clk)
			clk.AddNoMreq(c.pc-1, 2)
			c.wr(host, clk, c.ixy(ix)+uint16(int16(d)), v)
		}
	case 0x07: // RLCA
		cf := c.a >> 7
		c.a = c.a<<1 | cf
		c.f = c.f&(z80FlagS|z80FlagZ|z80FlagPV) | c.a&(z80FlagX|z80FlagY) | cf
	case 0x0F: // RRCA
		cf := c.a & 1
		c.a = c.a>>1 | cf<<7
		c.f = c.f&(z80FlagS|z80FlagZ|z80FlagPV) | c.a&(z80FlagX|z80FlagY) | cf
	case 0x17: // RLA
		cf := c.a >> 7
		c.a = c.a<<1 | c.f&z80FlagC
		c.f = c.f&(z80FlagS|z80FlagZ|z80FlagPV) | c.a&(z80FlagX|z80FlagY) | cf
	case 0x1F: // RRA
		cf := c.a & 1
		c.a = c.a>>1 | (c.f&z80FlagC)<<7
		c.f = c.f&(z80FlagS|z80FlagZ|z80FlagPV) | c.a&(z80FlagX|z80FlagY) | cf
	case 0x08: // EX AF,AF'
		c.a, c.a2 = c.a2, c.a
		c.f, c.f2 = c.f2, c.f
	case 0x09, 0x19, 0x29, 0x39: // ADD HL,rr
		clk.AddNoMreq(c.irAddr(), 7)
		var v uint16
		switch op >> 4 {
		case 0:
			v = c.BC()
		case 1:
			v = c.DE()
		case 2:
			v = c.ixy(ix)
		default:
			v = c.sp
		}
		c.setIxy(ix, c.add16(c.ixy(ix), v))
	case 0x10: // DJNZ d
		clk.AddNoMreq(c.irAddr(), 1)
		d := int8(c.imm8(host, clk))
		c.b--
		if c.b != 0 {
			clk.AddNoMreq(c.pc-1, 5)
			c.pc += uint16(int16(d))
		}
	case 0x18: // JR d
		d := int8(c.imm8(host, clk))
		clk.AddNoMreq(c.pc-1, 5)
		c.pc += uint16(int16(d))
	case 0x20, 0x28, 0x30, 0x38: // JR cc,d
		d := int8(c.imm8(host, clk))
		if c.condMet(op >> 3 & 3) {
			clk.AddNoMreq(c.pc-1, 5)
			c.pc += uint16(int16(d))
		}
	case 0x27: // DAA
		c.daa()
	case 0x2F: // CPL
		c.a = ^c.a
		c.f = c.f&(z80FlagS|z80FlagZ|z80FlagPV|z80FlagC) |
			c.a&(z80FlagX|z80FlagY) | z80FlagH | z80FlagN
	case 0x37: // SCF
		c.f = c.f&(z80FlagS|z80FlagZ|z80FlagPV) | c.a&(z80FlagX|z80FlagY) | z80FlagC
	case 0x3F: // CCF
		f := c.f&(z80FlagS|z80FlagZ|z80FlagPV) | c.a&(z80FlagX|z80FlagY)
		if c.f&z80FlagC != 0 {
			f |= z80FlagH
		} else {
			f |= z80FlagC
		}
		c.f = f
	case 0xC0, 0xC8, 0xD0, 0xD8, 0xE0, 0xE8, 0xF0, 0xF8: // RET cc
		clk.AddNoMreq(c.irAddr(), 1)
		if c.condMet(op >> 3 & 7) {
			c.pc = c.pop16(host, clk)
		}
	case 0xC1, 0xD1, 0xE1, 0xF1: // POP rr
		v := c.pop16(host, clk)
		switch op >> 4 & 3 {
		case 0:
			c.SetBC(v)
		case 1:
			c.SetDE(v)
		case 2:
			c.setIxy(ix, v)
		default:
			c.SetAF(v)
		}
	case 0xC5, 0xD5, 0xE5, 0xF5: // PUSH rr
		clk.AddNoMreq(c.irAddr(), 1)
		var v uint16
		switch op >> 4 & 3 {
		case 0:
			v = c.BC()
		case 1:
			v = c.DE()
		case 2:
			v = c.ixy(ix)
		default:
			v = c.AF()
		}
		c.push16(host, clk, v)
	case 0xC2, 0xCA, 0xD2, 0xDA, 0xE2, 0xEA, 0xF2, 0xFA: // JP cc,nn
		addr := c.imm16(host, clk)
		if c.condMet(op >> 3 & 7) {
			c.pc = addr
		}
	case 0xC3: // JP nn
		c.pc = c.imm16(host, clk)
	case 0xC4, 0xCC, 0xD4, 0xDC, 0xE4, 0xEC, 0xF4, 0xFC: // CALL cc,nn
		addr := c.imm16(host, clk)
		if c.condMet(op >> 3 & 7) {
			clk.AddNoMreq(c.pc-1, 1)
			c.push16(host, clk, c.pc)
			c.pc = addr
		}
	case 0xCD: // CALL nn
		addr := c.imm16(host, clk)
		clk.AddNoMreq(c.pc-1, 1)
		c.push16(host, clk, c.pc)
		c.pc = addr
	case 0xC6, 0xCE, 0xD6, 0xDE, 0xE6, 0xEE, 0xF6, 0xFE: // ALU A,n
		c.aluOp(op>>3&7, c.imm8(host, clk))
	case 0xC7, 0xCF, 0xD7, 0xDF, 0xE7, 0xEF, 0xF7, 0xFF: // RST p
		clk.AddNoMreq(c.irAddr(), 1)
		c.push16(host, clk, c.pc)
		c.pc = uint16(op & 0x38)
	case 0xC9: // RET
		c.pc = c.pop16(host, clk)
	case 0xCB:
		if ix == ixNone {
			c.execCB(host, clk)
		} else {
			c.execIndexCB(host, clk, ix)
		}
	case 0xD3: // OUT (n),A
		port := uint16(c.a)<<8 | uint16(c.imm8(host, clk))
		c.out(host, clk, port, c.a)
	case 0xDB: // IN A,(n)
		port := uint16(c.a)<<8 | uint16(c.imm8(host, clk))
		c.a = c.in(host, clk, port)
	case 0xD9: // EXX
		c.b, c.b2 = c.b2, c.b
		c.c, c.c2 = c.c2, c.c
		c.d, c.d2 = c.d2, c.d
		c.e, c.e2 = c.e2, c.e
		c.h, c.h2 = c.h2, c.h
		c.l, c.l2 = c.l2, c.l
	case 0xDD:
		return c.exec(host, clk, c.fetchOp(host, clk), ixIX)
	case 0xFD:
		return c.exec(host, clk, c.fetchOp(host, clk), ixIY)
	case 0xE3: // EX (SP),HL
		lo := c.rd(host, clk, c.sp)
		hi := c.rd(host, clk, c.sp+1)
		clk.AddNoMreq(c.sp+1, 1)
		v := c.ixy(ix)
		c.wr(host, clk, c.sp+1, uint8(v>>8))
		c.wr(host, clk, c.sp, uint8(v))
		clk.AddNoMreq(c.sp, 2)
		c.setIxy(ix, uint16(hi)<<8|uint16(lo))
	case 0xE9: // JP (HL)
		c.pc = c.ixy(ix)
	case 0xEB: // EX DE,HL
		c.d, c.h = c.h, c.d
		c.e, c.l = c.l, c.e
	case 0xED:
		return c.execED(host, clk, c.fetchOp(host, clk))
	case 0xF3: // DI
		c.iff1, c.iff2 = false, false
	case 0xFB: // EI
		c.iff1, c.iff2 = true, true
		c.eiDelay = true
	case 0xF9: // LD SP,HL
		clk.AddNoMreq(c.irAddr(), 2)
		c.sp = c.ixy(ix)
	}
	return BreakLimit
}

// =============================================================================
// CB prefix: rotates, shifts, bit operations
// =============================================================================

func (c *Z80) cbRotOp(kind, v uint8) uint8 {
	var r, cf uint8
	switch kind {
	case 0: // RLC
		cf = v >> 7
		r = v<<1 | cf
	case 1: // RRC
		cf = v & 1
		r = v>>1 | cf<<7
	case 2: // RL
		cf = v >> 7
		r = v<<1 | c.f&z80FlagC
	case 3: // RR
		cf = v & 1
		r = v>>1 | (c.f&z80FlagC)<<7
	case 4: // SLA
		cf = v >> 7
		r = v << 1
	case 5: // SRA
		cf = v & 1
		r = v&0x80 | v>>1
	case 6: // SLL
		cf = v >> 7
		r = v<<1 | 1
	default: // SRL
		cf = v & 1
		r = v >> 1
	}
	c.f = szxyFlags(r) | parity8(r) | cf
	return r
}

func (c *Z80) bitTest(bit, v uint8) {
	f := c.f&z80FlagC | z80FlagH | v&(z80FlagX|z80FlagY)
	if v&(1<<bit) == 0 {
		f |= z80FlagZ | z80FlagPV
	} else if bit == 7 {
		f |= z80FlagS
	}
	c.f = f
}

func (c *Z80) execCB(host MemIoHost, clk *FrameClock) {
	op := c.fetchOp(host, clk)
	idx, n := op&7, op>>3&7
	if idx == 6 {
		addr := c.HL()
		v := c.rd(host, clk, addr)
		clk.AddNoMreq(addr, 1)
		switch op >> 6 {
		case 0:
			c.wr(host, clk, addr, c.cbRotOp(n, v))
		case 1:
			c.bitTest(n, v)
		case 2:
			c.wr(host, clk, addr, v&^(1<<n))
		default:
			c.wr(host, clk, addr, v|1<<n)
		}
		return
	}
	reg := c.reg8(idx, ixNone)
	switch op >> 6 {
	case 0:
		*reg = c.cbRotOp(n, *reg)
	case 1:
		c.bitTest(n, *reg)
	case 2:
		*reg &^= 1 << n
	default:
		*reg |= 1 << n
	}
}

// execIndexCB handles DD CB d op / FD CB d op: the operation always
// targets (IX+d), and non-BIT results copy into the named register.
func (c *Z80) execIndexCB(host MemIoHost, clk *FrameClock, ix int) {
	d := int8(c.imm8(host, clk))
	op := c.imm8(host, clk)
	clk.AddNoMreq(c.pc-1, 2)
	addr := c.ixy(ix) + uint16(int16(d))
	idx, n := op&7, op>>3&7
	v := c.rd(host, clk, addr)
	clk.AddNoMreq(addr, 1)
	var r uint8
	switch op >> 6 {
	case 0:
		r = c.cbRotOp(n, v)
	case 1:
		c.bitTest(n, v)
		return
	case 2:
		r = v &^ (1 << n)
	default:
		r = v | 1<<n
	}
	c.wr(host, clk, addr, r)
	if idx != 6 {
		*c.reg8(idx, ixNone) = r
	}
}

// =============================================================================
// ED prefix
// =============================================================================

func (c *Z80) execED(host MemIoHost, clk *FrameClock, op uint8) BreakCause {
	switch {
	case op >= 0x40 && op < 0x80:
		switch op & 7 {
		case 0: // IN r,(C)
			v := c.in(host, clk, c.BC())
			c.f = c.f&z80FlagC | szxyFlags(v) | parity8(v)
			if idx := op >> 3 & 7; idx != 6 {
				*c.reg8(idx, ixNone) = v
			}
		case 1: // OUT (C),r
			var v uint8
			if idx := op >> 3 & 7; idx != 6 {
				v = *c.reg8(idx, ixNone)
			}
			c.out(host, clk, c.BC(), v)
		case 2: // SBC/ADC HL,rr
			clk.AddNoMreq(c.irAddr(), 7)
			var v uint16
			switch op >> 4 & 3 {
			case 0:
				v = c.BC()
			case 1:
				v = c.DE()
			case 2:
				v = c.HL()
			default:
				v = c.sp
			}
			if op&8 == 0 {
				c.sbc16(v)
			} else {
				c.adc16(v)
			}
		case 3: // LD (nn),rr / LD rr,(nn)
			addr := c.imm16(host, clk)
			if op&8 == 0 {
				var v uint16
				switch op >> 4 & 3 {
				case 0:
					v = c.BC()
				case 1:
					v = c.DE()
				case 2:
					v = c.HL()
				default:
					v = c.sp
				}
				c.wr16(host, clk, addr, v)
			} else {
				v := c.rd16(host, clk, addr)
				switch op >> 4 & 3 {
				case 0:
					c.SetBC(v)
				case 1:
					c.SetDE(v)
				case 2:
					c.SetHL(v)
				default:
					c.sp = v
				}
			}
		case 4: // NEG
			a := c.a
			c.a = 0
			c.sbc8(a, 0)
		case 5: // RETN / RETI
			c.iff1 = c.iff2
			c.pc = c.pop16(host, clk)
			if op == 0x4D && c.RetiBreak {
				return BreakReti
			}
		case 6: // IM 0/1/2
			switch op >> 3 & 3 {
			case 2:
				c.im = 1
			case 3:
				c.im = 2
			default:
				c.im = 0
			}
		case 7:
			switch op {
			case 0x47: // LD I,A
				clk.AddNoMreq(c.irAddr(), 1)
				c.i = c.a
			case 0x4F: // LD R,A
				clk.AddNoMreq(c.irAddr(), 1)
				c.r = c.a
			case 0x57: // LD A,I
				clk.AddNoMreq(c.irAddr(), 1)
				c.a = c.i
				c.ldAirFlags()
			case 0x5F: // LD A,R
				clk.AddNoMreq(c.irAddr(), 1)
				c.a = c.r
				c.ldAirFlags()
			case 0x67: // RRD
				addr := c.HL()
				v := c.rd(host, clk, addr)
				clk.AddNoMreq(addr, 4)
				c.wr(host, clk, addr, c.a<<4|v>>4)
				c.a = c.a&0xF0 | v&0x0F
				c.f = c.f&z80FlagC | szxyFlags(c.a) | parity8(c.a)
			case 0x6F: // RLD
				addr := c.HL()
				v := c.rd(host, clk, addr)
				clk.AddNoMreq(addr, 4)
				c.wr(host, clk, addr, v<<4|c.a&0x0F)
				c.a = c.a&0xF0 | v>>4
				c.f = c.f&z80FlagC | szxyFlags(c.a) | parity8(c.a)
			}
		}
	case op >= 0xA0 && op <= 0xBB && op&4 == 0:
		return c.execBlock(host, clk, op)
	}
	return BreakLimit
}

func (c *Z80) ldAirFlags() {
	f := c.f&z80FlagC | szxyFlags(c.a)
	if c.iff2 {
		f |= z80FlagPV
	}
	c.f = f
}

// execBlock handles LDI/CPI/INI/OUTI and their three variants each.
func (c *Z80) execBlock(host MemIoHost, clk *FrameClock, op uint8) BreakCause {
	var step uint16 = 1
	if op&8 != 0 {
		step = 0xFFFF // decrementing variants
	}
	repeat := op&0x10 != 0
	switch op & 3 {
	case 0: // LDI/LDD/LDIR/LDDR
		v := c.rd(host, clk, c.HL())
		c.wr(host, clk, c.DE(), v)
		clk.AddNoMreq(c.DE(), 2)
		c.SetHL(c.HL() + step)
		c.SetDE(c.DE() + step)
		c.SetBC(c.BC() - 1)
		n := v + c.a
		f := c.f & (z80FlagS | z80FlagZ | z80FlagC)
		f |= n & z80FlagX
		if n&0x02 != 0 {
			f |= z80FlagY
		}
		if c.BC() != 0 {
			f |= z80FlagPV
		}
		c.f = f
		if repeat && c.BC() != 0 {
			clk.AddNoMreq(c.DE()-step, 5)
			c.pc -= 2
		}
	case 1: // CPI/CPD/CPIR/CPDR
		v := c.rd(host, clk, c.HL())
		clk.AddNoMreq(c.HL(), 5)
		a := c.a
		r := a - v
		c.SetHL(c.HL() + step)
		c.SetBC(c.BC() - 1)
		f := c.f&z80FlagC | r&z80FlagS | z80FlagN
		if r == 0 {
			f |= z80FlagZ
		}
		if (a^v^r)&0x10 != 0 {
			f |= z80FlagH
			r--
		}
		f |= r & z80FlagX
		if r&0x02 != 0 {
			f |= z80FlagY
		}
		if c.BC() != 0 {
			f |= z80FlagPV
		}
		c.f = f
		if repeat && c.BC() != 0 && f&z80FlagZ == 0 {
			clk.AddNoMreq(c.HL()-step, 5)
			c.pc -= 2
		}
	case 2: // INI/IND/INIR/INDR
		clk.AddNoMreq(c.irAddr(), 1)
		v := c.in(host, clk, c.BC())
		c.wr(host, clk, c.HL(), v)
		c.b--
		c.SetHL(c.HL() + step)
		c.f = szxyFlags(c.b) | z80FlagN
		if repeat && c.b != 0 {
			clk.AddNoMreq(c.HL()-step, 5)
			c.pc -= 2
		}
	default: // OUTI/OUTD/OTIR/OTDR
		clk.AddNoMreq(c.irAddr(), 1)
		v := c.rd(host, clk, c.HL())
		c.b--
		c.out(host, clk, c.BC(), v)
		c.SetHL(c.HL() + step)
		c.f = szxyFlags(c.b) | z80FlagN
		if repeat && c.b != 0 {
			clk.AddNoMreq(c.BC(), 5)
			c.pc -= 2
		}
	}
	return BreakLimit
}
