// ula_engine.go - ULA frame execution engine

/*
ula_engine.go - ULA Timing and Execution Engine

The ULA owns everything the CPU's host callbacks touch: 64K of memory,
the peripheral bus head, the frame cache and the per-frame side-effect
logs. It advances an attached Z80 through exactly one video frame at a
time, applying per-T-state memory contention, and records every
observable event (border change, EAR/MIC output, AY register write)
with its exact frame timestamp. At frame end the logs are consumed by
the renderer and the audio synthesis passes.

When the CPU halts mid-frame the engine does not simulate each idle M1
cycle: it jumps the clock straight to the frame interrupt position and
bumps the refresh register by the exact number of skipped cycles,
walking the contention pattern where the halt loop would have been
contended. The result is indistinguishable from stepping through.
*/

package main

// Memory64K is the flat address space of the 16k/48k machines.
type Memory64K [0x10000]uint8

// ROMSize guards the write-protected low pages.
const ROMSize = 0x4000

// Screen memory window in the Z80 address space.
const (
	ScreenBase = 0x4000
	ScreenEnd  = ScreenBase + ULA_SCREEN_SIZE
)

// ULA is the 16k/48k Uncommitted Logic Array: video timing, memory
// arbitration, the ULA port and the frame side-effect logs.
type ULA struct {
	profile    *VideoFrameProfile
	contention MemoryContention

	frames uint64
	tsc    VideoTs
	memory Memory64K
	bus    BusDevice

	// video
	frameCache    UlaFrameCache
	borderChanges []TsData
	border        uint8 // border color at frame start
	lastBorder    uint8 // last recorded change

	// keyboard
	keyboard ZXKeyboardMap

	// audio
	sampleRate     uint32
	earmicChanges  []TsData
	earInChanges   []TsData
	prevEarIn      uint8
	earInLastIndex int
	prevEarmicTs   int32
	prevEarmicData uint8
	lastEarmicData uint8
}

// NewULA builds a ULA for one machine variant with the given bus
// chain head. A nil bus gets the null terminator.
func NewULA(profile *VideoFrameProfile, contention MemoryContention, bus BusDevice) *ULA {
	if bus == nil {
		bus = &NullDevice{}
	}
	return &ULA{
		profile:      profile,
		contention:   contention,
		bus:          bus,
		border:       7,
		lastBorder:   7,
		prevEarmicTs: -1 << 31,
	}
}

// Profile returns the machine variant's video frame profile.
func (u *ULA) Profile() *VideoFrameProfile { return u.profile }

// Bus returns the head of the peripheral chain.
func (u *ULA) Bus() BusDevice { return u.bus }

// Memory returns the full address space for loaders and tests.
func (u *ULA) Memory() *Memory64K { return &u.memory }

// screen returns the display file slice of memory.
func (u *ULA) screen() []uint8 { return u.memory[ScreenBase : ScreenBase+ULA_SCREEN_SIZE] }

// CurrentFrame returns the frame counter. It wraps at 64 bits; only
// the flash phase is derived from it.
func (u *ULA) CurrentFrame() uint64 { return u.frames }

// InvertFlash returns the flash phase for the current frame.
func (u *ULA) InvertFlash() bool { return u.frames&16 != 0 }

// CurrentVideoTs returns the engine's timestamp.
func (u *ULA) CurrentVideoTs() VideoTs { return u.tsc }

// SetVideoTs overrides the engine's timestamp (snapshot loaders).
func (u *ULA) SetVideoTs(vts VideoTs) { u.tsc = vts }

// CurrentTstate returns the timestamp as a flat frame T-state.
func (u *ULA) CurrentTstate() int32 { return u.profile.VtsToTstates(u.tsc) }

// FrameTstate returns the frame counter and the T-state within it,
// normalized so the T-state lies in [0, FrameTstates).
func (u *ULA) FrameTstate() (uint64, int32) {
	return u.profile.VtsToNormTstates(u.frames, u.tsc)
}

// IsFrameOver reports whether the current frame has been fully run.
func (u *ULA) IsFrameOver() bool { return u.profile.IsVtsEof(u.tsc) }

// CpuClockRate returns the variant's CPU clock in Hz.
func (u *ULA) CpuClockRate() uint32 { return u.profile.CpuHz }

// FrameDurationNanos returns the wall-clock duration of one frame.
func (u *ULA) FrameDurationNanos() uint32 {
	return uint32(uint64(u.profile.FrameTstates()) * 1_000_000_000 / uint64(u.profile.CpuHz))
}

// KeyboardMap returns the keyboard matrix state.
func (u *ULA) KeyboardMap() ZXKeyboardMap { return u.keyboard }

// SetKeyboardMap replaces the keyboard matrix state.
func (u *ULA) SetKeyboardMap(m ZXKeyboardMap) { u.keyboard = m }

// =============================================================================
// Frame execution
// =============================================================================

// ensureNextFrameClock builds the frame clock, rolling into the next
// frame first when the previous one has completed.
func (u *ULA) ensureNextFrameClock() *FrameClock {
	clk := NewFrameClock(u.profile, u.contention, u.tsc)
	if clk.IsEof() {
		u.prepareNextFrame(clk)
	}
	return clk
}

// EnsureNextFrame rolls frame-end bookkeeping over so that appending
// to the new frame's logs (tape feeding, for one) lands in range.
func (u *ULA) EnsureNextFrame() {
	u.tsc = u.ensureNextFrameClock().Ts
}

func (u *ULA) prepareNextFrame(clk *FrameClock) {
	u.bus.NextFrame(clk.Ts)
	u.frames++
	u.cleanupVideoFrameData()
	u.cleanupAudioFrameData()
	clk.WrapFrame()
	u.tsc = clk.Ts
}

// ExecuteNextFrame runs the CPU to the end of the current frame,
// riding over any break causes.
func (u *ULA) ExecuteNextFrame(cpu CPU) {
	for {
		if u.executeNextFrameWithBreaks(cpu) {
			return
		}
	}
}

// executeNextFrameWithBreaks runs the CPU until the frame completes or
// a break surfaces before the frame end; it returns false in the
// latter case so the caller may observe the machine mid-frame.
func (u *ULA) executeNextFrameWithBreaks(cpu CPU) bool {
	clk := u.ensureNextFrameClock()
loop:
	for {
		switch cpu.ExecuteWithLimit(u, clk, u.profile.VslCount) {
		case BreakLimit:
			break loop
		case BreakHalt:
			clk.Ts = executeHaltedStateUntilEOF(u.profile, u.contention, clk.Ts, cpu)
			break loop
		default:
			if clk.IsEof() {
				break loop
			}
			u.tsc = clk.Ts
			return false
		}
	}
	u.tsc = clk.Ts
	u.bus.UpdateTimestamp(u.tsc)
	return true
}

// ExecuteSingleStep runs one instruction and returns the CPU's break
// cause, rolling into the next frame first when needed.
func (u *ULA) ExecuteSingleStep(cpu CPU) BreakCause {
	clk := u.ensureNextFrameClock()
	res := cpu.ExecuteNext(u, clk)
	u.tsc = clk.Ts
	return res
}

// executeInstruction feeds the CPU a synthetic opcode.
func (u *ULA) executeInstruction(cpu CPU, code uint8) BreakCause {
	clk := u.ensureNextFrameClock()
	res := cpu.ExecuteInstruction(u, clk, code)
	u.tsc = clk.Ts
	return res
}

// RST_00H_OPCODE restarts through address 0 for a soft reset.
const RST_00H_OPCODE = 0xC7

// Reset resets the machine. A hard reset zeroes the CPU and resets
// every bus device; a soft reset executes RST 00h so memory and
// peripherals keep their state.
func (u *ULA) Reset(cpu CPU, hard bool) {
	if hard {
		cpu.Reset()
		u.tsc = VideoTs{}
		u.bus.Reset(u.tsc)
	} else {
		u.executeInstruction(cpu, RST_00H_OPCODE)
	}
}

// NMI triggers the non-maskable interrupt; reports whether the CPU
// accepted it.
func (u *ULA) NMI(cpu CPU) bool {
	clk := u.ensureNextFrameClock()
	res := cpu.NMI(u, clk)
	u.tsc = clk.Ts
	return res
}

// cleanupVideoFrameData rolls the video logs over at frame end.
func (u *ULA) cleanupVideoFrameData() {
	u.border = u.lastBorder
	u.borderChanges = u.borderChanges[:0]
	u.frameCache.Clear()
}

// =============================================================================
// Halted fast-forward
// =============================================================================

// executeHaltedStateUntilEOF advances a normalized timestamp from the
// point HALT was executed straight to the frame interrupt position,
// bumping the CPU's refresh register by the number of M1 cycles the
// halt loop would have executed. While the program counter sits in
// contended memory and the beam is inside the pixel area, each skipped
// M1 cycle must walk the contention pattern; one contended line is
// walked explicitly and its cycle count multiplied across the rest.
func executeHaltedStateUntilEOF(profile *VideoFrameProfile, contention MemoryContention, tsc VideoTs, cpu CPU) VideoTs {
	var rIncr int32
	htsCount := profile.HtsCount()
	if contention.IsContendedAddress(cpu.PC()) && tsc.Vc < profile.VslPixelsEnd {
		vc, hc := tsc.Vc, tsc.Hc
		if vc < profile.VslPixelsStart {
			// Top border: uncontended until the pixel area starts.
			hcEnd := profile.HtsEnd + remEuclid(hc-profile.HtsEnd, M1_CYCLE_TS)
			vc++
			rIncr = (int32(profile.VslPixelsStart-vc)*int32(htsCount) +
				int32(hcEnd-hc)) / M1_CYCLE_TS
			hc = hcEnd - htsCount
			vc = profile.VslPixelsStart
		} else {
			// Finish the current contended line cycle by cycle.
			for hc < profile.HtsEnd {
				hc = profile.Contention(hc) + M1_CYCLE_TS
				rIncr++
			}
			vc++
			hc -= htsCount
		}
		if vc < profile.VslPixelsEnd {
			// One whole contended line, multiplied across the rest.
			var rLine int32
			for hc < profile.HtsEnd {
				hc = profile.Contention(hc) + M1_CYCLE_TS
				rLine++
			}
			hc -= htsCount
			rIncr += int32(profile.VslPixelsEnd-vc) * rLine
		}
		tsc.Vc = profile.VslPixelsEnd
		tsc.Hc = hc
	}
	vc := profile.VslCount
	hc := remEuclid(tsc.Hc, M1_CYCLE_TS)
	rIncr += (int32(vc-tsc.Vc)*int32(htsCount) + int32(hc-tsc.Hc)) / M1_CYCLE_TS
	tsc.Hc = hc
	tsc.Vc = vc
	cpu.AddR(rIncr)
	return tsc
}
