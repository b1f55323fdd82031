// ay_audio.go - AY-3-891x programmable sound generator synthesis

/*
ay_audio.go - AY-3-891x Sound Synthesis

Sample-accurate reconstruction of the AY-3-8910/8912/8913 from a
timestamped register-change log. The generator state advances on an
internal tick of CPU_HZ / 32 (the chip clock is half the CPU clock and
divides by 16 internally); every tick the three tone generators, the
noise LFSR and the envelope advance, the mixer gates each channel, and
any change of a channel's output level is emitted as a band-limited
step delta.

The bit-packed envelope encoding: level holds RV|MD|0|0|v|v|v|v where
MD enables modulation and RV reverses direction; cycle holds the shape
bits CT|AT|AL|HO in the low nibble and a wrap counter in the high
nibble. Shape post-processing runs once per 16 level steps.
*/

package main

import (
	"fmt"
	"math"
)

// Chip clock divisors: the PSG is clocked at half the CPU clock and
// divides by 16 internally, so one internal tick spans 32 T-states.
const (
	INTERNAL_CLOCK_DIVISOR = 16
	HOST_CLOCK_RATIO       = 2
	AY_TICKER_STEP         = HOST_CLOCK_RATIO * INTERNAL_CLOCK_DIVISOR
)

// AY register indexes.
const (
	AyToneFineA = iota
	AyToneCoarseA
	AyToneFineB
	AyToneCoarseB
	AyToneFineC
	AyToneCoarseC
	AyNoisePeriod
	AyMixerControl
	AyAmpLevelA
	AyAmpLevelB
	AyAmpLevelC
	AyEnvPerFine
	AyEnvPerCoarse
	AyEnvShape
	AyIoPortA
	AyIoPortB

	AY_REG_COUNT = 16
)

// Envelope shape bits (register 13).
const (
	ENV_SHAPE_CONT_MASK   = 0b00001000
	ENV_SHAPE_ATTACK_MASK = 0b00000100
	ENV_SHAPE_ALT_MASK    = 0b00000010
	ENV_SHAPE_HOLD_MASK   = 0b00000001
)

const (
	envLevelRevMask = 0b10000000
	envLevelModMask = 0b01000000
	envLevelMask    = 0x0F
	envCycleMask    = 0xF0
)

// AyRegChange is one recorded register write, timestamped in flat
// frame T-states.
type AyRegChange struct {
	Time int32
	Reg  uint8
	Val  uint8
}

// AmpLevelOf maps a 4-bit output level to a sample amplitude.
type AmpLevelOf func(level uint32) float32

// AyAmps is the measured AY amplitude curve (levels 0-15).
var AyAmps = [16]float32{
	0.000000, 0.007813, 0.011049, 0.015625,
	0.022097, 0.031250, 0.044194, 0.062500,
	0.088388, 0.125000, 0.176777, 0.250000,
	0.353553, 0.500000, 0.707107, 1.000000,
}

// AyAmpsI32 is the same curve scaled to 32-bit sample range.
var AyAmpsI32 = [16]int32{
	0x00000000, 0x01000431, 0x016a0db9, 0x01ffffff,
	0x02d41313, 0x03ffffff, 0x05a82627, 0x07ffffff,
	0x0b504c4f, 0x0fffffff, 0x16a0a0ff, 0x1fffffff,
	0x2d41397f, 0x3fffffff, 0x5a827b7f, 0x7fffffff,
}

// AyAmpsI16 is the same curve scaled to 16-bit sample range.
var AyAmpsI16 = [16]int16{
	0x0000, 0x0100, 0x016a, 0x01ff,
	0x02d4, 0x03ff, 0x05a8, 0x07ff,
	0x0b50, 0x0fff, 0x16a0, 0x1fff,
	0x2d40, 0x3fff, 0x5a81, 0x7fff,
}

// AyAmpLevel maps a 4-bit level through the measured AY curve.
func AyAmpLevel(level uint32) float32 {
	return AyAmps[level&15]
}

// LogAmpLevel16 is the alternative 16-level logarithmic curve
// y = 3.1623e-3 * exp(5.757 * x) with the endpoints pinned.
func LogAmpLevel16(level uint32) float32 {
	const a = 3.1623e-3
	const b = 5.757
	switch l := level & 0xF; l {
	case 0:
		return 0.0
	case 15:
		return 1.0
	default:
		x := float32(l) / 15.0
		return a * float32(math.Exp(float64(b*x)))
	}
}

// =============================================================================
// Generator state
// =============================================================================

const (
	TONE_GEN_MIN_THRESHOLD = 5
	tonePeriodMask         = 0xFFF
	noisePeriodMask        = 0x1F
)

// ToneControl is one square-wave tone generator.
type ToneControl struct {
	period uint16
	tick   uint16
	low    bool
}

func (t *ToneControl) SetPeriodFine(perlo uint8) {
	t.SetPeriod(t.period&0xFF00 | uint16(perlo))
}

func (t *ToneControl) SetPeriodCoarse(perhi uint8) {
	t.SetPeriod(uint16(perhi)<<8 | t.period&0x00FF)
}

func (t *ToneControl) SetPeriod(period uint16) {
	period &= tonePeriodMask
	if period == 0 {
		period = 1
	}
	t.period = period
	if t.tick >= period*2 {
		t.tick %= period * 2
	}
}

// UpdateIsLow advances one internal tick and returns whether the
// output is in its low half-period. Periods below the generator
// threshold produce no audible square wave and are forced high.
func (t *ToneControl) UpdateIsLow() bool {
	low := t.low
	if t.period < TONE_GEN_MIN_THRESHOLD {
		low = false
	} else if t.tick >= t.period {
		t.tick -= t.period
		low = !low
		t.low = low
	}
	t.tick += 2
	return low
}

// NoiseControl is the 17-bit LFSR noise generator.
type NoiseControl struct {
	rng    int32
	period uint8
	tick   uint8
	low    bool
}

func (n *NoiseControl) SetPeriod(period uint8) {
	period &= noisePeriodMask
	if period == 0 {
		period = 1
	}
	n.period = period
	if n.tick >= period {
		n.tick %= period
	}
}

// UpdateIsLow advances one internal tick and returns whether the noise
// output is low.
func (n *NoiseControl) UpdateIsLow() bool {
	low := n.low
	if n.tick >= n.period {
		n.tick -= n.period
		if (n.rng+1)&2 != 0 {
			low = !low
			n.low = low
		}
		n.rng = (-(n.rng & 1) & 0x12000) ^ (n.rng >> 1)
	}
	n.tick++
	return low
}

// EnvelopeControl is the shared volume envelope generator.
type EnvelopeControl struct {
	period uint16
	tick   uint16
	// c c c c CT AT AL HO
	cycle uint8
	// RV MD 0 0 v v v v
	level uint8
}

func (e *EnvelopeControl) SetShape(shape uint8) {
	e.tick = 0
	e.cycle = shape &^ envCycleMask
	if shape&ENV_SHAPE_ATTACK_MASK != 0 {
		e.level = envLevelModMask
	} else {
		e.level = envLevelModMask | envLevelRevMask | envLevelMask
	}
}

func (e *EnvelopeControl) SetPeriodFine(perlo uint8) {
	e.SetPeriod(e.period&0xFF00 | uint16(perlo))
}

func (e *EnvelopeControl) SetPeriodCoarse(perhi uint8) {
	e.SetPeriod(uint16(perhi)<<8 | e.period&0x00FF)
}

func (e *EnvelopeControl) SetPeriod(period uint16) {
	if period == 0 {
		period = 1
	}
	e.period = period
	if e.tick >= period {
		e.tick %= period
	}
}

// UpdateLevel advances one internal tick and returns the current
// 4-bit envelope level.
func (e *EnvelopeControl) UpdateLevel() uint8 {
	tick, level := e.tick, e.level
	if tick >= e.period {
		tick -= e.period

		if level&envLevelModMask != 0 {
			var next uint8
			if level&envLevelRevMask == 0 {
				next = level + 1
			} else {
				next = level - 1
			}
			level = level&^envLevelMask | next&envLevelMask

			cycle := e.cycle + 0x10 // wraps every 16 level steps
			if cycle&envCycleMask == 0 {
				if cycle&ENV_SHAPE_CONT_MASK == 0 {
					level = 0
				} else if cycle&ENV_SHAPE_HOLD_MASK != 0 {
					if cycle&ENV_SHAPE_ALT_MASK == 0 {
						level ^= envLevelModMask | envLevelMask
					} else {
						level ^= envLevelModMask
					}
				} else if cycle&ENV_SHAPE_ALT_MASK != 0 {
					level ^= envLevelRevMask | envLevelMask
				}
			}
			e.level = level
			e.cycle = cycle
		}
	}
	e.tick = tick + 1
	return level & envLevelMask
}

// AmpLevel is one channel's amplitude register: bit 4 selects the
// envelope, bits 0-3 a fixed level.
type AmpLevel uint8

func (a *AmpLevel) Set(level uint8) { *a = AmpLevel(level & 0x1F) }
func (a AmpLevel) IsEnvControl() bool { return a&0x10 != 0 }
func (a AmpLevel) Level() uint8 { return uint8(a) & 0x0F }

// Mixer is the channel enable register viewed through a shifting
// window: bit 0 gates the current channel's tone, bit 3 its noise
// (both active low); NextChan moves the window to the next channel.
type Mixer uint8

func (m Mixer) HasTone() bool { return m&0x01 == 0 }
func (m Mixer) HasNoise() bool { return m&0x08 == 0 }
func (m *Mixer) NextChan() { *m >>= 1 }

// =============================================================================
// Ay3891xAudio
// =============================================================================

// Ay3891xAudio reconstructs the chip's output from a register-change
// log. Generator state persists across frames; the leftover of the
// last internal tick carries into the next frame.
type Ay3891xAudio struct {
	currentTs    int32
	lastLevels   [3]uint8
	ampLevels    [3]AmpLevel
	envControl   EnvelopeControl
	noiseControl NoiseControl
	toneControl  [3]ToneControl
	mixer        Mixer
}

// NewAy3891xAudio returns a generator in its power-on state.
func NewAy3891xAudio() *Ay3891xAudio {
	ay := &Ay3891xAudio{}
	ay.Reset()
	return ay
}

// Reset returns every generator to its power-on state.
func (ay *Ay3891xAudio) Reset() {
	*ay = Ay3891xAudio{}
	ay.envControl.period = 1
	ay.noiseControl.rng = 1
}

// FreqToTonePeriod converts a frequency in Hz to the 16-bit tone
// period value for a chip clocked at clockHz (usually CPU_HZ / 2).
// Panics when the period does not fit in 16 bits.
func FreqToTonePeriod(clockHz, hz float32) uint16 {
	ftp := float32(math.Round(float64(clockHz / (16.0 * hz))))
	utp := uint16(ftp)
	if float32(utp) != ftp {
		panic(fmt.Sprintf("tone period out of 16-bit unsigned integer range: %v", ftp))
	}
	return utp
}

// TonePeriods builds a table of tone periods covering the octaves
// minOctave..maxOctave (0-based, 7 max) from the note frequencies of
// octave 4. Panics when a period leaves the chip's 12-bit range.
func TonePeriods(clockHz float32, minOctave, maxOctave int, noteFreqs []float32) []uint16 {
	periods := make([]uint16, 0, (maxOctave-minOctave+1)*len(noteFreqs))
	for octave := minOctave; octave <= maxOctave; octave++ {
		for _, hz := range noteFreqs {
			hz *= float32(math.Pow(2, float64(octave-4)))
			tp := FreqToTonePeriod(clockHz, hz)
			if tp < 1 || tp > 4095 {
				panic(fmt.Sprintf("tone period out of range: %d (%v Hz)", tp, hz))
			}
			periods = append(periods, tp)
		}
	}
	return periods
}

// EqualTemperedScaleNoteFreqs returns count note frequencies of the
// equal-tempered scale starting firstNote semitones above the given
// A4 pitch.
func EqualTemperedScaleNoteFreqs(a4 float32, firstNote, count int) []float32 {
	freqs := make([]float32, count)
	for i := range freqs {
		freqs[i] = a4 * float32(math.Pow(2, float64(firstNote+i)/12.0))
	}
	return freqs
}

// RenderAudio consumes the ordered change log up to endTs, advancing
// the generators on the internal tick and emitting level steps into
// blep through the amp table. Changes timestamped past endTs are
// applied to the chip but produce no audio this frame. Can be called
// once per frame.
func (ay *Ay3891xAudio) RenderAudio(changes []AyRegChange, blep Blep, amp AmpLevelOf, timeRate TimeRate, endTs int32, chans [3]int) {
	toneLevels := ay.lastLevels
	var volLevels [3]float32
	for i, level := range toneLevels {
		volLevels[i] = amp(uint32(level))
	}

	tick := ay.currentTs
	for ; tick < endTs; tick += AY_TICKER_STEP {
		for len(changes) > 0 && changes[0].Time <= tick {
			ay.UpdateRegister(changes[0].Reg, changes[0].Val)
			changes = changes[1:]
		}

		envLevel := ay.envControl.UpdateLevel()
		noiseLow := ay.noiseControl.UpdateIsLow()
		mixer := ay.mixer
		for i := range ay.toneControl {
			toneLow := ay.toneControl[i].UpdateIsLow()
			switch {
			case (mixer.HasTone() && toneLow) || (mixer.HasNoise() && noiseLow):
				toneLevels[i] = 0
			case ay.ampLevels[i].IsEnvControl():
				toneLevels[i] = envLevel
			default:
				toneLevels[i] = ay.ampLevels[i].Level()
			}
			mixer.NextChan()
		}

		for i, ch := range chans {
			vol := amp(uint32(toneLevels[i]))
			if delta := vol - volLevels[i]; delta != 0 {
				blep.AddStep(ch, timeRate.AtTimestamp(tick), delta)
				volLevels[i] = vol
			}
		}
	}
	for _, change := range changes {
		ay.UpdateRegister(change.Reg, change.Val)
	}
	ay.currentTs = tick - endTs
	ay.lastLevels = toneLevels
}

// UpdateRegister applies one register write to the generator state.
func (ay *Ay3891xAudio) UpdateRegister(reg uint8, val uint8) {
	switch reg {
	case AyToneFineA, AyToneFineB, AyToneFineC:
		ay.toneControl[reg>>1].SetPeriodFine(val)
	case AyToneCoarseA, AyToneCoarseB, AyToneCoarseC:
		ay.toneControl[reg>>1].SetPeriodCoarse(val)
	case AyNoisePeriod:
		ay.noiseControl.SetPeriod(val)
	case AyMixerControl:
		ay.mixer = Mixer(val)
	case AyAmpLevelA, AyAmpLevelB, AyAmpLevelC:
		ay.ampLevels[reg-AyAmpLevelA].Set(val)
	case AyEnvPerFine:
		ay.envControl.SetPeriodFine(val)
	case AyEnvPerCoarse:
		ay.envControl.SetPeriodCoarse(val)
	case AyEnvShape:
		ay.envControl.SetShape(val)
	}
}
