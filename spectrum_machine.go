// spectrum_machine.go - Machine assembly and the frame loop

/*
spectrum_machine.go - Spectrum Machine

Glues the core together into a runnable computer: the ULA (with its
bus chain of joystick and AY devices), the Z80, the Blep sink feeding
the audio backend and the RGBA frame buffer feeding the video backend.
RunFrame executes exactly one video frame and distributes its output.

The audio path: EAR/MIC output renders on Blep channel 0 and the AY
channels on 1-3; the mixed mono stream lands in a ring buffer the
audio backend drains at its own pace.
*/

package main

import (
	"fmt"
	"sync"
)

// Blep channel assignment.
const (
	blepChanEarMic = 0
	blepChanAyA    = 1
	blepChanAyB    = 2
	blepChanAyC    = 3
	blepChannels   = 4
)

// MachineConfig selects the machine build.
type MachineConfig struct {
	Profile    *VideoFrameProfile
	Contention MemoryContention
	Joystick   string
	FullerAy   bool
	SampleRate uint32
	BorderSize BorderSize
}

// Machine is one assembled Spectrum.
type Machine struct {
	ULA      *ULA
	CPU      *Z80
	Blep     *BandLimited
	Joystick *MultiJoystickBusDevice
	Ay       *Ay3891xBusDevice

	borderSize BorderSize
	frameBuf   []uint8
	frameW     int
	frameH     int
	sampleBuf  []float32

	// audio ring drained by the backend
	ringMu   sync.Mutex
	ring     []float32
	ringHead int
	ringLen  int

	// keys pressed through the terminal host auto-release
	keyMu      sync.Mutex
	keyPresses map[[2]int]int
}

// NewMachine assembles a machine from its configuration.
func NewMachine(cfg MachineConfig) (*Machine, error) {
	if cfg.Profile == nil {
		cfg.Profile = UlaVideoProfile
	}
	if cfg.Contention == nil {
		cfg.Contention = UlaMemoryContention{}
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	joySel := NewJoystickSelect()
	if cfg.Joystick != "" {
		sel, _, err := NewJoystickFromName(cfg.Joystick)
		if err != nil {
			return nil, err
		}
		joySel = sel
	}

	var ay *Ay3891xBusDevice
	if cfg.FullerAy {
		ay = NewAy3891xFullerBox(cfg.Profile, nil)
	} else {
		ay = NewAy3891xMelodik(cfg.Profile, nil)
	}
	dynamic := NewDynamicBus(ay)
	joystick := NewMultiJoystickBusDevice(joySel, dynamic)

	w, h, err := RenderedFrameSize(cfg.BorderSize)
	if err != nil {
		return nil, err
	}

	m := &Machine{
		ULA:        NewULA(cfg.Profile, cfg.Contention, joystick),
		CPU:        NewZ80(),
		Blep:       NewBandLimited(blepChannels),
		Joystick:   joystick,
		Ay:         ay,
		borderSize: cfg.BorderSize,
		frameBuf:   make([]uint8, w*h*4),
		frameW:     w,
		frameH:     h,
		ring:       make([]float32, int(cfg.SampleRate/10)),
		keyPresses: make(map[[2]int]int),
	}
	m.ULA.EnsureAudioFrameTime(m.Blep, cfg.SampleRate)
	m.sampleBuf = make([]float32, cfg.SampleRate/25)
	return m, nil
}

// LoadROM copies a ROM image into the write-protected low pages.
func (m *Machine) LoadROM(rom []uint8) error {
	if len(rom) > ROMSize {
		return fmt.Errorf("ROM image too large: %d bytes", len(rom))
	}
	copy(m.ULA.Memory()[:ROMSize], rom)
	return nil
}

// FrameSize returns the rendered frame dimensions.
func (m *Machine) FrameSize() (int, int) { return m.frameW, m.frameH }

// RunFrame executes one video frame and renders its output. The
// returned buffer is valid until the next call.
func (m *Machine) RunFrame() ([]uint8, error) {
	m.releaseExpiredKeys()
	m.ULA.ExecuteNextFrame(m.CPU)

	// audio
	timeRate := m.ULA.AudioTimeRate()
	endTs := m.ULA.GetAudioFrameEndTime()
	m.ULA.RenderEarMicOutAudioFrame(m.Blep, timeRate, blepChanEarMic)
	m.ULA.RenderEarInAudioFrame(m.Blep, timeRate, blepChanEarMic)
	m.ULA.RenderAyAudioFrame(m.Blep, timeRate, [3]int{blepChanAyA, blepChanAyB, blepChanAyC})
	ready := m.Blep.EndFrame(timeRate.AtTimestamp(endTs))
	if ready > len(m.sampleBuf) {
		m.sampleBuf = make([]float32, ready)
	}
	n := m.Blep.DrainAudio(m.sampleBuf[:ready])
	m.pushSamples(m.sampleBuf[:n])

	// video
	pitch := m.frameW * 4
	if err := m.ULA.RenderVideoFrame(m.frameBuf, pitch, m.borderSize); err != nil {
		return nil, err
	}
	return m.frameBuf, nil
}

// Reset resets the machine; hard resets also clear the peripherals.
func (m *Machine) Reset(hard bool) {
	m.ULA.Reset(m.CPU, hard)
}

// =============================================================================
// Audio ring
// =============================================================================

func (m *Machine) pushSamples(samples []float32) {
	m.ringMu.Lock()
	defer m.ringMu.Unlock()
	for _, s := range samples {
		if m.ringLen == len(m.ring) {
			// backend stalled; drop the oldest sample
			m.ringHead = (m.ringHead + 1) % len(m.ring)
			m.ringLen--
		}
		m.ring[(m.ringHead+m.ringLen)%len(m.ring)] = s
		m.ringLen++
	}
}

// ReadSample hands one mono sample to the audio backend; it returns
// silence when the machine runs behind.
func (m *Machine) ReadSample() float32 {
	m.ringMu.Lock()
	defer m.ringMu.Unlock()
	if m.ringLen == 0 {
		return 0
	}
	s := m.ring[m.ringHead]
	m.ringHead = (m.ringHead + 1) % len(m.ring)
	m.ringLen--
	return s
}

// =============================================================================
// Keyboard input
// =============================================================================

// SetKey presses or releases one key of the matrix.
func (m *Machine) SetKey(row, column int, pressed bool) {
	m.ULA.SetKeyboardMap(m.ULA.KeyboardMap().Key(row, column, pressed))
}

// keyHoldFrames is how long a terminal-typed key stays pressed: the
// terminal reports presses only, so keys auto-release.
const keyHoldFrames = 3

// TypeKey presses a key for a few frames; used by the terminal host
// which never sees key-up events.
func (m *Machine) TypeKey(row, column int) {
	m.keyMu.Lock()
	defer m.keyMu.Unlock()
	m.keyPresses[[2]int{row, column}] = keyHoldFrames
	m.ULA.SetKeyboardMap(m.ULA.KeyboardMap().Key(row, column, true))
}

func (m *Machine) releaseExpiredKeys() {
	m.keyMu.Lock()
	defer m.keyMu.Unlock()
	for key, frames := range m.keyPresses {
		if frames--; frames <= 0 {
			m.ULA.SetKeyboardMap(m.ULA.KeyboardMap().Key(key[0], key[1], false))
			delete(m.keyPresses, key)
		} else {
			m.keyPresses[key] = frames
		}
	}
}
