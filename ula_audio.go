// ula_audio.go - ULA audio frames: EAR/MIC output, tape input, AY

/*
ula_audio.go - ULA Audio Surface

Three audio sources are reconstructed from the frame logs:

  - EAR/MIC output: every OUT to the ULA port that changed bits 3-4 is
    in the earmic log; rendering replays the log as amplitude steps.
  - EAR input: the tape deck feeds level flips as T-state deltas into
    the ear-in log, which is also what IN from the ULA port samples.
    Unlike the other logs it may hold entries beyond the frame end;
    frame cleanup shifts them into the next frame instead of dropping
    them.
  - AY: delegated down the bus chain to whatever AY device is mounted.
*/

package main

import "sort"

// EarMicAmps4 maps the 2-bit MIC|EAR output state to an amplitude.
// EAR alone drives the speaker harder than MIC alone.
var EarMicAmps4 = [4]float32{0.0, 0.25, 0.75, 1.0}

// EarInAmps2 maps the tape input bit to an amplitude.
var EarInAmps2 = [2]float32{0.0, 0.70}

// EarMicAmpLevel adapts EarMicAmps4 to the step renderer.
func EarMicAmpLevel(level uint32) float32 { return EarMicAmps4[level&3] }

// EarInAmpLevel adapts EarInAmps2 to the step renderer.
func EarInAmpLevel(level uint32) float32 { return EarInAmps2[level&1] }

// SetAudioSampleRate remembers the host sample rate.
func (u *ULA) SetAudioSampleRate(sampleRate uint32) { u.sampleRate = sampleRate }

// AudioSampleRate returns the host sample rate.
func (u *ULA) AudioSampleRate() uint32 { return u.sampleRate }

// EnsureAudioFrameTime sizes a Blep sink for this machine's frames.
func (u *ULA) EnsureAudioFrameTime(blep Blep, sampleRate uint32) {
	u.sampleRate = sampleRate
	blep.EnsureFrameTime(sampleRate, u.profile.CpuHz, u.profile.FrameTstates(), MARGIN_TSTATES)
}

// AudioTimeRate returns the samples-per-T-state rate for the machine.
func (u *ULA) AudioTimeRate() TimeRate {
	return NewTimeRate(u.sampleRate, u.profile.CpuHz)
}

// GetAudioFrameEndTime returns the frame-end T-state the audio passes
// must render up to. Calling it mid-frame is a contract violation.
func (u *ULA) GetAudioFrameEndTime() int32 {
	if !u.profile.IsVtsEof(u.tsc) {
		panic("ULA.GetAudioFrameEndTime: frame execution didn't finish yet")
	}
	return u.profile.VtsToTstates(u.tsc)
}

// RenderEarMicOutAudioFrame replays this frame's EAR/MIC output log
// as amplitude steps on one Blep channel.
func (u *ULA) RenderEarMicOutAudioFrame(blep Blep, timeRate TimeRate, channel int) {
	u.renderAudioFrameVts(u.prevEarmicData, nil, u.earmicChanges, EarMicAmpLevel, blep, timeRate, channel)
}

// RenderEarInAudioFrame replays this frame's tape input as amplitude
// steps on one Blep channel.
func (u *ULA) RenderEarInAudioFrame(blep Blep, timeRate TimeRate, channel int) {
	end := u.tsc
	u.renderAudioFrameVts(u.prevEarIn, &end, u.earInChanges, EarInAmpLevel, blep, timeRate, channel)
}

// RenderAyAudioFrame renders the attached AY device's frame, if any.
func (u *ULA) RenderAyAudioFrame(blep Blep, timeRate TimeRate, chans [3]int) {
	renderAyAudioDownChain(u.bus, blep, timeRate, u.tsc, chans)
}

func (u *ULA) renderAudioFrameVts(prevData uint8, end *VideoTs, changes []TsData, amp AmpLevelOf, blep Blep, timeRate TimeRate, channel int) {
	last := amp(uint32(prevData))
	for _, change := range changes {
		if end != nil && vtsLess(*end, change.Ts) {
			break
		}
		vol := amp(uint32(change.Data))
		if vol != last {
			t := timeRate.AtTimestamp(u.profile.VtsToTstates(change.Ts))
			blep.AddStep(channel, t, vol-last)
			last = vol
		}
	}
}

func vtsLess(a, b VideoTs) bool {
	return a.Vc < b.Vc || (a.Vc == b.Vc && a.Hc < b.Hc)
}

// =============================================================================
// EAR input feed
// =============================================================================

// SetEarIn records a tape input level change deltaFts T-states after
// the last recorded change (or after the current timestamp when the
// log is empty). A zero delta amends the last recorded change.
func (u *ULA) SetEarIn(earIn bool, deltaFts uint32) {
	var data uint8
	if earIn {
		data = 1
	}
	if deltaFts == 0 {
		if n := len(u.earInChanges); n != 0 {
			u.earInChanges[n-1].Data = data
		} else {
			u.prevEarIn = data
		}
		return
	}
	vts := u.tsc
	if n := len(u.earInChanges); n != 0 {
		vts = u.earInChanges[n-1].Ts
	}
	vts = u.profile.VtsAddTs(vts, deltaFts)
	u.earInChanges = append(u.earInChanges, TsData{Ts: vts, Data: data})
}

// FeedEarIn appends a run of tape level flips given as positive
// T-state intervals, stopping after maxFramesThreshold frames worth
// of entries (0: no threshold). Zero intervals violate the feed
// contract and panic.
func (u *ULA) FeedEarIn(ftsDeltas []uint32, maxFramesThreshold int) {
	vts, earIn := u.tsc, u.prevEarIn
	if n := len(u.earInChanges); n != 0 {
		vts, earIn = u.earInChanges[n-1].Ts, u.earInChanges[n-1].Data
	}
	maxVc := int16(0x7FFF - int32(u.profile.VslCount) - int32(0x7FFF)%int32(u.profile.VslCount) + 1)
	if maxFramesThreshold > 0 {
		maxVc = int16(maxFramesThreshold*int(u.profile.VslCount) + 1)
	}
	for _, delta := range ftsDeltas {
		if delta == 0 {
			panic("ULA.FeedEarIn: ear in timestamps must always ascend")
		}
		vts = u.profile.VtsAddTs(vts, delta)
		earIn ^= 1
		u.earInChanges = append(u.earInChanges, TsData{Ts: vts, Data: earIn})
		if vts.Vc >= maxVc {
			break
		}
	}
}

// PurgeEarInChanges drops all pending tape input and pins the level.
func (u *ULA) PurgeEarInChanges(earIn bool) {
	u.earInChanges = u.earInChanges[:0]
	u.prevEarIn = 0
	if earIn {
		u.prevEarIn = 1
	}
	u.earInLastIndex = 0
}

// readEarIn samples the tape input level at ts from the ear-in log.
// With no tape attached the level follows bit 1 of the last EAR/MIC
// output, reproducing the issue-3 board feedback.
func (u *ULA) readEarIn(ts VideoTs) uint8 {
	changes := u.earInChanges[u.earInLastIndex:]
	if len(changes) == 0 {
		if u.lastEarmicData&2 == 0 {
			return 0
		}
		return 1
	}
	idx := sort.Search(len(changes), func(i int) bool {
		return vtsLess(ts, changes[i].Ts)
	})
	if idx == 0 {
		return u.prevEarIn
	}
	u.earInLastIndex += idx - 1
	return changes[idx-1].Data
}

// =============================================================================
// Frame cleanup
// =============================================================================

// cleanupAudioFrameData rolls the audio logs over at frame end: the
// earmic log is drained with its last timestamp carried (saturating)
// one frame back, and the ear-in log is compacted, shifting entries
// into the new frame's coordinates.
func (u *ULA) cleanupAudioFrameData() {
	prevTs := u.prevEarmicTs
	if n := len(u.earmicChanges); n != 0 {
		prevTs = u.profile.VtsToTstates(u.earmicChanges[n-1].Ts)
	}
	u.prevEarmicTs = saturatingSubI32(prevTs, u.profile.FrameTstates())
	u.earmicChanges = u.earmicChanges[:0]
	u.prevEarmicData = u.lastEarmicData
	u.prevEarIn = u.readEarIn(u.tsc)

	index := u.earInLastIndex
	if index < len(u.earInChanges) && !vtsLess(u.tsc, u.earInChanges[index].Ts) {
		index++
	}
	kept := copy(u.earInChanges, u.earInChanges[index:])
	for i := 0; i < kept; i++ {
		u.earInChanges[i].Ts.Vc -= u.profile.VslCount
	}
	u.earInChanges = u.earInChanges[:kept]
	u.earInLastIndex = 0
}

func saturatingSubI32(a, b int32) int32 {
	r := int64(a) - int64(b)
	if r < -1<<31 {
		return -1 << 31
	}
	return int32(r)
}

// =============================================================================
// MIC output pulses
// =============================================================================

// MicOutPulses returns this frame's MIC output as a sequence of pulse
// widths in T-states, the form tape savers consume. A pulse crossing
// backwards in time violates the log invariant and panics.
func (u *ULA) MicOutPulses() []uint32 {
	var pulses []uint32
	lastTs := u.prevEarmicTs
	lastData := u.prevEarmicData
	for _, change := range u.earmicChanges {
		if (lastData^change.Data)&1 == 1 {
			ts := u.profile.VtsToTstates(change.Ts)
			delta := int64(ts) - int64(lastTs)
			if delta <= 0 {
				panic("ULA.MicOutPulses: mic out timestamps must always ascend")
			}
			if delta > 0xFFFFFFFF {
				delta = 0xFFFFFFFF
			}
			pulses = append(pulses, uint32(delta))
			lastTs = ts
			lastData = change.Data
		}
	}
	return pulses
}
