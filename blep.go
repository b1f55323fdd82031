// blep.go - Band-limited step synthesis sink

/*
blep.go - Band-Limited Step Sink

Audio in this core is produced as step deltas on a T-state timeline:
whenever a generator's output level changes, a (channel, time, delta)
triple is pushed into a Blep sink. The sink reconstructs a sampled
waveform from the steps; the audio backends drain whole frames of
samples from it.

BandLimited is the concrete sink: a per-channel delta buffer with
first-order (linear) step placement and a fractional-sample carry
across frames, integrated on drain. TimeRate converts T-states into
fractional sample positions.
*/

package main

import "math"

// MARGIN_TSTATES pads the sample buffer beyond one frame so steps
// recorded past the nominal frame end still land inside it.
const MARGIN_TSTATES = 448

// TimeRate converts a T-state count into a sample position.
type TimeRate float64

// NewTimeRate derives the samples-per-T-state rate.
func NewTimeRate(sampleRate, cpuHz uint32) TimeRate {
	return TimeRate(float64(sampleRate) / float64(cpuHz))
}

// AtTimestamp returns the fractional sample position of a frame T-state.
func (r TimeRate) AtTimestamp(ts int32) float64 {
	return float64(r) * float64(ts)
}

// Blep accepts amplitude step deltas on a simulated timeline.
type Blep interface {
	// EnsureFrameTime sizes the sink for frames of frameTs T-states
	// (plus margin) at the given rates. Must be called before the
	// first AddStep and again whenever the rates change.
	EnsureFrameTime(sampleRate, cpuHz uint32, frameTs, marginTs int32)
	// AddStep records an amplitude change of delta on channel at the
	// given fractional sample time.
	AddStep(channel int, time float64, delta float32)
	// EndFrame closes the frame at the given time and returns the
	// number of whole samples now ready to drain.
	EndFrame(time float64) int
}

// BandLimited is the concrete Blep sink used by the audio backends.
type BandLimited struct {
	chans [][]float32 // step deltas per channel
	accum []float32   // per-channel integrators, carried across drains
	frac  float64     // fractional sample carry between frames
	ready int
}

// NewBandLimited creates a sink with the given number of channels.
func NewBandLimited(numChannels int) *BandLimited {
	return &BandLimited{
		chans: make([][]float32, numChannels),
		accum: make([]float32, numChannels),
	}
}

// Channels returns the channel count.
func (b *BandLimited) Channels() int { return len(b.chans) }

func (b *BandLimited) EnsureFrameTime(sampleRate, cpuHz uint32, frameTs, marginTs int32) {
	rate := NewTimeRate(sampleRate, cpuHz)
	capacity := int(math.Ceil(rate.AtTimestamp(frameTs+marginTs))) + 2
	for i := range b.chans {
		if len(b.chans[i]) < capacity {
			buf := make([]float32, capacity)
			copy(buf, b.chans[i])
			b.chans[i] = buf
		}
	}
}

func (b *BandLimited) AddStep(channel int, time float64, delta float32) {
	pos := time + b.frac
	idx := int(pos)
	if idx < 0 {
		idx, pos = 0, 0
	}
	buf := b.chans[channel]
	if idx+1 >= len(buf) {
		grown := make([]float32, idx+2)
		copy(grown, buf)
		buf = grown
		b.chans[channel] = buf
	}
	fr := float32(pos - float64(idx))
	buf[idx] += delta * (1 - fr)
	buf[idx+1] += delta * fr
}

func (b *BandLimited) EndFrame(time float64) int {
	pos := time + b.frac
	n := int(pos)
	b.frac = pos - float64(n)
	b.ready = n
	return n
}

// SamplesReady returns the number of samples the last EndFrame closed.
func (b *BandLimited) SamplesReady() int { return b.ready }

// DrainAudio integrates the ready samples into dst as a mono mix of
// all channels and rolls the delta buffers over to the next frame.
// It returns the number of samples written.
func (b *BandLimited) DrainAudio(dst []float32) int {
	n := b.ready
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		var sample float32
		for ch := range b.chans {
			b.accum[ch] += b.chans[ch][i]
			sample += b.accum[ch]
		}
		dst[i] = sample
	}
	// Samples not drained are dropped but their deltas still integrate
	// so the output level stays correct.
	for i := n; i < b.ready; i++ {
		for ch := range b.chans {
			b.accum[ch] += b.chans[ch][i]
		}
	}
	for ch := range b.chans {
		buf := b.chans[ch]
		copy(buf, buf[b.ready:])
		for i := len(buf) - b.ready; i < len(buf); i++ {
			buf[i] = 0
		}
	}
	b.ready = 0
	return n
}
