// blep_test.go - Band-limited step sink test suite

package main

import "testing"

// TestBlep_StepIntegration tests that steps integrate to levels.
func TestBlep_StepIntegration(t *testing.T) {
	b := NewBandLimited(1)
	b.EnsureFrameTime(44100, 3_500_000, 69888, MARGIN_TSTATES)

	b.AddStep(0, 10.0, 1.0)
	b.AddStep(0, 20.0, -1.0)
	n := b.EndFrame(100.0)
	if n != 100 {
		t.Fatalf("EndFrame = %d samples, expected 100", n)
	}
	out := make([]float32, n)
	if got := b.DrainAudio(out); got != 100 {
		t.Fatalf("DrainAudio = %d, expected 100", got)
	}
	if out[5] != 0 {
		t.Errorf("sample 5 = %f, expected silence before the step", out[5])
	}
	if out[15] != 1.0 {
		t.Errorf("sample 15 = %f, expected level 1 between steps", out[15])
	}
	if out[50] != 0 {
		t.Errorf("sample 50 = %f, expected level back at 0", out[50])
	}
}

// TestBlep_FractionalSplit tests first-order step placement.
func TestBlep_FractionalSplit(t *testing.T) {
	b := NewBandLimited(1)
	b.EnsureFrameTime(44100, 3_500_000, 69888, MARGIN_TSTATES)
	b.AddStep(0, 10.25, 1.0)
	n := b.EndFrame(20.0)
	out := make([]float32, n)
	b.DrainAudio(out)
	if out[9] != 0 {
		t.Errorf("sample 9 = %f, expected untouched", out[9])
	}
	if out[10] != 0.75 {
		t.Errorf("sample 10 = %f, expected 0.75 of the step", out[10])
	}
	if out[11] != 1.0 {
		t.Errorf("sample 11 = %f, expected the full level", out[11])
	}
}

// TestBlep_FrameCarry tests the fractional frame boundary carry.
func TestBlep_FrameCarry(t *testing.T) {
	b := NewBandLimited(1)
	b.EnsureFrameTime(44100, 3_500_000, 69888, MARGIN_TSTATES)

	n := b.EndFrame(10.6)
	if n != 10 {
		t.Fatalf("first frame = %d samples, expected 10", n)
	}
	b.DrainAudio(make([]float32, n))
	// The 0.6 sample carry joins the next frame.
	n = b.EndFrame(10.6)
	if n != 11 {
		t.Errorf("second frame = %d samples, expected 11 with the carry", n)
	}
}

// TestBlep_MultiChannelMix tests the mono mixdown across channels.
func TestBlep_MultiChannelMix(t *testing.T) {
	b := NewBandLimited(2)
	b.EnsureFrameTime(44100, 3_500_000, 69888, MARGIN_TSTATES)
	b.AddStep(0, 5.0, 0.25)
	b.AddStep(1, 5.0, 0.50)
	n := b.EndFrame(20.0)
	out := make([]float32, n)
	b.DrainAudio(out)
	if out[10] != 0.75 {
		t.Errorf("mixed sample = %f, expected 0.75", out[10])
	}
}

// TestBlep_LevelPersistsAcrossFrames tests integrator continuity.
func TestBlep_LevelPersistsAcrossFrames(t *testing.T) {
	b := NewBandLimited(1)
	b.EnsureFrameTime(44100, 3_500_000, 69888, MARGIN_TSTATES)
	b.AddStep(0, 0.0, 1.0)
	n := b.EndFrame(10.0)
	b.DrainAudio(make([]float32, n))

	n = b.EndFrame(10.0)
	out := make([]float32, n)
	b.DrainAudio(out)
	if out[5] != 1.0 {
		t.Errorf("held level = %f, expected 1.0 across the frame boundary", out[5])
	}
}
