// ula_clock_test.go - Video timestamp arithmetic test suite

package main

import "testing"

// TestClock_VtsConversions tests flat T-state conversions, frame
// normalization and the EOF predicate across the frame boundary.
func TestClock_VtsConversions(t *testing.T) {
	f := UlaVideoProfile
	testCases := []struct {
		vc, hc     int16
		fts        int32
		nfr        uint64
		nfts       int32
		eof        bool
		normalized bool
		nvc, nhc   int16
	}{
		{0, -69, -69, 0, 69819, false, true, 0, -69},
		{0, 0, 0, 1, 0, false, true, 0, 0},
		{0, -1, -1, 0, 69887, false, true, 0, -1},
		{-1, 0, -224, 0, 69664, false, true, -1, 0},
		{1, 0, 224, 1, 224, false, true, 1, 0},
		{312, -1, 69887, 1, 69887, true, true, 312, -1},
		{312, 0, 69888, 2, 0, true, true, 312, 0},
		{0, 224, 224, 1, 224, false, false, 1, 0},
		{624, -223, 139553, 2, 69665, true, false, 623, 1},
	}
	for _, tc := range testCases {
		vts := VideoTs{tc.vc, tc.hc}
		if got := f.VcHcToTstates(tc.vc, tc.hc); got != tc.fts {
			t.Errorf("VcHcToTstates(%d, %d) = %d, expected %d", tc.vc, tc.hc, got, tc.fts)
		}
		if got := f.VtsToTstates(vts); got != tc.fts {
			t.Errorf("VtsToTstates(%v) = %d, expected %d", vts, got, tc.fts)
		}
		norm := VideoTs{tc.nvc, tc.nhc}
		if got := f.TstatesToVts(tc.fts); got != norm {
			t.Errorf("TstatesToVts(%d) = %v, expected %v", tc.fts, got, norm)
		}
		nfr, nfts := f.VtsToNormTstates(1, vts)
		if nfr != tc.nfr || nfts != tc.nfts {
			t.Errorf("VtsToNormTstates(1, %v) = (%d, %d), expected (%d, %d)",
				vts, nfr, nfts, tc.nfr, tc.nfts)
		}
		if got := f.IsVtsEof(vts); got != tc.eof {
			t.Errorf("IsVtsEof(%v) = %v, expected %v", vts, got, tc.eof)
		}
		if got := f.IsNormalizedVts(vts); got != tc.normalized {
			t.Errorf("IsNormalizedVts(%v) = %v, expected %v", vts, got, tc.normalized)
		}
		if got := f.NormalizeVts(vts); got != norm {
			t.Errorf("NormalizeVts(%v) = %v, expected %v", vts, got, norm)
		}
	}

	if got := f.VtsMax(); got != (VideoTs{32767, 154}) {
		t.Errorf("VtsMax() = %v, expected {32767 154}", got)
	}
	if got := f.VtsMin(); got != (VideoTs{-32768, -69}) {
		t.Errorf("VtsMin() = %v, expected {-32768 -69}", got)
	}
}

// TestClock_VtsAddDiff tests delta addition and distances.
func TestClock_VtsAddDiff(t *testing.T) {
	f := UlaVideoProfile
	testCases := []struct {
		vc0, hc0 int16
		delta    uint32
		vc1, hc1 int16
	}{
		{0, 0, 0, 0, 0},
		{0, 0, 1, 0, 1},
		{-1, 154, 1, 0, -69},
		{0, 0, 224, 1, 0},
		{-1, 1, 223, 0, 0},
		{0, 0, 69888, 312, 0},
		{1, -1, 69888, 313, -1},
		{2, 224, 69888, 315, 0},
	}
	for _, tc := range testCases {
		vts0 := VideoTs{tc.vc0, tc.hc0}
		vts1 := VideoTs{tc.vc1, tc.hc1}
		if got := f.VtsAddTs(vts0, tc.delta); got != vts1 {
			t.Errorf("VtsAddTs(%v, %d) = %v, expected %v", vts0, tc.delta, got, vts1)
		}
		if got := f.VtsDiff(vts0, vts1); got != int32(tc.delta) {
			t.Errorf("VtsDiff(%v, %v) = %d, expected %d", vts0, vts1, got, tc.delta)
		}
		if got := f.VtsDiff(vts1, vts0); got != -int32(tc.delta) {
			t.Errorf("VtsDiff(%v, %v) = %d, expected %d", vts1, vts0, got, -int32(tc.delta))
		}
	}
}

// TestClock_SaturatingFrameSub tests the per-frame wrap subtraction.
func TestClock_SaturatingFrameSub(t *testing.T) {
	f := UlaVideoProfile
	testCases := []struct {
		vc0, hc0 int16
		vc1, hc1 int16
	}{
		{312, 0, 0, 0},
		{312, -69, 0, -69},
		{623, 154, 311, 154},
		{0, 224, -312, 224},
		{-32767, -32768, -32768, -32768},
		{-32768, -32768, -32768, -32768},
	}
	for _, tc := range testCases {
		vts := VideoTs{tc.vc0, tc.hc0}
		expected := VideoTs{tc.vc1, tc.hc1}
		if got := f.VtsSaturatingSubFrame(vts); got != expected {
			t.Errorf("VtsSaturatingSubFrame(%v) = %v, expected %v", vts, got, expected)
		}
	}
}

// TestClock_SaturatingAddSub tests the saturating timestamp sum and
// difference used by the tape feed.
func TestClock_SaturatingAddSub(t *testing.T) {
	f := UlaVideoProfile
	testCases := []struct {
		vc0, hc0 int16
		vc1, hc1 int16
		svc, shc int16
		avc, ahc int16
	}{
		{0, 0, 0, 0, 0, 0, 0, 0},
		{1, 1, 1, 1, 0, 0, 2, 2},
		{1, 1, -1, -1, 2, 2, 0, 0},
		{1, 154, 1, 1, 0, 153, 3, -69},
		{-32768, -69, 1, 1, -32768, -69, -32767, -68},
		{-32768, -69, -32768, -69, 0, 0, -32768, -69},
		{32767, 154, 1, 1, 32766, 153, 32767, 154},
		{32767, 154, 32767, 154, 0, 0, 32767, 154},
	}
	for _, tc := range testCases {
		vts0 := VideoTs{tc.vc0, tc.hc0}
		vts1 := VideoTs{tc.vc1, tc.hc1}
		sub := VideoTs{tc.svc, tc.shc}
		add := VideoTs{tc.avc, tc.ahc}
		if got := f.VtsSaturatingSubVts(vts0, vts1); got != sub {
			t.Errorf("VtsSaturatingSubVts(%v, %v) = %v, expected %v", vts0, vts1, got, sub)
		}
		if got := f.VtsSaturatingAddVts(vts0, vts1); got != add {
			t.Errorf("VtsSaturatingAddVts(%v, %v) = %v, expected %v", vts0, vts1, got, add)
		}
		if got := f.VtsSaturatingAddVts(vts1, vts0); got != add {
			t.Errorf("VtsSaturatingAddVts(%v, %v) = %v, expected %v", vts1, vts0, got, add)
		}
	}
}
