// video_frame.go - Per-variant video frame timing profiles

/*
video_frame.go - ZX Spectrum Video Frame Profiles

A VideoFrameProfile is a pure-data description of one machine variant's
video timing: the horizontal T-state range of a scan line, which scan
lines display pixels, how the ULA delays contended accesses inside the
pixel fetch window, which T-states expose the floating bus, and where
"snow" corruption lands when a contended opcode fetch collides with a
pixel fetch.

The 48K and 128K profiles differ only in these constants and phase
shifts. The frame origin convention: flat T-state 0 corresponds to
VideoTs{0, 0}, which is 69 (48K) or 73 (128K) T-states into scan
line 0; the maskable interrupt is asserted there.
*/

package main

// CellCoords addresses one 8x1 pixel cell on the screen: Column is the
// byte column 0-31, Row the scan line 0-191 within the pixel area.
type CellCoords struct {
	Column uint8
	Row    uint8
}

// BorderSize selects how much of the overscan border the renderer
// reproduces around the 256x192 pixel area.
type BorderSize int

const (
	BorderFull BorderSize = iota
	BorderLarge
	BorderMedium
	BorderSmall
	BorderTiny
	BorderMinimal
	BorderNone
)

// MAX_BORDER_SIZE is the widest rendered border in pixels per side.
const MAX_BORDER_SIZE = 48

// BorderSizePixels returns the border thickness in pixels for a size.
func BorderSizePixels(size BorderSize) int {
	switch size {
	case BorderFull:
		return 48
	case BorderLarge:
		return 40
	case BorderMedium:
		return 32
	case BorderSmall:
		return 24
	case BorderTiny:
		return 16
	case BorderMinimal:
		return 8
	case BorderNone:
		return 0
	}
	return -1
}

// VideoFrameProfile describes the frame geometry and timing quirks of
// one ULA variant. All methods are pure functions of the profile.
type VideoFrameProfile struct {
	Name  string
	CpuHz uint32

	// Horizontal T-state range of a scan line. 0 is where the frame
	// (and the maskable interrupt) starts.
	HtsStart int16
	HtsEnd   int16

	// Scan line layout.
	VslBorderTop   int16 // first visible top border line
	VslPixelsStart int16 // first pixel line
	VslPixelsEnd   int16 // one past the last pixel line
	VslBorderBot   int16 // last visible bottom border line
	VslCount       int16 // total scan lines per frame

	// Contention window and slot phase: inside [ContStart, ContEnd)
	// an access at hc is delayed to the next slot boundary when
	// (hc+ContPhase)&7 < 6.
	ContStart int16
	ContEnd   int16
	ContPhase int16

	// Floating bus: cell offsets are exposed at (hc+FbusShift) when
	// that value is in 0..=123 with bit 2 clear.
	FbusShift int16

	// Snow interference: at (hc-SnowShift) in 0..=SnowMax the fetched
	// cell column offset is SnowOffs[(hc-SnowShift)&7] (-1: no fetch).
	SnowShift int16
	SnowMax   int16
	SnowOffs  [8]int8

	// Leftmost border hts position of a full-width line. The pixel
	// area occupies the 128 hts starting 24 hts later.
	BorderHcStart int16
}

// UlaVideoProfile is the 16k/48k ULA frame: 312 lines of 224 T-states.
var UlaVideoProfile = &VideoFrameProfile{
	Name:           "48k",
	CpuHz:          3_500_000,
	HtsStart:       -69,
	HtsEnd:         155,
	VslBorderTop:   16,
	VslPixelsStart: 64,
	VslPixelsEnd:   256,
	VslBorderBot:   304,
	VslCount:       312,
	ContStart:      -1,
	ContEnd:        125,
	ContPhase:      1,
	FbusShift:      0,
	SnowShift:      2,
	SnowMax:        123,
	SnowOffs:       [8]int8{0, 0, 1, 1, -1, -1, -1, -1},
	BorderHcStart:  -20,
}

// Ula128VideoProfile is the 128k ULA frame: 311 lines, shifted phases.
var Ula128VideoProfile = &VideoFrameProfile{
	Name:           "128k",
	CpuHz:          3_546_900,
	HtsStart:       -73,
	HtsEnd:         155,
	VslBorderTop:   15,
	VslPixelsStart: 63,
	VslPixelsEnd:   255,
	VslBorderBot:   303,
	VslCount:       311,
	ContStart:      -3,
	ContEnd:        123,
	ContPhase:      3,
	FbusShift:      2,
	SnowShift:      0,
	SnowMax:        122,
	SnowOffs:       [8]int8{0, -1, 1, -1, -1, -1, -1, -1},
	BorderHcStart:  -22,
}

// HtsCount returns the scan line length in T-states.
func (f *VideoFrameProfile) HtsCount() int16 {
	return f.HtsEnd - f.HtsStart
}

// FrameTstates returns the total frame length in T-states.
func (f *VideoFrameProfile) FrameTstates() int32 {
	return int32(f.VslCount) * int32(f.HtsCount())
}

// Contention maps an access T-state to the T-state at which the access
// actually completes. Outside the contended window it is the identity.
func (f *VideoFrameProfile) Contention(hc int16) int16 {
	if hc >= f.ContStart && hc < f.ContEnd {
		ct := (hc + f.ContPhase) & 7
		if ct < 6 {
			return hc + 6 - ct
		}
	}
	return hc
}

// FloatingBusOffset returns the screen cell offset readable from an
// unclaimed input port at hc, or ok=false outside the fetch slots.
func (f *VideoFrameProfile) FloatingBusOffset(hc int16) (uint16, bool) {
	c := hc + f.FbusShift
	if c >= 0 && c <= 123 && c&4 == 0 {
		return uint16(c), true
	}
	return 0, false
}

// FloatingBusScreenAddress resolves the floating bus cell offset into
// the screen-relative address the ULA is fetching at vts: alternating
// pixel and attribute bytes for a pair of adjacent columns.
func (f *VideoFrameProfile) FloatingBusScreenAddress(vts VideoTs) (uint16, bool) {
	if vts.Vc < f.VslPixelsStart || vts.Vc >= f.VslPixelsEnd {
		return 0, false
	}
	offs, ok := f.FloatingBusOffset(vts.Hc)
	if !ok {
		return 0, false
	}
	y := uint16(vts.Vc - f.VslPixelsStart)
	col := (offs >> 3) << 1
	switch offs & 3 {
	case 0:
		return pixelLineAddress(y) + col, true
	case 1:
		return colorCellAddress(y) + col, true
	case 2:
		return pixelLineAddress(y) + col + 1, true
	default:
		return colorCellAddress(y) + col + 1, true
	}
}

// SnowInterferenceCoords returns the cell whose data fetch collides
// with a contended opcode fetch at vts, or ok=false when the fetch at
// vts cannot interfere.
func (f *VideoFrameProfile) SnowInterferenceCoords(vts VideoTs) (CellCoords, bool) {
	row := vts.Vc - f.VslPixelsStart
	if row >= 0 && vts.Vc < f.VslPixelsEnd {
		hc := vts.Hc - f.SnowShift
		if hc >= 0 && hc <= f.SnowMax {
			if offs := f.SnowOffs[hc&7]; offs >= 0 {
				column := uint8((hc>>2)&^1) | uint8(offs)
				return CellCoords{Column: column, Row: uint8(row)}, true
			}
		}
	}
	return CellCoords{}, false
}

// BorderWholeLineHtsIter returns the hts positions at which the border
// of a non-pixel line is repainted, 8 pixels per position.
func (f *VideoFrameProfile) BorderWholeLineHtsIter(size BorderSize) []int16 {
	inv := int16((MAX_BORDER_SIZE - BorderSizePixels(size)) / 2)
	return htsSteps(f.BorderHcStart+inv, f.BorderHcStart+176-inv)
}

// BorderLeftHtsIter returns the hts positions of the left border on a
// pixel line.
func (f *VideoFrameProfile) BorderLeftHtsIter(size BorderSize) []int16 {
	inv := int16((MAX_BORDER_SIZE - BorderSizePixels(size)) / 2)
	return htsSteps(f.BorderHcStart+inv, f.BorderHcStart+24)
}

// BorderRightHtsIter returns the hts positions of the right border on
// a pixel line.
func (f *VideoFrameProfile) BorderRightHtsIter(size BorderSize) []int16 {
	inv := int16((MAX_BORDER_SIZE - BorderSizePixels(size)) / 2)
	return htsSteps(f.BorderHcStart+152, f.BorderHcStart+176-inv)
}

func htsSteps(start, end int16) []int16 {
	steps := make([]int16, 0, (end-start+3)/4)
	for hc := start; hc < end; hc += 4 {
		steps = append(steps, hc)
	}
	return steps
}

// pixelLineAddress returns the screen-relative address of the first
// pixel byte of line y, following the interleaved Spectrum layout.
func pixelLineAddress(y uint16) uint16 {
	return (y&0xC0)<<5 | (y&0x07)<<8 | (y&0x38)<<2
}

// colorCellAddress returns the screen-relative address of the first
// attribute byte covering line y.
func colorCellAddress(y uint16) uint16 {
	return 0x1800 + (y>>3)<<5
}
