// ula_render_test.go - Frame renderer test suite

package main

import "testing"

func renderTestFrame(t *testing.T, ula *ULA, size BorderSize) ([]uint8, int, int) {
	t.Helper()
	w, h, err := RenderedFrameSize(size)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]uint8, w*h*4)
	if err := ula.RenderVideoFrame(buf, w*4, size); err != nil {
		t.Fatal(err)
	}
	return buf, w, h
}

func pixelAt(buf []uint8, w, x, y int) [4]uint8 {
	off := (y*w + x) * 4
	return [4]uint8{buf[off], buf[off+1], buf[off+2], buf[off+3]}
}

// TestRender_Dimensions tests output sizes per border choice.
func TestRender_Dimensions(t *testing.T) {
	testCases := []struct {
		size BorderSize
		w, h int
	}{
		{BorderFull, 352, 288},
		{BorderMedium, 320, 256},
		{BorderNone, 256, 192},
	}
	for _, tc := range testCases {
		w, h, err := RenderedFrameSize(tc.size)
		if err != nil {
			t.Fatal(err)
		}
		if w != tc.w || h != tc.h {
			t.Errorf("RenderedFrameSize(%d) = %dx%d, expected %dx%d", tc.size, w, h, tc.w, tc.h)
		}
	}
	if _, _, err := RenderedFrameSize(BorderSize(99)); err == nil {
		t.Error("invalid border size must fail")
	}
}

// TestRender_BorderFill tests the frame-start border color fill.
func TestRender_BorderFill(t *testing.T) {
	ula := NewULA(UlaVideoProfile, UlaMemoryContention{}, nil)
	ula.border = 1 // blue from frame start
	buf, w, h := renderTestFrame(t, ula, BorderFull)

	blue := ulaPaletteRGBA[1]
	if got := pixelAt(buf, w, 0, 0); got != blue {
		t.Errorf("top-left border = %v, expected blue %v", got, blue)
	}
	if got := pixelAt(buf, w, w-1, h-1); got != blue {
		t.Errorf("bottom-right border = %v, expected blue %v", got, blue)
	}
	// Pixel area renders paper (black) over a zeroed screen.
	if got := pixelAt(buf, w, 48, 48); got != ulaPaletteRGBA[0] {
		t.Errorf("pixel area = %v, expected black", got)
	}
}

// TestRender_BorderChangeMidFrame tests the timestamped border drain.
func TestRender_BorderChangeMidFrame(t *testing.T) {
	ula := NewULA(UlaVideoProfile, UlaMemoryContention{}, nil)
	ula.border = 0
	ula.lastBorder = 0
	// Switch to red halfway down the top border.
	mid := (UlaVideoProfile.VslPixelsStart - 48) + 24
	ula.borderChanges = append(ula.borderChanges, TsData{Ts: VideoTs{mid, -21}, Data: 2})
	buf, w, _ := renderTestFrame(t, ula, BorderFull)

	if got := pixelAt(buf, w, 0, 0); got != ulaPaletteRGBA[0] {
		t.Errorf("border before the change = %v, expected black", got)
	}
	if got := pixelAt(buf, w, 0, 25); got != ulaPaletteRGBA[2] {
		t.Errorf("border after the change = %v, expected red", got)
	}
	if len(ula.borderChanges) != 0 {
		t.Error("renderer must drain the border log")
	}
}

// TestRender_InkPaperCell tests bitmap and attribute resolution.
func TestRender_InkPaperCell(t *testing.T) {
	ula := NewULA(UlaVideoProfile, UlaMemoryContention{}, nil)
	ula.Memory()[ScreenBase] = 0x80                      // leftmost pixel set
	ula.Memory()[ScreenBase+ULA_ATTR_OFFSET] = 0x47      // bright white on black
	buf, w, _ := renderTestFrame(t, ula, BorderNone)

	if got := pixelAt(buf, w, 0, 0); got != ulaPaletteRGBA[8+7] {
		t.Errorf("ink pixel = %v, expected bright white", got)
	}
	if got := pixelAt(buf, w, 1, 0); got != ulaPaletteRGBA[0] {
		t.Errorf("paper pixel = %v, expected black", got)
	}
}

// TestRender_FlashInversion tests ink/paper swap on the flash phase.
func TestRender_FlashInversion(t *testing.T) {
	ula := NewULA(UlaVideoProfile, UlaMemoryContention{}, nil)
	ula.Memory()[ScreenBase] = 0x80
	ula.Memory()[ScreenBase+ULA_ATTR_OFFSET] = 0x87 // flash, white on black

	ula.frames = 0 // flash phase off
	buf, w, _ := renderTestFrame(t, ula, BorderNone)
	if got := pixelAt(buf, w, 0, 0); got != ulaPaletteRGBA[7] {
		t.Errorf("flash off: ink = %v, expected white", got)
	}

	ula.frames = 16 // flash phase on
	buf, w, _ = renderTestFrame(t, ula, BorderNone)
	if got := pixelAt(buf, w, 0, 0); got != ulaPaletteRGBA[0] {
		t.Errorf("flash on: ink = %v, expected swapped to black", got)
	}
}

// TestRender_MidFrameWriteUsesCache tests that a write landing after
// the beam passed its line renders the pre-write byte from the cache
// while memory holds the new byte.
func TestRender_MidFrameWriteUsesCache(t *testing.T) {
	ula := NewULA(UlaVideoProfile, UlaMemoryContention{}, nil)
	// Line 0 and line 100 share nothing; write line 0's byte while
	// the beam is at line 100 of the pixel area.
	ula.Memory()[ScreenBase] = 0xFF
	ula.WriteMem(ScreenBase, 0x00, VideoTs{UlaVideoProfile.VslPixelsStart + 100, 0})

	buf, w, _ := renderTestFrame(t, ula, BorderNone)
	if got := pixelAt(buf, w, 0, 0); got != ulaPaletteRGBA[0] {
		// attr 0: black ink on black paper; the set bit shows ink.
		t.Errorf("cached cell = %v, expected ink (black)", got)
	}
	// The cache recorded the pre-write bitmap for line 0.
	if got := ula.frameCache.PixelByte(ula.screen(), 0, 0); got != 0xFF {
		t.Errorf("cache byte = %#02x, expected pre-write 0xFF", got)
	}
	if got := ula.Memory()[ScreenBase]; got != 0x00 {
		t.Errorf("memory byte = %#02x, expected post-write 0x00", got)
	}
}

// TestRender_BufferTooSmall tests the renderer's size guard.
func TestRender_BufferTooSmall(t *testing.T) {
	ula := NewULA(UlaVideoProfile, UlaMemoryContention{}, nil)
	buf := make([]uint8, 16)
	if err := ula.RenderVideoFrame(buf, 256*4, BorderNone); err == nil {
		t.Error("undersized buffer must be rejected")
	}
}
