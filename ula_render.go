// ula_render.go - Frame renderer: border, pixel cells, flash

/*
ula_render.go - ULA Frame Renderer

Paints one finished frame into an RGBA buffer. Two inputs cooperate:
the border-change log is drained in timestamp order so each 8-pixel
border slice gets the color that was on the wire when the beam drew
it, and the frame cache overlays screen memory so mid-frame writes
appear at the correct vertical position. Cells whose attribute has the
FLASH bit swap ink and paper when the frame's flash phase is on.
*/

package main

import "fmt"

// Renderer paints one frame. Build it with ULA.CreateRenderer; the
// border-change log is drained by Render.
type Renderer struct {
	profile       *VideoFrameProfile
	screen        []uint8
	cache         *UlaFrameCache
	border        uint8
	borderSize    BorderSize
	borderChanges []TsData
	invertFlash   bool
}

// CreateRenderer captures this frame's render inputs and drains the
// border-change log.
func (u *ULA) CreateRenderer(borderSize BorderSize) *Renderer {
	changes := u.borderChanges
	u.borderChanges = u.borderChanges[len(u.borderChanges):]
	return &Renderer{
		profile:       u.profile,
		screen:        u.screen(),
		cache:         &u.frameCache,
		border:        u.border,
		borderSize:    borderSize,
		borderChanges: changes,
		invertFlash:   u.InvertFlash(),
	}
}

// RenderVideoFrame paints the frame into an RGBA buffer of pitch
// bytes per line, then rolls the border log over.
func (u *ULA) RenderVideoFrame(buffer []uint8, pitch int, borderSize BorderSize) error {
	return u.CreateRenderer(borderSize).Render(buffer, pitch)
}

// RenderedFrameSize returns the output dimensions for a border size.
func RenderedFrameSize(borderSize BorderSize) (w, h int, err error) {
	bp := BorderSizePixels(borderSize)
	if bp < 0 {
		return 0, 0, fmt.Errorf("invalid border size: %d", borderSize)
	}
	return ULA_DISPLAY_WIDTH + 2*bp, ULA_DISPLAY_HEIGHT + 2*bp, nil
}

// Render paints the captured frame. The buffer must hold the full
// rendered height at the given pitch.
func (r *Renderer) Render(buffer []uint8, pitch int) error {
	w, h, err := RenderedFrameSize(r.borderSize)
	if err != nil {
		return err
	}
	if pitch < w*4 || len(buffer) < pitch*h {
		return fmt.Errorf("render buffer too small: %d bytes for %dx%d at pitch %d",
			len(buffer), w, h, pitch)
	}
	bp := BorderSizePixels(r.borderSize)
	inv := int16((MAX_BORDER_SIZE - bp) / 2)
	firstHts := r.profile.BorderHcStart + inv
	firstLine := r.profile.VslPixelsStart - int16(bp)
	lastLine := r.profile.VslPixelsEnd + int16(bp)

	wholeLine := r.profile.BorderWholeLineHtsIter(r.borderSize)
	leftBorder := r.profile.BorderLeftHtsIter(r.borderSize)
	rightBorder := r.profile.BorderRightHtsIter(r.borderSize)

	borderColor := r.border
	changes := r.borderChanges
	applyChanges := func(vc, hc int16) {
		for len(changes) != 0 && !vtsLess(VideoTs{vc, hc}, changes[0].Ts) {
			borderColor = changes[0].Data
			changes = changes[1:]
		}
	}
	paintBorder := func(line []uint8, vc int16, positions []int16) {
		for _, hc := range positions {
			applyChanges(vc, hc)
			rgba := ulaPaletteRGBA[borderColor]
			x := int(hc-firstHts) * 2 * 4
			for i := 0; i < 8; i++ {
				copy(line[x+i*4:], rgba[:])
			}
		}
	}

	for vc := firstLine; vc < lastLine; vc++ {
		line := buffer[int(vc-firstLine)*pitch:]
		if vc < r.profile.VslPixelsStart || vc >= r.profile.VslPixelsEnd {
			paintBorder(line, vc, wholeLine)
			continue
		}
		paintBorder(line, vc, leftBorder)
		y := vc - r.profile.VslPixelsStart
		for col := uint8(0); col < ULA_CELLS_X; col++ {
			bitmap := r.cache.PixelByte(r.screen, y, col)
			attr := r.cache.ColorByte(r.screen, y, col)
			ink := attr & 0x07
			paper := attr >> 3 & 0x07
			if attr&0x80 != 0 && r.invertFlash {
				ink, paper = paper, ink
			}
			var brightOff uint8
			if attr&0x40 != 0 {
				brightOff = 8
			}
			fg := ulaPaletteRGBA[brightOff+ink]
			bg := ulaPaletteRGBA[brightOff+paper]
			x := (bp + int(col)*8) * 4
			for bit := 7; bit >= 0; bit-- {
				px := x + (7-bit)*4
				if bitmap>>bit&1 != 0 {
					copy(line[px:], fg[:])
				} else {
					copy(line[px:], bg[:])
				}
			}
		}
		paintBorder(line, vc, rightBorder)
	}
	return nil
}
