//go:build !headless

// video_backend_ebiten.go - Ebiten windowed video backend

package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.design/x/clipboard"
)

// EbitenOutput opens a window and pumps machine frames into it at 50
// frames per second. Keyboard events feed the ZX matrix and the
// selected joystick; F12 copies a screenshot to the clipboard.
type EbitenOutput struct {
	keys     KeyEventSink
	joystick func() JoystickInterface

	clipboardOk bool
}

func NewEbitenOutput() *EbitenOutput {
	out := &EbitenOutput{}
	if err := clipboard.Init(); err == nil {
		out.clipboardOk = true
	}
	return out
}

// SetKeySink wires keyboard transitions into the machine matrix.
func (o *EbitenOutput) SetKeySink(sink KeyEventSink) { o.keys = sink }

// SetJoystick wires the joystick input side; the getter is consulted
// each frame so run-time joystick swaps take effect immediately.
func (o *EbitenOutput) SetJoystick(get func() JoystickInterface) { o.joystick = get }

func (o *EbitenOutput) Run(cfg DisplayConfig, nextFrame func() ([]uint8, error)) error {
	scale := ClampScale(cfg.Scale)
	ebiten.SetWindowSize(cfg.Width*scale, cfg.Height*scale)
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetTPS(50)
	game := &ebitenGame{
		out:       o,
		width:     cfg.Width,
		height:    cfg.Height,
		nextFrame: nextFrame,
		screen:    ebiten.NewImage(cfg.Width, cfg.Height),
	}
	return ebiten.RunGame(game)
}

type ebitenGame struct {
	out       *EbitenOutput
	width     int
	height    int
	nextFrame func() ([]uint8, error)
	screen    *ebiten.Image
	lastFrame []uint8
}

func (g *ebitenGame) Update() error {
	g.handleInput()
	frame, err := g.nextFrame()
	if err != nil {
		return err
	}
	g.lastFrame = frame
	g.screen.WritePixels(frame)
	return nil
}

func (g *ebitenGame) Draw(screen *ebiten.Image) {
	screen.DrawImage(g.screen, nil)
}

func (g *ebitenGame) Layout(w, h int) (int, int) {
	return g.width, g.height
}

// zxKeyMatrix maps host keys onto the 8x5 ZX matrix.
var zxKeyMatrix = map[ebiten.Key][2]int{
	ebiten.KeyShiftLeft: {KeyRowCapsV, 0}, ebiten.KeyZ: {KeyRowCapsV, 1},
	ebiten.KeyX: {KeyRowCapsV, 2}, ebiten.KeyC: {KeyRowCapsV, 3}, ebiten.KeyV: {KeyRowCapsV, 4},
	ebiten.KeyA: {KeyRowAG, 0}, ebiten.KeyS: {KeyRowAG, 1}, ebiten.KeyD: {KeyRowAG, 2},
	ebiten.KeyF: {KeyRowAG, 3}, ebiten.KeyG: {KeyRowAG, 4},
	ebiten.KeyQ: {KeyRowQT, 0}, ebiten.KeyW: {KeyRowQT, 1}, ebiten.KeyE: {KeyRowQT, 2},
	ebiten.KeyR: {KeyRowQT, 3}, ebiten.KeyT: {KeyRowQT, 4},
	ebiten.KeyDigit1: {KeyRow15, 0}, ebiten.KeyDigit2: {KeyRow15, 1}, ebiten.KeyDigit3: {KeyRow15, 2},
	ebiten.KeyDigit4: {KeyRow15, 3}, ebiten.KeyDigit5: {KeyRow15, 4},
	ebiten.KeyDigit0: {KeyRow60, 0}, ebiten.KeyDigit9: {KeyRow60, 1}, ebiten.KeyDigit8: {KeyRow60, 2},
	ebiten.KeyDigit7: {KeyRow60, 3}, ebiten.KeyDigit6: {KeyRow60, 4},
	ebiten.KeyP: {KeyRowPY, 0}, ebiten.KeyO: {KeyRowPY, 1}, ebiten.KeyI: {KeyRowPY, 2},
	ebiten.KeyU: {KeyRowPY, 3}, ebiten.KeyY: {KeyRowPY, 4},
	ebiten.KeyEnter: {KeyRowEnterH, 0}, ebiten.KeyL: {KeyRowEnterH, 1}, ebiten.KeyK: {KeyRowEnterH, 2},
	ebiten.KeyJ: {KeyRowEnterH, 3}, ebiten.KeyH: {KeyRowEnterH, 4},
	ebiten.KeySpace: {KeyRowSpaceB, 0}, ebiten.KeyShiftRight: {KeyRowSpaceB, 1},
	ebiten.KeyM: {KeyRowSpaceB, 2}, ebiten.KeyN: {KeyRowSpaceB, 3}, ebiten.KeyB: {KeyRowSpaceB, 4},
}

func (g *ebitenGame) handleInput() {
	if g.out.keys != nil {
		for key, pos := range zxKeyMatrix {
			if inpututil.IsKeyJustPressed(key) {
				g.out.keys.SetKey(pos[0], pos[1], true)
			}
			if inpututil.IsKeyJustReleased(key) {
				g.out.keys.SetKey(pos[0], pos[1], false)
			}
		}
	}
	if g.out.joystick != nil {
		if joy := g.out.joystick(); joy != nil {
			var dir Directions
			if ebiten.IsKeyPressed(ebiten.KeyArrowUp) {
				dir |= DirUp
			}
			if ebiten.IsKeyPressed(ebiten.KeyArrowDown) {
				dir |= DirDown
			}
			if ebiten.IsKeyPressed(ebiten.KeyArrowLeft) {
				dir |= DirLeft
			}
			if ebiten.IsKeyPressed(ebiten.KeyArrowRight) {
				dir |= DirRight
			}
			joy.SetDirections(dir)
			joy.SetFire(ebiten.IsKeyPressed(ebiten.KeyControlRight))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		g.copyScreenshot()
	}
}

// copyScreenshot pushes the last rendered frame to the clipboard as a
// PNG image.
func (g *ebitenGame) copyScreenshot() {
	if !g.out.clipboardOk || g.lastFrame == nil {
		return
	}
	img := image.NewRGBA(image.Rect(0, 0, g.width, g.height))
	copy(img.Pix, g.lastFrame)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		fmt.Println("screenshot encode failed:", err)
		return
	}
	clipboard.Write(clipboard.FmtImage, buf.Bytes())
}
