// ula_constants.go - ULA port layout and color palette

/*
ula_constants.go - ZX Spectrum ULA Constants

The ULA decodes every even I/O port (conventionally written 0xFE):

  OUT: bits 0-2 border color, bit 3 MIC out, bit 4 EAR out (speaker)
  IN:  bits 0-4 keyboard half-rows (selected by the high address
       byte, active low), bit 6 EAR in (tape), bits 5 and 7 unused

Attribute Byte Format:
  Bit 7: FLASH (swap INK/PAPER when set, toggles every 16 frames)
  Bit 6: BRIGHT (intensify both INK and PAPER)
  Bits 5-3: PAPER (background color, 0-7)
  Bits 2-0: INK (foreground color, 0-7)
*/

package main

// The ULA answers on every even port; 0xFE is the customary address.
const ULA_PORT = 0xFE

// ULA port output bits.
const (
	ULA_OUT_BORDER_MASK = 0x07
	ULA_OUT_MIC_BIT     = 3
	ULA_OUT_EAR_BIT     = 4
)

// =============================================================================
// Color Palette
// =============================================================================

// ULAColorNormal holds the RGB values when the BRIGHT bit is 0.
var ULAColorNormal = [8][3]uint8{
	{0, 0, 0},       // 0: Black
	{0, 0, 205},     // 1: Blue
	{205, 0, 0},     // 2: Red
	{205, 0, 205},   // 3: Magenta
	{0, 205, 0},     // 4: Green
	{0, 205, 205},   // 5: Cyan
	{205, 205, 0},   // 6: Yellow
	{205, 205, 205}, // 7: White
}

// ULAColorBright holds the RGB values when the BRIGHT bit is 1.
var ULAColorBright = [8][3]uint8{
	{0, 0, 0},       // 0: Black (same, can't brighten)
	{0, 0, 255},     // 1: Bright Blue
	{255, 0, 0},     // 2: Bright Red
	{255, 0, 255},   // 3: Bright Magenta
	{0, 255, 0},     // 4: Bright Green
	{0, 255, 255},   // 5: Bright Cyan
	{255, 255, 0},   // 6: Bright Yellow
	{255, 255, 255}, // 7: Bright White
}

// ulaPaletteRGBA packs both palettes for the renderer: indexes 0-7
// normal, 8-15 bright.
var ulaPaletteRGBA = func() [16][4]uint8 {
	var pal [16][4]uint8
	for i := 0; i < 8; i++ {
		c := ULAColorNormal[i]
		pal[i] = [4]uint8{c[0], c[1], c[2], 0xFF}
		c = ULAColorBright[i]
		pal[8+i] = [4]uint8{c[0], c[1], c[2], 0xFF}
	}
	return pal
}()
