// main.go - Main entry point for the SpectrumEngine emulator

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

func boilerPlate() {
	fmt.Println("SpectrumEngine - a cycle-accurate ZX Spectrum emulator core")
	fmt.Println("https://github.com/intuitionamiga/SpectrumEngine")
	fmt.Println("License: GPLv3 or later")
}

func parseBorderSize(name string) (BorderSize, error) {
	switch strings.ToLower(name) {
	case "full":
		return BorderFull, nil
	case "large":
		return BorderLarge, nil
	case "medium":
		return BorderMedium, nil
	case "small":
		return BorderSmall, nil
	case "tiny":
		return BorderTiny, nil
	case "minimal":
		return BorderMinimal, nil
	case "none":
		return BorderNone, nil
	}
	return 0, fmt.Errorf("invalid border size: %s", name)
}

func main() {
	machineFlag := flag.String("machine", "48k", "machine timing variant: 48k or 128k")
	romFlag := flag.String("rom", "", "ROM image to load at address 0")
	scaleFlag := flag.Int("scale", 2, "window scale factor (1-4)")
	borderFlag := flag.String("border", "full", "border size: full, large, medium, small, tiny, minimal, none")
	joystickFlag := flag.String("joystick", "Kempston", "joystick: Kempston, Fuller, Sinclair, Cursor")
	fullerFlag := flag.Bool("fuller-ay", false, "mount the AY chip as a Fuller Box instead of Melodik")
	rateFlag := flag.Int("sample-rate", 44100, "audio sample rate in Hz")
	terminalFlag := flag.Bool("terminal", false, "take keyboard input from the terminal instead of the window")
	quietFlag := flag.Bool("quiet", false, "suppress the startup banner")
	flag.Parse()

	if !*quietFlag {
		boilerPlate()
	}

	cfg := MachineConfig{
		Profile:    UlaVideoProfile,
		Contention: UlaMemoryContention{},
		Joystick:   *joystickFlag,
		FullerAy:   *fullerFlag,
		SampleRate: uint32(*rateFlag),
	}
	switch strings.ToLower(*machineFlag) {
	case "48k":
	case "128k":
		cfg.Profile = Ula128VideoProfile
		cfg.Contention = Ula128MemoryContention{}
	default:
		fmt.Fprintf(os.Stderr, "unknown machine variant: %s\n", *machineFlag)
		os.Exit(1)
	}
	borderSize, err := parseBorderSize(*borderFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.BorderSize = borderSize

	machine, err := NewMachine(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *romFlag != "" {
		rom, err := os.ReadFile(*romFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := machine.LoadROM(rom); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	machine.Reset(true)

	audio, err := NewOtoPlayer(int(cfg.SampleRate), machine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audio init failed: %v\n", err)
		os.Exit(1)
	}
	defer audio.Close()
	if err := audio.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "audio start failed: %v\n", err)
	}

	if *terminalFlag {
		runTerminal(machine)
		return
	}

	w, h := machine.FrameSize()
	video := NewEbitenOutput()
	video.SetKeySink(machine)
	video.SetJoystick(func() JoystickInterface {
		return machine.Joystick.Joystick.JoystickInterface(0)
	})
	display := DisplayConfig{
		Width:  w,
		Height: h,
		Scale:  *scaleFlag,
		Title:  "SpectrumEngine (" + machine.ULA.Profile().Name + ")",
	}
	if err := video.Run(display, machine.RunFrame); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runTerminal paces the machine itself and takes keys from stdin.
func runTerminal(machine *Machine) {
	host := NewTerminalHost(machine)
	host.Start()
	defer host.Stop()

	ticker := time.NewTicker(time.Duration(machine.ULA.FrameDurationNanos()) * time.Nanosecond)
	defer ticker.Stop()
	for range ticker.C {
		if _, err := machine.RunFrame(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
	}
}
