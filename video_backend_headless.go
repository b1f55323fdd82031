//go:build headless

// video_backend_headless.go - Windowless video backend

package main

import "time"

// EbitenOutput in a headless build pulls frames at frame rate and
// discards them; useful for tests, benchmarks and CI.
type EbitenOutput struct {
	frameCount uint64
}

func NewEbitenOutput() *EbitenOutput { return &EbitenOutput{} }

func (o *EbitenOutput) SetKeySink(sink KeyEventSink) {}

func (o *EbitenOutput) SetJoystick(get func() JoystickInterface) {}

func (o *EbitenOutput) Run(cfg DisplayConfig, nextFrame func() ([]uint8, error)) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		if _, err := nextFrame(); err != nil {
			return err
		}
		o.frameCount++
	}
	return nil
}
