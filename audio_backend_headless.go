//go:build headless

// audio_backend_headless.go - Silent audio backend

package main

// OtoPlayer in a headless build swallows samples silently.
type OtoPlayer struct {
	source SampleSource
}

func NewOtoPlayer(sampleRate int, source SampleSource) (*OtoPlayer, error) {
	return &OtoPlayer{source: source}, nil
}

func (op *OtoPlayer) Start() error { return nil }
func (op *OtoPlayer) Stop() {}
func (op *OtoPlayer) Close() {}
