//go:build !headless

// audio_backend_oto.go - OTO v3 audio output implementation

package main

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// OtoPlayer streams the machine's mono mix through an oto context.
type OtoPlayer struct {
	ctx     *oto.Context
	player  *oto.Player
	source  SampleSource
	started bool
	mutex   sync.Mutex
}

func NewOtoPlayer(sampleRate int, source SampleSource) (*OtoPlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready
	player := &OtoPlayer{ctx: ctx, source: source}
	player.player = ctx.NewPlayer(player)
	return player, nil
}

// Read pulls samples from the machine ring; oto drives the pace.
func (op *OtoPlayer) Read(p []byte) (int, error) {
	n := len(p) / 4 * 4
	for i := 0; i < n; i += 4 {
		sample := op.source.ReadSample()
		binary.LittleEndian.PutUint32(p[i:], math.Float32bits(sample))
	}
	return n, nil
}

func (op *OtoPlayer) Start() error {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	if !op.started && op.player != nil {
		op.player.Play()
		op.started = true
	}
	return nil
}

func (op *OtoPlayer) Stop() {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	if op.started && op.player != nil {
		op.player.Pause()
		op.started = false
	}
}

func (op *OtoPlayer) Close() {
	op.Stop()
	op.mutex.Lock()
	defer op.mutex.Unlock()
	if op.player != nil {
		op.player.Close()
		op.player = nil
	}
}
