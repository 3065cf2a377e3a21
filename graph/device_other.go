//go:build !linux && !darwin

package graph

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"
)

type otoDevice struct {
	player *oto.Player
}

// otoReader adapts the graph to the io.Reader oto pulls from.
type otoReader struct {
	src     *pcm
	scratch []int16
}

func (r *otoReader) Read(p []byte) (int, error) {
	n := len(p) / 4 * 2
	if cap(r.scratch) < n {
		r.scratch = make([]int16, n)
	}
	r.scratch = r.scratch[:n]
	r.src.fill(r.scratch)
	for i, s := range r.scratch {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(s))
	}
	return n * 2, nil
}

func Open(g *Graph) (Device, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   g.SampleRate(),
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   50 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	<-ready
	player := ctx.NewPlayer(&otoReader{src: &pcm{g: g}})
	player.Play()
	return &otoDevice{player: player}, nil
}

func (d *otoDevice) Close() error {
	return d.player.Close()
}
