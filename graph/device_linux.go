//go:build linux

package graph

import (
	"fmt"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

type pulseDevice struct {
	client *pulse.Client
	stream *pulse.PlaybackStream
}

// Open attaches g to the PulseAudio (or PipeWire-pulse) server.
func Open(g *Graph) (Device, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("nexus"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	src := &pcm{g: g}
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		return src.fill(buf), nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(g.SampleRate()),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	stream.Start()
	return &pulseDevice{client: c, stream: stream}, nil
}

func (d *pulseDevice) Close() error {
	d.stream.Stop()
	d.stream.Close()
	d.client.Close()
	return nil
}
