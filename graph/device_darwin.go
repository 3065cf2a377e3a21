//go:build darwin

package graph

import (
	"encoding/binary"
	"fmt"

	"github.com/gen2brain/malgo"
)

type malgoDevice struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// Open attaches g to the default CoreAudio output through miniaudio.
func Open(g *Graph) (Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 2
	config.SampleRate = uint32(g.SampleRate())

	src := &pcm{g: g}
	var scratch []int16
	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			n := int(frameCount) * 2
			if cap(scratch) < n {
				scratch = make([]int16, n)
			}
			scratch = scratch[:n]
			src.fill(scratch)
			for i, s := range scratch {
				binary.LittleEndian.PutUint16(pOutput[i*2:], uint16(s))
			}
		},
	}

	device, err := malgo.InitDevice(ctx.Context, config, callbacks)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	return &malgoDevice{ctx: ctx, device: device}, nil
}

func (d *malgoDevice) Close() error {
	d.device.Stop()
	d.device.Uninit()
	d.ctx.Uninit()
	d.ctx.Free()
	return nil
}
