// Package intro loops the background music track under everything else.
package intro

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep/v2"
	"github.com/mewkiz/flac"

	"nexus/graph"
	"nexus/log"
)

const (
	DefaultPath   = "audio/intro.flac"
	DefaultVolume = 0.4
	tag           = "intro"
)

type Player struct {
	g    *graph.Graph
	path string

	mu     sync.Mutex
	track  *beep.Buffer
	voice  *graph.Voice
	volume atomic.Uint64
}

func New(g *graph.Graph, path string) *Player {
	if path == "" {
		path = DefaultPath
	}
	p := &Player{g: g, path: path}
	p.volume.Store(math.Float64bits(DefaultVolume))
	return p
}

func (p *Player) Path() string { return p.path }

// Play starts the loop unless it is already running. A track that cannot
// be loaded is logged and reported as false.
func (p *Player) Play() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.g == nil {
		return false
	}
	if p.live() {
		if p.voice.Paused() {
			p.voice.Resume()
		}
		return true
	}
	if p.track == nil {
		track, err := Load(p.path, beep.SampleRate(p.g.SampleRate()))
		if err != nil {
			log.Errorf("intro music: %v", err)
			return false
		}
		p.track = track
	}
	loop, err := beep.Loop2(p.track.Streamer(0, p.track.Len()))
	if err != nil {
		log.Errorf("intro music: %v", err)
		return false
	}
	p.voice = p.g.Play(graph.Direct, tag, p.withVolume(loop))
	log.Infof("intro music playing (%s)", p.path)
	return true
}

func (p *Player) withVolume(s beep.Streamer) beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		n, ok := s.Stream(samples)
		v := math.Float64frombits(p.volume.Load())
		for i := range samples[:n] {
			samples[i][0] *= v
			samples[i][1] *= v
		}
		return n, ok
	})
}

func (p *Player) live() bool {
	if p.voice == nil {
		return false
	}
	select {
	case <-p.voice.Done():
		return false
	default:
		return true
	}
}

// Stop ends the loop. The next Play starts from the top.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.voice != nil {
		p.voice.Stop()
		p.voice = nil
		log.Info("intro music stopped")
	}
}

// Pause holds the loop at its current position.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.live() {
		p.voice.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	paused := p.live() && p.voice.Paused()
	if paused {
		p.voice.Resume()
	}
	p.mu.Unlock()
	if !paused {
		p.Play()
	}
}

func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live() && !p.voice.Paused()
}

// SetVolume clamps v to [0, 1] and applies it to the running loop.
func (p *Player) SetVolume(v float64) {
	p.volume.Store(math.Float64bits(max(0, min(1, v))))
}

func (p *Player) Volume() float64 { return math.Float64frombits(p.volume.Load()) }

// Load decodes a FLAC file into memory at the given rate.
func Load(path string, rate beep.SampleRate) (*beep.Buffer, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer stream.Close()

	info := stream.Info
	if info.NChannels == 0 || info.BitsPerSample == 0 {
		return nil, fmt.Errorf("%s: empty stream info", path)
	}
	scale := 1 / float64(int64(1)<<(info.BitsPerSample-1))

	var frames [][2]float64
	for {
		f, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		left := f.Subframes[0].Samples
		right := left
		if len(f.Subframes) > 1 {
			right = f.Subframes[1].Samples
		}
		for i := range left {
			frames = append(frames, [2]float64{float64(left[i]) * scale, float64(right[i]) * scale})
		}
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%s: no audio", path)
	}

	src := beep.SampleRate(info.SampleRate)
	var s beep.Streamer = sliceStreamer(frames)
	if src != rate {
		s = beep.Resample(4, src, rate, s)
	}
	buf := beep.NewBuffer(beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2})
	buf.Append(s)
	return buf, nil
}

func sliceStreamer(frames [][2]float64) beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if len(frames) == 0 {
			return 0, false
		}
		n := copy(samples, frames)
		frames = frames[n:]
		return n, true
	})
}
