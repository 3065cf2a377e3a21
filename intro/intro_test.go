package intro

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"

	"nexus/graph"
)

const testRate = 8000

// writeTone encodes a mono 16-bit sine of the given length as FLAC.
func writeTone(t *testing.T, seconds float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "intro.flac")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	const block = 800
	info := &meta.StreamInfo{
		BlockSizeMin:  block,
		BlockSizeMax:  block,
		SampleRate:    testRate,
		NChannels:     1,
		BitsPerSample: 16,
	}
	enc, err := flac.NewEncoder(f, info)
	if err != nil {
		t.Fatal(err)
	}
	total := int(seconds * testRate)
	for start := 0; start < total; start += block {
		samples := make([]int32, block)
		for i := range samples {
			samples[i] = int32(16000 * math.Sin(2*math.Pi*440*float64(start+i)/testRate))
		}
		fr := &frame.Frame{
			Header: frame.Header{
				BlockSize:     block,
				SampleRate:    testRate,
				Channels:      frame.ChannelsMono,
				BitsPerSample: 16,
			},
			Subframes: []*frame.Subframe{{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples,
				NSamples:  block,
			}},
		}
		if err := enc.WriteFrame(fr); err != nil {
			t.Fatal(err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func peak(g *graph.Graph, frames int) float64 {
	buf := make([][2]float64, frames)
	g.Stream(buf)
	p := 0.0
	for _, f := range buf {
		p = max(p, math.Abs(f[0]), math.Abs(f[1]))
	}
	return p
}

func TestLoad(t *testing.T) {
	buf, err := Load(writeTone(t, 0.5), testRate)
	if err != nil {
		t.Fatal(err)
	}
	if buf.Len() != testRate/2 {
		t.Fatalf("len = %d, want %d", buf.Len(), testRate/2)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.flac"), testRate); err == nil {
		t.Fatal("missing file loaded")
	}
}

func TestLoopsPastTrackEnd(t *testing.T) {
	g := graph.New(testRate)
	p := New(g, writeTone(t, 0.5))
	if !p.Play() {
		t.Fatal("play failed")
	}
	g.RenderFor(1200 * time.Millisecond)
	if !p.Playing() {
		t.Fatal("loop ended")
	}
	want := 16000.0 / 32768 * DefaultVolume
	if got := peak(g, 400); math.Abs(got-want) > 0.02 {
		t.Fatalf("peak = %v, want about %v", got, want)
	}
	if !p.Play() || g.Active(tag) != 1 {
		t.Fatal("second play started another loop")
	}
}

func TestPauseResumeStop(t *testing.T) {
	g := graph.New(testRate)
	p := New(g, writeTone(t, 0.5))
	p.Play()

	p.Pause()
	if p.Playing() {
		t.Fatal("playing while paused")
	}
	if got := peak(g, 400); got != 0 {
		t.Fatalf("paused output peak = %v", got)
	}
	p.Resume()
	if !p.Playing() || peak(g, 400) == 0 {
		t.Fatal("resume produced no sound")
	}

	p.Stop()
	if p.Playing() || g.Active(tag) != 0 {
		t.Fatal("still playing after stop")
	}
	p.Resume()
	if !p.Playing() {
		t.Fatal("resume after stop should restart")
	}
}

func TestSetVolume(t *testing.T) {
	g := graph.New(testRate)
	p := New(g, writeTone(t, 0.5))
	p.Play()

	p.SetVolume(0)
	if got := peak(g, 400); got != 0 {
		t.Fatalf("muted peak = %v", got)
	}
	p.SetVolume(7)
	if p.Volume() != 1 {
		t.Fatalf("volume = %v, want clamped to 1", p.Volume())
	}
	p.SetVolume(-2)
	if p.Volume() != 0 {
		t.Fatalf("volume = %v, want clamped to 0", p.Volume())
	}
}

func TestMissingTrack(t *testing.T) {
	p := New(graph.New(testRate), filepath.Join(t.TempDir(), "none.flac"))
	if p.Play() {
		t.Fatal("played a missing file")
	}
	if New(nil, "").Play() {
		t.Fatal("played without a graph")
	}
	if New(nil, "").Path() != DefaultPath {
		t.Fatal("default path not applied")
	}
}
