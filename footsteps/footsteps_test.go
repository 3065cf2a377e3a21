package footsteps

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"nexus/clock"
	"nexus/graph"
	"nexus/priority"
	"nexus/synth"
)

type counter struct {
	mu             sync.Mutex
	pause, resumed int
}

func (c *counter) PauseForSpeech()       {}
func (c *counter) ResumeAfterSpeech()    {}
func (c *counter) DuckForWhisper()       {}
func (c *counter) ResumeAfterWhisper()   {}
func (c *counter) PauseForFootsteps()    { c.mu.Lock(); c.pause++; c.mu.Unlock() }
func (c *counter) ResumeAfterFootsteps() { c.mu.Lock(); c.resumed++; c.mu.Unlock() }

func (c *counter) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pause, c.resumed
}

type fixture struct {
	amb *counter
	arb *priority.Arbiter
	g   *graph.Graph
	clk *clock.Fake
	e   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{amb: &counter{}, g: graph.New(8000), clk: clock.NewFake()}
	f.arb = priority.New(f.amb, priority.Options{})
	f.e = New(f.arb, f.g, f.clk, Options{Rand: rand.New(rand.NewPCG(5, 6))})
	t.Cleanup(f.e.Stop)
	return f
}

func TestSequenceHoldsChannel(t *testing.T) {
	f := newFixture(t)

	total, ok := f.e.PlaySequence(3)
	if !ok {
		t.Fatal("sequence denied on idle arbiter")
	}
	if total < 3*400*time.Millisecond+tail || total > 3*600*time.Millisecond+tail {
		t.Fatalf("total = %v", total)
	}
	if !f.arb.IsPlaying(priority.Footsteps) {
		t.Fatal("channel not held")
	}
	if p, _ := f.amb.counts(); p != 1 {
		t.Fatalf("pauses = %d", p)
	}

	f.clk.Advance(0)
	if n := f.g.Active(tag); n != 1 {
		t.Fatalf("impacts after first step = %d", n)
	}
	f.clk.Advance(total - time.Millisecond)
	if n := f.g.Active(tag); n != 3 {
		t.Fatalf("impacts = %d, want 3", n)
	}
	if !f.e.Walking() {
		t.Fatal("released early")
	}

	f.clk.Advance(time.Millisecond)
	if f.e.Walking() || f.arb.State().Playing {
		t.Fatal("channel not released after the tail")
	}
	if _, r := f.amb.counts(); r != 1 {
		t.Fatalf("resumes = %d", r)
	}
}

func TestSequenceDeniedUnderVoice(t *testing.T) {
	f := newFixture(t)
	f.arb.RequestPlay(priority.Voice, nil)

	if _, ok := f.e.PlaySequence(4); ok {
		t.Fatal("footsteps granted over voice")
	}
	if f.clk.Pending() != 0 {
		t.Fatal("impacts scheduled without a grant")
	}
}

func TestSequenceWhileWalking(t *testing.T) {
	f := newFixture(t)
	f.e.PlaySequence(2)
	if _, ok := f.e.PlaySequence(2); ok {
		t.Fatal("overlapping sequence accepted")
	}
	before, _ := f.amb.counts()
	f.e.running = true
	f.e.tick()
	if after, _ := f.amb.counts(); after != before {
		t.Fatal("cycle did not skip while walking")
	}
}

func TestStopReleasesImmediately(t *testing.T) {
	f := newFixture(t)
	f.e.Start()
	f.e.PlaySequence(5)
	f.clk.Advance(0)

	f.e.Stop()
	if f.arb.State().Playing || f.e.Walking() || f.e.Running() {
		t.Fatal("still active after stop")
	}
	if f.clk.Pending() != 0 {
		t.Fatalf("pending timers = %d", f.clk.Pending())
	}
	if n := f.g.Active(tag); n != 0 {
		t.Fatalf("impacts still sounding: %d", n)
	}
	if _, r := f.amb.counts(); r != 1 {
		t.Fatalf("resumes = %d", r)
	}
	f.e.Stop()
	if _, r := f.amb.counts(); r != 1 {
		t.Fatal("second stop resumed again")
	}
}

func TestStartSchedulesCycles(t *testing.T) {
	f := newFixture(t)
	f.e.Start()
	f.e.Start()
	if f.clk.Pending() != 1 {
		t.Fatalf("pending = %d", f.clk.Pending())
	}

	f.clk.Advance(4999 * time.Millisecond)
	if p, _ := f.amb.counts(); p != 0 {
		t.Fatal("first burst before 5s")
	}
	f.clk.Advance(5001 * time.Millisecond)
	if p, _ := f.amb.counts(); p != 1 {
		t.Fatalf("bursts after 10s = %d", p)
	}
	f.clk.Advance(40 * time.Second)
	if p, _ := f.amb.counts(); p < 2 {
		t.Fatalf("bursts after 50s = %d", p)
	}
}

func TestMutedSequenceIsSilent(t *testing.T) {
	f := newFixture(t)
	f.e.SetMuted(true)
	if _, ok := f.e.PlaySequence(2); !ok {
		t.Fatal("muted sequence should still hold the channel")
	}
	f.clk.Advance(time.Second)
	if n := f.g.Active(tag); n != 0 {
		t.Fatalf("muted impacts = %d", n)
	}
}

func TestSetVolumeClamps(t *testing.T) {
	f := newFixture(t)
	if f.e.Volume() != DefaultVolume {
		t.Fatalf("default volume = %v", f.e.Volume())
	}
	f.e.SetVolume(3)
	if f.e.Volume() != 1 {
		t.Error("not clamped high")
	}
	f.e.SetVolume(-1)
	if f.e.Volume() != 0 {
		t.Error("not clamped low")
	}
}

func TestRenderStepPanning(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	imp := synth.NewImpulse(8000, 0.5, 2000, rng)

	left := RenderStep(8000, DefaultVolume, 0, true, imp, rng)
	right := RenderStep(8000, DefaultVolume, 2, false, imp, rng)
	if len(left) < 8000*7/10 {
		t.Fatalf("step shorter than its reverb tail: %d", len(left))
	}
	energy := func(b synth.Buffer, ch int) float64 {
		s := 0.0
		for _, f := range b {
			s += f[ch] * f[ch]
		}
		return s
	}
	if energy(left, 0) <= energy(left, 1) {
		t.Error("step 0 should sit left")
	}
	if energy(right, 1) <= energy(right, 0) {
		t.Error("step 2 should sit right")
	}
}
