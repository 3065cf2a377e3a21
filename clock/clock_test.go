package clock

import (
	"testing"
	"time"
)

func TestFakeFiresInOrder(t *testing.T) {
	c := NewFake()
	var got []int
	c.AfterFunc(300*time.Millisecond, func() { got = append(got, 3) })
	c.AfterFunc(100*time.Millisecond, func() { got = append(got, 1) })
	c.AfterFunc(200*time.Millisecond, func() { got = append(got, 2) })

	c.Advance(250 * time.Millisecond)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("after 250ms got %v, want [1 2]", got)
	}
	c.Advance(50 * time.Millisecond)
	if len(got) != 3 {
		t.Fatalf("after 300ms got %v", got)
	}
}

func TestFakeStop(t *testing.T) {
	c := NewFake()
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })
	if !tm.Stop() {
		t.Fatal("Stop on pending timer should return true")
	}
	if tm.Stop() {
		t.Fatal("second Stop should return false")
	}
	c.Advance(2 * time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestFakeNestedTimers(t *testing.T) {
	c := NewFake()
	count := 0
	var tick func()
	tick = func() {
		count++
		c.AfterFunc(100*time.Millisecond, tick)
	}
	c.AfterFunc(100*time.Millisecond, tick)
	c.Advance(time.Second)
	if count != 10 {
		t.Errorf("count = %d, want 10", count)
	}
	if c.Pending() != 1 {
		t.Errorf("pending = %d, want 1", c.Pending())
	}
}

func TestFakeAfter(t *testing.T) {
	c := NewFake()
	ch := c.After(time.Second)
	start := c.Now()
	c.Advance(time.Second)
	select {
	case at := <-ch:
		if at.Sub(start) != time.Second {
			t.Errorf("fired at +%v, want +1s", at.Sub(start))
		}
	default:
		t.Fatal("After channel not signalled")
	}
}
