package wait

import (
	"context"
	"testing"
	"time"

	"github.com/fcoury/termwright/internal/screen"
)

type testSource struct {
	lines       []string
	calls       int
	exitedAfter int // number of polls (Screen or HasExited calls) after which HasExited reports true; 0 = never
}

func newTestSource(lines []string) *testSource {
	return &testSource{lines: lines}
}

func (s *testSource) Screen() *screen.Screen {
	s.calls++
	return screen.FromLines(s.lines, 0, 0)
}

func (s *testSource) HasExited() (bool, int) {
	s.calls++
	if s.exitedAfter > 0 && s.calls >= s.exitedAfter {
		return true, 0
	}
	return false, 0
}

func TestDescriptionFormatsScreenStable(t *testing.T) {
	c := Condition{Kind: ScreenStable, Stable: 2500 * time.Millisecond}
	if got, want := c.Description(), "screen stable for 2.5s"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestWaitForTextResolvesOnFirstPollWhenAlreadyPresent(t *testing.T) {
	src := newTestSource([]string{"READY"})
	p := NewPoller(src)
	p.PollInterval = time.Millisecond
	err := p.Wait(context.Background(), Condition{Kind: TextAppears, Text: "READY"}, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("expected exactly 1 poll, got %d", src.calls)
	}
}

func TestWaitTimesOut(t *testing.T) {
	src := newTestSource([]string{"nope"})
	p := NewPoller(src)
	p.PollInterval = time.Millisecond
	err := p.Wait(context.Background(), Condition{Kind: TextAppears, Text: "READY"}, 20*time.Millisecond)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestProcessExitShortCircuits(t *testing.T) {
	src := newTestSource([]string{"x"})
	src.exitedAfter = 1
	p := NewPoller(src)
	p.PollInterval = time.Millisecond
	err := p.Wait(context.Background(), Condition{Kind: ProcessExit}, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestScreenStableRequiresContinuousInterval(t *testing.T) {
	src := newTestSource([]string{"same"})
	p := NewPoller(src)
	p.PollInterval = 5 * time.Millisecond
	err := p.Wait(context.Background(), Condition{Kind: ScreenStable, Stable: 20 * time.Millisecond}, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFromLinesContainsPresentText(t *testing.T) {
	s := screen.FromLines([]string{"goodbye"}, 0, 0)
	if s.Contains("goodbye") != true {
		t.Fatalf("expected contains true")
	}
}
