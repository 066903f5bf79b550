// Package session wires a PTY-backed terminal (internal/vt) together
// with the wait-condition poller into the single control surface a
// daemon or an in-process caller drives: typing, key/mouse input,
// resize, screenshots, and exit observation.
package session

import (
	"context"
	"time"

	"github.com/fcoury/termwright/internal/inputenc"
	"github.com/fcoury/termwright/internal/oscemu"
	"github.com/fcoury/termwright/internal/screen"
	"github.com/fcoury/termwright/internal/termerr"
	"github.com/fcoury/termwright/internal/vt"
	"github.com/fcoury/termwright/internal/wait"
)

const warmUp = 100 * time.Millisecond

// ScreenshotRequest bundles a Screen snapshot with the rendering
// configuration the external PNG renderer needs. termwright itself
// carries no font rasterizer; Session.Screenshot always fails with a termerr.Image
// error describing that gap, leaving the actual drawing to a caller
// that links one in.
type ScreenshotRequest struct {
	Screen     *screen.Screen
	Font       string
	FontSize   float64
	LineHeight float64
}

// Session is the in-process control surface for one automated program.
type Session struct {
	vt     *vt.VT
	poller *wait.Poller
}

// Options configures a new Session's PTY.
type Options struct {
	Cols, Rows int
	WorkDir    string
	Env        map[string]string
	NoColor    bool
}

// Spawn opens a PTY of the requested size, starts command/args on the
// slave end, and launches the reader task. It blocks for a 100ms
// warm-up so the child has a chance to reach its first screen state
// before the caller samples anything.
func Spawn(command string, args []string, opts Options) (*Session, error) {
	v := vt.New(opts.Cols, opts.Rows, oscemu.DefaultColorState())
	if err := v.Spawn(command, args, vt.Options{
		Cols: opts.Cols, Rows: opts.Rows,
		WorkDir: opts.WorkDir, Env: opts.Env, NoColor: opts.NoColor,
	}); err != nil {
		return nil, &termerr.SpawnFailed{Msg: err.Error()}
	}
	go v.PipeOutput()

	s := &Session{vt: v}
	s.poller = wait.NewPoller(s)

	time.Sleep(warmUp)
	return s, nil
}

// Screen implements wait.Source.
func (s *Session) Screen() *screen.Screen {
	return s.vt.Snapshot()
}

// HasExited implements wait.Source.
func (s *Session) HasExited() (bool, int) {
	return s.vt.HasExited()
}

// WaitExit blocks until the child exits and returns its exit code.
func (s *Session) WaitExit() int {
	return s.vt.WaitExit()
}

// Kill forcefully terminates the child.
func (s *Session) Kill() error {
	return s.vt.Kill()
}

// Resize adjusts the PTY size and informs the screen parser.
func (s *Session) Resize(cols, rows int) error {
	return s.vt.Resize(cols, rows)
}

// TypeStr writes the UTF-8 bytes of s to the PTY.
func (s *Session) TypeStr(text string) error {
	_, err := s.vt.WritePTY([]byte(text), writeTimeout)
	return err
}

// SendKey encodes k and writes the resulting bytes to the PTY.
func (s *Session) SendKey(k inputenc.Key) error {
	_, err := s.vt.WritePTY(inputenc.Encode(k), writeTimeout)
	return err
}

// SendRaw writes b unmodified to the PTY.
func (s *Session) SendRaw(b []byte) error {
	_, err := s.vt.WritePTY(b, writeTimeout)
	return err
}

const writeTimeout = 5 * time.Second

// MouseDown presses button at (row, col).
func (s *Session) MouseDown(row, col int, button inputenc.MouseButton) error {
	return s.SendRaw(inputenc.EncodeMouseDown(row, col, button))
}

// MouseUp releases whatever button is currently held at (row, col).
func (s *Session) MouseUp(row, col int) error {
	return s.SendRaw(inputenc.EncodeMouseUp(row, col))
}

// MouseClick presses then releases button at (row, col).
func (s *Session) MouseClick(row, col int, button inputenc.MouseButton) error {
	return s.SendRaw(inputenc.EncodeMouseClick(row, col, button))
}

// MouseMove reports cursor motion to (row, col), optionally with
// buttons already held.
func (s *Session) MouseMove(row, col int, held []inputenc.MouseButton) error {
	return s.SendRaw(inputenc.EncodeMouseMove(row, col, held))
}

// MouseScroll emits count scroll events of dir at (row, col). count<1
// is clamped to 1.
func (s *Session) MouseScroll(row, col int, dir inputenc.ScrollDirection, count int) error {
	return s.SendRaw(inputenc.EncodeMouseScroll(row, col, dir, count))
}

// Screenshot bundles a fresh snapshot with rendering configuration.
// termwright carries no font rasterizer, so callers that need an
// actual PNG must supply their own renderer over this request; this
// method exists so the daemon's screenshot method has a well-typed
// value to fail on.
func (s *Session) Screenshot(font string, fontSize, lineHeight float64) (*ScreenshotRequest, error) {
	return nil, &termerr.Image{Msg: "no PNG renderer is linked into this build"}
}

// Wait blocks until cond is satisfied or timeout elapses.
func (s *Session) Wait(ctx context.Context, cond wait.Condition, timeout time.Duration) error {
	return s.poller.Wait(ctx, cond, timeout)
}

// NotExpect immediately evaluates cond (expected to be a negative
// assertion such as TextAppears used in the inverse sense by the
// caller) and fails if it is already satisfied.
func (s *Session) NotExpect(cond wait.Condition) error {
	sn := s.Screen()
	switch cond.Kind {
	case wait.TextAppears:
		if sn.Contains(cond.Text) {
			return &termerr.PatternNotFound{Pattern: cond.Text}
		}
	case wait.PatternMatches:
		matches, err := sn.FindPattern(cond.Pattern)
		if err != nil {
			return &termerr.Regex{Err: err}
		}
		if len(matches) > 0 {
			return &termerr.PatternNotFound{Pattern: cond.Pattern}
		}
	}
	return nil
}

// FindText returns every literal match of text, overlapping ones included.
func (s *Session) FindText(text string) []screen.TextMatch {
	return s.Screen().FindText(text)
}

// FindPattern returns every regex match of pattern.
func (s *Session) FindPattern(pattern string) ([]screen.TextMatch, error) {
	return s.Screen().FindPattern(pattern)
}

// DetectBoxes returns every box-drawn rectangle on the current screen.
func (s *Session) DetectBoxes() []screen.DetectedBox {
	return s.Screen().DetectBoxes()
}

// OSCColorState returns the emulator's current believed terminal colors.
func (s *Session) OSCColorState() oscemu.ColorState {
	return s.vt.OSCColorState()
}
