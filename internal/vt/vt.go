// Package vt owns the PTY lifecycle and the live midterm.Terminal
// parser for a single automated session: spawning the child, the
// reader loop that feeds bytes to the screen parser and the OSC/CSI
// reply emulators, and the write-with-timeout discipline for detecting
// a hung child.
package vt

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/vito/midterm"

	"github.com/fcoury/termwright/internal/csiemu"
	"github.com/fcoury/termwright/internal/oscemu"
	"github.com/fcoury/termwright/internal/screen"
)

// ErrWriteTimeout is returned by WritePTY when the write does not
// complete within the given deadline — the child is likely not
// reading its stdin and the kernel PTY buffer has filled.
var ErrWriteTimeout = fmt.Errorf("pty write timed out")

const idleThreshold = 2 * time.Second

// VT owns the PTY master, the child process, the live terminal parser,
// and the OSC/CSI reply emulators for one automated session.
type VT struct {
	Ptm *os.File
	Cmd *exec.Cmd

	writerMu sync.Mutex // guards every write to Ptm
	parserMu sync.Mutex // guards Term; held only for the duration of a parse/snapshot

	Term *midterm.Terminal
	osc  *oscemu.Emulator
	csi  *csiemu.Emulator

	Rows, Cols int

	lastOutMu sync.Mutex
	lastOut   time.Time

	exitMu   sync.Mutex
	exited   bool
	exitCode int
	exitErr  error
}

// Options configures a new session's PTY environment.
type Options struct {
	Cols, Rows int
	WorkDir    string
	Env        map[string]string // caller overrides; win over injected defaults
	NoColor    bool              // if true, suppress TERM/COLORTERM injection and NO_COLOR removal
}

// New constructs a VT around a freshly created midterm.Terminal sized
// cols x rows, seeded with the given OSC color defaults.
func New(cols, rows int, colors oscemu.ColorState) *VT {
	return &VT{
		Term: midterm.NewTerminal(rows, cols),
		osc:  oscemu.New(colors),
		csi:  csiemu.New(),
		Rows: rows,
		Cols: cols,
	}
}

// Spawn starts command/args under a PTY of the configured size and
// environment, injecting TERM/COLORTERM/NO_COLOR removal unless the
// caller already set them or asked for NoColor.
func (v *VT) Spawn(command string, args []string, opts Options) error {
	v.Cmd = exec.Command(command, args...)
	if opts.WorkDir != "" {
		v.Cmd.Dir = opts.WorkDir
	}
	v.Cmd.Env = buildChildEnv(opts)

	ptm, err := pty.StartWithSize(v.Cmd, &pty.Winsize{
		Rows: uint16(v.Rows),
		Cols: uint16(v.Cols),
	})
	if err != nil {
		return err
	}
	v.Ptm = ptm
	return nil
}

func buildChildEnv(opts Options) []string {
	overrides := map[string]string{}
	for k, v := range opts.Env {
		overrides[k] = v
	}
	if !opts.NoColor {
		if _, ok := overrides["TERM"]; !ok {
			overrides["TERM"] = "xterm-256color"
		}
		if _, ok := overrides["COLORTERM"]; !ok {
			overrides["COLORTERM"] = "truecolor"
		}
	}
	_, callerSetNoColor := overrides["NO_COLOR"]

	env := make([]string, 0, len(os.Environ())+len(overrides))
	for _, e := range os.Environ() {
		key := e
		if idx := strings.IndexByte(e, '='); idx >= 0 {
			key = e[:idx]
		}
		if key == "NO_COLOR" && !callerSetNoColor && !opts.NoColor {
			continue
		}
		if _, overridden := overrides[key]; overridden {
			continue
		}
		env = append(env, e)
	}
	for k, val := range overrides {
		env = append(env, k+"="+val)
	}
	return env
}

// PipeOutput is the reader task: reads up to 4KiB at a time from the
// PTY master, feeds the bytes to the screen parser and the OSC/CSI
// emulators, and writes any emulator replies back to the master. It
// returns when the PTY read fails or returns EOF, recording the
// child's real exit status.
func (v *VT) PipeOutput() {
	buf := make([]byte, 4096)
	for {
		n, err := v.Ptm.Read(buf)
		if n > 0 {
			v.handleChunk(buf[:n])
		}
		if err != nil {
			v.recordExit()
			return
		}
	}
}

func (v *VT) handleChunk(data []byte) {
	v.lastOutMu.Lock()
	v.lastOut = time.Now()
	v.lastOutMu.Unlock()

	v.parserMu.Lock()
	v.Term.Write(data)
	row, col := v.Term.Cursor.Y, v.Term.Cursor.X
	v.parserMu.Unlock()

	var replies [][]byte
	replies = append(replies, v.osc.Process(data)...)
	replies = append(replies, v.csi.Process(data, row, col)...)

	if len(replies) == 0 {
		return
	}
	var combined []byte
	for _, r := range replies {
		combined = append(combined, r...)
	}
	v.writerMu.Lock()
	v.Ptm.Write(combined)
	v.writerMu.Unlock()
}

func (v *VT) recordExit() {
	v.exitMu.Lock()
	defer v.exitMu.Unlock()
	if v.exited {
		return
	}
	v.exited = true
	if v.Cmd != nil {
		err := v.Cmd.Wait()
		if ps := v.Cmd.ProcessState; ps != nil {
			v.exitCode = ps.ExitCode()
		} else {
			v.exitCode = 0
		}
		v.exitErr = err
	}
}

// HasExited reports whether the child has exited, and its exit code.
func (v *VT) HasExited() (bool, int) {
	v.exitMu.Lock()
	defer v.exitMu.Unlock()
	return v.exited, v.exitCode
}

// WaitExit blocks until the child has exited and returns its exit code.
func (v *VT) WaitExit() int {
	for {
		if exited, code := v.HasExited(); exited {
			return code
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Kill forcefully terminates the child.
func (v *VT) Kill() error {
	if v.Cmd == nil || v.Cmd.Process == nil {
		return nil
	}
	return v.Cmd.Process.Kill()
}

// WritePTY writes p to the PTY master, giving up after timeout if the
// child isn't reading its stdin (kernel PTY buffer full).
func (v *VT) WritePTY(p []byte, timeout time.Duration) (int, error) {
	v.writerMu.Lock()
	defer v.writerMu.Unlock()

	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := v.Ptm.Write(p)
		ch <- result{n, err}
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.n, r.err
	case <-timer.C:
		return 0, ErrWriteTimeout
	}
}

// Resize adjusts the PTY size and informs the parser of the new
// dimensions.
func (v *VT) Resize(cols, rows int) error {
	v.parserMu.Lock()
	v.Term.Resize(rows, cols)
	v.parserMu.Unlock()

	v.Rows, v.Cols = rows, cols
	return pty.Setsize(v.Ptm, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// Snapshot builds an immutable Screen from the live parser, holding the
// parser lock only for the duration of the read.
func (v *VT) Snapshot() *screen.Screen {
	v.parserMu.Lock()
	defer v.parserMu.Unlock()
	return screen.FromMidterm(v.Term)
}

// IsIdle reports whether the child has produced no output for at least
// the idle threshold.
func (v *VT) IsIdle() bool {
	v.lastOutMu.Lock()
	defer v.lastOutMu.Unlock()
	return !v.lastOut.IsZero() && time.Since(v.lastOut) > idleThreshold
}

// LastOutput returns the timestamp of the most recent PTY output.
func (v *VT) LastOutput() time.Time {
	v.lastOutMu.Lock()
	defer v.lastOutMu.Unlock()
	return v.lastOut
}

// OSCColorState returns the emulator's current believed terminal colors.
func (v *VT) OSCColorState() oscemu.ColorState {
	return v.osc.State()
}
