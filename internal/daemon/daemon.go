// Package daemon binds a Unix listener, accepts clients sequentially,
// and dispatches line-delimited JSON requests to a session.
package daemon

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/fcoury/termwright/internal/inputenc"
	"github.com/fcoury/termwright/internal/protocol"
	"github.com/fcoury/termwright/internal/session"
	"github.com/fcoury/termwright/internal/socketdir"
	"github.com/fcoury/termwright/internal/termerr"
	"github.com/fcoury/termwright/internal/wait"
)

// BuildVersion is stamped into the handshake result. Overridden by the
// CLI entrypoint's -ldflags at release build time.
var BuildVersion = "dev"

// exitPollInterval is how often the accept loop checks for child exit
// between client connections.
const exitPollInterval = 500 * time.Millisecond

// ErrClosing is returned by Serve when a client sent "close"; the
// caller is expected to kill the child and unlink the socket.
var ErrClosing = errors.New("daemon: closing")

// Daemon dispatches protocol requests against one Session over a Unix
// socket, serving one client at a time.
type Daemon struct {
	Session    *session.Session
	Listener   net.Listener
	SocketPath string
	Log        zerolog.Logger

	lock   *flock.Flock
	nextID uint64 // unused server-side; kept for symmetry with the client
}

// Listen binds a Unix listener at path, removing any stale file first.
// Binding is guarded by an advisory lock file alongside the socket, so
// two termwrightd processes racing to reuse the same --socket path
// fail fast with a clear error instead of one silently stealing the
// other's listener.
func Listen(path string, sess *session.Session, log zerolog.Logger) (*Daemon, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, &termerr.Ipc{Msg: err.Error()}
	}
	if !locked {
		return nil, &termerr.Ipc{Msg: "socket path already in use by another termwrightd: " + path}
	}

	if err := socketdir.RemoveStale(path); err != nil {
		lock.Unlock()
		return nil, &termerr.Ipc{Msg: err.Error()}
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		lock.Unlock()
		return nil, &termerr.Ipc{Msg: err.Error()}
	}
	return &Daemon{Session: sess, Listener: ln, SocketPath: path, Log: log, lock: lock}, nil
}

// Serve accepts clients one at a time until a client sends "close" (in
// which case it returns ErrClosing) or the listener is closed. Between
// connection attempts it polls the child's exit status every 500ms and
// returns cleanly if the child has already exited.
func (d *Daemon) Serve(ctx context.Context) error {
	type acceptResult struct {
		conn net.Conn
		err  error
	}
	accepted := make(chan acceptResult, 1)

	for {
		go func() {
			conn, err := d.Listener.Accept()
			accepted <- acceptResult{conn, err}
		}()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-accepted:
			if r.err != nil {
				return &termerr.Ipc{Msg: r.err.Error()}
			}
			closing, err := d.serveClient(r.conn)
			r.conn.Close()
			if closing {
				return ErrClosing
			}
			if err != nil {
				d.Log.Warn().Err(err).Msg("client connection ended with error")
			}
		case <-time.After(exitPollInterval):
			if exited, _ := d.Session.HasExited(); exited {
				return nil
			}
		}
	}
}

// Close closes the listener and unlinks the socket file.
func (d *Daemon) Close() error {
	err := d.Listener.Close()
	socketdir.RemoveStale(d.SocketPath)
	if d.lock != nil {
		d.lock.Unlock()
		os.Remove(d.lock.Path())
	}
	return err
}

// serveClient reads requests until EOF or a "close" method, dispatching
// each to the session. The bool return reports whether the client sent
// "close".
func (d *Daemon) serveClient(conn net.Conn) (bool, error) {
	r := protocol.NewReader(conn)
	w := protocol.NewWriter(conn)

	for {
		req, err := r.ReadRequest()
		if err != nil {
			if err == io.EOF {
				return false, nil
			}
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if !errors.As(err, &syntaxErr) && !errors.As(err, &typeErr) {
				return false, err
			}
			// Malformed line: reply with id=0, parse_error, keep serving.
			w.WriteResponse(protocol.Err(0, "parse_error", err.Error()))
			continue
		}

		if req.Method == "close" {
			w.WriteResponse(protocol.Err(req.ID, "closing", "session is shutting down"))
			return true, nil
		}

		resp := d.dispatch(req)
		if err := w.WriteResponse(resp); err != nil {
			return false, err
		}
	}
}

func (d *Daemon) dispatch(req protocol.Request) protocol.Response {
	handler, ok := handlers[req.Method]
	if !ok {
		return protocol.Err(req.ID, "unknown_method", "unknown method: "+req.Method)
	}
	return handler(d, req)
}

type handlerFunc func(d *Daemon, req protocol.Request) protocol.Response

var handlers = map[string]handlerFunc{
	"handshake":             handleHandshake,
	"status":                handleStatus,
	"screen":                handleScreen,
	"screenshot":            handleScreenshot,
	"type":                  handleType,
	"press":                 handlePress,
	"hotkey":                handleHotkey,
	"raw":                   handleRaw,
	"mouse_click":           handleMouseClick,
	"mouse_move":            handleMouseMove,
	"mouse_scroll":          handleMouseScroll,
	"wait_for_text":         handleWaitForText,
	"wait_for_pattern":      handleWaitForPattern,
	"wait_for_text_gone":    handleWaitForTextGone,
	"wait_for_pattern_gone": handleWaitForPatternGone,
	"wait_for_idle":         handleWaitForIdle,
	"wait_for_cursor_at":    handleWaitForCursorAt,
	"wait_for_exit":         handleWaitForExit,
	"not_expect_text":       handleNotExpectText,
	"not_expect_pattern":    handleNotExpectPattern,
	"resize":                handleResize,
	"find_text":             handleFindText,
	"find_pattern":          handleFindPattern,
	"detect_boxes":          handleDetectBoxes,
}

func errResponse(id uint64, err error) protocol.Response {
	if err == nil {
		return protocol.OKEmpty(id)
	}
	code := "internal"
	switch err.(type) {
	case *termerr.Timeout:
		code = "timeout"
	case *termerr.ProcessExited:
		code = "process_exited"
	case *termerr.PatternNotFound:
		code = "pattern_not_found"
	case *termerr.InvalidRegion:
		code = "invalid_region"
	case *termerr.SpawnFailed:
		code = "spawn_failed"
	case *termerr.NotRunning:
		code = "not_running"
	case *termerr.Json:
		code = "json"
	case *termerr.Regex:
		code = "regex"
	case *termerr.Image:
		code = "image"
	case *termerr.Font:
		code = "font"
	case *termerr.Ipc:
		code = "ipc"
	case *termerr.Protocol:
		code = "protocol"
	}
	return protocol.Err(id, code, err.Error())
}

func okResponse(id uint64, value any) protocol.Response {
	resp, err := protocol.OK(id, value)
	if err != nil {
		return errResponse(id, &termerr.Json{Err: err})
	}
	return resp
}

func handleHandshake(d *Daemon, req protocol.Request) protocol.Response {
	return okResponse(req.ID, protocol.HandshakeResult{
		ProtocolVersion:   protocol.ProtocolVersion,
		TermwrightVersion: BuildVersion,
		Pid:               os.Getpid(),
	})
}

func handleStatus(d *Daemon, req protocol.Request) protocol.Response {
	exited, code := d.Session.HasExited()
	res := protocol.StatusResult{Exited: exited}
	if exited {
		res.ExitCode = &code
	}
	return okResponse(req.ID, res)
}

func handleScreen(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.ScreenParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	sn := d.Session.Screen()
	switch params.EffectiveFormat() {
	case protocol.ScreenFormatJSON:
		raw, err := sn.ToJSON()
		if err != nil {
			return errResponse(req.ID, &termerr.Json{Err: err})
		}
		return protocol.Response{ID: req.ID, Result: raw}
	case protocol.ScreenFormatJSONCompact:
		raw, err := sn.ToJSONCompact()
		if err != nil {
			return errResponse(req.ID, &termerr.Json{Err: err})
		}
		return protocol.Response{ID: req.ID, Result: raw}
	default:
		return okResponse(req.ID, sn.Text())
	}
}

func handleScreenshot(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.ScreenshotParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	var font string
	if params.Font != nil {
		font = *params.Font
	}
	var fontSize, lineHeight float64
	if params.FontSize != nil {
		fontSize = *params.FontSize
	}
	if params.LineHeight != nil {
		lineHeight = *params.LineHeight
	}
	_, err := d.Session.Screenshot(font, fontSize, lineHeight)
	return errResponse(req.ID, err)
}

func handleType(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.TypeParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	if err := d.Session.TypeStr(params.Text); err != nil {
		return errResponse(req.ID, err)
	}
	return protocol.OKEmpty(req.ID)
}

func handlePress(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.PressParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	key, ok := inputenc.ParseKeyName(params.Key)
	if !ok {
		return errResponse(req.ID, &termerr.Protocol{Msg: "unknown key name: " + params.Key})
	}
	if err := d.Session.SendKey(key); err != nil {
		return errResponse(req.ID, err)
	}
	return protocol.OKEmpty(req.ID)
}

func handleHotkey(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.HotkeyParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	var key inputenc.Key
	switch {
	case params.Ctrl != nil && *params.Ctrl:
		key = inputenc.Ctrl(params.Ch)
	case params.Alt != nil && *params.Alt:
		key = inputenc.Alt(params.Ch)
	default:
		key = inputenc.Char(params.Ch)
	}
	if err := d.Session.SendKey(key); err != nil {
		return errResponse(req.ID, err)
	}
	return protocol.OKEmpty(req.ID)
}

func handleRaw(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.RawParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	raw, err := base64.StdEncoding.DecodeString(params.BytesBase64)
	if err != nil {
		return errResponse(req.ID, &termerr.Protocol{Msg: "invalid base64: " + err.Error()})
	}
	if err := d.Session.SendRaw(raw); err != nil {
		return errResponse(req.ID, err)
	}
	return protocol.OKEmpty(req.ID)
}

func handleMouseClick(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.MouseClickParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	button := inputenc.Left
	if params.Button != nil {
		if b, ok := inputenc.ParseMouseButton(*params.Button); ok {
			button = b
		}
	}
	if err := d.Session.MouseClick(int(params.Row), int(params.Col), button); err != nil {
		return errResponse(req.ID, err)
	}
	return protocol.OKEmpty(req.ID)
}

func handleMouseMove(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.MouseMoveParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	var held []inputenc.MouseButton
	for _, name := range params.Buttons {
		if b, ok := inputenc.ParseMouseButton(name); ok {
			held = append(held, b)
		}
	}
	if err := d.Session.MouseMove(int(params.Row), int(params.Col), held); err != nil {
		return errResponse(req.ID, err)
	}
	return protocol.OKEmpty(req.ID)
}

func handleMouseScroll(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.MouseScrollParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	dir, ok := inputenc.ParseScrollDirection(params.Direction)
	if !ok {
		return errResponse(req.ID, &termerr.Protocol{Msg: "unknown scroll direction: " + params.Direction})
	}
	count := 1
	if params.Count != nil {
		count = int(*params.Count)
	}
	if err := d.Session.MouseScroll(int(params.Row), int(params.Col), dir, count); err != nil {
		return errResponse(req.ID, err)
	}
	return protocol.OKEmpty(req.ID)
}

func timeoutFrom(ms *uint64, fallback time.Duration) time.Duration {
	if ms == nil {
		return fallback
	}
	return time.Duration(*ms) * time.Millisecond
}

func handleWaitForText(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.WaitForTextParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	err := d.Session.Wait(context.Background(), wait.Condition{Kind: wait.TextAppears, Text: params.Text},
		timeoutFrom(params.TimeoutMs, wait.DefaultTimeout))
	if err != nil {
		return errResponse(req.ID, err)
	}
	return protocol.OKEmpty(req.ID)
}

func handleWaitForPattern(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.WaitForPatternParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	err := d.Session.Wait(context.Background(), wait.Condition{Kind: wait.PatternMatches, Pattern: params.Pattern},
		timeoutFrom(params.TimeoutMs, wait.DefaultTimeout))
	if err != nil {
		return errResponse(req.ID, err)
	}
	return protocol.OKEmpty(req.ID)
}

func handleWaitForTextGone(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.WaitForTextGoneParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	err := d.Session.Wait(context.Background(), wait.Condition{Kind: wait.TextDisappears, Text: params.Text},
		timeoutFrom(params.TimeoutMs, wait.DefaultTimeout))
	if err != nil {
		return errResponse(req.ID, err)
	}
	return protocol.OKEmpty(req.ID)
}

func handleWaitForPatternGone(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.WaitForPatternGoneParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	err := d.Session.Wait(context.Background(), wait.Condition{Kind: wait.PatternNotMatches, Pattern: params.Pattern},
		timeoutFrom(params.TimeoutMs, wait.DefaultTimeout))
	if err != nil {
		return errResponse(req.ID, err)
	}
	return protocol.OKEmpty(req.ID)
}

func handleWaitForIdle(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.WaitForIdleParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	err := d.Session.Wait(context.Background(), wait.Condition{Kind: wait.ScreenStable, Stable: time.Duration(params.IdleMs) * time.Millisecond},
		timeoutFrom(params.TimeoutMs, wait.DefaultTimeout))
	if err != nil {
		return errResponse(req.ID, err)
	}
	return protocol.OKEmpty(req.ID)
}

func handleWaitForCursorAt(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.WaitForCursorAtParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	err := d.Session.Wait(context.Background(), wait.Condition{Kind: wait.CursorAt, Row: int(params.Row), Col: int(params.Col)},
		timeoutFrom(params.TimeoutMs, wait.DefaultTimeout))
	if err != nil {
		return errResponse(req.ID, err)
	}
	return protocol.OKEmpty(req.ID)
}

func handleWaitForExit(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.WaitForExitParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	err := d.Session.Wait(context.Background(), wait.Condition{Kind: wait.ProcessExit},
		timeoutFrom(params.TimeoutMs, wait.DefaultTimeout))
	if err != nil {
		return errResponse(req.ID, err)
	}
	_, code := d.Session.HasExited()
	return okResponse(req.ID, protocol.WaitForExitResult{ExitCode: code})
}

func handleNotExpectText(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.NotExpectTextParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	if err := d.Session.NotExpect(wait.Condition{Kind: wait.TextAppears, Text: params.Text}); err != nil {
		return errResponse(req.ID, err)
	}
	return protocol.OKEmpty(req.ID)
}

func handleNotExpectPattern(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.NotExpectPatternParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	if err := d.Session.NotExpect(wait.Condition{Kind: wait.PatternMatches, Pattern: params.Pattern}); err != nil {
		return errResponse(req.ID, err)
	}
	return protocol.OKEmpty(req.ID)
}

func handleResize(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.ResizeParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	if err := d.Session.Resize(int(params.Cols), int(params.Rows)); err != nil {
		return errResponse(req.ID, &termerr.Pty{Err: err})
	}
	return protocol.OKEmpty(req.ID)
}

func handleFindText(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.FindTextParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	return okResponse(req.ID, d.Session.FindText(params.Text))
}

func handleFindPattern(d *Daemon, req protocol.Request) protocol.Response {
	var params protocol.FindPatternParams
	if err := protocol.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, &termerr.Json{Err: err})
	}
	matches, err := d.Session.FindPattern(params.Pattern)
	if err != nil {
		return errResponse(req.ID, err)
	}
	return okResponse(req.ID, matches)
}

func handleDetectBoxes(d *Daemon, req protocol.Request) protocol.Response {
	return okResponse(req.ID, d.Session.DetectBoxes())
}
