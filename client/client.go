// Package client is a strongly typed wrapper around the termwright
// daemon protocol: it keeps a monotonically increasing request id and
// serializes one call at a time over a Unix socket connection.
package client

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/fcoury/termwright/internal/inputenc"
	"github.com/fcoury/termwright/internal/protocol"
	"github.com/fcoury/termwright/internal/screen"
	"github.com/fcoury/termwright/internal/termerr"
)

// Client talks to a termwright daemon over a Unix domain socket.
// Safe for use from one caller at a time; a call holds an internal
// lock across the full write+read round trip.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	r      *protocol.Reader
	w      *protocol.Writer
	nextID uint64
}

// Connect dials the Unix socket at path.
func Connect(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 5*time.Second)
	if err != nil {
		return nil, &termerr.Ipc{Msg: fmt.Sprintf("connect failed: %v", err)}
	}
	return &Client{
		conn:   conn,
		r:      protocol.NewReader(conn),
		w:      protocol.NewWriter(conn),
		nextID: 1,
	}, nil
}

// CloseConn closes the underlying connection without sending "close" to
// the daemon; use the Close method below for the graceful variant.
func (c *Client) CloseConn() error {
	return c.conn.Close()
}

func (c *Client) call(method string, params, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++

	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return &termerr.Json{Err: err}
		}
		raw = encoded
	}

	if err := c.w.WriteRequest(protocol.Request{ID: id, Method: method, Params: raw}); err != nil {
		return &termerr.Ipc{Msg: fmt.Sprintf("write failed: %v", err)}
	}

	resp, err := c.r.ReadResponse()
	if err != nil {
		return &termerr.Ipc{Msg: fmt.Sprintf("read failed: %v", err)}
	}
	if resp.ID != id {
		return &termerr.Protocol{Msg: fmt.Sprintf("mismatched response id: expected %d got %d", id, resp.ID)}
	}
	if resp.Error != nil {
		if resp.Error.Code == "closing" {
			return nil
		}
		return &termerr.Protocol{Msg: fmt.Sprintf("%s: %s", resp.Error.Code, resp.Error.Message)}
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return &termerr.Json{Err: err}
	}
	return nil
}

func msPtr(d time.Duration) *uint64 {
	if d <= 0 {
		return nil
	}
	v := uint64(d / time.Millisecond)
	return &v
}

func (c *Client) Handshake() (protocol.HandshakeResult, error) {
	var res protocol.HandshakeResult
	err := c.call("handshake", nil, &res)
	return res, err
}

func (c *Client) Status() (protocol.StatusResult, error) {
	var res protocol.StatusResult
	err := c.call("status", nil, &res)
	return res, err
}

func (c *Client) ScreenText() (string, error) {
	var res string
	err := c.call("screen", protocol.ScreenParams{Format: protocol.ScreenFormatText}, &res)
	return res, err
}

func (c *Client) ScreenJSON() (*screen.Screen, error) {
	var raw json.RawMessage
	if err := c.call("screen", protocol.ScreenParams{Format: protocol.ScreenFormatJSON}, &raw); err != nil {
		return nil, err
	}
	sn, err := screen.ParseJSON(raw)
	if err != nil {
		return nil, &termerr.Json{Err: err}
	}
	return sn, nil
}

func (c *Client) ScreenshotPNG() ([]byte, error) {
	var res protocol.ScreenshotResult
	if err := c.call("screenshot", protocol.ScreenshotParams{}, &res); err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(res.PNGBase64)
	if err != nil {
		return nil, &termerr.Protocol{Msg: err.Error()}
	}
	return raw, nil
}

func (c *Client) FindText(text string) ([]screen.TextMatch, error) {
	var res []screen.TextMatch
	err := c.call("find_text", protocol.FindTextParams{Text: text}, &res)
	return res, err
}

func (c *Client) FindPattern(pattern string) ([]screen.TextMatch, error) {
	var res []screen.TextMatch
	err := c.call("find_pattern", protocol.FindPatternParams{Pattern: pattern}, &res)
	return res, err
}

func (c *Client) DetectBoxes() ([]screen.DetectedBox, error) {
	var res []screen.DetectedBox
	err := c.call("detect_boxes", nil, &res)
	return res, err
}

func (c *Client) Type(text string) error {
	return c.call("type", protocol.TypeParams{Text: text}, nil)
}

func (c *Client) Press(key string) error {
	return c.call("press", protocol.PressParams{Key: key}, nil)
}

func (c *Client) HotkeyCtrl(ch rune) error {
	ctrl := true
	return c.call("hotkey", protocol.HotkeyParams{Ctrl: &ctrl, Ch: ch}, nil)
}

func (c *Client) Hotkey(ctrl, alt bool, ch rune) error {
	return c.call("hotkey", protocol.HotkeyParams{Ctrl: &ctrl, Alt: &alt, Ch: ch}, nil)
}

func (c *Client) Raw(b []byte) error {
	return c.call("raw", protocol.RawParams{BytesBase64: base64.StdEncoding.EncodeToString(b)}, nil)
}

func (c *Client) MouseClick(row, col int, button inputenc.MouseButton) error {
	name := button.String()
	return c.call("mouse_click", protocol.MouseClickParams{Row: uint16(row), Col: uint16(col), Button: &name}, nil)
}

func (c *Client) MouseMove(row, col int) error {
	return c.call("mouse_move", protocol.MouseMoveParams{Row: uint16(row), Col: uint16(col)}, nil)
}

func (c *Client) MouseScroll(row, col int, dir inputenc.ScrollDirection, count int) error {
	n := uint16(count)
	return c.call("mouse_scroll", protocol.MouseScrollParams{Row: uint16(row), Col: uint16(col), Direction: dir.String(), Count: &n}, nil)
}

func (c *Client) WaitForText(text string, timeout time.Duration) error {
	return c.call("wait_for_text", protocol.WaitForTextParams{Text: text, TimeoutMs: msPtr(timeout)}, nil)
}

func (c *Client) WaitForPattern(pattern string, timeout time.Duration) error {
	return c.call("wait_for_pattern", protocol.WaitForPatternParams{Pattern: pattern, TimeoutMs: msPtr(timeout)}, nil)
}

func (c *Client) WaitForTextGone(text string, timeout time.Duration) error {
	return c.call("wait_for_text_gone", protocol.WaitForTextGoneParams{Text: text, TimeoutMs: msPtr(timeout)}, nil)
}

func (c *Client) WaitForPatternGone(pattern string, timeout time.Duration) error {
	return c.call("wait_for_pattern_gone", protocol.WaitForPatternGoneParams{Pattern: pattern, TimeoutMs: msPtr(timeout)}, nil)
}

func (c *Client) WaitForIdle(idle, timeout time.Duration) error {
	return c.call("wait_for_idle", protocol.WaitForIdleParams{IdleMs: uint64(idle / time.Millisecond), TimeoutMs: msPtr(timeout)}, nil)
}

func (c *Client) WaitForCursorAt(row, col int, timeout time.Duration) error {
	return c.call("wait_for_cursor_at", protocol.WaitForCursorAtParams{Row: uint16(row), Col: uint16(col), TimeoutMs: msPtr(timeout)}, nil)
}

func (c *Client) WaitForExit(timeout time.Duration) (int, error) {
	var res protocol.WaitForExitResult
	err := c.call("wait_for_exit", protocol.WaitForExitParams{TimeoutMs: msPtr(timeout)}, &res)
	return res.ExitCode, err
}

func (c *Client) NotExpectText(text string) error {
	return c.call("not_expect_text", protocol.NotExpectTextParams{Text: text}, nil)
}

func (c *Client) NotExpectPattern(pattern string) error {
	return c.call("not_expect_pattern", protocol.NotExpectPatternParams{Pattern: pattern}, nil)
}

func (c *Client) Resize(cols, rows int) error {
	return c.call("resize", protocol.ResizeParams{Cols: uint16(cols), Rows: uint16(rows)}, nil)
}

// Close sends the graceful "close" method and closes the connection.
func (c *Client) Close() error {
	_ = c.call("close", nil, nil)
	return c.conn.Close()
}
