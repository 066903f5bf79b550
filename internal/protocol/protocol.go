// Package protocol defines the line-delimited JSON request/response
// envelopes exchanged between a termwright client and daemon over the
// control Unix socket, plus the parameter and result payloads for every
// method the daemon dispatches.
package protocol

import "encoding/json"

// ProtocolVersion is advertised in the handshake result and bumped on
// any wire-incompatible change to Request/Response or a param struct.
const ProtocolVersion = 1

// Request is one line of client->daemon traffic.
type Request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is one line of daemon->client traffic. Exactly one of
// Result/Error is meaningful: a successful call carries Result (which
// may be JSON null for methods with no return value); a failed call
// carries Error and leaves Result null.
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *ResponseError  `json:"error"`
}

// ResponseError carries a stable machine-readable code (see
// internal/termerr for the taxonomy it's drawn from) alongside a
// human-readable message.
type ResponseError struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// OK builds a successful Response, marshaling value into Result.
func OK(id uint64, value any) (Response, error) {
	if value == nil {
		return Response{ID: id}, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return Response{}, err
	}
	return Response{ID: id, Result: raw}, nil
}

// OKEmpty builds a successful Response with no result payload.
func OKEmpty(id uint64) Response {
	return Response{ID: id}
}

// Err builds a failed Response.
func Err(id uint64, code, message string) Response {
	return Response{ID: id, Error: &ResponseError{Code: code, Message: message}}
}

// HandshakeResult is returned by the "handshake" method.
type HandshakeResult struct {
	ProtocolVersion  uint32 `json:"protocol_version"`
	TermwrightVersion string `json:"termwright_version"`
	Pid              int    `json:"pid"`
}

// ScreenFormat selects how the "screen" method renders its result.
type ScreenFormat string

const (
	ScreenFormatText        ScreenFormat = "text"
	ScreenFormatJSON        ScreenFormat = "json"
	ScreenFormatJSONCompact ScreenFormat = "json_compact"
)

type ScreenParams struct {
	Format ScreenFormat `json:"format,omitempty"`
}

// EffectiveFormat returns Format, defaulting to text when empty.
func (p ScreenParams) EffectiveFormat() ScreenFormat {
	if p.Format == "" {
		return ScreenFormatText
	}
	return p.Format
}

type ScreenshotParams struct {
	Font       *string  `json:"font,omitempty"`
	FontSize   *float64 `json:"font_size,omitempty"`
	LineHeight *float64 `json:"line_height,omitempty"`
}

type ScreenshotResult struct {
	PNGBase64 string `json:"png_base64"`
}

type TypeParams struct {
	Text string `json:"text"`
}

type PressParams struct {
	Key string `json:"key"`
}

type HotkeyParams struct {
	Ctrl *bool `json:"ctrl,omitempty"`
	Alt  *bool `json:"alt,omitempty"`
	Ch   rune  `json:"ch"`
}

type RawParams struct {
	BytesBase64 string `json:"bytes_base64"`
}

type MouseMoveParams struct {
	Row     uint16   `json:"row"`
	Col     uint16   `json:"col"`
	Buttons []string `json:"buttons,omitempty"`
}

type MouseClickParams struct {
	Row    uint16  `json:"row"`
	Col    uint16  `json:"col"`
	Button *string `json:"button,omitempty"`
}

type MouseScrollParams struct {
	Row       uint16  `json:"row"`
	Col       uint16  `json:"col"`
	Direction string  `json:"direction"`
	Count     *uint16 `json:"count,omitempty"`
}

type WaitForTextParams struct {
	Text      string `json:"text"`
	TimeoutMs *uint64 `json:"timeout_ms,omitempty"`
}

type WaitForPatternParams struct {
	Pattern   string  `json:"pattern"`
	TimeoutMs *uint64 `json:"timeout_ms,omitempty"`
}

type WaitForIdleParams struct {
	IdleMs    uint64  `json:"idle_ms"`
	TimeoutMs *uint64 `json:"timeout_ms,omitempty"`
}

type WaitForExitParams struct {
	TimeoutMs *uint64 `json:"timeout_ms,omitempty"`
}

type WaitForTextGoneParams struct {
	Text      string  `json:"text"`
	TimeoutMs *uint64 `json:"timeout_ms,omitempty"`
}

type WaitForPatternGoneParams struct {
	Pattern   string  `json:"pattern"`
	TimeoutMs *uint64 `json:"timeout_ms,omitempty"`
}

type WaitForCursorAtParams struct {
	Row       uint16  `json:"row"`
	Col       uint16  `json:"col"`
	TimeoutMs *uint64 `json:"timeout_ms,omitempty"`
}

type NotExpectTextParams struct {
	Text string `json:"text"`
}

type NotExpectPatternParams struct {
	Pattern string `json:"pattern"`
}

type WaitForExitResult struct {
	ExitCode int `json:"exit_code"`
}

type ResizeParams struct {
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

type StatusResult struct {
	Exited   bool `json:"exited"`
	ExitCode *int `json:"exit_code,omitempty"`
}

type FindTextParams struct {
	Text string `json:"text"`
}

type FindPatternParams struct {
	Pattern string `json:"pattern"`
}
