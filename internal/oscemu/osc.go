// Package oscemu emulates a terminal's replies to OSC 10/11/12 color
// set/query sequences, for programs that probe the terminal's
// foreground/background/cursor color over the PTY.
package oscemu

import (
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	esc = 0x1B
	bel = 0x07

	maxBufSize = 4096 // bounds an adversarial child's OSC payload
)

// RGB8 is an 8-bit-per-channel color.
type RGB8 struct {
	R, G, B uint8
}

var (
	defaultFg = RGB8{R: 0xF0, G: 0xF0, B: 0xF0}
	defaultBg = RGB8{R: 0x00, G: 0x00, B: 0x00}
)

// ColorState holds the terminal's believed foreground/background/cursor
// colors, as set or queried via OSC 10/11/12.
type ColorState struct {
	Foreground RGB8
	Background RGB8
	Cursor     RGB8
}

// DefaultColorState returns the spec's documented defaults: foreground
// 0xF0F0F0, background 0x000000, cursor equal to foreground.
func DefaultColorState() ColorState {
	return ColorState{Foreground: defaultFg, Background: defaultBg, Cursor: defaultFg}
}

func (s *ColorState) get(code int) (RGB8, bool) {
	switch code {
	case 10:
		return s.Foreground, true
	case 11:
		return s.Background, true
	case 12:
		return s.Cursor, true
	default:
		return RGB8{}, false
	}
}

func (s *ColorState) set(code int, v RGB8) {
	switch code {
	case 10:
		s.Foreground = v
	case 11:
		s.Background = v
	case 12:
		s.Cursor = v
	}
}

type parserState int

const (
	stateGround parserState = iota
	stateEsc
	stateOsc
)

// Emulator is a stateful byte-stream parser that recognizes OSC 10/11/12
// sequences and answers queries while silently applying sets. It must be
// fed every byte the PTY master produces, in order; it tolerates a
// sequence being split arbitrarily across calls to Process.
type Emulator struct {
	state      ColorState
	parser     parserState
	buf        []byte
	pendingEsc bool
}

// New constructs an Emulator seeded with the given color state.
func New(state ColorState) *Emulator {
	return &Emulator{state: state, parser: stateGround}
}

// State returns a copy of the emulator's current color state.
func (e *Emulator) State() ColorState { return e.state }

// Process feeds bytes through the parser and returns any reply
// sequences generated (as raw bytes ready to write back to the PTY).
func (e *Emulator) Process(data []byte) [][]byte {
	var responses [][]byte
	for _, b := range data {
		switch e.parser {
		case stateGround:
			switch b {
			case esc:
				e.parser = stateEsc
			case 0x9D: // C1 OSC introducer
				e.enterOsc()
			}
		case stateEsc:
			if b == ']' {
				e.enterOsc()
			} else {
				e.parser = stateGround
			}
		case stateOsc:
			if e.pendingEsc {
				e.pendingEsc = false
				switch b {
				case '\\':
					if resp, ok := e.handleCommand(stTermST); ok {
						responses = append(responses, resp)
					}
					e.parser = stateGround
				case bel:
					// the earlier ESC was literal payload content
					e.appendByte(esc)
					if resp, ok := e.handleCommand(stTermBel); ok {
						responses = append(responses, resp)
					}
					e.parser = stateGround
				case esc:
					e.appendByte(esc)
					e.pendingEsc = true
				default:
					e.appendByte(esc)
					e.appendByte(b)
				}
			} else if b == bel {
				if resp, ok := e.handleCommand(stTermBel); ok {
					responses = append(responses, resp)
				}
				e.parser = stateGround
			} else if b == esc {
				e.pendingEsc = true
			} else {
				e.appendByte(b)
			}
		}
	}
	return responses
}

func (e *Emulator) enterOsc() {
	e.parser = stateOsc
	e.buf = e.buf[:0]
	e.pendingEsc = false
}

func (e *Emulator) appendByte(b byte) {
	if len(e.buf) >= maxBufSize {
		// adversarial/runaway payload: drop to Ground without replying.
		e.parser = stateGround
		e.buf = e.buf[:0]
		return
	}
	e.buf = append(e.buf, b)
}

type oscTerminator int

const (
	stTermBel oscTerminator = iota
	stTermST
)

func (e *Emulator) handleCommand(term oscTerminator) ([]byte, bool) {
	command := string(e.buf)
	idx := strings.IndexByte(command, ';')
	if idx < 0 {
		return nil, false
	}
	codeStr, payload := command[:idx], command[idx+1:]
	code, err := strconv.Atoi(codeStr)
	if err != nil {
		return nil, false
	}
	if code != 10 && code != 11 && code != 12 {
		return nil, false
	}

	if strings.TrimSpace(payload) == "?" {
		color, ok := e.state.get(code)
		if !ok {
			return nil, false
		}
		return encodeQueryResponse(code, color, term), true
	}

	if parsed, ok := parseColor(strings.TrimSpace(payload)); ok {
		e.state.set(code, parsed)
	}
	return nil, false
}

// encodeQueryResponse reports the color as an X11 "rgb:RRRR/GGGG/BBBB"
// spec, 16 bits per channel. The stored 8-bit value is passed through
// go-colorful's 0-1 float form and back to 8 bits (which yields the same
// value), then widened to 16 bits by multiplying by 257 (0x2c -> 0x2c2c).
func encodeQueryResponse(code int, color RGB8, term oscTerminator) []byte {
	cc := colorful.Color{R: float64(color.R) / 255, G: float64(color.G) / 255, B: float64(color.B) / 255}
	r, g, b := cc.RGB255()
	wide := func(c uint8) uint16 { return uint16(c) * 257 }

	var sb strings.Builder
	sb.WriteByte(esc)
	sb.WriteByte(']')
	sb.WriteString(strconv.Itoa(code))
	sb.WriteByte(';')
	sb.WriteString("rgb:")
	fmtHex4(&sb, wide(r))
	sb.WriteByte('/')
	fmtHex4(&sb, wide(g))
	sb.WriteByte('/')
	fmtHex4(&sb, wide(b))

	out := []byte(sb.String())
	switch term {
	case stTermBel:
		out = append(out, bel)
	case stTermST:
		out = append(out, esc, '\\')
	}
	return out
}

func fmtHex4(sb *strings.Builder, v uint16) {
	s := strconv.FormatUint(uint64(v), 16)
	for i := len(s); i < 4; i++ {
		sb.WriteByte('0')
	}
	sb.WriteString(s)
}

func parseColor(value string) (RGB8, bool) {
	if rest, ok := strings.CutPrefix(value, "rgb:"); ok {
		return parseRGBSpec(rest)
	}
	if strings.HasPrefix(value, "#") {
		return parseHexHash(value)
	}
	return RGB8{}, false
}

// parseHexHash delegates to go-colorful's CSS-hex parser rather than
// hand-rolling channel splitting, then converts back to 8-bit RGB.
func parseHexHash(value string) (RGB8, bool) {
	c, err := colorful.Hex(value)
	if err != nil {
		return RGB8{}, false
	}
	r, g, b := c.Clamped().RGB255()
	return RGB8{R: r, G: g, B: b}, true
}

func parseRGBSpec(value string) (RGB8, bool) {
	parts := strings.Split(value, "/")
	if len(parts) != 3 {
		return RGB8{}, false
	}
	r, ok1 := parseRGBComponent(parts[0])
	g, ok2 := parseRGBComponent(parts[1])
	b, ok3 := parseRGBComponent(parts[2])
	if !ok1 || !ok2 || !ok3 {
		return RGB8{}, false
	}
	return RGB8{R: r, G: g, B: b}, true
}

func parseRGBComponent(value string) (uint8, bool) {
	if len(value) == 0 || len(value) > 4 {
		return 0, false
	}
	parsed, err := strconv.ParseUint(value, 16, 32)
	if err != nil {
		return 0, false
	}
	max := (uint32(1) << uint(4*len(value))) - 1
	scaled := (uint32(parsed)*255 + max/2) / max
	return uint8(scaled), true
}
