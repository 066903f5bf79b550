package inputenc

import "fmt"

// MouseButton identifies which button a press/release/click event used.
type MouseButton int

const (
	Left MouseButton = iota
	Middle
	Right
)

func (b MouseButton) String() string {
	switch b {
	case Left:
		return "left"
	case Middle:
		return "middle"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

func ParseMouseButton(s string) (MouseButton, bool) {
	switch s {
	case "left":
		return Left, true
	case "middle":
		return Middle, true
	case "right":
		return Right, true
	default:
		return 0, false
	}
}

func (b MouseButton) pressCode() int {
	switch b {
	case Left:
		return 0
	case Middle:
		return 1
	case Right:
		return 2
	default:
		return 0
	}
}

// ScrollDirection is the wheel direction for a mouse_scroll event.
type ScrollDirection int

const (
	ScrollUp ScrollDirection = iota
	ScrollDown
)

func (d ScrollDirection) String() string {
	if d == ScrollUp {
		return "up"
	}
	return "down"
}

func ParseScrollDirection(s string) (ScrollDirection, bool) {
	switch s {
	case "up":
		return ScrollUp, true
	case "down":
		return ScrollDown, true
	default:
		return 0, false
	}
}

func (d ScrollDirection) sgrCode() int {
	if d == ScrollUp {
		return 64
	}
	return 65
}

// EncodeSGRMouse renders a single SGR 1006 mouse report. row/col are
// 0-based; the wire format is 1-based. pressed selects the final byte
// (M for press, m for release).
func EncodeSGRMouse(code, row, col int, pressed bool) []byte {
	final := byte('m')
	if pressed {
		final = 'M'
	}
	return []byte(fmt.Sprintf("\x1b[<%d;%d;%d%c", code, col+1, row+1, final))
}

// EncodeMouseMove emits a hover/drag report. With no buttons held the
// base code is 3; with a button held, that button's press code + 32.
func EncodeMouseMove(row, col int, held []MouseButton) []byte {
	code := 3
	if len(held) > 0 {
		code = held[0].pressCode() + 32
	}
	return EncodeSGRMouse(code, row, col, true)
}

// EncodeMouseDown emits a press report for button at row/col.
func EncodeMouseDown(row, col int, button MouseButton) []byte {
	return EncodeSGRMouse(button.pressCode(), row, col, true)
}

// EncodeMouseUp emits a release report at row/col.
func EncodeMouseUp(row, col int) []byte {
	return EncodeSGRMouse(3, row, col, false)
}

// EncodeMouseClick emits a press immediately followed by a release at
// the same coordinates.
func EncodeMouseClick(row, col int, button MouseButton) []byte {
	out := EncodeMouseDown(row, col, button)
	return append(out, EncodeMouseUp(row, col)...)
}

// EncodeMouseScroll emits count identical wheel events at row/col.
func EncodeMouseScroll(row, col int, dir ScrollDirection, count int) []byte {
	if count < 1 {
		count = 1
	}
	var out []byte
	for i := 0; i < count; i++ {
		out = append(out, EncodeSGRMouse(dir.sgrCode(), row, col, true)...)
	}
	return out
}
