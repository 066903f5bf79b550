// Package inputenc translates abstract key and mouse events into the
// byte sequences a VT-style program reads from its PTY stdin.
package inputenc

import "fmt"

// Key is the set of abstract key events the encoder understands.
type Key struct {
	kind keyKind
	r    rune // for Char, Ctrl, Alt
	fn   int  // for F1..F12 (1-indexed)
}

type keyKind int

const (
	kindChar keyKind = iota
	kindEnter
	kindTab
	kindEscape
	kindBackspace
	kindDelete
	kindUp
	kindDown
	kindLeft
	kindRight
	kindHome
	kindEnd
	kindPageUp
	kindPageDown
	kindFn
	kindCtrl
	kindAlt
)

func Char(r rune) Key       { return Key{kind: kindChar, r: r} }
func Ctrl(r rune) Key       { return Key{kind: kindCtrl, r: r} }
func Alt(r rune) Key        { return Key{kind: kindAlt, r: r} }
func Fn(n int) Key          { return Key{kind: kindFn, fn: n} }

var (
	Enter     = Key{kind: kindEnter}
	Tab       = Key{kind: kindTab}
	Escape    = Key{kind: kindEscape}
	Backspace = Key{kind: kindBackspace}
	Delete    = Key{kind: kindDelete}
	Up        = Key{kind: kindUp}
	Down      = Key{kind: kindDown}
	ArrowLeft  = Key{kind: kindLeft}
	ArrowRight = Key{kind: kindRight}
	Home      = Key{kind: kindHome}
	End       = Key{kind: kindEnd}
	PageUp    = Key{kind: kindPageUp}
	PageDown  = Key{kind: kindPageDown}
)

// Encode produces the byte sequence for k, or nil if k is undefined
// (e.g. Ctrl of a non-letter, or an out-of-range function key index).
func Encode(k Key) []byte {
	switch k.kind {
	case kindChar:
		return []byte(string(k.r))
	case kindEnter:
		return []byte{'\r'}
	case kindTab:
		return []byte{'\t'}
	case kindEscape:
		return []byte{0x1B}
	case kindBackspace:
		return []byte{0x7F}
	case kindDelete:
		return []byte{0x1B, '[', '3', '~'}
	case kindUp:
		return []byte{0x1B, '[', 'A'}
	case kindDown:
		return []byte{0x1B, '[', 'B'}
	case kindRight:
		return []byte{0x1B, '[', 'C'}
	case kindLeft:
		return []byte{0x1B, '[', 'D'}
	case kindHome:
		return []byte{0x1B, '[', 'H'}
	case kindEnd:
		return []byte{0x1B, '[', 'F'}
	case kindPageUp:
		return []byte{0x1B, '[', '5', '~'}
	case kindPageDown:
		return []byte{0x1B, '[', '6', '~'}
	case kindFn:
		return encodeFn(k.fn)
	case kindCtrl:
		return encodeCtrl(k.r)
	case kindAlt:
		return append([]byte{0x1B}, []byte(string(k.r))...)
	default:
		return nil
	}
}

func encodeFn(n int) []byte {
	switch n {
	case 1:
		return []byte{0x1B, 'O', 'P'}
	case 2:
		return []byte{0x1B, 'O', 'Q'}
	case 3:
		return []byte{0x1B, 'O', 'R'}
	case 4:
		return []byte{0x1B, 'O', 'S'}
	case 5:
		return []byte(fmt.Sprintf("\x1b[15~"))
	case 6:
		return []byte(fmt.Sprintf("\x1b[17~"))
	case 7:
		return []byte(fmt.Sprintf("\x1b[18~"))
	case 8:
		return []byte(fmt.Sprintf("\x1b[19~"))
	case 9:
		return []byte(fmt.Sprintf("\x1b[20~"))
	case 10:
		return []byte(fmt.Sprintf("\x1b[21~"))
	case 11:
		return []byte(fmt.Sprintf("\x1b[23~"))
	case 12:
		return []byte(fmt.Sprintf("\x1b[24~"))
	default:
		return nil
	}
}

func encodeCtrl(r rune) []byte {
	lower := r
	if lower >= 'A' && lower <= 'Z' {
		lower = lower - 'A' + 'a'
	}
	if lower < 'a' || lower > 'z' {
		return nil
	}
	return []byte{byte(lower - 'a' + 1)}
}

// ParseKeyName maps the daemon's `press`/`hotkey` key-name vocabulary
// to a Key. Unknown names return ok=false.
func ParseKeyName(name string) (Key, bool) {
	switch name {
	case "Enter":
		return Enter, true
	case "Tab":
		return Tab, true
	case "Escape", "Esc":
		return Escape, true
	case "Backspace":
		return Backspace, true
	case "Delete", "Del":
		return Delete, true
	case "Up":
		return Up, true
	case "Down":
		return Down, true
	case "Left":
		return ArrowLeft, true
	case "Right":
		return ArrowRight, true
	case "Home":
		return Home, true
	case "End":
		return End, true
	case "PageUp", "Page_Up":
		return PageUp, true
	case "PageDown", "Page_Down":
		return PageDown, true
	}
	for n := 1; n <= 12; n++ {
		if name == fmt.Sprintf("F%d", n) {
			return Fn(n), true
		}
	}
	runes := []rune(name)
	if len(runes) == 1 {
		return Char(runes[0]), true
	}
	return Key{}, false
}
