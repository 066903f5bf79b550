// Package screen builds immutable Screen snapshots from a live
// *midterm.Terminal and provides the query helpers (text search, regex
// search, regions, box detection) the daemon exposes over the wire.
package screen

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	runewidth "github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
	"github.com/vito/midterm"
)

// Position is a 0-indexed (row, col) location on the screen.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Size is a screen's dimensions in columns and rows.
type Size struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// ColorKind tags which variant a Color holds.
type ColorKind string

const (
	ColorDefault ColorKind = "default"
	ColorIndexed ColorKind = "indexed"
	ColorRGB     ColorKind = "rgb"
)

// Color is one of: the terminal's default color, a palette index
// 0-255, or a 24-bit RGB triple.
type Color struct {
	Kind  ColorKind
	Index uint8
	R, G, B uint8
}

func DefaultColor() Color         { return Color{Kind: ColorDefault} }
func IndexedColor(idx uint8) Color { return Color{Kind: ColorIndexed, Index: idx} }
func RGBColor(r, g, b uint8) Color { return Color{Kind: ColorRGB, R: r, G: g, B: b} }

// MarshalJSON renders Color as {"type": "...", "value": ...}, mirroring
// the tagged-enum shape the original Rust implementation used.
func (c Color) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ColorIndexed:
		return json.Marshal(struct {
			Type  string `json:"type"`
			Value uint8  `json:"value"`
		}{"indexed", c.Index})
	case ColorRGB:
		return json.Marshal(struct {
			Type  string    `json:"type"`
			Value [3]uint8  `json:"value"`
		}{"rgb", [3]uint8{c.R, c.G, c.B}})
	default:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{"default"})
	}
}

// Attrs is the small set of text attributes a Cell carries.
type Attrs struct {
	Bold      bool `json:"bold"`
	Italic    bool `json:"italic"`
	Underline bool `json:"underline"`
	Inverse   bool `json:"inverse"`
}

// Cell is a single character grid position.
type Cell struct {
	Char  rune  `json:"char"`
	Fg    Color `json:"fg"`
	Bg    Color `json:"bg"`
	Attrs Attrs `json:"attrs"`
}

func defaultCell() Cell {
	return Cell{Char: ' ', Fg: DefaultColor(), Bg: DefaultColor()}
}

// Screen is an immutable snapshot: dimensions, cursor, and a row-major
// grid of cells. It is produced on demand from the live parser and
// never mutated after construction.
type Screen struct {
	Size   Size     `json:"size"`
	Cursor Position `json:"cursor"`
	cells  [][]Cell
}

// FromLines builds a Screen directly from plain-text rows, padding each
// row to the display width of the longest with spaces. Useful for
// tests and for callers that already have rendered text rather than a
// live parser. Width is measured with go-runewidth (so CJK/emoji
// occupy two grid columns, matching a real terminal) and runes are
// walked as uniseg grapheme clusters (so a base rune plus combining
// marks lands in one cell rather than spilling into the next column).
func FromLines(lines []string, cursorRow, cursorCol int) *Screen {
	cols := 0
	for _, l := range lines {
		if w := runewidth.StringWidth(l); w > cols {
			cols = w
		}
	}
	cells := make([][]Cell, len(lines))
	for i, l := range lines {
		row := make([]Cell, cols)
		for c := range row {
			row[c] = defaultCell()
		}
		col := 0
		gr := uniseg.NewGraphemes(l)
		for gr.Next() && col < cols {
			rs := gr.Runes()
			w := runewidth.RuneWidth(rs[0])
			if w <= 0 {
				w = 1
			}
			row[col] = Cell{Char: rs[0], Fg: DefaultColor(), Bg: DefaultColor()}
			col += w
		}
		cells[i] = row
	}
	return &Screen{
		Size:   Size{Cols: cols, Rows: len(lines)},
		Cursor: Position{Row: cursorRow, Col: cursorCol},
		cells:  cells,
	}
}

// FromMidterm samples a live midterm.Terminal into an immutable Screen.
func FromMidterm(t *midterm.Terminal) *Screen {
	rows := len(t.Content)
	cols := 0
	if rows > 0 {
		cols = len(t.Content[0])
	}

	cells := make([][]Cell, rows)
	for r := 0; r < rows; r++ {
		cells[r] = rowFromMidterm(t, r, cols)
	}

	return &Screen{
		Size:   Size{Cols: cols, Rows: rows},
		Cursor: Position{Row: t.Cursor.Y, Col: t.Cursor.X},
		cells:  cells,
	}
}

func rowFromMidterm(t *midterm.Terminal, row, cols int) []Cell {
	out := make([]Cell, cols)
	for i := range out {
		out[i] = defaultCell()
	}
	if row >= len(t.Content) {
		return out
	}
	line := t.Content[row]

	pos := 0
	var cur sgrState
	for region := range t.Format.Regions(row) {
		cur = parseSGR(region.F.Render(), cur)
		end := pos + region.Size
		for i := pos; i < end && i < len(line) && i < cols; i++ {
			out[i] = Cell{
				Char:  line[i],
				Fg:    cur.fg,
				Bg:    cur.bg,
				Attrs: cur.attrs,
			}
		}
		pos = end
	}
	return out
}

// sgrState accumulates the color/attribute state an SGR escape
// sequence describes, so that midterm.Format's rendered SGR string can
// be turned back into structured Cell fields.
type sgrState struct {
	fg, bg Color
	attrs  Attrs
}

var sgrSeqRe = regexp.MustCompile("\x1b\\[([0-9;]*)m")

// parseSGR applies every SGR parameter found in s (which may contain
// several concatenated "\x1b[...m" sequences, as midterm.Format.Render
// emits) on top of the previous state.
func parseSGR(s string, prev sgrState) sgrState {
	state := prev
	for _, m := range sgrSeqRe.FindAllStringSubmatch(s, -1) {
		params := strings.Split(m[1], ";")
		i := 0
		for i < len(params) {
			code, err := strconv.Atoi(params[i])
			if err != nil {
				i++
				continue
			}
			switch {
			case code == 0:
				state = sgrState{fg: DefaultColor(), bg: DefaultColor()}
			case code == 1:
				state.attrs.Bold = true
			case code == 22:
				state.attrs.Bold = false
			case code == 3:
				state.attrs.Italic = true
			case code == 23:
				state.attrs.Italic = false
			case code == 4:
				state.attrs.Underline = true
			case code == 24:
				state.attrs.Underline = false
			case code == 7:
				state.attrs.Inverse = true
			case code == 27:
				state.attrs.Inverse = false
			case code == 39:
				state.fg = DefaultColor()
			case code == 49:
				state.bg = DefaultColor()
			case code >= 30 && code <= 37:
				state.fg = IndexedColor(uint8(code - 30))
			case code >= 40 && code <= 47:
				state.bg = IndexedColor(uint8(code - 40))
			case code >= 90 && code <= 97:
				state.fg = IndexedColor(uint8(code - 90 + 8))
			case code >= 100 && code <= 107:
				state.bg = IndexedColor(uint8(code - 100 + 8))
			case code == 38 || code == 48:
				isFg := code == 38
				if i+1 >= len(params) {
					i++
					continue
				}
				mode, _ := strconv.Atoi(params[i+1])
				switch mode {
				case 5: // indexed
					if i+2 < len(params) {
						idx, _ := strconv.Atoi(params[i+2])
						c := IndexedColor(uint8(idx))
						if isFg {
							state.fg = c
						} else {
							state.bg = c
						}
					}
					i += 2
				case 2: // rgb
					if i+4 < len(params) {
						r, _ := strconv.Atoi(params[i+2])
						g, _ := strconv.Atoi(params[i+3])
						b, _ := strconv.Atoi(params[i+4])
						c := RGBColor(uint8(r), uint8(g), uint8(b))
						if isFg {
							state.fg = c
						} else {
							state.bg = c
						}
					}
					i += 4
				}
			}
			i++
		}
	}
	return state
}

// Text returns the full screen as line-major text, each row trimmed of
// trailing spaces, joined by "\n".
func (s *Screen) Text() string {
	lines := make([]string, len(s.cells))
	for i, row := range s.cells {
		lines[i] = lineText(row)
	}
	return strings.Join(lines, "\n")
}

func lineText(row []Cell) string {
	runes := make([]rune, len(row))
	for i, c := range row {
		runes[i] = c.Char
	}
	return strings.TrimRight(string(runes), " ")
}

// Line returns the r-th row trimmed of trailing spaces, or false if r
// is out of range.
func (s *Screen) Line(r int) (string, bool) {
	if r < 0 || r >= len(s.cells) {
		return "", false
	}
	return lineText(s.cells[r]), true
}

// Contains reports whether text() contains sub as a substring.
func (s *Screen) Contains(sub string) bool {
	return strings.Contains(s.Text(), sub)
}

// TextMatch is a literal or regex match found on the screen.
type TextMatch struct {
	Position Position `json:"position"`
	Text     string   `json:"text"`
	Length   int      `json:"length"`
}

// FindText returns all occurrences of pattern, scanning row by row.
// The next search resumes at match position + 1, so overlapping
// occurrences are each reported.
func (s *Screen) FindText(pattern string) []TextMatch {
	var matches []TextMatch
	for r, row := range s.cells {
		line := string(cellRunes(row))
		start := 0
		for start <= len(line) {
			idx := strings.Index(line[start:], pattern)
			if idx < 0 {
				break
			}
			at := start + idx
			matches = append(matches, TextMatch{
				Position: Position{Row: r, Col: utf8.RuneCountInString(line[:at])},
				Text:     pattern,
				Length:   len(pattern),
			})
			start = at + 1
		}
	}
	return matches
}

// FindPattern returns regex matches, scanning each row independently,
// in row-major order.
func (s *Screen) FindPattern(pattern string) ([]TextMatch, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	var matches []TextMatch
	for r, row := range s.cells {
		line := string(cellRunes(row))
		for _, loc := range re.FindAllStringIndex(line, -1) {
			matches = append(matches, TextMatch{
				Position: Position{Row: r, Col: utf8.RuneCountInString(line[:loc[0]])},
				Text:     line[loc[0]:loc[1]],
				Length:   loc[1] - loc[0],
			})
		}
	}
	return matches, nil
}

func cellRunes(row []Cell) []rune {
	out := make([]rune, len(row))
	for i, c := range row {
		out[i] = c.Char
	}
	return out
}

// Cell returns the cell at (row, col), or false if out of range.
func (s *Screen) Cell(row, col int) (Cell, bool) {
	if row < 0 || row >= len(s.cells) {
		return Cell{}, false
	}
	r := s.cells[row]
	if col < 0 || col >= len(r) {
		return Cell{}, false
	}
	return r[col], true
}

// compactScreen is the wire shape for ToJSONCompact.
type compactScreen struct {
	Size   Size     `json:"size"`
	Cursor Position `json:"cursor"`
	Lines  []string `json:"lines"`
}

// ToJSON serializes the full snapshot including per-cell color/attrs.
func (s *Screen) ToJSON() ([]byte, error) {
	return json.Marshal(struct {
		Size   Size     `json:"size"`
		Cursor Position `json:"cursor"`
		Cells  [][]Cell `json:"cells"`
	}{s.Size, s.Cursor, s.cells})
}

// ParseJSON rebuilds a Screen from the wire format ToJSON produces, for
// clients that receive a "screen" response in json format.
func ParseJSON(data []byte) (*Screen, error) {
	var wire struct {
		Size   Size     `json:"size"`
		Cursor Position `json:"cursor"`
		Cells  [][]Cell `json:"cells"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	return &Screen{Size: wire.Size, Cursor: wire.Cursor, cells: wire.Cells}, nil
}

// ToJSONCompact serializes size, cursor, and per-row trimmed strings only.
func (s *Screen) ToJSONCompact() ([]byte, error) {
	lines := make([]string, len(s.cells))
	for i, row := range s.cells {
		lines[i] = lineText(row)
	}
	return json.Marshal(compactScreen{Size: s.Size, Cursor: s.Cursor, Lines: lines})
}

// Region is a rectangular subgrid descriptor: start inclusive, end
// exclusive.
type Region struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Region builds a Region descriptor for the given row/col ranges.
func (s *Screen) Region(rowStart, rowEnd, colStart, colEnd int) Region {
	return Region{Start: Position{rowStart, colStart}, End: Position{rowEnd, colEnd}}
}

// ExtractText trims each row of reg per the owning screen and joins by "\n".
func (reg Region) ExtractText(s *Screen) string {
	var lines []string
	for row := reg.Start.Row; row < reg.End.Row; row++ {
		if row < 0 || row >= len(s.cells) {
			continue
		}
		rowCells := s.cells[row]
		startCol := reg.Start.Col
		endCol := reg.End.Col
		if endCol > len(rowCells) {
			endCol = len(rowCells)
		}
		if startCol >= len(rowCells) {
			continue
		}
		lines = append(lines, strings.TrimRight(string(cellRunes(rowCells[startCol:endCol])), " "))
	}
	return strings.Join(lines, "\n")
}

// CellsInRegion returns all cells within reg, row by row.
func (s *Screen) CellsInRegion(reg Region) [][]Cell {
	var result [][]Cell
	for row := reg.Start.Row; row < reg.End.Row; row++ {
		if row < 0 || row >= len(s.cells) {
			continue
		}
		rowCells := s.cells[row]
		startCol := reg.Start.Col
		endCol := reg.End.Col
		if endCol > len(rowCells) {
			endCol = len(rowCells)
		}
		if startCol >= len(rowCells) {
			continue
		}
		result = append(result, append([]Cell(nil), rowCells[startCol:endCol]...))
	}
	return result
}
