package screen

// BoxStyle classifies which glyph set a detected box's borders used.
type BoxStyle string

const (
	BoxSingle BoxStyle = "single"
	BoxDouble BoxStyle = "double"
	BoxMixed  BoxStyle = "mixed"
)

// DetectedBox is a bordered rectangle found by DetectBoxes. Region is
// the inclusive outer rectangle (borders included); InnerRegion is the
// strict interior.
type DetectedBox struct {
	Region      Region   `json:"region"`
	InnerRegion Region   `json:"inner_region"`
	Style       BoxStyle `json:"style"`
}

// Content extracts the text inside the box's inner region.
func (b DetectedBox) Content(s *Screen) string {
	return b.InnerRegion.ExtractText(s)
}

type glyphClass int

const (
	glyphNone glyphClass = iota
	glyphSingle
	glyphDouble
	glyphAscii
)

func classify(c rune) glyphClass {
	switch c {
	case '┌', '┐', '└', '┘', '─', '│':
		return glyphSingle
	case '╔', '╗', '╚', '╝', '═', '║':
		return glyphDouble
	case '+', '-', '|':
		return glyphAscii
	default:
		return glyphNone
	}
}

func isTopLeftCorner(c rune) bool     { return c == '┌' || c == '╔' || c == '┏' || c == '╭' || c == '+' }
func isTopRightCorner(c rune) bool    { return c == '┐' || c == '╗' || c == '┓' || c == '╮' || c == '+' }
func isBottomLeftCorner(c rune) bool  { return c == '└' || c == '╚' || c == '┗' || c == '╰' || c == '+' }
func isBottomRightCorner(c rune) bool { return c == '┘' || c == '╝' || c == '┛' || c == '╯' || c == '+' }
func isHorizontalLine(c rune) bool    { return c == '─' || c == '═' || c == '━' || c == '-' }
func isVerticalLine(c rune) bool      { return c == '│' || c == '║' || c == '┃' || c == '|' }

// DetectBoxes scans the screen top-to-bottom, left-to-right, finding
// every bordered rectangle. Overlapping boxes are all reported; no
// de-duplication. Style is classified from the border glyphs that belong
// to the single-line, double-line or ASCII (+ - |) set; heavy and
// rounded glyphs belong to none of these and are not counted. Style is
// Single when every counted glyph is single-line, Double when every
// counted glyph is double-line, and Mixed otherwise (including the
// ASCII set, any combination of sets, or no counted glyph at all).
func (s *Screen) DetectBoxes() []DetectedBox {
	var boxes []DetectedBox
	rows := s.Size.Rows
	cols := s.Size.Cols

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			cell, ok := s.Cell(row, col)
			if !ok || !isTopLeftCorner(cell.Char) {
				continue
			}
			if box, ok := s.traceBox(row, col); ok {
				boxes = append(boxes, box)
			}
		}
	}
	return boxes
}

func (s *Screen) traceBox(startRow, startCol int) (DetectedBox, bool) {
	rows := s.Size.Rows
	cols := s.Size.Cols

	glyphs := []rune{}
	cell, _ := s.Cell(startRow, startCol)
	glyphs = append(glyphs, cell.Char)

	endCol := startCol + 1
	for endCol < cols {
		c, ok := s.Cell(startRow, endCol)
		if !ok {
			return DetectedBox{}, false
		}
		if isTopRightCorner(c.Char) {
			break
		}
		if !isHorizontalLine(c.Char) {
			return DetectedBox{}, false
		}
		glyphs = append(glyphs, c.Char)
		endCol++
	}
	if endCol >= cols {
		return DetectedBox{}, false
	}
	topRight, _ := s.Cell(startRow, endCol)
	glyphs = append(glyphs, topRight.Char)

	endRow := startRow + 1
	for endRow < rows {
		c, ok := s.Cell(endRow, endCol)
		if !ok {
			return DetectedBox{}, false
		}
		if isBottomRightCorner(c.Char) {
			break
		}
		if !isVerticalLine(c.Char) {
			return DetectedBox{}, false
		}
		glyphs = append(glyphs, c.Char)
		endRow++
	}
	if endRow >= rows {
		return DetectedBox{}, false
	}
	bottomRight, _ := s.Cell(endRow, endCol)
	glyphs = append(glyphs, bottomRight.Char)

	bottomLeft, ok := s.Cell(endRow, startCol)
	if !ok || !isBottomLeftCorner(bottomLeft.Char) {
		return DetectedBox{}, false
	}
	glyphs = append(glyphs, bottomLeft.Char)

	for col := startCol + 1; col < endCol; col++ {
		c, ok := s.Cell(endRow, col)
		if !ok || !isHorizontalLine(c.Char) {
			return DetectedBox{}, false
		}
		glyphs = append(glyphs, c.Char)
	}

	for row := startRow + 1; row < endRow; row++ {
		c, ok := s.Cell(row, startCol)
		if !ok || !isVerticalLine(c.Char) {
			return DetectedBox{}, false
		}
		glyphs = append(glyphs, c.Char)
	}

	return DetectedBox{
		Region:      s.Region(startRow, endRow+1, startCol, endCol+1),
		InnerRegion: s.Region(startRow+1, endRow, startCol+1, endCol),
		Style:       borderStyle(glyphs),
	}, true
}

func borderStyle(glyphs []rune) BoxStyle {
	seen := map[glyphClass]bool{}
	for _, g := range glyphs {
		seen[classify(g)] = true
	}
	delete(seen, glyphNone)
	switch {
	case len(seen) == 1 && seen[glyphSingle]:
		return BoxSingle
	case len(seen) == 1 && seen[glyphDouble]:
		return BoxDouble
	default:
		return BoxMixed
	}
}
