package screen

import "testing"

func fromLines(lines []string) *Screen {
	cells := make([][]Cell, len(lines))
	cols := 0
	for _, l := range lines {
		if len(l) > cols {
			cols = len(l)
		}
	}
	for i, l := range lines {
		row := make([]Cell, cols)
		runes := []rune(l)
		for c := range row {
			ch := rune(' ')
			if c < len(runes) {
				ch = runes[c]
			}
			row[c] = Cell{Char: ch, Fg: DefaultColor(), Bg: DefaultColor()}
		}
		cells[i] = row
	}
	return &Screen{Size: Size{Cols: cols, Rows: len(lines)}, cells: cells}
}

func TestTextTrimsTrailingSpaces(t *testing.T) {
	s := fromLines([]string{"hello   ", "world"})
	if got, want := s.Text(), "hello\nworld"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestContainsAndFindText(t *testing.T) {
	s := fromLines([]string{"abcabc"})
	if !s.Contains("bca") {
		t.Fatalf("expected contains true")
	}
	matches := s.FindText("abc")
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(matches), matches)
	}
	if matches[0].Position.Col != 0 || matches[1].Position.Col != 3 {
		t.Fatalf("unexpected positions: %+v", matches)
	}
}

func TestFindTextResumesOneAfterMatch(t *testing.T) {
	s := fromLines([]string{"aaaa"})
	matches := s.FindText("aa")
	// resumption at match+1 lets matches overlap: positions 0, 1, 2
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
}

func TestFindPattern(t *testing.T) {
	s := fromLines([]string{"foo123bar456"})
	matches, err := s.FindPattern(`\d+`)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 || matches[0].Text != "123" || matches[1].Text != "456" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestLineOutOfRange(t *testing.T) {
	s := fromLines([]string{"a"})
	if _, ok := s.Line(5); ok {
		t.Fatalf("expected out of range")
	}
}

func TestDetectBoxesSingle(t *testing.T) {
	s := fromLines([]string{
		"┌──┐",
		"│  │",
		"└──┘",
	})
	boxes := s.DetectBoxes()
	if len(boxes) != 1 {
		t.Fatalf("expected 1 box, got %d: %+v", len(boxes), boxes)
	}
	b := boxes[0]
	if b.Region != (Region{Position{0, 0}, Position{3, 4}}) {
		t.Fatalf("unexpected outer region: %+v", b.Region)
	}
	if b.InnerRegion != (Region{Position{1, 1}, Position{2, 3}}) {
		t.Fatalf("unexpected inner region: %+v", b.InnerRegion)
	}
	if b.Style != BoxSingle {
		t.Fatalf("expected Single style, got %v", b.Style)
	}
}

func TestDetectBoxesDouble(t *testing.T) {
	s := fromLines([]string{
		"╔══╗",
		"║  ║",
		"╚══╝",
	})
	boxes := s.DetectBoxes()
	if len(boxes) != 1 || boxes[0].Style != BoxDouble {
		t.Fatalf("expected 1 Double box, got %+v", boxes)
	}
}

func TestDetectBoxesMixedAscii(t *testing.T) {
	s := fromLines([]string{
		"+--+",
		"|  |",
		"+--+",
	})
	boxes := s.DetectBoxes()
	if len(boxes) != 1 || boxes[0].Style != BoxMixed {
		t.Fatalf("expected 1 Mixed box, got %+v", boxes)
	}
}

func TestDetectBoxesNoBorderIsNotABox(t *testing.T) {
	s := fromLines([]string{
		"abcd",
		"efgh",
	})
	if boxes := s.DetectBoxes(); len(boxes) != 0 {
		t.Fatalf("expected no boxes, got %+v", boxes)
	}
}

func TestRegionExtractText(t *testing.T) {
	s := fromLines([]string{
		"┌──┐",
		"│hi│",
		"└──┘",
	})
	reg := s.Region(1, 2, 1, 3)
	if got, want := reg.ExtractText(s), "hi"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestParseSGRBasics(t *testing.T) {
	st := parseSGR("\x1b[1;31m", sgrState{fg: DefaultColor(), bg: DefaultColor()})
	if !st.attrs.Bold {
		t.Fatalf("expected bold")
	}
	if st.fg.Kind != ColorIndexed || st.fg.Index != 1 {
		t.Fatalf("unexpected fg: %+v", st.fg)
	}
}

func TestParseSGRTrueColor(t *testing.T) {
	st := parseSGR("\x1b[38;2;10;20;30;48;2;40;50;60m", sgrState{fg: DefaultColor(), bg: DefaultColor()})
	if st.fg != (Color{Kind: ColorRGB, R: 10, G: 20, B: 30}) {
		t.Fatalf("unexpected fg: %+v", st.fg)
	}
	if st.bg != (Color{Kind: ColorRGB, R: 40, G: 50, B: 60}) {
		t.Fatalf("unexpected bg: %+v", st.bg)
	}
}
