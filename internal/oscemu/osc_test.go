package oscemu

import "testing"

func TestQuery11BelResponseIsRGBFormat(t *testing.T) {
	e := New(ColorState{
		Foreground: RGB8{0x20, 0x30, 0x40},
		Background: RGB8{0x2c, 0x2c, 0x2c},
		Cursor:     RGB8{0x20, 0x30, 0x40},
	})

	responses := e.Process([]byte("\x1b]11;?\x07"))
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	if got, want := string(responses[0]), "\x1b]11;rgb:2c2c/2c2c/2c2c\x07"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestQuery10STResponseUsesSTTerminator(t *testing.T) {
	e := New(ColorState{
		Foreground: RGB8{0x1a, 0x2b, 0x3c},
		Background: RGB8{0x00, 0x00, 0x00},
		Cursor:     RGB8{0x1a, 0x2b, 0x3c},
	})

	responses := e.Process([]byte("\x1b]10;?\x1b\\"))
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	if got, want := string(responses[0]), "\x1b]10;rgb:1a1a/2b2b/3c3c\x1b\\"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestParserHandlesSplitChunks(t *testing.T) {
	e := New(DefaultColorState())
	if responses := e.Process([]byte("\x1b]11;")); len(responses) != 0 {
		t.Fatalf("expected no response yet, got %d", len(responses))
	}
	responses := e.Process([]byte("?\x07"))
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
}

func TestSplitByteAtATime(t *testing.T) {
	whole := New(DefaultColorState())
	wholeResp := whole.Process([]byte("\x1b]11;?\x07"))

	perByte := New(DefaultColorState())
	var gotResp [][]byte
	for _, b := range []byte("\x1b]11;?\x07") {
		gotResp = append(gotResp, perByte.Process([]byte{b})...)
	}

	if len(wholeResp) != len(gotResp) {
		t.Fatalf("response count differs: whole=%d perbyte=%d", len(wholeResp), len(gotResp))
	}
	for i := range wholeResp {
		if string(wholeResp[i]) != string(gotResp[i]) {
			t.Fatalf("response %d differs: %q vs %q", i, wholeResp[i], gotResp[i])
		}
	}
}

func TestSetCommandUpdatesFutureQuery(t *testing.T) {
	e := New(DefaultColorState())
	if responses := e.Process([]byte("\x1b]11;#2c2c2c\x07")); len(responses) != 0 {
		t.Fatalf("set should not reply, got %d", len(responses))
	}
	responses := e.Process([]byte("\x1b]11;?\x07"))
	if got, want := string(responses[0]), "\x1b]11;rgb:2c2c/2c2c/2c2c\x07"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestMalformedSetIsIgnored(t *testing.T) {
	e := New(DefaultColorState())
	if responses := e.Process([]byte("\x1b]11;not-a-color\x07")); len(responses) != 0 {
		t.Fatalf("malformed set should not reply, got %d", len(responses))
	}
	responses := e.Process([]byte("\x1b]11;?\x07"))
	if got, want := string(responses[0]), "\x1b]11;rgb:0000/0000/0000\x07"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestParsesMultiSequenceChunk(t *testing.T) {
	e := New(DefaultColorState())
	responses := e.Process([]byte("\x1b]10;?\x07\x1b]11;?\x07"))
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
}

func TestParseRGBSpecShortAndLongComponents(t *testing.T) {
	got, ok := parseColor("rgb:f/0/8")
	if !ok || got != (RGB8{0xff, 0x00, 0x88}) {
		t.Fatalf("got %v ok=%v", got, ok)
	}
	got, ok = parseColor("rgb:ffff/7fff/0000")
	if !ok || got != (RGB8{0xff, 0x7f, 0x00}) {
		t.Fatalf("got %v ok=%v", got, ok)
	}
}

func TestOverlongPayloadDropsToGroundWithoutReply(t *testing.T) {
	e := New(DefaultColorState())
	junk := make([]byte, maxBufSize+100)
	for i := range junk {
		junk[i] = 'x'
	}
	responses := e.Process(append([]byte("\x1b]11;"), junk...))
	if len(responses) != 0 {
		t.Fatalf("expected no response for overrun payload, got %d", len(responses))
	}
	if e.parser != stateGround {
		t.Fatalf("expected parser reset to Ground after overrun")
	}
}
