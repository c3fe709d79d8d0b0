package position_test

import (
	"testing"

	"buffer-language-server/internal/position"
)

func TestOffsetOf(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		pos      position.Position
		expected int
	}{
		{name: "second line", text: "ab\ncd", pos: position.Position{Line: 1, Character: 1}, expected: 4},
		{name: "origin", text: "ab\ncd", pos: position.Position{}, expected: 0},
		{name: "end of first line", text: "ab\ncd", pos: position.Position{Line: 0, Character: 2}, expected: 2},
		{name: "start of second line", text: "ab\ncd", pos: position.Position{Line: 1}, expected: 3},
		{name: "end of buffer", text: "ab\ncd", pos: position.Position{Line: 1, Character: 2}, expected: 5},
		{name: "column spills into next line", text: "ab\ncd", pos: position.Position{Line: 0, Character: 4}, expected: 4},
		{name: "column past end", text: "ab\ncd", pos: position.Position{Line: 1, Character: 10}, expected: 5},
		{name: "line past end", text: "ab\ncd", pos: position.Position{Line: 5}, expected: 5},
		{name: "huge column", text: "ab\ncd", pos: position.Position{Character: 1 << 31}, expected: 5},
		{name: "empty buffer", text: "", pos: position.Position{Line: 3, Character: 3}, expected: 0},
		{name: "after trailing newline", text: "ab\n", pos: position.Position{Line: 1}, expected: 3},
		{name: "crlf line ending", text: "ab\r\ncd", pos: position.Position{Line: 1, Character: 1}, expected: 5},
		{name: "inside multibyte rune snaps back", text: "éx", pos: position.Position{Character: 1}, expected: 0},
		{name: "after multibyte rune", text: "éx", pos: position.Position{Character: 2}, expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := position.OffsetOf(tt.text, tt.pos)
			if got != tt.expected {
				t.Errorf("OffsetOf(%q, %v) = %d, want %d", tt.text, tt.pos, got, tt.expected)
			}
		})
	}
}

func TestOffsetOfUTF16(t *testing.T) {
	// "😀" is four bytes in UTF-8 and two UTF-16 code units.
	text := "a😀b\nçd"

	tests := []struct {
		name     string
		pos      position.Position
		expected int
	}{
		{name: "before emoji", pos: position.Position{Character: 1}, expected: 1},
		{name: "between surrogate halves", pos: position.Position{Character: 2}, expected: 1},
		{name: "after emoji", pos: position.Position{Character: 3}, expected: 5},
		{name: "end of line", pos: position.Position{Character: 4}, expected: 6},
		{name: "two byte rune is one unit", pos: position.Position{Line: 1, Character: 1}, expected: 9},
		{name: "past end", pos: position.Position{Line: 1, Character: 9}, expected: len(text)},
		{name: "line past end", pos: position.Position{Line: 7}, expected: len(text)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := position.UTF16.OffsetOf(text, tt.pos)
			if got != tt.expected {
				t.Errorf("UTF16.OffsetOf(%v) = %d, want %d", tt.pos, got, tt.expected)
			}
		})
	}
}

func TestEncodingsAgreeOnASCII(t *testing.T) {
	text := "hello world\nsecond line\n\nlast"
	for line := uint32(0); line < 6; line++ {
		for char := uint32(0); char < 20; char++ {
			pos := position.Position{Line: line, Character: char}
			a := position.UTF8.OffsetOf(text, pos)
			b := position.UTF16.OffsetOf(text, pos)
			if a != b {
				t.Fatalf("encodings disagree at %v: utf-8 %d, utf-16 %d", pos, a, b)
			}
			if a < 0 || a > len(text) {
				t.Fatalf("offset %d out of bounds at %v", a, pos)
			}
		}
	}
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in       string
		expected position.Encoding
		wantErr  bool
	}{
		{in: "utf-16", expected: position.UTF16},
		{in: "UTF-8", expected: position.UTF8},
		{in: "", expected: position.UTF16},
		{in: "utf-32", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := position.ParseEncoding(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEncoding(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.expected {
				t.Errorf("ParseEncoding(%q) = %v, want %v", tt.in, got, tt.expected)
			}
		})
	}
}

func FuzzOffsetOf(f *testing.F) {
	f.Add("ab\ncd", uint32(1), uint32(1))
	f.Add("a😀b", uint32(0), uint32(2))

	f.Fuzz(func(t *testing.T, text string, line, char uint32) {
		pos := position.Position{Line: line, Character: char}
		for _, enc := range []position.Encoding{position.UTF8, position.UTF16} {
			got := enc.OffsetOf(text, pos)
			if got < 0 || got > len(text) {
				t.Fatalf("%v offset %d out of [0, %d]", enc, got, len(text))
			}
		}
	})
}
