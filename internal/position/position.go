// Package position maps zero-based (line, character) coordinates onto byte
// offsets into a UTF-8 buffer.
//
// Every mapping is total: coordinates that point past the end of a line spill
// into the following text, and coordinates past the end of the buffer clamp to
// its length. Clients routinely send positions computed against a slightly
// stale copy of the document, so nothing here returns an error or panics.
package position

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Position is a zero-based line and character pair.
type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Range is a half-open [Start, End) span of positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Encoding names the code unit Position.Character is counted in.
type Encoding int

const (
	UTF16 Encoding = iota // LSP default
	UTF8                  // raw bytes
)

func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "utf-8"
	case UTF16:
		return "utf-16"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// ParseEncoding accepts the names used by the LSP positionEncoding field.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "utf-16", "utf16", "":
		return UTF16, nil
	case "utf-8", "utf8":
		return UTF8, nil
	default:
		return 0, fmt.Errorf("position: unknown encoding %q", s)
	}
}

// OffsetOf maps pos onto text counting characters as bytes.
func OffsetOf(text string, pos Position) int {
	return UTF8.OffsetOf(text, pos)
}

// OffsetOf returns the byte offset of pos in text.
//
// The line start is found by skipping pos.Line newline-terminated segments.
// pos.Character code units are then consumed from there, and the result is
// clamped to len(text).
func (e Encoding) OffsetOf(text string, pos Position) int {
	offset := LineStart(text, pos.Line)
	if offset >= len(text) {
		return len(text)
	}

	if e == UTF16 {
		return advanceUTF16(text, offset, pos.Character)
	}

	offset += int(pos.Character)
	if offset >= len(text) {
		return len(text)
	}
	// Never split a multi-byte rune.
	for offset > 0 && !utf8.RuneStart(text[offset]) {
		offset--
	}
	return offset
}

// IndexesIn maps both ends of r. The returned end may be smaller than start.
func (e Encoding) IndexesIn(text string, r Range) (int, int) {
	return e.OffsetOf(text, r.Start), e.OffsetOf(text, r.End)
}

// LineStart returns the byte offset at which line begins, or len(text) when
// the buffer has fewer lines.
func LineStart(text string, line uint32) int {
	offset := 0
	for i := uint32(0); i < line; i++ {
		idx := strings.IndexByte(text[offset:], '\n')
		if idx < 0 {
			return len(text)
		}
		offset += idx + 1
	}
	return offset
}

func advanceUTF16(text string, offset int, units uint32) int {
	var counted uint32
	for offset < len(text) && counted < units {
		r, size := utf8.DecodeRuneInString(text[offset:])
		n := uint32(1)
		if r > 0xFFFF {
			n = 2
		}
		// A character pointing between the halves of a surrogate pair
		// resolves to the start of that rune.
		if counted+n > units {
			break
		}
		counted += n
		offset += size
	}
	return offset
}
