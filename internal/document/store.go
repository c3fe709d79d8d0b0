// Package document owns the text buffer of the single tracked document.
package document

import (
	"errors"
	"fmt"
	"sync"

	"buffer-language-server/internal/position"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("buffer-language-server.document")

// Predefined errors returned by store operations.
var (
	ErrInvalidRange = errors.New("document: invalid range")
	ErrPoisoned     = errors.New("document: buffer lock poisoned") // the failed change was not committed
)

// RangeError reports an edit whose end maps before its start.
type RangeError struct {
	Index int // position of the edit within its batch
	Range position.Range
	Start int
	End   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf(
		"document: invalid range in edit %d: %v-%v maps to [%d, %d)",
		e.Index, e.Range.Start, e.Range.End, e.Start, e.End,
	)
}

func (e *RangeError) Unwrap() error { return ErrInvalidRange }

// Edit replaces Range with Text, or the whole buffer when Range is nil.
type Edit struct {
	Range *position.Range
	Text  string
}

// Full returns an edit replacing the entire buffer.
func Full(text string) Edit {
	return Edit{Text: text}
}

// Ranged returns an edit replacing [start, end).
func Ranged(start, end position.Position, text string) Edit {
	return Edit{Range: &position.Range{Start: start, End: end}, Text: text}
}

// ChangeKind tells observers how a commit came about.
type ChangeKind int

const (
	KindOpen ChangeKind = iota // ReplaceAll
	KindEdit                   // ApplyRangedEdit or Apply
)

func (k ChangeKind) String() string {
	if k == KindOpen {
		return "open"
	}
	return "change"
}

// Change describes one committed modification of the buffer.
type Change struct {
	Kind     ChangeKind
	Edits    []Edit
	Encoding position.Encoding // how the ranges of Edits were mapped
	Text     string            // buffer after the commit
	Version  int
}

// Store holds the buffer. The zero value is not usable; call NewStore.
type Store struct {
	mu        sync.RWMutex
	text      string
	version   int
	poisoned  bool
	encoding  position.Encoding
	observers []func(Change)
}

// NewStore returns an empty store that maps positions with enc.
func NewStore(enc position.Encoding) *Store {
	return &Store{encoding: enc}
}

// SetEncoding changes how later edits map their positions.
func (s *Store) SetEncoding(enc position.Encoding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encoding = enc
}

// Encoding returns the current position encoding.
func (s *Store) Encoding() position.Encoding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encoding
}

// Observe registers fn to be called for every commit. Observers run while
// the write lock is held, in commit order, and must not call back into the
// store. The change becomes visible only after every observer returned; a
// panicking observer leaves the buffer as it was and poisons the store.
func (s *Store) Observe(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// ReplaceAll overwrites the buffer. It also clears a poisoned lock, since the
// buffer is known again afterwards.
func (s *Store) ReplaceAll(text string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverPoison(&err)

	if s.poisoned {
		log.Notice("full replacement clears poisoned buffer")
		s.poisoned = false
	}
	s.commit(Change{Kind: KindOpen, Edits: []Edit{Full(text)}, Text: text})
	return nil
}

// ApplyRangedEdit replaces the text between start and end, both resolved
// against the current buffer.
func (s *Store) ApplyRangedEdit(start, end position.Position, text string) error {
	return s.Apply([]Edit{Ranged(start, end, text)})
}

// Apply runs edits in order, each against the result of the previous one.
// The batch is committed only if every edit applies; otherwise the buffer is
// left as it was and the first failure is returned.
func (s *Store) Apply(edits []Edit) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverPoison(&err)

	if s.poisoned {
		return ErrPoisoned
	}
	if len(edits) == 0 {
		return nil
	}

	text := s.text
	for i, edit := range edits {
		text, err = applyEdit(text, edit, s.encoding)
		if err != nil {
			var rangeErr *RangeError
			if errors.As(err, &rangeErr) {
				rangeErr.Index = i
			}
			log.Warningf("rejected change batch of %d edits: %s", len(edits), err)
			return err
		}
	}

	s.commit(Change{Kind: KindEdit, Edits: edits, Text: text})
	return nil
}

// Snapshot returns the current buffer.
func (s *Store) Snapshot() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.poisoned {
		return "", ErrPoisoned
	}
	return s.text, nil
}

// Version returns the number of committed changes.
func (s *Store) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// commit must be called with the write lock held.
func (s *Store) commit(change Change) {
	change.Version = s.version + 1
	change.Encoding = s.encoding

	for _, fn := range s.observers {
		fn(change)
	}

	s.text = change.Text
	s.version = change.Version
	log.Debugf("committed %s v%d (%d bytes)", change.Kind, change.Version, len(change.Text))
}

// recoverPoison turns a panic inside a critical section into ErrPoisoned and
// marks the store so that later operations fail as well.
func (s *Store) recoverPoison(err *error) {
	if r := recover(); r != nil {
		s.poisoned = true
		log.Errorf("panic while holding buffer lock: %v", r)
		*err = fmt.Errorf("%w: %v", ErrPoisoned, r)
	}
}

func applyEdit(text string, edit Edit, enc position.Encoding) (string, error) {
	if edit.Range == nil {
		return edit.Text, nil
	}

	start, end := enc.IndexesIn(text, *edit.Range)
	if end < start {
		return text, &RangeError{Range: *edit.Range, Start: start, End: end}
	}
	return text[:start] + edit.Text + text[end:], nil
}
