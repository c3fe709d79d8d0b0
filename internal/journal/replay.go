package journal

import (
	"fmt"

	"buffer-language-server/internal/document"
)

// Replay applies entries to store in order and returns the resulting buffer.
// Each entry is mapped with the encoding it was recorded under.
// A rejected entry stops the replay; a live server never records one.
func Replay(entries []Entry, store *document.Store) (string, error) {
	for _, entry := range entries {
		store.SetEncoding(entry.Encoding)
		var err error
		switch entry.Kind {
		case document.KindOpen:
			if len(entry.Edits) == 0 {
				return "", fmt.Errorf("journal: open entry v%d has no text", entry.Version)
			}
			err = store.ReplaceAll(entry.Edits[0].Text)
		default:
			err = store.Apply(entry.Edits)
		}
		if err != nil {
			return "", fmt.Errorf("journal: replaying v%d: %w", entry.Version, err)
		}
	}
	return store.Snapshot()
}

// ReplaySession replays one recorded session into a fresh store.
func (j *Journal) ReplaySession(session Session) (*document.Store, error) {
	entries, err := j.Entries(session.ID)
	if err != nil {
		return nil, err
	}
	store := document.NewStore(session.Encoding)
	if _, err := Replay(entries, store); err != nil {
		return nil, err
	}
	return store, nil
}
