package main

import (
	"fmt"
	"io"
	"strings"

	"buffer-language-server/internal/completion"
	"buffer-language-server/internal/journal"
	"buffer-language-server/internal/position"
)

// runReplay rebuilds the most recent session of a journal and prints the
// resulting buffer followed by the words it would offer.
func runReplay(path string, w io.Writer) error {
	j, err := journal.OpenReadOnly(path)
	if err != nil {
		return err
	}
	defer j.Close()

	session, err := j.Latest()
	if err != nil {
		return err
	}
	store, err := j.ReplaySession(session)
	if err != nil {
		return fmt.Errorf("session %d: %w", session.ID, err)
	}
	text, err := store.Snapshot()
	if err != nil {
		return err
	}

	candidates := completion.Complete(text, position.Position{}, completion.Options{})
	words := make([]string, len(candidates))
	for i, c := range candidates {
		words[i] = c.Label
	}

	fmt.Fprintf(w, "session %d (%s, %s, version %d)\n",
		session.ID, session.StartedAt.Format("2006-01-02 15:04:05"), session.Encoding, store.Version())
	fmt.Fprintln(w, text)
	fmt.Fprintf(w, "words: %s\n", strings.Join(words, " "))
	return nil
}
