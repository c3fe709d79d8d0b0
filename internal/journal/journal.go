// Package journal records every committed buffer change in a SQLite file so
// that a session can be replayed when chasing a client/server drift bug.
//
// Writes never happen on the request path: Record appends each change to an
// in-memory backlog and a scheduler worker flushes the backlog in one
// transaction. Record never waits on the database.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"buffer-language-server/internal/document"
	"buffer-language-server/internal/position"
	"buffer-language-server/internal/scheduler"

	"github.com/tliron/commonlog"

	_ "github.com/mattn/go-sqlite3"
)

var log = commonlog.GetLogger("buffer-language-server.journal")

var ErrNoSession = errors.New("journal: no recorded session")

const checkpointInterval = 5 * time.Minute

// Session is one server run.
type Session struct {
	ID        int64
	StartedAt time.Time
	Encoding  position.Encoding
}

// Entry is one recorded change.
type Entry struct {
	Version    int
	Kind       document.ChangeKind
	Edits      []document.Edit
	Encoding   position.Encoding // how the ranges of Edits map onto the buffer
	RecordedAt time.Time
}

type Journal struct {
	db       *sql.DB
	session  Session
	schedule *scheduler.Scheduler

	// flushMu serializes writers so that entries land in commit order.
	flushMu sync.Mutex

	pendingMu   sync.Mutex
	pending     []Entry
	flushQueued bool
}

// Open opens or creates the journal at path and starts a new session.
func Open(path string, enc position.Encoding) (*Journal, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	res, err := db.Exec(
		`INSERT INTO sessions (started_at, encoding) VALUES (?, ?)`,
		now.UnixNano(), enc.String(),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read session id: %w", err)
	}

	schedule := scheduler.New(256)
	schedule.Run()

	j := &Journal{
		db:       db,
		session:  Session{ID: id, StartedAt: now, Encoding: enc},
		schedule: schedule,
	}

	schedule.Every(checkpointInterval, scheduler.Task{
		Name:    "journal checkpoint",
		Execute: j.checkpoint,
	})

	log.Infof("journal session %d at %s", id, path)
	return j, nil
}

// OpenReadOnly opens an existing journal for inspection without starting a
// session.
func OpenReadOnly(path string) (*Journal, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Session returns the session this journal is writing to.
func (j *Journal) Session() Session {
	return j.session
}

// Record adds change to the backlog and makes sure a flush is queued. It has
// the signature of a document.Store observer and never blocks on I/O.
func (j *Journal) Record(change document.Change) {
	if j.schedule == nil {
		log.Warning("journal opened read-only, change not recorded")
		return
	}

	edits := make([]document.Edit, len(change.Edits))
	copy(edits, change.Edits)

	j.pendingMu.Lock()
	defer j.pendingMu.Unlock()
	j.pending = append(j.pending, Entry{
		Version:    change.Version,
		Kind:       change.Kind,
		Edits:      edits,
		Encoding:   change.Encoding,
		RecordedAt: time.Now(),
	})
	if j.flushQueued {
		return
	}

	err := j.schedule.TrySchedule(scheduler.Task{Name: "journal flush", Execute: j.flush})
	if err != nil {
		// The backlog is kept; the next Record or Close retries.
		log.Warningf("journal flush not queued (%d pending): %s", len(j.pending), err)
		return
	}
	j.flushQueued = true
}

// flush writes the whole backlog in one transaction.
func (j *Journal) flush() error {
	j.flushMu.Lock()
	defer j.flushMu.Unlock()

	j.pendingMu.Lock()
	entries := j.pending
	j.pending = nil
	j.flushQueued = false
	j.pendingMu.Unlock()

	if len(entries) == 0 {
		return nil
	}
	if err := j.insert(entries); err != nil {
		log.Errorf("lost %d journal entries (v%d-v%d): %s",
			len(entries), entries[0].Version, entries[len(entries)-1].Version, err)
		return err
	}
	return nil
}

func (j *Journal) insert(entries []Entry) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, entry := range entries {
		if err := insertEntry(tx, j.session.ID, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertEntry(tx *sql.Tx, sessionID int64, entry Entry) error {
	res, err := tx.Exec(
		`INSERT INTO changes (session_id, version, kind, encoding, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, entry.Version, entry.Kind.String(), entry.Encoding.String(), entry.RecordedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert change v%d: %w", entry.Version, err)
	}
	changeID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read change id: %w", err)
	}

	for i, edit := range entry.Edits {
		var r position.Range
		hasRange := edit.Range != nil
		if hasRange {
			r = *edit.Range
		}
		_, err := tx.Exec(`
            INSERT INTO edits (change_id, idx, has_range, start_line, start_character, end_line, end_character, text)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			changeID, i, hasRange, r.Start.Line, r.Start.Character, r.End.Line, r.End.Character, edit.Text,
		)
		if err != nil {
			return fmt.Errorf("failed to insert edit %d of v%d: %w", i, entry.Version, err)
		}
	}
	return nil
}

func (j *Journal) checkpoint() error {
	_, err := j.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
	return err
}

// Sync blocks until every change recorded so far has been written.
func (j *Journal) Sync() error {
	if j.schedule == nil {
		return nil
	}
	done := make(chan error, 1)
	err := j.schedule.Schedule(scheduler.Task{
		Name: "journal sync",
		Execute: func() error {
			err := j.flush()
			done <- err
			return err
		},
	})
	if err != nil {
		return err
	}
	return <-done
}

// Sessions lists all recorded sessions, oldest first.
func (j *Journal) Sessions() ([]Session, error) {
	rows, err := j.db.Query(`SELECT id, started_at, encoding FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var started int64
		var enc string
		if err := rows.Scan(&s.ID, &started, &enc); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.StartedAt = time.Unix(0, started)
		s.Encoding, err = position.ParseEncoding(enc)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Latest returns the most recent session.
func (j *Journal) Latest() (Session, error) {
	sessions, err := j.Sessions()
	if err != nil {
		return Session{}, err
	}
	if len(sessions) == 0 {
		return Session{}, ErrNoSession
	}
	return sessions[len(sessions)-1], nil
}

// Entries returns the changes of a session in commit order.
func (j *Journal) Entries(sessionID int64) ([]Entry, error) {
	rows, err := j.db.Query(`
        SELECT c.id, c.version, c.kind, COALESCE(NULLIF(c.encoding, ''), s.encoding), c.recorded_at,
               e.has_range, e.start_line, e.start_character, e.end_line, e.end_character, e.text
        FROM changes c
        JOIN sessions s ON s.id = c.session_id
        JOIN edits e ON e.change_id = c.id
        WHERE c.session_id = ?
        ORDER BY c.id, e.idx`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	lastID := int64(-1)
	for rows.Next() {
		var (
			changeID, recorded int64
			version            int
			kind, enc          string
			hasRange           bool
			r                  position.Range
			text               string
		)
		err := rows.Scan(
			&changeID, &version, &kind, &enc, &recorded,
			&hasRange, &r.Start.Line, &r.Start.Character, &r.End.Line, &r.End.Character, &text,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}

		if changeID != lastID {
			entry := Entry{Version: version, Kind: document.KindEdit, RecordedAt: time.Unix(0, recorded)}
			if kind == document.KindOpen.String() {
				entry.Kind = document.KindOpen
			}
			entry.Encoding, err = position.ParseEncoding(enc)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
			lastID = changeID
		}

		edit := document.Edit{Text: text}
		if hasRange {
			rr := r
			edit.Range = &rr
		}
		last := &entries[len(entries)-1]
		last.Edits = append(last.Edits, edit)
	}
	return entries, rows.Err()
}

// Close writes pending changes and closes the database.
func (j *Journal) Close() error {
	var flushErr error
	if j.schedule != nil {
		j.schedule.Stop()
		// Catches a backlog whose flush could not be queued.
		flushErr = j.flush()
	}
	return errors.Join(flushErr, j.db.Close())
}
