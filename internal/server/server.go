package server

import (
	"errors"
	"sync"
	"sync/atomic"

	"buffer-language-server/internal/completion"
	"buffer-language-server/internal/config"
	"buffer-language-server/internal/document"
	"buffer-language-server/internal/inspect"
	"buffer-language-server/internal/journal"
	"buffer-language-server/internal/position"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"
)

const Name = "buffer-language-server"

// InspectCommand opens the buffer inspector in the client's browser.
const InspectCommand = "buffer.inspect"

var log = commonlog.GetLogger(Name + ".server")

type Server struct {
	version string
	handler *protocol.Handler
	store   *document.Store

	mu     sync.RWMutex
	config config.Config

	journal   atomic.Pointer[journal.Journal]
	inspector atomic.Pointer[inspect.Inspector]
	openMu    sync.Mutex // serializes journal/inspector startup
}

// New creates a server with cfg as the baseline configuration. Options sent
// by the client during initialize are layered on top of it.
func New(cfg config.Config, version string) *Server {
	ls := &Server{
		version: version,
		config:  cfg,
		store:   document.NewStore(cfg.Encoding()),
	}
	ls.store.Observe(ls.observe)
	ls.handler = &protocol.Handler{
		Initialize:                         ls.initialize,
		Initialized:                        ls.initialized,
		Shutdown:                           ls.shutdown,
		SetTrace:                           ls.setTrace,
		TextDocumentDidOpen:                ls.textDocumentDidOpen,
		TextDocumentDidChange:              ls.textDocumentDidChange,
		TextDocumentDidSave:                ls.textDocumentDidSave,
		TextDocumentDidClose:               ls.textDocumentDidClose,
		TextDocumentCompletion:             ls.textDocumentCompletion,
		WorkspaceDidChangeWorkspaceFolders: ls.workspaceDidChangeWorkspaceFolders,
		WorkspaceDidChangeConfiguration:    ls.workspaceDidChangeConfiguration,
		WorkspaceDidChangeWatchedFiles:     ls.workspaceDidChangeWatchedFiles,
		WorkspaceExecuteCommand:            ls.workspaceExecuteCommand,
	}
	return ls
}

// Transport wraps the handler in a glsp JSON-RPC server.
func (s *Server) Transport(debug bool) *glspserver.Server {
	return glspserver.NewServer(s.handler, Name, debug)
}

// Store exposes the buffer, mainly for tests.
func (s *Server) Store() *document.Store {
	return s.store
}

func (s *Server) currentConfig() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// applyConfig makes cfg current and starts the journal if it names one.
func (s *Server) applyConfig(cfg config.Config) error {
	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()

	s.store.SetEncoding(cfg.Encoding())
	log.Infof("config: encoding %s, order %s", cfg.Encoding(), cfg.Order())

	if cfg.Journal != "" {
		return s.openJournal(cfg.Journal, cfg.Encoding())
	}
	return nil
}

func (s *Server) openJournal(path string, enc position.Encoding) error {
	s.openMu.Lock()
	defer s.openMu.Unlock()

	if s.journal.Load() != nil {
		return nil
	}
	j, err := journal.Open(path, enc)
	if err != nil {
		return err
	}
	s.journal.Store(j)
	return nil
}

func (s *Server) startInspector(addr string) (*inspect.Inspector, error) {
	s.openMu.Lock()
	defer s.openMu.Unlock()

	if in := s.inspector.Load(); in != nil {
		return in, nil
	}
	in, err := inspect.Start(addr, candidateWords)
	if err != nil {
		return nil, err
	}
	s.inspector.Store(in)

	// Version first: a commit racing in between carries the newer text
	// itself, and the stale pair is then ignored.
	version := s.store.Version()
	if text, err := s.store.Snapshot(); err == nil {
		in.Publish(version, text)
	}
	return in, nil
}

// observe runs under the buffer's write lock for every commit. Both sinks
// only hand the change off.
func (s *Server) observe(change document.Change) {
	if j := s.journal.Load(); j != nil {
		j.Record(change)
	}
	if in := s.inspector.Load(); in != nil {
		in.Publish(change.Version, change.Text)
	}
}

// candidateWords lists every word of text in completion order.
func candidateWords(text string) []string {
	// Nothing precedes the origin, so no word is excluded.
	candidates := completion.Complete(text, position.Position{}, completion.Options{})
	words := make([]string, len(candidates))
	for i, c := range candidates {
		words[i] = c.Label
	}
	return words
}

// Close releases the journal and the inspector.
func (s *Server) Close() error {
	var errs []error
	if j := s.journal.Swap(nil); j != nil {
		errs = append(errs, j.Close())
	}
	if in := s.inspector.Swap(nil); in != nil {
		errs = append(errs, in.Close())
	}
	return errors.Join(errs...)
}
