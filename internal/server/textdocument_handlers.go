package server

import (
	"fmt"

	"buffer-language-server/internal/completion"
	"buffer-language-server/internal/document"
	"buffer-language-server/internal/position"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (s *Server) textDocumentDidOpen(
	context *glsp.Context,
	params *protocol.DidOpenTextDocumentParams,
) error {
	log.Infof("didOpen: %s", params.TextDocument.URI)
	if err := s.store.ReplaceAll(params.TextDocument.Text); err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}
	logMessage(context, "file opened!")
	return nil
}

func (s *Server) textDocumentDidChange(
	context *glsp.Context,
	params *protocol.DidChangeTextDocumentParams,
) error {
	edits, err := convertChanges(params.ContentChanges)
	if err != nil {
		return err
	}
	if err := s.store.Apply(edits); err != nil {
		log.Errorf("didChange %s: %s", params.TextDocument.URI, err)
		return fmt.Errorf("failed to apply changes: %w", err)
	}
	logMessage(context, "file changed!")
	return nil
}

func (s *Server) textDocumentDidSave(
	context *glsp.Context,
	params *protocol.DidSaveTextDocumentParams,
) error {
	log.Debugf("didSave: %s", params.TextDocument.URI)
	logMessage(context, "file saved!")
	return nil
}

// The buffer outlives the editor's view of the file, so closing keeps it.
func (s *Server) textDocumentDidClose(
	context *glsp.Context,
	params *protocol.DidCloseTextDocumentParams,
) error {
	log.Debugf("didClose: %s", params.TextDocument.URI)
	logMessage(context, "file closed!")
	return nil
}

func (s *Server) textDocumentCompletion(
	context *glsp.Context,
	params *protocol.CompletionParams,
) (any, error) {
	cfg := s.currentConfig()

	text, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}

	candidates := completion.Complete(text, toPosition(params.Position), completion.Options{
		Encoding: cfg.Encoding(),
		Order:    cfg.Order(),
	})

	items := make([]protocol.CompletionItem, 0, len(candidates))
	for _, c := range candidates {
		kind := protocol.CompletionItemKindText
		items = append(items, protocol.CompletionItem{
			Label: c.Label,
			Kind:  &kind,
		})
	}
	return items, nil
}

func convertChanges(changes []any) ([]document.Edit, error) {
	edits := make([]document.Edit, 0, len(changes))
	for _, raw := range changes {
		switch change := raw.(type) {
		case protocol.TextDocumentContentChangeEvent:
			if change.Range == nil {
				edits = append(edits, document.Full(change.Text))
				continue
			}
			edits = append(edits, document.Ranged(
				toPosition(change.Range.Start),
				toPosition(change.Range.End),
				change.Text,
			))
		case protocol.TextDocumentContentChangeEventWhole:
			edits = append(edits, document.Full(change.Text))
		default:
			return nil, fmt.Errorf("unexpected change event type %T", raw)
		}
	}
	return edits, nil
}

func toPosition(p protocol.Position) position.Position {
	return position.Position{Line: uint32(p.Line), Character: uint32(p.Character)}
}
