package server

import (
	"fmt"

	"buffer-language-server/internal/config"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (s *Server) initialize(
	context *glsp.Context,
	params *protocol.InitializeParams,
) (any, error) {
	cfg, err := config.Overlay(s.currentConfig(), params.InitializationOptions)
	if err != nil {
		return nil, fmt.Errorf("invalid initializationOptions: %w", err)
	}
	if err := s.applyConfig(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config: %w", err)
	}

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindIncremental
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
	}
	resolve := false
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		ResolveProvider: &resolve,
	}
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
		Commands: []string{InspectCommand},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    Name,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(
	context *glsp.Context,
	params *protocol.InitializedParams,
) error {
	log.Info("client initialized")
	logMessage(context, "initialized!")
	return nil
}

func (s *Server) shutdown(context *glsp.Context) error {
	log.Info("shutdown")
	protocol.SetTraceValue(protocol.TraceValueOff)
	return s.Close()
}

func (s *Server) setTrace(
	context *glsp.Context,
	params *protocol.SetTraceParams,
) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) workspaceDidChangeWorkspaceFolders(
	context *glsp.Context,
	params *protocol.DidChangeWorkspaceFoldersParams,
) error {
	logMessage(context, "workspace folders changed!")
	return nil
}

func (s *Server) workspaceDidChangeConfiguration(
	context *glsp.Context,
	params *protocol.DidChangeConfigurationParams,
) error {
	cfg, err := config.Overlay(s.currentConfig(), params.Settings)
	if err != nil {
		log.Warningf("ignoring configuration: %s", err)
		return fmt.Errorf("invalid settings: %w", err)
	}
	if err := s.applyConfig(cfg); err != nil {
		return err
	}
	logMessage(context, "configuration changed!")
	return nil
}

func (s *Server) workspaceDidChangeWatchedFiles(
	context *glsp.Context,
	params *protocol.DidChangeWatchedFilesParams,
) error {
	logMessage(context, "watched files have changed!")
	return nil
}

// logMessage mirrors lifecycle events into the client's log.
func logMessage(context *glsp.Context, message string) {
	if context == nil || context.Notify == nil {
		return
	}
	context.Notify("window/logMessage", protocol.LogMessageParams{
		Type:    protocol.MessageTypeInfo,
		Message: message,
	})
}
