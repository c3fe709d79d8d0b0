package server

import (
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (s *Server) workspaceExecuteCommand(
	context *glsp.Context,
	params *protocol.ExecuteCommandParams,
) (any, error) {
	if params.Command == InspectCommand {
		return s.inspect(context)
	}
	log.Infof("command %q has no handler", params.Command)
	logMessage(context, "command executed!")
	return nil, nil
}

// inspect starts the inspector on first use and asks the client to open it.
func (s *Server) inspect(context *glsp.Context) (any, error) {
	in, err := s.startInspector(s.currentConfig().InspectorAddr)
	if err != nil {
		return nil, err
	}

	if context != nil && context.Notify != nil {
		context.Notify(
			"window/showDocument",
			protocol.ShowDocumentParams{
				URI:      protocol.URI(in.URL()),
				External: &protocol.True,
			},
		)
	}
	return in.URL(), nil
}
