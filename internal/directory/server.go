package directory

import (
	"encoding/json"
	"net/http"

	"github.com/LuxRender/LuxFire/internal/jsonrpc"
	"github.com/rs/zerolog/log"
)

// Server exposes a Registry over JSON-RPC.
type Server struct {
	registry *Registry
	rpc      *jsonrpc.Server
}

func NewServer(registry *Registry) *Server {
	s := &Server{
		registry: registry,
		rpc:      jsonrpc.NewServer(),
	}
	s.rpc.Register("directory.register", s.handleRegister)
	s.rpc.Register("directory.deregister", s.handleDeregister)
	s.rpc.Register("directory.resolveGroup", s.handleResolveGroup)
	s.rpc.Register("directory.lookup", s.handleLookup)
	return s
}

// Handler returns the HTTP handler to mount.
func (s *Server) Handler() http.Handler { return s.rpc }

func (s *Server) handleRegister(_ *http.Request, params json.RawMessage) (any, error) {
	var name, endpoint string
	if err := jsonrpc.UnmarshalParams(params, &name, &endpoint); err != nil {
		return nil, err
	}
	if name == "" || endpoint == "" {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "name and endpoint are required"}
	}
	s.registry.Register(name, endpoint)
	log.Info().Str("name", name).Str("endpoint", endpoint).Msg("service registered")
	return true, nil
}

func (s *Server) handleDeregister(_ *http.Request, params json.RawMessage) (any, error) {
	var name string
	if err := jsonrpc.UnmarshalParams(params, &name); err != nil {
		return nil, err
	}
	s.registry.Deregister(name)
	log.Info().Str("name", name).Msg("service deregistered")
	return true, nil
}

func (s *Server) handleResolveGroup(_ *http.Request, params json.RawMessage) (any, error) {
	var group string
	if err := jsonrpc.UnmarshalParams(params, &group); err != nil {
		return nil, err
	}
	return s.registry.ResolveGroup(group), nil
}

func (s *Server) handleLookup(_ *http.Request, params json.RawMessage) (any, error) {
	var name string
	if err := jsonrpc.UnmarshalParams(params, &name); err != nil {
		return nil, err
	}
	endpoint, ok := s.registry.Lookup(name)
	if !ok {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInternal, Message: "name not registered: " + name}
	}
	return endpoint, nil
}
