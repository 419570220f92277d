package jsonrpc

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// HandlerFunc executes one RPC method. Params are the raw positional array.
type HandlerFunc func(r *http.Request, params json.RawMessage) (any, error)

// Server dispatches requests over a fixed method table. The table is the
// whole protocol: there is no reflective fallback, unknown methods are
// rejected with a method-not-found error.
type Server struct {
	methods map[string]HandlerFunc
}

func NewServer() *Server {
	return &Server{methods: make(map[string]HandlerFunc)}
}

func (s *Server) Register(method string, fn HandlerFunc) {
	s.methods[method] = fn
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, Response{JSONRPC: "2.0", Error: &Error{Code: CodeInvalidParams, Message: "malformed request"}})
		return
	}

	fn, ok := s.methods[req.Method]
	if !ok {
		writeResponse(w, Response{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: CodeMethodNotFound, Message: "method not found: " + req.Method}})
		return
	}

	result, err := fn(r, req.Params)
	if err != nil {
		rpcErr, ok := err.(*Error)
		if !ok {
			rpcErr = &Error{Code: CodeInternal, Message: err.Error()}
		}
		writeResponse(w, Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr})
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		log.Error().Err(err).Str("method", req.Method).Msg("marshal rpc result")
		writeResponse(w, Response{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: CodeInternal, Message: "marshal result"}})
		return
	}

	writeResponse(w, Response{JSONRPC: "2.0", ID: req.ID, Result: raw})
}

func writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// UnmarshalParams decodes a positional param array into the given targets.
func UnmarshalParams(params json.RawMessage, targets ...any) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(params, &raw); err != nil {
		return &Error{Code: CodeInvalidParams, Message: "params must be an array"}
	}
	if len(raw) != len(targets) {
		return &Error{Code: CodeInvalidParams, Message: "wrong number of params"}
	}
	for i, t := range targets {
		if err := json.Unmarshal(raw[i], t); err != nil {
			return &Error{Code: CodeInvalidParams, Message: "bad param"}
		}
	}
	return nil
}
