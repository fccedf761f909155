package server

import (
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/tape/vm"
)

// EvalServiceName is the fully-qualified name of the evaluation service.
const EvalServiceName = "tape.v1.EvalService"

// Procedure paths for the evaluation service.
const (
	RunProcedure            = "/" + EvalServiceName + "/Run"
	CheckSyntaxProcedure    = "/" + EvalServiceName + "/CheckSyntax"
	CreateSessionProcedure  = "/" + EvalServiceName + "/CreateSession"
	RunInSessionProcedure   = "/" + EvalServiceName + "/RunInSession"
	ReadTapeProcedure       = "/" + EvalServiceName + "/ReadTape"
	DestroySessionProcedure = "/" + EvalServiceName + "/DestroySession"
)

// DefaultRunTimeout bounds a single remote run.
const DefaultRunTimeout = 10 * time.Second

// TapeServer serves the evaluation service over Connect. Connect, gRPC
// and gRPC-Web clients can all reach it on the same port.
type TapeServer struct {
	worker   *Worker
	sessions *SessionStore
	mux      *http.ServeMux
	log      commonlog.Logger
}

// ServerOption configures a TapeServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	defaults   vm.Config
	runTimeout time.Duration
}

// WithDefaultConfig sets the interpreter configuration used when a request
// does not override it.
func WithDefaultConfig(cfg vm.Config) ServerOption {
	return func(c *serverConfig) { c.defaults = cfg }
}

// WithRunTimeout bounds every run. A zero duration removes the bound.
func WithRunTimeout(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.runTimeout = d }
}

// New creates a TapeServer.
func New(opts ...ServerOption) *TapeServer {
	cfg := &serverConfig{
		runTimeout: DefaultRunTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &TapeServer{
		worker:   NewWorker(),
		sessions: NewSessionStore(),
		mux:      http.NewServeMux(),
		log:      commonlog.GetLogger("tape.server"),
	}

	evalSvc := NewEvalService(s.worker, s.sessions, cfg.defaults, cfg.runTimeout)
	codec := connect.WithCodec(jsonCodec{})

	s.mux.Handle(RunProcedure, connect.NewUnaryHandler(RunProcedure, evalSvc.Run, codec))
	s.mux.Handle(CheckSyntaxProcedure, connect.NewUnaryHandler(CheckSyntaxProcedure, evalSvc.CheckSyntax, codec))
	s.mux.Handle(CreateSessionProcedure, connect.NewUnaryHandler(CreateSessionProcedure, evalSvc.CreateSession, codec))
	s.mux.Handle(RunInSessionProcedure, connect.NewUnaryHandler(RunInSessionProcedure, evalSvc.RunInSession, codec))
	s.mux.Handle(ReadTapeProcedure, connect.NewUnaryHandler(ReadTapeProcedure, evalSvc.ReadTape, codec))
	s.mux.Handle(DestroySessionProcedure, connect.NewUnaryHandler(DestroySessionProcedure, evalSvc.DestroySession, codec))

	return s
}

// Handler returns the HTTP handler serving every procedure.
func (s *TapeServer) Handler() http.Handler {
	return s.mux
}

// Sessions returns the server's session store.
func (s *TapeServer) Sessions() *SessionStore {
	return s.sessions
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *TapeServer) ListenAndServe(addr string) error {
	fmt.Printf("tape server listening on %s\n", addr)
	fmt.Printf("  Connect (HTTP/JSON): http://%s%s\n", addr, RunProcedure)
	s.log.Infof("serving %s on %s", EvalServiceName, addr)
	return http.ListenAndServe(addr, s.mux)
}

// Stop shuts down the server's worker.
func (s *TapeServer) Stop() {
	s.worker.Stop()
}
