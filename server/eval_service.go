package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/tape/compiler"
	"github.com/chazu/tape/diag"
	"github.com/chazu/tape/vm"
)

const (
	defaultReadCount = 16
	maxReadCount     = 4096
)

// EvalService implements the tape.v1.EvalService Connect handlers.
type EvalService struct {
	worker   *Worker
	sessions *SessionStore
	defaults vm.Config
	timeout  time.Duration
	log      commonlog.Logger
}

// NewEvalService creates an EvalService. Runs use defaults unless a request
// overrides them, and each run is bounded by timeout when it is positive.
func NewEvalService(worker *Worker, sessions *SessionStore, defaults vm.Config, timeout time.Duration) *EvalService {
	return &EvalService{
		worker:   worker,
		sessions: sessions,
		defaults: defaults,
		timeout:  timeout,
		log:      commonlog.GetLogger("tape.server"),
	}
}

// Run executes source on a fresh tape.
func (s *EvalService) Run(
	ctx context.Context,
	req *connect.Request[RunRequest],
) (*connect.Response[RunResponse], error) {
	if req.Msg.Source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	cfg, err := s.config(req.Msg.RunOptions)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	result, err := s.worker.Do(func() interface{} {
		resp, _ := s.run(ctx, cfg, req.Msg.Source, req.Msg.Input, vm.NewState())
		return resp
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(result.(*RunResponse)), nil
}

// CheckSyntax validates brackets without executing anything.
func (s *EvalService) CheckSyntax(
	ctx context.Context,
	req *connect.Request[CheckSyntaxRequest],
) (*connect.Response[CheckSyntaxResponse], error) {
	if err := compiler.Validate(req.Msg.Source); err != nil {
		return connect.NewResponse(&CheckSyntaxResponse{
			Valid:       false,
			Diagnostics: []*Diagnostic{diagnosticFor(err)},
		}), nil
	}
	return connect.NewResponse(&CheckSyntaxResponse{Valid: true}), nil
}

// CreateSession starts a session with a zeroed tape.
func (s *EvalService) CreateSession(
	ctx context.Context,
	req *connect.Request[CreateSessionRequest],
) (*connect.Response[CreateSessionResponse], error) {
	cfg, err := s.config(req.Msg.RunOptions)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	session := s.sessions.Create(req.Msg.Name, cfg)
	s.log.Infof("created session %s (%s syntax, %s mode)", session.ID, cfg.Syntax, cfg.Mode)

	return connect.NewResponse(&CreateSessionResponse{
		SessionID: session.ID,
		Name:      session.Name,
	}), nil
}

// RunInSession executes source against the session's tape. The tape is
// only updated when the run succeeds.
func (s *EvalService) RunInSession(
	ctx context.Context,
	req *connect.Request[RunInSessionRequest],
) (*connect.Response[RunResponse], error) {
	if req.Msg.SessionID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session_id is required"))
	}
	if req.Msg.Source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}

	result, err := s.worker.Do(func() interface{} {
		session, ok := s.sessions.Get(req.Msg.SessionID)
		if !ok {
			return nil
		}
		resp, final := s.run(ctx, session.Config, req.Msg.Source, req.Msg.Input, session.State)
		if resp.Success {
			if err := s.sessions.Commit(session.ID, final); err != nil {
				return nil
			}
		}
		return resp
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if result == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", req.Msg.SessionID))
	}
	return connect.NewResponse(result.(*RunResponse)), nil
}

// ReadTape returns a window of the session's cells.
func (s *EvalService) ReadTape(
	ctx context.Context,
	req *connect.Request[ReadTapeRequest],
) (*connect.Response[ReadTapeResponse], error) {
	session, ok := s.sessions.Get(req.Msg.SessionID)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", req.Msg.SessionID))
	}

	start, count := req.Msg.Start, req.Msg.Count
	if start < 0 || start >= vm.TapeSize {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("start %d is outside the tape", start))
	}
	if count <= 0 {
		count = defaultReadCount
	}
	if count > maxReadCount {
		count = maxReadCount
	}
	if start+count > vm.TapeSize {
		count = vm.TapeSize - start
	}

	cells := make([]int, count)
	for i := range cells {
		cells[i] = int(session.State.Tape[start+i])
	}

	return connect.NewResponse(&ReadTapeResponse{
		Pointer: session.State.Pointer,
		Start:   start,
		Cells:   cells,
		Runs:    session.Runs,
	}), nil
}

// DestroySession removes a session and its tape.
func (s *EvalService) DestroySession(
	ctx context.Context,
	req *connect.Request[DestroySessionRequest],
) (*connect.Response[DestroySessionResponse], error) {
	if req.Msg.SessionID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session_id is required"))
	}
	ok := s.sessions.Destroy(req.Msg.SessionID)
	if ok {
		s.log.Infof("destroyed session %s", req.Msg.SessionID)
	}
	return connect.NewResponse(&DestroySessionResponse{Success: ok}), nil
}

// run executes source from st and builds the response. It returns the final
// state alongside, which is only meaningful when the run succeeded.
// Must be called on the worker goroutine.
func (s *EvalService) run(ctx context.Context, cfg vm.Config, source, input string, st vm.State) (*RunResponse, vm.State) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var out bytes.Buffer
	interp := vm.New(cfg,
		vm.WithInput(strings.NewReader(input)),
		vm.WithOutput(&out),
	)

	final, err := interp.RunContext(ctx, source, st)
	if err != nil {
		s.log.Debugf("run failed: %v", err)
		return &RunResponse{
			Success:    false,
			Output:     out.String(),
			Pointer:    st.Pointer,
			Cell:       st.Cell(),
			Diagnostic: diagnosticFor(err),
		}, st
	}

	return &RunResponse{
		Success: true,
		Output:  out.String(),
		Pointer: final.Pointer,
		Cell:    final.Cell(),
	}, final
}

// config applies request overrides to the service defaults.
func (s *EvalService) config(opts RunOptions) (vm.Config, error) {
	cfg := s.defaults
	if opts.Syntax != "" {
		syntax, err := compiler.ParseSyntax(opts.Syntax)
		if err != nil {
			return vm.Config{}, err
		}
		cfg.Syntax = syntax
	}
	if opts.Mode != "" {
		mode, err := vm.ParseMode(opts.Mode)
		if err != nil {
			return vm.Config{}, err
		}
		cfg.Mode = mode
	}
	if opts.MaxIterations != 0 {
		cfg.MaxIterations = opts.MaxIterations
	}
	// Remote callers never get per-step tracing.
	cfg.Trace = false
	return cfg, nil
}

// diagnosticFor converts a run error into its wire form.
func diagnosticFor(err error) *Diagnostic {
	var de *diag.Error
	if errors.As(err, &de) {
		return &Diagnostic{
			Kind:    de.Kind.String(),
			Message: de.Error(),
			Offset:  de.Offset,
			Line:    de.Pos.Line,
			Column:  de.Pos.Column,
		}
	}
	kind := "internal"
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = "canceled"
	}
	return &Diagnostic{Kind: kind, Message: err.Error(), Offset: -1}
}
