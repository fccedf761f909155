package server

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client calls a TapeServer over Connect using the same JSON codec.
type Client struct {
	run            *connect.Client[RunRequest, RunResponse]
	checkSyntax    *connect.Client[CheckSyntaxRequest, CheckSyntaxResponse]
	createSession  *connect.Client[CreateSessionRequest, CreateSessionResponse]
	runInSession   *connect.Client[RunInSessionRequest, RunResponse]
	readTape       *connect.Client[ReadTapeRequest, ReadTapeResponse]
	destroySession *connect.Client[DestroySessionRequest, DestroySessionResponse]
}

// NewClient creates a Client for the server at baseURL, for example
// "http://localhost:4567".
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &Client{
		run:            connect.NewClient[RunRequest, RunResponse](httpClient, baseURL+RunProcedure, opts...),
		checkSyntax:    connect.NewClient[CheckSyntaxRequest, CheckSyntaxResponse](httpClient, baseURL+CheckSyntaxProcedure, opts...),
		createSession:  connect.NewClient[CreateSessionRequest, CreateSessionResponse](httpClient, baseURL+CreateSessionProcedure, opts...),
		runInSession:   connect.NewClient[RunInSessionRequest, RunResponse](httpClient, baseURL+RunInSessionProcedure, opts...),
		readTape:       connect.NewClient[ReadTapeRequest, ReadTapeResponse](httpClient, baseURL+ReadTapeProcedure, opts...),
		destroySession: connect.NewClient[DestroySessionRequest, DestroySessionResponse](httpClient, baseURL+DestroySessionProcedure, opts...),
	}
}

func (c *Client) Run(ctx context.Context, req *RunRequest) (*RunResponse, error) {
	resp, err := c.run.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) CheckSyntax(ctx context.Context, req *CheckSyntaxRequest) (*CheckSyntaxResponse, error) {
	resp, err := c.checkSyntax.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error) {
	resp, err := c.createSession.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) RunInSession(ctx context.Context, req *RunInSessionRequest) (*RunResponse, error) {
	resp, err := c.runInSession.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) ReadTape(ctx context.Context, req *ReadTapeRequest) (*ReadTapeResponse, error) {
	resp, err := c.readTape.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) DestroySession(ctx context.Context, req *DestroySessionRequest) (*DestroySessionResponse, error) {
	resp, err := c.destroySession.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
