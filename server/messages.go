package server

// Message types for the tape.v1.EvalService procedures. They travel as
// JSON through the codec in codec.go.

// Diagnostic describes why a run or a syntax check failed.
type Diagnostic struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Offset  int    `json:"offset"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// RunOptions overrides the server's default interpreter configuration.
// Empty fields keep the default.
type RunOptions struct {
	Syntax        string `json:"syntax,omitempty"`
	Mode          string `json:"mode,omitempty"`
	MaxIterations int    `json:"maxIterations,omitempty"`
}

type RunRequest struct {
	Source string `json:"source"`
	Input  string `json:"input,omitempty"`
	RunOptions
}

type RunResponse struct {
	Success    bool        `json:"success"`
	Output     string      `json:"output"`
	Pointer    uint16      `json:"pointer"`
	Cell       uint8       `json:"cell"`
	Diagnostic *Diagnostic `json:"diagnostic,omitempty"`
}

type CheckSyntaxRequest struct {
	Source string `json:"source"`
}

type CheckSyntaxResponse struct {
	Valid       bool          `json:"valid"`
	Diagnostics []*Diagnostic `json:"diagnostics,omitempty"`
}

type CreateSessionRequest struct {
	Name string `json:"name,omitempty"`
	RunOptions
}

type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name,omitempty"`
}

type RunInSessionRequest struct {
	SessionID string `json:"sessionId"`
	Source    string `json:"source"`
	Input     string `json:"input,omitempty"`
}

// ReadTapeRequest selects a window of cells. A zero Count reads
// defaultReadCount cells.
type ReadTapeRequest struct {
	SessionID string `json:"sessionId"`
	Start     int    `json:"start"`
	Count     int    `json:"count,omitempty"`
}

type ReadTapeResponse struct {
	Pointer uint16 `json:"pointer"`
	Start   int    `json:"start"`
	Cells   []int  `json:"cells"`
	Runs    int    `json:"runs"`
}

type DestroySessionRequest struct {
	SessionID string `json:"sessionId"`
}

type DestroySessionResponse struct {
	Success bool `json:"success"`
}
