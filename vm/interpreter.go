package vm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/tliron/commonlog"

	"github.com/chazu/tape/compiler"
	"github.com/chazu/tape/diag"
)

// DefaultMaxIterations bounds how many times a loop may jump back before
// the run is aborted.
const DefaultMaxIterations = 65535

// cancelCheckInterval is how many steps run between context checks.
const cancelCheckInterval = 4096

// Config selects the instruction set, the arithmetic policy, and the loop
// watchdog for a run.
type Config struct {
	Syntax compiler.Syntax
	Mode   Mode

	// MaxIterations is the per-loop limit on back jumps. Zero means
	// DefaultMaxIterations; a negative value disables the watchdog.
	MaxIterations int

	// Trace logs every step at debug level.
	Trace bool
}

// IterationLimit returns the effective watchdog limit, or -1 if disabled.
func (c Config) IterationLimit() int {
	switch {
	case c.MaxIterations == 0:
		return DefaultMaxIterations
	case c.MaxIterations < 0:
		return -1
	}
	return c.MaxIterations
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithInput sets where ',' and ';' read characters from. Without it,
// input instructions leave the cell unchanged.
func WithInput(r io.RuneReader) Option {
	return func(it *Interpreter) { it.in = r }
}

// WithOutput sets where '.' and ':' write. The default discards output.
func WithOutput(w io.Writer) Option {
	return func(it *Interpreter) { it.out = w }
}

// WithLogger replaces the "tape.vm" logger.
func WithLogger(log commonlog.Logger) Option {
	return func(it *Interpreter) { it.log = log }
}

// Interpreter executes programs. It keeps no state between runs; the
// tape and pointer are threaded through Run by the caller.
type Interpreter struct {
	cfg Config
	in  io.RuneReader
	out io.Writer
	log commonlog.Logger
}

// New creates an Interpreter.
func New(cfg Config, opts ...Option) *Interpreter {
	it := &Interpreter{
		cfg: cfg,
		out: io.Discard,
		log: commonlog.GetLogger("tape.vm"),
	}
	for _, opt := range opts {
		opt(it)
	}
	return it
}

// Config returns the interpreter's configuration.
func (it *Interpreter) Config() Config {
	return it.cfg
}

// Run validates and executes source starting from st. It returns the final
// state, or the zero State and a *diag.Error. The caller's st is never
// modified.
func (it *Interpreter) Run(source string, st State) (State, error) {
	return it.RunContext(context.Background(), source, st)
}

// RunContext is Run with cancellation. The context is polled every few
// thousand steps.
func (it *Interpreter) RunContext(ctx context.Context, source string, st State) (State, error) {
	prog, err := compiler.Compile(source, it.cfg.Syntax)
	if err != nil {
		return State{}, err
	}
	return it.Exec(ctx, prog, st)
}

// Exec runs an already compiled program. The program's own syntax is used
// for dispatch.
func (it *Interpreter) Exec(ctx context.Context, prog *compiler.Program, st State) (State, error) {
	m := &machine{
		prog:  prog,
		st:    &st,
		mode:  it.cfg.Mode,
		limit: it.cfg.IterationLimit(),
		in:    it.in,
		out:   bufio.NewWriter(it.out),
		log:   it.log,
		trace: it.cfg.Trace && it.log.AllowLevel(commonlog.Debug),
	}

	err := m.run(ctx)
	if flushErr := m.out.Flush(); err == nil && flushErr != nil {
		err = fmt.Errorf("writing output: %w", flushErr)
	}
	if err != nil {
		it.log.Debugf("run failed after %s steps: %v", humanize.Comma(int64(m.steps)), err)
		return State{}, err
	}

	it.log.Infof("halted after %s steps, pointer at %d", humanize.Comma(int64(m.steps)), st.Pointer)
	return st, nil
}

// machine is the running state of one execution.
type machine struct {
	prog  *compiler.Program
	st    *State
	mode  Mode
	limit int
	loops []int // back-jump counts, one per active loop

	in    io.RuneReader
	out   *bufio.Writer
	log   commonlog.Logger
	trace bool
	steps uint64
}

func (m *machine) run(ctx context.Context) error {
	src := m.prog.Source
	for i := 0; i < len(src); {
		if m.steps%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("run stopped at offset %d: %w", i, err)
			}
		}

		op, r, size, err := m.prog.Next(i)
		if err != nil {
			return err
		}
		m.steps++

		if m.trace && op != compiler.OpInert {
			m.log.Debugf("offset %d, character %q, pointer %d, cell %d", i, r, m.st.Pointer, m.st.Cell())
		}

		switch op {
		case compiler.OpRight:
			if m.st.Pointer == MaxPointer && m.mode == ModeSafe {
				return diag.Overflow(src, i, diag.TargetPointer, 0)
			}
			m.st.Pointer++

		case compiler.OpLeft:
			if m.st.Pointer == 0 && m.mode == ModeSafe {
				return diag.Underflow(src, i, diag.TargetPointer, 0)
			}
			m.st.Pointer--

		case compiler.OpIncrement:
			if m.st.Cell() == 255 && m.mode == ModeSafe {
				return diag.Overflow(src, i, diag.TargetCell, int(m.st.Pointer))
			}
			m.st.Tape[m.st.Pointer]++

		case compiler.OpDecrement:
			if m.st.Cell() == 0 && m.mode == ModeSafe {
				return diag.Underflow(src, i, diag.TargetCell, int(m.st.Pointer))
			}
			m.st.Tape[m.st.Pointer]--

		case compiler.OpOutput:
			m.out.WriteByte(m.st.Cell())

		case compiler.OpPrintValue:
			m.out.Write(strconv.AppendUint(nil, uint64(m.st.Cell()), 10))

		case compiler.OpInput, compiler.OpAccumulate:
			if err := m.input(i, op == compiler.OpAccumulate); err != nil {
				return err
			}

		case compiler.OpLoopOpen:
			if m.st.Cell() == 0 {
				target, err := m.prog.Jump(i)
				if err != nil {
					return err
				}
				i = target
			} else {
				m.loops = append(m.loops, 0)
			}

		case compiler.OpLoopClose:
			if m.st.Cell() != 0 {
				if n := len(m.loops); n > 0 {
					m.loops[n-1]++
					if m.limit >= 0 && m.loops[n-1] > m.limit {
						return diag.Iteration(src, i, m.limit)
					}
				}
				target, err := m.prog.Jump(i)
				if err != nil {
					return err
				}
				i = target
			} else if n := len(m.loops); n > 0 {
				m.loops = m.loops[:n-1]
			}
		}

		i += size
	}
	return nil
}

// input handles ',' and ';'. A failed read leaves the tape unchanged.
func (m *machine) input(offset int, accumulate bool) error {
	if m.in == nil {
		return nil
	}
	if err := m.out.Flush(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	r, _, err := m.in.ReadRune()
	if err != nil {
		m.log.Debugf("input at offset %d ignored: %v", offset, err)
		return nil
	}

	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], r)
	p := m.st.Pointer

	if m.mode == ModeSafe {
		if !accumulate {
			m.st.Tape[p] = buf[0]
			return nil
		}
		sum := int(m.st.Tape[p]) + int(buf[0])
		if sum > 255 {
			return diag.Overflow(m.prog.Source, offset, diag.TargetCell, int(p))
		}
		m.st.Tape[p] = byte(sum)
		return nil
	}

	// Unsafe mode spreads every encoded byte across consecutive cells.
	for k := 0; k < n; k++ {
		if buf[k] == 0 {
			continue
		}
		idx := uint16(int(p) + k)
		if accumulate {
			m.st.Tape[idx] += buf[k]
		} else {
			m.st.Tape[idx] = buf[k]
		}
	}
	return nil
}
