package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"

	"github.com/chazu/tape/compiler"
	"github.com/chazu/tape/manifest"
	"github.com/chazu/tape/store"
	"github.com/chazu/tape/vm"
)

// repl runs each line against a tape that persists between lines. A line
// that fails leaves the tape as it was before the line.
type repl struct {
	cfg    vm.Config
	st     vm.State
	prompt string

	in     *bufio.Reader
	out    *trackingWriter
	errOut io.Writer
	color  *termenv.Output

	storePath string
	store     *store.Store
}

func newREPL(cfg vm.Config, m *manifest.Manifest, stdin io.Reader, stdout, stderr io.Writer) *repl {
	return &repl{
		cfg:       cfg,
		st:        vm.NewState(),
		prompt:    m.REPL.Prompt,
		in:        bufio.NewReader(stdin),
		out:       &trackingWriter{w: stdout},
		errOut:    stderr,
		color:     termenv.NewOutput(stdout),
		storePath: m.StorePath(),
	}
}

// Run reads lines until EOF, exit, or quit.
func (r *repl) Run() {
	fmt.Fprintln(r.out, "tape REPL (type 'exit' to quit, ':help' for commands)")
	fmt.Fprintf(r.out, "Syntax: %s, mode: %s\n\n", r.cfg.Syntax, r.cfg.Mode)

	for {
		fmt.Fprint(r.out, r.prompt)

		line, err := r.in.ReadString('\n')
		if err != nil && line == "" {
			break
		}
		line = strings.TrimRight(line, "\r\n")
		trimmed := strings.TrimSpace(line)

		if trimmed == "exit" || trimmed == "quit" {
			break
		}
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			r.command(trimmed)
			continue
		}
		r.eval(line)
	}

	fmt.Fprintln(r.out)
}

// Close releases the snapshot store if it was opened.
func (r *repl) Close() error {
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}

// eval runs one line of program text.
func (r *repl) eval(line string) {
	interp := vm.New(r.cfg, vm.WithInput(r.in), vm.WithOutput(r.out))

	r.out.reset()
	st, err := interp.RunContext(context.Background(), line, r.st)
	if r.out.pending() {
		fmt.Fprintln(r.out)
	}
	if err != nil {
		printError(r.errOut, err)
		return
	}
	r.st = st
}

// command handles REPL meta-commands.
func (r *repl) command(line string) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case ":help", ":h", ":?":
		fmt.Fprintln(r.out, "REPL Commands:")
		fmt.Fprintln(r.out, "  :help, :h, :?          Show this help")
		fmt.Fprintln(r.out, "  :tape [start [count]]  Show cells (default: around the pointer)")
		fmt.Fprintln(r.out, "  :ptr                   Show the pointer and current cell")
		fmt.Fprintln(r.out, "  :reset                 Zero the tape and pointer")
		fmt.Fprintln(r.out, "  :syntax base|extended  Switch instruction set")
		fmt.Fprintln(r.out, "  :mode safe|unsafe      Switch arithmetic mode")
		fmt.Fprintln(r.out, "  :save NAME             Save the tape")
		fmt.Fprintln(r.out, "  :load NAME             Restore a saved tape")
		fmt.Fprintln(r.out, "  :list                  List saved tapes")
		fmt.Fprintln(r.out, "  :delete NAME           Delete a saved tape")
		fmt.Fprintln(r.out, "  exit, quit             Exit REPL")

	case ":tape":
		r.showTape(args)

	case ":ptr":
		fmt.Fprintf(r.out, "pointer %d, cell %d\n", r.st.Pointer, r.st.Cell())

	case ":reset":
		r.st = vm.NewState()
		fmt.Fprintln(r.out, "Tape reset")

	case ":syntax":
		if len(args) != 1 {
			fmt.Fprintf(r.out, "Syntax: %s\n", r.cfg.Syntax)
			return
		}
		syntax, err := compiler.ParseSyntax(args[0])
		if err != nil {
			printError(r.errOut, err)
			return
		}
		r.cfg.Syntax = syntax
		fmt.Fprintf(r.out, "Switched to %s syntax\n", syntax)

	case ":mode":
		if len(args) != 1 {
			fmt.Fprintf(r.out, "Mode: %s\n", r.cfg.Mode)
			return
		}
		mode, err := vm.ParseMode(args[0])
		if err != nil {
			printError(r.errOut, err)
			return
		}
		r.cfg.Mode = mode
		fmt.Fprintf(r.out, "Switched to %s mode\n", mode)

	case ":save", ":load", ":delete":
		if len(args) != 1 {
			fmt.Fprintf(r.out, "Usage: %s NAME\n", cmd)
			return
		}
		r.storeCommand(cmd, args[0])

	case ":list":
		r.storeCommand(cmd, "")

	default:
		fmt.Fprintf(r.out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
}

// showTape prints a window of cells. Without arguments the window starts a
// few cells before the pointer.
func (r *repl) showTape(args []string) {
	start, count := int(r.st.Pointer)-4, 16
	if start < 0 {
		start = 0
	}
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 || n >= vm.TapeSize {
			fmt.Fprintf(r.out, "Invalid start: %s\n", args[0])
			return
		}
		start = n
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			fmt.Fprintf(r.out, "Invalid count: %s\n", args[1])
			return
		}
		count = n
	}
	fmt.Fprintln(r.out, r.st.Dump(start, count))
}

// storeCommand runs :save, :load, :list and :delete, opening the snapshot
// database on first use.
func (r *repl) storeCommand(cmd, name string) {
	if r.store == nil {
		s, err := store.Open(r.storePath)
		if err != nil {
			printError(r.errOut, err)
			return
		}
		r.store = s
	}
	ctx := context.Background()

	switch cmd {
	case ":save":
		if err := r.store.Save(ctx, name, &r.st); err != nil {
			printError(r.errOut, err)
			return
		}
		fmt.Fprintf(r.out, "Saved %s\n", name)

	case ":load":
		st, err := r.store.Load(ctx, name)
		if err != nil {
			printError(r.errOut, err)
			return
		}
		r.st = st
		fmt.Fprintf(r.out, "Loaded %s (pointer %d)\n", name, st.Pointer)

	case ":delete":
		if err := r.store.Delete(ctx, name); err != nil {
			printError(r.errOut, err)
			return
		}
		fmt.Fprintf(r.out, "Deleted %s\n", name)

	case ":list":
		entries, err := r.store.List(ctx)
		if err != nil {
			printError(r.errOut, err)
			return
		}
		if len(entries) == 0 {
			fmt.Fprintln(r.out, "No saved tapes")
			return
		}
		for _, e := range entries {
			name := r.color.String(e.Name).Bold()
			fmt.Fprintf(r.out, "  %s  pointer %d, %s, saved %s\n",
				name, e.Pointer, humanize.Bytes(uint64(e.Size)), humanize.Time(e.SavedAt))
		}
	}
}

// trackingWriter remembers whether program output since the last reset
// ended without a newline, so the prompt starts on a fresh line.
type trackingWriter struct {
	w       io.Writer
	written bool
	last    byte
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if n > 0 {
		t.written = true
		t.last = p[n-1]
	}
	return n, err
}

func (t *trackingWriter) reset() {
	t.written = false
}

func (t *trackingWriter) pending() bool {
	return t.written && t.last != '\n'
}
