// tape runs programs written in the eight-instruction tape language.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/tliron/commonlog"
	"github.com/tliron/kutil/util"
	"golang.org/x/term"

	"github.com/chazu/tape/compiler"
	"github.com/chazu/tape/diag"
	"github.com/chazu/tape/manifest"
	"github.com/chazu/tape/server"
	"github.com/chazu/tape/vm"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("tape.cli")

func main() {
	util.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// countFlag counts how many times a boolean flag was given, so -v -v
// means more than -v.
type countFlag int

func (c *countFlag) String() string   { return strconv.Itoa(int(*c)) }
func (c *countFlag) IsBoolFlag() bool { return true }

func (c *countFlag) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if v {
		*c++
	} else {
		*c = 0
	}
	return nil
}

type options struct {
	extended    bool
	unsafe      bool
	maxIter     int
	trace       bool
	verbose     countFlag
	interactive bool
	serve       bool
	addr        string
	lsp         bool
	explain     string
}

func newFlagSet(opts *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("tape", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.BoolVar(&opts.extended, "x", false, "Extended syntax (adds ':' print value and ';' add input)")
	fs.BoolVar(&opts.unsafe, "unsafe", false, "Wrap pointer and cell arithmetic instead of failing")
	fs.IntVar(&opts.maxIter, "max-iter", 0, "Per-loop iteration limit (0 = default 65535, negative = unlimited)")
	fs.BoolVar(&opts.trace, "trace", false, "Log every step (shown with -v -v)")
	fs.Var(&opts.verbose, "v", "Verbose output (repeat for more)")
	fs.BoolVar(&opts.interactive, "i", false, "Start interactive REPL")
	fs.BoolVar(&opts.serve, "serve", false, "Start the evaluation server (Connect HTTP/JSON + gRPC)")
	fs.StringVar(&opts.addr, "addr", "", "Evaluation server address (default from tape.toml, or :4567)")
	fs.BoolVar(&opts.lsp, "lsp", false, "Start the language server on stdio")
	fs.StringVar(&opts.explain, "explain", "", "Explain a topic: "+topicList())

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: tape [options] [file|-]\n\n")
		fmt.Fprintf(stderr, "Runs a tape program from a file or standard input.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  tape hello.bf             # Run a program\n")
		fmt.Fprintf(stderr, "  tape -x -unsafe prog.bf   # Extended syntax, wrapping arithmetic\n")
		fmt.Fprintf(stderr, "  tape -i                   # Start REPL\n")
		fmt.Fprintf(stderr, "  tape -explain overflow    # Explain an error kind\n")
		fmt.Fprintf(stderr, "  tape -serve -addr :8080   # Serve runs over HTTP\n")
	}
	return fs
}

// run is main without the process exit, returning the exit status.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var opts options
	fs := newFlagSet(&opts, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.explain != "" {
		text, ok := explain(opts.explain)
		if !ok {
			fmt.Fprintf(stderr, "Unknown topic %q (choose from %s)\n", opts.explain, topicList())
			return 2
		}
		fmt.Fprintln(stdout, text)
		return 0
	}

	commonlog.Configure(int(opts.verbose), nil)

	m, err := loadManifest()
	if err != nil {
		printError(stderr, err)
		return 1
	}
	cfg, err := m.InterpreterConfig()
	if err != nil {
		printError(stderr, err)
		return 1
	}
	applyFlags(fs, &opts, &cfg)

	if opts.lsp {
		if err := server.NewLSP(cfg.Syntax).Run(); err != nil {
			fmt.Fprintf(stderr, "LSP error: %v\n", err)
			return 1
		}
		return 0
	}

	if opts.serve {
		addr := m.Server.Addr
		if opts.addr != "" {
			addr = opts.addr
		}
		srv := server.New(server.WithDefaultConfig(cfg))
		defer srv.Stop()
		if err := srv.ListenAndServe(addr); err != nil {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			return 1
		}
		return 0
	}

	paths := fs.Args()
	if len(paths) > 1 {
		fs.Usage()
		return 2
	}

	if opts.interactive || (len(paths) == 0 && isTerminal(stdin)) {
		r := newREPL(cfg, m, stdin, stdout, stderr)
		defer r.Close()
		r.Run()
		return 0
	}

	path := "-"
	if len(paths) == 1 {
		path = paths[0]
	}
	source, err := readSource(path, stdin)
	if err != nil {
		printError(stderr, err)
		return 1
	}
	log.Infof("loaded %s (%s)", path, humanize.Bytes(uint64(len(source))))

	var input io.RuneReader
	if path != "-" {
		input = programInput(stdin)
	}

	interp := vm.New(cfg, vm.WithInput(input), vm.WithOutput(stdout))
	if _, err := interp.Run(source, vm.NewState()); err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}

// loadManifest finds tape.toml above the working directory, falling back
// to the defaults.
func loadManifest() (*manifest.Manifest, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return manifest.Default(), nil
	}
	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(), nil
	}
	log.Infof("using %s", m.Dir)
	return m, nil
}

// applyFlags lets explicitly set flags override the manifest.
func applyFlags(fs *flag.FlagSet, opts *options, cfg *vm.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "x":
			cfg.Syntax = compiler.SyntaxBase
			if opts.extended {
				cfg.Syntax = compiler.SyntaxExtended
			}
		case "unsafe":
			cfg.Mode = vm.ModeSafe
			if opts.unsafe {
				cfg.Mode = vm.ModeUnsafe
			}
		case "max-iter":
			cfg.MaxIterations = opts.maxIter
		case "trace":
			cfg.Trace = opts.trace
		}
	})
}

// readSource reads the program from path, or from stdin when path is "-".
func readSource(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", diag.File(path, err)
	}
	return string(data), nil
}

// programInput picks the reader for ',' and ';'. A terminal is read one
// keystroke at a time.
func programInput(stdin io.Reader) io.RuneReader {
	if f, ok := stdin.(*os.File); ok && isTerminal(f) {
		return newKeyReader(f, func() { util.Exit(130) })
	}
	return bufio.NewReader(stdin)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printError writes err to w, highlighted when w is a terminal. Errors from
// the interpreter name the -explain topic that covers them.
func printError(w io.Writer, err error) {
	out := termenv.NewOutput(w)
	label := out.String("error:").Foreground(out.Color("1")).Bold()
	fmt.Fprintf(w, "%s %v\n", label, err)

	if kind, ok := diag.KindOf(err); ok {
		hint := out.String(fmt.Sprintf("run 'tape -explain %s' for details", kind)).Faint()
		fmt.Fprintf(w, "%s\n", hint)
	}
}
