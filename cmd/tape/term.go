package main

import (
	"errors"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/term"
)

// ctrlC is the byte a terminal in raw mode sends for ^C.
const ctrlC = 0x03

var errInterrupted = errors.New("interrupted")

// keyReader reads single keystrokes from a terminal. The terminal is only
// in raw mode for the duration of each read.
type keyReader struct {
	f           *os.File
	onInterrupt func()
}

func newKeyReader(f *os.File, onInterrupt func()) *keyReader {
	return &keyReader{f: f, onInterrupt: onInterrupt}
}

// ReadRune implements io.RuneReader.
func (k *keyReader) ReadRune() (rune, int, error) {
	fd := int(k.f.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return 0, 0, err
	}

	r, size, err := readKey(k.f)
	term.Restore(fd, state)

	if errors.Is(err, errInterrupted) && k.onInterrupt != nil {
		k.onInterrupt()
	}
	return r, size, err
}

// readKey reads one UTF-8 encoded character byte by byte.
func readKey(r io.Reader) (rune, int, error) {
	var buf [utf8.UTFMax]byte
	n := 0
	for n < len(buf) {
		if _, err := io.ReadFull(r, buf[n:n+1]); err != nil {
			return 0, 0, err
		}
		if n == 0 && buf[0] == ctrlC {
			return 0, 0, errInterrupted
		}
		n++
		if utf8.FullRune(buf[:n]) {
			break
		}
	}
	ch, size := utf8.DecodeRune(buf[:n])
	return ch, size, nil
}
