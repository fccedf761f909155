package main

import (
	"sort"
	"strings"
)

var topics = map[string]string{
	"general": `A tape program is a string of characters. Eight of them are instructions;
everything else is ignored, so programs may contain comments freely.

The machine has a tape of 65536 byte cells, all zero at the start, and a
data pointer at cell 0.

  >  move the pointer one cell right
  <  move the pointer one cell left
  +  add one to the current cell
  -  subtract one from the current cell
  .  write the current cell as a byte
  ,  read one character into the current cell
  [  if the current cell is zero, jump past the matching ]
  ]  if the current cell is not zero, jump back to the matching [

With -x two more instructions are available:

  :  write the current cell as a decimal number
  ;  read one character and add it to the current cell

Error kinds: overflow, underflow, syntax, file, parsing, iteration.
Run 'tape -explain KIND' for any of them.`,

	"overflow": `An overflow error means something went above its range. Either the data
pointer moved right from the last cell (65535), or a cell was incremented
past 255. In extended syntax, ';' can also push a cell past 255.

Pass -unsafe to wrap around instead of failing.`,

	"underflow": `An underflow error means something went below its range. Either the data
pointer moved left from cell 0, or a cell was decremented below 0.

Pass -unsafe to wrap around instead of failing.`,

	"syntax": `A syntax error means the brackets do not pair up. Every '[' needs a ']'
after it, and every ']' needs a '[' before it. The program is checked before
anything runs, so nothing is written when this error is reported.

For an unclosed '[' the location points at the last '[' in the program,
which may not be the one missing its partner.`,

	"file": `A file error means the program could not be read. Check that the path
exists and that you have permission to read it. Use '-' to read the program
from standard input.`,

	"parsing": `A parsing error means a byte in the program is not valid UTF-8, so the
character at that position could not be decoded. Save the file as UTF-8.`,

	"iteration": `An iteration error means one loop jumped back more times than allowed
(65535 by default). This usually means the loop never ends. Raise the limit
with -max-iter N, or pass a negative value to remove it.`,

	"info": `tape is an interpreter for the eight-instruction tape language introduced
by Urban Müller in 1993, with optional decimal output and additive input.`,
}

// explain returns the help text for topic.
func explain(topic string) (string, bool) {
	text, ok := topics[strings.ToLower(strings.TrimSpace(topic))]
	return text, ok
}

func topicList() string {
	names := make([]string, 0, len(topics))
	for name := range topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
