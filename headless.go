package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"spiritbox/mode"
)

// lineReader yields one trimmed command per call and io.EOF at the end.
type lineReader interface {
	ReadLine() (string, error)
	Close() error
}

type scannerReader struct{ s *bufio.Scanner }

func (r scannerReader) ReadLine() (string, error) {
	if !r.s.Scan() {
		if err := r.s.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.s.Text(), nil
}

func (scannerReader) Close() error { return nil }

type readlineReader struct{ rl *readline.Instance }

func (r readlineReader) ReadLine() (string, error) {
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", io.EOF
	}
	return line, err
}

func (r readlineReader) Close() error { return r.rl.Close() }

// newLineReader uses readline with history on an interactive terminal and a
// plain scanner for pipes, which is how the integration tests drive it.
func newLineReader(in io.Reader) lineReader {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          "spiritbox> ",
			InterruptPrompt: "^C",
			EOFPrompt:       "quit",
			Stdin:           f,
		})
		if err == nil {
			return readlineReader{rl}
		}
	}
	return scannerReader{bufio.NewScanner(in)}
}

// runConsole drives the box from line commands until quit or end of input:
//
//	energy | dictionary | proximity | 1 | 2 | 3   switch mode
//	wait                                          block until the switch has entered
//	sleep MS                                      pause
//	stats                                         print controller counters
//	word                                          print the word on display
//	quit
func runConsole(ctx context.Context, b *box, in io.Reader, out io.Writer) {
	lr := newLineReader(in)
	defer lr.Close()

	for {
		if ctx.Err() != nil {
			return
		}
		line, err := lr.ReadLine()
		if err != nil {
			return
		}
		fields := strings.Fields(strings.ToLower(line))
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch cmd := fields[0]; cmd {
		case "quit", "exit":
			return
		case "wait":
			b.sw.wait()
		case "sleep":
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: sleep MS")
				continue
			}
			ms, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Fprintf(out, "sleep: %v\n", err)
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(ms) * time.Millisecond):
			}
		case "stats":
			fmt.Fprintln(out, statsLine(b.ctrl.Stats(), b.presenter.Shown()))
		case "word":
			fmt.Fprintf(out, "current: %s\n", b.presenter.Word())
		default:
			m, err := mode.ParseMode(cmd)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			b.sw.request(ctx, m)
		}
	}
}

func statsLine(s mode.Stats, shown int) string {
	return fmt.Sprintf("stats mode=%s loops=%d timers=%d acquired=%t subscribed=%t words=%d",
		s.Mode, s.RenderLoops, s.WordTimers, s.Acquired, s.Subscribed, shown)
}
