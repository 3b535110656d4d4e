// Command ptdump prints the tokens of a plain-text packed buffer.
//
//	ptdump -file call.bin
//	ptdump < call.bin
//	ptdump -i
//
// In interactive mode every entered line is dumped as one buffer.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/liangmanlin/readline"

	"github.com/liangmanlin/nanorpc/args"
	"github.com/liangmanlin/nanorpc/logger"
	"github.com/liangmanlin/nanorpc/packer"
)

type env struct {
	File        string `command:"file"`
	Interactive bool   `command:"i"`
	Quiet       bool   `command:"q"`
}

func main() {
	e := &env{}
	args.FillEnv(e)
	// stdout carries the dump
	logger.Touch(os.Stderr)
	args.FillEnv(logger.Env)
	logger.Reload()
	defer logger.Sync()

	if e.Interactive {
		if err := shell(os.Stdout); err != nil {
			logger.ErrorLog("shell:%s", err)
			os.Exit(1)
		}
		return
	}
	var r io.Reader = os.Stdin
	if e.File != "" {
		f, err := os.Open(e.File)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}
	buf, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	n := dump(os.Stdout, buf, e.Quiet)
	fmt.Fprintf(os.Stdout, "%d tokens, %d bytes\n", n, len(buf))
}

// dump writes one "index offset token" line per token and returns the
// token count.
func dump(w io.Writer, buf []byte, quiet bool) int {
	s := packer.NewScanner(buf)
	n := 0
	for {
		tok, ok := s.Next()
		if !ok {
			return n
		}
		if !quiet {
			fmt.Fprintf(w, "%5d %7d  %s\n", n, tok.Offset, tok.Text)
		}
		n++
	}
}

func shell(w io.Writer) error {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            "ptdump\033[31m>\033[0m ",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		FuncFilterInputRune: func(r rune) (rune, bool) {
			// block CtrlZ feature
			if r == readline.CharCtrlZ {
				return r, false
			}
			return r, true
		},
	})
	if err != nil {
		return err
	}
	defer l.Close()
	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				return nil
			}
			continue
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := dump(w, []byte(line), false)
		fmt.Fprintf(w, "%d tokens\n", n)
	}
}
