package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	forsp "github.com/rphilander/forsp/core"
)

const (
	historyFile = ".forsp_history"
	prompt      = "forsp> "
)

func main() {
	traceFlag := flag.Bool("trace", false, "print every term to stderr as it is driven")
	maxDepth := flag.Int("max-depth", forsp.DefaultMaxDepth, "maximum nested closure calls")
	maxSteps := flag.Int("max-steps", 0, "maximum terms to drive (0 is unlimited)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: forsp-run [flags] [file]\n\nWithout a file, starts a REPL.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	interp := forsp.NewInterpreter()
	interp.MaxDepth = *maxDepth
	interp.MaxSteps = *maxSteps
	if *traceFlag {
		interp.OnStep = func(ev forsp.StepEvent) {
			fmt.Fprintf(os.Stderr, "%*s%s  [%s]\n", 2*ev.Depth, "", ev.Term, strings.Join(ev.Stack.Strings(), " "))
		}
	}

	switch flag.NArg() {
	case 0:
		os.Exit(repl(interp))
	case 1:
		os.Exit(runFile(interp, flag.Arg(0)))
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// runFile computes the first object in path as the program. Whatever
// follows it in the file is the input read consumes.
func runFile(interp *forsp.Interpreter, path string) int {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "forsp-run: %v\n", err)
		return 1
	}
	defer f.Close()

	in := forsp.NewReader(f)
	program, err := in.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("%s: no program", path)
		}
		fmt.Fprintf(os.Stderr, "forsp-run: %v\n", err)
		return 1
	}

	console := &forsp.Console{In: in, Out: os.Stdout}
	session, err := forsp.NewSession(interp, console, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "forsp-run: %v\n", err)
		return 1
	}
	if _, err := interp.Compute(forsp.Stack{}, program, session.Env()); err != nil {
		fmt.Fprintf(os.Stderr, "forsp-run: %v\n", err)
		return 1
	}
	return 0
}

func repl(interp *forsp.Interpreter) int {
	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	session, err := forsp.NewSession(interp, forsp.NewConsole(os.Stdin, os.Stdout), nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fmt.Println("forsp. :quit to exit, :stack, :env, :reset")
	for {
		line, err := ln.Prompt(prompt)
		if err != nil {
			if err != io.EOF && err != liner.ErrPromptAborted {
				fmt.Fprintln(os.Stderr, err)
			}
			fmt.Println()
			return 0
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)

		if strings.HasPrefix(line, ":") {
			if quit := replCommand(session, line); quit {
				return 0
			}
			continue
		}

		stack, err := session.Exec(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		printStack(stack)
	}
}

func replCommand(session *forsp.Session, line string) (quit bool) {
	switch strings.ToLower(line) {
	case ":quit", ":q":
		return true
	case ":stack":
		printStack(session.WorkStack())
	case ":env":
		names := session.WorkEnv().Names()
		for _, name := range names {
			v, _ := session.WorkEnv().Lookup(name)
			if v.Kind == forsp.ValPrim {
				continue
			}
			fmt.Printf("%s = %s\n", name, v)
		}
	case ":reset":
		session.Reset()
	default:
		fmt.Println("unknown command. Try :quit, :stack, :env, :reset")
	}
	return false
}

func printStack(s forsp.Stack) {
	fmt.Printf("[%s]\n", strings.Join(s.Strings(), " "))
}
