package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	forsp "github.com/rphilander/forsp/core"
)

const usage = `usage:
  forsp-cli                      read a JSON request from stdin
  forsp-cli eval SRC [INPUT]
  forsp-cli define NAME SRC
  forsp-cli delete NAME
  forsp-cli list
  forsp-cli step SRC [MAX_STEPS]
  forsp-cli traces [N]
  forsp-cli clear
  forsp-cli help                 print the core manual`

// requestFromArgs builds a core request from command-line arguments.
func requestFromArgs(args []string) (map[string]any, error) {
	op, rest := args[0], args[1:]
	want := func(min, max int) error {
		if len(rest) < min || len(rest) > max {
			return fmt.Errorf("%s: wrong number of arguments\n%s", op, usage)
		}
		return nil
	}

	msg := map[string]any{"op": op}
	switch op {
	case "help":
		msg["op"] = ""
	case "eval":
		if err := want(1, 2); err != nil {
			return nil, err
		}
		msg["src"] = rest[0]
		if len(rest) == 2 {
			msg["input"] = rest[1]
		}
	case "define":
		if err := want(2, 2); err != nil {
			return nil, err
		}
		msg["name"], msg["src"] = rest[0], rest[1]
	case "delete":
		if err := want(1, 1); err != nil {
			return nil, err
		}
		msg["name"] = rest[0]
	case "step":
		if err := want(1, 2); err != nil {
			return nil, err
		}
		msg["src"] = rest[0]
		if len(rest) == 2 {
			n, err := strconv.Atoi(rest[1])
			if err != nil {
				return nil, fmt.Errorf("step: max steps: %w", err)
			}
			msg["max_steps"] = n
		}
	case "traces":
		if err := want(0, 1); err != nil {
			return nil, err
		}
		if len(rest) == 1 {
			n, err := strconv.Atoi(rest[0])
			if err != nil {
				return nil, fmt.Errorf("traces: count: %w", err)
			}
			msg["n"] = n
		}
	case "list", "clear":
		if err := want(0, 0); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown command %q\n%s", op, usage)
	}
	return msg, nil
}

func readRequest() (map[string]any, error) {
	if len(os.Args) > 1 {
		return requestFromArgs(os.Args[1:])
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	return msg, nil
}

func main() {
	sockPath := os.Getenv("FORSP_SOCK")
	if sockPath == "" {
		sockPath = "/tmp/forsp.sock"
	}

	msg, err := readRequest()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if _, ok := msg["id"]; !ok {
		msg["id"] = forsp.NextID()
	}

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := forsp.WriteMsg(conn, msg); err != nil {
		fmt.Fprintf(os.Stderr, "send: %v\n", err)
		os.Exit(1)
	}
	resp, err := forsp.ReadMsg(conn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "receive: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "format response: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
	if ok, _ := resp["ok"].(bool); !ok {
		os.Exit(1)
	}
}
