package forsp

import (
	"fmt"
	"io"
)

type definition struct {
	name   string
	source string
	value  Value
}

// Session is a long-lived top-level environment: the primitive table plus
// named definitions, optionally persisted to a Store and replayed on open.
type Session struct {
	Console *Console

	interp *Interpreter
	prims  map[string]PrimFunc
	base   *Env
	defs   []definition
	env    *Env

	// REPL state for Exec.
	work    Stack
	workEnv *Env

	store *Store
}

// NewSession builds the base environment and replays the store's log.
// store may be nil for an in-memory session.
func NewSession(interp *Interpreter, console *Console, store *Store) (*Session, error) {
	if console == nil {
		console = NewConsole(nil, io.Discard)
	}
	s := &Session{
		Console: console,
		interp:  interp,
		prims:   Primitives(console),
		store:   store,
	}
	s.base = BaseEnv(s.prims)
	s.env = s.base
	s.workEnv = s.base

	if store != nil {
		if err := s.replay(); err != nil {
			return nil, fmt.Errorf("replay session: %w", err)
		}
	}
	return s, nil
}

func (s *Session) Interpreter() *Interpreter { return s.interp }

// Env returns the top-level environment definitions are bound in.
func (s *Session) Env() *Env { return s.env }

// Define computes src from an empty stack in the session environment and
// binds the value left on top of the stack to name.
func (s *Session) Define(name, src string) (Value, error) {
	v, err := s.define(name, src)
	if err != nil {
		return Value{}, err
	}
	if s.store != nil {
		if err := s.store.AppendEntry(OpDefine, name, src); err != nil {
			return Value{}, fmt.Errorf("write log: %w", err)
		}
	}
	return v, nil
}

func (s *Session) define(name, src string) (Value, error) {
	if err := checkName(name); err != nil {
		return Value{}, fmt.Errorf("define: %w", err)
	}
	if _, ok := s.prims[name]; ok {
		return Value{}, fmt.Errorf("define: cannot redefine primitive: %s", name)
	}
	program, err := ParseProgram(src)
	if err != nil {
		return Value{}, fmt.Errorf("parse error: %w", err)
	}
	stack, err := s.interp.Compute(Stack{}, program, s.env)
	if err != nil {
		return Value{}, fmt.Errorf("define %s: %w", name, err)
	}
	v, ok := stack.Peek()
	if !ok {
		return Value{}, fmt.Errorf("define %s: program left an empty stack", name)
	}

	s.removeDef(name)
	s.defs = append(s.defs, definition{name: name, source: src, value: v})
	s.env = s.env.Extend(name, v)
	s.workEnv = s.workEnv.Extend(name, v)
	return v, nil
}

// Delete removes a definition. Closures that already captured it keep
// their binding. REPL bindings made with Exec are reset.
func (s *Session) Delete(name string) error {
	if err := s.delete(name); err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.AppendEntry(OpDelete, name, ""); err != nil {
			return fmt.Errorf("write log: %w", err)
		}
	}
	return nil
}

func (s *Session) delete(name string) error {
	if !s.removeDef(name) {
		return fmt.Errorf("undefined name: %s", name)
	}
	s.rebuild()
	return nil
}

func (s *Session) removeDef(name string) bool {
	for i, d := range s.defs {
		if d.name == name {
			s.defs = append(s.defs[:i], s.defs[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Session) rebuild() {
	env := s.base
	for _, d := range s.defs {
		env = env.Extend(d.name, d.value)
	}
	s.env = env
	s.workEnv = env
}

// Eval computes src from an empty stack. Bindings made with $ do not
// outlive the call.
func (s *Session) Eval(src string) (Stack, error) {
	program, err := ParseProgram(src)
	if err != nil {
		return Stack{}, fmt.Errorf("parse error: %w", err)
	}
	return s.interp.Compute(Stack{}, program, s.env)
}

// Step prepares a Stepper for src over the session environment.
func (s *Session) Step(src string) (*Stepper, error) {
	program, err := ParseProgram(src)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	st := NewStepper(Stack{}, program, s.env)
	st.MaxDepth = s.interp.MaxDepth
	return st, nil
}

// Exec drives src against the session's working stack and keeps both the
// resulting stack and any top-level $ bindings. On error the working
// state is left as it was.
func (s *Session) Exec(src string) (Stack, error) {
	program, err := ParseProgram(src)
	if err != nil {
		return s.work, fmt.Errorf("parse error: %w", err)
	}
	stack, env, err := s.interp.Run(s.work, program, s.workEnv)
	if err != nil {
		return s.work, err
	}
	s.work, s.workEnv = stack, env
	return stack, nil
}

// WorkStack returns the stack Exec operates on.
func (s *Session) WorkStack() Stack { return s.work }

// WorkEnv returns the environment Exec operates on.
func (s *Session) WorkEnv() *Env { return s.workEnv }

// Reset clears the working stack and REPL bindings, keeping definitions.
func (s *Session) Reset() {
	s.work = Stack{}
	s.workEnv = s.env
}

// Names returns the defined names in definition order.
func (s *Session) Names() []string {
	names := make([]string, len(s.defs))
	for i, d := range s.defs {
		names[i] = d.name
	}
	return names
}

// Source returns the program a name was defined with.
func (s *Session) Source(name string) (string, bool) {
	for _, d := range s.defs {
		if d.name == name {
			return d.source, true
		}
	}
	return "", false
}

// Clear drops every definition and truncates the store.
func (s *Session) Clear() error {
	s.defs = nil
	s.rebuild()
	s.work = Stack{}
	if s.store != nil {
		return s.store.Clear()
	}
	return nil
}

func (s *Session) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func (s *Session) replay() error {
	entries, err := s.store.Entries()
	if err != nil {
		return err
	}
	for _, e := range entries {
		switch e.Op {
		case OpDefine:
			if _, err := s.define(e.Name, e.Source); err != nil {
				return fmt.Errorf("replaying entry %d: %w", e.Seq, err)
			}
		case OpDelete:
			if err := s.delete(e.Name); err != nil {
				return fmt.Errorf("replaying entry %d: %w", e.Seq, err)
			}
		default:
			return fmt.Errorf("replaying entry %d: unknown op %q", e.Seq, e.Op)
		}
	}
	return nil
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	switch name {
	case QuoteAtom, ReadAtom, BindAtom:
		return fmt.Errorf("cannot bind special form %s", name)
	}
	v, err := Parse(name)
	if err != nil || v.Kind != ValAtom || v.Atom != name {
		return fmt.Errorf("invalid name: %q", name)
	}
	return nil
}
