package forsp

import "fmt"

// frame is one pending program and the environment it runs in.
type frame struct {
	program Value
	env     *Env
}

// Stepper drives a program one term at a time. Closure invocations push
// explicit frames instead of recursing, so a paused computation is just
// its frame list and stack.
type Stepper struct {
	MaxDepth int // 0 disables the check

	frames []frame
	stack  Stack
	steps  int
	err    error
}

func NewStepper(stack Stack, program Value, env *Env) *Stepper {
	s := &Stepper{
		MaxDepth: DefaultMaxDepth,
		frames:   []frame{{program: program, env: env}},
		stack:    stack,
	}
	s.unwind()
	return s
}

// Done reports whether the program finished or failed.
func (s *Stepper) Done() bool { return len(s.frames) == 0 || s.err != nil }

func (s *Stepper) Err() error { return s.err }

func (s *Stepper) Stack() Stack { return s.stack }

func (s *Stepper) Steps() int { return s.steps }

func (s *Stepper) Depth() int { return len(s.frames) }

// Next returns the term the next Step will drive, if any.
func (s *Stepper) Next() (Value, bool) {
	if s.Done() {
		return Value{}, false
	}
	p := s.frames[len(s.frames)-1].program
	if p.Kind != ValPair {
		return Value{}, false
	}
	return p.Pair.Car, true
}

// Step drives a single term. A special form counts as one step together
// with its operand.
func (s *Stepper) Step() error {
	if s.Done() {
		return s.err
	}
	if err := s.step(); err != nil {
		s.err = err
		return err
	}
	s.unwind()
	return nil
}

// Run steps until the program finishes, fails, or maxSteps steps have
// been taken (0 means no limit). It reports whether the program finished.
func (s *Stepper) Run(maxSteps int) (bool, error) {
	for n := 0; !s.Done(); n++ {
		if maxSteps > 0 && n >= maxSteps {
			return false, nil
		}
		if err := s.Step(); err != nil {
			return false, err
		}
	}
	return s.err == nil, s.err
}

func (s *Stepper) step() error {
	f := &s.frames[len(s.frames)-1]
	if f.program.Kind != ValPair {
		return malformed("program is an improper list ending in %s", f.program.KindName())
	}
	term, rest := f.program.Pair.Car, f.program.Pair.Cdr
	s.steps++

	if term.Kind == ValAtom {
		switch term.Atom {
		case QuoteAtom:
			literal, next, err := operand(term.Atom, rest)
			if err != nil {
				return err
			}
			s.stack = s.stack.Push(literal)
			f.program = next
			return nil
		case ReadAtom:
			name, next, err := nameOperand(term.Atom, rest)
			if err != nil {
				return err
			}
			v, err := f.env.Lookup(name)
			if err != nil {
				return err
			}
			s.stack = s.stack.Push(v)
			f.program = next
			return nil
		case BindAtom:
			name, next, err := nameOperand(term.Atom, rest)
			if err != nil {
				return err
			}
			v, popped, err := s.stack.Pop()
			if err != nil {
				return err
			}
			s.stack = popped
			f.env = f.env.Extend(name, v)
			f.program = next
			return nil
		}
	}

	f.program = rest
	switch term.Kind {
	case ValAtom:
		callable, err := f.env.Lookup(term.Atom)
		if err != nil {
			return err
		}
		switch callable.Kind {
		case ValClosure:
			next := frame{program: callable.Clos.Body, env: callable.Clos.Env}
			if rest.Kind == ValNil {
				*f = next
				return nil
			}
			if s.MaxDepth > 0 && len(s.frames) > s.MaxDepth {
				return fmt.Errorf("%w (limit %d)", ErrDepthExceeded, s.MaxDepth)
			}
			s.frames = append(s.frames, next)
		case ValPrim:
			out, err := callable.Prim.Fn(s.stack, f.env)
			if err != nil {
				return err
			}
			s.stack = out
		default:
			s.stack = s.stack.Push(callable)
		}
	case ValNil, ValPair:
		s.stack = s.stack.Push(ClosureVal(term, f.env))
	default:
		s.stack = s.stack.Push(term)
	}
	return nil
}

// unwind drops frames whose programs are exhausted.
func (s *Stepper) unwind() {
	for len(s.frames) > 0 && s.frames[len(s.frames)-1].program.Kind == ValNil {
		s.frames[len(s.frames)-1] = frame{}
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// StepRecord is one entry of a stepped execution, as returned by TraceSteps.
type StepRecord struct {
	Term  string
	Stack []string
	Depth int
}

// TraceSteps runs the stepper for up to maxSteps steps, recording the term
// about to run and the stack it sees at each step.
func (s *Stepper) TraceSteps(maxSteps int) ([]StepRecord, error) {
	var records []StepRecord
	for !s.Done() && (maxSteps <= 0 || len(records) < maxSteps) {
		term, _ := s.Next()
		records = append(records, StepRecord{
			Term:  term.String(),
			Stack: s.stack.Strings(),
			Depth: s.Depth(),
		})
		if err := s.Step(); err != nil {
			return records, err
		}
	}
	return records, nil
}
