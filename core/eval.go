package forsp

import "fmt"

// Special-form atoms recognized by the driver.
const (
	QuoteAtom = "'"
	ReadAtom  = "^"
	BindAtom  = "$"
)

// DefaultMaxDepth bounds nested (non-tail) closure invocations.
const DefaultMaxDepth = 10000

// StepEvent is reported to OnStep before each term is driven.
type StepEvent struct {
	Term  Value
	Stack Stack
	Depth int
}

// Interpreter drives forsp programs. It is not safe for concurrent use.
type Interpreter struct {
	MaxDepth int // 0 disables the check
	MaxSteps int // per top-level call; 0 means unlimited
	OnStep   func(StepEvent)

	depth int
	steps int
}

func NewInterpreter() *Interpreter {
	return &Interpreter{MaxDepth: DefaultMaxDepth}
}

// Compute drives program to completion and returns the final stack. Any
// bindings made by $ during the pass are dropped when it returns.
func (in *Interpreter) Compute(stack Stack, program Value, env *Env) (Stack, error) {
	stack, _, err := in.Run(stack, program, env)
	return stack, err
}

// Run is Compute that also hands back the environment holding the $
// bindings made directly by program. Closure invocation never uses it; it
// exists for sessions that keep top-level bindings between inputs.
func (in *Interpreter) Run(stack Stack, program Value, env *Env) (Stack, *Env, error) {
	if in.depth == 0 {
		in.steps = 0
	}
	top := env
	tail := false
	for program.Kind != ValNil {
		if program.Kind != ValPair {
			return stack, top, malformed("program is an improper list ending in %s", program.KindName())
		}
		term, rest := program.Pair.Car, program.Pair.Cdr
		if err := in.tick(term, stack); err != nil {
			return stack, top, err
		}

		if term.Kind == ValAtom {
			switch term.Atom {
			case QuoteAtom:
				literal, next, err := operand(term.Atom, rest)
				if err != nil {
					return stack, top, err
				}
				stack = stack.Push(literal)
				program = next
				continue
			case ReadAtom:
				name, next, err := nameOperand(term.Atom, rest)
				if err != nil {
					return stack, top, err
				}
				v, err := env.Lookup(name)
				if err != nil {
					return stack, top, err
				}
				stack = stack.Push(v)
				program = next
				continue
			case BindAtom:
				name, next, err := nameOperand(term.Atom, rest)
				if err != nil {
					return stack, top, err
				}
				v, popped, err := stack.Pop()
				if err != nil {
					return stack, top, err
				}
				stack = popped
				env = env.Extend(name, v)
				if !tail {
					top = env
				}
				program = next
				continue
			}

			// Closure in tail position: the pass ends after this term, so
			// continue in its body instead of nesting another drive.
			if rest.Kind == ValNil {
				callable, err := env.Lookup(term.Atom)
				if err != nil {
					return stack, top, err
				}
				if callable.Kind == ValClosure {
					program, env = callable.Clos.Body, callable.Clos.Env
					tail = true
					continue
				}
				stack, err = in.apply(stack, callable, env)
				if err != nil {
					return stack, top, err
				}
				program = rest
				continue
			}
		}

		var err error
		stack, err = in.Eval(stack, term, env)
		if err != nil {
			return stack, top, err
		}
		program = rest
	}
	return stack, top, nil
}

// Eval resolves a single term against stack and env.
func (in *Interpreter) Eval(stack Stack, term Value, env *Env) (Stack, error) {
	switch term.Kind {
	case ValAtom:
		callable, err := env.Lookup(term.Atom)
		if err != nil {
			return stack, err
		}
		return in.apply(stack, callable, env)
	case ValNil, ValPair:
		return stack.Push(ClosureVal(term, env)), nil
	default:
		return stack.Push(term), nil
	}
}

func (in *Interpreter) apply(stack Stack, callable Value, env *Env) (Stack, error) {
	switch callable.Kind {
	case ValClosure:
		if in.MaxDepth > 0 && in.depth >= in.MaxDepth {
			return stack, fmt.Errorf("%w (limit %d)", ErrDepthExceeded, in.MaxDepth)
		}
		in.depth++
		defer func() { in.depth-- }()
		return in.Compute(stack, callable.Clos.Body, callable.Clos.Env)
	case ValPrim:
		return callable.Prim.Fn(stack, env)
	default:
		return stack.Push(callable), nil
	}
}

func (in *Interpreter) tick(term Value, stack Stack) error {
	in.steps++
	if in.MaxSteps > 0 && in.steps > in.MaxSteps {
		return fmt.Errorf("%w (limit %d)", ErrStepLimit, in.MaxSteps)
	}
	if in.OnStep != nil {
		in.OnStep(StepEvent{Term: term, Stack: stack, Depth: in.depth})
	}
	return nil
}

// Steps reports how many terms the last top-level call drove.
func (in *Interpreter) Steps() int { return in.steps }

// EvalString parses src as a program and computes it from an empty stack.
func (in *Interpreter) EvalString(src string, env *Env) (Stack, error) {
	program, err := ParseProgram(src)
	if err != nil {
		return Stack{}, err
	}
	return in.Compute(Stack{}, program, env)
}

func operand(form string, rest Value) (Value, Value, error) {
	if rest.Kind != ValPair {
		return Value{}, Value{}, malformed("%s expects an operand", form)
	}
	return rest.Pair.Car, rest.Pair.Cdr, nil
}

func nameOperand(form string, rest Value) (string, Value, error) {
	v, next, err := operand(form, rest)
	if err != nil {
		return "", Value{}, err
	}
	if v.Kind != ValAtom {
		return "", Value{}, malformed("%s expects an atom, got %s", form, v.KindName())
	}
	return v.Atom, next, nil
}
