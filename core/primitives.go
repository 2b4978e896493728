package forsp

import (
	"errors"
	"fmt"
	"io"
	"sort"
)

// Console is where the read and print primitives get and put objects.
// Fields may be swapped between evaluations.
type Console struct {
	In  *Reader
	Out io.Writer
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{Out: out}
	if in != nil {
		c.In = NewReader(in)
	}
	return c
}

// TrueAtom is what eq pushes for equal operands and what cswap tests for.
const TrueAtom = "t"

// Primitives returns the native operation table. read and print go
// through c.
func Primitives(c *Console) map[string]PrimFunc {
	return map[string]PrimFunc{
		// core
		"push":  primPush,
		"cons":  primCons,
		"car":   primCar,
		"cdr":   primCdr,
		"eq":    primEq,
		"cswap": primCswap,
		"tag":   primTag,
		"read":  c.primRead,
		"print": c.primPrint,

		// extra
		"stack": primStack,
		"env":   primEnv,
		"+":     arith("+", func(a, b int64) (int64, error) { return a + b, nil }),
		"-":     arith("-", func(a, b int64) (int64, error) { return a - b, nil }),
		"*":     arith("*", func(a, b int64) (int64, error) { return a * b, nil }),
		"/":     arith("/", divide),
		"%":     arith("%", modulo),
		"nand":  arith("nand", func(a, b int64) (int64, error) { return ^(a & b), nil }),
		"<<":    arith("<<", shiftLeft),
		">>":    arith(">>", shiftRight),
	}
}

// BaseEnv binds every primitive in table, in name order.
func BaseEnv(table map[string]PrimFunc) *Env {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	var env *Env
	for _, name := range names {
		env = env.Extend(name, PrimVal(name, table[name]))
	}
	return env
}

func pop(name string, s Stack) (Value, Stack, error) {
	v, rest, err := s.Pop()
	if err != nil {
		return Value{}, s, &PrimitiveError{Name: name, Err: err}
	}
	return v, rest, nil
}

func popNum(name string, s Stack) (int64, Stack, error) {
	v, rest, err := pop(name, s)
	if err != nil {
		return 0, s, err
	}
	if v.Kind != ValNum {
		return 0, s, primErrorf(name, "expected num, got %s", v.KindName())
	}
	return v.Num, rest, nil
}

func boolVal(b bool) Value {
	if b {
		return Intern(TrueAtom)
	}
	return Nil
}

// push: name -- value
func primPush(s Stack, env *Env) (Stack, error) {
	name, s, err := pop("push", s)
	if err != nil {
		return s, err
	}
	if name.Kind != ValAtom {
		return s, primErrorf("push", "expected atom, got %s", name.KindName())
	}
	v, err := env.Lookup(name.Atom)
	if err != nil {
		return s, err
	}
	return s.Push(v), nil
}

// cons: cdr car -- (car . cdr)
func primCons(s Stack, _ *Env) (Stack, error) {
	a, s, err := pop("cons", s)
	if err != nil {
		return s, err
	}
	b, s, err := pop("cons", s)
	if err != nil {
		return s, err
	}
	return s.Push(Cons(a, b)), nil
}

func primCar(s Stack, _ *Env) (Stack, error) {
	v, s, err := pop("car", s)
	if err != nil {
		return s, err
	}
	car, err := Car(v)
	if err != nil {
		return s, &PrimitiveError{Name: "car", Err: err}
	}
	return s.Push(car), nil
}

func primCdr(s Stack, _ *Env) (Stack, error) {
	v, s, err := pop("cdr", s)
	if err != nil {
		return s, err
	}
	cdr, err := Cdr(v)
	if err != nil {
		return s, &PrimitiveError{Name: "cdr", Err: err}
	}
	return s.Push(cdr), nil
}

func primEq(s Stack, _ *Env) (Stack, error) {
	a, s, err := pop("eq", s)
	if err != nil {
		return s, err
	}
	b, s, err := pop("eq", s)
	if err != nil {
		return s, err
	}
	return s.Push(boolVal(Equal(a, b))), nil
}

// cswap: b a cond -- b a, or a b when cond is t
func primCswap(s Stack, _ *Env) (Stack, error) {
	cond, s, err := pop("cswap", s)
	if err != nil {
		return s, err
	}
	if !cond.IsAtom(TrueAtom) {
		return s, nil
	}
	a, s, err := pop("cswap", s)
	if err != nil {
		return s, err
	}
	b, s, err := pop("cswap", s)
	if err != nil {
		return s, err
	}
	return s.Push(a).Push(b), nil
}

func primTag(s Stack, _ *Env) (Stack, error) {
	v, s, err := pop("tag", s)
	if err != nil {
		return s, err
	}
	return s.Push(NumVal(int64(v.Kind))), nil
}

func (c *Console) primRead(s Stack, _ *Env) (Stack, error) {
	if c.In == nil {
		return s, primErrorf("read", "no input")
	}
	v, err := c.In.Read()
	if errors.Is(err, io.EOF) {
		return s, primErrorf("read", "end of input")
	}
	if err != nil {
		return s, &PrimitiveError{Name: "read", Err: err}
	}
	return s.Push(v), nil
}

func (c *Console) primPrint(s Stack, _ *Env) (Stack, error) {
	v, s, err := pop("print", s)
	if err != nil {
		return s, err
	}
	if c.Out == nil {
		return s, nil
	}
	if _, err := fmt.Fprintln(c.Out, v.String()); err != nil {
		return s, &PrimitiveError{Name: "print", Err: err}
	}
	return s, nil
}

func primStack(s Stack, _ *Env) (Stack, error) {
	return s.Push(s.ToValue()), nil
}

func primEnv(s Stack, env *Env) (Stack, error) {
	return s.Push(env.ToValue()), nil
}

// arith builds a binary operation that pops b, then a, and pushes a op b.
func arith(name string, op func(a, b int64) (int64, error)) PrimFunc {
	return func(s Stack, _ *Env) (Stack, error) {
		b, s, err := popNum(name, s)
		if err != nil {
			return s, err
		}
		a, s, err := popNum(name, s)
		if err != nil {
			return s, err
		}
		r, err := op(a, b)
		if err != nil {
			return s, &PrimitiveError{Name: name, Err: err}
		}
		return s.Push(NumVal(r)), nil
	}
}

var errDivideByZero = errors.New("division by zero")

func divide(a, b int64) (int64, error) {
	if b == 0 {
		return 0, errDivideByZero
	}
	return a / b, nil
}

func modulo(a, b int64) (int64, error) {
	if b == 0 {
		return 0, errDivideByZero
	}
	return a % b, nil
}

func shiftLeft(a, b int64) (int64, error) {
	if b < 0 {
		return 0, fmt.Errorf("negative shift count %d", b)
	}
	return a << uint64(b), nil
}

func shiftRight(a, b int64) (int64, error) {
	if b < 0 {
		return 0, fmt.Errorf("negative shift count %d", b)
	}
	return a >> uint64(b), nil
}
