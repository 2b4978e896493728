package forsp

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

type ValueKind int

// Kind numbers are observable through the tag primitive.
const (
	ValNil ValueKind = iota
	ValAtom
	ValNum
	ValPair
	ValClosure
	ValPrim
)

// Pair is an immutable cons cell.
type Pair struct {
	Car Value
	Cdr Value
}

// Closure is a body program together with the environment active when the
// body was encountered in evaluation position.
type Closure struct {
	Body Value
	Env  *Env
}

// PrimFunc is a native operation. The environment is the caller's and is
// read-only; primitives report their own failures.
type PrimFunc func(stack Stack, env *Env) (Stack, error)

type Primitive struct {
	Name string
	Fn   PrimFunc
}

// Value is a tagged forsp value. The zero Value is nil.
type Value struct {
	Kind ValueKind
	Atom string
	Num  int64
	Pair *Pair
	Clos *Closure
	Prim *Primitive
}

var Nil = Value{}

var atoms sync.Map

// Intern returns the atom with the given name. Atoms with the same name
// share their backing string.
func Intern(name string) Value {
	s, _ := atoms.LoadOrStore(name, name)
	return Value{Kind: ValAtom, Atom: s.(string)}
}

func NumVal(n int64) Value { return Value{Kind: ValNum, Num: n} }

func Cons(car, cdr Value) Value {
	return Value{Kind: ValPair, Pair: &Pair{Car: car, Cdr: cdr}}
}

func ClosureVal(body Value, env *Env) Value {
	return Value{Kind: ValClosure, Clos: &Closure{Body: body, Env: env}}
}

func PrimVal(name string, fn PrimFunc) Value {
	return Value{Kind: ValPrim, Prim: &Primitive{Name: name, Fn: fn}}
}

// List builds a proper list from elems.
func List(elems ...Value) Value {
	l := Nil
	for i := len(elems) - 1; i >= 0; i-- {
		l = Cons(elems[i], l)
	}
	return l
}

// ListToSlice returns the elements of a proper list.
func ListToSlice(l Value) ([]Value, error) {
	var out []Value
	for l.Kind == ValPair {
		out = append(out, l.Pair.Car)
		l = l.Pair.Cdr
	}
	if l.Kind != ValNil {
		return nil, fmt.Errorf("improper list ending in %s", l.KindName())
	}
	return out, nil
}

func Car(v Value) (Value, error) {
	if v.Kind != ValPair {
		return Value{}, fmt.Errorf("expected pair, got %s", v.KindName())
	}
	return v.Pair.Car, nil
}

func Cdr(v Value) (Value, error) {
	if v.Kind != ValPair {
		return Value{}, fmt.Errorf("expected pair, got %s", v.KindName())
	}
	return v.Pair.Cdr, nil
}

func (v Value) IsNil() bool { return v.Kind == ValNil }

// IsAtom reports whether v is the atom called name.
func (v Value) IsAtom(name string) bool {
	return v.Kind == ValAtom && v.Atom == name
}

// Equal is the identity comparison used by eq: atoms by name, numbers by
// value, everything structural by reference.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ValNil:
		return true
	case ValAtom:
		return a.Atom == b.Atom
	case ValNum:
		return a.Num == b.Num
	case ValPair:
		return a.Pair == b.Pair
	case ValClosure:
		return a.Clos == b.Clos
	case ValPrim:
		return a.Prim == b.Prim
	}
	return false
}

// DeepEqual compares lists structurally and falls back to Equal for
// everything else.
func DeepEqual(a, b Value) bool {
	for a.Kind == ValPair && b.Kind == ValPair {
		if !DeepEqual(a.Pair.Car, b.Pair.Car) {
			return false
		}
		a, b = a.Pair.Cdr, b.Pair.Cdr
	}
	return Equal(a, b)
}

func (v Value) String() string {
	var sb strings.Builder
	writeValue(&sb, v)
	return sb.String()
}

func writeValue(sb *strings.Builder, v Value) {
	switch v.Kind {
	case ValNil:
		sb.WriteString("()")
	case ValAtom:
		sb.WriteString(v.Atom)
	case ValNum:
		sb.WriteString(strconv.FormatInt(v.Num, 10))
	case ValPair:
		sb.WriteByte('(')
		writeValue(sb, v.Pair.Car)
		tail := v.Pair.Cdr
		for tail.Kind == ValPair {
			sb.WriteByte(' ')
			writeValue(sb, tail.Pair.Car)
			tail = tail.Pair.Cdr
		}
		if tail.Kind != ValNil {
			sb.WriteString(" . ")
			writeValue(sb, tail)
		}
		sb.WriteByte(')')
	case ValClosure:
		sb.WriteString("CLOSURE<")
		writeValue(sb, v.Clos.Body)
		sb.WriteByte('>')
	case ValPrim:
		sb.WriteString("PRIM<")
		sb.WriteString(v.Prim.Name)
		sb.WriteByte('>')
	default:
		fmt.Fprintf(sb, "<unknown:%d>", v.Kind)
	}
}

func (v Value) KindName() string {
	switch v.Kind {
	case ValNil:
		return "nil"
	case ValAtom:
		return "atom"
	case ValNum:
		return "num"
	case ValPair:
		return "pair"
	case ValClosure:
		return "closure"
	case ValPrim:
		return "primitive"
	default:
		return "unknown"
	}
}

// ValueToGo converts a forsp Value to a native Go value for JSON
// serialization. Proper lists become arrays; closures, primitives and
// improper lists are rendered with the printer.
func ValueToGo(v Value) any {
	switch v.Kind {
	case ValNil:
		return []any{}
	case ValAtom:
		return v.Atom
	case ValNum:
		return v.Num
	case ValPair:
		elems, err := ListToSlice(v)
		if err != nil {
			return v.String()
		}
		arr := make([]any, len(elems))
		for i, e := range elems {
			arr[i] = ValueToGo(e)
		}
		return arr
	default:
		return v.String()
	}
}
