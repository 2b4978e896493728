package forsp

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func testEnv() *Env {
	return BaseEnv(Primitives(NewConsole(nil, io.Discard)))
}

func testCompute(t *testing.T, in *Interpreter, src string) (Stack, error) {
	t.Helper()
	program, err := ParseProgram(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return in.Compute(Stack{}, program, testEnv())
}

// testEval checks the final stack of src, listed top first.
func testEval(t *testing.T, src string, want ...string) {
	t.Helper()
	stack, err := testCompute(t, NewInterpreter(), src)
	if err != nil {
		t.Fatalf("eval %q: %v", src, err)
	}
	got := stack.Strings()
	if strings.Join(got, " | ") != strings.Join(want, " | ") {
		t.Fatalf("eval %q: expected stack %q, got %q", src, want, got)
	}
}

func testEvalError(t *testing.T, src string, target error) {
	t.Helper()
	_, err := testCompute(t, NewInterpreter(), src)
	if err == nil {
		t.Fatalf("expected error for %q", src)
	}
	if target != nil && !errors.Is(err, target) {
		t.Fatalf("eval %q: expected %v, got %v", src, target, err)
	}
}

// --- Literals and quote ---

func TestEvalNumbers(t *testing.T) {
	testEval(t, "1 2 3", "3", "2", "1")
	testEval(t, "-4", "-4")
	testEval(t, "")
}

func TestEvalQuote(t *testing.T) {
	testEval(t, "' foo", "foo")
	testEval(t, "'foo", "foo")
	testEval(t, "'(1 2 (3))", "(1 2 (3))")
	testEval(t, "' ()", "()")
	testEval(t, "' ^", "^")
	testEval(t, "' car", "car")
}

// --- Bind and read ---

func TestEvalBindRead(t *testing.T) {
	testEval(t, "5 $x ^x ^x", "5", "5")
	testEval(t, "'a $x 'b $y ^x ^y", "b", "a")
}

func TestEvalShadowing(t *testing.T) {
	testEval(t, "1 $x 2 $x ^x", "2")
}

func TestEvalNonCallableLoad(t *testing.T) {
	// Calling a name bound to data pushes the data.
	testEval(t, "7 $n n", "7")
	testEval(t, "7 $n n 1", "1", "7")
	testEval(t, "'(a b) $l l", "(a b)")
}

func TestEvalReadPrimitiveDoesNotCall(t *testing.T) {
	testEval(t, "^car", "PRIM<car>")
}

// --- Closures ---

func TestEvalClosureCreation(t *testing.T) {
	testEval(t, "(1 2)", "CLOSURE<(1 2)>")
	testEval(t, "()", "CLOSURE<()>")
}

func TestEvalClosureCall(t *testing.T) {
	testEval(t, "(1 2) $f f", "2", "1")
	testEval(t, "(1 2) $f f 3", "3", "2", "1")
	testEval(t, "() $f 9 f", "9")
}

func TestEvalClosureCapture(t *testing.T) {
	// The closure sees x as it was when the closure was created.
	testEval(t, "1 $x (^x) $f 2 $x f", "1")
	testEval(t, "1 $x (^x) $f 2 $x f ^x", "2", "1")
}

func TestEvalClosureDeferred(t *testing.T) {
	testEval(t, "(' 1) $f")
	testEval(t, "(' 1) $f ^f f", "1", "CLOSURE<(' 1)>")
}

func TestEvalClosureBindingsDoNotLeak(t *testing.T) {
	testEvalError(t, "($y) $f 5 f ^y", nil)
}

func TestEvalClosureArguments(t *testing.T) {
	testEval(t, "($b $a ^a ^b -) $sub 10 3 sub", "7")
}

func TestEvalEndToEnd(t *testing.T) {
	program, err := ParseProgram("' 3 $x ' 4 $y ^x ^y +")
	if err != nil {
		t.Fatal(err)
	}
	in := NewInterpreter()

	var beforeAdd *StepEvent
	in.OnStep = func(ev StepEvent) {
		if ev.Term.IsAtom("+") {
			e := ev
			beforeAdd = &e
		}
	}

	stack, env, err := in.Run(Stack{}, program, testEnv())
	if err != nil {
		t.Fatal(err)
	}
	if got := stack.Strings(); len(got) != 1 || got[0] != "7" {
		t.Fatalf("expected stack [7], got %q", got)
	}
	if beforeAdd == nil {
		t.Fatal("OnStep never saw +")
	}
	if got := beforeAdd.Stack.Strings(); len(got) != 2 || got[0] != "4" || got[1] != "3" {
		t.Fatalf("expected stack [4 3] before +, got %q", got)
	}

	names := env.Names()
	if names[0] != "y" || names[1] != "x" {
		t.Fatalf("expected y then x at the head of the env, got %q", names[:2])
	}
	for name, want := range map[string]int64{"x": 3, "y": 4} {
		v, err := env.Lookup(name)
		if err != nil {
			t.Fatal(err)
		}
		if v.Kind != ValNum || v.Num != want {
			t.Fatalf("%s: expected %d, got %s", name, want, v)
		}
	}
}

// --- Errors ---

func TestEvalNameNotFound(t *testing.T) {
	for _, src := range []string{"nope", "^nope", "1 nope 2"} {
		_, err := testCompute(t, NewInterpreter(), src)
		var nf *NameNotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("%q: expected NameNotFoundError, got %v", src, err)
		}
		if nf.Name != "nope" {
			t.Fatalf("%q: expected name nope, got %q", src, nf.Name)
		}
	}
}

func TestEvalStackUnderflow(t *testing.T) {
	testEvalError(t, "$x", ErrStackUnderflow)
	testEvalError(t, "car", ErrStackUnderflow)
	testEvalError(t, "1 +", ErrStackUnderflow)

	_, err := testCompute(t, NewInterpreter(), "cdr")
	var pe *PrimitiveError
	if !errors.As(err, &pe) || pe.Name != "cdr" {
		t.Fatalf("expected PrimitiveError from cdr, got %v", err)
	}
}

func TestEvalMalformed(t *testing.T) {
	testEvalError(t, "'", ErrMalformedProgram)
	testEvalError(t, "1 ^", ErrMalformedProgram)
	testEvalError(t, "1 $", ErrMalformedProgram)
	testEvalError(t, "^ 5", ErrMalformedProgram)
	testEvalError(t, "1 $(a)", ErrMalformedProgram)

	in := NewInterpreter()
	_, err := in.Compute(Stack{}, Cons(NumVal(1), NumVal(2)), testEnv())
	if !errors.Is(err, ErrMalformedProgram) {
		t.Fatalf("expected ErrMalformedProgram for improper program, got %v", err)
	}
}

func TestEvalErrorKeepsStack(t *testing.T) {
	stack, err := testCompute(t, NewInterpreter(), "1 2 nope")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := stack.Strings(); len(got) != 2 || got[0] != "2" {
		t.Fatalf("expected stack at failure [2 1], got %q", got)
	}
}

// --- Depth and tail calls ---

// recurse calls itself with a term after the call, so every call nests.
const recurse = "($self ^self ^self self 1) $g ^g g"

// spin calls itself in tail position forever.
const spin = "($self ^self ^self self) $g ^g g"

// countdown loops n times in tail position and leaves 0.
const countdown = `
($self $n
  (^n)                 ; then
  (^n 1 - ^self self)  ; else
  ^n 0 eq cswap
  $branch $_ branch) $loop`

func TestEvalDepthLimit(t *testing.T) {
	in := NewInterpreter()
	in.MaxDepth = 50
	_, err := testCompute(t, in, recurse)
	if !errors.Is(err, ErrDepthExceeded) {
		t.Fatalf("expected ErrDepthExceeded, got %v", err)
	}
}

func TestEvalTailCallDoesNotGrowDepth(t *testing.T) {
	in := NewInterpreter()
	in.MaxDepth = 5
	in.MaxSteps = 10000
	_, err := testCompute(t, in, spin)
	if !errors.Is(err, ErrStepLimit) {
		t.Fatalf("expected ErrStepLimit, got %v", err)
	}
}

func TestEvalTailLoop(t *testing.T) {
	in := NewInterpreter()
	in.MaxDepth = 5
	stack, err := testCompute(t, in, "10000 "+countdown+" ^loop loop")
	if err != nil {
		t.Fatal(err)
	}
	if got := stack.Strings(); len(got) != 1 || got[0] != "0" {
		t.Fatalf("expected [0], got %q", got)
	}
}

func TestEvalDepthRestoredAfterError(t *testing.T) {
	in := NewInterpreter()
	in.MaxDepth = 20
	if _, err := testCompute(t, in, recurse); err == nil {
		t.Fatal("expected depth error")
	}
	if in.depth != 0 {
		t.Fatalf("expected depth 0 after unwinding, got %d", in.depth)
	}
	if _, err := testCompute(t, in, "(1) $f f"); err != nil {
		t.Fatalf("interpreter unusable after error: %v", err)
	}
}

// --- Step accounting ---

func TestEvalStepLimit(t *testing.T) {
	in := NewInterpreter()
	in.MaxSteps = 3
	_, err := testCompute(t, in, "1 2 3 4")
	if !errors.Is(err, ErrStepLimit) {
		t.Fatalf("expected ErrStepLimit, got %v", err)
	}
	if _, err := testCompute(t, in, "1 2 3"); err != nil {
		t.Fatalf("limit should reset per call: %v", err)
	}
}

func TestEvalStepsCount(t *testing.T) {
	in := NewInterpreter()
	// ' 3, $x, ^x and + are one step each with their operands.
	if _, err := testCompute(t, in, "' 3 $x ^x ^x +"); err != nil {
		t.Fatal(err)
	}
	if in.Steps() != 5 {
		t.Fatalf("expected 5 steps, got %d", in.Steps())
	}
}

func TestEvalOnStepDepth(t *testing.T) {
	in := NewInterpreter()
	maxDepth := 0
	in.OnStep = func(ev StepEvent) {
		if ev.Depth > maxDepth {
			maxDepth = ev.Depth
		}
	}
	if _, err := testCompute(t, in, "((1) $g g) $f f 3"); err != nil {
		t.Fatal(err)
	}
	if maxDepth != 1 {
		t.Fatalf("expected max depth 1, got %d", maxDepth)
	}
}

func TestEvalString(t *testing.T) {
	in := NewInterpreter()
	stack, err := in.EvalString("2 3 *", testEnv())
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := stack.Peek(); v.Num != 6 {
		t.Fatalf("expected 6, got %s", v)
	}
	if _, err := in.EvalString("(", testEnv()); err == nil {
		t.Fatal("expected syntax error")
	}
}
