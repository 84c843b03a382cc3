// Copyright 2025 Certen Protocol

package term

import (
	"math"
	"testing"

	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/symbol"
)

func newEval() (*Evaluator, *symbol.SymbolTable) {
	st := symbol.NewEmptyTable()
	return NewEvaluator(st), st
}

func TestAddOverflow(t *testing.T) {
	e, _ := newEval()
	expr := Expression{
		PushValue(Integer(math.MaxInt64)),
		PushValue(Integer(1)),
		PushBinary(OpAdd),
	}
	_, err := e.Eval(expr, nil)
	if err == nil {
		t.Fatal("expected overflow error")
	}
	if kind, _ := errs.KindOf(err); kind != errs.KindOverflow {
		t.Fatalf("expected Overflow kind, got %v", kind)
	}
}

func TestNegateMinInt64Overflows(t *testing.T) {
	e, _ := newEval()
	expr := Expression{
		PushValue(Integer(math.MinInt64)),
		PushUnary(OpNegate),
	}
	_, err := e.Eval(expr, nil)
	if kind, _ := errs.KindOf(err); kind != errs.KindOverflow {
		t.Fatalf("expected Overflow kind, got %v (%v)", kind, err)
	}
}

func TestDivisionByZero(t *testing.T) {
	e, _ := newEval()
	expr := Expression{
		PushValue(Integer(10)),
		PushValue(Integer(0)),
		PushBinary(OpDiv),
	}
	_, err := e.Eval(expr, nil)
	if kind, _ := errs.KindOf(err); kind != errs.KindExecution {
		t.Fatalf("expected Execution kind, got %v (%v)", kind, err)
	}
}

func TestHeterogeneousEqual(t *testing.T) {
	e, _ := newEval()
	expr := Expression{
		PushValue(Integer(1)),
		PushValue(Bool(true)),
		PushBinary(OpHeterogeneousEqual),
	}
	v, err := e.Eval(expr, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindBool || v.Bool != false {
		t.Fatalf("expected false for mismatched types, got %+v", v)
	}
}

func TestStrictEqualRequiresSameTag(t *testing.T) {
	e, _ := newEval()
	expr := Expression{
		PushValue(Integer(1)),
		PushValue(Bool(true)),
		PushBinary(OpEqual),
	}
	_, err := e.Eval(expr, nil)
	if kind, _ := errs.KindOf(err); kind != errs.KindExecution {
		t.Fatalf("expected Execution error for mismatched strict equal, got %v", err)
	}
}

func TestGetOutOfRangeReturnsNull(t *testing.T) {
	e, _ := newEval()
	arr, _ := NewArray([]Term{Integer(1), Integer(2)})
	expr := Expression{
		PushValue(arr),
		PushValue(Integer(5)),
		PushBinary(OpGet),
	}
	v, err := e.Eval(expr, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindNull {
		t.Fatalf("expected null for out-of-range get, got %+v", v)
	}
}

func TestLengthOfEmptyCollections(t *testing.T) {
	e, _ := newEval()
	set, _ := NewSet(nil)
	arr, _ := NewArray(nil)
	m, _ := NewMap(nil)
	for _, coll := range []Term{set, arr, m} {
		expr := Expression{PushValue(coll), PushUnary(OpLength)}
		v, err := e.Eval(expr, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Kind != KindInteger || v.Integer != 0 {
			t.Fatalf("expected length 0, got %+v", v)
		}
	}
}

func TestRegexMatchEmptyString(t *testing.T) {
	e, st := newEval()
	strID := st.Insert("")
	patID := st.Insert("^$")
	expr := Expression{
		PushValue(String(strID)),
		PushValue(String(patID)),
		PushBinary(OpRegex),
	}
	v, err := e.Eval(expr, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindBool || !v.Bool {
		t.Fatalf("expected match, got %+v", v)
	}
}

func TestLazyAndShortCircuits(t *testing.T) {
	e, _ := newEval()
	// right closure would divide by zero if evaluated
	rightBody := Expression{
		PushValue(Integer(1)),
		PushValue(Integer(0)),
		PushBinary(OpDiv),
		PushUnary(OpTypeOf), // placeholder, unreachable
	}
	expr := Expression{
		PushValue(Bool(false)),
		PushClosure(&Closure{Body: rightBody}),
		PushBinary(OpLazyAnd),
	}
	v, err := e.Eval(expr, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindBool || v.Bool {
		t.Fatalf("expected false without evaluating right side, got %+v", v)
	}
}

func TestTryOrCatchesExecutionError(t *testing.T) {
	e, _ := newEval()
	leftBody := Expression{
		PushValue(Integer(1)),
		PushValue(Integer(0)),
		PushBinary(OpDiv),
	}
	rightBody := Expression{PushValue(Integer(42))}
	expr := Expression{
		PushClosure(&Closure{Body: leftBody}),
		PushClosure(&Closure{Body: rightBody}),
		PushBinary(OpTryOr),
	}
	v, err := e.Eval(expr, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindInteger || v.Integer != 42 {
		t.Fatalf("expected fallback value 42, got %+v", v)
	}
}

func TestAnyAllShortCircuit(t *testing.T) {
	e, _ := newEval()
	// The trailing Bool would make `$x > 2` fail with an Execution error
	// if any() evaluated it; it stops at 3, the first true element.
	arr, _ := NewArray([]Term{Integer(1), Integer(2), Integer(3), Bool(true)})
	paramID := symbol.ID(100)
	body := Expression{
		PushValue(Variable(paramID)),
		PushValue(Integer(2)),
		PushBinary(OpGreaterThan),
	}
	expr := Expression{
		PushValue(arr),
		PushClosure(&Closure{Params: []symbol.ID{paramID}, Body: body}),
		PushBinary(OpAny),
	}
	v, err := e.Eval(expr, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindBool || !v.Bool {
		t.Fatalf("expected any() true, got %+v", v)
	}
}

func TestContainsStringInString(t *testing.T) {
	e, st := newEval()
	hay := st.Insert("hello world")
	needle := st.Insert("wor")
	expr := Expression{
		PushValue(String(hay)),
		PushValue(String(needle)),
		PushBinary(OpContains),
	}
	v, err := e.Eval(expr, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Bool {
		t.Fatal("expected contains to be true")
	}
}
