// Copyright 2025 Certen Protocol
//
// Evaluator executes an Expression's reverse-polish sequence as a pure
// stack machine over Terms, per §4.2. It reports the two error kinds
// named by the spec: Execution (type mismatch, missing variable, regex
// compile failure, division by zero) and Overflow (checked integer
// arithmetic).
package term

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/symbol"
)

// Binding maps variable symbol ids to their bound ground Term.
type Binding map[symbol.ID]Term

// Evaluator executes Expressions against a SymbolTable, caching
// compiled regexes across calls to respect the run-limit time budget
// (§5, §9).
type Evaluator struct {
	Symbols *symbol.SymbolTable
	regexes map[string]*regexp.Regexp
	// Deadline, if non-zero, is checked while compiling regexes so a
	// pathological pattern cannot blow through RunLimits.maxDuration.
	Deadline time.Time
}

func NewEvaluator(symbols *symbol.SymbolTable) *Evaluator {
	return &Evaluator{Symbols: symbols, regexes: map[string]*regexp.Regexp{}}
}

// value is a stack entry: either a Term or a Closure.
type value struct {
	term     Term
	closure  *Closure
	isClosure bool
}

// Eval executes expr under binding and returns its single resulting
// Term, or an *errs.Error of kind Execution/Overflow (or Timeout when a
// regex compilation finds the Deadline passed).
func (e *Evaluator) Eval(expr Expression, binding Binding) (Term, error) {
	v, err := e.run(expr, []Binding{binding})
	if err != nil {
		return Term{}, err
	}
	if v.isClosure {
		return Term{}, errs.New(errs.KindExecution, "expression evaluated to a closure, not a value")
	}
	return v.term, nil
}

// EvalBool evaluates expr and requires the result to be Bool, returning
// an InvalidType error otherwise (used by checkMatchAll, §4.3).
func (e *Evaluator) EvalBool(expr Expression, binding Binding) (bool, error) {
	v, err := e.Eval(expr, binding)
	if err != nil {
		return false, err
	}
	if v.Kind != KindBool {
		return false, errs.New(errs.KindInvalidType, "expression did not evaluate to a boolean (got %s)", v.Kind)
	}
	return v.Bool, nil
}

func (e *Evaluator) run(expr Expression, scopes []Binding) (value, error) {
	var stack []value
	push := func(v value) { stack = append(stack, v) }
	pop := func() (value, error) {
		if len(stack) == 0 {
			return value{}, errs.New(errs.KindExecution, "expression stack underflow")
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}

	lookup := func(id symbol.ID) (Term, bool) {
		for i := len(scopes) - 1; i >= 0; i-- {
			if t, ok := scopes[i][id]; ok {
				return t, true
			}
		}
		return Term{}, false
	}

	for _, op := range expr {
		switch op.Code {
		case CodeValue:
			t := op.Value
			if t.IsVariable() {
				resolved, ok := lookup(t.Str)
				if !ok {
					return value{}, errs.New(errs.KindExecution, "unbound variable in expression")
				}
				t = resolved
			}
			push(value{term: t})

		case CodeClosure:
			push(value{closure: op.Closure, isClosure: true})

		case CodeUnary:
			operand, err := pop()
			if err != nil {
				return value{}, err
			}
			result, err := e.evalUnary(op.Unary, operand)
			if err != nil {
				return value{}, err
			}
			push(value{term: result})

		case CodeBinary:
			right, err := pop()
			if err != nil {
				return value{}, err
			}
			left, err := pop()
			if err != nil {
				return value{}, err
			}
			result, err := e.evalBinary(op.Binary, left, right, scopes)
			if err != nil {
				return value{}, err
			}
			push(value{term: result})
		}
	}

	if len(stack) != 1 {
		return value{}, errs.New(errs.KindExecution, "expression did not reduce to exactly one value (got %d)", len(stack))
	}
	return stack[0], nil
}

func (e *Evaluator) callClosure(c *Closure, args []Term, scopes []Binding) (value, error) {
	if len(args) != len(c.Params) {
		return value{}, errs.New(errs.KindExecution, "closure expected %d argument(s), got %d", len(c.Params), len(args))
	}
	local := Binding{}
	for i, p := range c.Params {
		local[p] = args[i]
	}
	return e.run(c.Body, append(append([]Binding{}, scopes...), local))
}

func (e *Evaluator) evalUnary(op UnaryOp, v value) (Term, error) {
	if v.isClosure {
		return Term{}, errs.New(errs.KindExecution, "unary operator applied to a closure")
	}
	t := v.term
	switch op {
	case OpParens:
		return t, nil
	case OpNegate:
		switch t.Kind {
		case KindBool:
			return Bool(!t.Bool), nil
		case KindInteger:
			if t.Integer == math.MinInt64 {
				return Term{}, errs.New(errs.KindOverflow, "negation of i64::MIN overflows")
			}
			return Integer(-t.Integer), nil
		default:
			return Term{}, errs.New(errs.KindExecution, "negate requires a bool or integer, got %s", t.Kind)
		}
	case OpLength:
		if t.Kind == KindString {
			s, err := e.Symbols.Resolve(t.Str)
			if err != nil {
				return Term{}, errs.Wrap(errs.KindExecution, err, "resolve string for length")
			}
			return Integer(int64(len([]rune(s)))), nil
		}
		if t.Kind == KindBytes {
			return Integer(int64(len(t.Bytes))), nil
		}
		n, ok := t.Length()
		if !ok {
			return Term{}, errs.New(errs.KindExecution, "length requires string/bytes/set/array/map, got %s", t.Kind)
		}
		return Integer(int64(n)), nil
	case OpTypeOf:
		id := e.Symbols.Insert(t.Kind.String())
		return String(id), nil
	case OpBitNot:
		if t.Kind != KindInteger {
			return Term{}, errs.New(errs.KindExecution, "bitwise not requires an integer, got %s", t.Kind)
		}
		return Integer(^t.Integer), nil
	default:
		return Term{}, errs.New(errs.KindExecution, "unknown unary operator")
	}
}

func (e *Evaluator) evalBinary(op BinaryOp, left, right value, scopes []Binding) (Term, error) {
	switch op {
	case OpLazyAnd:
		if left.isClosure || left.term.Kind != KindBool {
			return Term{}, errs.New(errs.KindExecution, "lazy-and left operand must be a bool")
		}
		if !left.term.Bool {
			return Bool(false), nil
		}
		return e.evalClosureBool(right, scopes)

	case OpLazyOr:
		if left.isClosure || left.term.Kind != KindBool {
			return Term{}, errs.New(errs.KindExecution, "lazy-or left operand must be a bool")
		}
		if left.term.Bool {
			return Bool(true), nil
		}
		return e.evalClosureBool(right, scopes)

	case OpTryOr:
		lv, err := e.evalClosureValue(left, scopes)
		if err == nil {
			return lv, nil
		}
		if kind, ok := errs.KindOf(err); !ok || kind != errs.KindExecution {
			return Term{}, err
		}
		return e.evalClosureValue(right, scopes)

	case OpAny, OpAll:
		if left.isClosure || !right.isClosure {
			return Term{}, errs.New(errs.KindExecution, "any/all require a receiver and a 1-parameter closure")
		}
		return e.evalAnyAll(op, left.term, right.closure, scopes)
	}

	if left.isClosure || right.isClosure {
		return Term{}, errs.New(errs.KindExecution, "operator applied to a closure")
	}
	l, r := left.term, right.term

	switch op {
	case OpAdd:
		return intBinary(l, r, func(a, b int64) (int64, bool) {
			if b > 0 && a > math.MaxInt64-b {
				return 0, false
			}
			if b < 0 && a < math.MinInt64-b {
				return 0, false
			}
			return a + b, true
		}, "add")
	case OpSub:
		return intBinary(l, r, func(a, b int64) (int64, bool) {
			if b < 0 && a > math.MaxInt64+b {
				return 0, false
			}
			if b > 0 && a < math.MinInt64+b {
				return 0, false
			}
			return a - b, true
		}, "subtract")
	case OpMul:
		return intBinary(l, r, func(a, b int64) (int64, bool) {
			if a == 0 || b == 0 {
				return 0, true
			}
			prod := a * b
			if prod/b != a {
				return 0, false
			}
			return prod, true
		}, "multiply")
	case OpDiv:
		if l.Kind != KindInteger || r.Kind != KindInteger {
			return Term{}, errs.New(errs.KindExecution, "divide requires integers")
		}
		if r.Integer == 0 {
			return Term{}, errs.New(errs.KindExecution, "division by zero")
		}
		return Integer(l.Integer / r.Integer), nil
	case OpMod:
		if l.Kind != KindInteger || r.Kind != KindInteger {
			return Term{}, errs.New(errs.KindExecution, "modulo requires integers")
		}
		if r.Integer == 0 {
			return Term{}, errs.New(errs.KindExecution, "division by zero")
		}
		return Integer(l.Integer % r.Integer), nil

	case OpLessThan, OpLessOrEqual, OpGreaterThan, OpGreaterOrEqual:
		return e.compare(op, l, r)

	case OpEqual:
		if l.Kind != r.Kind {
			return Term{}, errs.New(errs.KindExecution, "equal requires operands of the same type, got %s and %s", l.Kind, r.Kind)
		}
		return Bool(l.Equal(r)), nil
	case OpNotEqual:
		if l.Kind != r.Kind {
			return Term{}, errs.New(errs.KindExecution, "not-equal requires operands of the same type, got %s and %s", l.Kind, r.Kind)
		}
		return Bool(!l.Equal(r)), nil
	case OpHeterogeneousEqual:
		if l.Kind != r.Kind {
			return Bool(false), nil
		}
		return Bool(l.Equal(r)), nil

	case OpContains:
		return e.contains(l, r)
	case OpPrefix:
		ls, rs, err := e.resolveStrings(l, r)
		if err != nil {
			return Term{}, err
		}
		return Bool(strings.HasPrefix(ls, rs)), nil
	case OpSuffix:
		ls, rs, err := e.resolveStrings(l, r)
		if err != nil {
			return Term{}, err
		}
		return Bool(strings.HasSuffix(ls, rs)), nil
	case OpRegex:
		ls, pattern, err := e.resolveStrings(l, r)
		if err != nil {
			return Term{}, err
		}
		re, err := e.compileRegex(pattern)
		if err != nil {
			return Term{}, err
		}
		return Bool(re.MatchString(ls)), nil

	case OpIntersection:
		return e.setOp(l, r, true)
	case OpUnion:
		return e.setOp(l, r, false)
	case OpGet:
		v, ok := l.Get(r)
		if !ok {
			return Term{}, errs.New(errs.KindExecution, "get requires an array+integer or map+key, got %s", l.Kind)
		}
		return v, nil

	case OpAnd:
		if l.Kind != KindBool || r.Kind != KindBool {
			return Term{}, errs.New(errs.KindExecution, "and requires booleans")
		}
		return Bool(l.Bool && r.Bool), nil
	case OpOr:
		if l.Kind != KindBool || r.Kind != KindBool {
			return Term{}, errs.New(errs.KindExecution, "or requires booleans")
		}
		return Bool(l.Bool || r.Bool), nil

	case OpBitAnd:
		return intBinary(l, r, func(a, b int64) (int64, bool) { return a & b, true }, "bitwise and")
	case OpBitOr:
		return intBinary(l, r, func(a, b int64) (int64, bool) { return a | b, true }, "bitwise or")
	case OpBitXor:
		return intBinary(l, r, func(a, b int64) (int64, bool) { return a ^ b, true }, "bitwise xor")

	default:
		return Term{}, errs.New(errs.KindExecution, "unknown binary operator")
	}
}

func (e *Evaluator) evalClosureBool(v value, scopes []Binding) (Term, error) {
	res, err := e.evalClosureValue(v, scopes)
	if err != nil {
		return Term{}, err
	}
	if res.Kind != KindBool {
		return Term{}, errs.New(errs.KindExecution, "closure must evaluate to a bool")
	}
	return res, nil
}

func (e *Evaluator) evalClosureValue(v value, scopes []Binding) (Term, error) {
	if !v.isClosure {
		return v.term, nil
	}
	res, err := e.callClosure(v.closure, nil, scopes)
	if err != nil {
		return Term{}, err
	}
	if res.isClosure {
		return Term{}, errs.New(errs.KindExecution, "closure evaluated to a closure, not a value")
	}
	return res.term, nil
}

func (e *Evaluator) evalAnyAll(op BinaryOp, receiver Term, closure *Closure, scopes []Binding) (Term, error) {
	var elems []Term
	switch receiver.Kind {
	case KindSet:
		elems = receiver.Set
	case KindArray:
		elems = receiver.Array
	case KindMap:
		for _, entry := range receiver.Map {
			elems = append(elems, entry.Value)
		}
	default:
		return Term{}, errs.New(errs.KindExecution, "any/all require a set/array/map receiver, got %s", receiver.Kind)
	}
	if len(closure.Params) != 1 {
		return Term{}, errs.New(errs.KindExecution, "any/all closures take exactly one parameter")
	}

	want := op == OpAny
	for _, elem := range elems {
		res, err := e.callClosure(closure, []Term{elem}, scopes)
		if err != nil {
			return Term{}, err
		}
		if res.isClosure || res.term.Kind != KindBool {
			return Term{}, errs.New(errs.KindExecution, "any/all closure must evaluate to a bool")
		}
		if res.term.Bool == want {
			return Bool(want), nil
		}
	}
	return Bool(!want), nil
}

func (e *Evaluator) compare(op BinaryOp, l, r Term) (Term, error) {
	var less, equal bool
	switch {
	case l.Kind == KindInteger && r.Kind == KindInteger:
		less, equal = l.Integer < r.Integer, l.Integer == r.Integer
	case l.Kind == KindDate && r.Kind == KindDate:
		less, equal = l.Date < r.Date, l.Date == r.Date
	case l.Kind == KindString && r.Kind == KindString:
		ls, err := e.Symbols.Resolve(l.Str)
		if err != nil {
			return Term{}, errs.Wrap(errs.KindExecution, err, "resolve string for comparison")
		}
		rs, err := e.Symbols.Resolve(r.Str)
		if err != nil {
			return Term{}, errs.Wrap(errs.KindExecution, err, "resolve string for comparison")
		}
		less, equal = ls < rs, ls == rs
	case l.Kind == KindBytes && r.Kind == KindBytes:
		ls, rs := string(l.Bytes), string(r.Bytes)
		less, equal = ls < rs, ls == rs
	default:
		return Term{}, errs.New(errs.KindExecution, "ordering comparison requires matching comparable types, got %s and %s", l.Kind, r.Kind)
	}

	switch op {
	case OpLessThan:
		return Bool(less), nil
	case OpLessOrEqual:
		return Bool(less || equal), nil
	case OpGreaterThan:
		return Bool(!less && !equal), nil
	case OpGreaterOrEqual:
		return Bool(!less), nil
	default:
		return Term{}, errs.New(errs.KindExecution, "unknown comparison operator")
	}
}

func (e *Evaluator) contains(l, r Term) (Term, error) {
	if l.Kind == KindString && r.Kind == KindString {
		ls, rs, err := e.resolveStrings(l, r)
		if err != nil {
			return Term{}, err
		}
		return Bool(strings.Contains(ls, rs)), nil
	}
	switch l.Kind {
	case KindSet, KindArray, KindMap:
		return Bool(l.Contains(r)), nil
	default:
		return Term{}, errs.New(errs.KindExecution, "contains requires string/set/array/map receiver, got %s", l.Kind)
	}
}

func (e *Evaluator) setOp(l, r Term, intersection bool) (Term, error) {
	if l.Kind != KindSet || r.Kind != KindSet {
		return Term{}, errs.New(errs.KindExecution, "intersection/union require two sets, got %s and %s", l.Kind, r.Kind)
	}
	if intersection {
		var out []Term
		for _, m := range l.Set {
			if r.Contains(m) {
				out = append(out, m)
			}
		}
		res, _ := NewSet(out)
		return res, nil
	}
	out := append([]Term{}, l.Set...)
	out = append(out, r.Set...)
	res, _ := NewSet(out)
	return res, nil
}

func (e *Evaluator) resolveStrings(l, r Term) (string, string, error) {
	if l.Kind != KindString || r.Kind != KindString {
		return "", "", errs.New(errs.KindExecution, "operator requires two strings, got %s and %s", l.Kind, r.Kind)
	}
	ls, err := e.Symbols.Resolve(l.Str)
	if err != nil {
		return "", "", errs.Wrap(errs.KindExecution, err, "resolve left string operand")
	}
	rs, err := e.Symbols.Resolve(r.Str)
	if err != nil {
		return "", "", errs.Wrap(errs.KindExecution, err, "resolve right string operand")
	}
	return ls, rs, nil
}

func (e *Evaluator) compileRegex(pattern string) (*regexp.Regexp, error) {
	if re, ok := e.regexes[pattern]; ok {
		return re, nil
	}
	if !e.Deadline.IsZero() && time.Now().After(e.Deadline) {
		return nil, errs.New(errs.KindTimeout, "deadline exceeded while compiling regex")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errs.Wrap(errs.KindExecution, err, "compile regex %q", pattern)
	}
	e.regexes[pattern] = re
	return re, nil
}

func intBinary(l, r Term, f func(a, b int64) (int64, bool), name string) (Term, error) {
	if l.Kind != KindInteger || r.Kind != KindInteger {
		return Term{}, errs.New(errs.KindExecution, "%s requires integers, got %s and %s", name, l.Kind, r.Kind)
	}
	result, ok := f(l.Integer, r.Integer)
	if !ok {
		return Term{}, errs.New(errs.KindOverflow, "integer overflow in %s", name)
	}
	return Integer(result), nil
}
