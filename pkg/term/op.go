// Copyright 2025 Certen Protocol

package term

import "github.com/certen/biscuit/pkg/symbol"

// UnaryOp enumerates the unary expression operators (§3/§4.2).
type UnaryOp int

const (
	OpNegate UnaryOp = iota
	OpParens
	OpLength
	OpTypeOf
	OpBitNot
)

// BinaryOp enumerates the binary expression operators (§3/§4.2).
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod

	OpLessThan
	OpLessOrEqual
	OpGreaterThan
	OpGreaterOrEqual
	OpEqual             // strict: same tag required
	OpNotEqual          // strict
	OpHeterogeneousEqual // compares across tags, false on mismatch

	OpContains
	OpPrefix
	OpSuffix
	OpRegex

	OpIntersection
	OpUnion
	OpGet
	OpAny
	OpAll

	OpAnd // eager
	OpOr  // eager
	OpLazyAnd
	OpLazyOr

	OpBitAnd
	OpBitOr
	OpBitXor

	OpTryOr
)

// OpCode tags one element of the reverse-polish Expression sequence.
type OpCode int

const (
	CodeValue OpCode = iota
	CodeUnary
	CodeBinary
	CodeClosure
)

// Closure captures a body Expression and its parameter symbol ids.
// Closures are pushed as stack values and invoked inline by the same
// stack machine with a pushed local frame (§9's design note).
type Closure struct {
	Params []symbol.ID
	Body   Expression
}

// Op is one instruction of an Expression's reverse-polish sequence.
type Op struct {
	Code    OpCode
	Value   Term
	Unary   UnaryOp
	Binary  BinaryOp
	Closure *Closure
}

func PushValue(t Term) Op         { return Op{Code: CodeValue, Value: t} }
func PushUnary(op UnaryOp) Op     { return Op{Code: CodeUnary, Unary: op} }
func PushBinary(op BinaryOp) Op   { return Op{Code: CodeBinary, Binary: op} }
func PushClosure(c *Closure) Op   { return Op{Code: CodeClosure, Closure: c} }

// Expression is a stack-machine program over Terms (§3).
type Expression []Op

// Variables returns every *free* variable symbol id referenced anywhere
// in the expression, including inside nested closure bodies but
// excluding each closure's own parameters (those are locally bound, not
// sourced from the rule body), in first occurrence order — used to
// validate that every expression variable also appears in the rule body
// (§3).
func (e Expression) Variables() []symbol.ID {
	var out []symbol.ID
	seen := map[symbol.ID]bool{}
	var walk func(Expression, map[symbol.ID]bool)
	walk = func(expr Expression, bound map[symbol.ID]bool) {
		for _, op := range expr {
			switch op.Code {
			case CodeValue:
				if op.Value.IsVariable() && !bound[op.Value.Str] && !seen[op.Value.Str] {
					seen[op.Value.Str] = true
					out = append(out, op.Value.Str)
				}
			case CodeClosure:
				inner := make(map[symbol.ID]bool, len(bound)+len(op.Closure.Params))
				for k := range bound {
					inner[k] = true
				}
				for _, p := range op.Closure.Params {
					inner[p] = true
				}
				walk(op.Closure.Body, inner)
			}
		}
	}
	walk(e, map[symbol.ID]bool{})
	return out
}
