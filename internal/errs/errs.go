// Copyright 2025 Certen Protocol
//
// Package errs implements the single Result error taxonomy from the
// Biscuit specification (format, semantic, logic, evaluation and
// language errors) behind one tagged error type.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an Error per the specification's error taxonomy.
type Kind string

const (
	// Format errors: fatal at deserialization, never swallowed.
	KindInvalidFormat        Kind = "invalid_format"
	KindInvalidSignature     Kind = "invalid_signature"
	KindSealedSignature      Kind = "sealed_signature"
	KindInvalidSignatureSize Kind = "invalid_signature_size"
	KindEmptyKeys            Kind = "empty_keys"
	KindUnknownPublicKey     Kind = "unknown_public_key"
	KindDeserialization      Kind = "deserialization"
	KindSerialization        Kind = "serialization"
	KindBlockDeserialization Kind = "block_deserialization"
	KindBlockSerialization   Kind = "block_serialization"
	KindVersion              Kind = "version"

	// Semantic errors.
	KindInvalidAuthorityIndex Kind = "invalid_authority_index"
	KindInvalidBlockIndex     Kind = "invalid_block_index"
	KindSymbolTableOverlap    Kind = "symbol_table_overlap"
	KindMissingSymbols        Kind = "missing_symbols"
	KindSealed                Kind = "sealed"

	// Logic errors.
	KindInvalidAuthorityFact Kind = "invalid_authority_fact"
	KindInvalidAmbientFact   Kind = "invalid_ambient_fact"
	KindInvalidBlockFact     Kind = "invalid_block_fact"
	KindInvalidBlockRule     Kind = "invalid_block_rule"
	KindUnauthorized         Kind = "unauthorized"
	KindNoMatchingPolicy     Kind = "no_matching_policy"
	KindAuthorizerNotEmpty   Kind = "authorizer_not_empty"
	KindFactNotFound         Kind = "fact_not_found"

	// Evaluation errors.
	KindTooManyFacts      Kind = "too_many_facts"
	KindTooManyIterations Kind = "too_many_iterations"
	KindTimeout           Kind = "timeout"
	KindExecution         Kind = "execution"
	KindOverflow          Kind = "overflow"
	KindInvalidType       Kind = "invalid_type"
	KindInternal          Kind = "internal"

	// Language errors.
	KindParser    Kind = "parser"
	KindShadowing Kind = "shadowing"
)

// Error is the single error type used across every Biscuit component.
// Fields beyond Kind/Msg are populated when the kind calls for them
// (e.g. Version carries Min/Max/Actual, InvalidBlockIndex carries
// Expected/Found).
type Error struct {
	Kind    Kind
	Msg     string
	Wrapped error

	// Optional structured payload, set only by the kinds that need it.
	Min, Max, Actual int
	Expected, Found  int
	BlockIndex       int
	CheckIndex       int
	CheckText        string
	FailedChecks     []FailedCheck
	MatchedPolicy    *MatchedPolicy
}

// FailedCheck records one check that failed to hold, in the order it
// was evaluated: authorizer checks first, then authority block checks,
// then each subsequent block's checks in block order.
type FailedCheck struct {
	// BlockIndex is -1 for an authorizer-level check.
	BlockIndex int
	CheckIndex int
	CheckText  string
}

// PolicyKind distinguishes which policy matched when building an
// Unauthorized error.
type PolicyKind string

const (
	PolicyAllow PolicyKind = "allow"
	PolicyDeny  PolicyKind = "deny"
)

// MatchedPolicy names the policy that decided (or failed to decide)
// an authorization run.
type MatchedPolicy struct {
	Kind  PolicyKind
	Index int
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("biscuit: %s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("biscuit: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is reports whether target carries the same Kind, so callers can use
// errors.Is(err, &errs.Error{Kind: errs.KindSealed}).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New builds a plain Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind that wraps an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Wrapped: err}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and
// false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// VersionError builds the Version{min,max,actual} error from §4.4/§7.
func VersionError(min, max, actual int) *Error {
	return &Error{
		Kind:   KindVersion,
		Msg:    fmt.Sprintf("block declares version %d, supported range is [%d, %d]", actual, min, max),
		Min:    min,
		Max:    max,
		Actual: actual,
	}
}

// BlockIndexError builds the InvalidBlockIndex{expected,found} error.
func BlockIndexError(expected, found int) *Error {
	return &Error{
		Kind:     KindInvalidBlockIndex,
		Msg:      fmt.Sprintf("expected block index %d, found %d", expected, found),
		Expected: expected,
		Found:    found,
	}
}

// Unauthorized builds the Unauthorized(matchedPolicy, failedChecks) error.
func Unauthorized(policy *MatchedPolicy, failed []FailedCheck) *Error {
	return &Error{
		Kind:          KindUnauthorized,
		Msg:           fmt.Sprintf("unauthorized: matched policy %+v with %d failed check(s)", policy, len(failed)),
		MatchedPolicy: policy,
		FailedChecks:  failed,
	}
}

// NoMatchingPolicy builds the NoMatchingPolicy(failedChecks) error.
func NoMatchingPolicy(failed []FailedCheck) *Error {
	return &Error{
		Kind:         KindNoMatchingPolicy,
		Msg:          fmt.Sprintf("no matching policy, %d failed check(s)", len(failed)),
		FailedChecks: failed,
	}
}
