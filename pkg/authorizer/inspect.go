// Copyright 2025 Certen Protocol

package authorizer

import (
	"fmt"
	"strings"

	"github.com/certen/biscuit/pkg/datalog"
	"github.com/certen/biscuit/pkg/term"
)

// Query evaluates rule against the current world and returns every
// fact it derives (§11's supplemented feature, grounded on the
// reference implementation's Authorizer.Query). Scopes are resolved
// relative to the authorizer's own pseudo-origin, the same as an
// authorizer-local check.
func (a *Authorizer) Query(rule datalog.Rule) ([]datalog.Fact, error) {
	return a.world.Query(rule, a.trustedOrigins(rule.Scopes, datalog.AuthorizerOrigin))
}

// Copy returns an independent Authorizer with the same accumulated
// world, checks and policies (§5: "a copy() operation... is provided to
// obtain an independent authorizer state"). Rather than a literal
// round-trip through the wire format — the Authorizer itself has no
// wire message, only Token does — this clones the in-memory tables and
// world directly, which is semantically equivalent and avoids forcing
// an Authorizer-specific serialization format the spec never defines.
func (a *Authorizer) Copy() *Authorizer {
	cp := &Authorizer{
		symbols:    a.symbols.Clone(),
		keys:       a.keys.Clone(),
		world:      a.world.Clone(),
		limits:     a.limits,
		blockCount: a.blockCount,
		saturated:  a.saturated,
	}
	cp.keyIndex = make(datalog.KeyBlockIndex, len(a.keyIndex))
	for k, v := range a.keyIndex {
		cp.keyIndex[k] = append([]datalog.BlockIndex(nil), v...)
	}
	cp.checks = append([]datalog.Check(nil), a.checks...)
	cp.blockChecks = append([]blockCheck(nil), a.blockChecks...)
	cp.policies = append([]datalog.Policy(nil), a.policies...)
	return cp
}

// DumpWorld renders every fact currently in the world, one per line, as
// human-readable Datalog text; rules are not included (§11's supplemented feature, grounded on
// the reference implementation's Authorizer.PrintWorld).
func (a *Authorizer) DumpWorld() string {
	var b strings.Builder
	for _, f := range a.world.Facts() {
		b.WriteString(a.formatPredicate(f.Predicate))
		b.WriteString("\n")
	}
	return b.String()
}

func (a *Authorizer) formatPredicate(p term.Predicate) string {
	name, _ := a.symbols.Resolve(p.Name)
	parts := make([]string, len(p.Terms))
	for i, t := range p.Terms {
		parts[i] = a.formatTerm(t)
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
}

func (a *Authorizer) formatTerm(t term.Term) string {
	switch t.Kind {
	case term.KindNull:
		return "null"
	case term.KindBool:
		return fmt.Sprintf("%v", t.Bool)
	case term.KindInteger:
		return fmt.Sprintf("%d", t.Integer)
	case term.KindString:
		s, _ := a.symbols.Resolve(t.Str)
		return fmt.Sprintf("%q", s)
	case term.KindVariable:
		s, _ := a.symbols.Resolve(t.Str)
		return "$" + s
	case term.KindBytes:
		return fmt.Sprintf("hex:%x", t.Bytes)
	case term.KindDate:
		return fmt.Sprintf("date(%d)", t.Date)
	case term.KindSet:
		parts := make([]string, len(t.Set))
		for i, m := range t.Set {
			parts[i] = a.formatTerm(m)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case term.KindArray:
		parts := make([]string, len(t.Array))
		for i, m := range t.Array {
			parts[i] = a.formatTerm(m)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "?"
	}
}
