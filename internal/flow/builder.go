package flow

import (
	"bytes"
	"fmt"
)

// Builder accumulates a match or action string the way the teacher's
// ovs.MatchFlow.MarshalText accumulates a comma-joined match string: append
// clauses in order, then render, stripping the trailing separator. Unlike
// the teacher, this module never parses the result back (spec.md §1,
// explicit Non-goal: "the translator emits match/action strings verbatim;
// it does not parse them") — Builder exists purely to make emission
// code read like a sequence of clauses instead of ad hoc string
// concatenation.
type Builder struct {
	buf  bytes.Buffer
	sep  string
}

// NewMatchBuilder returns a Builder that joins clauses with " && " (used for
// match expressions like "ip4.dst == 10.0.0.1 && tcp.dst == 80").
func NewMatchBuilder() *Builder {
	return &Builder{sep: " && "}
}

// NewActionBuilder returns a Builder that joins statements with "; ". Like
// every Builder, String strips the trailing separator, so the last statement
// is left unterminated ("reg0 = ...; next").
func NewActionBuilder() *Builder {
	return &Builder{sep: "; "}
}

// Raw appends s verbatim with no separator handling; used to splice in an
// already-built clause (e.g. a nested clone{...} built with its own Builder).
func (b *Builder) Raw(s string) *Builder {
	b.buf.WriteString(s)
	return b
}

// Clause appends a formatted clause followed by the builder's separator.
func (b *Builder) Clause(format string, args ...interface{}) *Builder {
	fmt.Fprintf(&b.buf, format, args...)
	b.buf.WriteString(b.sep)
	return b
}

// ClauseIf appends the clause only when cond is true.
func (b *Builder) ClauseIf(cond bool, format string, args ...interface{}) *Builder {
	if cond {
		b.Clause(format, args...)
	}
	return b
}

// String renders the accumulated clauses, stripping any trailing separator.
func (b *Builder) String() string {
	s := b.buf.String()
	if len(s) >= len(b.sep) && s[len(s)-len(b.sep):] == b.sep {
		return s[:len(s)-len(b.sep)]
	}
	return s
}

// Brace wraps body in "{ " + body + "; }", the convention used for
// tcp_reset{...}, icmp4{...}, clone{...} (spec.md §6 "Match/action DSL").
func Brace(body string) string {
	if body == "" {
		return "{ }"
	}
	return "{ " + body + "; }"
}
