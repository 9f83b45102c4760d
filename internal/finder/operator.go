// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package finder

import (
	"strings"
)

// Operator is a canonical query operator token.
type Operator string

// Scalar operators.
const (
	OpEq   Operator = "="
	OpNeq  Operator = "!="
	OpGt   Operator = ">"
	OpGteq Operator = ">="
	OpLt   Operator = "<"
	OpLteq Operator = "<="
)

// Text pattern operators. The "*" suffix makes a match case-insensitive.
const (
	OpStartsWith     Operator = "^"
	OpEndsWith       Operator = "$"
	OpContains       Operator = "~"
	OpNotStartsWith  Operator = "!^"
	OpNotEndsWith    Operator = "!$"
	OpNotContains    Operator = "!~"
	OpIStartsWith    Operator = "^*"
	OpIEndsWith      Operator = "$*"
	OpIContains      Operator = "~*"
	OpNotIStartsWith Operator = "!^*"
	OpNotIEndsWith   Operator = "!$*"
	OpNotIContains   Operator = "!~*"
)

// Array operators.
const (
	OpInclude    Operator = "|="
	OpNotInclude Operator = "!|="

	OpSizeEq   Operator = "#="
	OpSizeNeq  Operator = "#!="
	OpSizeGt   Operator = "#>"
	OpSizeGteq Operator = "#>="
	OpSizeLt   Operator = "#<"
	OpSizeLteq Operator = "#<="

	OpAnyGt   Operator = "|>"
	OpAnyGteq Operator = "|>="
	OpAnyLt   Operator = "|<"
	OpAnyLteq Operator = "|<="

	OpAllGt   Operator = "&>"
	OpAllGteq Operator = "&>="
	OpAllLt   Operator = "&<"
	OpAllLteq Operator = "&<="
)

// Operator groups used to build per-type operator sets.
var (
	EqualityOps   = []Operator{OpEq, OpNeq}
	ComparisonOps = []Operator{OpEq, OpNeq, OpGt, OpGteq, OpLt, OpLteq}
	TextOps       = []Operator{
		OpEq, OpNeq,
		OpStartsWith, OpEndsWith, OpContains,
		OpNotStartsWith, OpNotEndsWith, OpNotContains,
		OpIStartsWith, OpIEndsWith, OpIContains,
		OpNotIStartsWith, OpNotIEndsWith, OpNotIContains,
	}
	MembershipOps = []Operator{
		OpInclude, OpNotInclude,
		OpSizeEq, OpSizeNeq, OpSizeGt, OpSizeGteq, OpSizeLt, OpSizeLteq,
	}
	ElementRangeOps = []Operator{
		OpAnyGt, OpAnyGteq, OpAnyLt, OpAnyLteq,
		OpAllGt, OpAllGteq, OpAllLt, OpAllLteq,
	}
)

var canonical = func() map[string]Operator {
	m := make(map[string]Operator)
	for _, group := range [][]Operator{ComparisonOps, TextOps, MembershipOps, ElementRangeOps} {
		for _, op := range group {
			m[string(op)] = op
		}
	}
	return m
}()

var aliases = map[string]Operator{
	"eq":          OpEq,
	"is":          OpEq,
	"==":          OpEq,
	"not_eq":      OpNeq,
	"is not":      OpNeq,
	"is_not":      OpNeq,
	"<>":          OpNeq,
	"gt":          OpGt,
	"gteq":        OpGteq,
	"lt":          OpLt,
	"lteq":        OpLteq,
	"start":       OpStartsWith,
	"end":         OpEndsWith,
	"cont":        OpContains,
	"not_start":   OpNotStartsWith,
	"not_end":     OpNotEndsWith,
	"not_cont":    OpNotContains,
	"istart":      OpIStartsWith,
	"iend":        OpIEndsWith,
	"icont":       OpIContains,
	"not_istart":  OpNotIStartsWith,
	"not_iend":    OpNotIEndsWith,
	"not_icont":   OpNotIContains,
	"include":     OpInclude,
	"not_include": OpNotInclude,
	"size_eq":     OpSizeEq,
	"size_not_eq": OpSizeNeq,
	"size_gt":     OpSizeGt,
	"size_gteq":   OpSizeGteq,
	"size_lt":     OpSizeLt,
	"size_lteq":   OpSizeLteq,
	"any_gt":      OpAnyGt,
	"any_gteq":    OpAnyGteq,
	"any_lt":      OpAnyLt,
	"any_lteq":    OpAnyLteq,
	"all_gt":      OpAllGt,
	"all_gteq":    OpAllGteq,
	"all_lt":      OpAllLt,
	"all_lteq":    OpAllLteq,
}

// ParseOperator resolves a token or a named alias such as "is not" to its
// canonical operator. Whitespace between words is collapsed and names are
// case-insensitive.
func ParseOperator(token string) (Operator, bool) {
	t := strings.Join(strings.Fields(token), " ")
	if op, ok := canonical[t]; ok {
		return op, true
	}
	op, ok := aliases[strings.ToLower(t)]
	return op, ok
}

func (o Operator) isPattern() bool {
	switch o {
	case OpStartsWith, OpEndsWith, OpContains,
		OpNotStartsWith, OpNotEndsWith, OpNotContains,
		OpIStartsWith, OpIEndsWith, OpIContains,
		OpNotIStartsWith, OpNotIEndsWith, OpNotIContains:
		return true
	}
	return false
}

func (o Operator) isSize() bool {
	switch o {
	case OpSizeEq, OpSizeNeq, OpSizeGt, OpSizeGteq, OpSizeLt, OpSizeLteq:
		return true
	}
	return false
}

// sqlComparison maps comparison-shaped operators to their SQL operator.
func (o Operator) sqlComparison() string {
	switch o {
	case OpGt, OpSizeGt, OpAnyGt, OpAllGt:
		return ">"
	case OpGteq, OpSizeGteq, OpAnyGteq, OpAllGteq:
		return ">="
	case OpLt, OpSizeLt, OpAnyLt, OpAllLt:
		return "<"
	case OpLteq, OpSizeLteq, OpAnyLteq, OpAllLteq:
		return "<="
	case OpSizeEq:
		return "="
	case OpSizeNeq:
		return "<>"
	}
	return ""
}
