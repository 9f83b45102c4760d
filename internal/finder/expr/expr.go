// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

// Package expr parses textual field filters such as
//
//	active is not true and score >= 10 and tags |= "red"
//
// into (field, operator, operand) triples for the finder.
package expr

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/samber/oops"

	"github.com/customfields/customfields/internal/finder"
)

// filterLexer keeps multi-character operators such as "!|=" and "&>=" as
// single tokens. Longer operators must come first in the Op alternation.
var filterLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Number", Pattern: `-?\d+(\.\d+)?([eE][-+]?\d+)?`},
	{Name: "Op", Pattern: `!\|=|#!=|#>=|#<=|\|>=|\|<=|&>=|&<=|!\^\*|!\$\*|!~\*|>=|<=|!=|==|<>|\|=|#=|#>|#<|\|>|\|<|&>|&<|\^\*|\$\*|~\*|!\^|!\$|!~|=|>|<|\^|\$|~`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[\[\],]`},
	{Name: "whitespace", Pattern: `\s+`},
})

// Query is a conjunction of filters.
//
// Grammar: filter ( "and" filter )*
type Query struct {
	Pos     lexer.Position `parser:""`
	Filters []*Filter      `parser:"@@ ( 'and' @@ )*"`
}

// Filter matches: field operator operand
type Filter struct {
	Pos      lexer.Position `parser:""`
	Field    string         `parser:"@Ident"`
	Operator *OperatorNode  `parser:"@@"`
	Operand  *Operand       `parser:"@@"`
}

// OperatorNode is a symbolic operator or a named one ("gteq", "is not").
type OperatorNode struct {
	Symbol string   `parser:"  @Op"`
	Words  []string `parser:"| @Ident @'not'?"`
}

// Operand is a literal, a bare word or a bracketed list.
type Operand struct {
	String *string `parser:"  @String"`
	Number *string `parser:"| @Number"`
	Bool   *string `parser:"| @('true' | 'false')"`
	Null   bool    `parser:"| @'null'"`
	List   *List   `parser:"| @@"`
	Word   *string `parser:"| @Ident"`
}

// List is a bracketed, comma separated operand list.
type List struct {
	Open  string     `parser:"@'['"`
	Items []*Operand `parser:"( @@ ( ',' @@ )* )? ']'"`
}

// Condition is a parsed filter ready for the finder.
type Condition struct {
	Field    string
	Operator finder.Operator
	Value    any
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value)
}

var parser = participle.MustBuild[Query](
	participle.Lexer(filterLexer),
	participle.Unquote("String"),
	participle.UseLookahead(2),
)

// Parse parses a filter expression into conditions.
func Parse(text string) ([]Condition, error) {
	q, err := parser.ParseString("", text)
	if err != nil {
		return nil, oops.Code("INVALID_FILTER").
			With("filter", text).
			Wrapf(err, "parsing filter")
	}

	out := make([]Condition, 0, len(q.Filters))
	for _, f := range q.Filters {
		token := f.Operator.token()
		op, ok := finder.ParseOperator(token)
		if !ok {
			return nil, oops.Code("INVALID_FILTER").
				With("filter", text).
				With("operator", token).
				Wrapf(finder.ErrUnsupportedOperator, "%s: unknown operator %q", f.Pos, token)
		}
		out = append(out, Condition{Field: f.Field, Operator: op, Value: f.Operand.value()})
	}
	return out, nil
}

func (o *OperatorNode) token() string {
	if o.Symbol != "" {
		return o.Symbol
	}
	return strings.Join(o.Words, " ")
}

func (o *Operand) value() any {
	switch {
	case o.String != nil:
		return *o.String
	case o.Number != nil:
		return json.Number(*o.Number)
	case o.Bool != nil:
		return *o.Bool == "true"
	case o.Null:
		return nil
	case o.List != nil:
		items := make([]any, len(o.List.Items))
		for i, item := range o.List.Items {
			items[i] = item.value()
		}
		return items
	case o.Word != nil:
		return *o.Word
	}
	return nil
}
