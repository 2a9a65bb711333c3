package engine

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ============================================================================
// EXPRESSION PARSER — polars-style pipeline → Plan
// ============================================================================
// Parses the single-expression vocabulary the synthesizer is prompted to
// emit: a chain of whitelisted methods on the fixed identifier `df`, with
// pl.* aggregation calls and pl.col comparisons as the only sub-expressions.
//
//	df.group_by('product').agg(pl.sum('sales'))
//	df.filter(pl.col('price') > 100).sort('price', descending=True).head(5)
//	df.select(pl.mean('revenue'))
//
// There is no escape hatch: unknown methods, attribute access, or operators
// outside the grammar are parse errors, so model-generated text can never
// reach anything beyond the Plan operation set.
// ============================================================================

// TableIdent is the only identifier an expression may reference.
const TableIdent = "df"

// Parse converts a synthesized expression into a Plan.
func Parse(expr string) (*Plan, error) {
	tokens, err := lex(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}

	if !p.acceptIdent(TableIdent) {
		return nil, fmt.Errorf("expression must start with '%s'", TableIdent)
	}

	plan := &Plan{}
	var pendingGroupBy []string

	for !p.done() {
		if !p.accept(tokDot) {
			return nil, fmt.Errorf("unexpected %s", p.peek().describe())
		}
		name, ok := p.ident()
		if !ok {
			return nil, fmt.Errorf("expected method name after '.'")
		}

		if pendingGroupBy != nil && name != "agg" {
			return nil, fmt.Errorf("group_by must be followed by agg")
		}

		args, kwargs, err := p.callArgs(name)
		if err != nil {
			return nil, err
		}

		switch name {
		case "select":
			if err := rejectKwargs(name, kwargs); err != nil {
				return nil, err
			}
			op, err := buildSelect(args)
			if err != nil {
				return nil, err
			}
			plan.Ops = append(plan.Ops, op)

		case "filter":
			if err := rejectKwargs(name, kwargs); err != nil {
				return nil, err
			}
			op, err := buildFilter(args)
			if err != nil {
				return nil, err
			}
			plan.Ops = append(plan.Ops, op)

		case "group_by":
			if err := rejectKwargs(name, kwargs); err != nil {
				return nil, err
			}
			cols, err := columnNames(args)
			if err != nil {
				return nil, fmt.Errorf("group_by: %w", err)
			}
			if len(cols) == 0 {
				return nil, fmt.Errorf("group_by requires at least one column")
			}
			pendingGroupBy = cols

		case "groupby":
			return nil, fmt.Errorf("unknown method 'groupby' (use group_by)")

		case "agg":
			if pendingGroupBy == nil {
				return nil, fmt.Errorf("agg must follow group_by")
			}
			if err := rejectKwargs(name, kwargs); err != nil {
				return nil, err
			}
			aggs, err := aggExprs(args)
			if err != nil {
				return nil, err
			}
			if err := checkOutputNames(pendingGroupBy, aggs); err != nil {
				return nil, err
			}
			plan.Ops = append(plan.Ops, GroupAggOp{By: pendingGroupBy, Aggs: aggs})
			pendingGroupBy = nil

		case "sort":
			op, err := buildSort(args, kwargs)
			if err != nil {
				return nil, err
			}
			plan.Ops = append(plan.Ops, op)

		case "describe":
			if len(args) > 0 || len(kwargs) > 0 {
				return nil, fmt.Errorf("describe takes no arguments")
			}
			plan.Ops = append(plan.Ops, DescribeOp{})

		case "head", "limit":
			n := 5
			switch {
			case len(args) == 1:
				lit, ok := args[0].(argLiteral)
				if !ok {
					return nil, fmt.Errorf("%s expects a row count", name)
				}
				n, err = rowCount(name, lit.lit)
				if err != nil {
					return nil, err
				}
				if _, dup := kwargs["n"]; dup {
					return nil, fmt.Errorf("%s: row count given twice", name)
				}
			case len(args) > 1:
				return nil, fmt.Errorf("%s expects at most one argument", name)
			default:
				if lit, ok := kwargs["n"]; ok {
					n, err = rowCount(name, lit)
					if err != nil {
						return nil, err
					}
				}
			}
			delete(kwargs, "n")
			if err := rejectKwargs(name, kwargs); err != nil {
				return nil, err
			}
			plan.Ops = append(plan.Ops, HeadOp{N: n})

		default:
			return nil, fmt.Errorf("unknown method '%s'", name)
		}
	}

	if pendingGroupBy != nil {
		return nil, fmt.Errorf("group_by must be followed by agg")
	}
	if len(plan.Ops) == 0 {
		return nil, fmt.Errorf("expression has no operations")
	}
	return plan, nil
}

// ============================================================================
// ARGUMENT FORMS
// ============================================================================

// arg is a parsed call argument: a literal, a pl.* call, a comparison, or a
// list of other arguments.
type arg interface{ argNode() }

type argLiteral struct{ lit Literal }

type argCall struct {
	fn   string // e.g. "col", "sum"
	args []arg
}

type argCompare struct {
	call argCall
	op   CmpOp
	lit  Literal
}

type argList struct{ items []arg }

func (argLiteral) argNode() {}
func (argCall) argNode()    {}
func (argCompare) argNode() {}
func (argList) argNode()    {}

// columnNames flattens string literals, lists, and pl.col calls into names.
func columnNames(args []arg) ([]string, error) {
	var names []string
	for _, a := range args {
		switch v := a.(type) {
		case argLiteral:
			if v.lit.IsNumber || v.lit.IsBool {
				return nil, fmt.Errorf("expected a column name")
			}
			names = append(names, v.lit.Text)
		case argList:
			inner, err := columnNames(v.items)
			if err != nil {
				return nil, err
			}
			names = append(names, inner...)
		case argCall:
			name, err := colRef(v)
			if err != nil {
				return nil, err
			}
			names = append(names, name)
		default:
			return nil, fmt.Errorf("expected a column name")
		}
	}
	return names, nil
}

// colRef unwraps pl.col('name').
func colRef(c argCall) (string, error) {
	if c.fn != "col" {
		return "", fmt.Errorf("unexpected call pl.%s", c.fn)
	}
	if len(c.args) != 1 {
		return "", fmt.Errorf("pl.col expects one column name")
	}
	lit, ok := c.args[0].(argLiteral)
	if !ok || lit.lit.IsNumber || lit.lit.IsBool {
		return "", fmt.Errorf("pl.col expects a column name")
	}
	return lit.lit.Text, nil
}

// aggExprs maps pl.sum / pl.mean / ... calls to AggExprs.
func aggExprs(args []arg) ([]AggExpr, error) {
	var aggs []AggExpr
	for _, a := range args {
		switch v := a.(type) {
		case argList:
			inner, err := aggExprs(v.items)
			if err != nil {
				return nil, err
			}
			aggs = append(aggs, inner...)
		case argCall:
			agg, err := toAggExpr(v)
			if err != nil {
				return nil, err
			}
			aggs = append(aggs, agg)
		default:
			return nil, fmt.Errorf("agg expects pl.<func>(...) expressions")
		}
	}
	if len(aggs) == 0 {
		return nil, fmt.Errorf("agg requires at least one aggregation")
	}
	return aggs, nil
}

func toAggExpr(c argCall) (AggExpr, error) {
	var fn AggFunc
	switch c.fn {
	case "sum":
		fn = AggSum
	case "mean", "avg":
		fn = AggMean
	case "min":
		fn = AggMin
	case "max":
		fn = AggMax
	case "count":
		fn = AggCount
	case "len":
		fn = AggLen
	default:
		return AggExpr{}, fmt.Errorf("unknown aggregation pl.%s", c.fn)
	}

	if len(c.args) == 0 {
		if fn.needsColumn() {
			return AggExpr{}, fmt.Errorf("pl.%s expects a column name", c.fn)
		}
		return AggExpr{Func: fn}, nil
	}
	if len(c.args) != 1 {
		return AggExpr{}, fmt.Errorf("pl.%s expects one column name", c.fn)
	}
	lit, ok := c.args[0].(argLiteral)
	if !ok || lit.lit.IsNumber || lit.lit.IsBool {
		return AggExpr{}, fmt.Errorf("pl.%s expects a column name", c.fn)
	}
	return AggExpr{Func: fn, Column: lit.lit.Text}, nil
}

func buildSelect(args []arg) (SelectOp, error) {
	var items []SelectItem
	var walk func(args []arg) error
	walk = func(args []arg) error {
		for _, a := range args {
			switch v := a.(type) {
			case argLiteral:
				if v.lit.IsNumber || v.lit.IsBool {
					return fmt.Errorf("select expects column names or aggregations")
				}
				items = append(items, SelectItem{Column: v.lit.Text})
			case argList:
				if err := walk(v.items); err != nil {
					return err
				}
			case argCall:
				if v.fn == "col" {
					name, err := colRef(v)
					if err != nil {
						return err
					}
					items = append(items, SelectItem{Column: name})
					continue
				}
				agg, err := toAggExpr(v)
				if err != nil {
					return err
				}
				items = append(items, SelectItem{Agg: &agg})
			default:
				return fmt.Errorf("select expects column names or aggregations")
			}
		}
		return nil
	}
	if err := walk(args); err != nil {
		return SelectOp{}, err
	}
	if len(items) == 0 {
		return SelectOp{}, fmt.Errorf("select requires at least one column")
	}
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		name := item.Column
		if item.Agg != nil {
			name = item.Agg.OutputName()
		}
		if _, dup := seen[name]; dup {
			return SelectOp{}, fmt.Errorf("select: duplicate output column '%s'", name)
		}
		seen[name] = struct{}{}
	}
	return SelectOp{Items: items}, nil
}

func buildFilter(args []arg) (FilterOp, error) {
	if len(args) != 1 {
		return FilterOp{}, fmt.Errorf("filter expects exactly one predicate")
	}
	cmp, ok := args[0].(argCompare)
	if !ok {
		return FilterOp{}, fmt.Errorf("filter expects pl.col(<name>) <op> <value>")
	}
	col, err := colRef(cmp.call)
	if err != nil {
		return FilterOp{}, err
	}
	return FilterOp{Column: col, Op: cmp.op, Value: cmp.lit}, nil
}

func buildSort(args []arg, kwargs map[string]Literal) (SortOp, error) {
	var col string
	switch {
	case len(args) == 1:
		names, err := columnNames(args)
		if err != nil {
			return SortOp{}, fmt.Errorf("sort: %w", err)
		}
		col = names[0]
	case len(args) == 0:
		by, ok := kwargs["by"]
		if !ok || by.IsNumber || by.IsBool {
			return SortOp{}, fmt.Errorf("sort expects a column name")
		}
		col = by.Text
	default:
		return SortOp{}, fmt.Errorf("sort expects one column")
	}

	desc := false
	if d, ok := kwargs["descending"]; ok {
		if !d.IsBool {
			return SortOp{}, fmt.Errorf("descending expects True or False")
		}
		desc = d.Bool
	}
	for name := range kwargs {
		if name != "by" && name != "descending" {
			return SortOp{}, fmt.Errorf("sort does not accept keyword argument '%s'", name)
		}
	}
	return SortOp{Column: col, Descending: desc}, nil
}

// rejectKwargs fails on any keyword argument the method did not consume.
// A silently dropped kwarg would change the result the user asked for.
func rejectKwargs(method string, kwargs map[string]Literal) error {
	for name := range kwargs {
		return fmt.Errorf("%s does not accept keyword argument '%s'", method, name)
	}
	return nil
}

// rowCount parses a head/limit argument, rejecting fractional counts.
func rowCount(method string, lit Literal) (int, error) {
	if !lit.IsNumber {
		return 0, fmt.Errorf("%s expects a row count", method)
	}
	n := int(lit.Number)
	if float64(n) != lit.Number {
		return 0, fmt.Errorf("%s expects a whole-number row count", method)
	}
	return n, nil
}

// checkOutputNames rejects aggregations whose output columns collide with
// each other or with a grouping column, matching polars' duplicate-column
// error instead of silently dropping one of them.
func checkOutputNames(by []string, aggs []AggExpr) error {
	seen := make(map[string]struct{}, len(by)+len(aggs))
	for _, name := range by {
		seen[name] = struct{}{}
	}
	for _, agg := range aggs {
		name := agg.OutputName()
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate output column '%s' (alias one of the aggregations)", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// ============================================================================
// RECURSIVE-DESCENT PARSER
// ============================================================================

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) done() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() token {
	if p.done() {
		return token{kind: tokEOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) accept(kind tokenKind) bool {
	if p.peek().kind == kind {
		p.pos++
		return true
	}
	return false
}

func (p *parser) acceptIdent(name string) bool {
	t := p.peek()
	if t.kind == tokIdent && t.text == name {
		p.pos++
		return true
	}
	return false
}

func (p *parser) ident() (string, bool) {
	t := p.peek()
	if t.kind != tokIdent {
		return "", false
	}
	p.pos++
	return t.text, true
}

// callArgs parses "( arg, ..., kw=value, ... )" after a method name.
func (p *parser) callArgs(method string) ([]arg, map[string]Literal, error) {
	if !p.accept(tokLParen) {
		return nil, nil, fmt.Errorf("expected '(' after %s", method)
	}

	var args []arg
	kwargs := make(map[string]Literal)

	for !p.accept(tokRParen) {
		// Keyword argument: ident '=' literal
		if p.peek().kind == tokIdent && p.peekAt(1).kind == tokAssign {
			name, _ := p.ident()
			p.accept(tokAssign)
			lit, err := p.literal()
			if err != nil {
				return nil, nil, err
			}
			kwargs[name] = lit
		} else {
			a, err := p.expr()
			if err != nil {
				return nil, nil, err
			}
			args = append(args, a)
		}

		if p.accept(tokComma) {
			continue
		}
		if p.accept(tokRParen) {
			break
		}
		return nil, nil, fmt.Errorf("expected ',' or ')' in %s arguments", method)
	}

	return args, kwargs, nil
}

func (p *parser) peekAt(offset int) token {
	if p.pos+offset >= len(p.tokens) {
		return token{kind: tokEOF}
	}
	return p.tokens[p.pos+offset]
}

// expr parses one argument: literal, list, pl.* call, optionally followed
// by a comparison operator and a literal.
func (p *parser) expr() (arg, error) {
	t := p.peek()

	switch t.kind {
	case tokString:
		p.pos++
		return argLiteral{lit: Literal{Text: t.text}}, nil

	case tokNumber:
		p.pos++
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", t.text)
		}
		return argLiteral{lit: Literal{IsNumber: true, Number: n}}, nil

	case tokLBracket:
		p.pos++
		var items []arg
		for !p.accept(tokRBracket) {
			item, err := p.expr()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if p.accept(tokComma) {
				continue
			}
			if p.accept(tokRBracket) {
				break
			}
			return nil, fmt.Errorf("expected ',' or ']' in list")
		}
		return argList{items: items}, nil

	case tokIdent:
		switch t.text {
		case "True":
			p.pos++
			return argLiteral{lit: Literal{IsBool: true, Bool: true}}, nil
		case "False":
			p.pos++
			return argLiteral{lit: Literal{IsBool: true, Bool: false}}, nil
		case "pl":
			return p.plCall()
		}
		return nil, fmt.Errorf("unknown identifier '%s'", t.text)
	}

	return nil, fmt.Errorf("unexpected %s", t.describe())
}

// plCall parses pl.<func>(args...) and an optional trailing comparison.
func (p *parser) plCall() (arg, error) {
	p.acceptIdent("pl")
	if !p.accept(tokDot) {
		return nil, fmt.Errorf("expected '.' after pl")
	}
	fn, ok := p.ident()
	if !ok {
		return nil, fmt.Errorf("expected function name after pl.")
	}
	args, kwargs, err := p.callArgs("pl." + fn)
	if err != nil {
		return nil, err
	}
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("pl.%s does not accept keyword arguments", fn)
	}
	call := argCall{fn: fn, args: args}

	if p.peek().kind == tokCmp {
		op := CmpOp(p.peek().text)
		p.pos++
		lit, err := p.literal()
		if err != nil {
			return nil, err
		}
		return argCompare{call: call, op: op, lit: lit}, nil
	}
	return call, nil
}

func (p *parser) literal() (Literal, error) {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.pos++
		return Literal{Text: t.text}, nil
	case tokNumber:
		p.pos++
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return Literal{}, fmt.Errorf("bad number %q", t.text)
		}
		return Literal{IsNumber: true, Number: n}, nil
	case tokIdent:
		if t.text == "True" {
			p.pos++
			return Literal{IsBool: true, Bool: true}, nil
		}
		if t.text == "False" {
			p.pos++
			return Literal{IsBool: true, Bool: false}, nil
		}
	}
	return Literal{}, fmt.Errorf("expected a literal, got %s", t.describe())
}

// ============================================================================
// LEXER
// ============================================================================

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokDot
	tokComma
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokAssign
	tokCmp
)

type token struct {
	kind tokenKind
	text string
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of expression"
	case tokIdent:
		return fmt.Sprintf("identifier '%s'", t.text)
	case tokString:
		return fmt.Sprintf("string '%s'", t.text)
	default:
		return fmt.Sprintf("'%s'", t.text)
	}
}

func lex(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	i := 0

	for i < len(runes) {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++

		case r == '.':
			// Disambiguate member access from a leading-dot float (".5").
			if i+1 < len(runes) && unicode.IsDigit(runes[i+1]) {
				start := i
				i++
				for i < len(runes) && unicode.IsDigit(runes[i]) {
					i++
				}
				tokens = append(tokens, token{kind: tokNumber, text: string(runes[start:i])})
			} else {
				tokens = append(tokens, token{kind: tokDot, text: "."})
				i++
			}

		case r == ',':
			tokens = append(tokens, token{kind: tokComma, text: ","})
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")"})
			i++
		case r == '[':
			tokens = append(tokens, token{kind: tokLBracket, text: "["})
			i++
		case r == ']':
			tokens = append(tokens, token{kind: tokRBracket, text: "]"})
			i++

		case r == '\'' || r == '"':
			quote := r
			i++
			start := i
			for i < len(runes) && runes[i] != quote {
				i++
			}
			if i >= len(runes) {
				return nil, fmt.Errorf("unterminated string")
			}
			tokens = append(tokens, token{kind: tokString, text: string(runes[start:i])})
			i++

		case r == '=' || r == '!' || r == '<' || r == '>':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, token{kind: tokCmp, text: string(runes[i : i+2])})
				i += 2
			} else if r == '<' || r == '>' {
				tokens = append(tokens, token{kind: tokCmp, text: string(r)})
				i++
			} else if r == '=' {
				tokens = append(tokens, token{kind: tokAssign, text: "="})
				i++
			} else {
				return nil, fmt.Errorf("unexpected character '%c'", r)
			}

		case unicode.IsDigit(r) || (r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			i++
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			tokens = append(tokens, token{kind: tokNumber, text: string(runes[start:i])})

		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: string(runes[start:i])})

		default:
			return nil, fmt.Errorf("unexpected character %q", string(r))
		}
	}

	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	return tokens, nil
}
