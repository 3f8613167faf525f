package script

import "fmt"

// expression nodes

type expr interface {
	exprLine() int
}

type numberLit struct {
	value float64
	line  int
}

type stringLit struct {
	value string
	line  int
}

type boolLit struct {
	value bool
	line  int
}

type noneLit struct {
	line int
}

type nameRef struct {
	name string
	line int
}

type attrRef struct {
	target expr
	name   string
	line   int
}

type unaryOp struct {
	op      string
	operand expr
	line    int
}

type binaryOp struct {
	op    string
	left  expr
	right expr
	line  int
}

type boolOp struct {
	op    string // "and" or "or"
	left  expr
	right expr
	line  int
}

type condExpr struct {
	cond    expr
	then    expr
	orElse  expr
	line    int
}

type callExpr struct {
	fn   expr
	args []expr
	line int
}

func (e *numberLit) exprLine() int { return e.line }
func (e *stringLit) exprLine() int { return e.line }
func (e *boolLit) exprLine() int   { return e.line }
func (e *noneLit) exprLine() int   { return e.line }
func (e *nameRef) exprLine() int   { return e.line }
func (e *attrRef) exprLine() int   { return e.line }
func (e *unaryOp) exprLine() int   { return e.line }
func (e *binaryOp) exprLine() int  { return e.line }
func (e *boolOp) exprLine() int    { return e.line }
func (e *condExpr) exprLine() int  { return e.line }
func (e *callExpr) exprLine() int  { return e.line }

// statement nodes

type stmt interface {
	stmtLine() int
}

type assignStmt struct {
	target string
	op     string // "=", "+=", "-=", "*=", "/="
	value  expr
	line   int
}

type exprStmt struct {
	value expr
	line  int
}

type passStmt struct {
	line int
}

type ifStmt struct {
	cond   expr
	body   []stmt
	orElse []stmt // elif chains nest here as a single ifStmt
	line   int
}

func (s *assignStmt) stmtLine() int { return s.line }
func (s *exprStmt) stmtLine() int   { return s.line }
func (s *passStmt) stmtLine() int   { return s.line }
func (s *ifStmt) stmtLine() int     { return s.line }

type parser struct {
	toks []token
	pos  int
}

// parseBody compiles the imperative body into a statement list.
func parseBody(source string) ([]stmt, error) {
	toks, err := tokenize(source)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.parseSuiteUntilEOF()
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) matchOp(op string) bool {
	if p.cur().kind == tokOp && p.cur().text == op {
		p.pos++
		return true
	}
	return false
}

func (p *parser) matchKeyword(kw string) bool {
	if p.cur().kind == tokKeyword && p.cur().text == kw {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectOp(op string) error {
	if !p.matchOp(op) {
		return &SyntaxError{Line: p.cur().line, Msg: fmt.Sprintf("expected %q, got %s", op, p.cur())}
	}
	return nil
}

func (p *parser) expectNewline() error {
	if p.cur().kind == tokNewline {
		p.pos++
		return nil
	}
	if p.cur().kind == tokEOF {
		return nil
	}
	return &SyntaxError{Line: p.cur().line, Msg: fmt.Sprintf("unexpected %s after statement", p.cur())}
}

func (p *parser) parseSuiteUntilEOF() ([]stmt, error) {
	var stmts []stmt
	for p.cur().kind != tokEOF {
		if p.cur().kind == tokNewline {
			p.pos++
			continue
		}
		if p.cur().kind == tokIndent || p.cur().kind == tokDedent {
			return nil, &SyntaxError{Line: p.cur().line, Msg: "unexpected indent"}
		}
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

// parseBlock parses an indented suite following a ":" and newline.
func (p *parser) parseBlock() ([]stmt, error) {
	if err := p.expectOp(":"); err != nil {
		return nil, err
	}
	if p.cur().kind != tokNewline {
		// single-statement suite on the same line
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		return []stmt{s}, nil
	}
	p.pos++
	if p.cur().kind != tokIndent {
		return nil, &SyntaxError{Line: p.cur().line, Msg: "expected an indented block"}
	}
	p.pos++

	var stmts []stmt
	for p.cur().kind != tokDedent && p.cur().kind != tokEOF {
		if p.cur().kind == tokNewline {
			p.pos++
			continue
		}
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if p.cur().kind == tokDedent {
		p.pos++
	}
	if len(stmts) == 0 {
		return nil, &SyntaxError{Line: p.cur().line, Msg: "empty block"}
	}
	return stmts, nil
}

func (p *parser) parseStatement() (stmt, error) {
	t := p.cur()

	if t.kind == tokKeyword {
		switch t.text {
		case "pass":
			p.pos++
			if err := p.expectNewline(); err != nil {
				return nil, err
			}
			return &passStmt{line: t.line}, nil
		case "if":
			return p.parseIf()
		case "elif", "else":
			return nil, &SyntaxError{Line: t.line, Msg: fmt.Sprintf("%q without a matching if", t.text)}
		}
	}

	// assignment: IDENT (= | += | -= | *= | /=) expr
	if t.kind == tokIdent && p.pos+1 < len(p.toks) {
		nxt := p.toks[p.pos+1]
		if nxt.kind == tokOp {
			switch nxt.text {
			case "=", "+=", "-=", "*=", "/=":
				p.pos += 2
				value, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				if err := p.expectNewline(); err != nil {
					return nil, err
				}
				return &assignStmt{target: t.text, op: nxt.text, value: value, line: t.line}, nil
			}
		}
	}

	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectNewline(); err != nil {
		return nil, err
	}
	return &exprStmt{value: value, line: t.line}, nil
}

func (p *parser) parseIf() (stmt, error) {
	line := p.next().line // consume if/elif
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	node := &ifStmt{cond: cond, body: body, line: line}

	if p.cur().kind == tokKeyword && p.cur().text == "elif" {
		chained, err := p.parseIf()
		if err != nil {
			return nil, err
		}
		node.orElse = []stmt{chained}
	} else if p.matchKeyword("else") {
		orElse, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		node.orElse = orElse
	}
	return node, nil
}

// expression parsing, precedence climbing:
//   ternary < or < and < not < comparison < add < mul < unary < power < postfix

func (p *parser) parseExpr() (expr, error) {
	return p.parseTernary()
}

func (p *parser) parseTernary() (expr, error) {
	then, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind == tokKeyword && p.cur().text == "if" {
		line := p.next().line
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.matchKeyword("else") {
			return nil, &SyntaxError{Line: p.cur().line, Msg: "expected 'else' in conditional expression"}
		}
		orElse, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		return &condExpr{cond: cond, then: then, orElse: orElse, line: line}, nil
	}
	return then, nil
}

func (p *parser) parseOr() (expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokKeyword && p.cur().text == "or" {
		line := p.next().line
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &boolOp{op: "or", left: left, right: right, line: line}
	}
	return left, nil
}

func (p *parser) parseAnd() (expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokKeyword && p.cur().text == "and" {
		line := p.next().line
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &boolOp{op: "and", left: left, right: right, line: line}
	}
	return left, nil
}

func (p *parser) parseNot() (expr, error) {
	if p.cur().kind == tokKeyword && p.cur().text == "not" {
		line := p.next().line
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &unaryOp{op: "not", operand: operand, line: line}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokOp {
		op := p.cur().text
		switch op {
		case "<", "<=", ">", ">=", "==", "!=":
			line := p.next().line
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &binaryOp{op: op, left: left, right: right, line: line}
		default:
			return left, nil
		}
	}
	return left, nil
}

func (p *parser) parseAdditive() (expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokOp && (p.cur().text == "+" || p.cur().text == "-") {
		op := p.cur().text
		line := p.next().line
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &binaryOp{op: op, left: left, right: right, line: line}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokOp {
		op := p.cur().text
		switch op {
		case "*", "/", "//", "%":
			line := p.next().line
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &binaryOp{op: op, left: left, right: right, line: line}
		default:
			return left, nil
		}
	}
	return left, nil
}

func (p *parser) parseUnary() (expr, error) {
	if p.cur().kind == tokOp && (p.cur().text == "-" || p.cur().text == "+") {
		op := p.cur().text
		line := p.next().line
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryOp{op: op, operand: operand, line: line}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (expr, error) {
	base, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	// right-associative
	if p.cur().kind == tokOp && p.cur().text == "**" {
		line := p.next().line
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &binaryOp{op: "**", left: base, right: exp, line: line}, nil
	}
	return base, nil
}

func (p *parser) parsePostfix() (expr, error) {
	e, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.cur().kind == tokOp && p.cur().text == "(":
			line := p.next().line
			var args []expr
			if !(p.cur().kind == tokOp && p.cur().text == ")") {
				for {
					arg, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if !p.matchOp(",") {
						break
					}
				}
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			e = &callExpr{fn: e, args: args, line: line}

		case p.cur().kind == tokOp && p.cur().text == ".":
			line := p.next().line
			if p.cur().kind != tokIdent {
				return nil, &SyntaxError{Line: line, Msg: "expected attribute name after '.'"}
			}
			name := p.next().text
			e = &attrRef{target: e, name: name, line: line}

		default:
			return e, nil
		}
	}
}

func (p *parser) parseAtom() (expr, error) {
	t := p.cur()
	switch t.kind {
	case tokNumber:
		p.pos++
		return &numberLit{value: t.num, line: t.line}, nil

	case tokString:
		p.pos++
		return &stringLit{value: t.text, line: t.line}, nil

	case tokIdent:
		p.pos++
		return &nameRef{name: t.text, line: t.line}, nil

	case tokKeyword:
		switch t.text {
		case "True":
			p.pos++
			return &boolLit{value: true, line: t.line}, nil
		case "False":
			p.pos++
			return &boolLit{value: false, line: t.line}, nil
		case "None":
			p.pos++
			return &noneLit{line: t.line}, nil
		}

	case tokOp:
		if t.text == "(" {
			p.pos++
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
	}
	return nil, &SyntaxError{Line: t.line, Msg: fmt.Sprintf("unexpected %s", t)}
}
