package script

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokIndent
	tokDedent
	tokNumber
	tokString
	tokIdent
	tokKeyword
	tokOp
)

type token struct {
	kind tokenKind
	text string
	num  float64
	line int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of script"
	case tokNewline:
		return "newline"
	case tokIndent:
		return "indent"
	case tokDedent:
		return "dedent"
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

var keywords = map[string]bool{
	"if": true, "elif": true, "else": true,
	"and": true, "or": true, "not": true,
	"True": true, "False": true, "None": true,
	"pass": true,
}

// multi-char operators, longest first
var operators = []string{
	"**", "//", "==", "!=", "<=", ">=", "+=", "-=", "*=", "/=",
	"+", "-", "*", "/", "%", "<", ">", "=", "(", ")", ",", ":", ".",
}

// SyntaxError reports a compile failure with the source line it occurred on.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d: %s", e.Line, e.Msg)
}

// tokenize splits the body into a token stream with INDENT/DEDENT markers,
// Python-style. Blank and comment-only lines produce no tokens.
func tokenize(source string) ([]token, error) {
	var toks []token
	indents := []int{0}

	for lineIdx, line := range strings.Split(source, "\n") {
		lineNo := lineIdx + 1

		indent := 0
		rest := line
		for len(rest) > 0 {
			if rest[0] == ' ' {
				indent++
			} else if rest[0] == '\t' {
				indent += 8 - indent%8
			} else {
				break
			}
			rest = rest[1:]
		}
		if rest == "" || rest[0] == '#' {
			continue
		}

		// indentation bookkeeping
		cur := indents[len(indents)-1]
		if indent > cur {
			indents = append(indents, indent)
			toks = append(toks, token{kind: tokIndent, line: lineNo})
		} else {
			for indent < indents[len(indents)-1] {
				indents = indents[:len(indents)-1]
				toks = append(toks, token{kind: tokDedent, line: lineNo})
			}
			if indent != indents[len(indents)-1] {
				return nil, &SyntaxError{Line: lineNo, Msg: "unindent does not match any outer block"}
			}
		}

		lineToks, err := tokenizeLine(rest, lineNo)
		if err != nil {
			return nil, err
		}
		toks = append(toks, lineToks...)
		toks = append(toks, token{kind: tokNewline, line: lineNo})
	}

	lastLine := strings.Count(source, "\n") + 1
	for len(indents) > 1 {
		indents = indents[:len(indents)-1]
		toks = append(toks, token{kind: tokDedent, line: lastLine})
	}
	toks = append(toks, token{kind: tokEOF, line: lastLine})
	return toks, nil
}

func tokenizeLine(s string, line int) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]

		switch {
		case c == ' ' || c == '\t':
			i++

		case c == '#':
			return toks, nil

		case c >= '0' && c <= '9' || c == '.' && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '9':
			j := i
			for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
				j++
			}
			// exponent part
			if j < len(s) && (s[j] == 'e' || s[j] == 'E') {
				k := j + 1
				if k < len(s) && (s[k] == '+' || s[k] == '-') {
					k++
				}
				if k < len(s) && s[k] >= '0' && s[k] <= '9' {
					for k < len(s) && s[k] >= '0' && s[k] <= '9' {
						k++
					}
					j = k
				}
			}
			num, err := strconv.ParseFloat(s[i:j], 64)
			if err != nil {
				return nil, &SyntaxError{Line: line, Msg: fmt.Sprintf("invalid number %q", s[i:j])}
			}
			toks = append(toks, token{kind: tokNumber, text: s[i:j], num: num, line: line})
			i = j

		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			var b strings.Builder
			for j < len(s) && s[j] != quote {
				if s[j] == '\\' && j+1 < len(s) {
					j++
					switch s[j] {
					case 'n':
						b.WriteByte('\n')
					case 't':
						b.WriteByte('\t')
					case '\\':
						b.WriteByte('\\')
					case quote:
						b.WriteByte(quote)
					default:
						b.WriteByte('\\')
						b.WriteByte(s[j])
					}
				} else {
					b.WriteByte(s[j])
				}
				j++
			}
			if j >= len(s) {
				return nil, &SyntaxError{Line: line, Msg: "unterminated string literal"}
			}
			toks = append(toks, token{kind: tokString, text: b.String(), line: line})
			i = j + 1

		case isIdentStart(c):
			j := i
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			word := s[i:j]
			kind := tokIdent
			if keywords[word] {
				kind = tokKeyword
			}
			toks = append(toks, token{kind: kind, text: word, line: line})
			i = j

		default:
			matched := false
			for _, op := range operators {
				if strings.HasPrefix(s[i:], op) {
					toks = append(toks, token{kind: tokOp, text: op, line: line})
					i += len(op)
					matched = true
					break
				}
			}
			if !matched {
				return nil, &SyntaxError{Line: line, Msg: fmt.Sprintf("unexpected character %q", string(c))}
			}
		}
	}
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
