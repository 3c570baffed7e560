package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/ZanzyTHEbar/mca-batch/mcab/common"

	"github.com/armon/go-radix"
)

var fieldNames = func() *radix.Tree {
	t := radix.New()
	for f := Field(0); f < fieldCount; f++ {
		t.Insert(strings.ToLower(f.String()), f)
	}
	return t
}()

// LookupField resolves a filter field name case-insensitively.
func LookupField(name string) (Field, bool) {
	v, ok := fieldNames.Get(strings.ToLower(name))
	if !ok {
		return 0, false
	}
	return v.(Field), true
}

// SuggestFields lists filter field names starting with prefix.
func SuggestFields(prefix string) []string {
	var out []string
	fieldNames.WalkPrefix(strings.ToLower(prefix), func(_ string, v interface{}) bool {
		out = append(out, v.(Field).String())
		return false
	})
	sort.Strings(out)
	return out
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
	tokSymbol
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// SyntaxError reports where a query stopped making sense.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("filter query: %s at offset %d", e.Msg, e.Pos)
}

func (e *SyntaxError) Unwrap() error { return common.ErrParse }

func isSymbol(r byte) bool {
	return r == '=' || r == '!' || r == '<' || r == '>' || r == '~'
}

func lex(query string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(query) {
		c := query[i]
		switch {
		case unicode.IsSpace(rune(c)):
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '"':
			end := i + 1
			for end < len(query) && query[end] != '"' {
				if query[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(query) {
				return nil, &SyntaxError{i, "unterminated string"}
			}
			s, err := strconv.Unquote(query[i : end+1])
			if err != nil {
				return nil, &SyntaxError{i, "bad string literal"}
			}
			toks = append(toks, token{tokString, s, i})
			i = end + 1
		case c == '!' && i+1 < len(query) && unicode.IsLetter(rune(query[i+1])):
			end := wordEnd(query, i+1)
			toks = append(toks, token{tokWord, query[i:end], i})
			i = end
		case isSymbol(c):
			end := i
			for end < len(query) && isSymbol(query[end]) {
				end++
			}
			toks = append(toks, token{tokSymbol, query[i:end], i})
			i = end
		default:
			end := wordEnd(query, i)
			toks = append(toks, token{tokWord, query[i:end], i})
			i = end
		}
	}
	return append(toks, token{tokEOF, "", len(query)}), nil
}

func wordEnd(s string, i int) int {
	for i < len(s) {
		c := s[i]
		if unicode.IsSpace(rune(c)) || c == '(' || c == ')' || c == '"' || (isSymbol(c) && c != '~') {
			break
		}
		i++
	}
	return i
}

type parser struct {
	toks []token
	at   int
}

func (p *parser) peek() token { return p.toks[p.at] }

func (p *parser) next() token {
	t := p.toks[p.at]
	if t.kind != tokEOF {
		p.at++
	}
	return t
}

func keyword(t token, kw string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text, kw)
}

// Parse reads a filter query such as
//
//	xPos >= 10 AND (Status = full OR NOT (Entities > 5))
//
// into a group tree. An empty query yields an empty group, which matches
// every chunk. Errors wrap common.ErrParse.
func Parse(query string) (*Group, error) {
	toks, err := lex(query)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	g, err := p.group(And)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &SyntaxError{t.pos, fmt.Sprintf("unexpected %q", t.text)}
	}
	return g, nil
}

func (p *parser) group(op Operator) (*Group, error) {
	g := NewGroup(op)
	if t := p.peek(); t.kind == tokEOF || t.kind == tokRParen {
		return g, nil
	}
	next := And
	for {
		f, err := p.term()
		if err != nil {
			return nil, err
		}
		f.SetOperator(next)
		g.Add(f)

		t := p.peek()
		switch {
		case keyword(t, "AND"):
			next = And
		case keyword(t, "OR"):
			next = Or
		default:
			return g, nil
		}
		p.next()
	}
}

func (p *parser) term() (Filter, error) {
	t := p.peek()
	if keyword(t, "NOT") {
		p.next()
		inner, err := p.term()
		if err != nil {
			return nil, err
		}
		if g, ok := inner.(*Group); ok && !g.inverted {
			g.inverted = true
			return g, nil
		}
		g := NewGroup(And, inner)
		g.inverted = true
		return g, nil
	}
	if t.kind == tokLParen {
		p.next()
		g, err := p.group(And)
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, &SyntaxError{c.pos, "missing )"}
		}
		return g, nil
	}
	return p.leaf()
}

func (p *parser) leaf() (Filter, error) {
	name := p.next()
	if name.kind != tokWord {
		return nil, &SyntaxError{name.pos, "expected field name"}
	}
	field, ok := LookupField(name.text)
	if !ok {
		return nil, &SyntaxError{name.pos, fmt.Sprintf("unknown field %q", name.text)}
	}
	ct := p.next()
	if ct.kind != tokSymbol && ct.kind != tokWord {
		return nil, &SyntaxError{ct.pos, "expected comparator"}
	}
	cmp, ok := ParseComparator(ct.text)
	if !ok {
		return nil, &SyntaxError{ct.pos, fmt.Sprintf("unknown comparator %q", ct.text)}
	}
	vt := p.next()
	if vt.kind != tokWord && vt.kind != tokString {
		return nil, &SyntaxError{vt.pos, "expected value"}
	}
	l, err := NewLeaf(And, field, cmp, vt.text)
	if err != nil {
		return nil, &SyntaxError{name.pos, err.Error()}
	}
	return l, nil
}
