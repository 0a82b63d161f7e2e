package tdp

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldType is a recursive descriptor for a field's C++-like type
// expression, e.g. "CUtlVector< CHandle< CBaseEntity > >" (spec §3, §4.2).
type FieldType struct {
	BaseName  string
	Generic   *FieldType // set iff this is a templated container
	ArraySize int        // >0 iff this is a fixed-length array
	Pointer   bool
}

// String renders the FieldType back into something close to its source
// spelling, for debug output.
func (t *FieldType) String() string {
	if t == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(t.BaseName)
	if t.Generic != nil {
		b.WriteString("< ")
		b.WriteString(t.Generic.String())
		b.WriteString(" >")
	}
	if t.Pointer {
		b.WriteByte('*')
	}
	if t.ArraySize > 0 {
		fmt.Fprintf(&b, "[%d]", t.ArraySize)
	}
	return b.String()
}

// FieldTypeParseError is returned when a type expression cannot be
// tokenized (spec §4.2).
type FieldTypeParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *FieldTypeParseError) Error() string {
	return fmt.Sprintf("tdp: field type parse error in %q at %d: %s", e.Input, e.Pos, e.Msg)
}

// typeToken is one lexeme produced by tokenizing a type expression.
type typeToken struct {
	kind typeTokenKind
	text string
}

type typeTokenKind int

const (
	tokIdent typeTokenKind = iota
	tokLAngle
	tokRAngle
	tokStar
	tokLBracket
	tokRBracket
	tokComma
)

// tokenizeFieldType splits a type expression on <, >, *, [, ], , and
// whitespace (spec §4.2). Whitespace is insignificant and dropped.
func tokenizeFieldType(s string) ([]typeToken, error) {
	var toks []typeToken
	var ident strings.Builder
	flush := func() {
		if ident.Len() > 0 {
			toks = append(toks, typeToken{tokIdent, ident.String()})
			ident.Reset()
		}
	}
	for i, r := range s {
		switch r {
		case '<':
			flush()
			toks = append(toks, typeToken{tokLAngle, "<"})
		case '>':
			flush()
			toks = append(toks, typeToken{tokRAngle, ">"})
		case '*':
			flush()
			toks = append(toks, typeToken{tokStar, "*"})
		case '[':
			flush()
			toks = append(toks, typeToken{tokLBracket, "["})
		case ']':
			flush()
			toks = append(toks, typeToken{tokRBracket, "]"})
		case ',':
			flush()
			toks = append(toks, typeToken{tokComma, ","})
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			if !isIdentRune(r) {
				return nil, &FieldTypeParseError{Input: s, Pos: i, Msg: fmt.Sprintf("unexpected rune %q", r)}
			}
			ident.WriteRune(r)
		}
	}
	flush()
	return toks, nil
}

func isIdentRune(r rune) bool {
	return r == '_' || r == ':' || r == '.' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// ParseFieldType parses a type expression into a recursive FieldType tree.
func ParseFieldType(s string) (*FieldType, error) {
	toks, err := tokenizeFieldType(s)
	if err != nil {
		return nil, err
	}
	p := &typeParser{toks: toks, input: s}
	t, err := p.parseOne()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, &FieldTypeParseError{Input: s, Pos: p.pos, Msg: "trailing tokens"}
	}
	return t, nil
}

type typeParser struct {
	toks  []typeToken
	pos   int
	input string
}

func (p *typeParser) peek() (typeToken, bool) {
	if p.pos >= len(p.toks) {
		return typeToken{}, false
	}
	return p.toks[p.pos], true
}

func (p *typeParser) parseOne() (*FieldType, error) {
	tok, ok := p.peek()
	if !ok || tok.kind != tokIdent {
		return nil, &FieldTypeParseError{Input: p.input, Pos: p.pos, Msg: "expected identifier"}
	}
	p.pos++
	t := &FieldType{BaseName: tok.text}

	for {
		next, ok := p.peek()
		if !ok {
			break
		}
		switch next.kind {
		case tokLAngle:
			p.pos++
			generic, err := p.parseOne()
			if err != nil {
				return nil, err
			}
			t.Generic = generic
			closing, ok := p.peek()
			if !ok || closing.kind != tokRAngle {
				return nil, &FieldTypeParseError{Input: p.input, Pos: p.pos, Msg: "expected >"}
			}
			p.pos++
		case tokStar:
			p.pos++
			t.Pointer = true
		case tokLBracket:
			p.pos++
			size, ok := p.peek()
			if !ok || size.kind != tokIdent {
				return nil, &FieldTypeParseError{Input: p.input, Pos: p.pos, Msg: "expected array size"}
			}
			n, err := strconv.Atoi(size.text)
			if err != nil {
				return nil, &FieldTypeParseError{Input: p.input, Pos: p.pos, Msg: "non-numeric array size"}
			}
			p.pos++
			closing, ok := p.peek()
			if !ok || closing.kind != tokRBracket {
				return nil, &FieldTypeParseError{Input: p.input, Pos: p.pos, Msg: "expected ]"}
			}
			p.pos++
			t.ArraySize = n
		default:
			return t, nil
		}
	}
	return t, nil
}
