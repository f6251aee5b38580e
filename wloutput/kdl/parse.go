// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kdl

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
	KindNull
)

// Value is one argument or property value. Numbers keep their literal text
// so that decimals such as scales survive without rounding.
type Value struct {
	Kind ValueKind
	Text string
	Bool bool
}

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNull:
		return "null"
	}
	return v.Text
}

// Int returns the value as an integer of the given bit size.
func (v Value) Int(bitSize int) (int64, error) {
	if v.Kind != KindNumber {
		return 0, fmt.Errorf("expected a number, got %q", v.String())
	}
	text := strings.ReplaceAll(v.Text, "_", "")
	base := 10
	sign := ""
	if strings.HasPrefix(text, "-") || strings.HasPrefix(text, "+") {
		sign, text = text[:1], text[1:]
	}
	switch {
	case strings.HasPrefix(text, "0x"):
		base, text = 16, text[2:]
	case strings.HasPrefix(text, "0o"):
		base, text = 8, text[2:]
	case strings.HasPrefix(text, "0b"):
		base, text = 2, text[2:]
	}
	return strconv.ParseInt(sign+text, base, bitSize)
}

// Node is one KDL node with its arguments, properties and children.
type Node struct {
	Name     string
	Args     []Value
	Props    map[string]Value
	Children []*Node
	Line     int
	Col      int
}

func (n *Node) Arg(i int) (Value, bool) {
	if i < len(n.Args) {
		return n.Args[i], true
	}
	return Value{}, false
}

func (n *Node) Prop(key string) (Value, bool) {
	v, ok := n.Props[key]
	return v, ok
}

// ParseError reports a syntax or content error with its 1-based position.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Col, e.Msg)
}

type parser struct {
	src  []rune
	pos  int
	line int
	col  int
}

// Parse reads a KDL document.
func Parse(text string) ([]*Node, error) {
	p := &parser{src: []rune(text), line: 1, col: 1}
	if p.peek() == '\uFEFF' {
		p.next()
	}
	return p.nodes(false)
}

func (p *parser) errorf(format string, args ...interface{}) *ParseError {
	return &ParseError{Line: p.line, Col: p.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() rune {
	return p.peekAt(0)
}

func (p *parser) peekAt(off int) rune {
	if p.pos+off >= len(p.src) {
		return 0
	}
	return p.src[p.pos+off]
}

func (p *parser) next() rune {
	r := p.src[p.pos]
	p.pos++
	if r == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
	return r
}

func isNewline(r rune) bool {
	switch r {
	case '\n', '\r', '\u0085', '\u000c', '\u2028', '\u2029':
		return true
	}
	return false
}

func isSpace(r rune) bool {
	return !isNewline(r) && (unicode.IsSpace(r) || r == '\uFEFF')
}

func isIdentChar(r rune) bool {
	if r == 0 || isSpace(r) || isNewline(r) {
		return false
	}
	return !strings.ContainsRune(`(){}[]/\"#;=`, r)
}

// skipComment consumes a comment starting at the current position.
func (p *parser) skipComment() (bool, error) {
	if p.peek() != '/' {
		return false, nil
	}
	switch p.peekAt(1) {
	case '/':
		for !p.eof() && !isNewline(p.peek()) {
			p.next()
		}
		return true, nil
	case '*':
		line, col := p.line, p.col
		p.next()
		p.next()
		depth := 1
		for depth > 0 {
			if p.eof() {
				return false, &ParseError{Line: line, Col: col, Msg: "unterminated block comment"}
			}
			switch {
			case p.peek() == '/' && p.peekAt(1) == '*':
				p.next()
				p.next()
				depth++
			case p.peek() == '*' && p.peekAt(1) == '/':
				p.next()
				p.next()
				depth--
			default:
				p.next()
			}
		}
		return true, nil
	}
	return false, nil
}

// skipLineSpace skips everything that may separate nodes.
func (p *parser) skipLineSpace() error {
	for !p.eof() {
		r := p.peek()
		if isSpace(r) || isNewline(r) || r == ';' {
			p.next()
			continue
		}
		if r == '\\' {
			if err := p.skipContinuation(); err != nil {
				return err
			}
			continue
		}
		skipped, err := p.skipComment()
		if err != nil {
			return err
		}
		if !skipped {
			return nil
		}
	}
	return nil
}

// skipNodeSpace skips the space between entries of a node and reports
// whether there was any.
func (p *parser) skipNodeSpace() (bool, error) {
	start := p.pos
	for !p.eof() {
		r := p.peek()
		if isSpace(r) {
			p.next()
			continue
		}
		if r == '\\' {
			if err := p.skipContinuation(); err != nil {
				return false, err
			}
			continue
		}
		if r == '/' && p.peekAt(1) == '*' {
			if _, err := p.skipComment(); err != nil {
				return false, err
			}
			continue
		}
		break
	}
	return p.pos > start, nil
}

func (p *parser) skipContinuation() error {
	p.next()
	for !p.eof() && isSpace(p.peek()) {
		p.next()
	}
	if p.peek() == '/' && p.peekAt(1) == '/' {
		p.skipComment()
	}
	if p.eof() {
		return nil
	}
	if !isNewline(p.peek()) {
		return p.errorf("expected a newline after line continuation")
	}
	p.next()
	return nil
}

func (p *parser) slashdash() bool {
	if p.peek() == '/' && p.peekAt(1) == '-' {
		p.next()
		p.next()
		return true
	}
	return false
}

func (p *parser) nodes(inBlock bool) ([]*Node, error) {
	var nodes []*Node
	for {
		if err := p.skipLineSpace(); err != nil {
			return nil, err
		}
		if p.eof() {
			if inBlock {
				return nil, p.errorf("unexpected end of input, missing '}'")
			}
			return nodes, nil
		}
		if p.peek() == '}' {
			if !inBlock {
				return nil, p.errorf("unexpected '}'")
			}
			p.next()
			return nodes, nil
		}

		discard := p.slashdash()
		if discard {
			if err := p.skipLineSpace(); err != nil {
				return nil, err
			}
		}
		node, err := p.node()
		if err != nil {
			return nil, err
		}
		if !discard {
			nodes = append(nodes, node)
		}
	}
}

func (p *parser) skipTypeAnnotation() error {
	if p.peek() != '(' {
		return nil
	}
	p.next()
	for !p.eof() && p.peek() != ')' {
		if isNewline(p.peek()) {
			return p.errorf("unterminated type annotation")
		}
		p.next()
	}
	if p.eof() {
		return p.errorf("unterminated type annotation")
	}
	p.next()
	return nil
}

func (p *parser) node() (*Node, error) {
	node := &Node{Line: p.line, Col: p.col, Props: make(map[string]Value)}
	if err := p.skipTypeAnnotation(); err != nil {
		return nil, err
	}
	name, err := p.value()
	if err != nil {
		return nil, err
	}
	if name.Kind != KindString {
		return nil, &ParseError{Line: node.Line, Col: node.Col, Msg: fmt.Sprintf("invalid node name %q", name.String())}
	}
	node.Name = name.Text

	for {
		if _, err := p.skipNodeSpace(); err != nil {
			return nil, err
		}
		if p.eof() {
			return node, nil
		}
		r := p.peek()
		if isNewline(r) || r == ';' || r == '}' {
			return node, nil
		}
		if r == '/' && p.peekAt(1) == '/' {
			p.skipComment()
			return node, nil
		}

		discard := p.slashdash()
		if discard {
			if _, err := p.skipNodeSpace(); err != nil {
				return nil, err
			}
		}

		if p.peek() == '{' {
			p.next()
			children, err := p.nodes(true)
			if err != nil {
				return nil, err
			}
			if !discard {
				node.Children = append(node.Children, children...)
			}
			continue
		}

		if err := p.entry(node, discard); err != nil {
			return nil, err
		}
	}
}

func (p *parser) entry(node *Node, discard bool) error {
	if err := p.skipTypeAnnotation(); err != nil {
		return err
	}
	line, col := p.line, p.col
	v, err := p.value()
	if err != nil {
		return err
	}
	if p.peek() != '=' {
		if !discard {
			node.Args = append(node.Args, v)
		}
		return nil
	}
	if v.Kind != KindString {
		return &ParseError{Line: line, Col: col, Msg: fmt.Sprintf("invalid property name %q", v.String())}
	}
	p.next()
	if err := p.skipTypeAnnotation(); err != nil {
		return err
	}
	val, err := p.value()
	if err != nil {
		return err
	}
	if !discard {
		node.Props[v.Text] = val
	}
	return nil
}

func (p *parser) value() (Value, error) {
	r := p.peek()
	switch {
	case p.eof():
		return Value{}, p.errorf("unexpected end of input")
	case r == '"':
		s, err := p.quoted()
		return Value{Kind: KindString, Text: s}, err
	case r == 'r' && (p.peekAt(1) == '"' || p.peekAt(1) == '#'):
		p.next()
		s, err := p.raw()
		return Value{Kind: KindString, Text: s}, err
	case r == '#' && (p.peekAt(1) == '"' || p.peekAt(1) == '#'):
		s, err := p.raw()
		return Value{Kind: KindString, Text: s}, err
	case r == '#':
		p.next()
		word := p.ident()
		switch word {
		case "true":
			return Value{Kind: KindBool, Bool: true}, nil
		case "false":
			return Value{Kind: KindBool}, nil
		case "null":
			return Value{Kind: KindNull}, nil
		case "inf", "-inf", "nan":
			return Value{Kind: KindNumber, Text: word}, nil
		}
		return Value{}, p.errorf("unknown keyword #%s", word)
	case unicode.IsDigit(r) ||
		((r == '-' || r == '+') && unicode.IsDigit(p.peekAt(1))) ||
		(r == '.' && unicode.IsDigit(p.peekAt(1))):
		return p.number()
	}

	line, col := p.line, p.col
	word := p.ident()
	if word == "" {
		return Value{}, p.errorf("unexpected character %q", r)
	}
	switch word {
	case "true":
		return Value{Kind: KindBool, Bool: true}, nil
	case "false":
		return Value{Kind: KindBool}, nil
	case "null":
		return Value{Kind: KindNull}, nil
	}
	if unicode.IsDigit([]rune(word)[0]) {
		return Value{}, &ParseError{Line: line, Col: col, Msg: fmt.Sprintf("invalid identifier %q", word)}
	}
	return Value{Kind: KindString, Text: word}, nil
}

func (p *parser) ident() string {
	var sb strings.Builder
	for !p.eof() && isIdentChar(p.peek()) {
		sb.WriteRune(p.next())
	}
	return sb.String()
}

func (p *parser) number() (Value, error) {
	line, col := p.line, p.col
	text := p.ident()
	check := strings.ReplaceAll(text, "_", "")
	check = strings.TrimLeft(check, "+-")
	lower := strings.ToLower(check)
	switch {
	case strings.HasPrefix(lower, "0x"), strings.HasPrefix(lower, "0o"), strings.HasPrefix(lower, "0b"):
		if _, err := strconv.ParseUint(check[2:], map[byte]int{'x': 16, 'o': 8, 'b': 2}[lower[1]], 64); err != nil {
			return Value{}, &ParseError{Line: line, Col: col, Msg: fmt.Sprintf("invalid number %q", text)}
		}
	default:
		if _, err := strconv.ParseFloat(check, 64); err != nil {
			return Value{}, &ParseError{Line: line, Col: col, Msg: fmt.Sprintf("invalid number %q", text)}
		}
	}
	return Value{Kind: KindNumber, Text: text}, nil
}

func (p *parser) quoted() (string, error) {
	line, col := p.line, p.col
	p.next()
	var sb strings.Builder
	for {
		if p.eof() {
			return "", &ParseError{Line: line, Col: col, Msg: "unterminated string"}
		}
		r := p.next()
		switch r {
		case '"':
			return sb.String(), nil
		case '\\':
			if p.eof() {
				return "", &ParseError{Line: line, Col: col, Msg: "unterminated string"}
			}
			esc := p.next()
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b':
				sb.WriteByte('\b')
			case 'f':
				sb.WriteByte('\f')
			case 's':
				sb.WriteByte(' ')
			case '\\', '"', '/':
				sb.WriteRune(esc)
			case 'u':
				code, err := p.unicodeEscape()
				if err != nil {
					return "", err
				}
				sb.WriteRune(code)
			default:
				if isSpace(esc) || isNewline(esc) {
					for !p.eof() && (isSpace(p.peek()) || isNewline(p.peek())) {
						p.next()
					}
					continue
				}
				return "", p.errorf("invalid escape \\%c", esc)
			}
		default:
			sb.WriteRune(r)
		}
	}
}

func (p *parser) unicodeEscape() (rune, error) {
	if p.eof() || p.next() != '{' {
		return 0, p.errorf("invalid unicode escape")
	}
	var hex strings.Builder
	for !p.eof() && p.peek() != '}' && hex.Len() <= 6 {
		hex.WriteRune(p.next())
	}
	if p.eof() || p.next() != '}' {
		return 0, p.errorf("invalid unicode escape")
	}
	code, err := strconv.ParseUint(hex.String(), 16, 32)
	if err != nil || code > unicode.MaxRune {
		return 0, p.errorf("invalid unicode escape")
	}
	return rune(code), nil
}

// raw reads a raw string starting at the hashes or the opening quote.
func (p *parser) raw() (string, error) {
	line, col := p.line, p.col
	hashes := 0
	for p.peek() == '#' {
		p.next()
		hashes++
	}
	if p.peek() != '"' {
		return "", p.errorf("invalid raw string")
	}
	p.next()
	closing := "\"" + strings.Repeat("#", hashes)
	var sb strings.Builder
	for {
		if p.eof() {
			return "", &ParseError{Line: line, Col: col, Msg: "unterminated raw string"}
		}
		if p.matchAhead(closing) {
			for range closing {
				p.next()
			}
			return sb.String(), nil
		}
		sb.WriteRune(p.next())
	}
}

func (p *parser) matchAhead(s string) bool {
	i := 0
	for _, r := range s {
		if p.peekAt(i) != r {
			return false
		}
		i++
	}
	return true
}
