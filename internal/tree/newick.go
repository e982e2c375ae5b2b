package tree

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Parse reads a single Newick tree. Branch lengths, internal labels and
// bracketed comments are accepted and discarded; a missing trailing
// semicolon is tolerated. Leaf labels must be unique.
func Parse(s string) (*Tree, error) {
	p := &parser{src: s, t: New()}
	p.skipSpace()
	if p.done() {
		return nil, ErrEmpty
	}
	root, err := p.subtree()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.done() && p.peek() == ';' {
		p.pos++
		p.skipSpace()
	}
	if !p.done() {
		return nil, p.errorf("unexpected %q after tree", p.peek())
	}
	p.t.root = root
	if err := p.t.CheckLabels(); err != nil {
		return nil, err
	}
	return p.t, nil
}

// Line is a tree read from a multi-tree file together with its 1-based
// line number.
type Line struct {
	Number int
	Tree   *Tree
}

// ParseAll reads one Newick tree per non-blank line of r.
func ParseAll(r io.Reader) ([]Line, error) {
	var out []Line
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		t, err := Parse(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		out = append(out, Line{Number: n, Tree: t})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading trees: %w", err)
	}
	return out, nil
}

type parser struct {
	src string
	pos int
	t   *Tree
}

func (p *parser) done() bool { return p.pos >= len(p.src) }
func (p *parser) peek() byte { return p.src[p.pos] }

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for !p.done() {
		switch c := p.peek(); {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '[':
			end := strings.IndexByte(p.src[p.pos:], ']')
			if end < 0 {
				p.pos = len(p.src)
				return
			}
			p.pos += end + 1
		default:
			return
		}
	}
}

func (p *parser) subtree() (NodeID, error) {
	p.skipSpace()
	if p.done() {
		return None, p.errorf("unexpected end of input")
	}
	if p.peek() != '(' {
		label, err := p.label()
		if err != nil {
			return None, err
		}
		if err := p.length(); err != nil {
			return None, err
		}
		return p.t.AddNode(label), nil
	}
	p.pos++
	n := p.t.AddNode("")
	for {
		c, err := p.subtree()
		if err != nil {
			return None, err
		}
		p.t.AddChild(n, c)
		p.skipSpace()
		if p.done() {
			return None, p.errorf("unclosed parenthesis")
		}
		if p.peek() == ',' {
			p.pos++
			continue
		}
		if p.peek() != ')' {
			return None, p.errorf("expected ',' or ')', got %q", p.peek())
		}
		p.pos++
		break
	}
	if _, err := p.label(); err != nil {
		return None, err
	}
	if err := p.length(); err != nil {
		return None, err
	}
	return n, nil
}

func (p *parser) label() (string, error) {
	p.skipSpace()
	if p.done() {
		return "", nil
	}
	if p.peek() == '\'' {
		var b strings.Builder
		p.pos++
		for {
			if p.done() {
				return "", p.errorf("unterminated quoted label")
			}
			c := p.peek()
			p.pos++
			if c != '\'' {
				b.WriteByte(c)
				continue
			}
			if !p.done() && p.peek() == '\'' {
				b.WriteByte('\'')
				p.pos++
				continue
			}
			return b.String(), nil
		}
	}
	start := p.pos
	for !p.done() && !strings.ContainsRune(delimiters, rune(p.peek())) {
		p.pos++
	}
	return p.src[start:p.pos], nil
}

func (p *parser) length() error {
	p.skipSpace()
	if p.done() || p.peek() != ':' {
		return nil
	}
	p.pos++
	p.skipSpace()
	start := p.pos
	for !p.done() && !strings.ContainsRune(delimiters, rune(p.peek())) {
		p.pos++
	}
	if p.pos == start {
		return p.errorf("missing branch length")
	}
	return nil
}

const delimiters = "(),:;[ \t\r\n'"

// Newick renders t with leaf labels only, e.g. ((a,b),c);
func (t *Tree) Newick() string {
	if t.root == None {
		return ";"
	}
	var b strings.Builder
	var write func(v NodeID)
	write = func(v NodeID) {
		kids := t.nodes[v].children
		if len(kids) == 0 {
			b.WriteString(quote(t.nodes[v].label))
			return
		}
		b.WriteByte('(')
		for i, c := range kids {
			if i > 0 {
				b.WriteByte(',')
			}
			write(c)
		}
		b.WriteByte(')')
	}
	write(t.root)
	b.WriteByte(';')
	return b.String()
}

func quote(label string) string {
	if !strings.ContainsAny(label, delimiters) {
		return label
	}
	return "'" + strings.ReplaceAll(label, "'", "''") + "'"
}
