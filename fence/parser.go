// Package fence finds fenced code blocks in streamed markdown text.
//
// A Parser is fed the reply one fragment at a time and yields each block as
// soon as its closing marker line is seen. Fragment boundaries do not matter:
// a marker split across two fragments is recognised once its line completes.
//
// A block opened with a run of N backticks is closed by a line holding only
// backticks, at least N of them. A fenced example nested inside a block with
// a shorter fence than its own ends the outer block early.
package fence

import (
	"bytes"
	"iter"
	"strings"
)

var marker = []byte("```")

type state uint8

const (
	outside state = iota
	inside
)

// Block is a completed fenced code block. Offsets are byte positions in the
// full reply: Start is the beginning of the opening marker line and End is
// just past the closing marker line.
type Block struct {
	Language string
	Body     string
	Start    int
	End      int
	Indent   int
}

// Parser is a single-use incremental fence scanner. It is not safe for
// concurrent use; each stream owns its own Parser.
type Parser struct {
	buf  []byte // retained text, starting at absolute offset base
	base int
	pos  int // absolute offset of the next unscanned line

	state  state
	open   int
	body   int
	lang   string
	indent int
	ticks  int // length of the opening backtick run
	closed bool
}

// NewParser returns a Parser in the outside state.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends delta to the stream and returns the blocks whose closing marker
// is now complete. Scanning happens while the sequence is ranged over; lines
// left unscanned by an early break are picked up by the next call.
func (p *Parser) Feed(delta string) iter.Seq[Block] {
	if p.closed {
		panic("fence: Feed after Close")
	}
	p.buf = append(p.buf, delta...)
	return p.scan(false)
}

// Close ends the stream. A trailing line without a newline is scanned as a
// complete line, so a reply ending in a bare closing marker still yields its
// block. An unterminated block yields nothing.
func (p *Parser) Close() iter.Seq[Block] {
	p.closed = true
	return p.scan(true)
}

// InBlock reports whether an opening marker has been seen without its close.
func (p *Parser) InBlock() bool {
	return p.state == inside
}

// Pending describes the currently open block, if any. Body holds what has
// been received so far.
func (p *Parser) Pending() (Block, bool) {
	if p.state != inside {
		return Block{}, false
	}
	end := p.base + len(p.buf)
	return Block{
		Language: p.lang,
		Body:     string(p.buf[p.body-p.base : end-p.base]),
		Start:    p.open,
		End:      end,
		Indent:   p.indent,
	}, true
}

func (p *Parser) scan(final bool) iter.Seq[Block] {
	return func(yield func(Block) bool) {
		defer p.compact()
		for {
			line, next, ok := p.nextLine(final)
			if !ok {
				return
			}
			start := p.pos
			p.pos = next
			if b, closed := p.step(start, line); closed && !yield(b) {
				return
			}
		}
	}
}

func (p *Parser) nextLine(final bool) (line []byte, next int, ok bool) {
	rel := p.pos - p.base
	if rel >= len(p.buf) {
		return nil, 0, false
	}
	rest := p.buf[rel:]
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		return rest[:i], p.pos + i + 1, true
	}
	if final {
		return rest, p.pos + len(rest), true
	}
	return nil, 0, false
}

// step advances the state machine over one line that starts at absolute
// offset start. It reports a block when line closes one.
func (p *Parser) step(start int, line []byte) (Block, bool) {
	line = bytes.TrimRight(line, " \t\r")
	indent := leadingIndent(line)
	content := line[indent:]

	switch p.state {
	case outside:
		if !bytes.HasPrefix(content, marker) {
			return Block{}, false
		}
		p.state = inside
		p.open = start
		p.body = p.pos
		p.indent = indent
		p.ticks = backtickRun(content)
		p.lang = languageTag(content[p.ticks:])
		return Block{}, false

	case inside:
		if n := backtickRun(content); n < p.ticks || n != len(content) {
			return Block{}, false
		}
		b := Block{
			Language: p.lang,
			Body:     dedent(string(p.buf[p.body-p.base:start-p.base]), p.indent),
			Start:    p.open,
			End:      p.pos,
			Indent:   p.indent,
		}
		p.state = outside
		p.lang = ""
		p.indent = 0
		p.ticks = 0
		return b, true
	}
	return Block{}, false
}

// compact drops text that can no longer be part of a block.
func (p *Parser) compact() {
	keep := p.pos
	if p.state == inside {
		keep = p.body
	}
	if drop := keep - p.base; drop > 0 {
		n := copy(p.buf, p.buf[drop:])
		p.buf = p.buf[:n]
		p.base = keep
	}
}

func backtickRun(b []byte) int {
	n := 0
	for n < len(b) && b[n] == '`' {
		n++
	}
	return n
}

func leadingIndent(line []byte) int {
	n := 0
	for n < len(line) && (line[n] == ' ' || line[n] == '\t') {
		n++
	}
	return n
}

// languageTag returns the first word after an opening marker.
func languageTag(rest []byte) string {
	fields := strings.Fields(string(rest))
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], "`")
}

// dedent strips up to n leading spaces or tabs from every line of body.
func dedent(body string, n int) string {
	if n == 0 || body == "" {
		return body
	}
	lines := strings.SplitAfter(body, "\n")
	var sb strings.Builder
	sb.Grow(len(body))
	for _, line := range lines {
		i := 0
		for i < n && i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
		sb.WriteString(line[i:])
	}
	return sb.String()
}
