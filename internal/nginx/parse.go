package nginx

import (
	nxerrors "github.com/ksyq12/nginxtls/internal/errors"
)

// Parse builds a directive tree from configuration text. The path is
// used in error messages only. A comment whose text equals ManagedMarker
// is folded into the Managed flag of the preceding sibling, so parsing
// the dumper's output reproduces the tree that was dumped.
func Parse(src []byte, path string) ([]*Directive, error) {
	toks, err := lex(src, path)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, path: path}
	return p.parseList(false)
}

type parser struct {
	toks []token
	pos  int
	path string
}

func (p *parser) parseList(inBlock bool) ([]*Directive, error) {
	entries := []*Directive{}
	for p.pos < len(p.toks) {
		tok := p.toks[p.pos]
		switch tok.kind {
		case tokenComment:
			p.pos++
			if tok.text == ManagedMarker && len(entries) > 0 && !entries[len(entries)-1].IsComment() {
				entries[len(entries)-1].Managed = true
				continue
			}
			entries = append(entries, NewComment(tok.text))
		case tokenCloseBrace:
			if !inBlock {
				return nil, nxerrors.Parse(p.path, tok.line, "unexpected }")
			}
			return entries, nil
		case tokenSemi:
			return nil, nxerrors.Parse(p.path, tok.line, "unexpected ;")
		case tokenOpenBrace:
			return nil, nxerrors.Parse(p.path, tok.line, "unexpected {")
		default:
			d, err := p.parseDirective()
			if err != nil {
				return nil, err
			}
			entries = append(entries, d)
		}
	}
	if inBlock {
		return nil, nxerrors.Parse(p.path, p.lastLine(), "unexpected end of file, expecting }")
	}
	return entries, nil
}

func (p *parser) parseDirective() (*Directive, error) {
	first := p.toks[p.pos]
	p.pos++
	var args []string
	for p.pos < len(p.toks) {
		tok := p.toks[p.pos]
		switch tok.kind {
		case tokenWord:
			args = append(args, tok.text)
			p.pos++
		case tokenComment:
			// a comment inside a directive runs to end of line while the
			// directive continues; the comment text is dropped
			p.pos++
		case tokenSemi:
			p.pos++
			return &Directive{Name: first.text, Args: args}, nil
		case tokenOpenBrace:
			p.pos++
			children, err := p.parseList(true)
			if err != nil {
				return nil, err
			}
			p.pos++ // the close brace parseList stopped on
			return &Directive{Name: first.text, Args: args, Block: children}, nil
		case tokenCloseBrace:
			return nil, nxerrors.Parse(p.path, tok.line, "unexpected }")
		}
	}
	return nil, nxerrors.Parse(p.path, first.line, "unexpected end of file, expecting ; or {")
}

func (p *parser) lastLine() int {
	if len(p.toks) == 0 {
		return 1
	}
	return p.toks[len(p.toks)-1].line
}
