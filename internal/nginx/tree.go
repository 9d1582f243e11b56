// Package nginx models nginx configuration files as editable directive
// trees. It parses configuration text into nodes, re-serializes nodes to
// text, resolves listen directives into structured addresses, and derives
// virtual host metadata from server blocks.
//
// The tree preserves everything a mutation needs to re-emit a file that
// nginx accepts: directive order, block nesting, and comments. Whitespace
// is normalized on output. Directives written by this tool carry a marker
// comment on the same line so later runs can recognize them.
package nginx

import (
	"strings"

	"github.com/valyala/bytebufferpool"
)

// ManagedMarker is the comment text appended to every directive this tool
// writes or rewrites.
const ManagedMarker = "managed by nginxtls"

// commentName is the reserved directive name for comment nodes.
const commentName = "#"

// Directive is a single node of a configuration tree: a plain directive
// (Block nil), a block (Block non-nil, possibly empty), or a comment
// (Name "#", text in Args[0]).
type Directive struct {
	Name    string
	Args    []string
	Block   []*Directive
	Managed bool
}

// NewDirective builds a plain directive.
func NewDirective(name string, args ...string) *Directive {
	return &Directive{Name: name, Args: args}
}

// NewBlock builds a block directive with the given children. The child
// slice is non-nil even when empty so the node keeps its block shape.
func NewBlock(name string, args []string, children ...*Directive) *Directive {
	block := make([]*Directive, len(children))
	copy(block, children)
	return &Directive{Name: name, Args: args, Block: block}
}

// NewComment builds a comment node.
func NewComment(text string) *Directive {
	return &Directive{Name: commentName, Args: []string{text}}
}

// IsComment reports whether the node is a comment.
func (d *Directive) IsComment() bool {
	return d.Name == commentName
}

// IsBlock reports whether the node is a block directive.
func (d *Directive) IsBlock() bool {
	return d.Block != nil
}

// Clone returns a deep copy of the node.
func (d *Directive) Clone() *Directive {
	c := &Directive{Name: d.Name, Managed: d.Managed}
	if d.Args != nil {
		c.Args = append([]string(nil), d.Args...)
	}
	if d.Block != nil {
		c.Block = make([]*Directive, len(d.Block))
		for i, child := range d.Block {
			c.Block[i] = child.Clone()
		}
	}
	return c
}

// Equal reports structural equality: name, args and children match.
// Managed flags are ignored so a managed rewrite of an identical
// directive compares equal to the original.
func (d *Directive) Equal(o *Directive) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.Name != o.Name || len(d.Args) != len(o.Args) {
		return false
	}
	for i := range d.Args {
		if d.Args[i] != o.Args[i] {
			return false
		}
	}
	if (d.Block == nil) != (o.Block == nil) {
		return false
	}
	if d.Block == nil {
		return true
	}
	return EqualDirectives(d.Block, o.Block)
}

// EqualDirectives reports structural equality of two directive lists.
func EqualDirectives(a, b []*Directive) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// FindAll returns the direct children of a block with the given name,
// comments excluded.
func (d *Directive) FindAll(name string) []*Directive {
	var out []*Directive
	for _, child := range d.Block {
		if child.Name == name {
			out = append(out, child)
		}
	}
	return out
}

// FindFirst returns the first direct child with the given name, or nil.
func (d *Directive) FindFirst(name string) *Directive {
	for _, child := range d.Block {
		if child.Name == name {
			return child
		}
	}
	return nil
}

// String renders the node as configuration text, mainly for error
// messages and logs.
func (d *Directive) String() string {
	return strings.TrimSuffix(string(Dump([]*Directive{d})), "\n")
}

// Dump serializes a directive list to configuration text. Indentation is
// four spaces per depth; managed nodes get the marker comment appended on
// their closing line.
func Dump(entries []*Directive) []byte {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	for _, d := range entries {
		writeDirective(buf, d, 0)
	}
	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out
}

func writeDirective(buf *bytebufferpool.ByteBuffer, d *Directive, depth int) {
	writeIndent(buf, depth)
	if d.IsComment() {
		buf.WriteString("#")
		if len(d.Args) > 0 && d.Args[0] != "" {
			buf.WriteString(" ")
			buf.WriteString(d.Args[0])
		}
		buf.WriteString("\n")
		return
	}
	buf.WriteString(d.Name)
	for _, arg := range d.Args {
		buf.WriteString(" ")
		buf.WriteString(arg)
	}
	if d.Block == nil {
		buf.WriteString(";")
		writeMarker(buf, d)
		buf.WriteString("\n")
		return
	}
	buf.WriteString(" {\n")
	for _, child := range d.Block {
		writeDirective(buf, child, depth+1)
	}
	writeIndent(buf, depth)
	buf.WriteString("}")
	writeMarker(buf, d)
	buf.WriteString("\n")
}

func writeIndent(buf *bytebufferpool.ByteBuffer, depth int) {
	for i := 0; i < depth; i++ {
		buf.WriteString("    ")
	}
}

func writeMarker(buf *bytebufferpool.ByteBuffer, d *Directive) {
	if d.Managed {
		buf.WriteString(" # ")
		buf.WriteString(ManagedMarker)
	}
}
