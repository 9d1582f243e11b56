package nginx

import (
	"fmt"

	nxerrors "github.com/ksyq12/nginxtls/internal/errors"
)

// repeatable lists directives that may legally occur several times in
// one server block. Anything else with the same name but different
// arguments is a conflict.
var repeatable = map[string]bool{
	"server_name": true,
	"listen":      true,
	"include":     true,
	"rewrite":     true,
	"add_header":  true,
}

// AddDirective inserts a directive into a block and marks it managed.
// An identical directive already present is a no-op. A non-repeatable
// directive present with different arguments is a misconfiguration
// error naming both. insertAtTop puts the new directive before the
// existing children instead of after them.
func AddDirective(block *Directive, d *Directive, insertAtTop bool) error {
	for _, existing := range block.Block {
		if existing.Equal(d) {
			return nil
		}
	}
	if d.Block == nil && !repeatable[d.Name] {
		for _, existing := range block.Block {
			if existing.Block == nil && existing.Name == d.Name {
				return nxerrors.Misconfiguration(fmt.Sprintf(
					"tried to insert directive %q but found conflicting %q",
					d.String(), existing.String()))
			}
		}
	}
	d.Managed = true
	if insertAtTop {
		block.Block = append([]*Directive{d}, block.Block...)
	} else {
		block.Block = append(block.Block, d)
	}
	return nil
}

// UpdateOrAddDirective replaces the arguments of the first directive
// with the same name, keeping its position, or appends the directive
// when the name is absent. Includes are never updated in place; a
// server block routinely carries several unrelated include lines, so
// an identical one is a no-op and anything else is appended. Either
// way the touched node is managed.
func UpdateOrAddDirective(block *Directive, d *Directive) {
	if d.Block == nil && d.Name != "include" {
		for _, existing := range block.Block {
			if existing.Block == nil && existing.Name == d.Name {
				existing.Args = append([]string(nil), d.Args...)
				existing.Managed = true
				return
			}
		}
	}
	for _, existing := range block.Block {
		if existing.Equal(d) {
			return
		}
	}
	d.Managed = true
	block.Block = append(block.Block, d)
}

// FilterChildren rewrites a block's children in place, keeping only
// those the predicate accepts.
func FilterChildren(block *Directive, keep func(*Directive) bool) {
	kept := make([]*Directive, 0, len(block.Block))
	for _, child := range block.Block {
		if keep(child) {
			kept = append(kept, child)
		}
	}
	block.Block = kept
}
