package nginx

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// VirtualHost is the derived view of one server block. Node points at
// the block inside the loaded tree; mutations go through it, so the
// pointer stays valid across edits elsewhere in the file. Path records
// the child indexes from the file root down to the block at derivation
// time and is informational only.
type VirtualHost struct {
	FilePath string
	Node     *Directive
	Path     []int
	Names    []string
	Addrs    []Addr
	SSL      bool
	// Enabled is true for every derived vhost: only files reachable from
	// the root configuration are loaded, so disabled sites never appear.
	Enabled bool
}

// HasName reports whether the server block declares the name.
func (v *VirtualHost) HasName(name string) bool {
	for _, n := range v.Names {
		if n == name {
			return true
		}
	}
	return false
}

// AddName records a name on the derived view (not the tree).
func (v *VirtualHost) AddName(name string) {
	if !v.HasName(name) {
		v.Names = append(v.Names, name)
	}
}

// SameNames reports whether two vhosts declare identical name sets.
func (v *VirtualHost) SameNames(o *VirtualHost) bool {
	if len(v.Names) != len(o.Names) {
		return false
	}
	a := append([]string(nil), v.Names...)
	b := append([]string(nil), o.Names...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// String renders the vhost for prompts and logs: names, addresses and
// the file it lives in.
func (v *VirtualHost) String() string {
	names := strings.Join(v.Names, " ")
	if names == "" {
		names = "(no server_name)"
	}
	addrs := make([]string, len(v.Addrs))
	for i, a := range v.Addrs {
		addrs[i] = a.String()
	}
	return fmt.Sprintf("%s | %s | %s", names, strings.Join(addrs, ", "), filepath.Base(v.FilePath))
}

// VHosts derives the virtual hosts of every parsed file. The result is
// rebuilt from the current trees on each call, so it reflects all
// mutations; order follows FilePaths and block position.
func (c *Config) VHosts() []*VirtualHost {
	var out []*VirtualHost
	for _, path := range c.FilePaths() {
		f := c.Files[path]
		if f.Unparsable {
			continue
		}
		c.collectServers(f, f.Entries, nil, &out)
	}
	return out
}

func (c *Config) collectServers(f *File, entries []*Directive, path []int, out *[]*VirtualHost) {
	for i, d := range entries {
		if !d.IsBlock() {
			continue
		}
		childPath := append(append([]int(nil), path...), i)
		// upstream blocks hold plain "server" directives, so only a
		// block named server is a virtual host
		if d.Name == "server" {
			*out = append(*out, c.buildVHost(f, d, childPath))
			continue
		}
		c.collectServers(f, d.Block, childPath, out)
	}
}

func (c *Config) buildVHost(f *File, node *Directive, path []int) *VirtualHost {
	vh := &VirtualHost{
		FilePath: f.Path,
		Node:     node,
		Path:     path,
		Enabled:  true,
	}
	sslOn := false
	c.scanServerBlock(node.Block, vh, &sslOn, map[string]bool{f.Path: true})
	if sslOn {
		for i := range vh.Addrs {
			vh.Addrs[i].SSL = true
		}
	}
	for _, a := range vh.Addrs {
		if a.SSL {
			vh.SSL = true
			break
		}
	}
	return vh
}

// scanServerBlock reads the directives a vhost is derived from,
// splicing in files included from inside the server block.
func (c *Config) scanServerBlock(entries []*Directive, vh *VirtualHost, sslOn *bool, visited map[string]bool) {
	for _, d := range entries {
		if d.IsComment() || d.IsBlock() {
			continue
		}
		switch d.Name {
		case "server_name":
			for _, name := range d.Args {
				vh.AddName(name)
			}
		case "listen":
			if a := ParseAddr(d.Args); a != nil {
				vh.Addrs = append(vh.Addrs, *a)
			}
		case "ssl":
			if len(d.Args) == 1 && d.Args[0] == "on" {
				*sslOn = true
			}
		case "include":
			if len(d.Args) == 0 {
				continue
			}
			matches, err := filepath.Glob(c.absPath(d.Args[0]))
			if err != nil {
				continue
			}
			for _, m := range matches {
				inc, ok := c.Files[m]
				if !ok || inc.Unparsable || visited[m] {
					continue
				}
				visited[m] = true
				c.scanServerBlock(inc.Entries, vh, sslOn, visited)
			}
		}
	}
}

// FindVHostSiblings locates the slice holding a vhost's server block and
// its index in it, by node identity. The recorded Path is a hint only;
// the tree is searched so the lookup survives insertions above the node.
func (c *Config) FindVHostSiblings(vh *VirtualHost) (*[]*Directive, int, error) {
	f, ok := c.Files[vh.FilePath]
	if !ok {
		return nil, 0, fmt.Errorf("no parsed file %s", vh.FilePath)
	}
	if list, i := findSiblings(&f.Entries, vh.Node); list != nil {
		return list, i, nil
	}
	return nil, 0, fmt.Errorf("server block no longer present in %s", vh.FilePath)
}

func findSiblings(list *[]*Directive, target *Directive) (*[]*Directive, int) {
	for i, d := range *list {
		if d == target {
			return list, i
		}
		if d.Block != nil {
			if l, idx := findSiblings(&d.Block, target); l != nil {
				return l, idx
			}
		}
	}
	return nil, -1
}
