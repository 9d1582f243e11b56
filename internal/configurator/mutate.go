package configurator

import (
	nxerrors "github.com/ksyq12/nginxtls/internal/errors"
	"github.com/ksyq12/nginxtls/internal/nginx"
)

// singletonListenParams may appear on at most one listen directive per
// address, so a duplicated server block must not repeat them.
var singletonListenParams = map[string]bool{
	"default_server": true,
	"default":        true,
	"ipv6only=on":    true,
}

// tlsOnlyDirectives belong to a TLS server; a split strips them from
// the plain-HTTP copy.
var tlsOnlyDirectives = map[string]bool{
	"ssl":                     true,
	"ssl_certificate":         true,
	"ssl_certificate_key":     true,
	"ssl_dhparam":             true,
	"ssl_trusted_certificate": true,
	"ssl_stapling":            true,
	"ssl_stapling_verify":     true,
}

// vhostFor finds the derived view for a server block node, nil when
// the node is not part of the loaded configuration.
func (c *Configurator) vhostFor(node *nginx.Directive) *nginx.VirtualHost {
	for _, vh := range c.tree.VHosts() {
		if vh.Node == node {
			return vh
		}
	}
	return nil
}

// refreshVHost re-derives a vhost's names, addresses and TLS flag
// after its block was mutated, so callers holding the view keep
// working with current data.
func (c *Configurator) refreshVHost(vh *nginx.VirtualHost) {
	if fresh := c.vhostFor(vh.Node); fresh != nil {
		vh.Names = fresh.Names
		vh.Addrs = fresh.Addrs
		vh.SSL = fresh.SSL
	}
}

// duplicateVHost copies a server block in place, right after the
// original in the same parent. stripSingletons drops listen parameters
// that may only appear once per address, and a non-empty only list
// keeps just the named directives in the copy. Returns the view for
// the copy.
func (c *Configurator) duplicateVHost(vh *nginx.VirtualHost, stripSingletons bool, only ...string) (*nginx.VirtualHost, error) {
	siblings, idx, err := c.tree.FindVHostSiblings(vh)
	if err != nil {
		return nil, nxerrors.Wrap(nxerrors.ErrCodeInternal, "unable to duplicate server block", err)
	}

	clone := vh.Node.Clone()
	clone.Managed = true
	if len(only) > 0 {
		keep := make(map[string]bool, len(only))
		for _, name := range only {
			keep[name] = true
		}
		nginx.FilterChildren(clone, func(d *nginx.Directive) bool {
			return !d.IsComment() && keep[d.Name]
		})
	}
	if stripSingletons {
		for _, d := range clone.FindAll("listen") {
			kept := d.Args[:0]
			for _, arg := range d.Args {
				if !singletonListenParams[arg] {
					kept = append(kept, arg)
				}
			}
			d.Args = kept
		}
	}

	list := *siblings
	list = append(list, nil)
	copy(list[idx+2:], list[idx+1:])
	list[idx+1] = clone
	*siblings = list
	c.tree.MarkDirty(vh.FilePath)

	dup := c.vhostFor(clone)
	if dup == nil {
		return nil, nxerrors.Wrap(nxerrors.ErrCodeInternal, "duplicated server block did not reindex", nil)
	}
	return dup, nil
}

// splitVHost breaks a block serving both plain HTTP and TLS traffic in
// two. The plain copy is inserted right after the original; it loses
// every TLS listen and TLS directive, and when an only list is given
// it keeps nothing but those directives. The original keeps just its
// TLS listens. Returns the plain copy and the TLS original.
func (c *Configurator) splitVHost(vh *nginx.VirtualHost, only ...string) (httpVH, httpsVH *nginx.VirtualHost, err error) {
	dup, err := c.duplicateVHost(vh, false, only...)
	if err != nil {
		return nil, nil, err
	}
	nginx.FilterChildren(dup.Node, func(d *nginx.Directive) bool {
		switch {
		case d.Name == "listen":
			a := nginx.ParseAddr(d.Args)
			return a == nil || !a.SSL
		case d.Name == "include" && len(d.Args) == 1 && d.Args[0] == c.settings.TLSOptionsPath:
			return false
		}
		return !tlsOnlyDirectives[d.Name]
	})
	nginx.FilterChildren(vh.Node, func(d *nginx.Directive) bool {
		if d.Name != "listen" {
			return true
		}
		a := nginx.ParseAddr(d.Args)
		return a != nil && a.SSL
	})
	c.tree.MarkDirty(vh.FilePath)
	c.refreshVHost(vh)
	c.refreshVHost(dup)
	return dup, vh, nil
}

// servesBoth reports whether a vhost accepts TLS and plain traffic at
// once, the shape splitVHost exists for.
func servesBoth(vh *nginx.VirtualHost) bool {
	if !vh.SSL {
		return false
	}
	for _, a := range vh.Addrs {
		if !a.SSL {
			return true
		}
	}
	return false
}
