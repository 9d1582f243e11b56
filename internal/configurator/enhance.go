package configurator

import (
	"fmt"
	"sort"
	"strings"

	nxerrors "github.com/ksyq12/nginxtls/internal/errors"
	"github.com/ksyq12/nginxtls/internal/logger"
	"github.com/ksyq12/nginxtls/internal/nginx"
)

// Enhancement names accepted by Enhance.
const (
	EnhanceRedirect = "redirect"
	EnhanceHeader   = "ensure-http-header"
	EnhanceStaple   = "staple-ocsp"
)

// SupportedEnhancements lists what Enhance accepts.
func SupportedEnhancements() []string {
	return []string{EnhanceRedirect, EnhanceHeader, EnhanceStaple}
}

// headerArgs maps the response headers ensure-http-header knows to the
// arguments they are written with.
var headerArgs = map[string][]string{
	"Strict-Transport-Security": {`"max-age=31536000"`, "always"},
}

// minStapleVersion is the first nginx release able to staple OCSP
// responses.
var minStapleVersion = Version{1, 3, 7}

// Enhance applies one named hardening step for a domain. The argument
// is enhancement specific: the header name for ensure-http-header, the
// chain path for staple-ocsp, ignored for redirect.
func (c *Configurator) Enhance(domain, name, arg string) error {
	switch name {
	case EnhanceRedirect:
		return c.enhanceRedirect(domain)
	case EnhanceHeader:
		return c.ensureHTTPHeader(domain, arg)
	case EnhanceStaple:
		return c.stapleOCSP(domain, arg)
	}
	return nxerrors.NotSupported(fmt.Sprintf(
		"unsupported enhancement %q; supported: %s", name, strings.Join(SupportedEnhancements(), ", ")))
}

// enhanceRedirect sends a domain's plain-HTTP traffic to TLS with a
// managed if block. Only blocks still listening plainly on the HTTP
// port qualify; a block serving TLS on the side is split first so the
// redirect never touches TLS requests.
func (c *Configurator) enhanceRedirect(domain string) error {
	vhosts, err := c.redirectVHosts(domain)
	if err != nil {
		return err
	}
	if len(vhosts) == 0 {
		logger.Info("No server block listens plainly on port %s for %s; nothing to redirect",
			c.settings.HTTPPort, domain)
		return nil
	}
	for _, vh := range vhosts {
		if err := c.redirectVHost(domain, vh); err != nil {
			return err
		}
	}
	return nil
}

// redirectVHosts picks the blocks a redirect attaches to: wildcard
// domains go through the cached selection, anything else takes the
// best name match among blocks that accept plain HTTP.
func (c *Configurator) redirectVHosts(domain string) ([]*nginx.VirtualHost, error) {
	if nginx.IsWildcardDomain(domain) {
		return c.chooseWildcardVHosts(domain, false)
	}
	if best := bestOf(c.rankVHostsWhere(domain, c.listensPlainHTTP, false)); best != nil {
		return []*nginx.VirtualHost{best.vhost}, nil
	}
	return nil, nil
}

func (c *Configurator) redirectVHost(domain string, vh *nginx.VirtualHost) error {
	split := false
	if vh.SSL {
		httpVH, _, err := c.splitVHost(vh, "listen", "server_name")
		if err != nil {
			return err
		}
		vh, split = httpVH, true
	}

	block := redirectBlock(domain)
	if hasRedirect(vh.Node, block) {
		logger.Info("Traffic for %s already redirects to TLS in %s", domain, vh.FilePath)
		return nil
	}
	if err := nginx.AddDirective(vh.Node, block, true); err != nil {
		return err
	}
	if split {
		// The stripped-down copy only exists to redirect; answer
		// anything else on it with 404.
		if err := nginx.AddDirective(vh.Node, nginx.NewDirective("return", "404"), false); err != nil {
			return err
		}
	}
	c.tree.MarkDirty(vh.FilePath)
	logger.Info("Redirecting plain-HTTP traffic for %s to TLS in %s", domain, vh.FilePath)
	return nil
}

// redirectBlock builds the if block that bounces one domain's requests
// to TLS. Wildcard domains compare $host against an anchored regex,
// everything else compares for equality.
func redirectBlock(domain string) *nginx.Directive {
	symbol, operand := nginx.WildcardCondition(domain)
	return nginx.NewBlock("if", []string{"($host", symbol, operand + ")"},
		nginx.NewDirective("return", "301", "https://$host$request_uri"))
}

// hasRedirect reports whether the block already carries the exact
// redirect under our marker. An identical hand-written block is left
// alone too, but by the insert being a no-op rather than by this scan.
func hasRedirect(server *nginx.Directive, block *nginx.Directive) bool {
	for _, child := range server.Block {
		if child.Managed && child.Equal(block) {
			return true
		}
	}
	return false
}

// ensureHTTPHeader sets a response header on the domain's TLS blocks
// unless the configuration already sets it somewhere in them.
func (c *Configurator) ensureHTTPHeader(domain, header string) error {
	args, ok := headerArgs[header]
	if !ok {
		known := make([]string, 0, len(headerArgs))
		for name := range headerArgs {
			known = append(known, name)
		}
		sort.Strings(known)
		return nxerrors.NotSupported(fmt.Sprintf(
			"header %q cannot be managed; supported: %s", header, strings.Join(known, ", ")))
	}

	vhosts, err := c.enhanceVHosts(domain, "set the "+header+" header")
	if err != nil {
		return err
	}
	for _, vh := range vhosts {
		if hasHeader(vh.Node, header) {
			return nxerrors.EnhancementPresent(domain, header+" header")
		}
		if servesBoth(vh) {
			_, httpsVH, err := c.splitVHost(vh)
			if err != nil {
				return err
			}
			vh = httpsVH
		}
		d := nginx.NewDirective("add_header", append([]string{header}, args...)...)
		if err := nginx.AddDirective(vh.Node, d, false); err != nil {
			return err
		}
		c.tree.MarkDirty(vh.FilePath)
		logger.Info("Set %s header for %s in %s", header, domain, vh.FilePath)
	}
	return nil
}

// hasHeader reports whether the block or anything nested in it already
// sets the header.
func hasHeader(d *nginx.Directive, header string) bool {
	for _, child := range d.Block {
		if child.Name == "add_header" && len(child.Args) > 0 && child.Args[0] == header {
			return true
		}
		if child.IsBlock() && hasHeader(child, header) {
			return true
		}
	}
	return false
}

// stapleOCSP enables OCSP stapling on the domain's TLS blocks. nginx
// learned stapling in 1.3.7 and needs the issuer chain to verify
// responses, so both are hard requirements.
func (c *Configurator) stapleOCSP(domain, chainPath string) error {
	if c.detected == nil {
		return nxerrors.Precondition("nginx version unknown; prepare the engine before enabling OCSP stapling")
	}
	if !c.detected.Version.AtLeast(minStapleVersion) {
		return nxerrors.Precondition(fmt.Sprintf(
			"OCSP stapling needs nginx 1.3.7 or newer, found %s", c.detected.Version))
	}
	if chainPath == "" {
		return nxerrors.Precondition("OCSP stapling needs the issuer chain, and no chain path was given")
	}

	vhosts, err := c.enhanceVHosts(domain, "enable OCSP stapling")
	if err != nil {
		return err
	}
	for _, vh := range vhosts {
		for _, d := range []*nginx.Directive{
			nginx.NewDirective("ssl_trusted_certificate", chainPath),
			nginx.NewDirective("ssl_stapling", "on"),
			nginx.NewDirective("ssl_stapling_verify", "on"),
		} {
			if err := nginx.AddDirective(vh.Node, d, false); err != nil {
				return nxerrors.Wrap(nxerrors.ErrCodePlugin, "unable to enable OCSP stapling", err)
			}
		}
		c.tree.MarkDirty(vh.FilePath)
		logger.Info("Enabled OCSP stapling for %s in %s", domain, vh.FilePath)
	}
	return nil
}

// enhanceVHosts resolves the server blocks an enhancement applies to:
// the cached selection for wildcard domains, otherwise the best name
// match with TLS blocks preferred.
func (c *Configurator) enhanceVHosts(domain, purpose string) ([]*nginx.VirtualHost, error) {
	if nginx.IsWildcardDomain(domain) {
		vhosts, err := c.chooseWildcardVHosts(domain, true)
		if err != nil {
			return nil, err
		}
		if len(vhosts) == 0 {
			return nil, nxerrors.Precondition(fmt.Sprintf("no server blocks selected to %s for %s", purpose, domain))
		}
		return vhosts, nil
	}
	if best := bestOf(c.rankVHostsPreferSSL(domain)); best != nil {
		return []*nginx.VirtualHost{best.vhost}, nil
	}
	return nil, nxerrors.Precondition(fmt.Sprintf("unable to find a server block to %s for %s", purpose, domain))
}
